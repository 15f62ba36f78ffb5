package gateway

import "github.com/voicecode/voiced/internal/wire"

// recipeSink adapts recipe.Sink onto the gateway's broadcast mechanism.
// Each callback's only side effect is a framed transport send.
type recipeSink struct {
	s *Server
}

func (r *recipeSink) RecipeStarted(sessionID, recipeID, step string) {
	r.s.broadcast(sessionID, wire.RecipeStarted{Type: "recipe_started", SessionID: sessionID, RecipeID: recipeID, Step: step})
}

func (r *recipeSink) StepTransition(sessionID, fromStep, toStep, outcome string) {
	r.s.broadcast(sessionID, wire.RecipeStepTransition{
		Type: "recipe_step_transition", SessionID: sessionID, FromStep: fromStep, ToStep: toStep, Outcome: outcome,
	})
}

func (r *recipeSink) RecipeExited(sessionID, reason string) {
	r.s.broadcast(sessionID, wire.RecipeExited{Type: "recipe_exited", SessionID: sessionID, Reason: reason})
}

func (r *recipeSink) OrchestrationRetry(sessionID, step string) {
	r.s.broadcast(sessionID, wire.OrchestrationRetry{Type: "orchestration_retry", SessionID: sessionID, Step: step})
}

func (r *recipeSink) ContextCleared(workstreamID, previousSessionID string) {
	r.s.broadcast(workstreamID, wire.ContextCleared{
		Type: "context_cleared", WorkstreamID: workstreamID, PreviousClaudeSessionID: previousSessionID,
	})
}

func (r *recipeSink) TurnComplete(sessionID string) {
	r.s.broadcast(sessionID, wire.TurnComplete{Type: "turn_complete", SessionID: sessionID})
}

func (r *recipeSink) SessionLocked(sessionID string) {
	r.s.broadcast(sessionID, wire.SessionLocked{Type: "session_locked", SessionID: sessionID, Message: "a request is already in flight for this session"})
}
