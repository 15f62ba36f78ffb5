package recipe

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/voicecode/voiced/internal/agent"
	"github.com/voicecode/voiced/internal/lock"
)

// State is the per-session orchestration state.
type State struct {
	RecipeID        string
	CurrentStep     string
	StepCount       int
	StepVisitCounts map[string]int
	StepRetryCounts map[string]int
	SessionCreated  bool
	WorkstreamID    string
}

// AgentInvoker is the subset of *agent.Invoker the orchestrator depends
// on, injected so tests can substitute a fake.
type AgentInvoker interface {
	Invoke(ctx context.Context, opts agent.InvokeOpts) agent.Result
}

// WorkstreamUnlinker clears the active agent session for a workstream
// when a step declares fresh_context, forcing a new conversation.
type WorkstreamUnlinker interface {
	UnlinkActiveSession(workstreamID string) (previousSessionID string, ok bool)
}

// Sink receives the client-visible side effects of a run. All methods
// must be non-blocking with respect to orchestration progress.
type Sink interface {
	RecipeStarted(sessionID, recipeID, step string)
	StepTransition(sessionID, fromStep, toStep, outcome string)
	RecipeExited(sessionID, reason string)
	OrchestrationRetry(sessionID, step string)
	ContextCleared(workstreamID, previousSessionID string)
	SessionLocked(sessionID string)
	TurnComplete(sessionID string)
}

// Orchestrator drives recipe runs. It owns the per-session OrchestrationState
// map; the session lock table is shared with the rest of the gateway so
// locking is consistent across prompt/recipe/compaction paths.
type Orchestrator struct {
	Library  *Library
	Invoker  AgentInvoker
	Locks    *lock.Table
	Sink     Sink
	Unlinker WorkstreamUnlinker

	mu     sync.Mutex
	states map[string]*State
}

func NewOrchestrator(lib *Library, inv AgentInvoker, locks *lock.Table, sink Sink, unlinker WorkstreamUnlinker) *Orchestrator {
	return &Orchestrator{Library: lib, Invoker: inv, Locks: locks, Sink: sink, Unlinker: unlinker, states: make(map[string]*State)}
}

func (o *Orchestrator) getState(sessionID string) (*State, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.states[sessionID]
	return s, ok
}

func (o *Orchestrator) setState(sessionID string, s *State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states[sessionID] = s
}

func (o *Orchestrator) clearState(sessionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.states, sessionID)
}

// StartRecipe runs the entire recipe to completion on the calling
// goroutine, holding the session lock continuously from acceptance
// through exit: a synchronous loop over blocking Invoke calls, with no
// callback re-entrancy between the orchestrator and the invoker.
func (o *Orchestrator) StartRecipe(ctx context.Context, recipeID, sessionID, workingDirectory, workstreamID string, sessionExists bool) {
	recipe, ok := o.Library.Get(recipeID)
	if !ok {
		o.Sink.RecipeExited(sessionID, "unknown-recipe")
		return
	}
	if !sessionExists && workingDirectory == "" {
		o.Sink.RecipeExited(sessionID, "working-directory-required")
		return
	}

	if !o.Locks.TryAcquire(sessionID) {
		o.Sink.SessionLocked(sessionID)
		return
	}

	state := &State{
		RecipeID:        recipeID,
		CurrentStep:     recipe.InitialStep,
		StepVisitCounts: map[string]int{recipe.InitialStep: 1},
		StepRetryCounts: map[string]int{},
		SessionCreated:  sessionExists,
		WorkstreamID:    workstreamID,
	}
	o.setState(sessionID, state)
	o.Sink.RecipeStarted(sessionID, recipeID, state.CurrentStep)

	o.runLoop(ctx, recipe, sessionID, workingDirectory, "")
}

// runLoop is the synchronous driver: it repeatedly invokes the agent for
// the current step and advances state until an exit transition, a
// persistent parse failure, or a guardrail trip.
func (o *Orchestrator) runLoop(ctx context.Context, r *Recipe, sessionID, workingDirectory, promptOverride string) {
	defer func() {
		o.clearState(sessionID)
		o.Locks.Release(sessionID)
		o.Sink.TurnComplete(sessionID)
	}()

	for {
		state, ok := o.getState(sessionID)
		if !ok {
			return
		}
		step, ok := r.Steps[state.CurrentStep]
		if !ok {
			o.Sink.RecipeExited(sessionID, "corrupt-state")
			return
		}

		if step.FreshContext && state.WorkstreamID != "" && o.Unlinker != nil {
			if prev, ok := o.Unlinker.UnlinkActiveSession(state.WorkstreamID); ok {
				o.Sink.ContextCleared(state.WorkstreamID, prev)
			}
		}

		prompt := promptOverride
		if prompt == "" {
			prompt = buildStepPrompt(step)
		}
		promptOverride = ""

		result := o.Invoker.Invoke(ctx, agent.InvokeOpts{
			SessionID:        sessionID,
			Resume:           state.SessionCreated,
			Prompt:           prompt,
			WorkingDirectory: workingDirectory,
			Model:            ResolveModel(r, step),
		})
		state.SessionCreated = true

		if !result.Success {
			o.Sink.RecipeExited(sessionID, "agent-failure:"+result.Error)
			return
		}

		exit, nextPrompt := o.processResponse(r, state, sessionID, result.Result)
		if exit {
			return
		}
		if nextPrompt != "" {
			promptOverride = nextPrompt
		}
	}
}

// processResponse implements process_orchestration_response. It mutates
// state in place and returns (exit, retryPrompt). retryPrompt is non-empty
// only when the caller should re-invoke the same step with a reminder.
func (o *Orchestrator) processResponse(r *Recipe, state *State, sessionID, reply string) (exit bool, retryPrompt string) {
	step := r.Steps[state.CurrentStep]

	outcome, ok := ExtractOutcome(reply)
	if ok && !step.hasOutcome(outcome) {
		ok = false // undeclared outcome is treated as parse failure for retry purposes
	}

	if !ok {
		if state.StepRetryCounts[state.CurrentStep] < 1 {
			state.StepRetryCounts[state.CurrentStep]++
			o.Sink.OrchestrationRetry(sessionID, state.CurrentStep)
			return false, buildRetryPrompt(step)
		}
		o.Sink.RecipeExited(sessionID, "orchestration-error")
		return true, ""
	}

	transition := step.OnOutcome[outcome]
	if transition.IsExit() {
		o.Sink.RecipeExited(sessionID, transition.Reason)
		return true, ""
	}

	nextStep := transition.NextStep
	state.StepCount++
	state.StepVisitCounts[nextStep]++
	state.StepRetryCounts[state.CurrentStep] = 0

	if r.Guardrails.MaxTotalSteps > 0 && state.StepCount > r.Guardrails.MaxTotalSteps {
		o.Sink.RecipeExited(sessionID, "max-total-steps-exceeded")
		return true, ""
	}
	if r.Guardrails.MaxStepVisits > 0 && state.StepVisitCounts[nextStep] > r.Guardrails.MaxStepVisits {
		o.Sink.RecipeExited(sessionID, fmt.Sprintf("max-step-visits-exceeded:%s", nextStep))
		return true, ""
	}

	fromStep := state.CurrentStep
	state.CurrentStep = nextStep
	o.Sink.StepTransition(sessionID, fromStep, nextStep, outcome)
	return false, ""
}

func buildStepPrompt(step Step) string {
	var b strings.Builder
	b.WriteString(step.Prompt)
	b.WriteString("\n\nWhen you are done, emit a JSON object on its own line naming the outcome: one of ")
	b.WriteString(strings.Join(step.Outcomes, ", "))
	b.WriteString(".")
	return b.String()
}

func buildRetryPrompt(step Step) string {
	return "Your previous reply did not include a JSON outcome declaration. " + buildStepPrompt(step)
}
