package recipe

import (
	"context"
	"testing"

	"github.com/voicecode/voiced/internal/agent"
	"github.com/voicecode/voiced/internal/lock"
)

type fakeInvoker struct {
	reply func(sessionID, currentPrompt string) string
}

func (f *fakeInvoker) Invoke(ctx context.Context, opts agent.InvokeOpts) agent.Result {
	return agent.Result{Success: true, Result: f.reply(opts.SessionID, opts.Prompt), SessionID: opts.SessionID}
}

type recordingSink struct {
	exitedReason   string
	transitions    []string
	retries        int
	turnComplete   bool
	sessionLocked  bool
	clearedWs      string
	clearedPrevID  string
	clearedCalls   int
}

func (s *recordingSink) RecipeStarted(sessionID, recipeID, step string) {}
func (s *recordingSink) StepTransition(sessionID, fromStep, toStep, outcome string) {
	s.transitions = append(s.transitions, fromStep+"->"+toStep)
}
func (s *recordingSink) RecipeExited(sessionID, reason string)     { s.exitedReason = reason }
func (s *recordingSink) OrchestrationRetry(sessionID, step string) { s.retries++ }
func (s *recordingSink) ContextCleared(workstreamID, previousSessionID string) {
	s.clearedCalls++
	s.clearedWs = workstreamID
	s.clearedPrevID = previousSessionID
}
func (s *recordingSink) SessionLocked(sessionID string) { s.sessionLocked = true }
func (s *recordingSink) TurnComplete(sessionID string)  { s.turnComplete = true }

type fakeUnlinker struct {
	previousSessionID string
	ok                bool
	calledWith        []string
}

func (f *fakeUnlinker) UnlinkActiveSession(workstreamID string) (string, bool) {
	f.calledWith = append(f.calledWith, workstreamID)
	return f.previousSessionID, f.ok
}

func guardrailRecipe() *Recipe {
	r := &Recipe{
		ID:          "guardrail-test",
		InitialStep: "review",
		Guardrails:  Guardrails{MaxStepVisits: 2, MaxTotalSteps: 100},
		Steps: map[string]Step{
			"review": {
				Outcomes: []string{"issues-found", "complete"},
				OnOutcome: map[string]Transition{
					"issues-found": {NextStep: "review"},
					"complete":     {Action: "exit", Reason: "done"},
				},
			},
		},
	}
	return r
}

func TestOrchestratorGuardrailExceeded(t *testing.T) {
	r := guardrailRecipe()
	lib := &Library{recipes: map[string]*Recipe{r.ID: r}}
	locks := lock.NewTable()
	sink := &recordingSink{}
	inv := &fakeInvoker{reply: func(sessionID, prompt string) string {
		return `{"outcome":"issues-found"}`
	}}
	orch := NewOrchestrator(lib, inv, locks, sink, nil)

	orch.StartRecipe(context.Background(), r.ID, "session-1", "/tmp/proj", "", false)

	if sink.exitedReason != "max-step-visits-exceeded:review" {
		t.Fatalf("expected guardrail exit reason, got %q", sink.exitedReason)
	}
	if locks.IsLocked("session-1") {
		t.Fatal("expected lock released after exit")
	}
	if !sink.turnComplete {
		t.Fatal("expected exactly one turn_complete")
	}
}

func TestOrchestratorHappyPathExit(t *testing.T) {
	r := guardrailRecipe()
	lib := &Library{recipes: map[string]*Recipe{r.ID: r}}
	locks := lock.NewTable()
	sink := &recordingSink{}
	inv := &fakeInvoker{reply: func(sessionID, prompt string) string {
		return `{"outcome":"complete"}`
	}}
	orch := NewOrchestrator(lib, inv, locks, sink, nil)

	orch.StartRecipe(context.Background(), r.ID, "session-2", "/tmp/proj", "", false)

	if sink.exitedReason != "done" {
		t.Fatalf("expected exit reason 'done', got %q", sink.exitedReason)
	}
	if locks.IsLocked("session-2") {
		t.Fatal("expected lock released")
	}
}

func TestOrchestratorRetryThenExitOnPersistentParseFailure(t *testing.T) {
	r := guardrailRecipe()
	lib := &Library{recipes: map[string]*Recipe{r.ID: r}}
	locks := lock.NewTable()
	sink := &recordingSink{}
	inv := &fakeInvoker{reply: func(sessionID, prompt string) string {
		return "no json outcome here"
	}}
	orch := NewOrchestrator(lib, inv, locks, sink, nil)

	orch.StartRecipe(context.Background(), r.ID, "session-3", "/tmp/proj", "", false)

	if sink.retries != 1 {
		t.Fatalf("expected exactly one retry, got %d", sink.retries)
	}
	if sink.exitedReason != "orchestration-error" {
		t.Fatalf("expected orchestration-error exit, got %q", sink.exitedReason)
	}
}

func TestOrchestratorDeniesOnAlreadyLockedSession(t *testing.T) {
	r := guardrailRecipe()
	lib := &Library{recipes: map[string]*Recipe{r.ID: r}}
	locks := lock.NewTable()
	locks.TryAcquire("session-4")
	sink := &recordingSink{}
	inv := &fakeInvoker{reply: func(sessionID, prompt string) string { return `{"outcome":"complete"}` }}
	orch := NewOrchestrator(lib, inv, locks, sink, nil)

	orch.StartRecipe(context.Background(), r.ID, "session-4", "/tmp/proj", "", false)

	if !sink.sessionLocked {
		t.Fatal("expected SessionLocked to be reported")
	}
	if sink.exitedReason != "" {
		t.Fatalf("expected no recipe_exited on lock denial, got %q", sink.exitedReason)
	}
}

func freshContextRecipe() *Recipe {
	return &Recipe{
		ID:          "fresh-context-test",
		InitialStep: "implement",
		Steps: map[string]Step{
			"implement": {
				FreshContext: true,
				Outcomes:     []string{"done"},
				OnOutcome: map[string]Transition{
					"done": {Action: "exit", Reason: "done"},
				},
			},
		},
	}
}

func TestOrchestratorUnlinksWorkstreamOnFreshContextStep(t *testing.T) {
	r := freshContextRecipe()
	lib := &Library{recipes: map[string]*Recipe{r.ID: r}}
	locks := lock.NewTable()
	sink := &recordingSink{}
	unlinker := &fakeUnlinker{previousSessionID: "old-session", ok: true}
	inv := &fakeInvoker{reply: func(sessionID, prompt string) string { return `{"outcome":"done"}` }}
	orch := NewOrchestrator(lib, inv, locks, sink, unlinker)

	orch.StartRecipe(context.Background(), r.ID, "session-5", "/tmp/proj", "workstream-1", false)

	if len(unlinker.calledWith) != 1 || unlinker.calledWith[0] != "workstream-1" {
		t.Fatalf("expected unlinker called once with workstream-1, got %v", unlinker.calledWith)
	}
	if sink.clearedCalls != 1 || sink.clearedWs != "workstream-1" || sink.clearedPrevID != "old-session" {
		t.Fatalf("expected ContextCleared(workstream-1, old-session), got calls=%d ws=%q prev=%q",
			sink.clearedCalls, sink.clearedWs, sink.clearedPrevID)
	}
}

func TestOrchestratorSkipsUnlinkWithoutWorkstreamID(t *testing.T) {
	r := freshContextRecipe()
	lib := &Library{recipes: map[string]*Recipe{r.ID: r}}
	locks := lock.NewTable()
	sink := &recordingSink{}
	unlinker := &fakeUnlinker{previousSessionID: "old-session", ok: true}
	inv := &fakeInvoker{reply: func(sessionID, prompt string) string { return `{"outcome":"done"}` }}
	orch := NewOrchestrator(lib, inv, locks, sink, unlinker)

	orch.StartRecipe(context.Background(), r.ID, "session-6", "/tmp/proj", "", false)

	if len(unlinker.calledWith) != 0 {
		t.Fatalf("expected no unlink call without a workstream ID, got %v", unlinker.calledWith)
	}
	if sink.clearedCalls != 0 {
		t.Fatal("expected no ContextCleared without a workstream ID")
	}
}
