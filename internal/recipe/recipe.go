// Package recipe implements the declarative finite-state machine that
// drives multi-step agent conversations.
package recipe

import "fmt"

// Transition is either {next_step} or {action: exit, reason}.
type Transition struct {
	NextStep string `yaml:"next_step,omitempty"`
	Action   string `yaml:"action,omitempty"`
	Reason   string `yaml:"reason,omitempty"`
}

func (t Transition) IsExit() bool { return t.Action == "exit" }

type Step struct {
	Prompt       string                `yaml:"prompt"`
	Outcomes     []string              `yaml:"outcomes"`
	OnOutcome    map[string]Transition `yaml:"on_outcome"`
	Model        string                `yaml:"model,omitempty"`
	FreshContext bool                  `yaml:"fresh_context,omitempty"`
}

func (s Step) hasOutcome(outcome string) bool {
	for _, o := range s.Outcomes {
		if o == outcome {
			return true
		}
	}
	return false
}

type Guardrails struct {
	MaxStepVisits int `yaml:"max_step_visits"`
	MaxTotalSteps int `yaml:"max_total_steps"`
}

type Recipe struct {
	ID          string          `yaml:"id"`
	InitialStep string          `yaml:"initial_step"`
	Steps       map[string]Step `yaml:"steps"`
	Guardrails  Guardrails      `yaml:"guardrails"`
	Model       string          `yaml:"model,omitempty"`
}

var validModels = map[string]bool{"": true, "haiku": true, "sonnet": true, "opus": true}

// Validate checks the recipe's internal consistency: the initial step
// must exist, every on_outcome key must be declared in the step's
// outcome set, every next_step must name a real step, and every model
// (recipe- or step-level) must be a known model or empty.
func Validate(r *Recipe) error {
	if _, ok := r.Steps[r.InitialStep]; !ok {
		return fmt.Errorf("recipe %s: initial_step %q does not exist", r.ID, r.InitialStep)
	}
	if !validModels[r.Model] {
		return fmt.Errorf("recipe %s: invalid model %q", r.ID, r.Model)
	}
	for name, step := range r.Steps {
		if !validModels[step.Model] {
			return fmt.Errorf("recipe %s: step %s: invalid model %q", r.ID, name, step.Model)
		}
		for outcome, transition := range step.OnOutcome {
			if !step.hasOutcome(outcome) {
				return fmt.Errorf("recipe %s: step %s: on_outcome key %q not declared in outcomes", r.ID, name, outcome)
			}
			if !transition.IsExit() {
				if _, ok := r.Steps[transition.NextStep]; !ok {
					return fmt.Errorf("recipe %s: step %s: next_step %q does not exist", r.ID, name, transition.NextStep)
				}
			}
		}
	}
	return nil
}

// ResolveModel implements step.model overriding recipe.model, both nil
// meaning no model flag is passed to the agent.
func ResolveModel(r *Recipe, step Step) string {
	if step.Model != "" {
		return step.Model
	}
	return r.Model
}
