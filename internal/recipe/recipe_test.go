package recipe

import "testing"

func validRecipe() *Recipe {
	return &Recipe{
		ID:          "r1",
		InitialStep: "a",
		Steps: map[string]Step{
			"a": {
				Outcomes: []string{"next"},
				OnOutcome: map[string]Transition{
					"next": {NextStep: "b"},
				},
			},
			"b": {
				Outcomes: []string{"done"},
				OnOutcome: map[string]Transition{
					"done": {Action: "exit", Reason: "finished"},
				},
			},
		},
	}
}

func TestValidateAccepts(t *testing.T) {
	if err := Validate(validRecipe()); err != nil {
		t.Fatalf("expected valid recipe, got %v", err)
	}
}

func TestValidateRejectsMissingInitialStep(t *testing.T) {
	r := validRecipe()
	r.InitialStep = "missing"
	if err := Validate(r); err == nil {
		t.Fatal("expected error for missing initial step")
	}
}

func TestValidateRejectsUndeclaredOutcome(t *testing.T) {
	r := validRecipe()
	step := r.Steps["a"]
	step.OnOutcome["not-declared"] = Transition{NextStep: "b"}
	r.Steps["a"] = step
	if err := Validate(r); err == nil {
		t.Fatal("expected error for undeclared outcome key")
	}
}

func TestValidateRejectsMissingNextStep(t *testing.T) {
	r := validRecipe()
	step := r.Steps["a"]
	step.OnOutcome["next"] = Transition{NextStep: "nonexistent"}
	r.Steps["a"] = step
	if err := Validate(r); err == nil {
		t.Fatal("expected error for next_step pointing nowhere")
	}
}

func TestValidateRejectsBadModel(t *testing.T) {
	r := validRecipe()
	r.Model = "gpt5"
	if err := Validate(r); err == nil {
		t.Fatal("expected error for invalid model")
	}
}

func TestResolveModelStepOverridesRecipe(t *testing.T) {
	r := &Recipe{Model: "sonnet"}
	step := Step{Model: "haiku"}
	if got := ResolveModel(r, step); got != "haiku" {
		t.Fatalf("ResolveModel = %q, want haiku", got)
	}
}

func TestResolveModelFallsBackToRecipe(t *testing.T) {
	r := &Recipe{Model: "sonnet"}
	step := Step{}
	if got := ResolveModel(r, step); got != "sonnet" {
		t.Fatalf("ResolveModel = %q, want sonnet", got)
	}
}

func TestBundledRecipeIsValid(t *testing.T) {
	lib, errs := LoadLibrary("")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors loading library: %v", errs)
	}
	if _, ok := lib.Get("implement-and-review"); !ok {
		t.Fatal("expected bundled implement-and-review recipe to load")
	}
}
