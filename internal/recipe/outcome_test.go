package recipe

import "testing"

func TestExtractOutcomeFindsLastMatch(t *testing.T) {
	reply := `I considered {"not":"it"} and then decided.
{"outcome": "complete"}`
	outcome, ok := ExtractOutcome(reply)
	if !ok {
		t.Fatal("expected outcome to be found")
	}
	if outcome != "complete" {
		t.Fatalf("ExtractOutcome = %q, want complete", outcome)
	}
}

func TestExtractOutcomeNoJSON(t *testing.T) {
	if _, ok := ExtractOutcome("just plain text, no json here"); ok {
		t.Fatal("expected no outcome found")
	}
}

func TestExtractOutcomePicksLastOfMultiple(t *testing.T) {
	reply := `{"outcome":"issues-found"} draft thought... {"outcome":"complete"}`
	outcome, ok := ExtractOutcome(reply)
	if !ok || outcome != "complete" {
		t.Fatalf("ExtractOutcome = (%q, %v), want (complete, true)", outcome, ok)
	}
}
