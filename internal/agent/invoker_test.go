package agent

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestParseReplySuccess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")
	records := []map[string]any{
		{"type": "system", "subtype": "init"},
		{"type": "result", "result": "hello back", "session_id": "abc"},
	}
	data, _ := json.Marshal(records)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	got := parseReply(path, "fallback")
	if !got.Success {
		t.Fatalf("expected success, got %+v", got)
	}
	if got.Result != "hello back" || got.SessionID != "abc" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestParseReplyError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")
	records := []map[string]any{
		{"type": "result", "result": "boom", "is_error": true},
	}
	data, _ := json.Marshal(records)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	got := parseReply(path, "fallback")
	if got.Success {
		t.Fatalf("expected failure, got %+v", got)
	}
	if got.Error != "boom" {
		t.Fatalf("expected error message 'boom', got %q", got.Error)
	}
}

func TestParseReplyMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")
	if err := os.WriteFile(path, []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}

	got := parseReply(path, "fallback")
	if got.Success {
		t.Fatal("expected failure on malformed JSON")
	}
}

func TestParseReplyNoResultRecord(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")
	records := []map[string]any{{"type": "system"}}
	data, _ := json.Marshal(records)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	got := parseReply(path, "fallback")
	if got.Success {
		t.Fatal("expected failure when no result record present")
	}
}

func TestKillUntrackedSessionIsNoop(t *testing.T) {
	inv := NewInvoker("claude", t.TempDir())
	if err := inv.Kill("never-started", 0); err != nil {
		t.Fatalf("expected no error killing untracked session, got %v", err)
	}
}
