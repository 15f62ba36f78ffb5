package workstream

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workstreams.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGet(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Create("w1", "My Workstream", "/tmp/proj"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	w, err := s.Get("w1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if w == nil || w.Name != "My Workstream" {
		t.Fatalf("unexpected workstream: %+v", w)
	}
	if w.ActiveSessionID != "" {
		t.Fatalf("expected no active session on creation, got %q", w.ActiveSessionID)
	}
}

func TestSetActiveSessionAndUnlink(t *testing.T) {
	s := openTestStore(t)
	s.Create("w1", "name", "/tmp")
	if err := s.SetActiveSession("w1", "sess-1"); err != nil {
		t.Fatalf("SetActiveSession: %v", err)
	}

	w, _ := s.Get("w1")
	if w.ActiveSessionID != "sess-1" {
		t.Fatalf("expected active session sess-1, got %q", w.ActiveSessionID)
	}

	prev, err := s.Unlink("w1")
	if err != nil {
		t.Fatalf("Unlink: %v", err)
	}
	if prev != "sess-1" {
		t.Fatalf("expected previous session sess-1, got %q", prev)
	}

	w, _ = s.Get("w1")
	if w.ActiveSessionID != "" {
		t.Fatal("expected active session cleared after unlink")
	}
	if w.Name != "name" {
		t.Fatal("expected workstream record preserved after unlink")
	}
}

func TestUnlinkIsNoopWhenAlreadyUnlinked(t *testing.T) {
	s := openTestStore(t)
	s.Create("w1", "name", "/tmp")
	if _, err := s.Unlink("w1"); err != nil {
		t.Fatalf("first unlink: %v", err)
	}
	prev, err := s.Unlink("w1")
	if err != nil {
		t.Fatalf("second unlink: %v", err)
	}
	if prev != "" {
		t.Fatalf("expected empty previous session on repeated unlink, got %q", prev)
	}
}
