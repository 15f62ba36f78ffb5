package replicate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/voicecode/voiced/internal/wire"
)

func TestWatcherFileCreationDoesNotReplayInitialContents(t *testing.T) {
	root := t.TempDir()
	projectDir := filepath.Join(root, "-tmp-demo")
	if err := os.MkdirAll(projectDir, 0755); err != nil {
		t.Fatal(err)
	}

	idx := NewIndex()
	var created []SessionMetadata
	var updated [][]wire.TranscriptLine

	w, err := NewWatcher(root, idx, Callbacks{
		OnSessionCreated: func(m SessionMetadata) { created = append(created, m) },
		OnSessionUpdated: func(id string, lines []wire.TranscriptLine) { updated = append(updated, lines) },
	}, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.Debounce = 20 * time.Millisecond
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Close()

	sessionID := "0b9b5a1e-1234-4a1b-9c3d-abcdefabcdef"
	path := filepath.Join(projectDir, sessionID+".jsonl")
	initial := `{"role":"user","text":"hello"}` + "\n"
	if err := os.WriteFile(path, []byte(initial), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for len(created) == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for session_created callback")
		case <-time.After(10 * time.Millisecond):
		}
	}

	meta, ok := idx.Get(sessionID)
	if !ok {
		t.Fatal("expected session indexed after create")
	}
	if meta.MessageCount != 1 {
		t.Fatalf("expected initial message counted once, got %d", meta.MessageCount)
	}

	// Append a second line; only the new line should surface via
	// OnSessionUpdated, never the initial content again.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(`{"role":"assistant","text":"world"}` + "\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	deadline = time.After(2 * time.Second)
	for len(updated) == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for session_updated callback")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if len(updated[0]) != 1 || updated[0][0].Text != "world" {
		t.Fatalf("expected only the new line in update, got %#v", updated[0])
	}
}

func TestSidechainOnlyAppendTriggersNoUpdate(t *testing.T) {
	root := t.TempDir()
	projectDir := filepath.Join(root, "-tmp-demo2")
	if err := os.MkdirAll(projectDir, 0755); err != nil {
		t.Fatal(err)
	}
	sessionID := "1b9b5a1e-1234-4a1b-9c3d-abcdefabcdef"
	path := filepath.Join(projectDir, sessionID+".jsonl")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}

	idx := NewIndex()
	var updated int
	w, err := NewWatcher(root, idx, Callbacks{
		OnSessionUpdated: func(id string, lines []wire.TranscriptLine) { updated++ },
	}, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.Debounce = 20 * time.Millisecond
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Close()

	w.setPosition(path, 0)
	idx.Set(SessionMetadata{SessionID: sessionID, FilePath: path})

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(`{"role":"user","text":"x","isSidechain":true}` + "\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	time.Sleep(200 * time.Millisecond)
	if updated != 0 {
		t.Fatalf("expected no update for sidechain-only append, got %d", updated)
	}
}
