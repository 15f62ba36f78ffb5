// Package replicate implements the session-file replication engine: it
// discovers, indexes, and tails append-only JSONL transcripts written by
// the agent child process.
package replicate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// uuidPattern matches a canonical lowercase UUID, the only valid form for
// a transcript filename stem.
var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// Canonicalize lowercases id and reports whether the result matches the
// canonical UUID shape. Callers must use the canonical form as the index
// key so that uppercase/mixed-case input resolves to the same entry.
func Canonicalize(id string) (string, bool) {
	lower := strings.ToLower(id)
	return lower, uuidPattern.MatchString(lower)
}

// SessionMetadata is derived from a transcript file.
type SessionMetadata struct {
	SessionID        string
	FilePath         string
	Name             string
	WorkingDirectory string
	CreatedAt        time.Time
	LastModified     time.Time
	MessageCount     int
	Preview          string
	WorkstreamID     string
	External         bool
}

// Index is the process-wide mapping from canonical session ID to
// SessionMetadata. Lookups are case-insensitive via Canonicalize.
type Index struct {
	mu      sync.RWMutex
	entries map[string]SessionMetadata
}

func NewIndex() *Index {
	return &Index{entries: make(map[string]SessionMetadata)}
}

// Get returns the metadata for id, canonicalizing first.
func (idx *Index) Get(id string) (SessionMetadata, bool) {
	canon, ok := Canonicalize(id)
	if !ok {
		return SessionMetadata{}, false
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	meta, found := idx.entries[canon]
	return meta, found
}

// Set stores meta under its canonical session ID.
func (idx *Index) Set(meta SessionMetadata) {
	canon, ok := Canonicalize(meta.SessionID)
	if !ok {
		return
	}
	meta.SessionID = canon
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries[canon] = meta
}

func (idx *Index) Delete(id string) {
	canon, ok := Canonicalize(id)
	if !ok {
		return
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.entries, canon)
}

// List returns a snapshot of all entries.
func (idx *Index) List() []SessionMetadata {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]SessionMetadata, 0, len(idx.entries))
	for _, meta := range idx.entries {
		out = append(out, meta)
	}
	return out
}

// ListByWorkingDirectory scopes List to a single working directory.
// Supplements the distillation: a client needs to discover sessions
// per-project, not just globally.
func (idx *Index) ListByWorkingDirectory(dir string) []SessionMetadata {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var out []SessionMetadata
	for _, meta := range idx.entries {
		if meta.WorkingDirectory == dir {
			out = append(out, meta)
		}
	}
	return out
}

func (idx *Index) count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// ScanDirectory walks root for .jsonl files whose stem is a canonical UUID
// and returns one SessionMetadata skeleton per match (File metadata only;
// message count and preview are populated by a subsequent tail pass).
func ScanDirectory(root string) ([]SessionMetadata, error) {
	var out []SessionMetadata
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", root, err)
	}

	for _, projectDir := range entries {
		if !projectDir.IsDir() || strings.HasPrefix(projectDir.Name(), ".") {
			continue
		}
		projectPath := filepath.Join(root, projectDir.Name())
		files, err := os.ReadDir(projectPath)
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".jsonl") {
				continue
			}
			stem := strings.TrimSuffix(f.Name(), ".jsonl")
			canon, ok := Canonicalize(stem)
			if !ok {
				continue
			}
			fullPath := filepath.Join(projectPath, f.Name())
			info, err := f.Info()
			if err != nil {
				continue
			}
			out = append(out, SessionMetadata{
				SessionID:    canon,
				FilePath:     fullPath,
				CreatedAt:    info.ModTime(),
				LastModified: info.ModTime(),
			})
		}
	}
	return out, nil
}

// NeedsRebuild reports whether idx has drifted from the on-disk file list
// enough to warrant a full rebuild: a missing indexed file, an unindexed
// on-disk file, or a count divergence greater than 10%.
func NeedsRebuild(idx *Index, onDisk []SessionMetadata) bool {
	onDiskByID := make(map[string]string, len(onDisk))
	for _, m := range onDisk {
		onDiskByID[m.SessionID] = m.FilePath
	}

	indexed := idx.List()
	indexedByID := make(map[string]struct{}, len(indexed))
	for _, m := range indexed {
		indexedByID[m.SessionID] = struct{}{}
		if _, err := os.Stat(m.FilePath); err != nil {
			return true
		}
	}
	for id := range onDiskByID {
		if _, ok := indexedByID[id]; !ok {
			return true
		}
	}

	a, b := len(indexed), len(onDisk)
	if a == 0 && b == 0 {
		return false
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	denom := a
	if b > denom {
		denom = b
	}
	if denom == 0 {
		return false
	}
	return float64(diff)/float64(denom) > 0.10
}
