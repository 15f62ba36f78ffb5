package replicate

import "testing"

func TestCanonicalizeCaseInsensitive(t *testing.T) {
	lower := "0b9b5a1e-1234-4a1b-9c3d-abcdefabcdef"
	upper := "0B9B5A1E-1234-4A1B-9C3D-ABCDEFABCDEF"

	got, ok := Canonicalize(upper)
	if !ok {
		t.Fatalf("expected %q to canonicalize", upper)
	}
	if got != lower {
		t.Fatalf("Canonicalize(%q) = %q, want %q", upper, got, lower)
	}
}

func TestCanonicalizeRejectsNonUUID(t *testing.T) {
	if _, ok := Canonicalize("not-a-uuid"); ok {
		t.Fatal("expected non-UUID stem to be rejected")
	}
}

func TestIndexGetIsCaseInsensitive(t *testing.T) {
	idx := NewIndex()
	id := "0b9b5a1e-1234-4a1b-9c3d-abcdefabcdef"
	idx.Set(SessionMetadata{SessionID: id, FilePath: "/tmp/x.jsonl"})

	if _, ok := idx.Get(id); !ok {
		t.Fatal("expected lowercase lookup to hit")
	}
	if _, ok := idx.Get("0B9B5A1E-1234-4A1B-9C3D-ABCDEFABCDEF"); !ok {
		t.Fatal("expected uppercase lookup to hit the same entry")
	}
}

func TestNeedsRebuildOnMissingFile(t *testing.T) {
	idx := NewIndex()
	idx.Set(SessionMetadata{SessionID: "0b9b5a1e-1234-4a1b-9c3d-abcdefabcdef", FilePath: "/nonexistent/path.jsonl"})

	if !NeedsRebuild(idx, nil) {
		t.Fatal("expected rebuild when an indexed file is missing from disk")
	}
}

func TestNeedsRebuildOnDivergence(t *testing.T) {
	idx := NewIndex()
	onDisk := make([]SessionMetadata, 0, 20)
	for i := 0; i < 20; i++ {
		onDisk = append(onDisk, SessionMetadata{SessionID: "x"})
	}
	// Index has far fewer entries than on-disk scan -> >10% divergence.
	if !NeedsRebuild(idx, onDisk) {
		t.Fatal("expected rebuild on large count divergence")
	}
}
