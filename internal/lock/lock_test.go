package lock

import (
	"errors"
	"sync"
	"testing"
)

func TestTryAcquireDeniesSecond(t *testing.T) {
	tbl := NewTable()
	if !tbl.TryAcquire("s1") {
		t.Fatal("first TryAcquire should succeed")
	}
	if tbl.TryAcquire("s1") {
		t.Fatal("second TryAcquire on held id should fail")
	}
	if !tbl.IsLocked("s1") {
		t.Fatal("expected s1 to be locked")
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	tbl := NewTable()
	tbl.Release("never-held")
	tbl.TryAcquire("s1")
	tbl.Release("s1")
	tbl.Release("s1")
	if tbl.IsLocked("s1") {
		t.Fatal("s1 should be unlocked after release")
	}
	if !tbl.TryAcquire("s1") {
		t.Fatal("s1 should be acquirable again after release")
	}
}

func TestWithLockReleasesOnPanic(t *testing.T) {
	tbl := NewTable()
	func() {
		defer func() { _ = recover() }()
		_, _ = tbl.WithLock("s1", func() error {
			panic("boom")
		})
	}()
	if tbl.IsLocked("s1") {
		t.Fatal("expected lock released after panic inside WithLock")
	}
}

func TestWithLockReleasesOnError(t *testing.T) {
	tbl := NewTable()
	acquired, err := tbl.WithLock("s1", func() error {
		return errors.New("boom")
	})
	if !acquired {
		t.Fatal("expected acquisition to succeed")
	}
	if err == nil {
		t.Fatal("expected error to propagate")
	}
	if tbl.IsLocked("s1") {
		t.Fatal("expected lock released after erroring fn")
	}
}

func TestTryAcquireConcurrentOnlyOneWins(t *testing.T) {
	tbl := NewTable()
	const n = 64
	var wg sync.WaitGroup
	var wins int32
	var mu sync.Mutex
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tbl.TryAcquire("contended") {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}
