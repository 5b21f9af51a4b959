package lock

import (
	"testing"
	"time"

	"overseer/internal/faststate"
)

func newTestStore(t *testing.T) *faststate.Store {
	t.Helper()
	store, err := faststate.New(t.TempDir())
	if err != nil {
		t.Fatalf("faststate.New() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestGenerationLockAcquireAndRelease(t *testing.T) {
	store := newTestStore(t)
	locks := NewGenerationLocks(store)

	acquired, err := locks.Acquire("g1", time.Hour)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if !acquired {
		t.Fatal("Acquire() = false, want true on first attempt")
	}

	acquired, err = locks.Acquire("g1", time.Hour)
	if err != nil {
		t.Fatalf("second Acquire() error = %v", err)
	}
	if acquired {
		t.Error("second Acquire() = true, want false while held")
	}

	if err := locks.Release("g1"); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	acquired, err = locks.Acquire("g1", time.Hour)
	if err != nil {
		t.Fatalf("Acquire() after release error = %v", err)
	}
	if !acquired {
		t.Error("Acquire() after release = false, want true")
	}
}

func TestGenerationLockTTLExpiry(t *testing.T) {
	store := newTestStore(t)
	locks := NewGenerationLocks(store)

	if _, err := locks.Acquire("g1", 10*time.Millisecond); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	time.Sleep(30 * time.Millisecond)

	acquired, err := locks.Acquire("g1", time.Hour)
	if err != nil {
		t.Fatalf("Acquire() after expiry error = %v", err)
	}
	if !acquired {
		t.Error("Acquire() after TTL expiry = false, want true")
	}
}

func TestProductionLockSetInspectClear(t *testing.T) {
	store := newTestStore(t)
	pl := NewProductionLock(store)

	if _, ok, err := pl.Inspect(); err != nil || ok {
		t.Fatalf("Inspect() on unset lock = (_, %v, %v), want (_, false, nil)", ok, err)
	}

	if err := pl.Set("g1", "e1", 2*time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	state, ok, err := pl.Inspect()
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if !ok {
		t.Fatal("Inspect() ok = false, want true")
	}
	if state.GroupID != "g1" || state.EpisodeID != "e1" || state.Manual {
		t.Errorf("Inspect() state = %+v, want group g1/episode e1/manual=false", state)
	}

	if err := pl.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if held, err := pl.Held(); err != nil || held {
		t.Errorf("Held() after Clear() = (%v, %v), want (false, nil)", held, err)
	}
}

func TestProductionLockManualPause(t *testing.T) {
	store := newTestStore(t)
	pl := NewProductionLock(store)

	if err := pl.SetManual(24 * time.Hour); err != nil {
		t.Fatalf("SetManual() error = %v", err)
	}

	state, ok, err := pl.Inspect()
	if err != nil || !ok {
		t.Fatalf("Inspect() = (%+v, %v, %v)", state, ok, err)
	}
	if !state.Manual {
		t.Error("Inspect() Manual = false, want true")
	}
}
