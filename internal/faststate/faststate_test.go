package faststate

import (
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = s.Close() }()
}

func TestSetIfAbsent(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = s.Close() }()

	ok, err := s.SetIfAbsent("lock:group-1", "holder-a", time.Minute)
	if err != nil {
		t.Fatalf("SetIfAbsent() error = %v", err)
	}
	if !ok {
		t.Fatalf("expected first SetIfAbsent to succeed")
	}

	ok, err = s.SetIfAbsent("lock:group-1", "holder-b", time.Minute)
	if err != nil {
		t.Fatalf("SetIfAbsent() error = %v", err)
	}
	if ok {
		t.Fatalf("expected second SetIfAbsent on a held lock to fail")
	}

	value, found, err := s.Get("lock:group-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found || value != "holder-a" {
		t.Fatalf("expected holder-a to still hold the lock, got %q found=%v", value, found)
	}
}

func TestSetIfAbsentExpiry(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = s.Close() }()

	if _, err := s.SetIfAbsent("lock:group-2", "holder-a", time.Millisecond); err != nil {
		t.Fatalf("SetIfAbsent() error = %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	ok, err := s.SetIfAbsent("lock:group-2", "holder-b", time.Minute)
	if err != nil {
		t.Fatalf("SetIfAbsent() error = %v", err)
	}
	if !ok {
		t.Fatalf("expected expired lock to be reacquirable")
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = s.Close() }()

	if err := s.Delete("never-set"); err != nil {
		t.Fatalf("Delete() on absent key should not error, got %v", err)
	}
}

func TestReap(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = s.Close() }()

	if err := s.Set("short", "v", time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Set("long", "v", time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	n, err := s.Reap()
	if err != nil {
		t.Fatalf("Reap() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("expected Reap() to remove exactly 1 key, removed %d", n)
	}

	if _, found, _ := s.Get("long"); !found {
		t.Fatalf("expected long-lived key to survive Reap()")
	}
}

func TestQueueFIFO(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = s.Close() }()

	for _, item := range []string{"a", "b", "c"} {
		if err := s.Push("review:light", item); err != nil {
			t.Fatalf("Push() error = %v", err)
		}
	}

	n, err := s.Len("review:light")
	if err != nil {
		t.Fatalf("Len() error = %v", err)
	}
	if n != 3 {
		t.Fatalf("expected queue depth 3, got %d", n)
	}

	for _, want := range []string{"a", "b", "c"} {
		got, ok, err := s.Pop("review:light")
		if err != nil {
			t.Fatalf("Pop() error = %v", err)
		}
		if !ok || got != want {
			t.Fatalf("expected Pop() to return %q, got %q ok=%v", want, got, ok)
		}
	}

	_, ok, err := s.Pop("review:light")
	if err != nil {
		t.Fatalf("Pop() error = %v", err)
	}
	if ok {
		t.Fatalf("expected Pop() on empty queue to return ok=false")
	}
}
