package bolt

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

type cursor struct {
	LastTimeEpoch float64 `json:"last_time_epoch"`
}

func TestGetSetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	ok, err := s.Has(ctx, "missing")
	if err != nil || ok {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}

	want := cursor{LastTimeEpoch: 12345.678}
	if err := s.Set(ctx, "cursor-1", want); err != nil {
		t.Fatalf("set: %v", err)
	}

	var got cursor
	found, err := s.Get(ctx, "cursor-1", &got)
	if err != nil || !found {
		t.Fatalf("get: found=%v err=%v", found, err)
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}

	if err := s.Delete(ctx, "cursor-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	found, err = s.Has(ctx, "cursor-1")
	if err != nil || found {
		t.Fatalf("expected key deleted, found=%v err=%v", found, err)
	}
}

func TestLockLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	acquired, err := s.AcquireLock(ctx, "run-lock")
	if err != nil || !acquired {
		t.Fatalf("expected to acquire lock, got %v err=%v", acquired, err)
	}

	acquiredAgain, err := s.AcquireLock(ctx, "run-lock")
	if err != nil || acquiredAgain {
		t.Fatalf("expected second acquire to fail, got %v err=%v", acquiredAgain, err)
	}

	if err := s.ReleaseLock(ctx, "run-lock"); err != nil {
		t.Fatalf("release: %v", err)
	}

	acquired, err = s.AcquireLock(ctx, "run-lock")
	if err != nil || !acquired {
		t.Fatalf("expected to re-acquire lock after release, got %v err=%v", acquired, err)
	}
}

func TestReleaseLockIfExpired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	if _, err := s.AcquireLock(ctx, "run-lock"); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	if err := s.ReleaseLockIfExpired(ctx, "run-lock", time.Hour); err != nil {
		t.Fatalf("release if expired: %v", err)
	}
	held, err := s.Has(ctx, "run-lock_lock")
	if err != nil || !held {
		t.Fatalf("expected lock still held, held=%v err=%v", held, err)
	}

	if err := s.ReleaseLockIfExpired(ctx, "run-lock", 0); err != nil {
		t.Fatalf("release if expired: %v", err)
	}
	held, err = s.Has(ctx, "run-lock_lock")
	if err != nil || held {
		t.Fatalf("expected lock released, held=%v err=%v", held, err)
	}
}
