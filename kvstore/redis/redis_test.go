package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("starting miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewFromClient(client, "test:")
}

type cursor struct {
	LastTimeEpoch float64 `json:"last_time_epoch"`
}

func TestGetSetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ok, err := s.Has(ctx, "missing")
	if err != nil || ok {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}

	want := cursor{LastTimeEpoch: 99.5}
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
}

func TestAcquireReleaseLock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	acquired, err := s.AcquireLock(ctx, "run-lock")
	if err != nil || !acquired {
		t.Fatalf("expected to acquire lock, got %v err=%v", acquired, err)
	}

	again, err := s.AcquireLock(ctx, "run-lock")
	if err != nil || again {
		t.Fatalf("expected second acquire to fail, got %v err=%v", again, err)
	}

	if err := s.ReleaseLock(ctx, "run-lock"); err != nil {
		t.Fatalf("release: %v", err)
	}

	acquired, err = s.AcquireLock(ctx, "run-lock")
	if err != nil || !acquired {
		t.Fatalf("expected re-acquire after release, got %v err=%v", acquired, err)
	}
}

func TestReleaseLockIfExpired(t *testing.T) {
	s := newTestStore(t)
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
