package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lpajunen/aiwebengine-assistant/internal/config"
	"github.com/lpajunen/aiwebengine-assistant/internal/domain"
)

func TestSessionServiceCreateGet(t *testing.T) {
	s := NewSessionService(config.Session{MaxTurns: 3})
	ctx := context.Background()
	snap := s.Create(ctx)
	if snap.ID == "" || snap.MaxTurns != 3 || snap.TurnCount != 0 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if _, err := s.Get(ctx, snap.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSessionServiceReset(t *testing.T) {
	s := NewSessionService(config.Session{MaxTurns: 10})
	ctx := context.Background()
	old := s.Create(ctx)

	fresh, err := s.Reset(ctx, old.ID)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.ID == old.ID || len(fresh.Messages) != 0 {
		t.Fatalf("reset returned %+v", fresh)
	}
	if _, err := s.Get(ctx, old.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("old session still reachable: %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("len = %d, want 1", s.Len())
	}
}

func TestSessionServiceBusy(t *testing.T) {
	s := NewSessionService(config.Session{})
	snap := s.Create(context.Background())

	e, err := s.acquire(snap.ID, false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.acquire(snap.ID, false); !errors.Is(err, domain.ErrBusy) {
		t.Fatalf("err = %v, want ErrBusy", err)
	}
	e.mu.Unlock()
}

func TestSessionServiceExpire(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewSessionService(config.Session{IdleTTL: time.Hour})
	s.now = func() time.Time { return now }
	ctx := context.Background()

	stale := s.Create(ctx)
	now = now.Add(2 * time.Hour)
	live := s.Create(ctx)

	// A session in use survives even when idle.
	busy := s.Create(ctx)
	e, _ := s.acquire(busy.ID, false)
	e.sess.LastActive = now.Add(-3 * time.Hour)

	if n := s.Expire(ctx); n != 1 {
		t.Fatalf("expired = %d, want 1", n)
	}
	e.mu.Unlock()

	if _, err := s.Get(ctx, stale.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("stale session still present")
	}
	if _, err := s.Get(ctx, live.ID); err != nil {
		t.Errorf("live session expired: %v", err)
	}
}
