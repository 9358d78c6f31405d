package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lpajunen/aiwebengine-assistant/internal/domain"
	"github.com/lpajunen/aiwebengine-assistant/internal/domain/change"
)

type slowStore struct {
	*countingStore
	gets    atomic.Int32
	release chan struct{}
}

func (s *slowStore) GetScript(ctx context.Context, name string) (string, error) {
	s.gets.Add(1)
	<-s.release
	return s.countingStore.GetScript(ctx, name)
}

func TestContentCacheSharesConcurrentFetches(t *testing.T) {
	store := &slowStore{countingStore: newCountingStore(), release: make(chan struct{})}
	ctx := context.Background()
	_ = store.Store.UpsertScript(ctx, "a.js", "src")
	cc := NewContentCache(store, nil, 0)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got, err := cc.Script(ctx, "a.js"); err != nil || got != "src" {
				t.Errorf("Script = %q, %v", got, err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(store.release)
	wg.Wait()

	if n := store.gets.Load(); n < 1 || n > 5 {
		t.Fatalf("gets = %d", n)
	}
}

func TestContentCacheHitsAndInvalidates(t *testing.T) {
	store := newCountingStore()
	cache := newMapCache()
	ctx := context.Background()
	_ = store.Store.UpsertScript(ctx, "a.js", "v1")
	cc := NewContentCache(store, cache, time.Minute)

	if got, _ := cc.Script(ctx, "a.js"); got != "v1" {
		t.Fatalf("got %q", got)
	}
	_ = store.Store.UpsertScript(ctx, "a.js", "v2")
	if got, _ := cc.Script(ctx, "a.js"); got != "v1" {
		t.Fatalf("expected cached v1, got %q", got)
	}
	cc.Invalidate(ctx, change.TargetScript, "a.js")
	if got, _ := cc.Script(ctx, "a.js"); got != "v2" {
		t.Fatalf("expected v2 after invalidate, got %q", got)
	}
}

func TestContentCacheMissing(t *testing.T) {
	cc := NewContentCache(newCountingStore(), newMapCache(), time.Minute)
	_, err := cc.Asset(context.Background(), "/none")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
