package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lpajunen/aiwebengine-assistant/internal/adapter/memstore"
	"github.com/lpajunen/aiwebengine-assistant/internal/config"
	"github.com/lpajunen/aiwebengine-assistant/internal/port/modelbackend"
)

// --- Mock model backend ---

type scriptedBackend struct {
	mu        sync.Mutex
	responses []*modelbackend.Response
	errs      []error
	requests  []*modelbackend.Request
}

func (b *scriptedBackend) Send(_ context.Context, req *modelbackend.Request) (*modelbackend.Response, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, req)
	if len(b.errs) > 0 {
		err := b.errs[0]
		b.errs = b.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(b.responses) == 0 {
		return &modelbackend.Response{Text: "done", StopReason: "end_turn"}, nil
	}
	r := b.responses[0]
	b.responses = b.responses[1:]
	return r, nil
}

func (b *scriptedBackend) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

func (b *scriptedBackend) last() *modelbackend.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.requests) == 0 {
		return nil
	}
	return b.requests[len(b.requests)-1]
}

// --- Mock backing store ---

// countingStore wraps memstore.Store, counting mutations and optionally failing them.
type countingStore struct {
	*memstore.Store
	mu      sync.Mutex
	upserts int
	deletes int
	fail    error
}

func newCountingStore() *countingStore {
	return &countingStore{Store: memstore.NewStore()}
}

func (s *countingStore) UpsertScript(ctx context.Context, name, content string) error {
	s.mu.Lock()
	s.upserts++
	fail := s.fail
	s.mu.Unlock()
	if fail != nil {
		return fail
	}
	return s.Store.UpsertScript(ctx, name, content)
}

func (s *countingStore) UpsertAsset(ctx context.Context, path string, content []byte) error {
	s.mu.Lock()
	s.upserts++
	fail := s.fail
	s.mu.Unlock()
	if fail != nil {
		return fail
	}
	return s.Store.UpsertAsset(ctx, path, content)
}

func (s *countingStore) DeleteScript(ctx context.Context, name string) error {
	s.mu.Lock()
	s.deletes++
	s.mu.Unlock()
	return s.Store.DeleteScript(ctx, name)
}

func (s *countingStore) DeleteAsset(ctx context.Context, path string) error {
	s.mu.Lock()
	s.deletes++
	s.mu.Unlock()
	return s.Store.DeleteAsset(ctx, path)
}

func (s *countingStore) mutations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upserts + s.deletes
}

// --- Mock cache ---

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMapCache() *mapCache { return &mapCache{data: make(map[string][]byte)} }

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// --- Mock broadcaster ---

type recordingHub struct {
	mu     sync.Mutex
	events []string
}

func (h *recordingHub) BroadcastEvent(_ context.Context, eventType string, _ any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, eventType)
}

func (h *recordingHub) count(eventType string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, e := range h.events {
		if e == eventType {
			n++
		}
	}
	return n
}

// --- Harness ---

type harness struct {
	svc     *AssistantService
	backend *scriptedBackend
	store   *countingStore
	ledger  *memstore.EventStore
	cache   *mapCache
	hub     *recordingHub
}

func newHarness(t *testing.T, responses ...*modelbackend.Response) *harness {
	t.Helper()
	cfg := config.Defaults()
	h := &harness{
		backend: &scriptedBackend{responses: responses},
		store:   newCountingStore(),
		ledger:  memstore.NewEventStore(),
		cache:   newMapCache(),
		hub:     &recordingHub{},
	}
	content := NewContentCache(h.store, h.cache, time.Minute)
	h.svc = NewAssistantService(
		NewSessionService(cfg.Session),
		h.backend,
		NewPreviewer(content),
		NewExecutor(h.store, h.ledger, content, nil),
		h.ledger,
		cfg,
	)
	h.svc.SetBroadcaster(h.hub)
	return h
}

func toolResponse(uses ...modelbackend.ToolUse) *modelbackend.Response {
	return &modelbackend.Response{ToolUses: uses, NeedsConfirmation: true, StopReason: "tool_use"}
}

func textResponse(text string) *modelbackend.Response {
	return &modelbackend.Response{Text: text, StopReason: "end_turn"}
}

var errNetwork = errors.New("connection reset by peer")
