package logger

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// recordingHandler collects records, optionally slowly.
type recordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
	delay   time.Duration
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	if h.delay > 0 {
		time.Sleep(h.delay)
	}
	h.mu.Lock()
	h.records = append(h.records, rec)
	h.mu.Unlock()
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func (h *recordingHandler) count(level slog.Level) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for i := range h.records {
		if h.records[i].Level == level {
			n++
		}
	}
	return n
}

func (h *recordingHandler) messages() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.records))
	for i := range h.records {
		out[i] = h.records[i].Message
	}
	return out
}

func record(level slog.Level, msg string) slog.Record {
	return slog.NewRecord(time.Now(), level, msg, 0)
}

func TestAsyncHandlerConcurrentWrites(t *testing.T) {
	const goroutines = 50
	const perGoroutine = 100

	inner := &recordingHandler{}
	ah := NewAsyncHandler(inner, goroutines*perGoroutine, 4)

	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perGoroutine {
				_ = ah.Handle(context.Background(), record(slog.LevelInfo, "tool use routed"))
			}
		}()
	}
	wg.Wait()
	ah.Close()

	if got := inner.count(slog.LevelInfo); got != goroutines*perGoroutine {
		t.Fatalf("expected %d records, got %d", goroutines*perGoroutine, got)
	}
}

func TestAsyncHandlerDropsInfoWhenFull(t *testing.T) {
	inner := &recordingHandler{delay: 5 * time.Millisecond}
	ah := NewAsyncHandler(inner, 1, 1)

	for range 50 {
		_ = ah.Handle(context.Background(), record(slog.LevelInfo, "flood"))
	}
	ah.Close()

	if ah.DroppedCount() == 0 {
		t.Fatal("expected info records to be dropped")
	}
	msgs := inner.messages()
	if msgs[len(msgs)-1] != "async logger dropped records" {
		t.Errorf("expected drop summary last, got %q", msgs[len(msgs)-1])
	}
}

func TestAsyncHandlerKeepsWarnings(t *testing.T) {
	inner := &recordingHandler{delay: time.Millisecond}
	ah := NewAsyncHandler(inner, 1, 1)

	const warnings = 20
	for range warnings {
		_ = ah.Handle(context.Background(), record(slog.LevelError, "commit failed"))
	}
	ah.Close()

	if got := inner.count(slog.LevelError); got != warnings {
		t.Fatalf("expected all %d errors written, got %d", warnings, got)
	}
	if ah.DroppedCount() != 0 {
		t.Errorf("expected no drops, got %d", ah.DroppedCount())
	}
}

func TestAsyncHandlerDerivedSharesQueue(t *testing.T) {
	inner := &recordingHandler{}
	ah := NewAsyncHandler(inner, 10, 1)
	derived := ah.WithAttrs([]slog.Attr{slog.String("component", "executor")}).WithGroup("commit")

	_ = derived.Handle(context.Background(), record(slog.LevelInfo, "committed"))
	ah.Close()
	ah.Close()

	if got := inner.count(slog.LevelInfo); got != 1 {
		t.Fatalf("expected derived record flushed by parent Close, got %d", got)
	}
}
