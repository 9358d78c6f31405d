package nats

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/lpajunen/aiwebengine-assistant/internal/logger"
	"github.com/lpajunen/aiwebengine-assistant/internal/port/messagequeue"
)

// testConnect connects to NATS or skips the test if NATS_URL is not set.
func testConnect(t *testing.T) *Queue {
	t.Helper()

	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("requires NATS_URL")
	}

	q, err := Connect(context.Background(), url)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() {
		if err := q.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return q
}

func TestQueue_PublishSubscribe(t *testing.T) {
	q := testConnect(t)
	subject := "editor.test." + t.Name()

	data, err := json.Marshal(messagequeue.SessionPayload{SessionID: "s1", MaxTurns: 10})
	if err != nil {
		t.Fatal(err)
	}

	type received struct {
		requestID string
		sessionID string
		data      []byte
	}
	got := make(chan received, 1)
	cancel, err := q.Subscribe(context.Background(), subject, func(ctx context.Context, _ string, d []byte) error {
		got <- received{logger.RequestID(ctx), logger.SessionID(ctx), d}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	ctx := logger.WithSessionID(logger.WithRequestID(context.Background(), "req-1"), "s1")
	if err := q.Publish(ctx, subject, data); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case r := <-got:
		if r.requestID != "req-1" || r.sessionID != "s1" {
			t.Errorf("headers not propagated: %+v", r)
		}
		if string(r.data) != string(data) {
			t.Errorf("payload = %s", r.data)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestQueue_PublishRejectsInvalidPayload(t *testing.T) {
	q := testConnect(t)
	if err := q.Publish(context.Background(), messagequeue.SubjectToolPending, []byte(`{bad`)); err == nil {
		t.Fatal("expected validation error")
	}
}
