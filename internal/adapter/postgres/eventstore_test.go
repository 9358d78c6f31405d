package postgres_test

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lpajunen/aiwebengine-assistant/internal/adapter/postgres"
	"github.com/lpajunen/aiwebengine-assistant/internal/domain/event"
)

// setupEventStore runs migrations against DATABASE_URL and returns a store.
// The pool is closed via t.Cleanup.
func setupEventStore(t *testing.T) *postgres.EventStore {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("requires DATABASE_URL")
	}

	ctx := context.Background()
	if err := postgres.RunMigrations(ctx, dsn); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	t.Cleanup(pool.Close)

	return postgres.NewEventStore(pool)
}

func TestEventStoreAppendAndLoad(t *testing.T) {
	store := setupEventStore(t)
	ctx := context.Background()
	sid := "sess-" + uuid.NewString()

	payload, _ := json.Marshal(map[string]string{"target": "hello.js"})
	events := []event.SessionEvent{
		{SessionID: sid, ToolUseID: "tu1", ToolName: "edit_script", Type: event.TypeApprovalRequested},
		{SessionID: sid, ToolUseID: "tu1", ToolName: "edit_script", Type: event.TypeToolApproved, Payload: payload},
		{SessionID: sid, ToolUseID: "tu1", ToolName: "edit_script", Type: event.TypeChangeCommitted},
	}
	for i := range events {
		if err := store.Append(ctx, &events[i]); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if events[i].ID == "" {
			t.Fatalf("append %d did not assign an id", i)
		}
	}

	got, err := store.LoadBySession(ctx, sid)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	if got[1].Type != event.TypeToolApproved || len(got[1].Payload) == 0 {
		t.Errorf("second event = %+v", got[1])
	}
	if got[0].Payload != nil {
		t.Errorf("empty payload should load as nil, got %s", got[0].Payload)
	}
}

func TestEventStoreHasApproval(t *testing.T) {
	store := setupEventStore(t)
	ctx := context.Background()
	sid := "sess-" + uuid.NewString()

	if ok, err := store.HasApproval(ctx, sid, "tu1"); err != nil || ok {
		t.Fatalf("HasApproval before approval = %v, %v", ok, err)
	}
	if err := store.Append(ctx, &event.SessionEvent{SessionID: sid, ToolUseID: "tu1", Type: event.TypeToolRejected}); err != nil {
		t.Fatal(err)
	}
	if ok, _ := store.HasApproval(ctx, sid, "tu1"); ok {
		t.Fatal("rejection must not count as approval")
	}
	if err := store.Append(ctx, &event.SessionEvent{SessionID: sid, ToolUseID: "tu1", Type: event.TypeToolApproved}); err != nil {
		t.Fatal(err)
	}
	if ok, err := store.HasApproval(ctx, sid, "tu1"); err != nil || !ok {
		t.Fatalf("HasApproval after approval = %v, %v", ok, err)
	}
}
