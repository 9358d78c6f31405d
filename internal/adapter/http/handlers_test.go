package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	cfhttp "github.com/lpajunen/aiwebengine-assistant/internal/adapter/http"
	"github.com/lpajunen/aiwebengine-assistant/internal/adapter/memstore"
	"github.com/lpajunen/aiwebengine-assistant/internal/config"
	"github.com/lpajunen/aiwebengine-assistant/internal/domain"
	"github.com/lpajunen/aiwebengine-assistant/internal/domain/session"
	"github.com/lpajunen/aiwebengine-assistant/internal/domain/tool"
	"github.com/lpajunen/aiwebengine-assistant/internal/port/modelbackend"
	"github.com/lpajunen/aiwebengine-assistant/internal/service"
)

type queueBackend struct {
	mu        sync.Mutex
	responses []*modelbackend.Response
	err       error
}

func (b *queueBackend) Send(_ context.Context, _ *modelbackend.Request) (*modelbackend.Response, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		err := b.err
		b.err = nil
		return nil, err
	}
	if len(b.responses) == 0 {
		return &modelbackend.Response{Text: "done", StopReason: "end_turn"}, nil
	}
	r := b.responses[0]
	b.responses = b.responses[1:]
	return r, nil
}

type testServer struct {
	router  chi.Router
	backend *queueBackend
	store   *memstore.Store
}

func newTestServer(t *testing.T, checks map[string]cfhttp.HealthCheck) *testServer {
	t.Helper()
	cfg := config.Defaults()
	cfg.Session.MaxTurns = 2
	store := memstore.NewStore()
	ledger := memstore.NewEventStore()
	content := service.NewContentCache(store, nil, 0)
	backend := &queueBackend{}
	svc := service.NewAssistantService(
		service.NewSessionService(cfg.Session),
		backend,
		service.NewPreviewer(content),
		service.NewExecutor(store, ledger, content, nil),
		ledger,
		cfg,
	)
	r := chi.NewRouter()
	cfhttp.MountRoutes(r, &cfhttp.Handlers{Assistant: svc, Checks: checks})
	return &testServer{router: r, backend: backend, store: store}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) createSession(t *testing.T) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/sessions", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", w.Code, w.Body.String())
	}
	var snap session.Snapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatal(err)
	}
	return snap.ID
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func TestPromptApproveFlow(t *testing.T) {
	s := newTestServer(t, nil)
	s.backend.responses = []*modelbackend.Response{
		{ToolUses: []modelbackend.ToolUse{{
			ToolUseID: "tu-1",
			ToolName:  tool.CreateScript,
			ToolInput: map[string]any{"script_name": "hello.js", "code": "hi", "message": "m"},
		}}},
		{Text: "All set."},
	}
	id := s.createSession(t)

	w := s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/prompt", map[string]string{"prompt": "create hello.js"})
	if w.Code != http.StatusOK {
		t.Fatalf("prompt status = %d: %s", w.Code, w.Body.String())
	}
	res := decode[service.Result](t, w)
	if res.State != session.StateAwaitingApproval || res.Preview == nil {
		t.Fatalf("result = %+v", res)
	}

	w = s.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/pending", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("pending status = %d", w.Code)
	}

	// Approve with no body.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/pending/tu-1/approve", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve status = %d: %s", rec.Code, rec.Body.String())
	}
	res = decode[service.Result](t, rec)
	if res.Text != "All set." || res.State != session.StateTerminal {
		t.Fatalf("result = %+v", res)
	}
	if got, _ := s.store.GetScript(context.Background(), "hello.js"); got != "hi" {
		t.Errorf("stored = %q", got)
	}

	w = s.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/pending", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("pending after approve status = %d, want 404", w.Code)
	}

	w = s.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/audit", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "tool.approved") {
		t.Errorf("audit = %d %s", w.Code, w.Body.String())
	}
}

func TestTurnLimitReturnsConflict(t *testing.T) {
	s := newTestServer(t, nil)
	id := s.createSession(t)
	for range 2 {
		if w := s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/prompt", map[string]string{"prompt": "hi"}); w.Code != http.StatusOK {
			t.Fatalf("prompt status = %d", w.Code)
		}
	}

	w := s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/prompt", map[string]string{"prompt": "third"})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	body := decode[map[string]string](t, w)
	if body["action"] != "start_new_session" {
		t.Errorf("body = %v", body)
	}

	w = s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/reset", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("reset status = %d", w.Code)
	}
	fresh := decode[session.Snapshot](t, w)
	if fresh.ID == id || fresh.TurnCount != 0 {
		t.Errorf("reset snapshot = %+v", fresh)
	}
}

func TestTransportErrorReturnsBadGateway(t *testing.T) {
	s := newTestServer(t, nil)
	s.backend.err = fmt.Errorf("%w: status 500: boom", domain.ErrTransport)
	id := s.createSession(t)

	w := s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/prompt", map[string]string{"prompt": "hi"})
	if w.Code != http.StatusBadGateway || !strings.Contains(w.Body.String(), "boom") {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}

	w = s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/continue", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("continue status = %d: %s", w.Code, w.Body.String())
	}
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t, nil)
	id := s.createSession(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown session", http.MethodGet, "/api/v1/sessions/nope", nil, http.StatusNotFound},
		{"empty prompt", http.MethodPost, "/api/v1/sessions/" + id + "/prompt", map[string]string{"prompt": ""}, http.StatusBadRequest},
		{"reject without pending", http.MethodPost, "/api/v1/sessions/" + id + "/pending/x/reject", nil, http.StatusNotFound},
		{"continue with nothing", http.MethodPost, "/api/v1/sessions/" + id + "/continue", nil, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.method, tt.path, tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/prompt", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d", w.Code)
	}
}

func TestListTools(t *testing.T) {
	s := newTestServer(t, nil)
	w := s.do(t, http.MethodGet, "/api/v1/tools", nil)
	specs := decode[[]tool.Spec](t, w)
	if len(specs) != 7 {
		t.Fatalf("tools = %d, want 7", len(specs))
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, map[string]cfhttp.HealthCheck{
		"postgres": func(context.Context) error { return nil },
	})
	if w := s.do(t, http.MethodGet, "/health", nil); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	s = newTestServer(t, map[string]cfhttp.HealthCheck{
		"nats": func(context.Context) error { return errors.New("disconnected") },
	})
	w := s.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusServiceUnavailable || !strings.Contains(w.Body.String(), "disconnected") {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
}

func TestPreviewEditReturnsDiff(t *testing.T) {
	s := newTestServer(t, nil)
	s.backend.responses = []*modelbackend.Response{
		{ToolUses: []modelbackend.ToolUse{{
			ToolUseID: "tu-1",
			ToolName:  tool.CreateScript,
			ToolInput: map[string]any{"script_name": "hello.js", "code": "hi", "message": "m"},
		}}},
	}
	id := s.createSession(t)
	if w := s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/prompt", map[string]string{"prompt": "create"}); w.Code != http.StatusOK {
		t.Fatalf("prompt status = %d: %s", w.Code, w.Body.String())
	}

	w := s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/pending/tu-1/preview", map[string]string{"content": "hello\nworld\n"})
	if w.Code != http.StatusOK {
		t.Fatalf("preview status = %d: %s", w.Code, w.Body.String())
	}
	preview := decode[service.Preview](t, w)
	if preview.After != "hello\nworld\n" || preview.Added != 2 || !strings.Contains(preview.Diff, "+world") {
		t.Fatalf("preview = %+v", preview)
	}

	w = s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/pending/tu-2/preview", map[string]string{"content": "x"})
	if w.Code != http.StatusConflict {
		t.Errorf("wrong tool use status = %d, want 409", w.Code)
	}
	if _, err := s.store.GetScript(context.Background(), "hello.js"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("preview must not commit: %v", err)
	}
}
