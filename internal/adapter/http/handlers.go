package http

import (
	"context"
	"net/http"
	"time"

	"github.com/lpajunen/aiwebengine-assistant/internal/domain/event"
	"github.com/lpajunen/aiwebengine-assistant/internal/domain/tool"
	"github.com/lpajunen/aiwebengine-assistant/internal/logger"
	"github.com/lpajunen/aiwebengine-assistant/internal/service"
)

const maxRequestBodySize = 4 << 20 // 4 MB, scripts and assets travel in request bodies

// HealthCheck reports the state of one dependency.
type HealthCheck func(ctx context.Context) error

// Handlers holds the services behind the HTTP API.
type Handlers struct {
	Assistant *service.AssistantService
	Checks    map[string]HealthCheck
	BodyLimit int64
	// SessionLimiter, when set, wraps every /sessions/{id} route.
	SessionLimiter func(http.Handler) http.Handler
}

func (h *Handlers) bodyLimit() int64 {
	if h.BodyLimit > 0 {
		return h.BodyLimit
	}
	return maxRequestBodySize
}

func sessionContext(r *http.Request) (context.Context, string) {
	id := urlParam(r, "id")
	return logger.WithSessionID(r.Context(), id), id
}

// writeResult writes the loop result, or the mapped error when err is set.
func writeResult(w http.ResponseWriter, res *service.Result, err error) {
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CreateSession handles POST /api/v1/sessions
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	snap := h.Assistant.CreateSession(r.Context())
	writeJSON(w, http.StatusCreated, snap)
}

// GetSession handles GET /api/v1/sessions/{id}
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	ctx, id := sessionContext(r)
	snap, err := h.Assistant.Sessions().Get(ctx, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Prompt handles POST /api/v1/sessions/{id}/prompt
func (h *Handlers) Prompt(w http.ResponseWriter, r *http.Request) {
	ctx, id := sessionContext(r)
	req, ok := readJSON[service.PromptRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	res, err := h.Assistant.Prompt(ctx, id, req)
	writeResult(w, res, err)
}

// Continue handles POST /api/v1/sessions/{id}/continue
func (h *Handlers) Continue(w http.ResponseWriter, r *http.Request) {
	ctx, id := sessionContext(r)
	res, err := h.Assistant.Continue(ctx, id)
	writeResult(w, res, err)
}

// GetPending handles GET /api/v1/sessions/{id}/pending
func (h *Handlers) GetPending(w http.ResponseWriter, r *http.Request) {
	ctx, id := sessionContext(r)
	view, err := h.Assistant.Pending(ctx, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type approveRequest struct {
	// Content replaces the proposed content when the operator edited the preview.
	Content *string `json:"content,omitempty"`
}

// Approve handles POST /api/v1/sessions/{id}/pending/{toolUseId}/approve
func (h *Handlers) Approve(w http.ResponseWriter, r *http.Request) {
	ctx, id := sessionContext(r)
	req, ok := readOptionalJSON[approveRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	res, err := h.Assistant.Approve(ctx, id, urlParam(r, "toolUseId"), req.Content)
	writeResult(w, res, err)
}

type previewRequest struct {
	Content string `json:"content"`
}

// PreviewEdit handles POST /api/v1/sessions/{id}/pending/{toolUseId}/preview
func (h *Handlers) PreviewEdit(w http.ResponseWriter, r *http.Request) {
	ctx, id := sessionContext(r)
	req, ok := readJSON[previewRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	preview, err := h.Assistant.PreviewEdit(ctx, id, urlParam(r, "toolUseId"), req.Content)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// Reject handles POST /api/v1/sessions/{id}/pending/{toolUseId}/reject
func (h *Handlers) Reject(w http.ResponseWriter, r *http.Request) {
	ctx, id := sessionContext(r)
	res, err := h.Assistant.Reject(ctx, id, urlParam(r, "toolUseId"))
	writeResult(w, res, err)
}

// ResetSession handles POST /api/v1/sessions/{id}/reset
func (h *Handlers) ResetSession(w http.ResponseWriter, r *http.Request) {
	ctx, id := sessionContext(r)
	snap, err := h.Assistant.Sessions().Reset(ctx, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// GetAudit handles GET /api/v1/sessions/{id}/audit
func (h *Handlers) GetAudit(w http.ResponseWriter, r *http.Request) {
	ctx, id := sessionContext(r)
	events, err := h.Assistant.Audit(ctx, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if events == nil {
		events = []event.SessionEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// ListTools handles GET /api/v1/tools
func (h *Handlers) ListTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, tool.Catalog())
}

// Health handles GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.Checks))
	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	writeJSON(w, status, map[string]any{
		"status":   overall,
		"sessions": h.Assistant.Sessions().Len(),
		"checks":   checks,
	})
}
