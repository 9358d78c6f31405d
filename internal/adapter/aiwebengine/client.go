// Package aiwebengine provides the HTTP client for the aiwebengine server that
// persists scripts and assets.
package aiwebengine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lpajunen/aiwebengine-assistant/internal/domain"
	"github.com/lpajunen/aiwebengine-assistant/internal/port/backingstore"
	"github.com/lpajunen/aiwebengine-assistant/internal/resilience"
)

const defaultMimeType = "application/octet-stream"

// Client talks to the aiwebengine script and asset API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

var _ backingstore.Store = (*Client)(nil)

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls. Not-found
// answers do not count as failures.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// APIError is a non-success status answered by the server. A 404 also
// matches domain.ErrNotFound.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.StatusCode == http.StatusNotFound {
		return domain.ErrNotFound.Error()
	}
	return fmt.Sprintf("aiwebengine API error %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return domain.ErrNotFound
	}
	return nil
}

// IsNotFound reports whether err should be ignored by the breaker.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

// assetUpload is the JSON body of an asset upsert.
type assetUpload struct {
	AssetPath string `json:"asset_path"`
	MimeType  string `json:"mimetype"`
	Content   string `json:"content"` // base64
}

// GetScript returns the source of the named script.
func (c *Client) GetScript(ctx context.Context, name string) (string, error) {
	data, err := c.doRequest(ctx, http.MethodGet, scriptPath(name), "", nil)
	if err != nil {
		return "", fmt.Errorf("get script %s: %w", name, err)
	}
	return string(data), nil
}

// UpsertScript writes the full source under name.
func (c *Client) UpsertScript(ctx context.Context, name, content string) error {
	if _, err := c.doRequest(ctx, http.MethodPost, scriptPath(name), "application/javascript", []byte(content)); err != nil {
		return fmt.Errorf("upsert script %s: %w", name, err)
	}
	return nil
}

// DeleteScript removes the named script.
func (c *Client) DeleteScript(ctx context.Context, name string) error {
	if _, err := c.doRequest(ctx, http.MethodDelete, scriptPath(name), "", nil); err != nil {
		return fmt.Errorf("delete script %s: %w", name, err)
	}
	return nil
}

// GetAsset returns the raw content of the asset at p.
func (c *Client) GetAsset(ctx context.Context, p string) ([]byte, error) {
	data, err := c.doRequest(ctx, http.MethodGet, assetPath(p), "", nil)
	if err != nil {
		return nil, fmt.Errorf("get asset %s: %w", p, err)
	}
	return data, nil
}

// UpsertAsset uploads content base64-encoded with a mimetype derived from
// the path extension.
func (c *Client) UpsertAsset(ctx context.Context, p string, content []byte) error {
	body, err := json.Marshal(assetUpload{
		AssetPath: normalizeAssetPath(p),
		MimeType:  MimeType(p),
		Content:   base64.StdEncoding.EncodeToString(content),
	})
	if err != nil {
		return fmt.Errorf("marshal asset %s: %w", p, err)
	}
	if _, err := c.doRequest(ctx, http.MethodPost, "/api/assets", "application/json", body); err != nil {
		return fmt.Errorf("upsert asset %s: %w", p, err)
	}
	return nil
}

// DeleteAsset removes the asset at p.
func (c *Client) DeleteAsset(ctx context.Context, p string) error {
	if _, err := c.doRequest(ctx, http.MethodDelete, assetPath(p), "", nil); err != nil {
		return fmt.Errorf("delete asset %s: %w", p, err)
	}
	return nil
}

// MimeType guesses the content type of an asset from its extension.
func MimeType(p string) string {
	if t := mime.TypeByExtension(path.Ext(p)); t != "" {
		return t
	}
	return defaultMimeType
}

func scriptPath(name string) string {
	return "/api/scripts/" + escapeSegments(strings.TrimLeft(name, "/"))
}

func assetPath(p string) string {
	return "/api/assets" + escapeSegments(normalizeAssetPath(p))
}

// escapeSegments escapes each slash-separated segment of p, keeping the slashes.
func escapeSegments(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

func normalizeAssetPath(p string) string {
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}
	return p
}

func (c *Client) doRequest(ctx context.Context, method, p, contentType string, body []byte) ([]byte, error) {
	var result []byte
	call := func() error {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+p, bodyReader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode >= 400 {
			return &APIError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
		}

		result = data
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(call); err != nil {
			return nil, err
		}
		return result, nil
	}

	if err := call(); err != nil {
		return nil, err
	}
	return result, nil
}
