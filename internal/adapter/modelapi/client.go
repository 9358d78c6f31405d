// Package modelapi provides the HTTP client for the tool-calling model backend.
package modelapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lpajunen/aiwebengine-assistant/internal/domain"
	"github.com/lpajunen/aiwebengine-assistant/internal/port/modelbackend"
	"github.com/lpajunen/aiwebengine-assistant/internal/resilience"
)

// maxResponseBytes bounds the size of a single model response.
const maxResponseBytes = 8 << 20

// Client posts conversations to the model backend's chat endpoint.
type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

var _ modelbackend.Backend = (*Client)(nil)

// NewClient creates a client for the chat endpoint at url.
func NewClient(url, apiKey string, timeout time.Duration) *Client {
	return &Client{
		url:    url,
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// Send posts the request and decodes the response. Every failure, including
// an undecodable body, wraps domain.ErrTransport.
func (c *Client) Send(ctx context.Context, in *modelbackend.Request) (*modelbackend.Response, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal model request: %w", err)
	}

	data, err := c.doRequest(ctx, body)
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return nil, fmt.Errorf("%w: %w", domain.ErrTransport, err)
		}
		return nil, err
	}

	var out modelbackend.Response
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", domain.ErrTransport, err)
	}
	return &out, nil
}

func (c *Client) doRequest(ctx context.Context, body []byte) ([]byte, error) {
	var result []byte
	call := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrTransport, err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return fmt.Errorf("%w: read response: %w", domain.ErrTransport, err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("%w: status %d: %s", domain.ErrTransport, resp.StatusCode, bytes.TrimSpace(data))
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
