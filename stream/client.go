// Package stream runs agent chat streams: one controller per send, a
// registry multiplexing independent per-feature streams, and the
// notification bridge that surfaces completions outside an open panel.
package stream

import (
	"context"
	"fmt"
	"io"
	"time"

	req "github.com/imroc/req/v3"
)

// ChatMessage is one turn of the outbound conversation history.
type ChatMessage struct {
	Role   string   `json:"role"`
	Text   string   `json:"text"`
	Images []string `json:"images,omitempty"`
}

// SendRequest is the payload for starting an agent stream on a feature.
type SendRequest struct {
	Messages    []ChatMessage `json:"messages"`
	CurrentSpec string        `json:"currentSpec,omitempty"`
	Thinking    bool          `json:"thinking,omitempty"`
	ViewMode    string        `json:"viewMode,omitempty"`
}

// AgentClient opens and stops agent streams for features.
type AgentClient interface {
	// OpenStream starts a send and returns the raw SSE body. The caller
	// owns the body and must close it.
	OpenStream(ctx context.Context, featureID string, sr SendRequest) (io.ReadCloser, error)
	// SignalStop tells the backend to abort a feature's in-flight send.
	SignalStop(ctx context.Context, featureID string) error
}

// HTTPError reports a non-2xx response from the agent backend.
type HTTPError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("agent backend returned %d: %s", e.StatusCode, e.Body)
}

// HTTPAgentClient talks to the agent backend over HTTP.
type HTTPAgentClient struct {
	client  *req.Client
	baseURL string
}

// HTTPClientOption customizes an HTTPAgentClient.
type HTTPClientOption func(*HTTPAgentClient)

// WithTimeout sets the per-request timeout for non-streaming calls.
func WithTimeout(d time.Duration) HTTPClientOption {
	return func(c *HTTPAgentClient) {
		c.client.SetTimeout(d)
	}
}

// NewHTTPAgentClient creates a client for the agent backend at baseURL.
func NewHTTPAgentClient(baseURL string, opts ...HTTPClientOption) *HTTPAgentClient {
	c := &HTTPAgentClient{
		client:  req.C(),
		baseURL: baseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OpenStream POSTs the send request and hands back the streaming body.
func (c *HTTPAgentClient) OpenStream(ctx context.Context, featureID string, sr SendRequest) (io.ReadCloser, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Accept", "text/event-stream").
		SetBodyJsonMarshal(sr).
		DisableAutoReadResponse().
		Post(fmt.Sprintf("%s/api/features/%s/chat", c.baseURL, featureID))
	if err != nil {
		return nil, fmt.Errorf("open agent stream: %w", err)
	}
	if resp.IsErrorState() {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return resp.Body, nil
}

// SignalStop asks the backend to abort the feature's in-flight send.
func (c *HTTPAgentClient) SignalStop(ctx context.Context, featureID string) error {
	resp, err := c.client.R().
		SetContext(ctx).
		Post(fmt.Sprintf("%s/api/features/%s/chat/stop", c.baseURL, featureID))
	if err != nil {
		return fmt.Errorf("signal stop: %w", err)
	}
	if resp.IsErrorState() {
		return &HTTPError{StatusCode: resp.StatusCode, Body: resp.String()}
	}
	return nil
}
