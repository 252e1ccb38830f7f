// In file: internal/upstream/client.go

// Package upstream forwards chat-completion payloads to the host's
// OpenAI-compatible model endpoint. The gateway treats the payload as an
// opaque JSON object so host-supplied fields survive the round trip
// untouched; only the tool plumbing reads into it.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dileep-u-k/notion-gateway/internal/tools"
)

const defaultTimeout = 120 * time.Second

// Client is the HTTP client for the upstream chat-completion endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a configured upstream client. The base URL is the API
// root (e.g. "https://api.openai.com/v1"); the key may be empty when the
// upstream is an unauthenticated local server.
func NewClient(baseURL, apiKey string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("upstream base URL cannot be empty")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// StatusError reports a non-2xx upstream response so the handler can relay
// the upstream's own status code instead of inventing one.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream error: status %d, body: %s", e.StatusCode, e.Body)
}

// Complete performs one non-streaming chat-completion call and returns the
// decoded response object.
func (c *Client) Complete(ctx context.Context, payload map[string]any) (map[string]any, error) {
	req, err := c.newRequest(ctx, payload)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upstream response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("upstream returned malformed JSON: %w", err)
	}
	return decoded, nil
}

// Stream performs a streaming chat-completion call and hands back the raw
// response for byte-for-byte relaying. The caller owns closing the body.
func (c *Client) Stream(ctx context.Context, payload map[string]any) (*http.Response, error) {
	req, err := c.newRequest(ctx, payload)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream stream request failed: %w", err)
	}
	return resp, nil
}

func (c *Client) newRequest(ctx context.Context, payload map[string]any) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal upstream payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

// ExtractToolCalls pulls the assistant message and its tool calls out of a
// decoded chat-completion response. A response without tool calls returns
// the message (possibly nil) and an empty slice.
func ExtractToolCalls(resp map[string]any) (map[string]any, []tools.ToolCall) {
	choices, _ := resp["choices"].([]any)
	if len(choices) == 0 {
		return nil, nil
	}
	choice, _ := choices[0].(map[string]any)
	message, _ := choice["message"].(map[string]any)
	if message == nil {
		return nil, nil
	}

	rawCalls, ok := message["tool_calls"].([]any)
	if !ok || len(rawCalls) == 0 {
		return message, nil
	}

	// Round-trip through JSON rather than walking the nested maps by hand;
	// the typed structure is what the dispatcher wants anyway.
	encoded, err := json.Marshal(rawCalls)
	if err != nil {
		return message, nil
	}
	var calls []tools.ToolCall
	if err := json.Unmarshal(encoded, &calls); err != nil {
		return message, nil
	}
	return message, calls
}
