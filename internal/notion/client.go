// In file: internal/notion/client.go

// Package notion is the execution client for the Notion API: it turns an
// action declaration plus model-supplied arguments into one authenticated
// HTTP request and collapses every outcome into a Normalized Result.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dileep-u-k/notion-gateway/internal/actions"
	"github.com/dileep-u-k/notion-gateway/internal/result"
)

const (
	// DefaultBaseURL is the public Notion API root.
	DefaultBaseURL = "https://api.notion.com/v1"

	// notionVersion is the API version header Notion requires on every call.
	notionVersion = "2022-06-28"

	// defaultTimeout bounds a single execution attempt. Exceeding it is
	// reported as a network error; there are no retries.
	defaultTimeout = 30 * time.Second

	// maxErrorBodyBytes caps how much of an upstream error body is copied
	// into the model-facing message.
	maxErrorBodyBytes = 2048
)

// Client issues Notion API calls. It holds no credential state: the token is
// an argument to every call, so one shared client serves all users safely.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a client rooted at baseURL (DefaultBaseURL when empty)
// with a bounded per-call timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Execute performs exactly one attempt of the declared action.
//
// Wire mapping: arguments named in the declaration's path template fill the
// template; remaining arguments become query parameters for GET requests and
// the JSON body otherwise. The credential rides in the Authorization header
// and never appears in any returned message.
//
// Every failure mode maps to an error envelope: transport failures and
// timeouts to network_error, non-2xx statuses to service_error with the
// status and body text, non-JSON success bodies to response_format_error.
// The response body is always closed, whatever the outcome.
func (c *Client) Execute(ctx context.Context, decl *actions.Declaration, args map[string]any, token string) result.Normalized {
	req, err := c.buildRequest(ctx, decl, args, token)
	if err != nil {
		return result.Errorf(result.KindValidationError, "failed to build %s request: %v", decl.Name, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return result.Errorf(result.KindNetworkError, "Notion API request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return result.Errorf(result.KindNetworkError, "failed to read Notion API response: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return result.ServiceError(resp.StatusCode, truncate(string(body), maxErrorBodyBytes))
	}

	if !json.Valid(body) {
		return result.Errorf(result.KindResponseFormatError, "Notion API returned a non-JSON body for %s", decl.Name)
	}
	return result.Success(json.RawMessage(body))
}

// buildRequest assembles the HTTP request for one action invocation.
func (c *Client) buildRequest(ctx context.Context, decl *actions.Declaration, args map[string]any, token string) (*http.Request, error) {
	pathParams := make(map[string]bool, 2)
	path := decl.Path
	for _, name := range decl.PathParams() {
		value, ok := args[name]
		if !ok {
			return nil, fmt.Errorf("missing path parameter %q", name)
		}
		pathParams[name] = true
		path = strings.ReplaceAll(path, "{"+name+"}", url.PathEscape(fmt.Sprintf("%v", value)))
	}

	rest := make(map[string]any, len(args))
	for name, value := range args {
		if pathParams[name] || value == nil {
			continue
		}
		rest[name] = value
	}

	target := c.baseURL + path
	var body io.Reader

	if decl.Method == http.MethodGet {
		if len(rest) > 0 {
			query := url.Values{}
			for name, value := range rest {
				query.Set(name, fmt.Sprintf("%v", value))
			}
			target += "?" + query.Encode()
		}
	} else {
		payload, err := json.Marshal(rest)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, decl.Method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Notion-Version", notionVersion)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
