// Package earthengine provides a minimal Google Earth Engine REST client for
// evaluating expression graphs with a service account.
package earthengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://earthengine.googleapis.com"
	// LegacyProject is used when no cloud project is configured.
	LegacyProject = "earthengine-legacy"
)

// Client evaluates Earth Engine expressions.
type Client interface {
	// ComputeValue evaluates expr and returns the raw JSON result.
	ComputeValue(ctx context.Context, expr Expression) (json.RawMessage, error)
}

// APIError is returned when Earth Engine responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("earthengine: HTTP %d %s: %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("earthengine: HTTP %d: %s", e.StatusCode, e.Message)
}

// HTTPStatusCode returns the response status.
func (e *APIError) HTTPStatusCode() int {
	return e.StatusCode
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outgoing compute requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

type httpClient struct {
	project string
	tokens  TokenSource
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates an Earth Engine client billed to project.
func NewClient(project string, tokens TokenSource, opts ...Option) Client {
	if project == "" {
		project = LegacyProject
	}
	c := &httpClient{
		project: project,
		tokens:  tokens,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type computeRequest struct {
	Expression Expression `json:"expression"`
}

type computeResponse struct {
	Result json.RawMessage `json:"result"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (c *httpClient) ComputeValue(ctx context.Context, expr Expression) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "earthengine: rate limit")
		}
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "earthengine: access token")
	}

	body, err := json.Marshal(computeRequest{Expression: expr})
	if err != nil {
		return nil, eris.Wrap(err, "earthengine: marshal request")
	}

	endpoint := fmt.Sprintf("%s/v1/projects/%s/value:compute", c.baseURL, url.PathEscape(c.project))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "earthengine: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "earthengine: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "earthengine: read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(resp.StatusCode, respBody)
	}

	var out computeResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, eris.Wrap(err, "earthengine: decode response")
	}
	return out.Result, nil
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Message: string(body)}
	var er errorResponse
	if json.Unmarshal(body, &er) == nil && er.Error.Message != "" {
		apiErr.Message = er.Error.Message
		apiErr.Status = er.Error.Status
	}
	return apiErr
}
