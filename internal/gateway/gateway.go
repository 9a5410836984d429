// Package gateway is the client for the job-tracker backend API. Every call
// returns the backend's normalized {success, message, data} envelope. The
// client does not retry, cache or queue.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"

	"github.com/kalambet/jobtrail/internal/collection"
	"github.com/kalambet/jobtrail/internal/session"
)

// ErrAuthRequired is returned before any I/O when the context carries no
// valid session, and when the backend rejects the token.
var ErrAuthRequired = session.ErrAuthRequired

// DefaultTimeout bounds a single request when the caller configures none.
const DefaultTimeout = 30 * time.Second

const maxResponseBytes = 10 << 20

// Request describes one backend call.
type Request struct {
	Path   string
	Method string
	Header http.Header
	// Body is sent as is when it is []byte or io.Reader and JSON-encoded
	// otherwise.
	Body any
	// Anonymous calls (login, register) do not need a session.
	Anonymous bool
}

// Envelope is the normalized reply of every backend call.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
}

// Outcome converts e to what the mutation controller acts on.
func (e Envelope[T]) Outcome() collection.Outcome {
	return collection.Outcome{Success: e.Success, Message: e.Message}
}

// Client talks to the backend over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Tests use it to plug
// in an httptest server's client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger sets the logger (slog.Default otherwise).
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("gateway: base URL is required")
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout, Jar: jar},
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// Do performs req and returns the envelope with its data left undecoded.
func (c *Client) Do(ctx context.Context, req Request) (Envelope[json.RawMessage], error) {
	return call[json.RawMessage](ctx, c, req)
}

func call[T any](ctx context.Context, c *Client, req Request) (Envelope[T], error) {
	var zero Envelope[T]

	var token string
	if !req.Anonymous {
		s, err := session.Require(ctx)
		if err != nil {
			return zero, err
		}
		token = s.Token
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	body, contentType, err := encodeBody(req.Body)
	if err != nil {
		return zero, fmt.Errorf("%s %s: encoding body: %w", method, req.Path, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.url(req.Path), body)
	if err != nil {
		return zero, fmt.Errorf("creating request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if contentType != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", uuid.New().String())
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return zero, fmt.Errorf("%s %s: %w", method, req.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return zero, fmt.Errorf("%s %s: reading response: %w", method, req.Path, err)
	}
	c.logger.Debug("backend call",
		"method", method,
		"path", req.Path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"request_id", httpReq.Header.Get("X-Request-ID"),
	)

	// A rejected sign-in is a failure envelope, not a lost session.
	if !req.Anonymous && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
		return zero, fmt.Errorf("%s %s: backend returned %d: %w", method, req.Path, resp.StatusCode, ErrAuthRequired)
	}

	env, decodeErr := decodeEnvelope[T](raw, resp.StatusCode < 300)
	if resp.StatusCode >= 300 {
		if decodeErr != nil || env.Message == "" {
			env.Message = fmt.Sprintf("backend returned %d", resp.StatusCode)
		}
		env.Success = false
		return env, nil
	}
	if decodeErr != nil {
		return zero, fmt.Errorf("%s %s: decoding response: %w", method, req.Path, decodeErr)
	}
	return env, nil
}

// decodeEnvelope parses raw. A 2xx body without a success flag counts as
// success; an empty 2xx body is a bare success.
func decodeEnvelope[T any](raw []byte, ok bool) (Envelope[T], error) {
	var wire struct {
		Success *bool           `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return Envelope[T]{Success: ok}, nil
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Envelope[T]{Success: ok}, err
	}

	env := Envelope[T]{Success: ok, Message: wire.Message}
	if wire.Success != nil {
		env.Success = *wire.Success
	}
	if len(wire.Data) > 0 && string(wire.Data) != "null" {
		if err := json.Unmarshal(wire.Data, &env.Data); err != nil {
			return env, fmt.Errorf("decoding data: %w", err)
		}
	}
	return env, nil
}

func encodeBody(body any) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return bytes.NewReader(b), "", nil
	case io.Reader:
		return b, "", nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, "", err
	}
	return bytes.NewReader(data), "application/json", nil
}

func (c *Client) url(path string) string {
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}
