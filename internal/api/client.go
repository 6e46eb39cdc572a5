// internal/api/client.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	xerrors "codepanel-client/internal/pkg/errors"

	"go.uber.org/zap"
)

// Authenticator supplies the bearer token for outgoing requests and is asked
// to reauthenticate when a request comes back unauthorized. The session
// manager implements it.
type Authenticator interface {
	Token() string
	Reauthenticate(ctx context.Context) error
}

// Client is the JSON HTTP client shared by every CodePanel API consumer.
// The cookie jar carries the server-managed refresh cookie; the client never
// reads or writes it directly.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger

	mu   sync.RWMutex
	auth Authenticator
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		log: logger,
	}
}

// SetAuthenticator wires the session manager in after construction; the two
// depend on each other.
func (c *Client) SetAuthenticator(auth Authenticator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auth = auth
}

func (c *Client) authenticator() Authenticator {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.auth
}

type requestOptions struct {
	noAuthRetry bool
}

type RequestOption func(*requestOptions)

// WithoutAuthRetry exempts a request from the unauthorized-retry path. The
// auth endpoints themselves use it; a 401 there is a real answer, not a stale
// token.
func WithoutAuthRetry() RequestOption {
	return func(o *requestOptions) {
		o.noAuthRetry = true
	}
}

func (c *Client) Get(ctx context.Context, path string, out interface{}, opts ...RequestOption) error {
	return c.do(ctx, http.MethodGet, path, nil, out, opts...)
}

func (c *Client) Post(ctx context.Context, path string, body, out interface{}, opts ...RequestOption) error {
	return c.do(ctx, http.MethodPost, path, body, out, opts...)
}

func (c *Client) Put(ctx context.Context, path string, body, out interface{}, opts ...RequestOption) error {
	return c.do(ctx, http.MethodPut, path, body, out, opts...)
}

func (c *Client) Delete(ctx context.Context, path string, out interface{}, opts ...RequestOption) error {
	return c.do(ctx, http.MethodDelete, path, nil, out, opts...)
}

// do executes a request with at most one reauthenticate-and-replay cycle.
// The attempt counter is explicit: a 401 on the replayed request propagates
// instead of looping.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, opts ...RequestOption) error {
	var options requestOptions
	for _, opt := range opts {
		opt(&options)
	}

	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return xerrors.Wrap(err, "failed to encode request body")
		}
		payload = b
	}

	const maxAttempts = 2
	for attempt := 0; attempt < maxAttempts; attempt++ {
		status, raw, err := c.roundTrip(ctx, method, path, payload)
		if err != nil {
			return err
		}

		if status >= 200 && status < 300 {
			if out == nil || len(raw) == 0 {
				return nil
			}
			if err := json.Unmarshal(raw, out); err != nil {
				return xerrors.Wrap(err, "failed to decode response body")
			}
			return nil
		}

		if status == http.StatusUnauthorized && !options.noAuthRetry && attempt == 0 {
			auth := c.authenticator()
			if auth == nil {
				return c.apiError(status, raw)
			}
			c.log.Warn("request unauthorized, refreshing session",
				zap.String("method", method),
				zap.String("path", path))
			if err := auth.Reauthenticate(ctx); err != nil {
				return xerrors.Wrap(err, "session refresh failed")
			}
			continue
		}

		return c.apiError(status, raw)
	}

	return xerrors.ErrUnauthorized
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, xerrors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth := c.authenticator(); auth != nil {
		if token := auth.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, xerrors.Wrap(err, fmt.Sprintf("%s %s failed", method, path))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, xerrors.Wrap(err, "failed to read response body")
	}

	return resp.StatusCode, raw, nil
}

// errorBody is the server's error envelope; either field may carry the detail.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c *Client) apiError(status int, raw []byte) error {
	var body errorBody
	_ = json.Unmarshal(raw, &body)

	detail := body.Message
	if detail == "" {
		detail = body.Error
	}

	var sentinel error
	switch {
	case status == http.StatusUnauthorized:
		sentinel = xerrors.ErrUnauthorized
	case status == http.StatusForbidden:
		sentinel = xerrors.ErrForbidden
	case status == http.StatusNotFound:
		sentinel = xerrors.ErrNotFound
	case status == http.StatusConflict:
		sentinel = xerrors.ErrConflict
	case status >= 400 && status < 500:
		sentinel = xerrors.ErrBadRequest
	default:
		sentinel = xerrors.ErrServer
	}

	if detail == "" {
		return fmt.Errorf("status %d: %w", status, sentinel)
	}
	return fmt.Errorf("status %d: %s: %w", status, detail, sentinel)
}
