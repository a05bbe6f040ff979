// Package apiclient is the HTTP transport of the session client. It talks
// JSON to a fixed API origin, forwards the session cookie on every request
// and turns every failure into a *domain.APIError.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/tlobni/session-core/internal/core/domain"
	"github.com/tlobni/session-core/internal/core/ports"
	"github.com/tlobni/session-core/internal/metrics"
)

const (
	DefaultBaseURL       = "http://localhost:8080/api"
	DefaultTimeout       = 15 * time.Second
	DefaultSessionCookie = "connect.sid"

	maxBodyBytes = 1 << 20
	mimeJSON     = "application/json"
)

// Config holds the transport settings.
type Config struct {
	// BaseURL is the API origin including any path prefix, e.g. https://host/api.
	BaseURL string
	// Timeout bounds every request. Defaults to DefaultTimeout.
	Timeout time.Duration
	// SessionCookie is the name of the server's session cookie.
	SessionCookie string
}

// Client implements ports.Transport over net/http with a cookie jar.
type Client struct {
	base   *url.URL
	cookie string
	jar    *sessionJar
	http   *http.Client
	log    zerolog.Logger
}

var _ ports.Transport = (*Client)(nil)

type Option func(*Client)

func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithRoundTripper replaces the underlying http.RoundTripper.
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(c *Client) { c.http.Transport = rt }
}

// New builds a Client. Empty config fields take their defaults.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.SessionCookie == "" {
		cfg.SessionCookie = DefaultSessionCookie
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("parse base url: unsupported scheme %q", base.Scheme)
	}

	jar, err := newSessionJar()
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	c := &Client{
		base:   base,
		cookie: cfg.SessionCookie,
		jar:    jar,
		http:   &http.Client{Jar: jar, Timeout: cfg.Timeout},
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Request implements ports.Transport.
func (c *Client) Request(ctx context.Context, method, path string, body, out any) error {
	start := time.Now()

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		metrics.ClientRequestsTotal.WithLabelValues(method, path, "error").Inc()
		return c.fail(method, path, 0, setupError(err))
	}

	resp, err := c.http.Do(req)
	metrics.ClientRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ClientRequestsTotal.WithLabelValues(method, path, "error").Inc()
		return c.fail(method, path, 0, transportError(err))
	}
	defer resp.Body.Close()

	metrics.ClientRequestsTotal.WithLabelValues(method, path, strconv.Itoa(resp.StatusCode)).Inc()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return c.fail(method, path, resp.StatusCode, transportError(err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.fail(method, path, resp.StatusCode, responseError(resp.StatusCode, data))
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("api request")

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return c.fail(method, path, resp.StatusCode, &domain.APIError{
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("decode response: %v", err),
			Err:     err,
		})
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mimeJSON)
	req.Header.Set("Accept", mimeJSON)
	return req, nil
}

func (c *Client) fail(method, path string, status int, apiErr *domain.APIError) error {
	ev := c.log.Warn().
		Str("method", method).
		Str("path", path).
		Str("error", apiErr.Message)
	if status != 0 {
		ev = ev.Int("status", status)
	}
	if apiErr.Timeout {
		ev = ev.Bool("timeout", true)
	}
	ev.Msg("api request failed")
	return apiErr
}

// SessionToken implements ports.Transport.
func (c *Client) SessionToken() (string, bool) {
	for _, ck := range c.jar.Cookies(c.base) {
		if ck.Name == c.cookie && ck.Value != "" {
			return ck.Value, true
		}
	}
	return "", false
}

// SetSessionToken implements ports.Transport.
func (c *Client) SetSessionToken(token string) {
	if token == "" {
		return
	}
	c.jar.SetCookies(c.base, []*http.Cookie{{
		Name:  c.cookie,
		Value: token,
		Path:  "/",
	}})
}

// ClearSession implements ports.Transport.
func (c *Client) ClearSession() {
	if err := c.jar.reset(); err != nil {
		c.log.Error().Err(err).Msg("reset cookie jar")
	}
}

// ── Error normalization ───────────────────────────────────────────────────────

// errorBody accepts {"message": "..."}, {"error": "..."} and
// {"error": {"message": "..."}}.
type errorBody struct {
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
}

func serverMessage(data []byte) string {
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	if len(body.Error) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(body.Error, &s); err == nil {
		return s
	}
	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body.Error, &nested); err == nil {
		return nested.Message
	}
	return ""
}

func responseError(status int, data []byte) *domain.APIError {
	return &domain.APIError{
		Status: status,
		Message: firstNonEmpty(
			serverMessage(data),
			fmt.Sprintf("request failed with status code %d", status),
		),
	}
}

func transportError(err error) *domain.APIError {
	return &domain.APIError{
		Message: firstNonEmpty(err.Error()),
		Timeout: isTimeout(err),
		Err:     err,
	}
}

func setupError(err error) *domain.APIError {
	return &domain.APIError{
		Message: firstNonEmpty(err.Error()),
		Err:     err,
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func firstNonEmpty(candidates ...string) string {
	for _, s := range candidates {
		if s != "" {
			return s
		}
	}
	return domain.GenericErrorMessage
}
