// Package client is the typed HTTP+JSON client for the attendance backend.
// Every call returns either a decoded payload or a *Error; nothing is retried.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/campusattend/console/internal/metrics"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 8 << 20

// Config configures a Client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	Headers   map[string]string
	UserAgent string
}

// Client issues requests against one backend base URL.
type Client struct {
	baseURL   string
	headers   map[string]string
	userAgent string
	http      *http.Client
	logger    zerolog.Logger
	metrics   *metrics.Metrics
}

// New creates a client.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("backend base URL is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		headers:   cfg.Headers,
		userAgent: cfg.UserAgent,
		http:      &http.Client{Timeout: timeout},
		logger:    logger.With().Str("component", "client").Logger(),
	}, nil
}

// SetMetrics attaches request instrumentation.
func (c *Client) SetMetrics(m *metrics.Metrics) {
	c.metrics = m
}

// BaseURL returns the base URL requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// WithBaseURL returns a client for another base URL that shares this
// client's transport, headers and instrumentation.
func (c *Client) WithBaseURL(base string) *Client {
	clone := *c
	clone.baseURL = strings.TrimRight(base, "/")
	return &clone
}

// Do sends one request and decodes the envelope. The returned error is
// always a *Error.
func (c *Client) Do(ctx context.Context, method, path string, body interface{}) (*Envelope, error) {
	start := time.Now()
	env, err := c.do(ctx, method, path, body)

	outcome := "ok"
	if kind, ok := KindOf(err); ok {
		outcome = kind.String()
	}
	c.metrics.ObserveRequest(method, outcome, time.Since(start))

	if err != nil {
		c.logger.Warn().
			Err(err).
			Str("method", method).
			Str("path", path).
			Dur("duration", time.Since(start)).
			Msg("Backend request failed")
	} else {
		c.logger.Debug().
			Str("method", method).
			Str("path", path).
			Dur("duration", time.Since(start)).
			Msg("Backend request")
	}

	return env, err
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) (*Envelope, error) {
	fail := func(kind Kind, status int, err error) *Error {
		return &Error{Kind: kind, Method: method, Path: path, StatusCode: status, Err: err}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fail(InvalidResponse, 0, fmt.Errorf("failed to marshal request: %w", err))
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fail(NetworkFailure, 0, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fail(NetworkFailure, 0, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fail(NetworkFailure, resp.StatusCode, fmt.Errorf("failed to read response: %w", err))
	}

	env, parseErr := parseEnvelope(data)

	if resp.StatusCode >= 400 {
		cerr := fail(ServerError, resp.StatusCode, nil)
		if env != nil {
			cerr.Code = env.Error
			cerr.Message = env.Message
		}
		if cerr.Code == "" && cerr.Message == "" {
			cerr.Message = http.StatusText(resp.StatusCode)
		}
		return nil, cerr
	}

	if parseErr != nil {
		return nil, fail(InvalidResponse, resp.StatusCode, parseErr)
	}

	if !env.OK {
		return nil, &Error{
			Kind:       ServerError,
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Code:       env.Error,
			Message:    env.Message,
		}
	}

	return env, nil
}

// get issues a GET and decodes one payload field.
func (c *Client) get(ctx context.Context, path, key string, out interface{}) error {
	env, err := c.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err := env.Decode(key, out); err != nil {
		return &Error{Kind: InvalidResponse, Method: http.MethodGet, Path: path, Err: err}
	}
	return nil
}

// send issues a write whose payload is ignored.
func (c *Client) send(ctx context.Context, method, path string, body interface{}) error {
	_, err := c.Do(ctx, method, path, body)
	return err
}
