// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultReadSize is the size of each body read.
	DefaultReadSize = 4 * 1024

	// maxErrorBody bounds how much of a failed response body is kept.
	maxErrorBody = 64 * 1024
)

// sharedStreamingClient is used for every stream unless WithHTTPClient
// overrides it. It has no Timeout: a stream lives until the server closes
// it or the caller cancels the context.
var sharedStreamingClient = &http.Client{
	Transport: &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	},
}

// =============================================================================
// ERRORS
// =============================================================================

// TransportError reports a stream that failed below the event level: either
// the server answered with a non-2xx status (Status and Body set) or the
// connection broke mid-stream (Cause set).
type TransportError struct {
	Status int
	Body   string
	Cause  error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Cause != nil {
		if e.Status != 0 {
			return fmt.Sprintf("stream failed (HTTP %d): %v", e.Status, e.Cause)
		}
		return fmt.Sprintf("stream failed: %v", e.Cause)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// Unwrap returns the underlying network error, if any.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// IsStatus reports whether err is a TransportError for a non-2xx response.
func IsStatus(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Cause == nil && te.Status != 0
}

// =============================================================================
// HANDLERS
// =============================================================================

// Handlers receive the lifecycle of one stream. Every field is optional.
// Callbacks run on the goroutine that called Stream or Do, in read order.
type Handlers struct {
	// OnOpen fires once the server accepted the request with a 2xx status.
	OnOpen func()

	// OnEvent receives every event except "done".
	OnEvent func(Event)

	// OnDone receives the first "done" event. Later ones are dropped.
	OnDone func(Event)

	// OnError receives a *TransportError. It never fires for cancellation.
	OnError func(error)

	// OnClose fires when the server ends the body, whether or not a "done"
	// event was seen. It does not fire after OnError or cancellation.
	OnClose func()
}

// =============================================================================
// CLIENT
// =============================================================================

// Client issues streaming requests. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	headers    http.Header
	readSize   int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the shared streaming client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers.Add(key, value) }
}

// WithReadSize sets the size of each body read.
func WithReadSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.readSize = n
		}
	}
}

// NewClient creates a streaming client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: sharedStreamingClient,
		logger:     slog.Default(),
		headers:    make(http.Header),
		readSize:   DefaultReadSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stream POSTs body as JSON to url and dispatches the event stream to h.
// It blocks until the stream ends, fails or ctx is cancelled.
//
// The returned error is the one given to OnError, ctx.Err() after a
// cancellation, or nil after a normal close.
func (c *Client) Stream(ctx context.Context, url string, body any, h Handlers, headers ...http.Header) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for _, extra := range headers {
		for k, vs := range extra {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
	}

	return c.Do(ctx, req, h)
}

// Do sends a prepared request and dispatches its event stream to h. It is
// the building block for non-JSON bodies such as multipart uploads.
func (c *Client) Do(ctx context.Context, req *http.Request, h Handlers) error {
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	c.logger.Debug("sse request", "method", req.Method, "url", req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return c.fail(h, &TransportError{Cause: err})
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return c.fail(h, &TransportError{Status: resp.StatusCode, Body: string(raw)})
	}

	if h.OnOpen != nil {
		h.OnOpen()
	}

	return c.readLoop(ctx, resp, h)
}

// readLoop reads the body chunk by chunk and dispatches events until EOF.
func (c *Client) readLoop(ctx context.Context, resp *http.Response, h Handlers) error {
	var (
		dec      Decoder
		doneSeen bool
		buf      = make([]byte, c.readSize)
	)

	dispatch := func(events []Event) bool {
		for _, ev := range events {
			if ctx.Err() != nil {
				return false
			}
			if ev.Type == TypeDone {
				if doneSeen {
					c.logger.Debug("sse duplicate done dropped", "url", resp.Request.URL.String())
					continue
				}
				doneSeen = true
				if h.OnDone != nil {
					h.OnDone(ev)
				}
				continue
			}
			if h.OnEvent != nil {
				h.OnEvent(ev)
			}
		}
		return true
	}

	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if !dispatch(dec.Feed(buf[:n])) {
				return ctx.Err()
			}
		}
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !errors.Is(err, io.EOF) {
			return c.fail(h, &TransportError{Status: resp.StatusCode, Cause: err})
		}

		if !dispatch(dec.Flush()) {
			return ctx.Err()
		}
		c.logger.Debug("sse stream closed", "url", resp.Request.URL.String(), "done", doneSeen)
		if h.OnClose != nil {
			h.OnClose()
		}
		return nil
	}
}

func (c *Client) fail(h Handlers, err *TransportError) error {
	c.logger.Warn("sse transport error", "status", err.Status, "body", err.Body, "error", err.Cause)
	if h.OnError != nil {
		h.OnError(err)
	}
	return err
}
