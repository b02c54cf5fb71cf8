// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transcribe streams the transcript of an uploaded audio or video
// file.
//
// The upload is a multipart POST with a single "file" field. The response
// uses the same frame grammar as the query stream, with "chunk", "done" and
// "error" events. Chunks are classified before they reach the caller:
//
//   - a short status ending in "..." is progress
//   - a chunk prefixed with "FINAL:" is the corrected full transcript
//   - anything else extends the partial transcript
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf16"

	"github.com/jeranaias/nisa-chat/internal/sse"
)

// Event types of the transcription stream.
const (
	EventChunk = "chunk"
	EventDone  = "done"
	EventError = "error"
)

const (
	// FinalPrefix marks the chunk carrying the complete transcript.
	FinalPrefix = "FINAL:"

	// progressMaxUnits bounds the length of a status chunk, in UTF-16 code
	// units as the backend measures it.
	progressMaxUnits = 50
)

// =============================================================================
// CLASSIFICATION
// =============================================================================

// ChunkKind says how a chunk is routed.
type ChunkKind int

const (
	ChunkPartial ChunkKind = iota
	ChunkProgress
	ChunkFinal
)

// Classify routes the data of a chunk event. For ChunkFinal the returned
// text has the prefix removed; otherwise it is data unchanged.
func Classify(data string) (ChunkKind, string) {
	if utf16Len(data) < progressMaxUnits && strings.HasSuffix(data, "...") {
		return ChunkProgress, data
	}
	if rest, ok := strings.CutPrefix(data, FinalPrefix); ok {
		return ChunkFinal, rest
	}
	return ChunkPartial, data
}

// utf16Len counts UTF-16 code units. Runes outside the BMP count twice.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}

// =============================================================================
// HANDLERS
// =============================================================================

// Handlers receive a transcription. Every field is optional; callbacks run
// on the goroutine that called Transcribe.
type Handlers struct {
	OnProgress func(status string)

	// OnChunk receives partial text to append, or with final set the full
	// transcript that replaces everything received so far.
	OnChunk func(text string, final bool)

	OnComplete func()

	// OnError receives server "error" events and transport failures.
	OnError func(error)
}

// =============================================================================
// CLIENT
// =============================================================================

// Client uploads files for transcription.
type Client struct {
	stream *sse.Client
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithStreamClient replaces the underlying event-stream client.
func WithStreamClient(s *sse.Client) Option {
	return func(c *Client) { c.stream = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a transcription client.
func NewClient(opts ...Option) *Client {
	c := &Client{logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	if c.stream == nil {
		c.stream = sse.NewClient(sse.WithLogger(c.logger))
	}
	return c
}

// TranscribeFile opens path and streams its transcript from url.
func (c *Client) TranscribeFile(ctx context.Context, url, path string, h Handlers) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return c.Transcribe(ctx, url, filepath.Base(path), f, h)
}

// Transcribe uploads r as filename and dispatches the transcript stream to
// h. It blocks until the stream ends, fails or ctx is cancelled; after a
// cancellation it returns ctx.Err() without calling h.OnError.
func (c *Client) Transcribe(ctx context.Context, url, filename string, r io.Reader, h Handlers) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", filename)
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		pr.Close()
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	c.logger.Info("transcription started", "url", url, "file", filename)

	var streamErr error
	err = c.stream.Do(ctx, req, sse.Handlers{
		OnEvent: func(ev sse.Event) { c.dispatch(ev, h, &streamErr) },
		OnDone: func(sse.Event) {
			c.logger.Info("transcription complete", "file", filename)
			if h.OnComplete != nil {
				h.OnComplete()
			}
		},
		OnError: func(err error) {
			if h.OnError != nil {
				h.OnError(err)
			}
		},
	})
	// Unblock the writer if the request ended before the body was consumed.
	pr.Close()

	if err != nil {
		return err
	}
	return streamErr
}

func (c *Client) dispatch(ev sse.Event, h Handlers, streamErr *error) {
	switch ev.Type {
	case EventChunk:
		kind, text := Classify(ev.Data)
		switch kind {
		case ChunkProgress:
			if h.OnProgress != nil {
				h.OnProgress(text)
			}
		case ChunkFinal:
			if h.OnChunk != nil {
				h.OnChunk(text, true)
			}
		default:
			if h.OnChunk != nil {
				h.OnChunk(text, false)
			}
		}
	case EventError:
		err := errors.New(ev.Data)
		c.logger.Warn("transcription error event", "error", ev.Data)
		if *streamErr == nil {
			*streamErr = err
		}
		if h.OnError != nil {
			h.OnError(err)
		}
	default:
		c.logger.Debug("ignoring transcription event", "type", ev.Type)
	}
}
