// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/jeranaias/nisa-chat/internal/transcribe"
)

// pdfTimeout bounds one process-pdf call. Transcription streams are not
// bounded.
const pdfTimeout = 5 * time.Minute

// Endpoints are the absolute URLs of the file routes.
type Endpoints struct {
	ProcessPDF      string
	TranscribeAudio string
	TranscribeVideo string
}

// TranscribeEndpoint returns the transcription route for kind.
func (e Endpoints) TranscribeEndpoint(kind Kind) (string, error) {
	switch kind {
	case KindAudio:
		return e.TranscribeAudio, nil
	case KindVideo:
		return e.TranscribeVideo, nil
	}
	return "", fmt.Errorf("%w: %s files are not transcribed", ErrUnsupportedFormat, kind)
}

// Result is the query text produced from one file.
type Result struct {
	Kind  Kind
	Query string
	// Document is set for PDFs; the next question should go to the
	// document route.
	Document bool
}

type pdfResponse struct {
	Query string `json:"query"`
}

// Processor prepares attachments.
type Processor struct {
	http        *resty.Client
	transcriber *transcribe.Client
	endpoints   Endpoints
	maxBytes    int64
	logger      *slog.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithMaxBytes sets the upload limit.
func WithMaxBytes(n int64) Option {
	return func(p *Processor) { p.maxBytes = n }
}

// WithTranscriber sets the transcription client.
func WithTranscriber(c *transcribe.Client) Option {
	return func(p *Processor) { p.transcriber = c }
}

// WithRestyClient replaces the HTTP client used for process-pdf.
func WithRestyClient(c *resty.Client) Option {
	return func(p *Processor) { p.http = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) { p.logger = l }
}

// NewProcessor returns a Processor for the given routes.
func NewProcessor(endpoints Endpoints, opts ...Option) *Processor {
	p := &Processor{
		endpoints: endpoints,
		maxBytes:  DefaultMaxBytes,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.http == nil {
		p.http = resty.New().
			SetTimeout(pdfTimeout).
			SetHeader("Accept", "application/json")
	}
	if p.transcriber == nil {
		p.transcriber = transcribe.NewClient(transcribe.WithLogger(p.logger))
	}
	return p
}

// Endpoints returns the configured routes.
func (p *Processor) Endpoints() Endpoints { return p.endpoints }

// MaxBytes returns the upload limit.
func (p *Processor) MaxBytes() int64 { return p.maxBytes }

// Prepare validates path and converts it to query text. Transcription
// progress is reported through h.
func (p *Processor) Prepare(ctx context.Context, path string, h transcribe.Handlers) (Result, error) {
	kind, err := Detect(path)
	if err != nil {
		return Result{}, err
	}
	if _, err := CheckSize(path, p.maxBytes); err != nil {
		return Result{}, err
	}

	if kind == KindPDF {
		q, err := p.ProcessPDF(ctx, path)
		if err != nil {
			return Result{}, err
		}
		return Result{Kind: kind, Query: q, Document: true}, nil
	}

	text, err := p.Transcribe(ctx, path, kind, h)
	if err != nil {
		return Result{}, err
	}
	return Result{Kind: kind, Query: text}, nil
}

// ProcessPDF uploads a PDF and returns the query the backend generated
// from it.
func (p *Processor) ProcessPDF(ctx context.Context, path string) (string, error) {
	var out pdfResponse
	res, err := p.http.R().
		SetContext(ctx).
		SetFile("file", path).
		SetResult(&out).
		Post(p.endpoints.ProcessPDF)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		p.logger.Warn("process-pdf request failed", "file", filepath.Base(path), "error", err)
		return "", fmt.Errorf("process pdf: %w", err)
	}
	if !res.IsSuccess() {
		p.logger.Warn("process-pdf returned error", "status", res.StatusCode(), "body", res.String())
		return "", fmt.Errorf("process pdf: %s", res.Status())
	}

	q := strings.TrimSpace(out.Query)
	if q == "" {
		return "", errors.New("process pdf: empty query in response")
	}
	p.logger.Info("pdf processed", "file", filepath.Base(path), "query_len", len(q))
	return q, nil
}

// Transcribe streams the transcript of an audio or video file and returns
// the final text.
func (p *Processor) Transcribe(ctx context.Context, path string, kind Kind, h transcribe.Handlers) (string, error) {
	url, err := p.endpoints.TranscribeEndpoint(kind)
	if err != nil {
		return "", err
	}
	t := transcribe.NewTranscript(nil)
	if err := p.transcriber.TranscribeFile(ctx, url, path, t.Handlers(h)); err != nil {
		return "", err
	}
	text := strings.TrimSpace(t.Text())
	if text == "" {
		return "", fmt.Errorf("transcribe %s: empty transcript", filepath.Base(path))
	}
	return text, nil
}
