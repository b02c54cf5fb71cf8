// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the slog logger shared by every NISA component.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// maxFileSize is the size above which an existing log file is rotated on open.
const maxFileSize = 10 * 1024 * 1024

// Options selects the handler and sink.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // text or json
	File   string // empty means Writer
	Writer io.Writer
}

// ParseLevel maps a level name to a slog.Level. Unknown names are info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New returns a logger and the closer for its sink. The closer is a no-op
// unless a file was opened.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	var (
		w      io.Writer = opts.Writer
		closer io.Closer = nopCloser{}
	)
	if opts.File != "" {
		f, err := OpenFile(opts.File)
		if err != nil {
			return nil, nil, err
		}
		w, closer = f, f
	}
	if w == nil {
		w = os.Stderr
	}

	ho := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}
	var h slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		h = slog.NewJSONHandler(w, ho)
	} else {
		h = slog.NewTextHandler(w, ho)
	}
	return slog.New(h), closer, nil
}

// OpenFile opens path for appending, creating its directory. A file larger
// than 10MB is renamed to path.1 first.
func OpenFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	if fi, err := os.Stat(path); err == nil && fi.Size() > maxFileSize {
		_ = os.Rename(path, path+".1")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
