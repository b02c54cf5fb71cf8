// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jeranaias/nisa-chat/internal/transcribe"
	"github.com/jeranaias/nisa-chat/internal/util"
)

// DefaultDebounce is how long a file must stay unchanged before it is
// transcribed.
const DefaultDebounce = 2 * time.Second

// pollInterval is the pending-set scan period.
const pollInterval = 100 * time.Millisecond

// WatchResult reports one processed file.
type WatchResult struct {
	Source     string
	Transcript string // path of the written .txt
	Err        error
}

// Watcher transcribes every audio or video file created in a folder and
// writes the transcript next to it.
type Watcher struct {
	dir      string
	proc     *Processor
	debounce time.Duration
	logger   *slog.Logger
	onResult func(WatchResult)

	mu      sync.Mutex
	pending map[string]time.Time // path -> last change
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the quiet period before a file is processed.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithOnResult registers a callback for each processed file. It runs on
// the watcher goroutine.
func WithOnResult(fn func(WatchResult)) WatcherOption {
	return func(w *Watcher) { w.onResult = fn }
}

func WithWatcherLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// NewWatcher returns a watcher for dir.
func NewWatcher(dir string, proc *Processor, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		dir:      dir,
		proc:     proc,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		pending:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is cancelled. Files are transcribed one at a time
// on the calling goroutine.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching folder", "dir", w.dir, "debounce", w.debounce)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.touch(event.Name)
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				w.forget(event.Name)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)

		case now := <-ticker.C:
			for _, path := range w.due(now) {
				w.process(ctx, path)
				if ctx.Err() != nil {
					return nil
				}
			}
		}
	}
}

// touch records a change to an accepted media file.
func (w *Watcher) touch(path string) {
	kind, err := Detect(path)
	if err != nil || !IsAudioOrVideo(kind) {
		return
	}
	w.mu.Lock()
	w.pending[path] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	delete(w.pending, path)
	w.mu.Unlock()
}

// due removes and returns the files quiet for at least the debounce period.
func (w *Watcher) due(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var ready []string
	for path, changed := range w.pending {
		if now.Sub(changed) >= w.debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	return ready
}

func (w *Watcher) process(ctx context.Context, path string) {
	res := WatchResult{Source: path}
	defer func() {
		if w.onResult != nil {
			w.onResult(res)
		}
	}()

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		res.Err = err
		return
	}

	result, err := w.proc.Prepare(ctx, path, transcribe.Handlers{
		OnProgress: func(status string) {
			w.logger.Debug("transcription progress", "file", filepath.Base(path), "status", status)
		},
	})
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Warn("transcription failed", "file", path, "error", err)
		}
		res.Err = err
		return
	}

	out := TranscriptPath(path)
	if err := util.AtomicWriteFile(out, []byte(result.Query+"\n"), 0o644); err != nil {
		res.Err = fmt.Errorf("write transcript: %w", err)
		return
	}
	res.Transcript = out
	w.logger.Info("transcript written", "source", path, "transcript", out)
}
