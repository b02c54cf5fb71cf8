// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcribe

import (
	"strings"
	"sync"
)

// Transcript accumulates a streamed transcription. It is safe for
// concurrent use so a UI can read it while the stream goroutine writes.
type Transcript struct {
	mu       sync.Mutex
	text     strings.Builder
	status   string
	final    bool
	done     bool
	err      error
	onChange func()
}

// NewTranscript returns an empty transcript. onChange, if set, runs after
// every update without the lock held.
func NewTranscript(onChange func()) *Transcript {
	return &Transcript{onChange: onChange}
}

// Handlers returns callbacks that feed t. Chained handlers in next run
// after t is updated.
func (t *Transcript) Handlers(next Handlers) Handlers {
	return Handlers{
		OnProgress: func(status string) {
			t.update(func() { t.status = status })
			if next.OnProgress != nil {
				next.OnProgress(status)
			}
		},
		OnChunk: func(text string, final bool) {
			t.update(func() {
				if final {
					t.text.Reset()
					t.final = true
					t.status = ""
				}
				t.text.WriteString(text)
			})
			if next.OnChunk != nil {
				next.OnChunk(text, final)
			}
		},
		OnComplete: func() {
			t.update(func() {
				t.done = true
				t.status = ""
			})
			if next.OnComplete != nil {
				next.OnComplete()
			}
		},
		OnError: func(err error) {
			t.update(func() {
				t.err = err
				t.done = true
				t.status = ""
			})
			if next.OnError != nil {
				next.OnError(err)
			}
		},
	}
}

func (t *Transcript) update(fn func()) {
	t.mu.Lock()
	fn()
	t.mu.Unlock()
	if t.onChange != nil {
		t.onChange()
	}
}

// Text returns the transcript so far.
func (t *Transcript) Text() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.text.String()
}

// Status returns the latest progress text, cleared once the final
// transcript arrives.
func (t *Transcript) Status() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Final reports whether the corrected transcript has replaced the partial
// text.
func (t *Transcript) Final() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.final
}

// Done reports whether the stream completed or failed.
func (t *Transcript) Done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// Err returns the failure, if any.
func (t *Transcript) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}
