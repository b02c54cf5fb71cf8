// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"
)

// cellPixels approximates the pixel width of one terminal column, so the
// links breakpoint keeps its browser meaning.
const cellPixels = 8

// refreshInterval caps repaints caused by stream updates.
const refreshInterval = time.Second / 30

// viewState is the transient display state written by the controller.
type viewState struct {
	loading   bool
	progress  string
	partial   string
	linksOpen bool
}

// sink implements submit.View. Its methods run on stream goroutines with the
// controller lock held, so they only store and signal.
type sink struct {
	mu    sync.Mutex
	state viewState
	cols  int

	// notify holds at most one pending wake-up.
	notify chan struct{}
}

func newSink() *sink {
	return &sink{notify: make(chan struct{}, 1)}
}

func (s *sink) update(fn func(*viewState)) {
	s.mu.Lock()
	fn(&s.state)
	s.mu.Unlock()
	s.poke()
}

// poke schedules a refresh without blocking.
func (s *sink) poke() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *sink) SetLoading(on bool)   { s.update(func(v *viewState) { v.loading = on }) }
func (s *sink) SetProgress(p string) { s.update(func(v *viewState) { v.progress = p }) }
func (s *sink) SetPartial(p string)  { s.update(func(v *viewState) { v.partial = p }) }
func (s *sink) OpenLinksPanel()      { s.update(func(v *viewState) { v.linksOpen = true }) }

func (s *sink) toggleLinks() { s.update(func(v *viewState) { v.linksOpen = !v.linksOpen }) }
func (s *sink) closeLinks()  { s.update(func(v *viewState) { v.linksOpen = false }) }

func (s *sink) snapshot() viewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *sink) setColumns(cols int) {
	s.mu.Lock()
	s.cols = cols
	s.mu.Unlock()
}

// ViewportWidth reports the terminal width in approximate pixels.
func (s *sink) ViewportWidth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cols * cellPixels
}

// refreshMsg asks the model to re-read the sink and the session.
type refreshMsg struct{}

// waitForRefresh blocks until the sink changes, then waits for the limiter
// so the latest state is always repainted, just not more often than the
// limit.
func waitForRefresh(ctx context.Context, s *sink, lim *rate.Limiter) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-s.notify:
		case <-ctx.Done():
			return nil
		}
		if err := lim.Wait(ctx); err != nil {
			return nil
		}
		return refreshMsg{}
	}
}
