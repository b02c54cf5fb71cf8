// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestSink_StoresState(t *testing.T) {
	s := newSink()
	s.SetLoading(true)
	s.SetProgress("Consultando fundos...")
	s.SetPartial("Encontrei")
	s.OpenLinksPanel()

	got := s.snapshot()
	assert.True(t, got.loading)
	assert.Equal(t, "Consultando fundos...", got.progress)
	assert.Equal(t, "Encontrei", got.partial)
	assert.True(t, got.linksOpen)

	s.toggleLinks()
	assert.False(t, s.snapshot().linksOpen)
	s.toggleLinks()
	s.closeLinks()
	assert.False(t, s.snapshot().linksOpen)
}

func TestSink_NotifyCoalesces(t *testing.T) {
	s := newSink()
	for i := 0; i < 100; i++ {
		s.SetPartial("x")
	}
	assert.Len(t, s.notify, 1, "a burst leaves one pending wake-up")
}

func TestSink_ViewportWidthInPixels(t *testing.T) {
	s := newSink()
	s.setColumns(96)
	assert.Equal(t, 768, s.ViewportWidth())
	s.setColumns(120)
	assert.Equal(t, 960, s.ViewportWidth())
}

func TestWaitForRefresh(t *testing.T) {
	s := newSink()
	lim := rate.NewLimiter(rate.Every(time.Millisecond), 1)
	cmd := waitForRefresh(context.Background(), s, lim)

	done := make(chan any, 1)
	go func() { done <- cmd() }()

	s.SetProgress("p")
	select {
	case msg := <-done:
		assert.IsType(t, refreshMsg{}, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("refresh not delivered")
	}
}

func TestWaitForRefresh_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cmd := waitForRefresh(ctx, newSink(), rate.NewLimiter(rate.Inf, 1))
	cancel()
	assert.Nil(t, cmd())
}
