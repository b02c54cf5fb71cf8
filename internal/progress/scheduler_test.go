// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package progress

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStatus struct {
	active  atomic.Bool
	partial atomic.Bool
}

func (f *fakeStatus) Active() bool     { return f.active.Load() }
func (f *fakeStatus) HasPartial() bool { return f.partial.Load() }

type published struct {
	mu   sync.Mutex
	msgs []string
}

func (p *published) add(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
}

func (p *published) all() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.msgs...)
}

func newTestScheduler(t *testing.T) (*Scheduler, *ManualClock, *fakeStatus, *published) {
	t.Helper()
	clock := NewManualClock(time.Unix(0, 0))
	status := &fakeStatus{}
	status.active.Store(true)
	pub := &published{}
	cfg := Config{Threshold: 15 * time.Second, Messages: []string{"m1", "m2", "m3"}}
	s := New(cfg, status, pub.add, WithClock(clock), WithSelector(CyclingSelector()))
	return s, clock, status, pub
}

func TestScheduler_FiresAfterThresholdAndRearms(t *testing.T) {
	s, clock, _, pub := newTestScheduler(t)
	s.Start()

	clock.Advance(14 * time.Second)
	assert.Empty(t, pub.all())

	clock.Advance(1 * time.Second)
	assert.Equal(t, []string{"m1"}, pub.all())
	assert.True(t, s.Armed(), "scheduler must re-arm after firing")

	clock.Advance(15 * time.Second)
	assert.Equal(t, []string{"m1", "m2"}, pub.all())
}

func TestScheduler_ServerProgressThenSilence(t *testing.T) {
	// progress at t=0, then 20s of silence: one synthetic message at 15s.
	s, clock, _, pub := newTestScheduler(t)
	s.Start()
	s.Update("Buscando...")

	clock.Advance(20 * time.Second)
	assert.Equal(t, []string{"Buscando...", "m1"}, pub.all())
}

func TestScheduler_UpdateResetsIdleClock(t *testing.T) {
	s, clock, _, pub := newTestScheduler(t)
	s.Start()

	clock.Advance(10 * time.Second)
	s.Update("Consultando índice...")
	clock.Advance(10 * time.Second)
	assert.Equal(t, []string{"Consultando índice..."}, pub.all(), "idle clock must restart on update")

	clock.Advance(5 * time.Second)
	assert.Equal(t, []string{"Consultando índice...", "m1"}, pub.all())
}

func TestScheduler_NoFireAfterPartial(t *testing.T) {
	s, clock, status, pub := newTestScheduler(t)
	s.Start()

	status.partial.Store(true)
	clock.Advance(60 * time.Second)

	assert.Empty(t, pub.all())
	assert.False(t, s.Armed())
}

func TestScheduler_UpdateAfterPartialDoesNotRearm(t *testing.T) {
	s, clock, status, pub := newTestScheduler(t)
	s.Start()
	status.partial.Store(true)

	s.Update("Gerando resposta...")
	assert.Equal(t, []string{"Gerando resposta..."}, pub.all(), "update still publishes")

	clock.Advance(60 * time.Second)
	assert.Equal(t, []string{"Gerando resposta..."}, pub.all())
}

func TestScheduler_InactiveIsNoop(t *testing.T) {
	s, clock, status, pub := newTestScheduler(t)
	s.Start()
	status.active.Store(false)

	clock.Advance(30 * time.Second)
	assert.Empty(t, pub.all())
	assert.False(t, s.Armed())
}

func TestScheduler_ClearIdempotent(t *testing.T) {
	s, clock, _, pub := newTestScheduler(t)

	s.Clear()
	s.Start()
	s.Clear()
	s.Clear()

	clock.Advance(time.Minute)
	assert.Empty(t, pub.all())
	assert.Zero(t, clock.Pending())
}

func TestScheduler_ClearAfterFire(t *testing.T) {
	s, clock, _, pub := newTestScheduler(t)
	s.Start()
	clock.Advance(15 * time.Second)
	require.Len(t, pub.all(), 1)

	s.Clear()
	clock.Advance(time.Minute)
	assert.Len(t, pub.all(), 1)
}

func TestScheduler_RestartReplacesTimer(t *testing.T) {
	s, clock, _, _ := newTestScheduler(t)
	s.Start()
	s.Start()
	s.Start()
	assert.Equal(t, 1, clock.Pending())
}

func TestScheduler_StaleFireIgnored(t *testing.T) {
	// A fire that lost the race with Clear must neither publish nor re-arm.
	clock := NewManualClock(time.Unix(0, 0))
	status := &fakeStatus{}
	status.active.Store(true)
	pub := &published{}

	var s *Scheduler
	s = New(Config{Threshold: time.Second, Messages: []string{"m"}}, status, pub.add,
		WithClock(clock),
		WithSync(func(fn func()) {
			// Simulate Clear winning the lock just before the fire runs.
			s.Clear()
			fn()
		}),
	)
	s.Start()
	clock.Advance(time.Second)

	assert.Empty(t, pub.all())
	assert.False(t, s.Armed())
}

func TestScheduler_Defaults(t *testing.T) {
	s := New(Config{}, &fakeStatus{}, func(string) {})
	assert.Equal(t, DefaultThreshold, s.cfg.Threshold)
	assert.Equal(t, DefaultMessages, s.cfg.Messages)
	assert.Len(t, DefaultConfig().Messages, 7)
}

func TestRandomSelector_StaysInPool(t *testing.T) {
	pool := []string{"a", "b", "c"}
	for i := 0; i < 100; i++ {
		assert.Contains(t, pool, RandomSelector(pool))
	}
}

func TestManualClock_OrderAndStop(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	var order []int

	clock.AfterFunc(3*time.Second, func() { order = append(order, 3) })
	stopped := clock.AfterFunc(2*time.Second, func() { order = append(order, 2) })
	clock.AfterFunc(1*time.Second, func() {
		order = append(order, 1)
		clock.AfterFunc(500*time.Millisecond, func() { order = append(order, 15) })
	})

	assert.True(t, stopped.Stop())
	assert.False(t, stopped.Stop())

	clock.Advance(5 * time.Second)
	assert.Equal(t, []int{1, 15, 3}, order)
	assert.Equal(t, time.Unix(5, 0), clock.Now())
}
