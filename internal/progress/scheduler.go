// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package progress

import (
	"math/rand/v2"
	"sync"
	"time"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// DefaultThreshold is the idle time before a synthetic message appears.
const DefaultThreshold = 15 * time.Second

// DefaultMessages is the pool used when none is configured.
var DefaultMessages = []string{
	"Ainda processando sua solicitação...",
	"Analisando documentos relevantes...",
	"Buscando informações adicionais...",
	"Preparando resposta detalhada...",
	"Consultando base de dados...",
	"Organizando informações encontradas...",
	"Verificando fontes documentais...",
}

// Config is the idle threshold and the message pool.
type Config struct {
	Threshold time.Duration
	Messages  []string
}

// DefaultConfig returns the stock threshold and pool.
func DefaultConfig() Config {
	return Config{
		Threshold: DefaultThreshold,
		Messages:  append([]string(nil), DefaultMessages...),
	}
}

// Selector picks one message from a non-empty pool.
type Selector func(pool []string) string

// RandomSelector picks uniformly at random. Repeats are allowed.
func RandomSelector(pool []string) string {
	return pool[rand.IntN(len(pool))]
}

// CyclingSelector returns a Selector that walks the pool in order. It is
// meant for tests and demos that need a predictable sequence.
func CyclingSelector() Selector {
	var mu sync.Mutex
	i := 0
	return func(pool []string) string {
		mu.Lock()
		defer mu.Unlock()
		msg := pool[i%len(pool)]
		i++
		return msg
	}
}

// Status is the owner's view of the running operation.
type Status interface {
	Active() bool
	HasPartial() bool
}

// =============================================================================
// SCHEDULER
// =============================================================================

// Scheduler owns a single idle timer for one operation.
//
// Lock order: the owner's lock (see WithSync) is always taken before the
// scheduler's own. Callers that hold their lock while calling Start, Update
// or Clear must pass that lock through WithSync, so timer fires take it in
// the same order.
type Scheduler struct {
	mu       sync.Mutex
	cfg      Config
	clock    Clock
	selector Selector
	guard    func(func())

	status  Status
	publish func(string)

	timer Timer
	gen   uint64 // bumped on every Start/Clear; stale fires compare against it
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the real clock.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithSelector replaces RandomSelector.
func WithSelector(sel Selector) Option {
	return func(s *Scheduler) { s.selector = sel }
}

// WithSync makes timer fires run inside fn, normally a function that holds
// the owner's mutex for the duration of the call.
func WithSync(fn func(func())) Option {
	return func(s *Scheduler) { s.guard = fn }
}

// New creates an idle Scheduler. publish receives every message, synthetic
// or server-supplied.
func New(cfg Config, status Status, publish func(string), opts ...Option) *Scheduler {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if len(cfg.Messages) == 0 {
		cfg.Messages = DefaultMessages
	}
	s := &Scheduler{
		cfg:      cfg,
		clock:    RealClock(),
		selector: RandomSelector,
		guard:    func(fn func()) { fn() },
		status:   status,
		publish:  publish,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start discards any pending timer and arms a fresh one.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.armLocked()
}

// Update publishes a server-supplied message at once. The idle clock restarts
// only while the operation is active and has produced no partial content.
func (s *Scheduler) Update(msg string) {
	s.publish(msg)
	if s.status.Active() && !s.status.HasPartial() {
		s.Start()
	}
}

// Clear cancels the pending timer. It is idempotent and safe to call after
// the timer has fired.
func (s *Scheduler) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Armed reports whether a timer is pending.
func (s *Scheduler) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

func (s *Scheduler) stopLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Scheduler) armLocked() {
	gen := s.gen
	s.timer = s.clock.AfterFunc(s.cfg.Threshold, func() { s.fire(gen) })
}

func (s *Scheduler) fire(gen uint64) {
	s.guard(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if gen != s.gen {
			return
		}
		s.timer = nil

		if !s.status.Active() || s.status.HasPartial() {
			return
		}
		s.publish(s.selector(s.cfg.Messages))

		s.gen++
		s.armLocked()
	})
}
