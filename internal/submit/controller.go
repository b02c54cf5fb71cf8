// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package submit

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/nisa-chat/internal/i18n"
	"github.com/jeranaias/nisa-chat/internal/model"
	"github.com/jeranaias/nisa-chat/internal/progress"
	"github.com/jeranaias/nisa-chat/internal/sse"
)

// DefaultLinksBreakpoint is the viewport width at or below which the links
// panel is forced open when an answer carries links.
const DefaultLinksBreakpoint = 768

// =============================================================================
// COLLABORATORS
// =============================================================================

// Conversation is the persistent state of the active conversation.
type Conversation interface {
	Input() string
	SetInput(string)
	Messages() []model.Message
	AppendMessage(model.Message)
	SelectedModel() model.ModelChoice
	SetSuggestedLinks([]model.Link)
}

// View is the transient display state. Implementations are called with the
// controller lock held and must not call back into the Controller.
type View interface {
	SetLoading(bool)
	SetProgress(string)
	SetPartial(string)
	OpenLinksPanel()
	ViewportWidth() int
}

// Streamer opens an event stream. *sse.Client implements it.
type Streamer interface {
	Stream(ctx context.Context, url string, body any, h sse.Handlers, headers ...http.Header) error
}

// Deps wires a Controller. Conversation and View are required.
type Deps struct {
	Conversation Conversation
	View         View

	Transport Streamer
	Resolver  Resolver

	Progress progress.Config
	Clock    progress.Clock
	Selector progress.Selector

	Printer *i18n.Printer
	Logger  *slog.Logger

	// LinksBreakpoint defaults to DefaultLinksBreakpoint.
	LinksBreakpoint int

	// OnFinish observes every terminal outcome. It runs with the controller
	// lock held.
	OnFinish func(Result)
}

// =============================================================================
// SUBMISSION
// =============================================================================

// submission is the state owned by one request. It doubles as the
// progress.Status of its scheduler; both are only read with the controller
// lock held.
type submission struct {
	id         uint64
	query      string
	state      State
	partial    strings.Builder
	hasPartial bool
	cancel     context.CancelFunc
	scheduler  *progress.Scheduler
	started    time.Time
}

func (s *submission) Active() bool     { return s.state.InFlight() }
func (s *submission) HasPartial() bool { return s.hasPartial }

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller owns the single in-flight submission of one conversation view.
type Controller struct {
	mu sync.Mutex

	conv      Conversation
	view      View
	transport Streamer
	resolver  Resolver
	printer   *i18n.Printer
	logger    *slog.Logger
	onFinish  func(Result)

	progressCfg progress.Config
	clock       progress.Clock
	selector    progress.Selector
	breakpoint  int

	current     *submission
	lastOutcome Outcome
	nextID      uint64
	document    bool
	closed      bool

	wg sync.WaitGroup
}

// New creates a Controller.
func New(d Deps) (*Controller, error) {
	if d.Conversation == nil {
		return nil, errors.New("submit: Conversation is required")
	}
	if d.View == nil {
		return nil, errors.New("submit: View is required")
	}

	c := &Controller{
		conv:        d.Conversation,
		view:        d.View,
		transport:   d.Transport,
		resolver:    d.Resolver,
		printer:     d.Printer,
		logger:      d.Logger,
		onFinish:    d.OnFinish,
		progressCfg: d.Progress,
		clock:       d.Clock,
		selector:    d.Selector,
		breakpoint:  d.LinksBreakpoint,
	}
	if c.transport == nil {
		c.transport = sse.NewClient()
	}
	if c.resolver == nil {
		c.resolver = DefaultEndpoints()
	}
	if c.printer == nil {
		c.printer = i18n.Default()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.clock == nil {
		c.clock = progress.RealClock()
	}
	if c.selector == nil {
		c.selector = progress.RandomSelector
	}
	if c.breakpoint <= 0 {
		c.breakpoint = DefaultLinksBreakpoint
	}
	return c, nil
}

// Submit sends the conversation's current input. It reports false, doing
// nothing, when the input is blank, a request is already in flight or the
// controller is closed. The stream runs in the background until it ends or
// ctx is cancelled.
func (c *Controller) Submit(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	query := strings.TrimSpace(norm.NFC.String(c.conv.Input()))
	if query == "" {
		c.logger.Debug("submit ignored: blank input")
		return false
	}
	if c.current != nil && c.current.Active() {
		c.logger.Debug("submit ignored: request in flight", "submission", c.current.id)
		return false
	}

	// Superseded handles are dropped without a message.
	c.abortLocked(c.current)

	history := model.BuildHistory(c.conv.Messages())

	c.conv.AppendMessage(model.NewUserMessage(query))
	c.conv.SetInput("")
	c.view.SetProgress("")
	c.view.SetPartial("")
	c.conv.SetSuggestedLinks(nil)
	c.view.SetLoading(true)

	c.nextID++
	sub := &submission{
		id:      c.nextID,
		query:   query,
		state:   StateSending,
		started: c.clock.Now(),
	}
	sub.scheduler = progress.New(c.progressCfg, sub, c.view.SetProgress,
		progress.WithClock(c.clock),
		progress.WithSelector(c.selector),
		progress.WithSync(c.locked),
	)
	sub.scheduler.Start()

	streamCtx, cancel := context.WithCancel(ctx)
	sub.cancel = cancel
	c.current = sub

	url := c.resolver.Endpoint(c.conv.SelectedModel(), c.document)
	c.document = false
	body := Request{Query: query, History: history}

	c.logger.Info("submission started", "submission", sub.id, "url", url, "history", len(history))

	c.wg.Add(1)
	go c.run(streamCtx, sub, url, body)
	return true
}

// Cancel aborts the in-flight submission, if any, without adding a message.
// Use it before switching conversations.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.abortLocked(c.current)
}

// Close cancels any in-flight submission, rejects further ones and waits for
// the stream goroutine to exit. It must not be called from a View method.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.abortLocked(c.current)
	c.mu.Unlock()

	c.wg.Wait()
}

// Wait blocks until every started stream goroutine has returned.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// SetDocumentContext routes the next submission to the document endpoint.
func (c *Controller) SetDocumentContext(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.document = on
}

// State returns the state of the latest submission, or StateIdle.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return StateIdle
	}
	return c.current.state
}

// Busy reports whether a request is in flight.
func (c *Controller) Busy() bool {
	return c.State().InFlight()
}

// LastOutcome returns how the most recent finished submission ended.
func (c *Controller) LastOutcome() Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastOutcome
}

// =============================================================================
// STREAM CALLBACKS
// =============================================================================

func (c *Controller) run(ctx context.Context, sub *submission, url string, body Request) {
	defer c.wg.Done()

	err := c.transport.Stream(ctx, url, body, sse.Handlers{
		OnOpen:  func() { c.onOpen(sub) },
		OnEvent: func(ev sse.Event) { c.onEvent(sub, ev) },
		OnDone:  func(ev sse.Event) { c.onDone(sub, ev) },
		OnError: func(err error) { c.onError(sub, err) },
		OnClose: func() { c.onClose(sub) },
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case ctx.Err() != nil:
		// The parent context went away while the request was still live.
		c.abortLocked(sub)
	case err != nil && c.current == sub && sub.Active():
		// Failures before the request left, such as a bad URL, never reach
		// OnError.
		c.transportFailLocked(sub, err)
	}
}

func (c *Controller) onOpen(sub *submission) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.liveLocked(sub) {
		return
	}
	if sub.state == StateSending {
		sub.state = StateStreaming
	}
}

func (c *Controller) onEvent(sub *submission, ev sse.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.liveLocked(sub) {
		return
	}

	switch ev.Type {
	case EventProgress:
		sub.scheduler.Update(ev.Data)
	case EventPartial:
		sub.partial.WriteString(ev.Data)
		sub.hasPartial = true
		sub.scheduler.Clear()
		c.view.SetPartial(sub.partial.String())
	case EventError:
		c.failLocked(sub, OutcomeServerError, c.printer.Text(i18n.ServerError, ev.Data), errors.New(ev.Data))
	default:
		c.logger.Debug("ignoring event", "submission", sub.id, "type", ev.Type)
	}
}

func (c *Controller) onDone(sub *submission, ev sse.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.liveLocked(sub) {
		return
	}

	answer, err := DecodeFinalAnswer(ev.Data)
	if err != nil {
		c.logger.Warn("final answer not decodable", "submission", sub.id, "error", err)
		c.failLocked(sub, OutcomeParseError, c.printer.Text(i18n.ParseFailure), err)
		return
	}

	content := answer.Answer
	if content == "" {
		content = c.printer.Text(i18n.AnswerUnavailable)
	}
	msg := model.NewAssistantMessage(content)
	msg.Keywords = answer.Keywords
	msg.AnalyzedLinks = answer.AnalyzedLinks
	c.conv.AppendMessage(msg)

	if len(answer.Links) > 0 {
		c.conv.SetSuggestedLinks(answer.Links)
		if c.view.ViewportWidth() <= c.breakpoint {
			c.view.OpenLinksPanel()
		}
	}

	c.finishLocked(sub, StateCompleted, OutcomeCompleted, nil)
}

func (c *Controller) onError(sub *submission, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.liveLocked(sub) {
		return
	}
	c.transportFailLocked(sub, err)
}

func (c *Controller) onClose(sub *submission) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.liveLocked(sub) {
		return
	}
	c.failLocked(sub, OutcomeClosed, c.printer.Text(i18n.ConnectionClosed), errors.New("stream closed before done"))
}

// =============================================================================
// TRANSITIONS (controller lock held)
// =============================================================================

func (c *Controller) locked(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
}

// liveLocked reports whether callbacks of sub may still change state.
func (c *Controller) liveLocked(sub *submission) bool {
	return c.current == sub && sub.Active()
}

func (c *Controller) transportFailLocked(sub *submission, err error) {
	var te *sse.TransportError
	if errors.As(err, &te) {
		c.logger.Warn("stream transport failed", "submission", sub.id, "status", te.Status, "body", te.Body, "cause", te.Cause)
	} else {
		c.logger.Warn("stream failed", "submission", sub.id, "error", err)
	}
	c.failLocked(sub, OutcomeTransportError, c.printer.Text(i18n.CommunicationFail), err)
}

func (c *Controller) failLocked(sub *submission, outcome Outcome, text string, err error) {
	c.conv.AppendMessage(model.NewAssistantMessage(text))
	c.finishLocked(sub, StateFailed, outcome, err)
}

func (c *Controller) abortLocked(sub *submission) {
	if sub == nil || !sub.Active() {
		return
	}
	c.logger.Info("submission aborted", "submission", sub.id)
	c.finishLocked(sub, StateAborted, OutcomeAborted, context.Canceled)
}

// finishLocked moves sub to a terminal state and releases everything it
// holds: the idle timer, the transient view state and the request handle.
func (c *Controller) finishLocked(sub *submission, state State, outcome Outcome, err error) {
	sub.state = state
	sub.scheduler.Clear()
	sub.partial.Reset()
	if sub.cancel != nil {
		sub.cancel()
		sub.cancel = nil
	}

	c.view.SetProgress("")
	c.view.SetPartial("")
	c.view.SetLoading(false)
	c.lastOutcome = outcome

	elapsed := c.clock.Now().Sub(sub.started)
	if outcome != OutcomeAborted {
		c.logger.Info("submission finished", "submission", sub.id, "outcome", outcome.String(), "elapsed", elapsed)
	}
	if c.onFinish != nil {
		c.onFinish(Result{ID: sub.id, Query: sub.query, Outcome: outcome, Err: err, Duration: elapsed})
	}
}
