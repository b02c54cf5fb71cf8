// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package submit

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jeranaias/nisa-chat/internal/model"
	"github.com/jeranaias/nisa-chat/internal/progress"
	"github.com/jeranaias/nisa-chat/internal/sse"
)

// =============================================================================
// CONVERSATION AND VIEW FAKES
// =============================================================================

type fakeConversation struct {
	mu       sync.Mutex
	input    string
	messages []model.Message
	choice   model.ModelChoice
	links    []model.Link
	linkSets int
}

func newFakeConversation() *fakeConversation {
	return &fakeConversation{
		messages: []model.Message{model.WelcomeMessage()},
		choice:   model.ModelFast,
	}
}

func (f *fakeConversation) Input() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.input
}

func (f *fakeConversation) SetInput(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.input = s
}

func (f *fakeConversation) Messages() []model.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Message(nil), f.messages...)
}

func (f *fakeConversation) AppendMessage(m model.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, m)
}

func (f *fakeConversation) SelectedModel() model.ModelChoice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.choice
}

func (f *fakeConversation) SetSuggestedLinks(l []model.Link) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links = l
	if len(l) > 0 {
		f.linkSets++
	}
}

func (f *fakeConversation) Links() []model.Link {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.links
}

// assistantAfterWelcome returns assistant messages other than the welcome.
func (f *fakeConversation) assistantAfterWelcome() []model.Message {
	var out []model.Message
	for _, m := range f.Messages()[1:] {
		if m.Role == model.RoleAssistant {
			out = append(out, m)
		}
	}
	return out
}

type fakeView struct {
	mu         sync.Mutex
	loading    bool
	progress   string
	progresses []string
	partial    string
	panelOpens int
	width      int
}

func (v *fakeView) SetLoading(b bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.loading = b
}

func (v *fakeView) SetProgress(s string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.progress = s
	if s != "" {
		v.progresses = append(v.progresses, s)
	}
}

func (v *fakeView) SetPartial(s string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.partial = s
}

func (v *fakeView) OpenLinksPanel() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.panelOpens++
}

func (v *fakeView) ViewportWidth() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.width
}

func (v *fakeView) snapshot() fakeView {
	v.mu.Lock()
	defer v.mu.Unlock()
	return fakeView{
		loading:    v.loading,
		progress:   v.progress,
		progresses: append([]string(nil), v.progresses...),
		partial:    v.partial,
		panelOpens: v.panelOpens,
		width:      v.width,
	}
}

// =============================================================================
// TRANSPORT FAKE
// =============================================================================

// streamCall is one Stream invocation. The fake blocks until the context is
// cancelled or release is closed, so the test drives handlers by hand.
type streamCall struct {
	ctx     context.Context
	url     string
	body    Request
	h       sse.Handlers
	release chan struct{}
}

type fakeStreamer struct {
	calls chan *streamCall
}

func newFakeStreamer() *fakeStreamer {
	return &fakeStreamer{calls: make(chan *streamCall, 8)}
}

func (f *fakeStreamer) Stream(ctx context.Context, url string, body any, h sse.Handlers, _ ...http.Header) error {
	call := &streamCall{ctx: ctx, url: url, body: body.(Request), h: h, release: make(chan struct{})}
	f.calls <- call
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-call.release:
		return nil
	}
}

func (f *fakeStreamer) next(t *testing.T) *streamCall {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("no Stream call")
		return nil
	}
}

func (f *fakeStreamer) none(t *testing.T) {
	t.Helper()
	select {
	case c := <-f.calls:
		t.Fatalf("unexpected Stream call to %s", c.url)
	default:
	}
}

// =============================================================================
// HARNESS
// =============================================================================

type harness struct {
	ctrl     *Controller
	conv     *fakeConversation
	view     *fakeView
	clock    *progress.ManualClock
	results  chan Result
	streamer *fakeStreamer
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T, transport Streamer, resolver Resolver) *harness {
	t.Helper()
	h := &harness{
		conv:    newFakeConversation(),
		view:    &fakeView{width: 1280},
		clock:   progress.NewManualClock(time.Unix(0, 0)),
		results: make(chan Result, 16),
	}
	if transport == nil {
		h.streamer = newFakeStreamer()
		transport = h.streamer
	}
	ctrl, err := New(Deps{
		Conversation: h.conv,
		View:         h.view,
		Transport:    transport,
		Resolver:     resolver,
		Progress:     progress.Config{Threshold: 15 * time.Second, Messages: []string{"auto-1", "auto-2"}},
		Clock:        h.clock,
		Selector:     progress.CyclingSelector(),
		Logger:       quietLogger(),
		OnFinish:     func(r Result) { h.results <- r },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.ctrl = ctrl
	t.Cleanup(ctrl.Close)
	return h
}

func (h *harness) submit(t *testing.T, input string) bool {
	t.Helper()
	h.conv.SetInput(input)
	return h.ctrl.Submit(context.Background())
}

func (h *harness) result(t *testing.T) Result {
	t.Helper()
	select {
	case r := <-h.results:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("submission did not finish")
		return Result{}
	}
}
