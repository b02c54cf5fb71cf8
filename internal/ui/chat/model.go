// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"log/slog"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"golang.org/x/time/rate"

	"github.com/jeranaias/nisa-chat/internal/i18n"
	"github.com/jeranaias/nisa-chat/internal/progress"
	"github.com/jeranaias/nisa-chat/internal/session"
	"github.com/jeranaias/nisa-chat/internal/storage"
	"github.com/jeranaias/nisa-chat/internal/submit"
	"github.com/jeranaias/nisa-chat/internal/transcribe"
	"github.com/jeranaias/nisa-chat/internal/ui/styles"
	"github.com/jeranaias/nisa-chat/internal/upload"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options wires a Model. Session is required.
type Options struct {
	Session *session.Session
	// Store backs /list, /open, /delete and ctrl+o. It may be nil.
	Store *storage.ConversationStore

	Transport       submit.Streamer
	Resolver        submit.Resolver
	Progress        progress.Config
	LinksBreakpoint int

	// Processor handles /attach and /transcribe. It may be nil.
	Processor *upload.Processor

	Printer *i18n.Printer
	Logger  *slog.Logger
	Theme   *styles.Theme

	// MarkdownStyle overrides glamour's automatic style.
	MarkdownStyle glamour.TermRendererOption
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	sess    *session.Session
	store   *storage.ConversationStore
	ctrl    *submit.Controller
	sink    *sink
	proc    *upload.Processor
	printer *i18n.Printer
	logger  *slog.Logger
	limiter *rate.Limiter

	// Styling
	theme *styles.Theme
	keys  KeyMap
	md    *markdown

	// Components
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	// Dimensions
	width  int
	height int
	ready  bool

	// Transient notice under the messages
	notice    string
	noticeErr bool

	// File jobs
	attached string
	job      *fileJob
}

// fileJob is one running /attach or /transcribe.
type fileJob struct {
	kind       CommandName
	path       string
	transcript *transcribe.Transcript
	cancel     context.CancelFunc
}

// New creates the chat model and its controller.
func New(opts Options) (Model, error) {
	if opts.Session == nil {
		return Model{}, errors.New("chat: Session is required")
	}
	if opts.Theme == nil {
		opts.Theme = styles.NewTheme()
	}
	if opts.Printer == nil {
		opts.Printer = i18n.Default()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := newSink()
	ctrl, err := submit.New(submit.Deps{
		Conversation:    opts.Session,
		View:            s,
		Transport:       opts.Transport,
		Resolver:        opts.Resolver,
		Progress:        opts.Progress,
		Printer:         opts.Printer,
		Logger:          opts.Logger,
		LinksBreakpoint: opts.LinksBreakpoint,
	})
	if err != nil {
		return Model{}, err
	}

	ti := textinput.New()
	ti.Placeholder = opts.Printer.Text(i18n.InputPlaceholder)
	ti.Prompt = opts.Theme.InputPrompt.Render("> ")
	ti.CharLimit = 4000
	ti.SetValue(opts.Session.Input())
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = opts.Theme.Spinner

	ctx, cancel := context.WithCancel(context.Background())
	return Model{
		ctx:      ctx,
		cancel:   cancel,
		sess:     opts.Session,
		store:    opts.Store,
		ctrl:     ctrl,
		sink:     s,
		proc:     opts.Processor,
		printer:  opts.Printer,
		logger:   opts.Logger,
		limiter:  rate.NewLimiter(rate.Every(refreshInterval), 1),
		theme:    opts.Theme,
		keys:     DefaultKeyMap(opts.Printer),
		md:       newMarkdown(opts.MarkdownStyle),
		viewport: viewport.New(80, 20),
		input:    ti,
		spinner:  sp,
	}, nil
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		waitForRefresh(m.ctx, m.sink, m.limiter),
	)
}

// Controller exposes the submission controller.
func (m Model) Controller() *submit.Controller { return m.ctrl }

// Close cancels in-flight work and waits for the stream goroutine. Call it
// after the program exits.
func (m Model) Close() {
	if m.job != nil {
		m.job.cancel()
	}
	m.ctrl.Close()
	m.cancel()
}
