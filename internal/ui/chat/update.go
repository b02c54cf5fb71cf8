// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/nisa-chat/internal/i18n"
	"github.com/jeranaias/nisa-chat/internal/model"
	"github.com/jeranaias/nisa-chat/internal/storage"
	"github.com/jeranaias/nisa-chat/internal/transcribe"
	"github.com/jeranaias/nisa-chat/internal/upload"
)

// storeTimeout bounds store calls made from the UI goroutine.
const storeTimeout = 5 * time.Second

// =============================================================================
// MESSAGES
// =============================================================================

// attachDoneMsg carries the outcome of /attach.
type attachDoneMsg struct {
	path   string
	result upload.Result
	err    error
}

// transcribeDoneMsg carries the outcome of /transcribe.
type transcribeDoneMsg struct {
	path string
	err  error
}

// =============================================================================
// UPDATE
// =============================================================================

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case refreshMsg:
		m.syncViewport()
		return m, waitForRefresh(m.ctx, m.sink, m.limiter)

	case attachDoneMsg:
		return m.handleAttachDone(msg), nil

	case transcribeDoneMsg:
		return m.handleTranscribeDone(msg), nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.ready = true
	m.theme.SetSize(msg.Width, msg.Height)
	m.sink.setColumns(msg.Width)
	m.input.Width = max(msg.Width-4, 10)
	m.md.setWidth(msg.Width - 4)
	m.syncViewport()
	m.viewport.GotoBottom()
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.ctrl.Cancel()
		m.cancelJob()
		m.sess.SetInput(m.input.Value())
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		switch {
		case m.job != nil:
			m.cancelJob()
		case m.ctrl.Busy():
			m.ctrl.Cancel()
			m.setNotice(m.printer.Text(i18n.NoticeRequestCancelled), false)
		case m.sink.snapshot().linksOpen:
			m.sink.closeLinks()
		default:
			m.clearNotice()
		}
		m.syncViewport()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.handleSubmit()

	case key.Matches(msg, m.keys.ToggleModel):
		choice := m.sess.ToggleModel()
		m.setNotice(m.printer.Text(i18n.NoticeModel, ModelName(m.printer, choice)), false)
		m.syncViewport()
		return m, nil

	case key.Matches(msg, m.keys.New):
		m.switchConversation(func() error {
			m.sess.NewConversation()
			return nil
		})
		return m, nil

	case key.Matches(msg, m.keys.Cycle):
		m.cycleConversation()
		return m, nil

	case key.Matches(msg, m.keys.Links):
		m.sink.toggleLinks()
		m.syncViewport()
		return m, nil

	case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleSubmit runs a slash command or hands the input to the controller.
func (m Model) handleSubmit() (tea.Model, tea.Cmd) {
	value := m.input.Value()

	cmd, err := ParseCommand(value)
	switch {
	case err == nil:
		m.input.SetValue("")
		next, teaCmd := m.runCommand(cmd)
		next.syncViewport()
		return next, teaCmd
	case !errors.Is(err, ErrNotCommand):
		m.setNotice(ErrorText(m.printer, err), true)
		m.syncViewport()
		return m, nil
	}

	if strings.HasPrefix(strings.TrimSpace(value), "//") {
		value = strings.Replace(value, "//", "/", 1)
	}
	m.sess.SetInput(value)
	if m.ctrl.Busy() {
		m.setNotice(m.printer.Text(i18n.NoticeBusy), false)
		m.syncViewport()
		return m, nil
	}
	if m.ctrl.Submit(m.ctx) {
		m.input.SetValue("")
		m.attached = ""
		m.clearNotice()
	}
	m.syncViewport()
	m.viewport.GotoBottom()
	return m, nil
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// switchConversation cancels in-flight work, keeps the draft of the active
// conversation and then runs fn to replace it.
func (m *Model) switchConversation(fn func() error) bool {
	m.ctrl.Cancel()
	m.cancelJob()
	m.sess.SetInput(m.input.Value())

	if err := fn(); err != nil {
		m.setNotice(err.Error(), true)
		m.syncViewport()
		return false
	}

	m.ctrl.SetDocumentContext(false)
	m.attached = ""
	m.sink.closeLinks()
	m.input.SetValue(m.sess.Input())
	m.input.CursorEnd()
	m.clearNotice()
	m.syncViewport()
	m.viewport.GotoBottom()
	return true
}

func (m *Model) cycleConversation() {
	ctx, cancel := context.WithTimeout(m.ctx, storeTimeout)
	defer cancel()

	id, err := m.sess.Next(ctx)
	if err != nil {
		m.setNotice(err.Error(), true)
		m.syncViewport()
		return
	}
	if id == "" {
		m.setNotice(m.printer.Text(i18n.NoticeNoConversations), false)
		m.syncViewport()
		return
	}
	m.openConversation(id)
}

func (m *Model) openConversation(id string) {
	ctx, cancel := context.WithTimeout(m.ctx, storeTimeout)
	defer cancel()
	if m.switchConversation(func() error { return m.sess.Load(ctx, id) }) {
		m.setNotice(m.printer.Text(i18n.NoticeOpened, m.sess.Title()), false)
		m.syncViewport()
	}
}

// resolveConversation maps an /open or /delete argument to an ID. Numbers are 1-based
// positions in /list order.
func (m *Model) resolveConversation(arg string) (string, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return arg, nil
	}
	ctx, cancel := context.WithTimeout(m.ctx, storeTimeout)
	defer cancel()
	conv, err := m.store.GetByIndex(ctx, n-1)
	if err != nil {
		return "", fmt.Errorf("%s: %w", m.printer.Text(i18n.ConversationNumber, n), err)
	}
	return conv.ID, nil
}

// =============================================================================
// COMMANDS
// =============================================================================

func (m Model) runCommand(cmd Command) (Model, tea.Cmd) {
	switch cmd.Name {
	case CmdHelp:
		m.setNotice(HelpText(m.printer), false)

	case CmdModel:
		choice, err := model.ParseModelChoice(cmd.Arg)
		if err != nil {
			m.setNotice(err.Error(), true)
			break
		}
		m.sess.SetSelectedModel(choice)
		m.setNotice(m.printer.Text(i18n.NoticeModel, ModelName(m.printer, choice)), false)

	case CmdNew:
		m.switchConversation(func() error {
			m.sess.NewConversation()
			return nil
		})

	case CmdList:
		if m.store == nil {
			m.setNotice(m.printer.Text(i18n.NoticeStorageDisabled), true)
			break
		}
		ctx, cancel := context.WithTimeout(m.ctx, storeTimeout)
		metas, err := m.store.List(ctx)
		cancel()
		if err != nil {
			m.setNotice(err.Error(), true)
			break
		}
		m.setNotice(storage.FormatList(metas, time.Now()), false)

	case CmdOpen:
		if m.store == nil {
			m.setNotice(m.printer.Text(i18n.NoticeStorageDisabled), true)
			break
		}
		id, err := m.resolveConversation(cmd.Arg)
		if err != nil {
			m.setNotice(err.Error(), true)
			break
		}
		m.openConversation(id)

	case CmdDelete:
		if m.store == nil {
			m.setNotice(m.printer.Text(i18n.NoticeStorageDisabled), true)
			break
		}
		id, err := m.resolveConversation(cmd.Arg)
		if err != nil {
			m.setNotice(err.Error(), true)
			break
		}
		active := m.sess.ID() == id
		if active {
			m.ctrl.Cancel()
		}
		ctx, cancel := context.WithTimeout(m.ctx, storeTimeout)
		err = m.sess.Delete(ctx, id)
		cancel()
		if err != nil {
			m.setNotice(err.Error(), true)
			break
		}
		if active {
			m.ctrl.SetDocumentContext(false)
			m.attached = ""
			m.input.SetValue("")
			m.sink.closeLinks()
		}
		m.setNotice(m.printer.Text(i18n.NoticeDeleted), false)

	case CmdAttach:
		return m.startAttach(cmd.Arg)

	case CmdTranscribe:
		return m.startTranscribe(cmd.Arg)
	}
	return m, nil
}

// =============================================================================
// FILE JOBS
// =============================================================================

func (m Model) startAttach(path string) (Model, tea.Cmd) {
	if m.proc == nil {
		m.setNotice(m.printer.Text(i18n.NoticeUploadDisabled), true)
		return m, nil
	}
	if m.job != nil {
		m.setNotice(m.printer.Text(i18n.NoticeJobRunning), true)
		return m, nil
	}
	kind, err := upload.Detect(path)
	if err != nil {
		m.setNotice(m.printer.Text(i18n.UnsupportedFile, filepath.Base(path)), true)
		return m, nil
	}

	job := m.newJob(CmdAttach, path)
	proc, ctx, t := m.proc, m.ctx, job.transcript
	jobCtx, cancel := context.WithCancel(ctx)
	job.cancel = cancel
	m.job = job

	m.setNotice(m.printer.Text(i18n.NoticeProcessing, filepath.Base(path), kind.String()), false)
	return m, func() tea.Msg {
		res, err := proc.Prepare(jobCtx, path, t.Handlers(transcribe.Handlers{}))
		return attachDoneMsg{path: path, result: res, err: err}
	}
}

func (m Model) handleAttachDone(msg attachDoneMsg) Model {
	if m.job == nil || m.job.path != msg.path {
		return m
	}
	m.job.cancel()
	m.job = nil

	if msg.err != nil {
		m.setNotice(m.fileError(msg.path, msg.err), true)
		m.syncViewport()
		return m
	}

	m.attached = msg.path
	m.input.SetValue(msg.result.Query)
	m.input.CursorEnd()
	m.sess.SetInput(msg.result.Query)
	m.ctrl.SetDocumentContext(msg.result.Document)
	m.setNotice(m.printer.Text(i18n.NoticeAttached, filepath.Base(msg.path)), false)
	m.syncViewport()
	return m
}

func (m Model) startTranscribe(path string) (Model, tea.Cmd) {
	if m.proc == nil {
		m.setNotice(m.printer.Text(i18n.NoticeUploadDisabled), true)
		return m, nil
	}
	if m.job != nil {
		m.setNotice(m.printer.Text(i18n.NoticeJobRunning), true)
		return m, nil
	}
	if path == "" {
		path = m.attached
	}
	if path == "" {
		m.setNotice(m.printer.Text(i18n.NoticeNoAttachment), true)
		return m, nil
	}
	kind, err := upload.Detect(path)
	if err != nil || !upload.IsAudioOrVideo(kind) {
		m.setNotice(m.printer.Text(i18n.UnsupportedFile, filepath.Base(path)), true)
		return m, nil
	}
	if _, err := upload.CheckSize(path, m.proc.MaxBytes()); err != nil {
		m.setNotice(err.Error(), true)
		return m, nil
	}

	job := m.newJob(CmdTranscribe, path)
	proc, t := m.proc, job.transcript
	jobCtx, cancel := context.WithCancel(m.ctx)
	job.cancel = cancel
	m.job = job

	m.clearNotice()
	return m, func() tea.Msg {
		_, err := proc.Transcribe(jobCtx, path, kind, t.Handlers(transcribe.Handlers{}))
		return transcribeDoneMsg{path: path, err: err}
	}
}

func (m Model) handleTranscribeDone(msg transcribeDoneMsg) Model {
	if m.job == nil || m.job.path != msg.path {
		return m
	}
	t := m.job.transcript
	m.job.cancel()
	m.job = nil

	if msg.err != nil {
		m.setNotice(m.fileError(msg.path, msg.err), true)
		m.syncViewport()
		return m
	}
	m.setNotice(m.printer.Text(i18n.NoticeTranscript, filepath.Base(msg.path), t.Text()), false)
	m.syncViewport()
	return m
}

func (m *Model) newJob(kind CommandName, path string) *fileJob {
	return &fileJob{
		kind:       kind,
		path:       path,
		transcript: transcribe.NewTranscript(m.sink.poke),
	}
}

func (m *Model) cancelJob() {
	if m.job == nil {
		return
	}
	m.job.cancel()
	m.job = nil
	m.setNotice(m.printer.Text(i18n.NoticeJobCancelled), false)
}

// fileError maps a file job error to a user-visible text.
func (m *Model) fileError(path string, err error) string {
	base := filepath.Base(path)
	kind, _ := upload.Detect(path)
	switch {
	case errors.Is(err, context.Canceled):
		return m.printer.Text(i18n.NoticeJobCancelled)
	case errors.Is(err, upload.ErrUnsupportedFormat):
		return m.printer.Text(i18n.UnsupportedFile, base)
	case kind == upload.KindPDF:
		return m.printer.Text(i18n.PDFFailed, err.Error())
	default:
		return m.printer.Text(i18n.TranscribeFailed, err.Error())
	}
}

// =============================================================================
// NOTICES
// =============================================================================

func (m *Model) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeErr = isErr
}

func (m *Model) clearNotice() {
	m.notice = ""
	m.noticeErr = false
}
