// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/nisa-chat/internal/i18n"
	"github.com/jeranaias/nisa-chat/internal/model"
	"github.com/jeranaias/nisa-chat/internal/ui/styles"
	"github.com/jeranaias/nisa-chat/internal/util"
)

// maxPanelLinks bounds the links panel height.
const maxPanelLinks = 8

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return m.printer.Text(i18n.LabelLoading)
	}
	state := m.sink.snapshot()

	parts := []string{m.renderHeader(), m.viewport.View()}
	if panel := m.renderLinks(state); panel != "" {
		parts = append(parts, panel)
	}
	parts = append(parts,
		m.renderStatus(state),
		m.theme.InputBorder.Width(m.width).Render(m.input.View()),
		m.renderHelp(),
	)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// syncViewport recomputes the viewport height and content from the session
// and the sink. It follows the bottom only when the user has not scrolled up.
func (m *Model) syncViewport() {
	if !m.ready {
		return
	}
	state := m.sink.snapshot()
	follow := m.viewport.AtBottom()

	chrome := lipgloss.Height(m.renderHeader()) +
		lipgloss.Height(m.renderStatus(state)) +
		2 + // input with its top border
		lipgloss.Height(m.renderHelp())
	if panel := m.renderLinks(state); panel != "" {
		chrome += lipgloss.Height(panel)
	}
	m.viewport.Width = m.width
	m.viewport.Height = max(m.height-chrome, 3)
	m.viewport.SetContent(m.renderMessages(state))
	if follow {
		m.viewport.GotoBottom()
	}
}

// =============================================================================
// REGIONS
// =============================================================================

func (m Model) renderHeader() string {
	choice := m.sess.SelectedModel()
	badge := m.theme.ModelFast.Render(ModelName(m.printer, choice))
	if choice == model.ModelAdvanced {
		badge = m.theme.ModelAdv.Render(ModelName(m.printer, choice))
	}
	brand := m.theme.HeaderBrand.Render("NISA")

	room := m.width - lipgloss.Width(brand) - lipgloss.Width(badge) - 6
	title := ""
	if room > 3 && m.theme.GetLayoutMode() != styles.LayoutNarrow {
		title = " · " + m.theme.HeaderTitle.Render(util.TruncateWidth(m.sess.Title(), room))
	}
	left := brand + title
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(badge)-2, 1)
	return m.theme.Header.Width(m.width).Render(left + strings.Repeat(" ", gap) + badge)
}

func (m Model) renderMessages(state viewState) string {
	var b strings.Builder
	for i, msg := range m.sess.Messages() {
		if i > 0 {
			b.WriteString("\n\n")
		}
		label := m.theme.AssistantLabel.Render(RoleName(m.printer, msg.Role))
		if msg.IsUser() {
			label = m.theme.UserLabel.Render(RoleName(m.printer, msg.Role))
		}
		b.WriteString(label + "\n")
		b.WriteString(m.md.render(msg.ID, msg.Content))
		if len(msg.Keywords) > 0 {
			b.WriteString("\n" + m.theme.Notice.Render(m.printer.Text(i18n.LabelKeywords, strings.Join(msg.Keywords, ", "))))
		}
	}

	if state.partial != "" {
		b.WriteString("\n\n" + m.theme.AssistantLabel.Render(RoleName(m.printer, model.RoleAssistant)) + "\n")
		b.WriteString(m.theme.Partial.Width(max(m.width-2, 10)).Render(state.partial))
	}

	if m.job != nil && (m.job.kind == CmdTranscribe || m.job.transcript.Text() != "") {
		b.WriteString("\n\n" + m.renderTranscript())
	}

	if m.notice != "" {
		style := m.theme.Notice
		if m.noticeErr {
			style = m.theme.ErrorNotice
		}
		b.WriteString("\n\n" + style.Render(m.notice))
	}
	return b.String()
}

func (m Model) renderTranscript() string {
	t := m.job.transcript
	title := m.printer.Text(i18n.LabelTranscript, filepath.Base(m.job.path))
	body := t.Text()
	if body == "" {
		body = "..."
	}
	out := m.theme.LinksTitle.Render(title) + "\n" + m.theme.Partial.Width(max(m.width-2, 10)).Render(body)
	if status := t.Status(); status != "" {
		out += "\n" + m.theme.Progress.Render(status)
	}
	return out
}

func (m Model) renderLinks(state viewState) string {
	if !state.linksOpen {
		return ""
	}
	links := m.sess.SuggestedLinks()
	if len(links) == 0 {
		return ""
	}

	inner := max(m.width-4, 20)
	lines := []string{m.theme.LinksTitle.Render(m.printer.Text(i18n.LabelLinksCount, len(links)))}
	for i, l := range links {
		if i == maxPanelLinks {
			lines = append(lines, m.theme.StatusHint.Render(m.printer.Text(i18n.LabelLinksMore, len(links)-i)))
			break
		}
		label := fmt.Sprintf("%d. %s", i+1, l.Label())
		url := l.URL
		if l.Label() == l.URL {
			lines = append(lines, m.theme.LinkURL.Render(runewidth.Truncate(label, inner, "…")))
			continue
		}
		// Label and URL share the line when both fit, otherwise the URL
		// wraps under the label.
		if runewidth.StringWidth(label)+runewidth.StringWidth(url)+3 <= inner {
			lines = append(lines, m.theme.LinkLabel.Render(label)+"   "+m.theme.LinkURL.Render(url))
			continue
		}
		lines = append(lines,
			m.theme.LinkLabel.Render(runewidth.Truncate(label, inner, "…")),
			"   "+m.theme.LinkURL.Render(runewidth.Truncate(url, inner-3, "…")),
		)
	}
	return m.theme.LinksPanel.Width(m.width - 2).Render(strings.Join(lines, "\n"))
}

func (m Model) renderStatus(state viewState) string {
	var left string
	switch {
	case state.loading:
		text := state.progress
		if text == "" {
			text = m.printer.Text(i18n.LabelSearching)
		}
		left = m.spinner.View() + " " + m.theme.Progress.Render(text)
	case m.job != nil:
		left = m.spinner.View() + " " + m.theme.Progress.Render(m.printer.Text(i18n.LabelProcessing, filepath.Base(m.job.path)))
	case m.attached != "":
		left = m.theme.Document.Render(m.printer.Text(i18n.LabelAttachment, filepath.Base(m.attached)))
	default:
		left = m.theme.StatusHint.Render(m.printer.Text(i18n.LabelHelpHint))
	}

	var right string
	if n := len(m.sess.SuggestedLinks()); n > 0 && !state.linksOpen {
		right = m.theme.StatusHint.Render(m.printer.Text(i18n.LabelLinksToggle, n))
	}
	if err := m.sess.SaveErr(); err != nil {
		right = m.theme.ErrorNotice.Render(m.printer.Text(i18n.LabelNotSaved))
	}
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return left + strings.Repeat(" ", gap) + right
}

func (m Model) renderHelp() string {
	if m.theme.GetLayoutMode() == styles.LayoutNarrow {
		return m.theme.ShortcutDesc.Render(m.printer.Text(i18n.LabelNarrowHelp))
	}
	var parts []string
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		parts = append(parts, m.theme.ShortcutKey.Render(h.Key)+" "+m.theme.ShortcutDesc.Render(h.Desc))
	}
	// Drop trailing hints until the line fits; the parts carry escape codes.
	for len(parts) > 1 && lipgloss.Width(strings.Join(parts, "  ")) > m.width {
		parts = parts[:len(parts)-1]
	}
	return strings.Join(parts, "  ")
}
