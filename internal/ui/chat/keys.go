// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/jeranaias/nisa-chat/internal/i18n"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines all keyboard bindings for the chat screen.
type KeyMap struct {
	Submit      key.Binding
	ToggleModel key.Binding
	New         key.Binding
	Cycle       key.Binding
	Links       key.Binding
	Cancel      key.Binding
	Quit        key.Binding
	PageUp      key.Binding
	PageDown    key.Binding
}

// DefaultKeyMap returns the default key bindings with help in the printer's
// language.
func DefaultKeyMap(p *i18n.Printer) KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", p.Text(i18n.KeySend)),
		),
		ToggleModel: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", p.Text(i18n.KeyModel)),
		),
		New: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("C-n", p.Text(i18n.KeyNew)),
		),
		Cycle: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("C-o", p.Text(i18n.KeyConversations)),
		),
		Links: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("C-l", p.Text(i18n.KeyLinks)),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", p.Text(i18n.KeyCancel)),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("C-c", p.Text(i18n.KeyQuit)),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", p.Text(i18n.KeyScroll)),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", p.Text(i18n.KeyScroll)),
		),
	}
}

// ShortHelp returns the bindings shown in the footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.ToggleModel, k.New, k.Cycle, k.Links, k.Cancel, k.Quit}
}
