// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds every style of the chat screen.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// Header
	Header      lipgloss.Style
	HeaderBrand lipgloss.Style
	HeaderTitle lipgloss.Style

	// Messages
	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	Partial        lipgloss.Style
	Notice         lipgloss.Style
	ErrorNotice    lipgloss.Style

	// Status line
	Progress   lipgloss.Style
	Spinner    lipgloss.Style
	ModelFast  lipgloss.Style
	ModelAdv   lipgloss.Style
	Document   lipgloss.Style
	StatusHint lipgloss.Style

	// Links panel
	LinksPanel lipgloss.Style
	LinksTitle lipgloss.Style
	LinkLabel  lipgloss.Style
	LinkURL    lipgloss.Style

	// Input
	InputPrompt lipgloss.Style
	InputBorder lipgloss.Style

	// Help footer
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style
}

// NewTheme creates a theme for the current terminal.
func NewTheme() *Theme {
	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		ColorProfile: termenv.ColorProfile(),
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)
	t.HeaderBrand = lipgloss.NewStyle().Bold(true).Foreground(Teal)
	t.HeaderTitle = lipgloss.NewStyle().Foreground(TextSecondary).Italic(true)

	t.UserLabel = lipgloss.NewStyle().Bold(true).Foreground(Indigo)
	t.AssistantLabel = lipgloss.NewStyle().Bold(true).Foreground(Teal)
	t.Partial = lipgloss.NewStyle().Foreground(TextSecondary).PaddingLeft(2)
	t.Notice = lipgloss.NewStyle().Foreground(TextMuted).Italic(true)
	t.ErrorNotice = lipgloss.NewStyle().Foreground(Rose)

	t.Progress = lipgloss.NewStyle().Foreground(Amber).Italic(true)
	t.Spinner = lipgloss.NewStyle().Foreground(Teal)
	t.ModelFast = lipgloss.NewStyle().Bold(true).Foreground(TextInverse).Background(Emerald).Padding(0, 1)
	t.ModelAdv = lipgloss.NewStyle().Bold(true).Foreground(TextInverse).Background(Amber).Padding(0, 1)
	t.Document = lipgloss.NewStyle().Foreground(Indigo)
	t.StatusHint = lipgloss.NewStyle().Foreground(TextMuted)

	t.LinksPanel = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.LinksTitle = lipgloss.NewStyle().Bold(true).Foreground(Teal)
	t.LinkLabel = lipgloss.NewStyle().Foreground(TextPrimary)
	t.LinkURL = lipgloss.NewStyle().Foreground(Indigo).Underline(true)

	t.InputPrompt = lipgloss.NewStyle().Bold(true).Foreground(Teal)
	t.InputBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay)

	t.ShortcutKey = lipgloss.NewStyle().Bold(true).Foreground(TextSecondary)
	t.ShortcutDesc = lipgloss.NewStyle().Foreground(TextMuted)
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // >= 100 columns
)
