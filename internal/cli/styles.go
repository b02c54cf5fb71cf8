// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/nisa-chat/internal/ui/styles"
)

// =============================================================================
// SHARED STYLES FOR ALL CLI COMMANDS
// =============================================================================

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.Teal)

	labelStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary).
			Width(14)

	valueStyle = lipgloss.NewStyle().
			Foreground(styles.TextPrimary)

	mutedStyle = lipgloss.NewStyle().
			Foreground(styles.TextMuted)

	progressStyle = lipgloss.NewStyle().
			Foreground(styles.Amber).
			Italic(true)

	linkStyle = lipgloss.NewStyle().
			Foreground(styles.Indigo).
			Underline(true)

	successStyle = lipgloss.NewStyle().
			Foreground(styles.Emerald)

	errorStyle = lipgloss.NewStyle().
			Foreground(styles.Rose)
)
