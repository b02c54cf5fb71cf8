// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling of the NISA chat screen.

All colors use Lip Gloss AdaptiveColor for automatic light/dark terminal
detection. Theme groups the styles by screen region: header, messages,
status line, links panel, input and help footer.

# Usage

	theme := styles.NewTheme()
	theme.SetSize(width, height)
	label := theme.AssistantLabel.Render("NISA")
*/
package styles
