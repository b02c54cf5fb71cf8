// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// markdown renders committed messages and caches the output per message ID.
// Messages never change after they are appended, so the cache is only
// dropped when the wrap width changes.
type markdown struct {
	width    int
	renderer *glamour.TermRenderer
	cache    map[string]string
	style    glamour.TermRendererOption
}

func newMarkdown(style glamour.TermRendererOption) *markdown {
	if style == nil {
		style = glamour.WithAutoStyle()
	}
	return &markdown{cache: make(map[string]string), style: style}
}

// setWidth rebuilds the renderer for a new wrap width.
func (md *markdown) setWidth(width int) {
	if width < 20 {
		width = 20
	}
	if width == md.width && md.renderer != nil {
		return
	}
	r, err := glamour.NewTermRenderer(md.style, glamour.WithWordWrap(width))
	if err != nil {
		// Plain text fallback.
		r = nil
	}
	md.width = width
	md.renderer = r
	md.cache = make(map[string]string)
}

// render returns the cached rendering of content under id.
func (md *markdown) render(id, content string) string {
	if out, ok := md.cache[id]; ok {
		return out
	}
	out := content
	if md.renderer != nil {
		if r, err := md.renderer.Render(content); err == nil {
			out = strings.Trim(r, "\n")
		}
	}
	md.cache[id] = out
	return out
}
