// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"
)

func TestNewTheme(t *testing.T) {
	theme := NewTheme()
	if theme == nil {
		t.Fatal("NewTheme() returned nil")
	}

	for name, s := range map[string]string{
		"UserLabel":      theme.UserLabel.Render("Você"),
		"AssistantLabel": theme.AssistantLabel.Render("NISA"),
		"ModelFast":      theme.ModelFast.Render("Rápido"),
		"LinksPanel":     theme.LinksPanel.Render("links"),
	} {
		if s == "" {
			t.Errorf("%s rendered empty", name)
		}
	}
}

func TestLinksPanelHasBorder(t *testing.T) {
	theme := NewTheme()
	out := theme.LinksPanel.Render("x")
	if lines := strings.Split(out, "\n"); len(lines) != 3 {
		t.Errorf("LinksPanel rendered %d lines, want 3", len(lines))
	}
}

func TestGetLayoutMode(t *testing.T) {
	tests := []struct {
		width int
		want  LayoutMode
	}{
		{40, LayoutNarrow},
		{59, LayoutNarrow},
		{60, LayoutMedium},
		{99, LayoutMedium},
		{100, LayoutWide},
		{200, LayoutWide},
	}
	theme := NewTheme()
	for _, tt := range tests {
		theme.SetSize(tt.width, 40)
		if got := theme.GetLayoutMode(); got != tt.want {
			t.Errorf("width %d: GetLayoutMode() = %v, want %v", tt.width, got, tt.want)
		}
	}
}
