// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
)

// ModelChoice selects the backend path that answers a query.
type ModelChoice string

const (
	// ModelFast is the quicker, cheaper path.
	ModelFast ModelChoice = "fast"
	// ModelAdvanced is the slower, more thorough path.
	ModelAdvanced ModelChoice = "advanced"
)

// DefaultModel is the choice for new conversations.
const DefaultModel = ModelFast

// ParseModelChoice accepts the canonical names plus the legacy "flash" and
// "thinking" spellings found in older stored conversations.
func ParseModelChoice(s string) (ModelChoice, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fast", "flash", "rapido", "rápido":
		return ModelFast, nil
	case "advanced", "thinking", "avancado", "avançado":
		return ModelAdvanced, nil
	default:
		return "", fmt.Errorf("unknown model %q (want fast or advanced)", s)
	}
}

// Toggle returns the other choice.
func (m ModelChoice) Toggle() ModelChoice {
	if m == ModelAdvanced {
		return ModelFast
	}
	return ModelAdvanced
}

// DisplayName returns the label shown next to the input.
func (m ModelChoice) DisplayName() string {
	if m == ModelAdvanced {
		return "Avançado"
	}
	return "Rápido"
}

// UnmarshalText keeps stored conversations with legacy names loadable. An
// unknown value falls back to DefaultModel rather than failing the document.
func (m *ModelChoice) UnmarshalText(b []byte) error {
	c, err := ParseModelChoice(string(b))
	if err != nil {
		*m = DefaultModel
		return nil
	}
	*m = c
	return nil
}
