// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"io"
	"strings"
)

// WriteEvent writes ev as one frame. Data containing newlines spans several
// data lines, and the default message type is written without an event
// line, so ParseFrame of the written frame returns ev.
func WriteEvent(w io.Writer, ev Event) error {
	var b strings.Builder
	if ev.ID != nil {
		b.WriteString("id: " + *ev.ID + "\n")
	}
	if ev.Type != "" && ev.Type != TypeMessage {
		b.WriteString("event: " + ev.Type + "\n")
	}
	for _, line := range strings.Split(ev.Data, "\n") {
		b.WriteString("data: " + line + "\n")
	}
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}
