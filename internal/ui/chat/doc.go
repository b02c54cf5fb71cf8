// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the Bubble Tea chat screen of the NISA client.

The Model hosts one submit.Controller and one session.Session. The controller
reports transient state (loading, progress text, partial answer, links panel)
through a sink that is safe to call from stream goroutines; every sink change
wakes a rate-limited refresh command so bursts of partial frames collapse into
at most one repaint per frame interval.

# Layout

	┌ NISA · <title> ─────────────── [Rápido] ┐
	│ messages (glamour markdown)              │
	│ partial answer                           │
	├ links panel (ctrl+l) ────────────────────┤
	│ ⣾ progress text / notice                 │
	│ > input                                  │
	└ help ────────────────────────────────────┘

# Keys

	enter    submit
	tab      toggle fast/advanced
	ctrl+n   new conversation
	ctrl+o   cycle stored conversations
	ctrl+l   toggle the links panel
	esc      cancel the in-flight request or file job
	ctrl+c   quit

# Commands

	/attach <path>      process a PDF, audio or video file into the input
	/transcribe [path]  stream a transcript (defaults to the attached file)
	/model fast|advanced
	/new
	/list
	/open <id|index>
	/delete <id>
	/help
*/
package chat
