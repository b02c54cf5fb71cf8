// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// HistoryTurn is one completed exchange as the backend expects it.
type HistoryTurn struct {
	UserText string `json:"usuario"`
	BotText  string `json:"bot"`
}

// BuildHistory pairs messages[i] with messages[i+1] for i = 1, 3, 5, ...
// Index 0 is the welcome message and never part of the history. A pair is
// kept only when it is exactly a user message followed by an assistant one,
// so an unanswered question or a misaligned position is skipped.
func BuildHistory(messages []Message) []HistoryTurn {
	var turns []HistoryTurn
	for i := 1; i+1 < len(messages); i += 2 {
		if messages[i].Role == RoleUser && messages[i+1].Role == RoleAssistant {
			turns = append(turns, HistoryTurn{
				UserText: messages[i].Content,
				BotText:  messages[i+1].Content,
			})
		}
	}
	return turns
}
