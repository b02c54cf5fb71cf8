// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// # Key Types
//
//   - Conversation: one chat with NISA; Messages[0] is always the welcome message
//   - Message: a committed user or assistant message, immutable once appended
//   - Link: a suggested archival resource returned with a final answer
//   - ModelChoice: which backend path answers (fast or advanced)
//   - HistoryTurn: a user/assistant pair sent back to the backend as context
//
// # Usage
//
//	conv := model.NewConversation()
//	conv.AddMessage(model.NewUserMessage("fundos do século XIX"))
//	turns := model.BuildHistory(conv.Messages)
package model
