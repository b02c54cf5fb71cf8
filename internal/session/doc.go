// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the active NISA conversation.
//
// A Session holds the conversation being displayed, saves it after every
// change once it has a user message, and switches between stored
// conversations. It implements the submission controller's Conversation
// collaborator.
//
// # Usage
//
//	sess := session.New(store)
//	ctrl, _ := submit.New(submit.Deps{Conversation: sess, View: view})
//
// Switching conversations must cancel the controller first:
//
//	ctrl.Cancel()
//	err := sess.Load(ctx, id)
package session
