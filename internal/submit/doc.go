// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package submit runs one archival query at a time against the streaming
// backend and folds the event stream into conversation state.
//
// Each call to Controller.Submit creates a submission that moves through
//
//	Idle -> Sending -> Streaming -> Completed | Failed | Aborted
//
// Exactly one terminal outcome is recorded per submission. Failures append a
// single assistant message and leave the conversation usable. Aborts
// (supersession, conversation switch, teardown) append nothing, and late
// callbacks from an aborted stream are ignored.
//
// Transport callbacks and progress timer fires arrive on their own
// goroutines; all of them enter through the controller mutex and re-check
// that their submission is still current before touching state.
package submit
