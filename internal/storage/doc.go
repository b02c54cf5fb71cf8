// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists NISA conversations.
//
// Every conversation lives in a single JSON document, a map from
// conversation ID to conversation, stored under one well-known key. Each
// operation reads the whole document, changes it and writes it back.
//
// # Backends
//
//   - file: <dir>/chatbot_conversations.json, written atomically
//   - sqlite: a key/value table through modernc.org/sqlite
//   - redis: GET/SET of the key, for shared deployments
//
// # Usage
//
//	backend, err := storage.Open(storage.Options{Kind: storage.KindFile, Dir: dir})
//	store := storage.NewConversationStore(backend)
//	err = store.Save(ctx, conv)
//	metas, err := store.List(ctx)
package storage
