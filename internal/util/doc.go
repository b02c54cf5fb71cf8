// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds small helpers shared by the storage, CLI and TUI layers.
//
//   - AtomicWriteFile: crash-safe file replacement (temp file, fsync, rename)
//   - TruncateRunes / TruncateWidth: UTF-8 safe truncation for titles and lists
//   - SingleLine: collapses newlines for one-line previews
package util
