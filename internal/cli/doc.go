// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the nisa command line.
//
// Commands:
//
//	nisa [tui]                         full-screen chat
//	nisa ask <query>                   one-shot streaming query
//	nisa chat                          line-editing REPL
//	nisa transcribe <file>             stream a transcript
//	nisa transcribe --watch <dir>      transcribe files dropped in dir
//	nisa conversations list|show|delete|export
//	nisa serve                         development backend
//	nisa config show|path|init|get|set|keys
//	nisa version
//
// Every command loads ~/.nisa/config.toml (or --config) with NISA_*
// environment overrides on top.
package cli
