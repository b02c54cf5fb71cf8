// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for
// the NISA chat client.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - BackendConfig: Archive backend base URL and routes
//   - ProgressConfig: Idle threshold and progress message pool
//   - StorageConfig: Conversation persistence backend
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (NISA_<SECTION>_<KEY>)
//   - ~/.nisa/config.toml
//   - ~/.nisa/config.json
//   - Built-in defaults
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Access settings:
//
//	base := cfg.Backend.BaseURL
//	threshold := cfg.ProgressThreshold()
package config
