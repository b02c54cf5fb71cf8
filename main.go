// nisa - Terminal client for the NISA archival search assistant.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"github.com/joho/godotenv"

	"github.com/jeranaias/nisa-chat/internal/cli"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	// A .env in the working directory may set NISA_* overrides; a missing
	// file is fine.
	_ = godotenv.Load()

	cli.Execute()
}
