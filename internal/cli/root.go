// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information, set by main from build flags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	verbose    bool
}

// NewRootCmd builds the nisa command tree. Running it without a subcommand
// starts the TUI.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "nisa",
		Short: "Terminal client for the NISA archival search assistant",
		Long: `nisa talks to the NISA archival backend: it streams answers with
progress messages, keeps conversations on disk and turns PDFs, audio and
video into questions.`,
		Version:       fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, opts)
		},
	}

	// Disable completion command
	root.CompletionOptions.DisableDefaultCmd = true

	// Global flags
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file path (default is ~/.nisa/config.toml)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newTUICmd(opts),
		newAskCmd(opts),
		newChatCmd(opts),
		newTranscribeCmd(opts),
		newConversationsCmd(opts),
		newServeCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}
