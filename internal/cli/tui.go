// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jeranaias/nisa-chat/internal/ui/chat"
	"github.com/jeranaias/nisa-chat/internal/ui/styles"
)

func newTUICmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the full-screen chat (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, opts)
		},
	}
}

func runTUI(cmd *cobra.Command, opts *rootOptions) error {
	a, err := newApp(opts, cmd.ErrOrStderr(), true)
	if err != nil {
		return err
	}
	defer a.Close()

	store, err := a.openStore(cmd.Context())
	if err != nil {
		return err
	}

	m, err := chat.New(chat.Options{
		Session:         a.newSession(store),
		Store:           store,
		Transport:       a.streamClient(),
		Resolver:        a.endpoints(),
		Progress:        a.progressConfig(),
		LinksBreakpoint: a.cfg.UI.LinksBreakpoint,
		Processor:       a.processor(),
		Printer:         a.printer,
		Logger:          a.logger,
		Theme:           styles.NewTheme(),
	})
	if err != nil {
		return err
	}

	a.logger.Info("tui started", "backend", a.cfg.Backend.BaseURL, "storage", a.cfg.Storage.Backend)
	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(cmd.Context()),
	)
	final, runErr := p.Run()
	if fm, ok := final.(chat.Model); ok {
		fm.Close()
	} else {
		m.Close()
	}
	return runErr
}
