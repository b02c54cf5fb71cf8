// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/nisa-chat/internal/server"
)

// shutdownTimeout bounds the drain of open streams on exit.
const shutdownTimeout = 10 * time.Second

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the development backend with scripted answers",
		Long: `Serve runs a local backend that speaks the NISA wire protocol. Answers
are scripted: they echo the question with progress messages, partial text,
links and keywords, so the clients can be tried without the real archive.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(root, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			srv := server.New(
				server.WithAddr(addr),
				server.WithLogger(a.logger),
				server.WithPartialDelay(time.Duration(a.cfg.Server.PartialDelayMS)*time.Millisecond),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("NISA dev backend on http://"+srv.Addr()))

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, "+server.DefaultAddr+")")
	return cmd
}
