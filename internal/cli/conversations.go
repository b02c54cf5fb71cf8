// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jeranaias/nisa-chat/internal/model"
	"github.com/jeranaias/nisa-chat/internal/storage"
	"github.com/jeranaias/nisa-chat/internal/util"
)

func newConversationsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv", "c"},
		Short:   "Manage stored conversations",
	}
	cmd.AddCommand(
		newConversationsListCmd(root),
		newConversationsShowCmd(root),
		newConversationsDeleteCmd(root),
		newConversationsExportCmd(root),
	)
	return cmd
}

// withStore runs fn with the configured store open.
func withStore(cmd *cobra.Command, root *rootOptions, fn func(*storage.ConversationStore) error) error {
	a, err := newApp(root, cmd.ErrOrStderr(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	store, err := a.openStore(cmd.Context())
	if err != nil {
		return err
	}
	return fn(store)
}

// resolveConversation accepts an ID or a 1-based position in list order.
func resolveConversation(cmd *cobra.Command, store *storage.ConversationStore, arg string) (*model.Conversation, error) {
	if n := atoiOr(arg, 0); n > 0 {
		return store.GetByIndex(cmd.Context(), n-1)
	}
	return store.Get(cmd.Context(), arg)
}

func newConversationsListCmd(root *rootOptions) *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored conversations, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, root, func(store *storage.ConversationStore) error {
				var (
					metas []storage.ConversationMeta
					err   error
				)
				if search != "" {
					metas, err = store.Search(cmd.Context(), search)
				} else {
					metas, err = store.List(cmd.Context())
				}
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), storage.FormatList(metas, time.Now()))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "only conversations whose title or messages contain the text")
	return cmd
}

func newConversationsShowCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|n>",
		Short: "Print a stored conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, root, func(store *storage.ConversationStore) error {
				conv, err := resolveConversation(cmd, store, args[0])
				if err != nil {
					return err
				}
				printConversation(cmd, conv)
				return nil
			})
		},
	}
}

func printConversation(cmd *cobra.Command, conv *model.Conversation) {
	out := cmd.OutOrStdout()
	title := conv.Title
	if title == "" {
		title = conv.DeriveTitle()
	}
	fmt.Fprintln(out, titleStyle.Render(title))
	fmt.Fprintln(out, labelStyle.Render("ID")+valueStyle.Render(conv.ID))
	fmt.Fprintln(out, labelStyle.Render("Modelo")+valueStyle.Render(conv.SelectedModel.DisplayName()))
	if !conv.UpdatedAt.IsZero() {
		fmt.Fprintln(out, labelStyle.Render("Atualizada")+valueStyle.Render(humanize.Time(conv.UpdatedAt)))
	}
	if conv.Input != "" {
		fmt.Fprintln(out, labelStyle.Render("Rascunho")+valueStyle.Render(util.TruncateRunes(util.SingleLine(conv.Input), 60)))
	}

	for _, msg := range conv.Messages {
		if msg.ID == model.WelcomeID {
			continue
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, titleStyle.Render(msg.Role.DisplayName()))
		fmt.Fprint(out, renderMarkdown(out, msg.Content))
	}
	if len(conv.SuggestedLinks) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, titleStyle.Render("Links sugeridos"))
		for _, l := range conv.SuggestedLinks {
			fmt.Fprintln(out, "  "+linkStyle.Render(l.URL))
		}
	}
}

func newConversationsDeleteCmd(root *rootOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:     "delete <id|n>",
		Aliases: []string{"rm"},
		Short:   "Delete a stored conversation",
		Args: func(cmd *cobra.Command, args []string) error {
			if all {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, root, func(store *storage.ConversationStore) error {
				if all {
					if err := store.Clear(cmd.Context()); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Todas as conversas foram apagadas."))
					return nil
				}
				conv, err := resolveConversation(cmd, store, args[0])
				if err != nil {
					return err
				}
				if err := store.Delete(cmd.Context(), conv.ID); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Conversa apagada: "+conv.ID))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "delete every stored conversation")
	return cmd
}

func newConversationsExportCmd(root *rootOptions) *cobra.Command {
	var (
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export <id|n>",
		Short: "Export a conversation as Markdown or JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, root, func(store *storage.ConversationStore) error {
				conv, err := resolveConversation(cmd, store, args[0])
				if err != nil {
					return err
				}

				var data []byte
				switch strings.ToLower(format) {
				case "md", "markdown":
					data = []byte(storage.ExportMarkdown(conv))
				case "json":
					if data, err = storage.ExportJSON(conv); err != nil {
						return err
					}
				default:
					return fmt.Errorf("unknown format %q (use md or json)", format)
				}

				if output == "" || output == "-" {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				if err := util.AtomicWriteFile(output, data, 0o644); err != nil {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), successStyle.Render(fmt.Sprintf("Exportada para %s (%s)", output, humanize.Bytes(uint64(len(data))))))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "md", "md or json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}
