// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/nisa-chat/internal/i18n"
	"github.com/jeranaias/nisa-chat/internal/model"
	"github.com/jeranaias/nisa-chat/internal/session"
	"github.com/jeranaias/nisa-chat/internal/submit"
	"github.com/jeranaias/nisa-chat/internal/ui/chat"
)

type askOptions struct {
	model       string
	historyFrom string
	json        bool
}

func newAskCmd(root *rootOptions) *cobra.Command {
	opts := &askOptions{}
	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Ask one question and stream the answer",
		Long: `Ask sends one question to the archive backend. Progress messages go to
stderr; the answer goes to stdout, rendered as markdown on a terminal.`,
		Example: `  nisa ask "fotografias de Brasília em 1960"
  nisa ask --model advanced "decretos sobre o arquivo nacional"
  nisa ask --history-from conv_1712345678_ab12cd "e em 1970?" --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, root, opts, strings.Join(args, " "))
		},
	}
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "model: fast or advanced (default from config)")
	cmd.Flags().StringVar(&opts.historyFrom, "history-from", "", "send the turns of a stored conversation as history")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the result as JSON")
	return cmd
}

// askResult is the --json output.
type askResult struct {
	Query         string       `json:"query"`
	Model         string       `json:"model"`
	Outcome       string       `json:"outcome"`
	Answer        string       `json:"answer"`
	Links         []model.Link `json:"links,omitempty"`
	Keywords      []string     `json:"keywords,omitempty"`
	AnalyzedLinks []string     `json:"analyzed_links,omitempty"`
	DurationMS    int64        `json:"duration_ms"`
}

// progressView prints progress messages and ignores the rest. The links
// panel never opens; links are printed with the answer.
type progressView struct {
	mu   sync.Mutex
	w    io.Writer
	last string
}

func (v *progressView) SetLoading(bool)   {}
func (v *progressView) SetPartial(string) {}
func (v *progressView) OpenLinksPanel()   {}
func (v *progressView) ViewportWidth() int {
	return math.MaxInt
}

func (v *progressView) SetProgress(p string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if p != "" && p != v.last {
		fmt.Fprintln(v.w, progressStyle.Render(p))
	}
	v.last = p
}

func runAsk(cmd *cobra.Command, root *rootOptions, opts *askOptions, query string) error {
	a, err := newApp(root, cmd.ErrOrStderr(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	choice := a.defaultModel()
	if opts.model != "" {
		if choice, err = model.ParseModelChoice(opts.model); err != nil {
			return err
		}
	}

	sess := session.New(nil, session.WithLogger(a.logger), session.WithDefaultModel(choice))
	if opts.historyFrom != "" {
		if err := seedHistory(ctx, a, sess, opts.historyFrom); err != nil {
			return err
		}
	}

	results := make(chan submit.Result, 1)
	ctrl, err := a.newController(sess, &progressView{w: cmd.ErrOrStderr()}, func(r submit.Result) {
		results <- r
	})
	if err != nil {
		return err
	}
	defer ctrl.Close()

	sess.SetInput(query)
	if !ctrl.Submit(ctx) {
		return errors.New("empty query")
	}
	res := <-results

	msgs := sess.Messages()
	answer := msgs[len(msgs)-1]
	if res.Outcome == submit.OutcomeAborted {
		return context.Canceled
	}

	out := cmd.OutOrStdout()
	if opts.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(askResult{
			Query:         res.Query,
			Model:         string(choice),
			Outcome:       res.Outcome.String(),
			Answer:        answer.Content,
			Links:         sess.SuggestedLinks(),
			Keywords:      answer.Keywords,
			AnalyzedLinks: answer.AnalyzedLinks,
			DurationMS:    res.Duration.Milliseconds(),
		}); err != nil {
			return err
		}
	} else if res.Outcome == submit.OutcomeCompleted {
		printAnswer(out, a.printer, answer, sess.SuggestedLinks())
		fmt.Fprintln(cmd.ErrOrStderr(), mutedStyle.Render(fmt.Sprintf("%s · %s", chat.ModelName(a.printer, choice), res.Duration.Round(10*time.Millisecond))))
	}

	if res.Outcome != submit.OutcomeCompleted {
		return fmt.Errorf("%s (%s)", answer.Content, res.Outcome)
	}
	return nil
}

// seedHistory replays the committed turns of a stored conversation into
// sess so they are sent as history.
func seedHistory(ctx context.Context, a *app, sess *session.Session, id string) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	conv, err := store.Get(ctx, id)
	if err != nil {
		return err
	}
	for _, msg := range conv.Messages {
		if msg.ID == model.WelcomeID {
			continue
		}
		sess.AppendMessage(msg)
	}
	a.logger.Debug("history seeded", "conversation", id, "turns", len(model.BuildHistory(sess.Messages())))
	return nil
}

// printAnswer writes a final answer with its keywords and links.
func printAnswer(w io.Writer, p *i18n.Printer, answer model.Message, links []model.Link) {
	fmt.Fprint(w, renderMarkdown(w, answer.Content))
	if len(answer.Keywords) > 0 {
		fmt.Fprintln(w, mutedStyle.Render(p.Text(i18n.LabelKeywords, strings.Join(answer.Keywords, ", "))))
	}
	if len(links) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, titleStyle.Render(p.Text(i18n.LabelLinks)))
		for i, l := range links {
			if l.Label() == l.URL {
				fmt.Fprintf(w, "  %d. %s\n", i+1, linkStyle.Render(l.URL))
				continue
			}
			fmt.Fprintf(w, "  %d. %s\n     %s\n", i+1, valueStyle.Render(l.Label()), linkStyle.Render(l.URL))
		}
	}
}
