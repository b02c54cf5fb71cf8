// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/nisa-chat/internal/config"
	"github.com/jeranaias/nisa-chat/internal/i18n"
	"github.com/jeranaias/nisa-chat/internal/model"
	"github.com/jeranaias/nisa-chat/internal/session"
	"github.com/jeranaias/nisa-chat/internal/storage"
	"github.com/jeranaias/nisa-chat/internal/submit"
	"github.com/jeranaias/nisa-chat/internal/ui/chat"
	"github.com/jeranaias/nisa-chat/internal/upload"
)

const chatPrompt = "nisa> "

func newChatCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Line-based chat with history and streaming answers",
		Long: `Chat is a REPL over the same controller as the TUI. Partial answers
stream as they arrive; the slash commands of the TUI work here too, plus
/quit. Conversations are saved like in the TUI.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, root)
		},
	}
}

// =============================================================================
// STREAMING VIEW
// =============================================================================

// streamView prints progress to errw and the partial answer to out as it
// grows.
type streamView struct {
	mu       sync.Mutex
	out      io.Writer
	errw     io.Writer
	printed  int
	streamed strings.Builder
	last     string
}

func (v *streamView) SetLoading(bool) {}
func (v *streamView) OpenLinksPanel() {}
func (v *streamView) ViewportWidth() int {
	return math.MaxInt
}

func (v *streamView) SetProgress(p string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if p != "" && p != v.last {
		fmt.Fprintln(v.errw, progressStyle.Render(p))
	}
	v.last = p
}

// SetPartial receives the whole partial so far. Only the new suffix is
// printed; a reset starts the next answer.
func (v *streamView) SetPartial(p string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if p == "" {
		v.printed = 0
		return
	}
	if len(p) > v.printed {
		fmt.Fprint(v.out, p[v.printed:])
		v.streamed.WriteString(p[v.printed:])
		v.printed = len(p)
	}
}

// takeStreamed returns and clears everything printed for the last answer.
func (v *streamView) takeStreamed() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := v.streamed.String()
	v.streamed.Reset()
	v.printed = 0
	v.last = ""
	return s
}

// =============================================================================
// REPL
// =============================================================================

type repl struct {
	a       *app
	out     io.Writer
	errw    io.Writer
	sess    *session.Session
	store   *storage.ConversationStore
	ctrl    *submit.Controller
	view    *streamView
	proc    *upload.Processor
	results chan submit.Result

	// suggestion prefills the next prompt, set by /attach.
	suggestion string
}

func runChat(cmd *cobra.Command, root *rootOptions) error {
	a, err := newApp(root, cmd.ErrOrStderr(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	store, err := a.openStore(cmd.Context())
	if err != nil {
		return err
	}

	r := &repl{
		a:       a,
		out:     cmd.OutOrStdout(),
		errw:    cmd.ErrOrStderr(),
		sess:    a.newSession(store),
		store:   store,
		proc:    a.processor(),
		results: make(chan submit.Result, 1),
	}
	r.view = &streamView{out: r.out, errw: r.errw}
	r.ctrl, err = a.newController(r.sess, r.view, func(res submit.Result) { r.results <- res })
	if err != nil {
		return err
	}
	defer r.ctrl.Close()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	historyFile := loadLinerHistory(line)
	defer saveLinerHistory(line, historyFile)

	fmt.Fprintln(r.out, titleStyle.Render("NISA")+" "+mutedStyle.Render("· "+chat.ModelName(a.printer, r.sess.SelectedModel())+" · /help · /quit"))
	fmt.Fprint(r.out, renderMarkdown(r.out, model.WelcomeText))

	for {
		var input string
		if r.suggestion != "" {
			input, err = line.PromptWithSuggestion(chatPrompt, r.suggestion, -1)
			r.suggestion = ""
		} else {
			input, err = line.Prompt(chatPrompt)
		}
		if err != nil {
			// Ctrl+C at the prompt or EOF
			fmt.Fprintln(r.out)
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if input == "/quit" || input == "/exit" || input == "/sair" {
			return nil
		}
		if err := r.handle(cmd.Context(), input); err != nil {
			fmt.Fprintln(r.errw, errorStyle.Render(chat.ErrorText(a.printer, err)))
		}
	}
}

// handle runs a command or asks a question.
func (r *repl) handle(ctx context.Context, input string) error {
	c, err := chat.ParseCommand(input)
	switch {
	case err == nil:
		return r.command(ctx, c)
	case !errors.Is(err, chat.ErrNotCommand):
		return err
	}
	if strings.HasPrefix(input, "//") {
		input = input[1:]
	}
	return r.ask(ctx, input)
}

// ask submits input and blocks until the answer is complete. Ctrl+C cancels
// the request and returns to the prompt.
func (r *repl) ask(ctx context.Context, input string) error {
	reqCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	r.sess.SetInput(input)
	if !r.ctrl.Submit(reqCtx) {
		return nil
	}
	res := <-r.results
	streamed := r.view.takeStreamed()

	switch res.Outcome {
	case submit.OutcomeAborted:
		fmt.Fprintln(r.out)
		return errors.New(r.a.printer.Text(i18n.NoticeRequestCancelled))
	case submit.OutcomeCompleted:
	default:
		if streamed != "" {
			fmt.Fprintln(r.out)
		}
		msgs := r.sess.Messages()
		return errors.New(msgs[len(msgs)-1].Content)
	}

	msgs := r.sess.Messages()
	answer := msgs[len(msgs)-1]
	if streamed != "" {
		fmt.Fprint(r.out, "\n\n")
	}
	// The final answer replaces the streamed draft when they differ.
	if strings.TrimSpace(streamed) != strings.TrimSpace(answer.Content) {
		printAnswer(r.out, r.a.printer, answer, r.sess.SuggestedLinks())
	} else {
		printAnswer(r.out, r.a.printer, model.Message{Keywords: answer.Keywords}, r.sess.SuggestedLinks())
	}
	if err := r.sess.SaveErr(); err != nil {
		fmt.Fprintln(r.errw, errorStyle.Render(r.a.printer.Text(i18n.NoticeNotSaved, err.Error())))
	}
	return nil
}

func (r *repl) command(ctx context.Context, c chat.Command) error {
	p := r.a.printer
	switch c.Name {
	case chat.CmdHelp:
		fmt.Fprintln(r.out, chat.HelpText(p))
		fmt.Fprintf(r.out, "  %-22s %s\n", "/quit", p.Text(i18n.HelpQuit))

	case chat.CmdModel:
		choice, err := model.ParseModelChoice(c.Arg)
		if err != nil {
			return err
		}
		r.sess.SetSelectedModel(choice)
		fmt.Fprintln(r.out, successStyle.Render(p.Text(i18n.NoticeModel, chat.ModelName(p, choice))))

	case chat.CmdNew:
		r.ctrl.SetDocumentContext(false)
		r.sess.NewConversation()
		fmt.Fprintln(r.out, successStyle.Render(p.Text(i18n.NoticeNewConversation)))

	case chat.CmdList:
		metas, err := r.store.List(ctx)
		if err != nil {
			return err
		}
		fmt.Fprint(r.out, storage.FormatList(metas, time.Now()))

	case chat.CmdOpen:
		if err := r.sess.Load(ctx, r.resolveID(ctx, c.Arg)); err != nil {
			return err
		}
		r.ctrl.SetDocumentContext(false)
		fmt.Fprintln(r.out, successStyle.Render(p.Text(i18n.NoticeOpened, r.sess.Title())))
		for _, msg := range r.sess.Messages()[1:] {
			fmt.Fprintln(r.out, labelStyle.Render(chat.RoleName(p, msg.Role)+":")+" "+msg.Content)
		}

	case chat.CmdDelete:
		if err := r.sess.Delete(ctx, r.resolveID(ctx, c.Arg)); err != nil {
			return err
		}
		fmt.Fprintln(r.out, successStyle.Render(p.Text(i18n.NoticeDeleted)))

	case chat.CmdAttach:
		res, err := prepareWithSpinner(ctx, r.proc, c.Arg, r.errw)
		if err != nil {
			return err
		}
		r.ctrl.SetDocumentContext(res.Document)
		r.suggestion = res.Query
		fmt.Fprintln(r.out, successStyle.Render(p.Text(i18n.NoticeAttached, filepath.Base(c.Arg))))

	case chat.CmdTranscribe:
		if c.Arg == "" {
			return &chat.CommandError{Name: string(chat.CmdTranscribe), Usage: i18n.UsageTranscribe}
		}
		return transcribeTo(ctx, r.proc, c.Arg, r.out, r.errw)
	}
	return nil
}

// resolveID maps a 1-based list position to its conversation ID. Anything
// else is returned as is.
func (r *repl) resolveID(ctx context.Context, arg string) string {
	if n := atoiOr(arg, 0); n > 0 {
		if conv, err := r.store.GetByIndex(ctx, n-1); err == nil {
			return conv.ID
		}
	}
	return arg
}

// =============================================================================
// HISTORY FILE
// =============================================================================

func loadLinerHistory(line *liner.State) string {
	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, "chat_history")
	if f, err := os.Open(path); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	return path
}

// saveLinerHistory persists the prompt history with owner-only permissions.
func saveLinerHistory(line *liner.State, path string) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return
	}
	defer f.Close()
	line.WriteHistory(f)
}
