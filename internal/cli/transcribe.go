// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/jeranaias/nisa-chat/internal/transcribe"
	"github.com/jeranaias/nisa-chat/internal/upload"
	"github.com/jeranaias/nisa-chat/internal/util"
)

type transcribeOptions struct {
	watch    string
	save     bool
	debounce time.Duration
}

func newTranscribeCmd(root *rootOptions) *cobra.Command {
	opts := &transcribeOptions{}
	cmd := &cobra.Command{
		Use:   "transcribe [file]",
		Short: "Transcribe an audio or video file",
		Long: `Transcribe uploads an audio or video file and streams its transcript to
stdout. With --watch, every audio or video file written to the directory is
transcribed to a .txt next to it.`,
		Example: `  nisa transcribe entrevista.mp3
  nisa transcribe --save depoimento.mp4
  nisa transcribe --watch ~/gravacoes`,
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.watch != "" {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(root, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			proc := a.processor()
			if opts.watch != "" {
				return watchDir(ctx, proc, opts, cmd.OutOrStdout(), a)
			}
			if opts.save {
				var buf strings.Builder
				if err := transcribeTo(ctx, proc, args[0], &buf, cmd.ErrOrStderr()); err != nil {
					return err
				}
				out := upload.TranscriptPath(args[0])
				if err := util.AtomicWriteFile(out, []byte(buf.String()), 0o644); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Transcrição salva em "+out))
				return nil
			}
			return transcribeTo(ctx, proc, args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVarP(&opts.watch, "watch", "w", "", "watch a directory and transcribe new files")
	cmd.Flags().BoolVarP(&opts.save, "save", "s", false, "write the transcript to <file>.txt instead of stdout")
	cmd.Flags().DurationVar(&opts.debounce, "debounce", upload.DefaultDebounce, "quiet time before a watched file is processed")
	return cmd
}

// transcribeTo streams the transcript of path. A spinner on errw shows the
// server status until the final text is printed to out.
func transcribeTo(ctx context.Context, proc *upload.Processor, path string, out, errw io.Writer) error {
	kind, err := upload.Detect(path)
	if err != nil {
		return err
	}
	if !upload.IsAudioOrVideo(kind) {
		return fmt.Errorf("%w: %s", upload.ErrUnsupportedFormat, filepath.Base(path))
	}
	size, err := upload.CheckSize(path, proc.MaxBytes())
	if err != nil {
		return err
	}

	bar := newSpinner(errw, fmt.Sprintf("Enviando %s (%s)", filepath.Base(path), humanize.IBytes(uint64(size))))
	text, err := proc.Transcribe(ctx, path, kind, transcribe.Handlers{
		OnProgress: func(status string) { bar.Describe(status) },
		OnChunk:    func(string, bool) { _ = bar.Add(1) },
	})
	_ = bar.Finish()
	if err != nil {
		return fmt.Errorf("transcribe %s: %w", filepath.Base(path), err)
	}
	fmt.Fprintln(out, text)
	return nil
}

// prepareWithSpinner turns a file into a question.
func prepareWithSpinner(ctx context.Context, proc *upload.Processor, path string, errw io.Writer) (upload.Result, error) {
	bar := newSpinner(errw, "Processando "+filepath.Base(path))
	res, err := proc.Prepare(ctx, path, transcribe.Handlers{
		OnProgress: func(status string) { bar.Describe(status) },
		OnChunk:    func(string, bool) { _ = bar.Add(1) },
	})
	_ = bar.Finish()
	return res, err
}

func watchDir(ctx context.Context, proc *upload.Processor, opts *transcribeOptions, out io.Writer, a *app) error {
	w := upload.NewWatcher(opts.watch, proc,
		upload.WithDebounce(opts.debounce),
		upload.WithWatcherLogger(a.logger),
		upload.WithOnResult(func(r upload.WatchResult) {
			if r.Err != nil {
				fmt.Fprintln(out, errorStyle.Render(fmt.Sprintf("✗ %s: %v", filepath.Base(r.Source), r.Err)))
				return
			}
			fmt.Fprintln(out, successStyle.Render("✓ "+filepath.Base(r.Source)+" → "+filepath.Base(r.Transcript)))
		}),
	)
	fmt.Fprintln(out, mutedStyle.Render("Observando "+opts.watch+" (Ctrl+C para sair)"))
	err := w.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// newSpinner returns an indeterminate progress bar on w.
func newSpinner(w io.Writer, desc string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionEnableColorCodes(ColorsEnabled()),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
