// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/jeranaias/nisa-chat/internal/config"
	"github.com/jeranaias/nisa-chat/internal/i18n"
	"github.com/jeranaias/nisa-chat/internal/logging"
	"github.com/jeranaias/nisa-chat/internal/model"
	"github.com/jeranaias/nisa-chat/internal/progress"
	"github.com/jeranaias/nisa-chat/internal/session"
	"github.com/jeranaias/nisa-chat/internal/sse"
	"github.com/jeranaias/nisa-chat/internal/storage"
	"github.com/jeranaias/nisa-chat/internal/submit"
	"github.com/jeranaias/nisa-chat/internal/transcribe"
	"github.com/jeranaias/nisa-chat/internal/upload"
)

// app is the configuration, logger and resources of one command run.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	printer *i18n.Printer
	closers []io.Closer
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	if o.configPath != "" {
		return config.LoadFromPath(o.configPath)
	}
	return config.Load()
}

// newApp loads the configuration and opens the logger. With toFile set, logs
// go to ~/.nisa/nisa.log unless log.file names another file; full-screen
// commands use it so log lines never land on the alt screen.
func newApp(o *rootOptions, stderr io.Writer, toFile bool) (*app, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if o.verbose {
		level = "debug"
	}
	file := cfg.Log.File
	if toFile && file == "" {
		dir, err := config.ConfigDir()
		if err != nil {
			return nil, err
		}
		file = filepath.Join(dir, "nisa.log")
	}
	logger, closer, err := logging.New(logging.Options{
		Level:  level,
		Format: cfg.Log.Format,
		File:   file,
		Writer: stderr,
	})
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	return &app{
		cfg:     cfg,
		logger:  logger,
		printer: i18n.NewPrinter(i18n.ParseLanguage(cfg.UI.Language)),
		closers: []io.Closer{closer},
	}, nil
}

// Close releases everything the app opened, newest first.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// =============================================================================
// WIRING
// =============================================================================

// openStore opens the configured storage backend. It is closed with the app.
func (a *app) openStore(ctx context.Context) (*storage.ConversationStore, error) {
	dir, err := a.cfg.StorageDir()
	if err != nil {
		return nil, err
	}
	backend, err := storage.Open(ctx, storage.Options{
		Kind:      storage.Kind(a.cfg.Storage.Backend),
		Dir:       dir,
		RedisAddr: a.cfg.Storage.RedisAddr,
		Key:       a.cfg.Storage.Key,
	})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.closers = append(a.closers, backend)

	store := storage.NewConversationStore(backend)
	store.MaxConversations = a.cfg.Storage.MaxConversations
	return store, nil
}

func (a *app) defaultModel() model.ModelChoice {
	choice, err := model.ParseModelChoice(a.cfg.UI.DefaultModel)
	if err != nil {
		return model.DefaultModel
	}
	return choice
}

// newSession starts a fresh conversation. A nil store keeps it in memory.
func (a *app) newSession(store *storage.ConversationStore) *session.Session {
	return session.New(store,
		session.WithLogger(a.logger),
		session.WithDefaultModel(a.defaultModel()),
	)
}

func (a *app) streamClient() *sse.Client {
	return sse.NewClient(sse.WithLogger(a.logger))
}

func (a *app) endpoints() submit.Endpoints {
	b := a.cfg.Backend
	return submit.Endpoints{
		BaseURL:  b.BaseURL,
		Fast:     b.AskFast,
		Advanced: b.AskAdvanced,
		Document: b.AskDocument,
	}
}

func (a *app) progressConfig() progress.Config {
	return progress.Config{
		Threshold: a.cfg.ProgressThreshold(),
		Messages:  a.cfg.Progress.Messages,
	}
}

func (a *app) processor() *upload.Processor {
	b := a.cfg.Backend
	return upload.NewProcessor(upload.Endpoints{
		ProcessPDF:      submit.JoinURL(b.BaseURL, b.ProcessPDF),
		TranscribeAudio: submit.JoinURL(b.BaseURL, b.TranscribeAudio),
		TranscribeVideo: submit.JoinURL(b.BaseURL, b.TranscribeVideo),
	},
		upload.WithMaxBytes(a.cfg.Upload.MaxBytes),
		upload.WithLogger(a.logger),
		upload.WithTranscriber(transcribe.NewClient(
			transcribe.WithStreamClient(a.streamClient()),
			transcribe.WithLogger(a.logger),
		)),
	)
}

// newController wires a controller for a non-TUI view.
func (a *app) newController(conv submit.Conversation, view submit.View, onFinish func(submit.Result)) (*submit.Controller, error) {
	return submit.New(submit.Deps{
		Conversation:    conv,
		View:            view,
		Transport:       a.streamClient(),
		Resolver:        a.endpoints(),
		Progress:        a.progressConfig(),
		Printer:         a.printer,
		Logger:          a.logger,
		LinksBreakpoint: a.cfg.UI.LinksBreakpoint,
		OnFinish:        onFinish,
	})
}
