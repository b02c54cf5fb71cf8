// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jeranaias/nisa-chat/internal/model"
	"github.com/jeranaias/nisa-chat/internal/storage"
)

// saveTimeout bounds one auto-save.
const saveTimeout = 5 * time.Second

// =============================================================================
// SESSION
// =============================================================================

// Session is the active conversation plus its persistence. All methods are
// safe for concurrent use.
type Session struct {
	mu sync.Mutex

	conv         *model.Conversation
	store        *storage.ConversationStore
	defaultModel model.ModelChoice
	logger       *slog.Logger
	onChange     func()

	lastSaveErr error
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithDefaultModel sets the model of new conversations.
func WithDefaultModel(m model.ModelChoice) Option {
	return func(s *Session) { s.defaultModel = m }
}

// WithOnChange registers a callback run after every change, without the
// session lock held.
func WithOnChange(fn func()) Option {
	return func(s *Session) { s.onChange = fn }
}

// New starts a fresh conversation. A nil store disables persistence.
func New(store *storage.ConversationStore, opts ...Option) *Session {
	s := &Session{
		store:        store,
		defaultModel: model.DefaultModel,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.conv = s.fresh()
	return s
}

func (s *Session) fresh() *model.Conversation {
	conv := model.NewConversation()
	conv.SelectedModel = s.defaultModel
	return conv
}

// mutate applies fn, auto-saves and notifies.
func (s *Session) mutate(fn func(c *model.Conversation)) {
	s.mu.Lock()
	fn(s.conv)
	s.autoSaveLocked()
	s.mu.Unlock()
	s.notify()
}

func (s *Session) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}

// autoSaveLocked persists the conversation once it has a user message.
func (s *Session) autoSaveLocked() {
	if s.store == nil || !s.conv.HasUserMessages() {
		return
	}
	s.conv.Title = s.conv.DeriveTitle()

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := s.store.Save(ctx, s.conv); err != nil {
		s.logger.Error("auto-save failed", "conversation", s.conv.ID, "error", err)
		s.lastSaveErr = err
		return
	}
	s.lastSaveErr = nil
}

// =============================================================================
// CONVERSATION ACCESSORS
// =============================================================================

// ID returns the active conversation's ID.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv.ID
}

// Title returns the active conversation's display title.
func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv.DeriveTitle()
}

func (s *Session) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv.Input
}

func (s *Session) SetInput(in string) {
	s.mutate(func(c *model.Conversation) { c.Input = in })
}

// Messages returns a copy of the message log.
func (s *Session) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Message(nil), s.conv.Messages...)
}

func (s *Session) AppendMessage(m model.Message) {
	s.mutate(func(c *model.Conversation) { c.AddMessage(m) })
}

func (s *Session) SelectedModel() model.ModelChoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv.SelectedModel
}

func (s *Session) SetSelectedModel(m model.ModelChoice) {
	s.mutate(func(c *model.Conversation) { c.SelectedModel = m })
}

// ToggleModel switches between fast and advanced and returns the new choice.
func (s *Session) ToggleModel() model.ModelChoice {
	var next model.ModelChoice
	s.mutate(func(c *model.Conversation) {
		c.SelectedModel = c.SelectedModel.Toggle()
		next = c.SelectedModel
	})
	return next
}

// SuggestedLinks returns a copy of the links of the latest answer.
func (s *Session) SuggestedLinks() []model.Link {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Link(nil), s.conv.SuggestedLinks...)
}

func (s *Session) SetSuggestedLinks(links []model.Link) {
	s.mutate(func(c *model.Conversation) {
		c.SuggestedLinks = append([]model.Link{}, links...)
	})
}

// Snapshot returns a deep copy of the active conversation.
func (s *Session) Snapshot() *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *s.conv
	c.Messages = append([]model.Message(nil), s.conv.Messages...)
	c.SuggestedLinks = append([]model.Link{}, s.conv.SuggestedLinks...)
	return &c
}

// SaveErr returns the error of the latest auto-save, or nil.
func (s *Session) SaveErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSaveErr
}

// =============================================================================
// SWITCHING
// =============================================================================

// NewConversation replaces the active conversation with a fresh one. The
// previous conversation stays stored as it was.
func (s *Session) NewConversation() {
	s.mu.Lock()
	s.conv = s.fresh()
	s.mu.Unlock()
	s.notify()
}

// Load makes the stored conversation id active. On error the active
// conversation is unchanged.
func (s *Session) Load(ctx context.Context, id string) error {
	if s.store == nil {
		return fmt.Errorf("load %s: %w", id, storage.ErrConversationNotFound)
	}
	conv, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conv = conv
	s.mu.Unlock()

	s.logger.Debug("conversation loaded", "conversation", id, "messages", len(conv.Messages))
	s.notify()
	return nil
}

// Delete removes a stored conversation. Deleting the active one also
// starts a fresh conversation.
func (s *Session) Delete(ctx context.Context, id string) error {
	if s.store == nil {
		return fmt.Errorf("delete %s: %w", id, storage.ErrConversationNotFound)
	}
	err := s.store.Delete(ctx, id)
	active := s.ID() == id
	if err != nil && !(active && errors.Is(err, storage.ErrConversationNotFound)) {
		return err
	}
	if active {
		s.NewConversation()
	}
	return nil
}

// Next returns the ID of the stored conversation after the active one in
// List order, wrapping around. It returns "" when nothing is stored.
func (s *Session) Next(ctx context.Context) (string, error) {
	if s.store == nil {
		return "", nil
	}
	metas, err := s.store.List(ctx)
	if err != nil {
		return "", err
	}
	if len(metas) == 0 {
		return "", nil
	}
	current := s.ID()
	for i, m := range metas {
		if m.ID == current {
			return metas[(i+1)%len(metas)].ID, nil
		}
	}
	return metas[0].ID, nil
}
