// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jeranaias/nisa-chat/internal/model"
	"github.com/jeranaias/nisa-chat/internal/util"
)

// previewRunes bounds ConversationMeta.Preview.
const previewRunes = 80

// ConversationMeta contains metadata for listing conversations.
type ConversationMeta struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Model        model.ModelChoice `json:"selectedModel"`
	UpdatedAt    time.Time         `json:"updatedAt"`
	MessageCount int               `json:"messageCount"`
	Preview      string            `json:"preview"`
}

// document is the persisted blob.
type document map[string]*model.Conversation

// =============================================================================
// CONVERSATION STORE
// =============================================================================

// ConversationStore reads and writes the conversation document. It
// serializes its own operations; several processes sharing one backend
// follow last-writer-wins.
type ConversationStore struct {
	mu      sync.Mutex
	backend Backend
	now     func() time.Time

	// MaxConversations evicts the oldest conversations on Save (0 = unlimited).
	MaxConversations int
}

// NewConversationStore creates a store over backend.
func NewConversationStore(backend Backend) *ConversationStore {
	return &ConversationStore{backend: backend, now: time.Now}
}

// Backend returns the underlying backend.
func (s *ConversationStore) Backend() Backend { return s.backend }

func (s *ConversationStore) load(ctx context.Context) (document, error) {
	data, err := s.backend.Read(ctx)
	if err != nil {
		return nil, err
	}
	doc := document{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode conversations: %w", err)
	}
	for id, conv := range doc {
		if conv == nil {
			delete(doc, id)
			continue
		}
		conv.ID = id
		conv.Normalize()
	}
	return doc, nil
}

func (s *ConversationStore) store(ctx context.Context, doc document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode conversations: %w", err)
	}
	return s.backend.Write(ctx, data)
}

// =============================================================================
// SAVE OPERATIONS
// =============================================================================

// Save stores conv under conv.ID. The first save stamps UpdatedAt; later
// saves keep the stored value.
func (s *ConversationStore) Save(ctx context.Context, conv *model.Conversation) error {
	if conv.ID == "" {
		return fmt.Errorf("save conversation: empty id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return err
	}

	stored := *conv
	stored.Messages = append([]model.Message(nil), conv.Messages...)
	stored.SuggestedLinks = append([]model.Link{}, conv.SuggestedLinks...)
	if existing, ok := doc[conv.ID]; ok && !existing.UpdatedAt.IsZero() {
		stored.UpdatedAt = existing.UpdatedAt
	} else {
		stored.UpdatedAt = s.now()
	}
	conv.UpdatedAt = stored.UpdatedAt
	doc[conv.ID] = &stored

	if s.MaxConversations > 0 {
		enforceLimit(doc, s.MaxConversations, conv.ID)
	}
	return s.store(ctx, doc)
}

// enforceLimit removes the oldest conversations beyond max, never keep.
func enforceLimit(doc document, max int, keep string) {
	if len(doc) <= max {
		return
	}
	metas := metasOf(doc)
	// Oldest first.
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.Before(metas[j].UpdatedAt)
	})
	for _, m := range metas {
		if len(doc) <= max {
			return
		}
		if m.ID != keep {
			delete(doc, m.ID)
		}
	}
}

// =============================================================================
// LOAD OPERATIONS
// =============================================================================

// Get retrieves a conversation by ID.
func (s *ConversationStore) Get(ctx context.Context, id string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	conv, ok := doc[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	return conv, nil
}

// GetByIndex loads a conversation by its position in List (0 = most recent).
func (s *ConversationStore) GetByIndex(ctx context.Context, index int) (*model.Conversation, error) {
	metas, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(metas) {
		return nil, ErrConversationNotFound
	}
	return s.Get(ctx, metas[index].ID)
}

// All returns every stored conversation keyed by ID.
func (s *ConversationStore) All(ctx context.Context) (map[string]*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// =============================================================================
// LIST OPERATIONS
// =============================================================================

// List returns metadata for every conversation, most recently updated first.
func (s *ConversationStore) List(ctx context.Context) ([]ConversationMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	metas := metasOf(doc)
	sortNewestFirst(metas)
	return metas, nil
}

func metasOf(doc document) []ConversationMeta {
	metas := make([]ConversationMeta, 0, len(doc))
	for _, conv := range doc {
		metas = append(metas, metaOf(conv))
	}
	return metas
}

func metaOf(conv *model.Conversation) ConversationMeta {
	title := conv.Title
	if title == "" {
		title = conv.DeriveTitle()
	}
	preview := ""
	for _, msg := range conv.Messages {
		if msg.IsUser() {
			preview = util.TruncateRunes(util.SingleLine(msg.Content), previewRunes)
			break
		}
	}
	return ConversationMeta{
		ID:           conv.ID,
		Title:        title,
		Model:        conv.SelectedModel,
		UpdatedAt:    conv.UpdatedAt,
		MessageCount: len(conv.Messages),
		Preview:      preview,
	}
}

// sortNewestFirst orders by UpdatedAt descending, then ID for stability.
func sortNewestFirst(metas []ConversationMeta) {
	sort.Slice(metas, func(i, j int) bool {
		if !metas[i].UpdatedAt.Equal(metas[j].UpdatedAt) {
			return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
		}
		return metas[i].ID > metas[j].ID
	})
}

// Search returns conversations whose title or any message contains query,
// case-insensitively. An empty query lists everything.
func (s *ConversationStore) Search(ctx context.Context, query string) ([]ConversationMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(strings.TrimSpace(query))
	var results []ConversationMeta
	for _, conv := range doc {
		if query == "" || matches(conv, query) {
			results = append(results, metaOf(conv))
		}
	}
	sortNewestFirst(results)
	return results, nil
}

func matches(conv *model.Conversation, query string) bool {
	if strings.Contains(strings.ToLower(conv.Title), query) {
		return true
	}
	// Index 0 is the welcome message.
	for _, msg := range conv.Messages[1:] {
		if strings.Contains(strings.ToLower(msg.Content), query) {
			return true
		}
	}
	return false
}

// =============================================================================
// DELETE OPERATIONS
// =============================================================================

// Delete removes a conversation by ID.
func (s *ConversationStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return err
	}
	if _, ok := doc[id]; !ok {
		return fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	delete(doc, id)
	return s.store(ctx, doc)
}

// Clear removes all saved conversations.
func (s *ConversationStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store(ctx, document{})
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrConversationNotFound is returned when a conversation doesn't exist.
// Use errors.Is(err, ErrConversationNotFound) to check for this error.
var ErrConversationNotFound = &ConversationError{Message: "conversation not found"}

// ConversationError represents a conversation-related error.
type ConversationError struct {
	Message string
}

// Error implements the error interface.
func (e *ConversationError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing conversation errors.
func (e *ConversationError) Is(target error) bool {
	t, ok := target.(*ConversationError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// =============================================================================
// LIST FORMATTING
// =============================================================================

// FormatList renders metas as a table for terminals. Titles are cut by
// display width so accented and wide text stays aligned.
func FormatList(metas []ConversationMeta, now time.Time) string {
	if len(metas) == 0 {
		return "No saved conversations."
	}

	const (
		idWidth    = 30
		whenWidth  = 16
		countWidth = 5
		titleWidth = 50
	)

	var sb strings.Builder
	sb.WriteString(util.PadWidth("ID", idWidth) + " " +
		util.PadWidth("Updated", whenWidth) + " " +
		util.PadWidth("Msgs", countWidth) + " Title\n")
	sb.WriteString(strings.Repeat("-", idWidth+whenWidth+countWidth+titleWidth+3) + "\n")

	for _, m := range metas {
		when := "-"
		if !m.UpdatedAt.IsZero() {
			when = humanize.RelTime(m.UpdatedAt, now, "ago", "from now")
		}
		sb.WriteString(util.PadWidth(m.ID, idWidth) + " " +
			util.PadWidth(when, whenWidth) + " " +
			util.PadWidth(strconv.Itoa(m.MessageCount), countWidth) + " " +
			util.TruncateWidth(m.Title, titleWidth) + "\n")
	}
	return sb.String()
}

// =============================================================================
// EXPORT
// =============================================================================

// ExportMarkdown renders conv as a Markdown transcript. The welcome message
// is omitted.
func ExportMarkdown(conv *model.Conversation) string {
	var sb strings.Builder
	title := conv.Title
	if title == "" {
		title = conv.DeriveTitle()
	}
	sb.WriteString("# " + title + "\n\n")
	sb.WriteString("ID: " + conv.ID + "  \n")
	sb.WriteString("Model: " + conv.SelectedModel.DisplayName() + "  \n")
	if !conv.UpdatedAt.IsZero() {
		sb.WriteString("Updated: " + conv.UpdatedAt.Format(time.RFC3339) + "\n")
	}
	sb.WriteString("\n---\n\n")

	for _, msg := range conv.Messages {
		if msg.ID == model.WelcomeID {
			continue
		}
		sb.WriteString("**" + msg.Role.DisplayName() + "** (" + msg.Timestamp.Format("15:04") + "):\n\n")
		sb.WriteString(msg.Content)
		if len(msg.Keywords) > 0 {
			sb.WriteString("\n\n_Keywords: " + strings.Join(msg.Keywords, ", ") + "_")
		}
		sb.WriteString("\n\n---\n\n")
	}

	if len(conv.SuggestedLinks) > 0 {
		sb.WriteString("## Suggested links\n\n")
		for _, l := range conv.SuggestedLinks {
			sb.WriteString("- [" + l.Label() + "](" + l.URL + ")\n")
		}
	}
	return sb.String()
}

// ExportJSON renders conv as indented JSON in the persisted shape.
func ExportJSON(conv *model.Conversation) ([]byte, error) {
	return json.MarshalIndent(conv, "", "  ")
}
