// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"crypto/rand"
	"strconv"
	"strings"
	"time"
)

// WelcomeText greets the user at the top of every conversation.
const WelcomeText = "Olá! Eu sou **NISA**, uma IA especializada em busca arquivística do S**IA**N.\n\n" +
	"Posso ajudá-lo a encontrar documentos, fundos arquivísticos, séries documentais e informações históricas.\n\n" +
	"O que você deseja pesquisar hoje?"

// WelcomeID is the fixed ID of the welcome message.
const WelcomeID = "1"

// DefaultTitle names a conversation that has no user message yet.
const DefaultTitle = "Nova conversa"

// TitleMaxRunes bounds a derived conversation title.
const TitleMaxRunes = 50

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds one chat and the per-conversation UI state that is
// persisted with it.
type Conversation struct {
	ID             string      `json:"id"`
	Messages       []Message   `json:"messages"`
	Input          string      `json:"input"`
	SelectedModel  ModelChoice `json:"selectedModel"`
	SuggestedLinks []Link      `json:"suggestedLinks"`
	Title          string      `json:"title"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// NewConversation creates a conversation holding only the welcome message.
func NewConversation() *Conversation {
	return &Conversation{
		ID:             GenerateConversationID(),
		Messages:       []Message{WelcomeMessage()},
		SelectedModel:  DefaultModel,
		SuggestedLinks: []Link{},
	}
}

// WelcomeMessage returns the synthetic greeting placed at Messages[0].
func WelcomeMessage() Message {
	return Message{
		ID:        WelcomeID,
		Role:      RoleAssistant,
		Content:   WelcomeText,
		Timestamp: time.Now(),
	}
}

// AddMessage appends msg to the log.
func (c *Conversation) AddMessage(msg Message) {
	c.Messages = append(c.Messages, msg)
}

// HasUserMessages reports whether anything beyond the welcome message exists.
// Conversations without it are never persisted.
func (c *Conversation) HasUserMessages() bool {
	return len(c.Messages) > 1
}

// History returns the turns to send with the next query.
func (c *Conversation) History() []HistoryTurn {
	return BuildHistory(c.Messages)
}

// DeriveTitle returns the first 50 runes of the first message after the
// welcome, or DefaultTitle.
func (c *Conversation) DeriveTitle() string {
	if len(c.Messages) < 2 || c.Messages[1].Content == "" {
		return DefaultTitle
	}
	runes := []rune(c.Messages[1].Content)
	if len(runes) > TitleMaxRunes {
		runes = runes[:TitleMaxRunes]
	}
	return strings.TrimSpace(string(runes))
}

// Normalize repairs a conversation loaded from storage: it guarantees the
// welcome message at index 0, a valid model and non-nil slices.
func (c *Conversation) Normalize() {
	if len(c.Messages) == 0 || c.Messages[0].ID != WelcomeID {
		c.Messages = append([]Message{WelcomeMessage()}, c.Messages...)
	}
	if c.SelectedModel == "" {
		c.SelectedModel = DefaultModel
	}
	if c.SuggestedLinks == nil {
		c.SuggestedLinks = []Link{}
	}
}

// =============================================================================
// IDS
// =============================================================================

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// GenerateConversationID returns an ID of the form conv_<unix-ms>_<9 base36>.
func GenerateConversationID() string {
	buf := make([]byte, 9)
	rand.Read(buf)
	for i, b := range buf {
		buf[i] = idAlphabet[int(b)%len(idAlphabet)]
	}
	return "conv_" + strconv.FormatInt(time.Now().UnixMilli(), 10) + "_" + string(buf)
}
