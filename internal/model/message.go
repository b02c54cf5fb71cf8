// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "Você"
	case RoleAssistant:
		return "NISA"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a committed entry of the conversation log. Assistant messages are
// only created once a stream has finished, so a Message never changes after
// it is appended.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// Set on final answers only.
	Keywords      []string `json:"palavras_chave,omitempty"`
	AnalyzedLinks []string `json:"links_analisados,omitempty"`
}

// NewMessage creates a message with a fresh ID stamped now.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) Message {
	return NewMessage(RoleAssistant, content)
}

// IsUser reports whether the message was written by the user.
func (m Message) IsUser() bool { return m.Role == RoleUser }

// IsAssistant reports whether the message came from NISA.
func (m Message) IsAssistant() bool { return m.Role == RoleAssistant }

// =============================================================================
// LINK TYPE
// =============================================================================

// Link is a suggested resource attached to a final answer.
type Link struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
	Slug  string `json:"slug,omitempty"`
}

// Label returns the title when present and the URL otherwise.
func (l Link) Label() string {
	if l.Title != "" {
		return l.Title
	}
	return l.URL
}
