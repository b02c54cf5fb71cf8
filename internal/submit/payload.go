// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package submit

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/jeranaias/nisa-chat/internal/model"
)

// Request is the JSON body of a query.
type Request struct {
	Query   string              `json:"consulta"`
	History []model.HistoryTurn `json:"historico,omitempty"`
}

// FinalAnswer is the JSON carried by the "done" event.
type FinalAnswer struct {
	Answer        string       `json:"resposta"`
	Links         []model.Link `json:"links,omitempty"`
	Keywords      []string     `json:"palavras_chave,omitempty"`
	AnalyzedLinks []string     `json:"links_analisados,omitempty"`
}

var errNotObject = errors.New("final answer is not a JSON object")

// DecodeFinalAnswer parses a "done" payload. Only a payload that is not a
// JSON object fails; optional fields of an unexpected type are dropped so
// the answer text survives.
func DecodeFinalAnswer(data string) (FinalAnswer, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(data), &fields); err != nil {
		return FinalAnswer{}, err
	}
	if fields == nil {
		return FinalAnswer{}, errNotObject
	}

	var a FinalAnswer
	decodeField(fields, "resposta", &a.Answer)
	decodeField(fields, "links", &a.Links)
	decodeField(fields, "palavras_chave", &a.Keywords)
	decodeField(fields, "links_analisados", &a.AnalyzedLinks)
	return a, nil
}

// decodeField leaves dst at its zero value when key is missing or does not
// decode.
func decodeField[T any](fields map[string]json.RawMessage, key string, dst *T) {
	raw, ok := fields[key]
	if !ok {
		return
	}
	var v T
	if err := json.Unmarshal(raw, &v); err == nil {
		*dst = v
	}
}

// Event types of the query stream.
const (
	EventProgress = "progress"
	EventPartial  = "partial"
	EventError    = "error"
)

// =============================================================================
// ENDPOINTS
// =============================================================================

// Resolver maps the selected model to a stream URL. document is true when
// the query was generated from an attached PDF.
type Resolver interface {
	Endpoint(choice model.ModelChoice, document bool) string
}

// Endpoints is a Resolver over a base URL and per-variant paths.
type Endpoints struct {
	BaseURL  string
	Fast     string
	Advanced string
	Document string
}

// DefaultEndpoints points at a local backend.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		BaseURL:  "http://localhost:8000",
		Fast:     "/ask-stream-flash",
		Advanced: "/ask-stream",
		Document: "/ask-pdf-stream",
	}
}

// Endpoint implements Resolver.
func (e Endpoints) Endpoint(choice model.ModelChoice, document bool) string {
	switch {
	case document && e.Document != "":
		return JoinURL(e.BaseURL, e.Document)
	case choice == model.ModelAdvanced:
		return JoinURL(e.BaseURL, e.Advanced)
	default:
		return JoinURL(e.BaseURL, e.Fast)
	}
}

// JoinURL appends path to base. A path that is already absolute wins.
func JoinURL(base, path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
