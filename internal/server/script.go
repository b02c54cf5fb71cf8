// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jeranaias/nisa-chat/internal/model"
	"github.com/jeranaias/nisa-chat/internal/sse"
	"github.com/jeranaias/nisa-chat/internal/submit"
	"github.com/jeranaias/nisa-chat/internal/transcribe"
)

// ============================================================================
// SCRIPT
// ============================================================================

// Step is one scripted frame, written after Delay. A step with empty data
// only waits.
type Step struct {
	Delay time.Duration
	Event sse.Event
}

// Script is the complete reply to one stream request.
type Script struct {
	// Status, when outside 2xx, is sent with Body instead of a stream.
	Status int
	Body   string
	Steps  []Step
}

// Emit returns a step that writes an event immediately.
func Emit(typ, data string) Step {
	return Step{Event: sse.Event{Type: typ, Data: data}}
}

// Pause returns a step that only waits.
func Pause(d time.Duration) Step {
	return Step{Delay: d}
}

// Fail returns a script answering with a non-2xx status.
func Fail(status int, body string) Script {
	return Script{Status: status, Body: body}
}

// WithSilence delays the first frame by d.
func (s Script) WithSilence(d time.Duration) Script {
	s.Steps = append([]Step{Pause(d)}, s.Steps...)
	return s
}

// WithoutDone drops the done frame so the connection closes abruptly.
func (s Script) WithoutDone() Script {
	steps := make([]Step, 0, len(s.Steps))
	for _, st := range s.Steps {
		if st.Event.Type != sse.TypeDone {
			steps = append(steps, st)
		}
	}
	s.Steps = steps
	return s
}

// Then appends steps.
func (s Script) Then(steps ...Step) Script {
	s.Steps = append(append([]Step(nil), s.Steps...), steps...)
	return s
}

// AskScript streams progress, then partials spaced by delay, then the
// final answer.
func AskScript(progress, partials []string, answer submit.FinalAnswer, delay time.Duration) Script {
	var s Script
	for _, p := range progress {
		s.Steps = append(s.Steps, Emit(submit.EventProgress, p))
	}
	for _, p := range partials {
		st := Emit(submit.EventPartial, p)
		st.Delay = delay
		s.Steps = append(s.Steps, st)
	}
	data, _ := json.Marshal(answer)
	return s.Then(Emit(sse.TypeDone, string(data)))
}

// TranscriptScript streams status chunks, partial chunks, the FINAL chunk
// and done.
func TranscriptScript(status, partials []string, final string, delay time.Duration) Script {
	var s Script
	for _, st := range status {
		s.Steps = append(s.Steps, Emit(transcribe.EventChunk, st))
	}
	for _, p := range partials {
		st := Emit(transcribe.EventChunk, p)
		st.Delay = delay
		s.Steps = append(s.Steps, st)
	}
	return s.Then(
		Emit(transcribe.EventChunk, transcribe.FinalPrefix+final),
		Emit(sse.TypeDone, "ok"),
	)
}

// ============================================================================
// DEFAULT SCRIPTS
// ============================================================================

// AskScriptFunc builds the reply to a query on one route variant.
type AskScriptFunc func(variant string, req submit.Request) Script

// TranscriptScriptFunc builds the reply to an uploaded file.
type TranscriptScriptFunc func(filename string, size int64) Script

var sampleLinks = []model.Link{
	{URL: "https://sian.an.gov.br/fundo/BR_RJANRIO", Title: "Fundo Arquivo Nacional", Slug: "br-rjanrio"},
	{URL: "https://sian.an.gov.br/fundo/BR_DFANBSB", Title: "Coordenação Regional no DF", Slug: "br-dfanbsb"},
}

// DefaultAskScript answers any query with canned text that echoes the
// query, the route variant and the history length.
func DefaultAskScript(delay time.Duration) AskScriptFunc {
	return func(variant string, req submit.Request) Script {
		answer := fmt.Sprintf("Consulta **%s** recebida pelo modelo %s, com %d turno(s) de histórico. "+
			"Os fundos abaixo podem conter documentos relevantes.",
			strings.TrimSpace(req.Query), variant, len(req.History))

		final := submit.FinalAnswer{
			Answer:   answer,
			Links:    sampleLinks,
			Keywords: keywords(req.Query),
		}
		for _, l := range sampleLinks {
			final.AnalyzedLinks = append(final.AnalyzedLinks, l.URL)
		}
		return AskScript(
			[]string{"Analisando a consulta...", "Buscando nos fundos do SIAN..."},
			splitWords(answer),
			final,
			delay,
		)
	}
}

// DefaultTranscriptScript transcribes any file to a sentence naming it.
func DefaultTranscriptScript(delay time.Duration) TranscriptScriptFunc {
	return func(filename string, size int64) Script {
		text := fmt.Sprintf("Transcrição de %s (%s).", filename, humanize.Bytes(uint64(size)))
		return TranscriptScript(
			[]string{"Recebendo arquivo...", "Transcrevendo..."},
			splitWords(text),
			text,
			delay,
		)
	}
}

// splitWords cuts s after each space so the parts concatenate back to s.
func splitWords(s string) []string {
	var parts []string
	for s != "" {
		i := strings.IndexByte(s, ' ')
		if i < 0 {
			parts = append(parts, s)
			break
		}
		parts = append(parts, s[:i+1])
		s = s[i+1:]
	}
	return parts
}

// keywords returns the distinct words of q longer than three letters.
func keywords(q string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range strings.Fields(strings.ToLower(q)) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if len([]rune(w)) <= 3 || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}
