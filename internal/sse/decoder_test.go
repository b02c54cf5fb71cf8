// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

// sampleStream mixes LF and CRLF frames, multi-line data, ids, multi-byte
// text and an empty-data frame that must be dropped.
const sampleStream = "event: progress\ndata: Buscando documentos...\n\n" +
	"event: partial\r\ndata: Fundo Agência Nacional, séries\r\n\r\n" +
	"event: partial\ndata: linha um\ndata:linha dois\nid: 7\n\n" +
	"event: ping\ndata:\n\n" +
	": comment only\n\n" +
	"data: sem tipo ✓\n\n" +
	"event: done\ndata: {\"resposta\":\"ok\"}\n\n"

var sampleEvents = []Event{
	{Type: "progress", Data: "Buscando documentos..."},
	{Type: "partial", Data: "Fundo Agência Nacional, séries"},
	{Type: "partial", Data: "linha um\nlinha dois", ID: strPtr("7")},
	{Type: TypeMessage, Data: "sem tipo ✓"},
	{Type: TypeDone, Data: `{"resposta":"ok"}`},
}

func decodeChunks(chunks ...[]byte) []Event {
	var d Decoder
	var out []Event
	for _, c := range chunks {
		out = append(out, d.Feed(c)...)
	}
	return append(out, d.Flush()...)
}

func TestDecoder_SingleChunk(t *testing.T) {
	assert.Equal(t, sampleEvents, decodeChunks([]byte(sampleStream)))
}

func TestDecoder_ChunkBoundaryInvariance(t *testing.T) {
	raw := []byte(sampleStream)
	want := decodeChunks(raw)

	for i := 0; i <= len(raw); i++ {
		got := decodeChunks(raw[:i], raw[i:])
		require.Equal(t, want, got, "split at byte %d", i)
	}
}

func TestDecoder_TwoSplitInvariance(t *testing.T) {
	raw := []byte(sampleStream)
	want := decodeChunks(raw)

	for i := 0; i <= len(raw); i++ {
		for j := i; j <= len(raw); j++ {
			got := decodeChunks(raw[:i], raw[i:j], raw[j:])
			if !assert.Equal(t, want, got, "split at %d and %d", i, j) {
				return
			}
		}
	}
}

func TestDecoder_ByteAtATime(t *testing.T) {
	raw := []byte(sampleStream)
	chunks := make([][]byte, len(raw))
	for i := range raw {
		chunks[i] = raw[i : i+1]
	}
	assert.Equal(t, sampleEvents, decodeChunks(chunks...))
}

func TestDecoder_KeepsIncompleteFrame(t *testing.T) {
	var d Decoder

	events := d.Feed([]byte("event: partial\ndata: meio"))
	assert.Empty(t, events)
	assert.Positive(t, d.Buffered())

	events = d.Feed([]byte(" do texto\n\n"))
	require.Len(t, events, 1)
	assert.Equal(t, "meio do texto", events[0].Data)
	assert.Zero(t, d.Buffered())
}

func TestDecoder_SplitMultiByteRune(t *testing.T) {
	raw := []byte("data: século\n\n")
	// "é" is two bytes; split between them.
	idx := 0
	for i, b := range raw {
		if b == 0xC3 {
			idx = i + 1
			break
		}
	}
	require.NotZero(t, idx)

	events := decodeChunks(raw[:idx], raw[idx:])
	require.Len(t, events, 1)
	assert.Equal(t, "século", events[0].Data)
}

func TestDecoder_FlushTrailingFrame(t *testing.T) {
	var d Decoder
	assert.Empty(t, d.Feed([]byte("event: done\ndata: {}")))

	events := d.Flush()
	require.Len(t, events, 1)
	assert.Equal(t, TypeDone, events[0].Type)
	assert.Equal(t, "{}", events[0].Data)

	assert.Empty(t, d.Flush(), "flush must be idempotent")
}

func TestDecoder_FlushBlankRemainder(t *testing.T) {
	var d Decoder
	d.Feed([]byte("data: x\n\n\r\n"))
	assert.Empty(t, d.Flush())
}

func TestParseFrame(t *testing.T) {
	tests := []struct {
		name   string
		frame  string
		want   Event
		wantOK bool
	}{
		{"default type", "data: x", Event{Type: TypeMessage, Data: "x"}, true},
		{"type trimmed", "event:  progress  \ndata: x", Event{Type: "progress", Data: "x"}, true},
		{"only one space stripped", "data:   x", Event{Type: TypeMessage, Data: "  x"}, true},
		{"no space", "data:x", Event{Type: TypeMessage, Data: "x"}, true},
		{"id trimmed", "id:  42 \ndata: x", Event{Type: TypeMessage, Data: "x", ID: strPtr("42")}, true},
		{"empty data dropped", "event: progress\ndata: ", Event{}, false},
		{"no data dropped", "event: progress", Event{}, false},
		{"leading empty data line", "data:\ndata: x", Event{Type: TypeMessage, Data: "x"}, true},
		{"crlf lines", "event: partial\r\ndata: a\r\ndata: b", Event{Type: "partial", Data: "a\nb"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseFrame(tc.frame)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
