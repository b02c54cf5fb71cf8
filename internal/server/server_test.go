// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/nisa-chat/internal/logging"
	"github.com/jeranaias/nisa-chat/internal/model"
	"github.com/jeranaias/nisa-chat/internal/progress"
	"github.com/jeranaias/nisa-chat/internal/session"
	"github.com/jeranaias/nisa-chat/internal/sse"
	"github.com/jeranaias/nisa-chat/internal/submit"
	"github.com/jeranaias/nisa-chat/internal/transcribe"
)

func newTestServer(t *testing.T, opts ...Option) (*Server, *httptest.Server) {
	t.Helper()
	opts = append([]Option{WithLogger(logging.Discard()), WithPartialDelay(0)}, opts...)
	srv := New(opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

// collect streams url and records every callback.
type collected struct {
	events []sse.Event
	done   *sse.Event
	err    error
	closed bool
}

func collect(t *testing.T, url string, body any) (collected, error) {
	t.Helper()
	var c collected
	err := sse.NewClient(sse.WithLogger(logging.Discard())).Stream(context.Background(), url, body, sse.Handlers{
		OnEvent: func(ev sse.Event) { c.events = append(c.events, ev) },
		OnDone:  func(ev sse.Event) { c.done = &ev },
		OnError: func(err error) { c.err = err },
		OnClose: func() { c.closed = true },
	})
	return c, err
}

func multipartBody(t *testing.T, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

// =============================================================================
// QUERY STREAMS
// =============================================================================

func TestAskStream_DefaultScript(t *testing.T) {
	_, ts := newTestServer(t)

	c, err := collect(t, ts.URL+"/ask-stream", submit.Request{
		Query:   "cartas de imigrantes",
		History: []model.HistoryTurn{{UserText: "oi", BotText: "olá"}},
	})
	require.NoError(t, err)
	require.NotNil(t, c.done)

	var partial strings.Builder
	var progressSeen int
	for _, ev := range c.events {
		switch ev.Type {
		case submit.EventProgress:
			progressSeen++
		case submit.EventPartial:
			partial.WriteString(ev.Data)
		}
	}
	assert.Equal(t, 2, progressSeen)

	var final submit.FinalAnswer
	require.NoError(t, json.Unmarshal([]byte(c.done.Data), &final))
	assert.Equal(t, final.Answer, partial.String(), "partials concatenate to the answer")
	assert.Contains(t, final.Answer, "cartas de imigrantes")
	assert.Contains(t, final.Answer, VariantAdvanced)
	assert.Contains(t, final.Answer, "1 turno")
	assert.Len(t, final.Links, 2)
	assert.Equal(t, []string{"cartas", "imigrantes"}, final.Keywords)
	assert.Len(t, final.AnalyzedLinks, 2)
}

func TestAskStream_Variants(t *testing.T) {
	_, ts := newTestServer(t)
	for path, variant := range map[string]string{
		"/ask-stream-flash": VariantFast,
		"/ask-stream":       VariantAdvanced,
		"/ask-pdf-stream":   VariantDocument,
	} {
		c, err := collect(t, ts.URL+path, submit.Request{Query: "mapas"})
		require.NoError(t, err, path)
		require.NotNil(t, c.done, path)
		assert.Contains(t, c.done.Data, "modelo "+variant, path)
	}
}

func TestAskStream_BadRequests(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/ask-stream", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/ask-stream", "application/json", strings.NewReader(`{"consulta":"  "}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestAskStream_ScriptedFailures(t *testing.T) {
	t.Run("non-2xx", func(t *testing.T) {
		_, ts := newTestServer(t, WithAskScript(func(string, submit.Request) Script {
			return Fail(http.StatusInternalServerError, "pipeline down")
		}))
		c, err := collect(t, ts.URL+"/ask-stream", submit.Request{Query: "x"})
		var te *sse.TransportError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, http.StatusInternalServerError, te.Status)
		assert.Contains(t, te.Body, "pipeline down")
		assert.Nil(t, c.done)
	})

	t.Run("error event", func(t *testing.T) {
		_, ts := newTestServer(t, WithAskScript(func(string, submit.Request) Script {
			return Script{}.Then(Emit(submit.EventProgress, "Buscando..."), Emit(submit.EventError, "índice indisponível"))
		}))
		c, err := collect(t, ts.URL+"/ask-stream", submit.Request{Query: "x"})
		require.NoError(t, err)
		require.Len(t, c.events, 2)
		assert.Equal(t, "índice indisponível", c.events[1].Data)
		assert.True(t, c.closed)
	})

	t.Run("abrupt close", func(t *testing.T) {
		_, ts := newTestServer(t, WithAskScript(func(v string, r submit.Request) Script {
			return DefaultAskScript(0)(v, r).WithoutDone()
		}))
		c, err := collect(t, ts.URL+"/ask-stream", submit.Request{Query: "x"})
		require.NoError(t, err)
		assert.Nil(t, c.done)
		assert.True(t, c.closed)
	})
}

func TestAskStream_SilenceHonoursCancel(t *testing.T) {
	_, ts := newTestServer(t, WithAskScript(func(v string, r submit.Request) Script {
		return DefaultAskScript(0)(v, r).WithSilence(time.Hour)
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	var opened bool
	err := sse.NewClient().Stream(ctx, ts.URL+"/ask-stream", submit.Request{Query: "x"}, sse.Handlers{
		OnOpen: func() { opened = true },
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, opened, "headers are flushed before the silence")
}

// =============================================================================
// FILE ROUTES
// =============================================================================

func TestProcessPDF(t *testing.T) {
	_, ts := newTestServer(t)

	body, ct := multipartBody(t, "inventario.pdf", []byte("%PDF-1.4"))
	resp, err := http.Post(ts.URL+"/process-pdf", ct, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct{ Query string }
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Contains(t, out.Query, "inventario.pdf")

	body, ct = multipartBody(t, "foto.png", []byte("x"))
	resp2, err := http.Post(ts.URL+"/process-pdf", ct, body)
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp2.StatusCode)

	resp3, err := http.Post(ts.URL+"/process-pdf", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	resp3.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp3.StatusCode)
}

func TestTranscribeStream(t *testing.T) {
	_, ts := newTestServer(t)
	client := transcribe.NewClient(transcribe.WithLogger(logging.Discard()))

	tr := transcribe.NewTranscript(nil)
	var statuses []string
	err := client.Transcribe(context.Background(), ts.URL+"/transcribe-audio-stream", "entrevista.mp3",
		strings.NewReader(strings.Repeat("a", 1500)), tr.Handlers(transcribe.Handlers{
			OnProgress: func(s string) { statuses = append(statuses, s) },
		}))
	require.NoError(t, err)

	assert.Equal(t, []string{"Recebendo arquivo...", "Transcrevendo..."}, statuses)
	assert.True(t, tr.Final())
	assert.True(t, tr.Done())
	assert.Equal(t, "Transcrição de entrevista.mp3 (1.5 kB).", tr.Text())
}

// =============================================================================
// HEALTH AND METRICS
// =============================================================================

func TestHealthAndMetrics(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	var h HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
	resp.Body.Close()
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, Version, h.Version)

	_, err = collect(t, ts.URL+"/ask-stream-flash", submit.Request{Query: "mapas"})
	require.NoError(t, err)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	text := string(data)
	assert.Contains(t, text, `nisa_http_requests_total{route="/health",status="200"} 1`)
	assert.Contains(t, text, `nisa_stream_events_total{route="flash",type="done"} 1`)
	assert.Contains(t, text, "nisa_active_streams 0")
}

func TestCORSPreflight(t *testing.T) {
	_, ts := newTestServer(t)

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/ask-stream", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

// =============================================================================
// END TO END
// =============================================================================

type e2eView struct {
	mu       sync.Mutex
	loading  bool
	partials []string
}

func (v *e2eView) SetLoading(b bool) { v.mu.Lock(); v.loading = b; v.mu.Unlock() }
func (v *e2eView) SetProgress(string) {}
func (v *e2eView) SetPartial(p string) {
	v.mu.Lock()
	v.partials = append(v.partials, p)
	v.mu.Unlock()
}
func (v *e2eView) OpenLinksPanel()    {}
func (v *e2eView) ViewportWidth() int { return 1280 }

func TestEndToEnd_ControllerAgainstServer(t *testing.T) {
	_, ts := newTestServer(t)

	sess := session.New(nil, session.WithLogger(logging.Discard()))
	view := &e2eView{}
	results := make(chan submit.Result, 4)
	ctrl, err := submit.New(submit.Deps{
		Conversation: sess,
		View:         view,
		Transport:    sse.NewClient(sse.WithLogger(logging.Discard())),
		Resolver: submit.Endpoints{
			BaseURL:  ts.URL,
			Fast:     "/ask-stream-flash",
			Advanced: "/ask-stream",
			Document: "/ask-pdf-stream",
		},
		Progress: progress.DefaultConfig(),
		Logger:   logging.Discard(),
		OnFinish: func(r submit.Result) { results <- r },
	})
	require.NoError(t, err)
	defer ctrl.Close()

	ask := func(q string) submit.Result {
		sess.SetInput(q)
		require.True(t, ctrl.Submit(context.Background()))
		select {
		case r := <-results:
			return r
		case <-time.After(5 * time.Second):
			t.Fatal("no result")
			return submit.Result{}
		}
	}

	r := ask("fotografias de Brasília")
	assert.Equal(t, submit.OutcomeCompleted, r.Outcome)
	r = ask("e plantas da cidade")
	assert.Equal(t, submit.OutcomeCompleted, r.Outcome)

	msgs := sess.Messages()
	require.Len(t, msgs, 5)
	assert.Contains(t, msgs[2].Content, "fotografias de Brasília")
	assert.Contains(t, msgs[2].Content, "0 turno")
	assert.Contains(t, msgs[4].Content, "1 turno", "second query carries the first exchange")
	assert.Len(t, sess.SuggestedLinks(), 2)
	assert.NotEmpty(t, view.partials)
}
