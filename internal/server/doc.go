// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides a development archive backend that speaks the
// NISA wire protocol with scripted answers.
//
// # Endpoints
//
//   - POST /ask-stream-flash        - query stream, fast variant
//   - POST /ask-stream              - query stream, advanced variant
//   - POST /ask-pdf-stream          - query stream about an attached PDF
//   - POST /process-pdf             - multipart PDF, returns {"query": ...}
//   - POST /transcribe-audio-stream - multipart audio, transcript stream
//   - POST /transcribe-video-stream - multipart video, transcript stream
//   - GET  /health                  - Health check
//   - GET  /metrics                 - Prometheus metrics
//
// # Scripts
//
// Every stream reply is a Script: a list of timed frames, or a non-2xx
// status. Tests swap scripts to produce silence, server error events,
// abrupt closes and failed responses:
//
//	srv := server.New(server.WithAskScript(func(string, submit.Request) server.Script {
//		return server.Fail(http.StatusInternalServerError, "boom")
//	}))
//	ts := httptest.NewServer(srv.Handler())
package server
