// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sse streams Server-Sent Events from a POST request.
//
// Browsers only speak SSE over GET, and the archive backend answers a POSTed
// JSON query with an event stream, so the framing is decoded here over the
// raw response body.
//
// # Key Types
//
//   - Decoder: incremental frame decoder, safe across arbitrary chunk splits
//   - Client: issues the request and dispatches decoded events to Handlers
//   - TransportError: non-2xx responses and mid-stream network failures
//
// # Usage
//
//	client := sse.NewClient(sse.WithLogger(logger))
//	err := client.Stream(ctx, url, payload, sse.Handlers{
//	    OnEvent: func(ev sse.Event) { ... },
//	    OnDone:  func(ev sse.Event) { ... },
//	    OnError: func(err error) { ... },
//	    OnClose: func() { ... },
//	})
//
// Cancelling ctx aborts the request silently: neither OnError nor OnClose
// fires afterwards.
package sse
