// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package submit

import (
	"time"
)

// State is the lifecycle position of a submission.
type State int

const (
	StateIdle State = iota
	StateSending
	StateStreaming
	StateCompleted
	StateFailed
	StateAborted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// InFlight reports whether a request is outstanding.
func (s State) InFlight() bool {
	return s == StateSending || s == StateStreaming
}

// Outcome classifies how a submission ended.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeCompleted
	OutcomeServerError    // "error" event from the backend
	OutcomeTransportError // non-2xx or broken connection
	OutcomeParseError     // undecodable "done" payload
	OutcomeClosed         // stream ended before "done"
	OutcomeAborted
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeCompleted:
		return "completed"
	case OutcomeServerError:
		return "server_error"
	case OutcomeTransportError:
		return "transport_error"
	case OutcomeParseError:
		return "parse_error"
	case OutcomeClosed:
		return "closed"
	case OutcomeAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Result is reported to Deps.OnFinish once per submission.
type Result struct {
	ID       uint64
	Query    string
	Outcome  Outcome
	Err      error
	Duration time.Duration
}
