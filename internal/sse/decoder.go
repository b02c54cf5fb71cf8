// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"strings"
)

// =============================================================================
// EVENT TYPE
// =============================================================================

const (
	// TypeMessage is the type of a frame without an event: line.
	TypeMessage = "message"
	// TypeDone marks the terminal event of a stream.
	TypeDone = "done"
)

// Event is one decoded frame.
type Event struct {
	Type string
	Data string
	ID   *string
}

// =============================================================================
// DECODER
// =============================================================================

// Decoder turns a byte stream into events. Bytes are buffered raw and only
// complete frames are converted to text, so a multi-byte rune split across
// two Feed calls is reassembled before decoding.
//
// The zero value is ready to use. A Decoder is not safe for concurrent use.
type Decoder struct {
	buf  []byte
	scan int // buf[:scan] holds no frame boundary
}

// Feed appends p and returns every event completed by it.
func (d *Decoder) Feed(p []byte) []Event {
	d.buf = append(d.buf, p...)

	var events []Event
	for {
		frameEnd, next, ok := d.nextBoundary()
		if !ok {
			break
		}
		if ev, ok := ParseFrame(string(d.buf[:frameEnd])); ok {
			events = append(events, ev)
		}
		d.buf = d.buf[next:]
		d.scan = 0
	}

	if len(d.buf) == 0 {
		// Drop the backing array once a long stream has been consumed.
		d.buf = nil
	}
	return events
}

// Flush parses whatever is left as a final frame. Call it once the stream
// has ended.
func (d *Decoder) Flush() []Event {
	rest := string(d.buf)
	d.buf = nil
	d.scan = 0

	if strings.TrimSpace(rest) == "" {
		return nil
	}
	if ev, ok := ParseFrame(rest); ok {
		return []Event{ev}
	}
	return nil
}

// Buffered returns the number of bytes waiting for a frame boundary.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// nextBoundary finds the first blank line, matching \r?\n\r?\n. It returns
// the end of the frame text and the start of the following frame.
func (d *Decoder) nextBoundary() (frameEnd, next int, ok bool) {
	buf := d.buf
	for i := d.scan; i < len(buf); i++ {
		if buf[i] != '\n' {
			continue
		}

		j := i + 1
		if j < len(buf) && buf[j] == '\r' {
			j++
		}
		if j >= len(buf) {
			// Cannot tell yet whether this newline ends the frame.
			d.scan = i
			return 0, 0, false
		}
		if buf[j] != '\n' {
			continue
		}

		frameEnd = i
		if frameEnd > 0 && buf[frameEnd-1] == '\r' {
			frameEnd--
		}
		return frameEnd, j + 1, true
	}
	d.scan = len(buf)
	return 0, 0, false
}

// =============================================================================
// FRAME PARSING
// =============================================================================

// ParseFrame decodes a single frame. It reports false when the frame carries
// no data, in which case the event must be dropped.
func ParseFrame(frame string) (Event, bool) {
	ev := Event{Type: TypeMessage}
	var data string

	for _, line := range strings.Split(frame, "\n") {
		line = strings.TrimSuffix(line, "\r")

		switch {
		case strings.HasPrefix(line, "event:"):
			if t := strings.TrimSpace(line[len("event:"):]); t != "" {
				ev.Type = t
			}
		case strings.HasPrefix(line, "data:"):
			value := strings.TrimPrefix(line[len("data:"):], " ")
			// An empty first data line does not start with a newline.
			if data != "" {
				data += "\n"
			}
			data += value
		case strings.HasPrefix(line, "id:"):
			id := strings.TrimSpace(line[len("id:"):])
			ev.ID = &id
		}
	}

	if data == "" {
		return Event{}, false
	}
	ev.Data = data
	return ev, true
}
