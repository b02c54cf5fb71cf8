// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package upload turns an attached file into query text: PDFs go through
// the backend's process-pdf route, audio and video through the streaming
// transcription routes. A Watcher does the same for every media file that
// lands in a folder.
package upload

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
)

// DefaultMaxBytes is the upload limit when none is configured.
const DefaultMaxBytes int64 = 200 * 1024 * 1024

var (
	// ErrUnsupportedFormat is returned for files that are not PDF, audio or video.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrFileTooLarge is returned when a file exceeds the upload limit.
	ErrFileTooLarge = errors.New("file too large")
)

// Kind classifies an accepted file.
type Kind int

const (
	KindUnknown Kind = iota
	KindPDF
	KindAudio
	KindVideo
)

func (k Kind) String() string {
	switch k {
	case KindPDF:
		return "pdf"
	case KindAudio:
		return "audio"
	case KindVideo:
		return "video"
	default:
		return "unknown"
	}
}

var extKinds = map[string]Kind{
	".pdf":  KindPDF,
	".mp3":  KindAudio,
	".wav":  KindAudio,
	".m4a":  KindAudio,
	".ogg":  KindAudio,
	".mp4":  KindVideo,
	".webm": KindVideo,
	".mov":  KindVideo,
}

// Detect classifies path by extension, falling back to the MIME type
// registered for the extension.
func Detect(path string) (Kind, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if k, ok := extKinds[ext]; ok {
		return k, nil
	}
	if k := kindOfMIME(mime.TypeByExtension(ext)); k != KindUnknown {
		return k, nil
	}
	return KindUnknown, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
}

func kindOfMIME(mt string) Kind {
	mt, _, _ = strings.Cut(mt, ";")
	switch {
	case mt == "application/pdf":
		return KindPDF
	case strings.HasPrefix(mt, "audio/"):
		return KindAudio
	case strings.HasPrefix(mt, "video/"):
		return KindVideo
	}
	return KindUnknown
}

// IsAudioOrVideo reports whether kind is transcribed rather than processed.
func IsAudioOrVideo(kind Kind) bool {
	return kind == KindAudio || kind == KindVideo
}

// CheckSize stats path and enforces maxBytes. A non-positive limit uses
// DefaultMaxBytes.
func CheckSize(path string, maxBytes int64) (int64, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	fi, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	if fi.IsDir() {
		return 0, fmt.Errorf("%w: %s is a directory", ErrUnsupportedFormat, filepath.Base(path))
	}
	if fi.Size() > maxBytes {
		return fi.Size(), fmt.Errorf("%w: %s is %s, limit is %s", ErrFileTooLarge,
			filepath.Base(path), humanize.IBytes(uint64(fi.Size())), humanize.IBytes(uint64(maxBytes)))
	}
	return fi.Size(), nil
}

// TranscriptPath is where the transcript of a media file is written.
func TranscriptPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".txt"
}
