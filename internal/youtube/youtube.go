// Package youtube resolves video-sharing URLs, bare video IDs and free-text
// search queries into downloaded audio or video files. Acquisition methods are
// interchangeable strategies tried in a fixed order; the first one to produce
// a non-empty file wins.
package youtube

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	ErrInvalidReference    = errors.New("youtube: invalid video reference")
	ErrDurationExceeded    = errors.New("youtube: source duration exceeds limit")
	ErrSizeExceeded        = errors.New("youtube: downloaded file exceeds size limit")
	ErrUnsupportedMethod   = errors.New("youtube: method cannot retrieve media")
	ErrAllStrategiesFailed = errors.New("youtube: all acquisition strategies failed")
)

type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// Request describes one acquisition. Input is a recognized URL, a bare
// 11-character video ID, or anything else, which is treated as a search
// query. Exactly one pipeline invocation owns a Request.
type Request struct {
	Input       string
	Kind        Kind
	MaxBytes    int64
	MaxDuration time.Duration
}

// Reference is the parsed form of a Request input.
type Reference struct {
	VideoID string
	Query   string
}

func (r Reference) IsQuery() bool {
	return r.VideoID == ""
}

func (r Reference) WatchURL() string {
	return "https://www.youtube.com/watch?v=" + r.VideoID
}

// RawMedia is a downloaded stream sitting in scratch space, not yet read
// into memory. Method names the strategy that produced it.
type RawMedia struct {
	Path     string
	Title    string
	Method   string
	MimeType string
	Duration time.Duration
}

// Attempt records one strategy's outcome for diagnostics.
type Attempt struct {
	Strategy string
	Err      error
}

// ChainError carries the full attempt log when every strategy failed.
type ChainError struct {
	Attempts []Attempt
}

func (e *ChainError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Strategy, a.Err))
	}
	return fmt.Sprintf("%v (%s)", ErrAllStrategiesFailed, strings.Join(parts, "; "))
}

func (e *ChainError) Unwrap() error {
	return ErrAllStrategiesFailed
}

var (
	videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

	urlIDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`[?&]v=([A-Za-z0-9_-]{11})`),
		regexp.MustCompile(`youtu\.be/([A-Za-z0-9_-]{11})`),
		regexp.MustCompile(`/embed/([A-Za-z0-9_-]{11})`),
		regexp.MustCompile(`/shorts/([A-Za-z0-9_-]{11})`),
		regexp.MustCompile(`/live/([A-Za-z0-9_-]{11})`),
	}
)

func looksLikeURL(input string) bool {
	return strings.Contains(input, "://") ||
		strings.Contains(input, "youtube.com") ||
		strings.Contains(input, "youtu.be")
}

// ExtractVideoID pulls the 11-character video ID out of the recognized URL
// shapes (watch, youtu.be, embed, shorts, live) or accepts a bare ID.
func ExtractVideoID(input string) (string, bool) {
	input = strings.TrimSpace(input)
	if videoIDPattern.MatchString(input) {
		return input, true
	}
	for _, p := range urlIDPatterns {
		if m := p.FindStringSubmatch(input); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// ParseReference classifies a Request input. A recognizable URL without an
// extractable ID is invalid; anything that is not a URL and not a bare ID is
// a search query. No network calls are made here.
func ParseReference(input string) (Reference, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Reference{}, fmt.Errorf("%w: empty input", ErrInvalidReference)
	}
	if id, ok := ExtractVideoID(input); ok {
		return Reference{VideoID: id}, nil
	}
	if looksLikeURL(input) {
		return Reference{}, fmt.Errorf("%w: %q", ErrInvalidReference, input)
	}
	return Reference{Query: input}, nil
}
