// Package protocol turns encrypted chat attachments into plain bytes. The
// actual transport and decryption belong to the chat-protocol client, which is
// injected as a Downloader; this package owns only the retry, timeout and
// sanity policy around it.
package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/zapcourier/mediakit/internal/metrics"
)

var (
	ErrFetchFailed = errors.New("protocol: fetch exhausted retries")
	ErrUndersized  = errors.New("protocol: decrypted payload implausibly small")
)

// MediaClass selects the protocol-side decryption context for an attachment.
type MediaClass string

const (
	ClassImage    MediaClass = "image"
	ClassVideo    MediaClass = "video"
	ClassAudio    MediaClass = "audio"
	ClassSticker  MediaClass = "sticker"
	ClassDocument MediaClass = "document"
)

// AttachmentRef identifies one encrypted media payload on the protocol side.
type AttachmentRef struct {
	URL           string
	DirectPath    string
	MediaKey      []byte
	FileSHA256    []byte
	FileEncSHA256 []byte
	FileLength    uint64
	MimeType      string
}

// Downloader is the chat-protocol collaborator. It streams decrypted bytes
// for an attachment; everything else (auth, encryption, transport) is its
// problem.
type Downloader interface {
	FetchAndDecrypt(ctx context.Context, ref AttachmentRef, class MediaClass) (io.ReadCloser, error)
}

type FetcherConfig struct {
	Attempts int
	Timeout  time.Duration
	Backoff  time.Duration
	MinBytes int64
}

func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		Attempts: 3,
		Timeout:  30 * time.Second,
		Backoff:  time.Second,
		MinBytes: 100,
	}
}

type Fetcher struct {
	downloader Downloader
	cfg        FetcherConfig
	log        *slog.Logger
}

func NewFetcher(downloader Downloader, cfg FetcherConfig, log *slog.Logger) *Fetcher {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Fetcher{downloader: downloader, cfg: cfg, log: log}
}

// Fetch downloads and decrypts one attachment. Each attempt races the
// collaborator against the configured timeout; a timed-out attempt's result
// is discarded and the next attempt starts fresh. A payload under MinBytes is
// rejected even when the stream completed normally, because the protocol
// server answers some expired attachments with a tiny placeholder instead of
// an error.
func (f *Fetcher) Fetch(ctx context.Context, ref AttachmentRef, class MediaClass) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= f.cfg.Attempts; attempt++ {
		if attempt > 1 && f.cfg.Backoff > 0 {
			select {
			case <-time.After(f.cfg.Backoff):
			case <-ctx.Done():
				metrics.ProtocolFetchesTotal.WithLabelValues("canceled").Inc()
				return nil, fmt.Errorf("%w: %v", ErrFetchFailed, ctx.Err())
			}
		}

		data, err := f.attempt(ctx, ref, class)
		if err != nil {
			lastErr = err
			f.log.Warn("attachment fetch attempt failed",
				"attempt", attempt, "class", string(class), "error", err)
			continue
		}

		if int64(len(data)) < f.cfg.MinBytes {
			metrics.ProtocolFetchesTotal.WithLabelValues("undersized").Inc()
			return nil, fmt.Errorf("%w: got %d bytes", ErrUndersized, len(data))
		}

		metrics.ProtocolFetchesTotal.WithLabelValues("ok").Inc()
		return data, nil
	}

	metrics.ProtocolFetchesTotal.WithLabelValues("failed").Inc()
	return nil, fmt.Errorf("%w: %d attempts, last error: %v", ErrFetchFailed, f.cfg.Attempts, lastErr)
}

type attemptResult struct {
	data []byte
	err  error
}

func (f *Fetcher) attempt(ctx context.Context, ref AttachmentRef, class MediaClass) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	// Buffered so a late result from a timed-out attempt is dropped without
	// blocking the goroutine or leaking into the next attempt.
	ch := make(chan attemptResult, 1)
	go func() {
		stream, err := f.downloader.FetchAndDecrypt(attemptCtx, ref, class)
		if err != nil {
			ch <- attemptResult{err: err}
			return
		}
		defer func() { _ = stream.Close() }()
		data, err := io.ReadAll(stream)
		ch <- attemptResult{data: data, err: err}
	}()

	select {
	case res := <-ch:
		return res.data, res.err
	case <-attemptCtx.Done():
		return nil, attemptCtx.Err()
	}
}
