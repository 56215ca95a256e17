package youtube

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	ytdl "github.com/kkdai/youtube/v2"

	"github.com/zapcourier/mediakit/internal/scratch"
)

// StreamConfig controls the embedded extractor strategy.
type StreamConfig struct {
	MaxDuration time.Duration
}

func DefaultStreamConfig() StreamConfig {
	return StreamConfig{MaxDuration: time.Hour}
}

// streamClient is the slice of the extractor library this strategy consumes.
// *ytdl.Client satisfies it; tests inject fakes.
type streamClient interface {
	GetVideoContext(ctx context.Context, id string) (*ytdl.Video, error)
	GetStreamContext(ctx context.Context, video *ytdl.Video, format *ytdl.Format) (io.ReadCloser, int64, error)
}

// StreamStrategy uses the embedded youtube extractor library instead of an
// external binary. Metadata comes first, so sources over the duration
// ceiling are rejected before a single media byte is transferred.
type StreamStrategy struct {
	client streamClient
	cfg    StreamConfig
	log    *slog.Logger
}

var _ Strategy = (*StreamStrategy)(nil)

func NewStreamStrategy(cfg StreamConfig, log *slog.Logger) *StreamStrategy {
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = time.Hour
	}
	if log == nil {
		log = slog.Default()
	}
	return &StreamStrategy{client: &ytdl.Client{}, cfg: cfg, log: log}
}

func (s *StreamStrategy) Name() string {
	return "stream"
}

func (s *StreamStrategy) Available() bool {
	return true
}

func (s *StreamStrategy) Acquire(ctx context.Context, ref Reference, req Request, dest scratch.Handle) (*RawMedia, error) {
	if ref.IsQuery() {
		return nil, fmt.Errorf("%w: embedded extractor needs a video reference, not a query", ErrInvalidReference)
	}

	video, err := s.client.GetVideoContext(ctx, ref.VideoID)
	if err != nil {
		return nil, fmt.Errorf("metadata fetch failed: %w", err)
	}

	maxDuration := req.MaxDuration
	if maxDuration <= 0 || maxDuration > s.cfg.MaxDuration {
		maxDuration = s.cfg.MaxDuration
	}
	if video.Duration > maxDuration {
		return nil, fmt.Errorf("%w: %s reported %s, limit %s",
			ErrDurationExceeded, ref.VideoID, video.Duration, maxDuration)
	}

	format, err := s.pickFormat(video, req.Kind)
	if err != nil {
		return nil, err
	}

	stream, size, err := s.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return nil, fmt.Errorf("stream open failed: %w", err)
	}
	defer func() { _ = stream.Close() }()

	out, err := os.Create(dest.Path)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	written, copyErr := io.Copy(out, stream)
	closeErr := out.Close()
	if copyErr != nil {
		return nil, fmt.Errorf("stream copy failed after %d/%d bytes: %w", written, size, copyErr)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("close output file: %w", closeErr)
	}
	if written == 0 {
		return nil, fmt.Errorf("stream produced no bytes for %s", ref.VideoID)
	}

	return &RawMedia{
		Path:     dest.Path,
		Title:    video.Title,
		Method:   s.Name(),
		MimeType: strings.SplitN(format.MimeType, ";", 2)[0],
		Duration: video.Duration,
	}, nil
}

// pickFormat chooses the smallest workable format: audio-only mp4 audio for
// audio requests, progressive mp4 with an audio track for video requests.
func (s *StreamStrategy) pickFormat(video *ytdl.Video, kind Kind) (*ytdl.Format, error) {
	if kind == KindAudio {
		for i := range video.Formats {
			f := &video.Formats[i]
			if strings.HasPrefix(f.MimeType, "audio/mp4") {
				return f, nil
			}
		}
		for i := range video.Formats {
			f := &video.Formats[i]
			if strings.HasPrefix(f.MimeType, "audio/") {
				return f, nil
			}
		}
		return nil, fmt.Errorf("no audio format available for %s", video.ID)
	}

	formats := video.Formats.WithAudioChannels()
	for i := range formats {
		f := &formats[i]
		if strings.HasPrefix(f.MimeType, "video/mp4") && f.QualityLabel != "" {
			return f, nil
		}
	}
	if len(formats) > 0 {
		return &formats[0], nil
	}
	return nil, fmt.Errorf("no progressive video format available for %s", video.ID)
}
