// Package transcoder wraps the external ffmpeg/ffprobe binaries. Every job
// converts one scratch file into another; success always requires a
// non-empty output file, never just a zero exit code.
package transcoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/zapcourier/mediakit/internal/metrics"
)

var (
	ErrFFmpegNotFound  = errors.New("transcoder: ffmpeg not found in PATH")
	ErrFFprobeNotFound = errors.New("transcoder: ffprobe not found in PATH")
	ErrTranscodeFailed = errors.New("transcoder: transcoding failed")
	ErrInvalidMedia    = errors.New("transcoder: invalid or corrupted media file")
	ErrStickerTooLarge = errors.New("transcoder: sticker too large even after compression")
)

type Config struct {
	FFmpegPath  string
	FFprobePath string

	StickerDimension   int
	MaxStickerBytes    int64
	MaxStickerDuration time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		FFmpegPath:         "ffmpeg",
		FFprobePath:        "ffprobe",
		StickerDimension:   512,
		MaxStickerBytes:    500 * 1024,
		MaxStickerDuration: 30 * time.Second,
	}
}

type Transcoder struct {
	cfg *Config
	log *slog.Logger
}

func New(cfg *Config, log *slog.Logger) (*Transcoder, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = slog.Default()
	}

	if _, err := exec.LookPath(cfg.FFmpegPath); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFFmpegNotFound, err)
	}
	if _, err := exec.LookPath(cfg.FFprobePath); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFFprobeNotFound, err)
	}

	return &Transcoder{cfg: cfg, log: log}, nil
}

// run executes one ffmpeg invocation and verifies the output. An encoder
// error fails the job; a clean exit with a missing or empty output file
// fails it too.
func (t *Transcoder) run(ctx context.Context, job string, args []string, outputPath string) error {
	start := time.Now()

	cmd := exec.CommandContext(ctx, t.cfg.FFmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	metrics.TranscodeDuration.WithLabelValues(job).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.TranscodesTotal.WithLabelValues(job, "error").Inc()
		return fmt.Errorf("%w: %s: %v, stderr: %s",
			ErrTranscodeFailed, job, err, strings.TrimSpace(stderr.String()))
	}

	info, statErr := os.Stat(outputPath)
	if statErr != nil || info.Size() == 0 {
		metrics.TranscodesTotal.WithLabelValues(job, "no_output").Inc()
		return fmt.Errorf("%w: %s produced no output", ErrTranscodeFailed, job)
	}

	metrics.TranscodesTotal.WithLabelValues(job, "ok").Inc()
	t.log.Debug("transcode finished", "job", job, "size", info.Size(), "took", time.Since(start))
	return nil
}

// ExtractAudio pulls the audio track out of a video into an MP3 file.
func (t *Transcoder) ExtractAudio(ctx context.Context, inputPath, outputPath string) error {
	args := []string{
		"-y",
		"-i", inputPath,
		"-vn",
		"-acodec", "libmp3lame",
		"-q:a", "2",
		outputPath,
	}
	return t.run(ctx, "extract_audio", args, outputPath)
}

// ConvertToVoice re-encodes any audio into the mono Opus-in-Ogg format that
// chat clients render as a push-to-talk voice note.
func (t *Transcoder) ConvertToVoice(ctx context.Context, inputPath, outputPath string) error {
	args := []string{
		"-y",
		"-i", inputPath,
		"-vn",
		"-acodec", "libopus",
		"-b:a", "64k",
		"-ac", "1",
		"-ar", "48000",
		outputPath,
	}
	return t.run(ctx, "voice_note", args, outputPath)
}

// ConvertToMP3 normalizes a downloaded audio stream into a plain MP3.
func (t *Transcoder) ConvertToMP3(ctx context.Context, inputPath, outputPath string) error {
	args := []string{
		"-y",
		"-i", inputPath,
		"-vn",
		"-acodec", "libmp3lame",
		"-b:a", "128k",
		outputPath,
	}
	return t.run(ctx, "audio_mp3", args, outputPath)
}

// ConvertToMP4 re-encodes a downloaded video into web-friendly H.264 MP4.
func (t *Transcoder) ConvertToMP4(ctx context.Context, inputPath, outputPath string) error {
	args := []string{
		"-y",
		"-i", inputPath,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "26",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		outputPath,
	}
	return t.run(ctx, "video_mp4", args, outputPath)
}

// ExtractFrame decodes the first frame of a sticker or video into a PNG.
func (t *Transcoder) ExtractFrame(ctx context.Context, inputPath, outputPath string) error {
	args := []string{
		"-y",
		"-i", inputPath,
		"-vframes", "1",
		outputPath,
	}
	return t.run(ctx, "extract_frame", args, outputPath)
}
