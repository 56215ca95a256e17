package transcoder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zapcourier/mediakit/internal/logger"
)

func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not available, skipping test")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not available, skipping test")
	}
}

func newTestTranscoder(t *testing.T) *Transcoder {
	t.Helper()
	tr, err := New(DefaultConfig(), logger.NewTestLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return tr
}

// makeTestImage renders a solid-color frame with ffmpeg's lavfi source so
// tests need no checked-in fixtures.
func makeTestImage(t *testing.T, dir string, width, height int) string {
	t.Helper()
	path := filepath.Join(dir, fmt.Sprintf("input-%dx%d.png", width, height))
	cmd := exec.Command("ffmpeg", "-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=red:s=%dx%d", width, height),
		"-vframes", "1",
		path,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to generate test image: %v, output: %s", err, out)
	}
	return path
}

func makeTestVideo(t *testing.T, dir string, seconds int) string {
	t.Helper()
	path := filepath.Join(dir, "input.mp4")
	cmd := exec.Command("ffmpeg", "-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("testsrc=duration=%d:size=320x240:rate=12", seconds),
		"-f", "lavfi",
		"-i", fmt.Sprintf("sine=frequency=440:duration=%d", seconds),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-shortest",
		path,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to generate test video: %v, output: %s", err, out)
	}
	return path
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr error
	}{
		{
			name: "missing ffmpeg",
			cfg: &Config{
				FFmpegPath:  "/nonexistent/ffmpeg",
				FFprobePath: "true",
			},
			wantErr: ErrFFmpegNotFound,
		},
		{
			name: "missing ffprobe",
			cfg: &Config{
				FFmpegPath:  "true",
				FFprobePath: "/nonexistent/ffprobe",
			},
			wantErr: ErrFFprobeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, logger.NewTestLogger())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("New() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRunRequiresNonEmptyOutput(t *testing.T) {
	// "true" exits 0 without writing anything; a clean exit code alone must
	// never count as success.
	cfg := &Config{
		FFmpegPath:         "true",
		FFprobePath:        "true",
		StickerDimension:   512,
		MaxStickerBytes:    500 * 1024,
		MaxStickerDuration: 30 * time.Second,
	}
	tr, err := New(cfg, logger.NewTestLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	out := filepath.Join(t.TempDir(), "never-written.webp")
	err = tr.run(context.Background(), "test_job", nil, out)
	if !errors.Is(err, ErrTranscodeFailed) {
		t.Errorf("run() error = %v, want ErrTranscodeFailed", err)
	}
}

func TestRunFailsOnEncoderError(t *testing.T) {
	cfg := &Config{
		FFmpegPath:         "false",
		FFprobePath:        "true",
		StickerDimension:   512,
		MaxStickerBytes:    500 * 1024,
		MaxStickerDuration: 30 * time.Second,
	}
	tr, err := New(cfg, logger.NewTestLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	err = tr.run(context.Background(), "test_job", nil, filepath.Join(t.TempDir(), "out"))
	if !errors.Is(err, ErrTranscodeFailed) {
		t.Errorf("run() error = %v, want ErrTranscodeFailed", err)
	}
}

// fakeEncoder builds a shell script that records each invocation and writes
// a payload of a fixed size to the job's output path (the last argument).
func fakeEncoder(t *testing.T, dir string, outputBytes int) (binPath, countPath string) {
	t.Helper()
	countPath = filepath.Join(dir, "invocations")
	binPath = filepath.Join(dir, "fake-ffmpeg")
	script := fmt.Sprintf(`#!/bin/sh
echo run >> %q
for a; do out=$a; done
head -c %d /dev/zero > "$out"
`, countPath, outputBytes)
	if err := os.WriteFile(binPath, []byte(script), 0755); err != nil {
		t.Fatalf("failed to write fake encoder: %v", err)
	}
	return binPath, countPath
}

func invocationCount(t *testing.T, countPath string) int {
	t.Helper()
	data, err := os.ReadFile(countPath)
	if err != nil {
		t.Fatalf("failed to read invocation log: %v", err)
	}
	return strings.Count(string(data), "run")
}

func TestEncodeAnimatedStickerSingleReductionRetry(t *testing.T) {
	dir := t.TempDir()
	bin, countPath := fakeEncoder(t, dir, 2048)

	cfg := &Config{
		FFmpegPath:         bin,
		FFprobePath:        "true",
		StickerDimension:   512,
		MaxStickerBytes:    1024,
		MaxStickerDuration: 30 * time.Second,
	}
	tr, err := New(cfg, logger.NewTestLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	out := filepath.Join(dir, "out.webp")
	err = tr.EncodeAnimatedSticker(context.Background(), "in.mp4", out, 30*time.Second)
	if !errors.Is(err, ErrStickerTooLarge) {
		t.Fatalf("EncodeAnimatedSticker() error = %v, want ErrStickerTooLarge", err)
	}
	if got := invocationCount(t, countPath); got != 2 {
		t.Errorf("encoder invoked %d times, want exactly 2 (one encode, one retry)", got)
	}
}

func TestEncodeAnimatedStickerNoRetryWhenSmall(t *testing.T) {
	dir := t.TempDir()
	bin, countPath := fakeEncoder(t, dir, 512)

	cfg := &Config{
		FFmpegPath:         bin,
		FFprobePath:        "true",
		StickerDimension:   512,
		MaxStickerBytes:    1024,
		MaxStickerDuration: 30 * time.Second,
	}
	tr, err := New(cfg, logger.NewTestLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	out := filepath.Join(dir, "out.webp")
	if err := tr.EncodeAnimatedSticker(context.Background(), "in.mp4", out, 30*time.Second); err != nil {
		t.Fatalf("EncodeAnimatedSticker() error = %v", err)
	}
	if got := invocationCount(t, countPath); got != 1 {
		t.Errorf("encoder invoked %d times, want 1", got)
	}
}

func TestEncodeStaticStickerCanvas(t *testing.T) {
	skipIfNoFFmpeg(t)
	tr := newTestTranscoder(t)
	dir := t.TempDir()

	tests := []struct {
		name   string
		width  int
		height int
	}{
		{"wide input", 320, 100},
		{"tall input", 100, 320},
		{"square input", 200, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := makeTestImage(t, dir, tt.width, tt.height)
			output := filepath.Join(dir, fmt.Sprintf("out-%s.webp", strings.ReplaceAll(tt.name, " ", "-")))

			if err := tr.EncodeStaticSticker(context.Background(), input, output); err != nil {
				t.Fatalf("EncodeStaticSticker() error = %v", err)
			}

			md, err := tr.Probe(context.Background(), output)
			if err != nil {
				t.Fatalf("Probe() error = %v", err)
			}
			if md.Width != 512 || md.Height != 512 {
				t.Errorf("sticker canvas = %dx%d, want 512x512", md.Width, md.Height)
			}
		})
	}
}

func TestEncodeAnimatedStickerTruncatesDuration(t *testing.T) {
	skipIfNoFFmpeg(t)
	tr := newTestTranscoder(t)
	dir := t.TempDir()

	input := makeTestVideo(t, dir, 4)
	output := filepath.Join(dir, "out.webp")

	if err := tr.EncodeAnimatedSticker(context.Background(), input, output, time.Second); err != nil {
		t.Fatalf("EncodeAnimatedSticker() error = %v", err)
	}

	info, err := os.Stat(output)
	if err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if info.Size() == 0 {
		t.Error("output is empty")
	}
}

func TestExtractAudio(t *testing.T) {
	skipIfNoFFmpeg(t)
	tr := newTestTranscoder(t)
	dir := t.TempDir()

	input := makeTestVideo(t, dir, 2)
	output := filepath.Join(dir, "out.mp3")

	if err := tr.ExtractAudio(context.Background(), input, output); err != nil {
		t.Fatalf("ExtractAudio() error = %v", err)
	}

	md, err := tr.Probe(context.Background(), output)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if !md.HasAudio {
		t.Error("extracted file has no audio stream")
	}
	if md.HasVideo {
		t.Error("extracted file still has a video stream")
	}
}

func TestProbeVideoMetadata(t *testing.T) {
	skipIfNoFFmpeg(t)
	tr := newTestTranscoder(t)
	dir := t.TempDir()

	input := makeTestVideo(t, dir, 2)

	md, err := tr.Probe(context.Background(), input)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if md.Width != 320 || md.Height != 240 {
		t.Errorf("dimensions = %dx%d, want 320x240", md.Width, md.Height)
	}
	if md.Duration < 1 || md.Duration > 3 {
		t.Errorf("duration = %.2f, want about 2s", md.Duration)
	}
	if !md.HasVideo || !md.HasAudio {
		t.Errorf("HasVideo=%v HasAudio=%v, want both true", md.HasVideo, md.HasAudio)
	}
}

func TestProbeInvalidFile(t *testing.T) {
	skipIfNoFFmpeg(t)
	tr := newTestTranscoder(t)

	path := filepath.Join(t.TempDir(), "garbage.mp4")
	if err := os.WriteFile(path, []byte("not a video at all"), 0644); err != nil {
		t.Fatalf("failed to write garbage file: %v", err)
	}

	md, err := tr.Probe(context.Background(), path)
	if err == nil && (md.HasVideo || md.HasAudio) {
		t.Error("Probe() reported streams for garbage input")
	}
}
