package youtube

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/zapcourier/mediakit/internal/metrics"
	"github.com/zapcourier/mediakit/internal/scratch"
)

// YtdlpConfig controls the external downloader strategy.
type YtdlpConfig struct {
	BinaryPath   string
	AudioTimeout time.Duration
	VideoTimeout time.Duration
	TitleTimeout time.Duration
}

func DefaultYtdlpConfig() YtdlpConfig {
	return YtdlpConfig{
		BinaryPath:   "yt-dlp",
		AudioTimeout: 120 * time.Second,
		VideoTimeout: 180 * time.Second,
		TitleTimeout: 30 * time.Second,
	}
}

// YtdlpStrategy shells out to the yt-dlp binary. It is the primary strategy:
// the binary handles every URL shape, throttling countermeasures and search
// queries, none of which the embedded extractor can fully cover.
type YtdlpStrategy struct {
	cfg       YtdlpConfig
	available bool
	log       *slog.Logger
}

var _ Strategy = (*YtdlpStrategy)(nil)

func NewYtdlpStrategy(cfg YtdlpConfig, log *slog.Logger) *YtdlpStrategy {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = "yt-dlp"
	}
	if cfg.AudioTimeout <= 0 {
		cfg.AudioTimeout = 120 * time.Second
	}
	if cfg.VideoTimeout <= 0 {
		cfg.VideoTimeout = 180 * time.Second
	}
	if cfg.TitleTimeout <= 0 {
		cfg.TitleTimeout = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	_, err := exec.LookPath(cfg.BinaryPath)
	return &YtdlpStrategy{cfg: cfg, available: err == nil, log: log}
}

func (s *YtdlpStrategy) Name() string {
	return "ytdlp"
}

// Available is resolved once at construction time.
func (s *YtdlpStrategy) Available() bool {
	return s.available
}

func (s *YtdlpStrategy) target(ref Reference) string {
	if ref.IsQuery() {
		return "ytsearch1:" + ref.Query
	}
	return ref.WatchURL()
}

func (s *YtdlpStrategy) Acquire(ctx context.Context, ref Reference, req Request, dest scratch.Handle) (*RawMedia, error) {
	target := s.target(ref)
	title := s.fetchTitle(ctx, target)

	timeout := s.cfg.VideoTimeout
	if req.Kind == KindAudio {
		timeout = s.cfg.AudioTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := s.downloadArgs(req, target, dest.Path)
	cmd := exec.CommandContext(runCtx, s.cfg.BinaryPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	// Success is the expected output file existing and being non-empty,
	// regardless of the exit code: yt-dlp returns non-zero for warnings
	// that do not affect the download. The ignored code is still logged.
	info, statErr := os.Stat(dest.Path)
	if statErr != nil || info.Size() == 0 {
		if runErr != nil {
			return nil, fmt.Errorf("yt-dlp failed: %w, stderr: %s", runErr, strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("yt-dlp produced no output for %s", target)
	}
	if runErr != nil {
		metrics.IgnoredExitCodesTotal.WithLabelValues(s.Name()).Inc()
		s.log.Warn("yt-dlp exited non-zero but produced output",
			"target", target, "size", info.Size(), "error", runErr)
	}

	mime := "video/mp4"
	if req.Kind == KindAudio {
		mime = "audio/mp4"
	}
	return &RawMedia{
		Path:     dest.Path,
		Title:    title,
		Method:   s.Name(),
		MimeType: mime,
	}, nil
}

func (s *YtdlpStrategy) downloadArgs(req Request, target, outputPath string) []string {
	args := []string{
		"--no-playlist",
		"--no-warnings",
		"--no-progress",
	}
	if req.MaxBytes > 0 {
		args = append(args, "--max-filesize", strconv.FormatInt(req.MaxBytes, 10))
	}
	if req.Kind == KindAudio {
		args = append(args, "-f", "bestaudio[ext=m4a]/bestaudio")
	} else {
		args = append(args, "-f", "best[ext=mp4][height<=720]/best[ext=mp4]/best")
	}
	return append(args, "-o", outputPath, target)
}

// fetchTitle asks yt-dlp for the title without downloading. Best effort: a
// download with no title is still a download.
func (s *YtdlpStrategy) fetchTitle(ctx context.Context, target string) string {
	titleCtx, cancel := context.WithTimeout(ctx, s.cfg.TitleTimeout)
	defer cancel()

	cmd := exec.CommandContext(titleCtx, s.cfg.BinaryPath,
		"--no-playlist",
		"--no-warnings",
		"--print", "%(title)s",
		target,
	)
	out, err := cmd.Output()
	if err != nil {
		s.log.Debug("title fetch failed", "target", target, "error", err)
		return ""
	}
	return strings.TrimSpace(string(out))
}
