package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Environment string
	LogLevel    string
	MetricsPort int

	// Scratch space for request-scoped temp files.
	ScratchDir string

	// External binaries.
	FFmpegPath  string
	FFprobePath string
	YtdlpPath   string

	// Protocol fetch policy.
	FetchAttempts   int
	FetchTimeout    time.Duration
	FetchBackoff    time.Duration
	MinFetchedBytes int64

	// Remote download policy.
	MaxAudioDownloadSize int64
	MaxVideoDownloadSize int64
	MaxSourceDuration    time.Duration
	AudioDownloadTimeout time.Duration
	VideoDownloadTimeout time.Duration

	// Sticker policy.
	StickerDimension   int
	MaxStickerBytes    int64
	MaxStickerDuration time.Duration
	StickerAuthor      string
}

func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	cfg.Environment = getEnvString("ENVIRONMENT", "development")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.MetricsPort = getEnvInt("METRICS_PORT", 0)

	cfg.ScratchDir = getEnvString("SCRATCH_DIR", os.TempDir())

	cfg.FFmpegPath = getEnvString("FFMPEG_PATH", "ffmpeg")
	cfg.FFprobePath = getEnvString("FFPROBE_PATH", "ffprobe")
	cfg.YtdlpPath = getEnvString("YTDLP_PATH", "yt-dlp")

	cfg.FetchAttempts = getEnvInt("FETCH_ATTEMPTS", 3)
	cfg.FetchTimeout, err = getEnvDuration("FETCH_TIMEOUT", "30s")
	if err != nil {
		return nil, fmt.Errorf("invalid FETCH_TIMEOUT: %w", err)
	}
	cfg.FetchBackoff, err = getEnvDuration("FETCH_BACKOFF", "1s")
	if err != nil {
		return nil, fmt.Errorf("invalid FETCH_BACKOFF: %w", err)
	}
	cfg.MinFetchedBytes = getEnvInt64("MIN_FETCHED_BYTES", 100)

	cfg.MaxAudioDownloadSize = getEnvInt64("MAX_AUDIO_DOWNLOAD_SIZE", 25*1024*1024)
	cfg.MaxVideoDownloadSize = getEnvInt64("MAX_VIDEO_DOWNLOAD_SIZE", 100*1024*1024)
	cfg.MaxSourceDuration, err = getEnvDuration("MAX_SOURCE_DURATION", "1h")
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_SOURCE_DURATION: %w", err)
	}
	cfg.AudioDownloadTimeout, err = getEnvDuration("AUDIO_DOWNLOAD_TIMEOUT", "2m")
	if err != nil {
		return nil, fmt.Errorf("invalid AUDIO_DOWNLOAD_TIMEOUT: %w", err)
	}
	cfg.VideoDownloadTimeout, err = getEnvDuration("VIDEO_DOWNLOAD_TIMEOUT", "3m")
	if err != nil {
		return nil, fmt.Errorf("invalid VIDEO_DOWNLOAD_TIMEOUT: %w", err)
	}

	cfg.StickerDimension = getEnvInt("STICKER_DIMENSION", 512)
	cfg.MaxStickerBytes = getEnvInt64("MAX_STICKER_BYTES", 500*1024)
	cfg.MaxStickerDuration, err = getEnvDuration("MAX_STICKER_DURATION", "30s")
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_STICKER_DURATION: %w", err)
	}
	cfg.StickerAuthor = getEnvString("STICKER_AUTHOR", "mediakit")

	return cfg, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key, defaultValue string) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}
	return time.ParseDuration(value)
}

func (c *Config) Validate() error {
	if c.ScratchDir == "" {
		return fmt.Errorf("scratch dir must not be empty")
	}

	if c.FetchAttempts < 1 {
		return fmt.Errorf("invalid fetch attempts: %d", c.FetchAttempts)
	}

	if c.MaxAudioDownloadSize < 1 || c.MaxVideoDownloadSize < 1 {
		return fmt.Errorf("download size limits must be positive")
	}

	if c.StickerDimension < 1 {
		return fmt.Errorf("invalid sticker dimension: %d", c.StickerDimension)
	}

	if c.MaxStickerBytes < 1 {
		return fmt.Errorf("invalid max sticker bytes: %d", c.MaxStickerBytes)
	}

	return nil
}
