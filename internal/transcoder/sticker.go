package transcoder

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	stickerQuality        = 60
	stickerRetryQuality   = 30
	stickerRetryMaxLength = 10 * time.Second
	stickerFrameRate      = 12
)

// stickerFilter scales the source to fit the square canvas preserving aspect
// ratio, then pads the remainder with transparent pixels. Cropping or
// stretching would render differently across receiving clients, so neither
// is ever allowed.
func (t *Transcoder) stickerFilter() string {
	d := t.cfg.StickerDimension
	return fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=0x00000000,format=rgba",
		d, d, d, d,
	)
}

// EncodeStaticSticker converts a single image into a square WEBP sticker.
func (t *Transcoder) EncodeStaticSticker(ctx context.Context, inputPath, outputPath string) error {
	args := []string{
		"-y",
		"-i", inputPath,
		"-vf", t.stickerFilter(),
		"-vcodec", "libwebp",
		"-lossless", "0",
		"-q:v", "85",
		"-vframes", "1",
		"-an",
		outputPath,
	}
	return t.run(ctx, "sticker_static", args, outputPath)
}

// EncodeAnimatedSticker converts a video into an animated WEBP sticker. A
// source longer than the duration cap is truncated, not rejected. If the
// first encode exceeds the size limit, exactly one re-encode happens at
// reduced quality with the duration clamped; if that is still too large the
// job fails rather than looping.
func (t *Transcoder) EncodeAnimatedSticker(ctx context.Context, inputPath, outputPath string, maxDuration time.Duration) error {
	if maxDuration <= 0 || maxDuration > t.cfg.MaxStickerDuration {
		maxDuration = t.cfg.MaxStickerDuration
	}

	if err := t.encodeAnimated(ctx, inputPath, outputPath, stickerQuality, maxDuration); err != nil {
		return err
	}
	size, err := fileSize(outputPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTranscodeFailed, err)
	}
	if size <= t.cfg.MaxStickerBytes {
		return nil
	}

	retryDuration := maxDuration
	if retryDuration > stickerRetryMaxLength {
		retryDuration = stickerRetryMaxLength
	}
	t.log.Info("animated sticker oversized, re-encoding once",
		"size", size, "limit", t.cfg.MaxStickerBytes, "retry_duration", retryDuration)

	if err := t.encodeAnimated(ctx, inputPath, outputPath, stickerRetryQuality, retryDuration); err != nil {
		return err
	}
	size, err = fileSize(outputPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTranscodeFailed, err)
	}
	if size > t.cfg.MaxStickerBytes {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrStickerTooLarge, size, t.cfg.MaxStickerBytes)
	}
	return nil
}

func (t *Transcoder) encodeAnimated(ctx context.Context, inputPath, outputPath string, quality int, maxDuration time.Duration) error {
	args := []string{
		"-y",
		"-i", inputPath,
		"-t", fmt.Sprintf("%.2f", maxDuration.Seconds()),
		"-vf", fmt.Sprintf("fps=%d,%s", stickerFrameRate, t.stickerFilter()),
		"-vcodec", "libwebp",
		"-lossless", "0",
		"-q:v", strconv.Itoa(quality),
		"-loop", "0",
		"-an",
		outputPath,
	}
	return t.run(ctx, "sticker_animated", args, outputPath)
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
