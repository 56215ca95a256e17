// Package cli is the command-line front end for the media pipeline. Each
// subcommand maps onto one pipeline operation.
package cli

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/zapcourier/mediakit/internal/config"
	"github.com/zapcourier/mediakit/internal/logger"
	"github.com/zapcourier/mediakit/internal/pipeline"
	"github.com/zapcourier/mediakit/internal/protocol"
	"github.com/zapcourier/mediakit/internal/scratch"
	"github.com/zapcourier/mediakit/internal/sticker"
	"github.com/zapcourier/mediakit/internal/transcoder"
	"github.com/zapcourier/mediakit/internal/youtube"
)

var (
	cfg  *config.Config
	pipe *pipeline.Pipeline
)

var rootCmd = &cobra.Command{
	Use:   "mediakit",
	Short: "mediakit - convert and download chat media",
	Long: `mediakit converts media for chat delivery: square stickers from
images and videos, voice notes and MP3s from videos, and audio or video
downloaded from a video-sharing URL or search query.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger.Init(cfg.LogLevel)
		log := logger.Default()

		dir, err := scratch.NewDir(cfg.ScratchDir, log)
		if err != nil {
			return err
		}

		trans, err := transcoder.New(&transcoder.Config{
			FFmpegPath:         cfg.FFmpegPath,
			FFprobePath:        cfg.FFprobePath,
			StickerDimension:   cfg.StickerDimension,
			MaxStickerBytes:    cfg.MaxStickerBytes,
			MaxStickerDuration: cfg.MaxStickerDuration,
		}, log)
		if err != nil {
			return err
		}

		acquirer := youtube.NewAcquirer(dir, log,
			youtube.NewYtdlpStrategy(youtube.YtdlpConfig{
				BinaryPath:   cfg.YtdlpPath,
				AudioTimeout: cfg.AudioDownloadTimeout,
				VideoTimeout: cfg.VideoDownloadTimeout,
			}, log),
			youtube.NewStreamStrategy(youtube.StreamConfig{
				MaxDuration: cfg.MaxSourceDuration,
			}, log),
			youtube.NewOembedStrategy(nil, log),
		)

		// The protocol collaborator is only available inside a running bot;
		// the CLI wires the pipeline without it.
		var fetcher *protocol.Fetcher

		packer := sticker.NewPacker(nil, cfg.StickerAuthor, log)

		pipe = pipeline.New(pipeline.Config{
			MaxAudioBytes:      cfg.MaxAudioDownloadSize,
			MaxVideoBytes:      cfg.MaxVideoDownloadSize,
			MaxSourceDuration:  cfg.MaxSourceDuration,
			MaxStickerDuration: cfg.MaxStickerDuration,
			TitleCacheSize:     64,
		}, dir, trans, fetcher, acquirer, packer, log)

		if cfg.MetricsPort > 0 {
			go serveMetrics(cfg.MetricsPort)
		}
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(stickerCmd)
	rootCmd.AddCommand(animateCmd)
	rootCmd.AddCommand(unstickerCmd)
	rootCmd.AddCommand(extractAudioCmd)
	rootCmd.AddCommand(voiceCmd)
	rootCmd.AddCommand(downloadAudioCmd)
	rootCmd.AddCommand(downloadVideoCmd)
}

func serveMetrics(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logger.Default().Error("metrics server error", "error", err)
	}
}

func writeAsset(asset *pipeline.Asset, path string) error {
	if err := os.WriteFile(path, asset.Data, 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	fmt.Printf("%s wrote %s (%d bytes, %s)\n",
		color.GreenString("✓"), path, asset.Size, asset.MimeType)
	if asset.Title != "" {
		fmt.Printf("%s title: %s\n", color.CyanString("→"), asset.Title)
	}
	if asset.Method != "" {
		fmt.Printf("%s method: %s\n", color.CyanString("→"), asset.Method)
	}
	return nil
}
