package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/zapcourier/mediakit/internal/pipeline"
)

var (
	stickerOutput string
	stickerUser   string

	animateOutput   string
	animateUser     string
	animateDuration time.Duration

	unstickerOutput string
)

var stickerCmd = &cobra.Command{
	Use:   "sticker <image-file>",
	Short: "Convert an image into a square static sticker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		asset, err := pipe.StickerFromImage(cmd.Context(), data, pipeline.Options{UserName: stickerUser})
		if err != nil {
			return err
		}
		return writeAsset(asset, stickerOutput)
	},
}

var animateCmd = &cobra.Command{
	Use:   "animate <video-file>",
	Short: "Convert a video into an animated sticker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		asset, err := pipe.StickerFromVideo(cmd.Context(), data, animateDuration, pipeline.Options{UserName: animateUser})
		if err != nil {
			return err
		}
		return writeAsset(asset, animateOutput)
	},
}

var unstickerCmd = &cobra.Command{
	Use:   "unsticker <sticker-file>",
	Short: "Convert a sticker back into a PNG image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		asset, err := pipe.StickerToImage(cmd.Context(), data)
		if err != nil {
			return err
		}
		return writeAsset(asset, unstickerOutput)
	},
}

func init() {
	stickerCmd.Flags().StringVarP(&stickerOutput, "output", "o", "sticker.webp", "Output file path")
	stickerCmd.Flags().StringVar(&stickerUser, "user", "", "Display name used for the sticker pack name")

	animateCmd.Flags().StringVarP(&animateOutput, "output", "o", "sticker.webp", "Output file path")
	animateCmd.Flags().StringVar(&animateUser, "user", "", "Display name used for the sticker pack name")
	animateCmd.Flags().DurationVar(&animateDuration, "duration", 0, "Clamp the animation length (0 uses the configured cap)")

	unstickerCmd.Flags().StringVarP(&unstickerOutput, "output", "o", "image.png", "Output file path")
}
