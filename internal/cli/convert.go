package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	extractAudioOutput string
	voiceOutput        string
)

var extractAudioCmd = &cobra.Command{
	Use:   "extract-audio <video-file>",
	Short: "Extract a video's audio track as MP3",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		asset, err := pipe.VideoToAudio(cmd.Context(), data)
		if err != nil {
			return err
		}
		return writeAsset(asset, extractAudioOutput)
	},
}

var voiceCmd = &cobra.Command{
	Use:   "voice <audio-file>",
	Short: "Convert audio into a push-to-talk voice note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		asset, err := pipe.AudioToVoice(cmd.Context(), data)
		if err != nil {
			return err
		}
		return writeAsset(asset, voiceOutput)
	},
}

func init() {
	extractAudioCmd.Flags().StringVarP(&extractAudioOutput, "output", "o", "audio.mp3", "Output file path")
	voiceCmd.Flags().StringVarP(&voiceOutput, "output", "o", "voice.ogg", "Output file path")
}
