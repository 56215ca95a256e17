package cli

import (
	"github.com/spf13/cobra"
)

var (
	downloadAudioOutput string
	downloadVideoOutput string
)

var downloadAudioCmd = &cobra.Command{
	Use:   "download-audio <url-or-query>",
	Short: "Download audio from a video-sharing URL or search query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asset, err := pipe.RemoteAudio(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return writeAsset(asset, downloadAudioOutput)
	},
}

var downloadVideoCmd = &cobra.Command{
	Use:   "download-video <url-or-query>",
	Short: "Download video from a video-sharing URL or search query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asset, err := pipe.RemoteVideo(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return writeAsset(asset, downloadVideoOutput)
	},
}

func init() {
	downloadAudioCmd.Flags().StringVarP(&downloadAudioOutput, "output", "o", "audio.mp3", "Output file path")
	downloadVideoCmd.Flags().StringVarP(&downloadVideoOutput, "output", "o", "video.mp4", "Output file path")
}
