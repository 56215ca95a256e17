package transcoder

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Metadata describes one media file as reported by ffprobe.
type Metadata struct {
	Duration   float64
	Width      int
	Height     int
	VideoCodec string
	AudioCodec string
	HasAudio   bool
	HasVideo   bool
	Container  string
	FileSize   int64
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
		Size     string `json:"size"`
		Name     string `json:"format_name"`
	} `json:"format"`
}

// Probe runs ffprobe against a file on disk.
func (t *Transcoder) Probe(ctx context.Context, path string) (*Metadata, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	cmd := exec.CommandContext(ctx, t.cfg.FFprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: ffprobe failed: %v", ErrInvalidMedia, err)
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("%w: unparseable ffprobe output: %v", ErrInvalidMedia, err)
	}

	md := &Metadata{}

	if probe.Format.Duration != "" {
		if d, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
			md.Duration = d
		}
	}
	if probe.Format.Size != "" {
		if s, err := strconv.ParseInt(probe.Format.Size, 10, 64); err == nil {
			md.FileSize = s
		}
	}
	md.Container = strings.Split(probe.Format.Name, ",")[0]

	for _, stream := range probe.Streams {
		switch stream.CodecType {
		case "video":
			md.VideoCodec = stream.CodecName
			md.Width = stream.Width
			md.Height = stream.Height
			md.HasVideo = true
		case "audio":
			md.AudioCodec = stream.CodecName
			md.HasAudio = true
		}
	}

	return md, nil
}
