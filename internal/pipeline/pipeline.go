// Package pipeline composes acquisition, transcoding and packing into the
// operations the command layer calls. Each call is self-contained: every
// scratch file it allocates is released on every exit path, and no state is
// shared between concurrent calls beyond uniquely-named scratch space.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/image/webp"

	"github.com/zapcourier/mediakit/internal/metrics"
	"github.com/zapcourier/mediakit/internal/protocol"
	"github.com/zapcourier/mediakit/internal/scratch"
	"github.com/zapcourier/mediakit/internal/sticker"
	"github.com/zapcourier/mediakit/internal/transcoder"
	"github.com/zapcourier/mediakit/internal/youtube"
)

var (
	ErrTooLarge = errors.New("pipeline: result exceeds size limit")
	ErrInternal = errors.New("pipeline: internal error")
)

// Asset is the terminal artifact of a pipeline call. Size always equals
// len(Data).
type Asset struct {
	Data     []byte
	MimeType string
	Size     int64
	Title    string
	Method   string
	Duration float64
}

// Options carries per-request caller context.
type Options struct {
	UserName string
}

type Config struct {
	MaxAudioBytes      int64
	MaxVideoBytes      int64
	MaxSourceDuration  time.Duration
	MaxStickerDuration time.Duration
	TitleCacheSize     int
}

func DefaultConfig() Config {
	return Config{
		MaxAudioBytes:      25 * 1024 * 1024,
		MaxVideoBytes:      100 * 1024 * 1024,
		MaxSourceDuration:  time.Hour,
		MaxStickerDuration: 30 * time.Second,
		TitleCacheSize:     64,
	}
}

type Pipeline struct {
	cfg      Config
	scratch  *scratch.Dir
	trans    *transcoder.Transcoder
	fetcher  *protocol.Fetcher
	acquirer *youtube.Acquirer
	packer   *sticker.Packer
	titles   *titleCache
	log      *slog.Logger
}

func New(
	cfg Config,
	dir *scratch.Dir,
	trans *transcoder.Transcoder,
	fetcher *protocol.Fetcher,
	acquirer *youtube.Acquirer,
	packer *sticker.Packer,
	log *slog.Logger,
) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		cfg:      cfg,
		scratch:  dir,
		trans:    trans,
		fetcher:  fetcher,
		acquirer: acquirer,
		packer:   packer,
		titles:   newTitleCache(cfg.TitleCacheSize),
		log:      log,
	}
}

// guard converts a panic into a typed error at the pipeline boundary so that
// deferred scratch releases still run and callers never see a stack trace.
func (p *Pipeline) guard(err *error) {
	if r := recover(); r != nil {
		p.log.Error("pipeline panic recovered", "panic", r)
		*err = fmt.Errorf("%w: %v", ErrInternal, r)
	}
}

// DownloadMedia fetches and decrypts one protocol attachment.
func (p *Pipeline) DownloadMedia(ctx context.Context, ref protocol.AttachmentRef, class protocol.MediaClass) (data []byte, err error) {
	defer p.guard(&err)
	return p.fetcher.Fetch(ctx, ref, class)
}

// StickerFromImage converts an image into a square static sticker with pack
// metadata.
func (p *Pipeline) StickerFromImage(ctx context.Context, image []byte, opts Options) (asset *Asset, err error) {
	defer p.guard(&err)

	in, releaseIn := p.scratch.Scoped("img")
	defer releaseIn()
	if err := os.WriteFile(in.Path, image, 0644); err != nil {
		return nil, fmt.Errorf("%w: write input: %v", ErrInternal, err)
	}

	out, releaseOut := p.scratch.Scoped("webp")
	defer releaseOut()

	if err := p.trans.EncodeStaticSticker(ctx, in.Path, out.Path); err != nil {
		return nil, err
	}

	return p.finishSticker(out.Path, opts)
}

// StickerFromVideo converts a video into an animated sticker. Sources longer
// than maxDuration are truncated.
func (p *Pipeline) StickerFromVideo(ctx context.Context, video []byte, maxDuration time.Duration, opts Options) (asset *Asset, err error) {
	defer p.guard(&err)

	if maxDuration <= 0 || maxDuration > p.cfg.MaxStickerDuration {
		maxDuration = p.cfg.MaxStickerDuration
	}

	in, releaseIn := p.scratch.Scoped("mp4")
	defer releaseIn()
	if err := os.WriteFile(in.Path, video, 0644); err != nil {
		return nil, fmt.Errorf("%w: write input: %v", ErrInternal, err)
	}

	out, releaseOut := p.scratch.Scoped("webp")
	defer releaseOut()

	if err := p.trans.EncodeAnimatedSticker(ctx, in.Path, out.Path, maxDuration); err != nil {
		return nil, err
	}

	return p.finishSticker(out.Path, opts)
}

func (p *Pipeline) finishSticker(path string, opts Options) (*Asset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read output: %v", ErrInternal, err)
	}

	packed := p.packer.Pack(data, opts.UserName)
	metrics.OutputBytes.WithLabelValues("sticker").Observe(float64(len(packed)))
	return &Asset{
		Data:     packed,
		MimeType: "image/webp",
		Size:     int64(len(packed)),
	}, nil
}

// StickerToImage decodes a received sticker back into a PNG. Static WEBP is
// decoded in-process; animated stickers fall back to extracting the first
// frame with the encoder binary.
func (p *Pipeline) StickerToImage(ctx context.Context, stickerData []byte) (asset *Asset, err error) {
	defer p.guard(&err)

	if img, decodeErr := webp.Decode(bytes.NewReader(stickerData)); decodeErr == nil {
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return nil, fmt.Errorf("%w: png encode: %v", ErrInternal, err)
		}
		metrics.OutputBytes.WithLabelValues("image").Observe(float64(buf.Len()))
		return &Asset{
			Data:     buf.Bytes(),
			MimeType: "image/png",
			Size:     int64(buf.Len()),
		}, nil
	}

	in, releaseIn := p.scratch.Scoped("webp")
	defer releaseIn()
	if err := os.WriteFile(in.Path, stickerData, 0644); err != nil {
		return nil, fmt.Errorf("%w: write input: %v", ErrInternal, err)
	}

	out, releaseOut := p.scratch.Scoped("png")
	defer releaseOut()

	if err := p.trans.ExtractFrame(ctx, in.Path, out.Path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(out.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: read output: %v", ErrInternal, err)
	}
	metrics.OutputBytes.WithLabelValues("image").Observe(float64(len(data)))
	return &Asset{
		Data:     data,
		MimeType: "image/png",
		Size:     int64(len(data)),
	}, nil
}

// VideoToAudio strips the audio track out of a video as MP3.
func (p *Pipeline) VideoToAudio(ctx context.Context, video []byte) (asset *Asset, err error) {
	defer p.guard(&err)

	in, releaseIn := p.scratch.Scoped("mp4")
	defer releaseIn()
	if err := os.WriteFile(in.Path, video, 0644); err != nil {
		return nil, fmt.Errorf("%w: write input: %v", ErrInternal, err)
	}

	out, releaseOut := p.scratch.Scoped("mp3")
	defer releaseOut()

	if err := p.trans.ExtractAudio(ctx, in.Path, out.Path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(out.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: read output: %v", ErrInternal, err)
	}
	metrics.OutputBytes.WithLabelValues("audio").Observe(float64(len(data)))
	return &Asset{
		Data:     data,
		MimeType: "audio/mpeg",
		Size:     int64(len(data)),
	}, nil
}

// AudioToVoice re-encodes audio into the Opus voice-note format the chat
// protocol renders as push-to-talk.
func (p *Pipeline) AudioToVoice(ctx context.Context, audio []byte) (asset *Asset, err error) {
	defer p.guard(&err)

	in, releaseIn := p.scratch.Scoped("audio")
	defer releaseIn()
	if err := os.WriteFile(in.Path, audio, 0644); err != nil {
		return nil, fmt.Errorf("%w: write input: %v", ErrInternal, err)
	}

	out, releaseOut := p.scratch.Scoped("ogg")
	defer releaseOut()

	if err := p.trans.ConvertToVoice(ctx, in.Path, out.Path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(out.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: read output: %v", ErrInternal, err)
	}
	metrics.OutputBytes.WithLabelValues("voice").Observe(float64(len(data)))
	return &Asset{
		Data:     data,
		MimeType: "audio/ogg; codecs=opus",
		Size:     int64(len(data)),
	}, nil
}

// RemoteAudio resolves a URL or search query and returns MP3 audio.
func (p *Pipeline) RemoteAudio(ctx context.Context, urlOrQuery string) (asset *Asset, err error) {
	defer p.guard(&err)

	media, release, err := p.acquirer.Acquire(ctx, youtube.Request{
		Input:       urlOrQuery,
		Kind:        youtube.KindAudio,
		MaxBytes:    p.cfg.MaxAudioBytes,
		MaxDuration: p.cfg.MaxSourceDuration,
	})
	if err != nil {
		return nil, err
	}
	defer release()

	out, releaseOut := p.scratch.Scoped("mp3")
	defer releaseOut()

	if err := p.trans.ConvertToMP3(ctx, media.Path, out.Path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(out.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: read output: %v", ErrInternal, err)
	}
	if int64(len(data)) > p.cfg.MaxAudioBytes {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(data), p.cfg.MaxAudioBytes)
	}

	metrics.OutputBytes.WithLabelValues("audio").Observe(float64(len(data)))
	return &Asset{
		Data:     data,
		MimeType: "audio/mpeg",
		Size:     int64(len(data)),
		Title:    p.rememberTitle(urlOrQuery, media.Title),
		Method:   media.Method,
		Duration: media.Duration.Seconds(),
	}, nil
}

// RemoteVideo resolves a URL or search query and returns MP4 video. Streams
// already in an MP4 container pass through; anything else is re-encoded.
func (p *Pipeline) RemoteVideo(ctx context.Context, urlOrQuery string) (asset *Asset, err error) {
	defer p.guard(&err)

	media, release, err := p.acquirer.Acquire(ctx, youtube.Request{
		Input:       urlOrQuery,
		Kind:        youtube.KindVideo,
		MaxBytes:    p.cfg.MaxVideoBytes,
		MaxDuration: p.cfg.MaxSourceDuration,
	})
	if err != nil {
		return nil, err
	}
	defer release()

	sourcePath := media.Path
	md, probeErr := p.trans.Probe(ctx, media.Path)
	if probeErr != nil || md.Container != "mov" {
		out, releaseOut := p.scratch.Scoped("mp4")
		defer releaseOut()
		if err := p.trans.ConvertToMP4(ctx, media.Path, out.Path); err != nil {
			return nil, err
		}
		sourcePath = out.Path
	}

	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("%w: read output: %v", ErrInternal, err)
	}
	if int64(len(data)) > p.cfg.MaxVideoBytes {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(data), p.cfg.MaxVideoBytes)
	}

	metrics.OutputBytes.WithLabelValues("video").Observe(float64(len(data)))
	return &Asset{
		Data:     data,
		MimeType: "video/mp4",
		Size:     int64(len(data)),
		Title:    p.rememberTitle(urlOrQuery, media.Title),
		Method:   media.Method,
		Duration: media.Duration.Seconds(),
	}, nil
}

func (p *Pipeline) rememberTitle(input, title string) string {
	if title != "" {
		p.titles.put(input, title)
		return title
	}
	if cached, ok := p.titles.get(input); ok {
		return cached
	}
	return ""
}
