package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/zapcourier/mediakit/internal/scratch"
)

const oembedEndpoint = "https://www.youtube.com/oembed"

// OembedStrategy is the last resort. The public oEmbed endpoint serves only
// title metadata, so this strategy can never deliver playable media; it
// exists so an exhausted chain reports "we reached the video but cannot
// download it" instead of a generic failure.
type OembedStrategy struct {
	client   *http.Client
	endpoint string
	log      *slog.Logger
}

var _ Strategy = (*OembedStrategy)(nil)

func NewOembedStrategy(client *http.Client, log *slog.Logger) *OembedStrategy {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	return &OembedStrategy{client: client, endpoint: oembedEndpoint, log: log}
}

func (s *OembedStrategy) Name() string {
	return "oembed"
}

func (s *OembedStrategy) Available() bool {
	return true
}

func (s *OembedStrategy) Acquire(ctx context.Context, ref Reference, req Request, dest scratch.Handle) (*RawMedia, error) {
	if ref.IsQuery() {
		return nil, fmt.Errorf("%w: oEmbed needs a video reference, not a query", ErrInvalidReference)
	}

	title, err := s.FetchTitle(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("%w: oEmbed lookup also failed: %v", ErrUnsupportedMethod, err)
	}

	s.log.Info("video reachable via oEmbed but not downloadable", "id", ref.VideoID, "title", title)
	return nil, fmt.Errorf("%w: %q is reachable but oEmbed serves metadata only", ErrUnsupportedMethod, title)
}

// FetchTitle resolves a video's title from the public oEmbed endpoint.
func (s *OembedStrategy) FetchTitle(ctx context.Context, ref Reference) (string, error) {
	q := url.Values{}
	q.Set("url", ref.WatchURL())
	q.Set("format", "json")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oEmbed returned status %d", resp.StatusCode)
	}

	var payload struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode oEmbed response: %w", err)
	}
	return payload.Title, nil
}
