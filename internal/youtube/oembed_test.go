package youtube

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapcourier/mediakit/internal/logger"
	"github.com/zapcourier/mediakit/internal/scratch"
)

func newOembedTestServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Contains(t, r.URL.Query().Get("url"), "watch?v=")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOembedFetchTitle(t *testing.T) {
	srv := newOembedTestServer(t, http.StatusOK, `{"title":"Some Video Title"}`)

	s := NewOembedStrategy(srv.Client(), logger.NewTestLogger())
	s.endpoint = srv.URL

	title, err := s.FetchTitle(context.Background(), Reference{VideoID: "dQw4w9WgXcQ"})
	require.NoError(t, err)
	assert.Equal(t, "Some Video Title", title)
}

func TestOembedFetchTitleHTTPError(t *testing.T) {
	srv := newOembedTestServer(t, http.StatusNotFound, "not found")

	s := NewOembedStrategy(srv.Client(), logger.NewTestLogger())
	s.endpoint = srv.URL

	_, err := s.FetchTitle(context.Background(), Reference{VideoID: "dQw4w9WgXcQ"})
	require.Error(t, err)
}

func TestOembedAcquireNeverDownloads(t *testing.T) {
	srv := newOembedTestServer(t, http.StatusOK, `{"title":"Some Video Title"}`)

	s := NewOembedStrategy(srv.Client(), logger.NewTestLogger())
	s.endpoint = srv.URL

	dir, err := scratch.NewDir(t.TempDir(), logger.NewTestLogger())
	require.NoError(t, err)
	dest, release := dir.Scoped("m4a")
	defer release()

	_, acquireErr := s.Acquire(context.Background(), Reference{VideoID: "dQw4w9WgXcQ"}, Request{Kind: KindAudio}, dest)
	require.Error(t, acquireErr)
	assert.ErrorIs(t, acquireErr, ErrUnsupportedMethod)
	assert.Contains(t, acquireErr.Error(), "Some Video Title")
}

func TestOembedAcquireRejectsQuery(t *testing.T) {
	s := NewOembedStrategy(nil, logger.NewTestLogger())

	dir, err := scratch.NewDir(t.TempDir(), logger.NewTestLogger())
	require.NoError(t, err)
	dest, release := dir.Scoped("m4a")
	defer release()

	_, acquireErr := s.Acquire(context.Background(), Reference{Query: "some song"}, Request{Kind: KindAudio}, dest)
	require.Error(t, acquireErr)
	assert.ErrorIs(t, acquireErr, ErrInvalidReference)
}
