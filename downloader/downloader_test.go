package downloader_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delyzer.dev/delyzer/downloader"
)

func countingServer(t *testing.T, body string) (*httptest.Server, *int32) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		assert.Equal(t, "delyzer", r.Header.Get("User-Agent"))
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func TestHTTPGet(t *testing.T) {
	server, _ := countingServer(t, "hello")
	headers := map[string]string{"User-Agent": "delyzer"}

	body, err := downloader.HTTPGet(context.Background(), server.URL, headers, downloader.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))

	// Exactly at the limit
	body, err = downloader.HTTPGet(context.Background(), server.URL, headers, downloader.GetOptions{MaxSize: 5})
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))

	// Over the limit
	_, err = downloader.HTTPGet(context.Background(), server.URL, headers, downloader.GetOptions{MaxSize: 4})
	assert.Error(t, err)

	_, err = downloader.HTTPGet(context.Background(), server.URL+"/missing", headers, downloader.GetOptions{})
	var statusErr *downloader.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestHTTPGetCancelled(t *testing.T) {
	server, _ := countingServer(t, "hello")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := downloader.HTTP{}.Get(ctx, server.URL, nil, downloader.GetOptions{})
	assert.Error(t, err)
}

func TestMemoryDownloader(t *testing.T) {
	server, hits := countingServer(t, "hello")
	headers := map[string]string{"User-Agent": "delyzer"}

	now := time.Date(2023, 6, 12, 8, 0, 0, 0, time.UTC)
	d := downloader.NewMemoryDownloader()
	d.TimeNow = func() time.Time { return now }

	options := downloader.GetOptions{Cache: true, CacheTTL: 10 * time.Second}

	for i := 0; i < 3; i++ {
		body, err := d.Get(context.Background(), server.URL, headers, options)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(body))
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))

	// Expired
	now = now.Add(11 * time.Second)
	_, err := d.Get(context.Background(), server.URL, headers, options)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(hits))

	// No caching requested
	_, err = d.Get(context.Background(), server.URL, headers, downloader.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(hits))
}

func TestFilesystemRecordAndReplay(t *testing.T) {
	server, hits := countingServer(t, "recorded")
	headers := map[string]string{"User-Agent": "delyzer"}
	path := filepath.Join(t.TempDir(), "feed.json")

	recorder, err := downloader.NewFilesystem(path, false)
	require.NoError(t, err)

	body, err := recorder.Get(context.Background(), server.URL+"/dm?name=1", headers, downloader.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "recorded", string(body))
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))

	// Replay serves the file without touching the network
	replay, err := downloader.NewFilesystem(path, true)
	require.NoError(t, err)

	body, err = replay.Get(context.Background(), server.URL+"/dm?name=1", headers, downloader.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "recorded", string(body))
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))

	_, err = replay.Get(context.Background(), server.URL+"/dm?name=2", headers, downloader.GetOptions{})
	assert.ErrorIs(t, err, downloader.ErrNotRecorded)
}

func TestFilesystemCache(t *testing.T) {
	server, hits := countingServer(t, "cached")
	headers := map[string]string{"User-Agent": "delyzer"}

	fs, err := downloader.NewFilesystem(filepath.Join(t.TempDir(), "cache.json"), false)
	require.NoError(t, err)

	options := downloader.GetOptions{Cache: true, CacheTTL: time.Hour}
	for i := 0; i < 2; i++ {
		body, err := fs.Get(context.Background(), server.URL, headers, options)
		require.NoError(t, err)
		assert.Equal(t, "cached", string(body))
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}
