// ABOUTME: Tests for scope orchestration
// ABOUTME: Runs headless playback against a local asset server with simulated and feed locations
package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Resonate-Protocol/resonate-scope/internal/feed"
	"github.com/Resonate-Protocol/resonate-scope/internal/location"
	"github.com/Resonate-Protocol/resonate-scope/internal/session"
	"github.com/Resonate-Protocol/resonate-scope/internal/testutil"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assetServer(t *testing.T, payload []byte) (string, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(payload)
	}))
	t.Cleanup(ts.Close)
	return ts.URL + "/tone.wav", &hits
}

func simulatedConfig() location.SimulatedConfig {
	return location.SimulatedConfig{
		Route:    location.DefaultRouteConfig(),
		Interval: 10 * time.Millisecond,
	}
}

func TestHeadlessPlaysToEnd(t *testing.T) {
	url, hits := assetServer(t, testutil.SineWAV(t, 0.3, 8000, 2, 440))

	s, err := New(context.Background(), Config{
		AudioURL:  url,
		Output:    "null",
		CacheDir:  t.TempDir(),
		ExitOnEnd: true,
		Simulated: simulatedConfig(),
	})
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, s.Run(ctx))
	require.NoError(t, ctx.Err(), "playback should end before the timeout")

	st := s.Session().Status()
	assert.Equal(t, session.StateEnded, st.State)
	assert.True(t, st.Ended)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, 1.0, promtest.ToFloat64(s.metrics.AssetFetches.WithLabelValues("network")))

	assert.Equal(t, location.TrackerTracking, s.Tracker().State())
	_, ok := s.Tracker().Last()
	assert.True(t, ok)
}

func TestHeadlessWithoutAudio(t *testing.T) {
	s, err := New(context.Background(), Config{
		Output:    "null",
		CacheDir:  t.TempDir(),
		Simulated: simulatedConfig(),
	})
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	require.NoError(t, s.Run(ctx))
	assert.Equal(t, session.StateUninitialized, s.Session().Status().State)
	assert.Greater(t, s.Tracker().Updates(), 0)
}

func TestHeadlessLoadFailure(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	s, err := New(context.Background(), Config{
		AudioURL:  ts.URL + "/missing.wav",
		Output:    "null",
		CacheDir:  t.TempDir(),
		Simulated: simulatedConfig(),
	})
	require.NoError(t, err)
	defer s.Close()

	err = s.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, session.StateFailed, s.Session().Status().State)
}

func TestDeniedLocationDoesNotStopAudio(t *testing.T) {
	url, _ := assetServer(t, testutil.SineWAV(t, 0.2, 8000, 1, 440))

	sim := simulatedConfig()
	sim.Deny = true

	s, err := New(context.Background(), Config{
		AudioURL:  url,
		Output:    "null",
		CacheDir:  t.TempDir(),
		ExitOnEnd: true,
		Simulated: sim,
	})
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, s.Run(ctx))
	assert.Equal(t, session.StateEnded, s.Session().Status().State)
	assert.ErrorIs(t, s.Tracker().Err(), location.ErrPermissionDenied)
}

func TestFeedProvider(t *testing.T) {
	srv := feed.NewServer(feed.ServerConfig{Name: "Test Feed", Interval: 10 * time.Millisecond})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	runCtx, stopFeed := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.Run(runCtx)
	}()
	defer func() {
		stopFeed()
		<-done
	}()

	s, err := New(context.Background(), Config{
		FeedAddr: strings.TrimPrefix(ts.URL, "http://"),
		Output:   "null",
		CacheDir: t.TempDir(),
	})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "Test Feed", s.feedName)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, s.Run(ctx))
	assert.Greater(t, s.Tracker().Updates(), 0)
}

func TestFeedUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	addr := strings.TrimPrefix(ts.URL, "http://")
	ts.Close()

	_, err := New(context.Background(), Config{
		FeedAddr: addr,
		Output:   "null",
		CacheDir: t.TempDir(),
	})
	require.Error(t, err)
}

func TestCloseIdempotent(t *testing.T) {
	s, err := New(context.Background(), Config{
		Output:    "null",
		CacheDir:  t.TempDir(),
		Simulated: simulatedConfig(),
	})
	require.NoError(t, err)

	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

func TestCloseRemovesDefaultCacheDir(t *testing.T) {
	url, _ := assetServer(t, testutil.SineWAV(t, 0.1, 8000, 1, 440))

	s, err := New(context.Background(), Config{
		AudioURL:  url,
		Output:    "null",
		ExitOnEnd: true,
		Simulated: simulatedConfig(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, s.Run(ctx))

	cached := s.fetcher.CachePath(url)
	_, err = os.Stat(cached)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	_, err = os.Stat(filepath.Dir(cached))
	assert.True(t, os.IsNotExist(err))
}

func TestCloseKeepsConfiguredCacheDir(t *testing.T) {
	dir := t.TempDir()
	s, err := New(context.Background(), Config{
		Output:    "null",
		CacheDir:  dir,
		Simulated: simulatedConfig(),
	})
	require.NoError(t, err)

	require.NoError(t, s.Close())
	_, err = os.Stat(dir)
	assert.NoError(t, err)
}
