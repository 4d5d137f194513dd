// ABOUTME: Tests for the position feed client and server
// ABOUTME: Runs both ends over httptest and checks permissions, fixes and subscriptions
package feed

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Resonate-Protocol/resonate-scope/internal/location"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startFeed(t *testing.T, cfg ServerConfig) (*Server, string) {
	t.Helper()

	if cfg.Interval == 0 {
		cfg.Interval = 20 * time.Millisecond
	}
	if cfg.Name == "" {
		cfg.Name = "Test Feed"
	}

	s := NewServer(cfg)
	ts := httptest.NewServer(s.Handler())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
		s.closePeers()
		ts.Close()
		s.wg.Wait()
	})

	return s, strings.TrimPrefix(ts.URL, "http://")
}

func connect(t *testing.T, addr, id string) *Client {
	t.Helper()

	c := NewClient(ClientConfig{ServerAddr: addr, ClientID: id, Name: "scope-" + id})
	require.NoError(t, c.Connect())
	t.Cleanup(func() { c.Close() })
	return c
}

func anyWatch() location.WatchOptions {
	return location.WatchOptions{Accuracy: location.AccuracyHigh}
}

func TestHandshakeGranted(t *testing.T) {
	_, addr := startFeed(t, ServerConfig{})
	c := connect(t, addr, "a")

	status, err := c.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.Equal(t, location.PermissionGranted, status)
	assert.Equal(t, "Test Feed", c.ServerName())
	assert.True(t, c.IsConnected())
}

func TestRequestPermissionConnects(t *testing.T) {
	_, addr := startFeed(t, ServerConfig{})

	c := NewClient(ClientConfig{ServerAddr: addr, Name: "lazy"})
	defer c.Close()

	status, err := c.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.Equal(t, location.PermissionGranted, status)
}

func TestCurrentPositionOnRoute(t *testing.T) {
	center := location.Position{Latitude: 52.52, Longitude: 13.405}
	_, addr := startFeed(t, ServerConfig{
		Route: location.RouteConfig{Center: center, Radius: 100, Speed: 2},
	})
	c := connect(t, addr, "a")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pos, err := c.CurrentPosition(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 100, location.Haversine(center, pos), 1)
	assert.False(t, pos.Timestamp.IsZero())
}

func TestWatchStreamsAndUnwatches(t *testing.T) {
	s, addr := startFeed(t, ServerConfig{})
	c := connect(t, addr, "a")

	var mu sync.Mutex
	var got []location.Position
	sub, err := c.Watch(context.Background(), anyWatch(), func(p location.Position) {
		mu.Lock()
		got = append(got, p)
		mu.Unlock()
	})
	require.NoError(t, err)
	assert.Equal(t, 1, c.ActiveSubscriptions())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) >= 3
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.True(t, got[1].Timestamp.After(got[0].Timestamp))
	mu.Unlock()

	sub.Remove()
	sub.Remove()
	assert.Equal(t, 0, c.ActiveSubscriptions())
	require.Eventually(t, func() bool { return s.WatchCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatchAtServerIntervalKeepsEveryTick(t *testing.T) {
	interval := 20 * time.Millisecond
	_, addr := startFeed(t, ServerConfig{Interval: interval})
	c := connect(t, addr, "a")

	var mu sync.Mutex
	var got []location.Position
	opts := location.WatchOptions{Accuracy: location.AccuracyHigh, TimeInterval: interval}
	sub, err := c.Watch(context.Background(), opts, func(p location.Position) {
		mu.Lock()
		got = append(got, p)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer sub.Remove()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) >= 15
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(got); i++ {
		assert.Equal(t, interval, got[i].Timestamp.Sub(got[i-1].Timestamp), "gap before update %d", i)
	}
}

func TestWatchRemovedWhenContextEnds(t *testing.T) {
	s, addr := startFeed(t, ServerConfig{})
	c := connect(t, addr, "a")

	ctx, cancel := context.WithCancel(context.Background())
	_, err := c.Watch(ctx, anyWatch(), func(location.Position) {})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.WatchCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.Eventually(t, func() bool { return c.ActiveSubscriptions() == 0 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return s.WatchCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestDeniedFeed(t *testing.T) {
	_, addr := startFeed(t, ServerConfig{Deny: true})
	c := connect(t, addr, "a")

	status, err := c.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.Equal(t, location.PermissionDenied, status)

	_, err = c.CurrentPosition(context.Background())
	assert.ErrorIs(t, err, location.ErrPermissionDenied)

	_, err = c.Watch(context.Background(), anyWatch(), func(location.Position) {})
	assert.ErrorIs(t, err, location.ErrPermissionDenied)
	assert.Equal(t, 0, c.ActiveSubscriptions())
}

func TestDuplicateClientRejected(t *testing.T) {
	s, addr := startFeed(t, ServerConfig{})
	connect(t, addr, "same")
	require.Eventually(t, func() bool { return s.PeerCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	dup := NewClient(ClientConfig{ServerAddr: addr, ClientID: "same", Name: "dup"})
	defer dup.Close()
	assert.Error(t, dup.Connect())
	assert.False(t, dup.IsConnected())
}

func TestNotConnected(t *testing.T) {
	c := NewClient(ClientConfig{ServerAddr: "127.0.0.1:1"})
	defer c.Close()

	_, err := c.CurrentPosition(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = c.Watch(context.Background(), anyWatch(), func(location.Position) {})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestTrackerOverFeed(t *testing.T) {
	_, addr := startFeed(t, ServerConfig{})
	c := connect(t, addr, "a")

	tracker := location.NewTracker(location.TrackerConfig{
		Provider: c,
		Options:  location.WatchOptions{Accuracy: location.AccuracyHigh},
	})

	require.NoError(t, tracker.Start(context.Background()))
	assert.Equal(t, location.TrackerTracking, tracker.State())

	require.Eventually(t, func() bool { return tracker.Updates() >= 2 }, 2*time.Second, 10*time.Millisecond)

	tracker.Unsubscribe()
	assert.Equal(t, 0, c.ActiveSubscriptions())
}

func TestTrackerOverDeniedFeed(t *testing.T) {
	_, addr := startFeed(t, ServerConfig{Deny: true})
	c := connect(t, addr, "a")

	tracker := location.NewTracker(location.TrackerConfig{Provider: c})
	err := tracker.Start(context.Background())
	assert.ErrorIs(t, err, location.ErrPermissionDenied)
	assert.Equal(t, location.TrackerPermissionDenied, tracker.State())
	assert.Equal(t, 0, c.ActiveSubscriptions())
}

func TestWatchRequestOptions(t *testing.T) {
	opts := location.WatchOptions{
		Accuracy:         location.AccuracyBalanced,
		DistanceInterval: 5,
		TimeInterval:     1500 * time.Millisecond,
	}

	req := WatchRequestFrom("sub", opts)
	assert.Equal(t, "balanced", req.Accuracy)
	assert.Equal(t, int64(1500), req.TimeIntervalMs)
	assert.Equal(t, opts, req.Options())
}

func TestPositionUpdateWithoutTimestamp(t *testing.T) {
	before := time.Now()
	pos := PositionUpdate{Latitude: 1, Longitude: 2}.Position()
	assert.False(t, pos.Timestamp.Before(before))
}
