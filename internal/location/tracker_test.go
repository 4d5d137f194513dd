// ABOUTME: Tests for the location tracker
// ABOUTME: Runs the tracker against simulated providers
package location

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProvider delivers positions only when the test pushes them
type scriptedProvider struct {
	mu         sync.Mutex
	permission PermissionStatus
	fix        Position
	fixErr     error
	watches    int
	active     int
	callback   func(Position)
}

func (p *scriptedProvider) RequestPermission(ctx context.Context) (PermissionStatus, error) {
	return p.permission, nil
}

func (p *scriptedProvider) CurrentPosition(ctx context.Context) (Position, error) {
	return p.fix, p.fixErr
}

func (p *scriptedProvider) Watch(ctx context.Context, opts WatchOptions, fn func(Position)) (Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.watches++
	p.active++
	p.callback = fn
	return &scriptedSub{p: p}, nil
}

func (p *scriptedProvider) push(pos Position) {
	p.mu.Lock()
	fn := p.callback
	p.mu.Unlock()
	if fn != nil {
		fn(pos)
	}
}

func (p *scriptedProvider) counts() (watches, active int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.watches, p.active
}

type scriptedSub struct {
	once sync.Once
	p    *scriptedProvider
}

func (s *scriptedSub) Remove() {
	s.once.Do(func() {
		s.p.mu.Lock()
		s.p.active--
		s.p.mu.Unlock()
	})
}

func grantedProvider() *scriptedProvider {
	return &scriptedProvider{
		permission: PermissionGranted,
		fix:        Position{Latitude: 51.5, Longitude: -0.12},
	}
}

func TestTrackerStartsAtDefaultRegion(t *testing.T) {
	tr := NewTracker(TrackerConfig{Provider: grantedProvider()})
	assert.Equal(t, TrackerUnrequested, tr.State())
	assert.Equal(t, DefaultRegion(), tr.Region())
}

func TestTrackerPermissionDenied(t *testing.T) {
	p := &scriptedProvider{permission: PermissionDenied}
	tr := NewTracker(TrackerConfig{Provider: p})

	err := tr.Start(context.Background())
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, TrackerPermissionDenied, tr.State())
	assert.ErrorIs(t, tr.Err(), ErrPermissionDenied)

	watches, _ := p.counts()
	assert.Zero(t, watches)
	assert.Equal(t, DefaultRegion(), tr.Region())
}

func TestTrackerInitialFixJumps(t *testing.T) {
	p := grantedProvider()
	tr := NewTracker(TrackerConfig{Provider: p})

	require.NoError(t, tr.RequestPermission(context.Background()))
	pos, err := tr.InitialFix(context.Background())
	require.NoError(t, err)

	assert.Equal(t, p.fix, pos)
	assert.False(t, tr.AnimatedRegion().Animating())
	assert.Equal(t, RegionAround(p.fix), tr.Region())
}

func TestTrackerUpdatesAnimateRegion(t *testing.T) {
	p := grantedProvider()
	var seen []Position
	tr := NewTracker(TrackerConfig{
		Provider: p,
		OnUpdate: func(pos Position) { seen = append(seen, pos) },
	})
	require.NoError(t, tr.Start(context.Background()))
	assert.Equal(t, TrackerTracking, tr.State())

	next := Position{Latitude: 51.6, Longitude: -0.1}
	p.push(next)

	assert.Equal(t, RegionAround(next), tr.AnimatedRegion().Target())
	assert.True(t, tr.AnimatedRegion().Animating())
	assert.Equal(t, []Position{next}, seen)
	assert.Equal(t, 1, tr.Updates())

	last, ok := tr.Last()
	assert.True(t, ok)
	assert.Equal(t, next, last)
}

func TestTrackerStartIsGuarded(t *testing.T) {
	p := grantedProvider()
	tr := NewTracker(TrackerConfig{Provider: p})

	for i := 0; i < 5; i++ {
		require.NoError(t, tr.Start(context.Background()))
		require.NoError(t, tr.Subscribe(context.Background()))
	}

	watches, active := p.counts()
	assert.Equal(t, 1, watches)
	assert.Equal(t, 1, active)
}

func TestUnsubscribeAfterUpdatesLeavesNoSubscriptions(t *testing.T) {
	p := grantedProvider()
	tr := NewTracker(TrackerConfig{Provider: p})

	// re-running the mount effect must not stack subscriptions
	for i := 0; i < 3; i++ {
		require.NoError(t, tr.Start(context.Background()))
	}
	for i := 0; i < 10; i++ {
		p.push(Position{Latitude: 51.5 + float64(i)*0.001, Longitude: -0.12})
	}
	assert.Equal(t, 10, tr.Updates())

	tr.Unsubscribe()
	tr.Unsubscribe()

	_, active := p.counts()
	assert.Zero(t, active)
	assert.Equal(t, TrackerStopped, tr.State())

	// late deliveries after unsubscribe are dropped
	p.push(Position{Latitude: 0, Longitude: 0})
	assert.Equal(t, 10, tr.Updates())
}

func TestTrackerTrailIsBounded(t *testing.T) {
	p := grantedProvider()
	tr := NewTracker(TrackerConfig{Provider: p})
	require.NoError(t, tr.Start(context.Background()))

	for i := 0; i < MaxTrail+10; i++ {
		p.push(Position{Latitude: float64(i)})
	}

	trail := tr.Trail()
	assert.Len(t, trail, MaxTrail)
	assert.Equal(t, float64(MaxTrail+9), trail[len(trail)-1].Latitude)
}

func TestTrackerContinuesWithoutFix(t *testing.T) {
	p := grantedProvider()
	p.fixErr = errors.New("no satellites")
	tr := NewTracker(TrackerConfig{Provider: p})

	require.NoError(t, tr.Start(context.Background()))
	assert.Equal(t, TrackerTracking, tr.State())
	assert.Equal(t, DefaultRegion(), tr.Region())
}

func TestTrackerWithSimulatedProvider(t *testing.T) {
	sim := NewSimulated(SimulatedConfig{
		Route:    DefaultRouteConfig(),
		Interval: 5 * time.Millisecond,
	})
	tr := NewTracker(TrackerConfig{
		Provider: sim,
		Options:  WatchOptions{Accuracy: AccuracyHigh, DistanceInterval: 0.001, TimeInterval: 5 * time.Millisecond},
	})

	require.NoError(t, tr.Start(context.Background()))
	assert.Equal(t, 1, sim.ActiveSubscriptions())

	assert.Eventually(t, func() bool { return tr.Updates() >= 3 }, 2*time.Second, 5*time.Millisecond)

	tr.Unsubscribe()
	sim.Wait()
	assert.Zero(t, sim.ActiveSubscriptions())
}

func TestSimulatedDenied(t *testing.T) {
	sim := NewSimulated(SimulatedConfig{Deny: true})
	tr := NewTracker(TrackerConfig{Provider: sim})

	assert.ErrorIs(t, tr.Start(context.Background()), ErrPermissionDenied)
	assert.Zero(t, sim.ActiveSubscriptions())
}
