// ABOUTME: Location tracker state machine for the map screen
// ABOUTME: Requests permission, takes an initial fix and holds one position subscription
package location

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/Resonate-Protocol/resonate-scope/internal/metrics"
)

// TrackerState of a location tracker
type TrackerState int

const (
	TrackerUnrequested TrackerState = iota
	TrackerPermissionDenied
	TrackerTracking
	TrackerStopped
)

func (s TrackerState) String() string {
	switch s {
	case TrackerUnrequested:
		return "unrequested"
	case TrackerPermissionDenied:
		return "permission-denied"
	case TrackerTracking:
		return "tracking"
	case TrackerStopped:
		return "stopped"
	default:
		return fmt.Sprintf("TrackerState(%d)", int(s))
	}
}

// MaxTrail is the number of recent positions kept for display
const MaxTrail = 64

// TrackerConfig wires a tracker to a provider
type TrackerConfig struct {
	Provider Provider
	Options  WatchOptions
	Metrics  *metrics.Metrics
	// OnUpdate runs on the provider goroutine after each applied position
	OnUpdate func(Position)
}

// Tracker follows one position stream for the lifetime of a screen
type Tracker struct {
	cfg    TrackerConfig
	region *AnimatedRegion

	startOnce sync.Once
	startErr  error

	mu         sync.Mutex
	state      TrackerState
	sub        Subscription
	subscribed bool
	last       *Position
	trail      []Position
	updates    int
	err        error
}

// NewTracker creates an unrequested tracker showing the default region
func NewTracker(cfg TrackerConfig) *Tracker {
	if cfg.Options == (WatchOptions{}) {
		cfg.Options = DefaultWatchOptions()
	}
	return &Tracker{
		cfg:    cfg,
		region: NewAnimatedRegion(DefaultRegion()),
	}
}

func (t *Tracker) setState(s TrackerState) {
	t.state = s
	t.cfg.Metrics.RecordTransition("tracker", s.String())
}

// RequestPermission asks the provider for access. Denial is final for this
// tracker.
func (t *Tracker) RequestPermission(ctx context.Context) error {
	status, err := t.cfg.Provider.RequestPermission(ctx)
	if err != nil {
		return fmt.Errorf("permission request failed: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if status != PermissionGranted {
		t.err = ErrPermissionDenied
		t.setState(TrackerPermissionDenied)
		log.Printf("Location permission %s", status)
		return ErrPermissionDenied
	}

	log.Printf("Location permission granted")
	return nil
}

// InitialFix takes one position and jumps the region to it without animation
func (t *Tracker) InitialFix(ctx context.Context) (Position, error) {
	t.mu.Lock()
	denied := t.state == TrackerPermissionDenied
	t.mu.Unlock()
	if denied {
		return Position{}, ErrPermissionDenied
	}

	p, err := t.cfg.Provider.CurrentPosition(ctx)
	if err != nil {
		return Position{}, fmt.Errorf("initial fix failed: %w", err)
	}

	t.region.Set(RegionAround(p))

	t.mu.Lock()
	t.record(p)
	t.mu.Unlock()

	log.Printf("Initial fix: %s", p)
	return p, nil
}

// Subscribe opens the position stream. Only the first call subscribes;
// later calls are no-ops.
func (t *Tracker) Subscribe(ctx context.Context) error {
	t.mu.Lock()
	if t.state == TrackerPermissionDenied {
		t.mu.Unlock()
		return ErrPermissionDenied
	}
	if t.subscribed {
		t.mu.Unlock()
		return nil
	}
	t.subscribed = true
	t.mu.Unlock()

	sub, err := t.cfg.Provider.Watch(ctx, t.cfg.Options, t.apply)
	if err != nil {
		t.mu.Lock()
		t.err = err
		t.mu.Unlock()
		return fmt.Errorf("watch failed: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == TrackerStopped {
		// Unsubscribe raced ahead of the provider
		sub.Remove()
		return nil
	}
	t.sub = sub
	t.setState(TrackerTracking)
	log.Printf("Location tracking started")
	return nil
}

// apply handles one streamed position
func (t *Tracker) apply(p Position) {
	t.mu.Lock()
	if t.state == TrackerStopped || t.state == TrackerPermissionDenied {
		t.mu.Unlock()
		return
	}
	t.record(p)
	t.updates++
	t.mu.Unlock()

	t.region.AnimateTo(RegionAround(p))
	t.cfg.Metrics.IncLocationUpdates()

	if t.cfg.OnUpdate != nil {
		t.cfg.OnUpdate(p)
	}
}

// record must hold t.mu
func (t *Tracker) record(p Position) {
	t.last = &p
	t.trail = append(t.trail, p)
	if len(t.trail) > MaxTrail {
		t.trail = t.trail[len(t.trail)-MaxTrail:]
	}
}

// Unsubscribe releases the stream. Only the first call has any effect.
func (t *Tracker) Unsubscribe() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == TrackerStopped {
		return
	}
	if t.sub != nil {
		t.sub.Remove()
		t.sub = nil
	}
	if t.state != TrackerPermissionDenied {
		t.setState(TrackerStopped)
	}
	log.Printf("Location tracking stopped after %d updates", t.updates)
}

// Start runs permission, initial fix and subscribe once. Repeated calls
// return the first result without touching the provider.
func (t *Tracker) Start(ctx context.Context) error {
	t.startOnce.Do(func() {
		if err := t.RequestPermission(ctx); err != nil {
			t.startErr = err
			return
		}
		if _, err := t.InitialFix(ctx); err != nil {
			// no fix yet, the stream will move the region
			log.Printf("Continuing without initial fix: %v", err)
		}
		t.startErr = t.Subscribe(ctx)
	})
	return t.startErr
}

// State returns the current tracker state
func (t *Tracker) State() TrackerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Region returns the region to display now
func (t *Tracker) Region() MapRegion {
	return t.region.Value()
}

// AnimatedRegion exposes the eased region
func (t *Tracker) AnimatedRegion() *AnimatedRegion {
	return t.region
}

// Last returns the latest position
func (t *Tracker) Last() (Position, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last == nil {
		return Position{}, false
	}
	return *t.last, true
}

// Trail returns up to MaxTrail recent positions, oldest first
func (t *Tracker) Trail() []Position {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Position, len(t.trail))
	copy(out, t.trail)
	return out
}

// Updates returns the number of streamed positions applied
func (t *Tracker) Updates() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.updates
}

// Err returns the last error shown to the user
func (t *Tracker) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}
