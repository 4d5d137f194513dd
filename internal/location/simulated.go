// ABOUTME: In-process simulated location provider
// ABOUTME: Streams a walking route on a ticker and counts live subscriptions
package location

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// SimulatedConfig configures a simulated provider
type SimulatedConfig struct {
	Route    RouteConfig
	Interval time.Duration
	Deny     bool
}

// Simulated is a Provider backed by a Route
type Simulated struct {
	cfg    SimulatedConfig
	route  *Route
	active atomic.Int32
	wg     sync.WaitGroup
}

// NewSimulated creates a simulated provider
func NewSimulated(cfg SimulatedConfig) *Simulated {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	return &Simulated{cfg: cfg, route: NewRoute(cfg.Route)}
}

// RequestPermission answers from the configuration
func (s *Simulated) RequestPermission(ctx context.Context) (PermissionStatus, error) {
	if s.cfg.Deny {
		return PermissionDenied, nil
	}
	return PermissionGranted, nil
}

// CurrentPosition returns the walker's position without advancing it
func (s *Simulated) CurrentPosition(ctx context.Context) (Position, error) {
	if s.cfg.Deny {
		return Position{}, ErrPermissionDenied
	}
	return s.route.At(time.Now()), nil
}

// Watch streams route positions until the subscription is removed or ctx ends
func (s *Simulated) Watch(ctx context.Context, opts WatchOptions, fn func(Position)) (Subscription, error) {
	if s.cfg.Deny {
		return nil, ErrPermissionDenied
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &simulatedSub{cancel: cancel}
	filter := NewUpdateFilter(opts)

	s.active.Add(1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.active.Add(-1)

		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		// timestamps advance by exactly one interval so ticker jitter
		// never trips the interval filter
		stampAt := time.Now()
		for {
			select {
			case <-subCtx.Done():
				return
			case <-ticker.C:
				stampAt = stampAt.Add(s.cfg.Interval)
				p := s.route.Next(s.cfg.Interval, stampAt)
				if filter.Accept(p) {
					fn(p)
				}
			}
		}
	}()

	log.Printf("Simulated location watch started (interval %v)", s.cfg.Interval)
	return sub, nil
}

// ActiveSubscriptions returns the number of running watches
func (s *Simulated) ActiveSubscriptions() int {
	return int(s.active.Load())
}

// Wait blocks until every watch goroutine has exited
func (s *Simulated) Wait() {
	s.wg.Wait()
}

type simulatedSub struct {
	once   sync.Once
	cancel context.CancelFunc
}

func (s *simulatedSub) Remove() {
	s.once.Do(s.cancel)
}
