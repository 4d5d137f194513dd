// ABOUTME: Cancellable frame loop identified by tokens
// ABOUTME: Lets a redraw cycle stop itself without racing rescheduled frames
package frame

import (
	"context"
	"sync"
	"time"
)

// Token identifies one run of the loop. The zero token is never active.
type Token uint64

// Loop hands out tokens. Starting the loop invalidates every earlier token,
// and Cancel invalidates the current one. A frame callback checks its token
// before doing work, so frames scheduled before a cancel are dropped.
type Loop struct {
	mu      sync.Mutex
	next    Token
	current Token
}

// Start begins a new run and returns its token
func (l *Loop) Start() Token {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next++
	l.current = l.next
	return l.current
}

// Cancel stops the current run
func (l *Loop) Cancel() {
	l.mu.Lock()
	l.current = 0
	l.mu.Unlock()
}

// Active reports whether tok belongs to the current run
func (l *Loop) Active(tok Token) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return tok != 0 && tok == l.current
}

// Running reports whether any run is active
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current != 0
}

// Run calls fn every interval until fn returns false or ctx is done. It is
// the loop driver for callers without their own event loop.
func Run(ctx context.Context, interval time.Duration, fn func() bool) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !fn() {
				return
			}
		}
	}
}
