// ABOUTME: Silent audio output
// ABOUTME: Discards samples so the graph can run on hosts without a sound device
package output

import (
	"sync"
)

// Null accepts and discards audio. It records how many samples it saw,
// which makes it useful for headless runs and tests.
type Null struct {
	volumeState

	mu        sync.Mutex
	open      bool
	suspended bool
	written   int
}

// NewNull creates a silent output
func NewNull() *Null {
	return &Null{volumeState: newVolumeState()}
}

// Open marks the output ready
func (n *Null) Open(sampleRate, channels, bitDepth int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.open = true
	return nil
}

// Write discards samples
func (n *Null) Write(samples []int32) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.open {
		return ErrNotOpen
	}
	n.written += len(samples)
	return nil
}

// Suspend marks the output suspended
func (n *Null) Suspend() error {
	n.mu.Lock()
	n.suspended = true
	n.mu.Unlock()
	return nil
}

// Resume clears the suspended flag
func (n *Null) Resume() error {
	n.mu.Lock()
	n.suspended = false
	n.mu.Unlock()
	return nil
}

// Close marks the output closed
func (n *Null) Close() error {
	n.mu.Lock()
	n.open = false
	n.mu.Unlock()
	return nil
}

// Written returns the number of samples accepted so far
func (n *Null) Written() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.written
}

// Suspended reports whether Suspend was called without a matching Resume
func (n *Null) Suspended() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.suspended
}
