// ABOUTME: Location types shared by providers, the tracker and the map view
// ABOUTME: Defines positions, watch options, permissions and the Provider interface
package location

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrPermissionDenied is returned when the provider refuses location access
var ErrPermissionDenied = errors.New("location permission denied")

// Position is one location fix
type Position struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

func (p Position) String() string {
	return fmt.Sprintf("%.5f, %.5f", p.Latitude, p.Longitude)
}

// Accuracy requested from a provider
type Accuracy int

const (
	AccuracyBalanced Accuracy = iota
	AccuracyHigh
)

// WatchOptions filter a position stream
type WatchOptions struct {
	Accuracy Accuracy
	// DistanceInterval is the minimum movement in meters between updates
	DistanceInterval float64
	// TimeInterval is the minimum time between updates
	TimeInterval time.Duration
}

// DefaultWatchOptions returns high accuracy, 1m and 1s
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{
		Accuracy:         AccuracyHigh,
		DistanceInterval: 1,
		TimeInterval:     time.Second,
	}
}

// PermissionStatus is the answer to a permission request
type PermissionStatus int

const (
	PermissionUndetermined PermissionStatus = iota
	PermissionGranted
	PermissionDenied
)

func (p PermissionStatus) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "undetermined"
	}
}

// Subscription is a live position stream
type Subscription interface {
	// Remove stops the stream. Calling it more than once is safe.
	Remove()
}

// Provider is a location service
type Provider interface {
	RequestPermission(ctx context.Context) (PermissionStatus, error)
	CurrentPosition(ctx context.Context) (Position, error)
	Watch(ctx context.Context, opts WatchOptions, fn func(Position)) (Subscription, error)
}
