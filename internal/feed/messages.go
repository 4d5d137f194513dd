// ABOUTME: Position feed message type definitions
// ABOUTME: Defines the JSON envelope and payloads exchanged over the feed websocket
package feed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Resonate-Protocol/resonate-scope/internal/location"
)

const (
	// ProtocolVersion of the feed protocol
	ProtocolVersion = 1

	// Path served by feed servers
	Path = "/geo"

	TypeClientHello   = "client/hello"
	TypeServerHello   = "server/hello"
	TypeClientLocate  = "client/locate"
	TypeClientWatch   = "client/watch"
	TypeClientUnwatch = "client/unwatch"
	TypePosition      = "position"
	TypeServerError   = "server/error"
)

// Message is the top-level wrapper for all feed messages
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewMessage marshals payload into an envelope
func NewMessage(msgType string, payload interface{}) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("failed to marshal %s payload: %w", msgType, err)
	}
	return Message{Type: msgType, Payload: data}, nil
}

// Decode unmarshals the payload into v
func (m Message) Decode(v interface{}) error {
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("failed to parse %s payload: %w", m.Type, err)
	}
	return nil
}

// ClientHello is sent by clients to initiate the handshake
type ClientHello struct {
	ClientID string `json:"client_id"`
	Name     string `json:"name"`
	Version  int    `json:"version"`
}

// ServerHello is the server's response to client/hello
type ServerHello struct {
	ServerID   string `json:"server_id"`
	Name       string `json:"name"`
	Version    int    `json:"version"`
	Permission string `json:"permission"` // "granted" or "denied"
}

// LocateRequest asks for one fix
type LocateRequest struct {
	RequestID string `json:"request_id"`
}

// WatchRequest opens a subscription
type WatchRequest struct {
	SubscriptionID   string  `json:"subscription_id"`
	Accuracy         string  `json:"accuracy"` // "high" or "balanced"
	DistanceInterval float64 `json:"distance_interval"`
	TimeIntervalMs   int64   `json:"time_interval_ms"`
}

// UnwatchRequest closes a subscription
type UnwatchRequest struct {
	SubscriptionID string `json:"subscription_id"`
}

// PositionUpdate carries a fix for a locate request or a subscription
type PositionUpdate struct {
	RequestID      string  `json:"request_id,omitempty"`
	SubscriptionID string  `json:"subscription_id,omitempty"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	Accuracy       float64 `json:"accuracy"`
	TimestampMs    int64   `json:"timestamp_ms"`
}

// ServerError reports a rejected request
type ServerError struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// Error codes
const (
	ErrCodePermissionDenied = "permission_denied"
	ErrCodeDuplicateClient  = "duplicate_client_id"
	ErrCodeBadRequest       = "bad_request"
)

// WatchRequestFrom converts watch options to the wire form
func WatchRequestFrom(id string, opts location.WatchOptions) WatchRequest {
	accuracy := "balanced"
	if opts.Accuracy == location.AccuracyHigh {
		accuracy = "high"
	}
	return WatchRequest{
		SubscriptionID:   id,
		Accuracy:         accuracy,
		DistanceInterval: opts.DistanceInterval,
		TimeIntervalMs:   opts.TimeInterval.Milliseconds(),
	}
}

// Options converts a watch request back to watch options
func (w WatchRequest) Options() location.WatchOptions {
	opts := location.WatchOptions{
		Accuracy:         location.AccuracyBalanced,
		DistanceInterval: w.DistanceInterval,
		TimeInterval:     time.Duration(w.TimeIntervalMs) * time.Millisecond,
	}
	if w.Accuracy == "high" {
		opts.Accuracy = location.AccuracyHigh
	}
	return opts
}

// UpdateFrom converts a position to the wire form
func UpdateFrom(p location.Position) PositionUpdate {
	return PositionUpdate{
		Latitude:    p.Latitude,
		Longitude:   p.Longitude,
		Accuracy:    p.Accuracy,
		TimestampMs: p.Timestamp.UnixMilli(),
	}
}

// Position converts a wire update to a position. A missing timestamp
// becomes the receive time.
func (u PositionUpdate) Position() location.Position {
	p := location.Position{
		Latitude:  u.Latitude,
		Longitude: u.Longitude,
		Accuracy:  u.Accuracy,
	}
	if u.TimestampMs > 0 {
		p.Timestamp = time.UnixMilli(u.TimestampMs)
	}
	return location.Stamped(p, time.Now())
}
