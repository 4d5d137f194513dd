// ABOUTME: WebSocket client for the position feed
// ABOUTME: Implements location.Provider with uuid-identified watch subscriptions
package feed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-scope/internal/location"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrNotConnected is returned when the feed connection is down
var ErrNotConnected = errors.New("feed not connected")

const handshakeTimeout = 5 * time.Second

// ClientConfig holds client configuration
type ClientConfig struct {
	ServerAddr string
	// Path defaults to /geo
	Path     string
	ClientID string
	Name     string
}

// Client is a position feed connection. A closed client cannot reconnect.
type Client struct {
	config ClientConfig
	conn   *websocket.Conn

	mu         sync.RWMutex
	writeMu    sync.Mutex
	connected  bool
	permission location.PermissionStatus
	serverName string
	pending    map[string]chan locateResult
	subs       map[string]*feedSub

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type locateResult struct {
	pos location.Position
	err error
}

// NewClient creates a new feed client
func NewClient(config ClientConfig) *Client {
	if config.ClientID == "" {
		config.ClientID = uuid.New().String()
	}
	if config.Path == "" {
		config.Path = Path
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config:  config,
		pending: make(map[string]chan locateResult),
		subs:    make(map[string]*feedSub),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Connect dials the feed and performs the handshake
func (c *Client) Connect() error {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	if connected {
		return nil
	}

	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: c.config.Path}
	log.Printf("Connecting to feed %s", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		c.disconnect()
		return fmt.Errorf("handshake failed: %w", err)
	}

	c.wg.Add(1)
	go c.readMessages()

	return nil
}

// handshake sends client/hello and waits for server/hello
func (c *Client) handshake() error {
	hello := ClientHello{
		ClientID: c.config.ClientID,
		Name:     c.config.Name,
		Version:  ProtocolVersion,
	}
	if err := c.send(TypeClientHello, hello); err != nil {
		return fmt.Errorf("failed to send client/hello: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	var msg Message
	if err := c.conn.ReadJSON(&msg); err != nil {
		return fmt.Errorf("failed to read server/hello: %w", err)
	}
	c.conn.SetReadDeadline(time.Time{})

	if msg.Type == TypeServerError {
		var serr ServerError
		if err := msg.Decode(&serr); err != nil {
			return err
		}
		return fmt.Errorf("server rejected hello: %s", serr.Message)
	}
	if msg.Type != TypeServerHello {
		return fmt.Errorf("expected server/hello, got %s", msg.Type)
	}

	var sh ServerHello
	if err := msg.Decode(&sh); err != nil {
		return err
	}

	c.mu.Lock()
	c.serverName = sh.Name
	if sh.Permission == location.PermissionGranted.String() {
		c.permission = location.PermissionGranted
	} else {
		c.permission = location.PermissionDenied
	}
	c.mu.Unlock()

	log.Printf("Handshake complete with feed %s (permission %s)", sh.Name, sh.Permission)
	return nil
}

// send writes one envelope. gorilla connections allow a single writer.
func (c *Client) send(msgType string, payload interface{}) error {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		return err
	}

	c.mu.RLock()
	conn, connected := c.conn, c.connected
	c.mu.RUnlock()
	if !connected {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(msg)
}

// readMessages reads and routes incoming messages until the connection drops
func (c *Client) readMessages() {
	defer c.wg.Done()
	defer c.disconnect()

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			select {
			case <-c.ctx.Done():
			default:
				log.Printf("Feed read error: %v", err)
			}
			return
		}
		c.handleMessage(msg)
	}
}

// handleMessage routes one JSON message
func (c *Client) handleMessage(msg Message) {
	switch msg.Type {
	case TypePosition:
		var update PositionUpdate
		if err := msg.Decode(&update); err != nil {
			log.Printf("%v", err)
			return
		}
		pos := update.Position()

		if update.RequestID != "" {
			c.resolve(update.RequestID, locateResult{pos: pos})
			return
		}

		c.mu.RLock()
		sub := c.subs[update.SubscriptionID]
		c.mu.RUnlock()
		if sub != nil {
			sub.fn(pos)
		}

	case TypeServerError:
		var serr ServerError
		if err := msg.Decode(&serr); err != nil {
			log.Printf("%v", err)
			return
		}
		err := fmt.Errorf("feed error %s: %s", serr.Error, serr.Message)
		if serr.Error == ErrCodePermissionDenied {
			err = location.ErrPermissionDenied
		}
		if serr.RequestID != "" {
			c.resolve(serr.RequestID, locateResult{err: err})
			return
		}
		log.Printf("Feed: %v", err)

	default:
		log.Printf("Unknown feed message type: %s", msg.Type)
	}
}

// resolve completes a pending locate request
func (c *Client) resolve(id string, res locateResult) {
	c.mu.Lock()
	ch, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()

	if ok {
		ch <- res
	}
}

// RequestPermission connects if needed and returns the server's answer
func (c *Client) RequestPermission(ctx context.Context) (location.PermissionStatus, error) {
	if err := c.Connect(); err != nil {
		return location.PermissionUndetermined, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.permission, nil
}

// CurrentPosition asks the feed for one fix
func (c *Client) CurrentPosition(ctx context.Context) (location.Position, error) {
	if err := c.checkPermission(); err != nil {
		return location.Position{}, err
	}

	id := uuid.New().String()
	ch := make(chan locateResult, 1)

	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.send(TypeClientLocate, LocateRequest{RequestID: id}); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return location.Position{}, fmt.Errorf("failed to send locate: %w", err)
	}

	select {
	case res := <-ch:
		return res.pos, res.err
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return location.Position{}, ctx.Err()
	}
}

// Watch opens a subscription. It is removed when Remove is called or ctx ends.
func (c *Client) Watch(ctx context.Context, opts location.WatchOptions, fn func(location.Position)) (location.Subscription, error) {
	if err := c.checkPermission(); err != nil {
		return nil, err
	}

	sub := &feedSub{id: uuid.New().String(), fn: fn, client: c}

	c.mu.Lock()
	c.subs[sub.id] = sub
	c.mu.Unlock()

	if err := c.send(TypeClientWatch, WatchRequestFrom(sub.id, opts)); err != nil {
		c.mu.Lock()
		delete(c.subs, sub.id)
		c.mu.Unlock()
		return nil, fmt.Errorf("failed to send watch: %w", err)
	}

	sub.mu.Lock()
	sub.stop = context.AfterFunc(ctx, sub.Remove)
	sub.mu.Unlock()
	log.Printf("Feed subscription %s opened", sub.id)
	return sub, nil
}

func (c *Client) checkPermission() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		return ErrNotConnected
	}
	if c.permission != location.PermissionGranted {
		return location.ErrPermissionDenied
	}
	return nil
}

// ActiveSubscriptions returns the number of open subscriptions
func (c *Client) ActiveSubscriptions() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs)
}

// ServerName returns the name announced in server/hello
func (c *Client) ServerName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverName
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// disconnect closes the socket and fails pending requests
func (c *Client) disconnect() {
	c.mu.Lock()
	if c.connected {
		c.connected = false
		c.cancel()
		c.conn.Close()
		log.Printf("Feed connection closed")
	}
	pending := c.pending
	c.pending = make(map[string]chan locateResult)
	c.mu.Unlock()

	for _, ch := range pending {
		ch <- locateResult{err: ErrNotConnected}
	}
}

// Close closes the connection and waits for the reader to exit
func (c *Client) Close() error {
	c.disconnect()
	c.wg.Wait()
	return nil
}

type feedSub struct {
	id     string
	fn     func(location.Position)
	client *Client
	once   sync.Once

	mu   sync.Mutex
	stop func() bool
}

// Remove sends client/unwatch and forgets the subscription
func (s *feedSub) Remove() {
	s.once.Do(func() {
		s.mu.Lock()
		if s.stop != nil {
			s.stop()
		}
		s.mu.Unlock()

		s.client.mu.Lock()
		delete(s.client.subs, s.id)
		s.client.mu.Unlock()

		if err := s.client.send(TypeClientUnwatch, UnwatchRequest{SubscriptionID: s.id}); err != nil && !errors.Is(err, ErrNotConnected) {
			log.Printf("Failed to send unwatch for %s: %v", s.id, err)
		}
		log.Printf("Feed subscription %s removed", s.id)
	})
}

var _ location.Provider = (*Client)(nil)
