// ABOUTME: Position feed server
// ABOUTME: Serves /geo over websocket and streams a simulated walk to watching clients
package feed

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-scope/internal/discovery"
	"github.com/Resonate-Protocol/resonate-scope/internal/location"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// DefaultPort for the feed server
	DefaultPort = 8928

	// balancedAccuracy is reported to watchers that asked for balanced accuracy
	balancedAccuracy = 25.0

	sendBuffer    = 64
	writeDeadline = 10 * time.Second
	pingInterval  = 30 * time.Second
)

// ServerConfig holds server configuration
type ServerConfig struct {
	Port       int
	Name       string
	EnableMDNS bool
	UseTUI     bool
	Debug      bool
	// Deny answers every hello with permission denied
	Deny     bool
	Route    location.RouteConfig
	Interval time.Duration
}

// Server streams positions to connected clients
type Server struct {
	config   ServerConfig
	serverID string
	upgrader websocket.Upgrader

	httpServer *http.Server
	mux        *http.ServeMux

	peers   map[string]*peer
	peersMu sync.RWMutex

	route  *location.Route
	lastMu sync.RWMutex
	last   location.Position

	mdnsManager *discovery.Manager
	tui         *ServerTUI
	startTime   time.Time

	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// peer is a connected feed client
type peer struct {
	ID   string
	Name string
	Conn *websocket.Conn

	sendChan chan Message

	mu      sync.Mutex
	watches map[string]*watch
}

type watch struct {
	id     string
	opts   location.WatchOptions
	filter *location.UpdateFilter
}

// NewServer creates a feed server
func NewServer(config ServerConfig) *Server {
	if config.Interval <= 0 {
		config.Interval = time.Second
	}
	if config.Port == 0 {
		config.Port = DefaultPort
	}

	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// feeds run on trusted local networks
				return true
			},
		},
		peers:     make(map[string]*peer),
		route:     location.NewRoute(config.Route),
		startTime: time.Now(),
		stopChan:  make(chan struct{}),
	}
	s.last = s.route.At(time.Now())
	s.mux.HandleFunc(Path, s.handleWebSocket)
	return s
}

// Handler returns the HTTP handler serving the feed
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start runs the server until Stop is called or the TUI quits
func (s *Server) Start() error {
	if s.config.UseTUI {
		s.tui = NewServerTUI()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.tui.Start(s.status()); err != nil {
				log.Printf("TUI error: %v", err)
			}
		}()
	}

	log.Printf("Feed starting: %s (ID: %s, permission: %s)", s.config.Name, s.serverID, s.permission())

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
		})

		if err := s.mdnsManager.Advertise(); err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		} else {
			log.Printf("mDNS advertisement started")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Run(ctx)
	}()

	addr := fmt.Sprintf(":%d", s.config.Port)
	log.Printf("Feed listening on %s%s", addr, Path)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	var serverErr error
	var tuiQuitChan <-chan struct{}
	if s.tui != nil {
		tuiQuitChan = s.tui.QuitChan()
	}

	select {
	case <-s.stopChan:
		log.Printf("Feed shutting down...")
	case <-tuiQuitChan:
		log.Printf("TUI quit requested, shutting down...")
	case err := <-errChan:
		log.Printf("HTTP server error: %v", err)
		serverErr = err
	}

	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	if s.tui != nil {
		s.tui.Stop()
	}
	cancel()

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	s.closePeers()

	s.wg.Wait()
	log.Printf("Feed stopped cleanly")

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// Run advances the walk every interval and broadcasts it until ctx ends
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// timestamps advance by exactly one interval so a watch whose time
	// interval equals the tick interval never drops a jittered tick
	stampAt := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stampAt = stampAt.Add(s.config.Interval)
			pos := s.route.Next(s.config.Interval, stampAt)

			s.lastMu.Lock()
			s.last = pos
			s.lastMu.Unlock()

			s.broadcast(pos)
			s.updateTUI()
		}
	}
}

// Last returns the most recent walk position
func (s *Server) Last() location.Position {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	return s.last
}

// PeerCount returns the number of connected clients
func (s *Server) PeerCount() int {
	s.peersMu.RLock()
	defer s.peersMu.RUnlock()
	return len(s.peers)
}

// WatchCount returns the number of open subscriptions across clients
func (s *Server) WatchCount() int {
	s.peersMu.RLock()
	defer s.peersMu.RUnlock()

	n := 0
	for _, p := range s.peers {
		p.mu.Lock()
		n += len(p.watches)
		p.mu.Unlock()
	}
	return n
}

func (s *Server) permission() location.PermissionStatus {
	if s.config.Deny {
		return location.PermissionDenied
	}
	return location.PermissionGranted
}

// broadcast sends pos to every watch whose filter accepts it
func (s *Server) broadcast(pos location.Position) {
	s.peersMu.RLock()
	defer s.peersMu.RUnlock()

	for _, p := range s.peers {
		p.mu.Lock()
		for _, w := range p.watches {
			if !w.filter.Accept(pos) {
				continue
			}
			update := UpdateFrom(pos)
			update.SubscriptionID = w.id
			if w.opts.Accuracy == location.AccuracyBalanced {
				update.Accuracy = balancedAccuracy
			}
			if err := s.sendMessage(p, TypePosition, update); err != nil && s.config.Debug {
				log.Printf("[DEBUG] Dropping position for %s: %v", p.Name, err)
			}
		}
		p.mu.Unlock()
	}
}

// handleWebSocket upgrades and serves one connection
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	log.Printf("New feed connection from %s", r.RemoteAddr)
	s.handleConnection(conn)
}

// handleConnection runs the handshake and the read loop for one client
func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	s.shutdownMu.RLock()
	if s.isShutdown {
		s.shutdownMu.RUnlock()
		log.Printf("Rejecting connection during shutdown")
		return
	}
	s.shutdownMu.RUnlock()

	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		log.Printf("Error reading hello: %v", err)
		return
	}
	if msg.Type != TypeClientHello {
		log.Printf("Expected client/hello, got %s", msg.Type)
		return
	}

	var hello ClientHello
	if err := msg.Decode(&hello); err != nil {
		log.Printf("%v", err)
		return
	}
	if hello.ClientID == "" {
		log.Printf("Client hello missing ClientID")
		return
	}

	log.Printf("Client hello: %s (ID: %s)", hello.Name, hello.ClientID)

	p := &peer{
		ID:       hello.ClientID,
		Name:     hello.Name,
		Conn:     conn,
		sendChan: make(chan Message, sendBuffer),
		watches:  make(map[string]*watch),
	}

	s.peersMu.Lock()
	if existing, exists := s.peers[hello.ClientID]; exists {
		s.peersMu.Unlock()
		log.Printf("Client ID %s already connected (name: %s), rejecting duplicate", hello.ClientID, existing.Name)

		if errMsg, err := NewMessage(TypeServerError, ServerError{
			Error:   ErrCodeDuplicateClient,
			Message: "Client ID already connected",
		}); err == nil {
			conn.WriteJSON(errMsg)
		}
		return
	}
	s.peers[p.ID] = p
	s.peersMu.Unlock()

	s.updateTUI()

	defer func() {
		s.peersMu.Lock()
		delete(s.peers, p.ID)
		s.peersMu.Unlock()
		close(p.sendChan)
		log.Printf("Client disconnected: %s", p.Name)

		s.updateTUI()
	}()

	serverHello := ServerHello{
		ServerID:   s.serverID,
		Name:       s.config.Name,
		Version:    ProtocolVersion,
		Permission: s.permission().String(),
	}
	if err := s.sendMessage(p, TypeServerHello, serverHello); err != nil {
		log.Printf("Error sending server hello: %v", err)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.clientWriter(p)
	}()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
		s.handleClientMessage(p, msg)
	}
}

// clientWriter drains the peer's send channel and pings
func (s *Server) clientWriter(p *peer) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-p.sendChan:
			if !ok {
				return
			}
			p.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := p.Conn.WriteJSON(msg); err != nil {
				log.Printf("Error writing message: %v", err)
				p.Conn.Close()
				return
			}

		case <-ticker.C:
			if err := p.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline)); err != nil {
				return
			}
		}
	}
}

// handleClientMessage processes one message from a client
func (s *Server) handleClientMessage(p *peer, msg Message) {
	switch msg.Type {
	case TypeClientLocate:
		var req LocateRequest
		if err := msg.Decode(&req); err != nil {
			log.Printf("%v", err)
			return
		}
		if s.config.Deny {
			s.sendError(p, req.RequestID, ErrCodePermissionDenied, "location permission denied")
			return
		}
		update := UpdateFrom(s.Last())
		update.RequestID = req.RequestID
		if err := s.sendMessage(p, TypePosition, update); err != nil {
			log.Printf("Error sending position: %v", err)
		}

	case TypeClientWatch:
		var req WatchRequest
		if err := msg.Decode(&req); err != nil {
			log.Printf("%v", err)
			return
		}
		if s.config.Deny {
			s.sendError(p, "", ErrCodePermissionDenied, "location permission denied")
			return
		}
		if req.SubscriptionID == "" {
			s.sendError(p, "", ErrCodeBadRequest, "watch missing subscription_id")
			return
		}
		opts := req.Options()
		p.mu.Lock()
		p.watches[req.SubscriptionID] = &watch{
			id:     req.SubscriptionID,
			opts:   opts,
			filter: location.NewUpdateFilter(opts),
		}
		p.mu.Unlock()
		log.Printf("Client %s watching (%s)", p.Name, req.SubscriptionID)
		s.updateTUI()

	case TypeClientUnwatch:
		var req UnwatchRequest
		if err := msg.Decode(&req); err != nil {
			log.Printf("%v", err)
			return
		}
		p.mu.Lock()
		delete(p.watches, req.SubscriptionID)
		p.mu.Unlock()
		log.Printf("Client %s unwatched (%s)", p.Name, req.SubscriptionID)
		s.updateTUI()

	default:
		log.Printf("Unknown message type: %s", msg.Type)
	}
}

func (s *Server) sendError(p *peer, requestID, code, message string) {
	err := s.sendMessage(p, TypeServerError, ServerError{
		Error:     code,
		Message:   message,
		RequestID: requestID,
	})
	if err != nil {
		log.Printf("Error sending server error: %v", err)
	}
}

// sendMessage queues a message for the peer's writer
func (s *Server) sendMessage(p *peer, msgType string, payload interface{}) error {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		return err
	}

	select {
	case p.sendChan <- msg:
		return nil
	default:
		return fmt.Errorf("client send buffer full")
	}
}

// closePeers closes hijacked connections that http.Server.Shutdown does not track
func (s *Server) closePeers() {
	s.peersMu.RLock()
	defer s.peersMu.RUnlock()
	for _, p := range s.peers {
		p.Conn.Close()
	}
}

// status snapshots the server for the TUI
func (s *Server) status() ServerStatus {
	st := ServerStatus{
		Name:       s.config.Name,
		Port:       s.config.Port,
		Permission: s.permission().String(),
		Position:   s.Last(),
		Uptime:     time.Since(s.startTime),
	}

	s.peersMu.RLock()
	for _, p := range s.peers {
		p.mu.Lock()
		st.Clients = append(st.Clients, PeerInfo{Name: p.Name, ID: p.ID, Watches: len(p.watches)})
		p.mu.Unlock()
	}
	s.peersMu.RUnlock()

	sort.Slice(st.Clients, func(i, j int) bool { return st.Clients[i].Name < st.Clients[j].Name })
	return st
}

func (s *Server) updateTUI() {
	if s.tui != nil {
		s.tui.Update(s.status())
	}
}
