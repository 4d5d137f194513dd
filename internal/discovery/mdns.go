// ABOUTME: mDNS service discovery for position feeds
// ABOUTME: Handles both advertisement (feed servers) and browsing (scope clients)
package discovery

import (
	"context"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/mdns"
)

const (
	// ServiceType advertised by position feeds
	ServiceType = "_resonate-geo._tcp"

	defaultPath  = "/geo"
	queryTimeout = 3 * time.Second
)

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int
	// Path is advertised in the TXT record; defaults to /geo
	Path string
}

// Manager handles mDNS operations
type Manager struct {
	config Config
	ctx    context.Context
	cancel context.CancelFunc
	feeds  chan *FeedInfo

	mu   sync.Mutex
	seen map[string]bool
}

// FeedInfo describes a discovered feed
type FeedInfo struct {
	Name string
	Host string
	Port int
	Path string
}

// Addr returns host:port for dialing
func (f *FeedInfo) Addr() string {
	return net.JoinHostPort(f.Host, fmt.Sprintf("%d", f.Port))
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	if config.Path == "" {
		config.Path = defaultPath
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config: config,
		ctx:    ctx,
		cancel: cancel,
		feeds:  make(chan *FeedInfo, 10),
		seen:   make(map[string]bool),
	}
}

// Advertise advertises this feed via mDNS
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		[]string{"path=" + m.config.Path},
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	log.Printf("Advertising mDNS service: %s on port %d (type: %s)", m.config.ServiceName, m.config.Port, ServiceType)

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Browse searches for feeds until Stop is called
func (m *Manager) Browse() error {
	go m.browseLoop()
	return nil
}

func (m *Manager) browseLoop() {
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		entries := make(chan *mdns.ServiceEntry, 10)
		done := make(chan struct{})

		go func() {
			defer close(done)
			for entry := range entries {
				feed := feedFromEntry(entry)
				if feed == nil || !m.markSeen(feed) {
					continue
				}

				log.Printf("Discovered feed: %s at %s", feed.Name, feed.Addr())

				select {
				case m.feeds <- feed:
				case <-m.ctx.Done():
				}
			}
		}()

		params := &mdns.QueryParam{
			Service:     ServiceType,
			Domain:      "local",
			Timeout:     queryTimeout,
			Entries:     entries,
			DisableIPv6: true,
		}

		if err := mdns.Query(params); err != nil {
			log.Printf("mDNS query failed: %v", err)
		}
		close(entries)
		<-done
	}
}

// markSeen reports whether feed is new
func (m *Manager) markSeen(feed *FeedInfo) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := feed.Name + "@" + feed.Addr()
	if m.seen[key] {
		return false
	}
	m.seen[key] = true
	return true
}

// feedFromEntry converts a browse result, ignoring entries without an IPv4 address
func feedFromEntry(entry *mdns.ServiceEntry) *FeedInfo {
	if entry == nil || entry.AddrV4 == nil {
		return nil
	}

	feed := &FeedInfo{
		Name: strings.TrimSuffix(entry.Name, "."+ServiceType+".local."),
		Host: entry.AddrV4.String(),
		Port: entry.Port,
		Path: defaultPath,
	}
	for _, field := range entry.InfoFields {
		if path, ok := strings.CutPrefix(field, "path="); ok && path != "" {
			feed.Path = path
		}
	}
	return feed
}

// Feeds returns the channel of discovered feeds
func (m *Manager) Feeds() <-chan *FeedInfo {
	return m.feeds
}

// First browses until a feed is found or ctx ends
func (m *Manager) First(ctx context.Context) (*FeedInfo, error) {
	if err := m.Browse(); err != nil {
		return nil, err
	}

	select {
	case feed := <-m.feeds:
		return feed, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("no feed discovered: %w", ctx.Err())
	}
}

// Stop stops the discovery manager
func (m *Manager) Stop() {
	m.cancel()
}

// getLocalIPs returns local IPv4 addresses
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
