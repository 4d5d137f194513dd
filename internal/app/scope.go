// ABOUTME: Scope application orchestration
// ABOUTME: Wires the asset fetcher, audio session, location provider, metrics and UI
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-scope/internal/asset"
	"github.com/Resonate-Protocol/resonate-scope/internal/discovery"
	"github.com/Resonate-Protocol/resonate-scope/internal/feed"
	"github.com/Resonate-Protocol/resonate-scope/internal/frame"
	"github.com/Resonate-Protocol/resonate-scope/internal/location"
	"github.com/Resonate-Protocol/resonate-scope/internal/metrics"
	"github.com/Resonate-Protocol/resonate-scope/internal/session"
	"github.com/Resonate-Protocol/resonate-scope/internal/ui"
	"github.com/Resonate-Protocol/resonate-scope/internal/version"
	"github.com/Resonate-Protocol/resonate-scope/pkg/audio/graph"
	"github.com/Resonate-Protocol/resonate-scope/pkg/audio/output"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	discoveryTimeout = 10 * time.Second
	statusInterval   = time.Second
)

// Config holds scope configuration
type Config struct {
	AudioURL string
	// FeedAddr is host:port of a position feed. Empty uses discovery or
	// the simulated walk.
	FeedAddr string
	Discover bool
	FFTSize  int
	// Output is the audio backend: oto, malgo or null
	Output      string
	CacheDir    string
	UseTUI      bool
	StartTab    string
	MetricsAddr string
	// ExitOnEnd stops headless mode once playback ends
	ExitOnEnd bool
	Simulated location.SimulatedConfig
	Debug     bool
}

// Scope represents the main application
type Scope struct {
	config   Config
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	fetcher  *asset.Fetcher
	session  *session.Session
	tracker  *location.Tracker
	sun      *location.SunCalc

	feedClient *feed.Client
	simulated  *location.Simulated
	discovery  *discovery.Manager
	feedName   string

	metricsServer *http.Server
	wg            sync.WaitGroup
	closeOnce     sync.Once
}

// New builds the components. The location provider is resolved here, so
// discovery may block for up to ten seconds.
func New(ctx context.Context, config Config) (*Scope, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	m, err := metrics.New(registry)
	if err != nil {
		return nil, err
	}

	fetcher, err := asset.NewFetcher(asset.Config{CacheDir: config.CacheDir, Metrics: m})
	if err != nil {
		return nil, err
	}

	s := &Scope{
		config:   config,
		registry: registry,
		metrics:  m,
		fetcher:  fetcher,
		sun:      location.NewSunCalc(),
	}
	s.session = s.newSession()

	provider, err := s.resolveProvider(ctx)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.tracker = location.NewTracker(location.TrackerConfig{
		Provider: provider,
		Options:  location.DefaultWatchOptions(),
		Metrics:  m,
	})

	return s, nil
}

// newSession creates a session on a fresh audio graph
func (s *Scope) newSession() *session.Session {
	backend := s.config.Output
	return session.New(session.Config{
		NewContext: session.GraphContext(func() (output.Output, error) {
			return output.New(backend)
		}, graph.DefaultConfig()),
		Fetcher: s.fetcher,
		FFTSize: s.config.FFTSize,
		Metrics: s.metrics,
		OnStateChange: func(from, to session.State) {
			if s.config.Debug {
				log.Printf("[DEBUG] Session %s -> %s", from, to)
			}
		},
	})
}

// resolveProvider picks the feed client, a discovered feed or the simulated walk
func (s *Scope) resolveProvider(ctx context.Context) (location.Provider, error) {
	addr, path := s.config.FeedAddr, ""

	if addr == "" && s.config.Discover {
		s.discovery = discovery.NewManager(discovery.Config{ServiceName: version.Product})

		dctx, cancel := context.WithTimeout(ctx, discoveryTimeout)
		defer cancel()

		log.Printf("Browsing for position feeds...")
		info, err := s.discovery.First(dctx)
		if err != nil {
			return nil, err
		}
		addr, path = info.Addr(), info.Path
		s.feedName = info.Name
	}

	if addr == "" {
		log.Printf("Using simulated location provider")
		s.simulated = location.NewSimulated(s.config.Simulated)
		s.feedName = "simulated"
		return s.simulated, nil
	}

	s.feedClient = feed.NewClient(feed.ClientConfig{
		ServerAddr: addr,
		Path:       path,
		Name:       fmt.Sprintf("%s %s", version.Product, version.Version),
	})
	if err := s.feedClient.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to feed %s: %w", addr, err)
	}
	if s.feedName == "" {
		s.feedName = s.feedClient.ServerName()
	}
	return s.feedClient, nil
}

// Run shows the TUI, or runs headless when the TUI is disabled, until the
// user quits or ctx ends
func (s *Scope) Run(ctx context.Context) error {
	s.startMetricsServer()

	if s.config.UseTUI {
		return ui.Run(ui.Config{
			Session:    s.session,
			AudioURL:   s.config.AudioURL,
			Tracker:    s.tracker,
			Sun:        s.sun,
			NewPreview: s.newSession,
			FeedName:   s.feedName,
			StartTab:   s.config.StartTab,
		})
	}
	return s.runHeadless(ctx)
}

// runHeadless drives tracking and playback without a terminal UI
func (s *Scope) runHeadless(ctx context.Context) error {
	if err := s.tracker.Start(ctx); err != nil {
		log.Printf("Location unavailable: %v", err)
	}

	if s.config.AudioURL == "" {
		s.logLoop(ctx, nil)
		return nil
	}

	if err := s.session.Initialize(); err != nil {
		return err
	}
	if err := s.session.Load(ctx, s.config.AudioURL); err != nil {
		return err
	}

	tok, err := s.session.TogglePlayPause()
	if err != nil {
		return err
	}

	ended := make(chan struct{})
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		frame.Run(ctx, ui.FrameInterval, func() bool {
			res := s.session.Tick(tok)
			if !res.Continue {
				close(ended)
			}
			return res.Continue
		})
	}()

	s.logLoop(ctx, ended)
	return nil
}

// logLoop reports status every second until ctx ends, or until ended
// closes when ExitOnEnd is set
func (s *Scope) logLoop(ctx context.Context, ended <-chan struct{}) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ended:
			st := s.session.Status()
			log.Printf("Playback %s at %v", st.State, st.CurrentTime)
			if s.config.ExitOnEnd {
				return
			}
			ended = nil
		case <-ticker.C:
			s.logStatus()
		}
	}
}

func (s *Scope) logStatus() {
	if s.config.AudioURL != "" {
		st := s.session.Status()
		log.Printf("Audio: %s %v/%v", st.State, st.CurrentTime, st.Duration)
	}
	if last, ok := s.tracker.Last(); ok {
		log.Printf("Location: %s (%d updates, region %s)", last, s.tracker.Updates(), s.tracker.Region())
	}
}

func (s *Scope) startMetricsServer() {
	if s.config.MetricsAddr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())
	s.metricsServer = &http.Server{Addr: s.config.MetricsAddr, Handler: mux}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.Printf("Metrics listening on %s/metrics", s.config.MetricsAddr)
		if err := s.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Metrics server error: %v", err)
		}
	}()
}

// Session exposes the main audio session
func (s *Scope) Session() *session.Session { return s.session }

// Tracker exposes the location tracker
func (s *Scope) Tracker() *location.Tracker { return s.tracker }

// Close tears everything down. It is safe to call more than once.
func (s *Scope) Close() error {
	var errs []error
	s.closeOnce.Do(func() {
		if err := s.session.Teardown(); err != nil {
			errs = append(errs, err)
		}
		if s.tracker != nil {
			s.tracker.Unsubscribe()
		}
		if s.simulated != nil {
			s.simulated.Wait()
		}
		if s.feedClient != nil {
			s.feedClient.Close()
		}
		if s.discovery != nil {
			s.discovery.Stop()
		}
		if s.metricsServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.metricsServer.Shutdown(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		s.wg.Wait()
		if err := s.fetcher.Close(); err != nil {
			errs = append(errs, err)
		}
		log.Printf("Scope stopped")
	})
	return errors.Join(errs...)
}
