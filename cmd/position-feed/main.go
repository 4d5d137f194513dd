// ABOUTME: Entry point for the position feed server
// ABOUTME: Parses CLI flags and streams a simulated walk over websocket
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/resonate-scope/internal/feed"
	"github.com/Resonate-Protocol/resonate-scope/internal/location"
)

var (
	port     = flag.Int("port", feed.DefaultPort, "WebSocket server port")
	name     = flag.String("name", "", "Feed friendly name (default: hostname-position-feed)")
	lat      = flag.Float64("lat", 40.7128, "Latitude of the walk center")
	lon      = flag.Float64("lon", -74.006, "Longitude of the walk center")
	radius   = flag.Float64("radius", 150, "Walk radius in meters")
	speed    = flag.Float64("speed", 1.4, "Walking speed in meters per second")
	interval = flag.Duration("interval", time.Second, "Time between streamed positions")
	deny     = flag.Bool("deny", false, "Answer every client with permission denied")
	noMDNS   = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	useTUI   = flag.Bool("tui", false, "Show the status TUI instead of console logs")
	logFile  = flag.String("log-file", "position-feed.log", "Log file path")
	debug    = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	if *useTUI {
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	feedName := *name
	if feedName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		feedName = fmt.Sprintf("%s-position-feed", hostname)
	}

	log.Printf("Starting position feed: %s on port %d", feedName, *port)
	log.Printf("Logging to: %s", *logFile)

	srv := feed.NewServer(feed.ServerConfig{
		Port:       *port,
		Name:       feedName,
		EnableMDNS: !*noMDNS,
		UseTUI:     *useTUI,
		Debug:      *debug,
		Deny:       *deny,
		Interval:   *interval,
		Route: location.RouteConfig{
			Center: location.Position{Latitude: *lat, Longitude: *lon},
			Radius: *radius,
			Speed:  *speed,
		},
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received %v signal, shutting down gracefully...", sig)
		srv.Stop()
	}()

	if err := srv.Start(); err != nil {
		log.Fatalf("Feed error: %v", err)
	}

	log.Printf("Feed stopped")
}
