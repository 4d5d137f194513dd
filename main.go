// ABOUTME: Entry point for the resonate-scope visualizer
// ABOUTME: Parses CLI flags and environment through cobra and viper and runs the scope
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Resonate-Protocol/resonate-scope/internal/app"
	"github.com/Resonate-Protocol/resonate-scope/internal/location"
	"github.com/Resonate-Protocol/resonate-scope/internal/session"
	"github.com/Resonate-Protocol/resonate-scope/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := rootCommand(viper.New()).Execute(); err != nil {
		os.Exit(1)
	}
}

// rootCommand builds the scope command. Flags are bound to v so every flag
// can also come from a RESONATE_SCOPE_ environment variable.
func rootCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "resonate-scope",
		Short:        "Audio visualizer and live location map",
		Version:      version.Version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), v)
		},
	}

	setupFlags(cmd, v)
	return cmd
}

func setupFlags(cmd *cobra.Command, v *viper.Viper) {
	flags := cmd.Flags()
	flags.String("audio-url", "", "URL of the audio asset to visualize")
	flags.String("feed", "", "Position feed address host:port (default: simulated walk)")
	flags.Bool("discover", false, "Find a position feed with mDNS")
	flags.Int("fft-size", session.DefaultFFTSize, "Analyser FFT size, a power of two")
	flags.String("output", "oto", "Audio output backend (oto, malgo, null)")
	flags.String("cache-dir", "", "Persistent directory for downloaded assets (default: temp dir removed on exit)")
	flags.String("log-file", "resonate-scope.log", "Log file path")
	flags.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	flags.String("tab", "audio", "Tab shown at start (audio, map)")
	flags.Bool("exit-on-end", false, "Exit headless mode when playback ends")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	flags.BoolP("debug", "d", false, "Enable debug logging")

	route := location.DefaultRouteConfig()
	flags.Float64("lat", route.Center.Latitude, "Simulated route center latitude")
	flags.Float64("lon", route.Center.Longitude, "Simulated route center longitude")
	flags.Float64("radius", route.Radius, "Simulated route radius in meters")
	flags.Float64("speed", route.Speed, "Simulated walking speed in meters per second")
	flags.Bool("deny-location", false, "Simulate a denied location permission")

	v.SetEnvPrefix("RESONATE_SCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		fmt.Fprintf(os.Stderr, "error binding flags: %v\n", err)
		os.Exit(1)
	}
}

// configFrom reads the scope configuration out of v
func configFrom(v *viper.Viper) app.Config {
	route := location.DefaultRouteConfig()
	route.Center = location.Position{
		Latitude:  v.GetFloat64("lat"),
		Longitude: v.GetFloat64("lon"),
	}
	route.Radius = v.GetFloat64("radius")
	route.Speed = v.GetFloat64("speed")

	return app.Config{
		AudioURL:    v.GetString("audio-url"),
		FeedAddr:    v.GetString("feed"),
		Discover:    v.GetBool("discover"),
		FFTSize:     v.GetInt("fft-size"),
		Output:      v.GetString("output"),
		CacheDir:    v.GetString("cache-dir"),
		UseTUI:      !v.GetBool("no-tui"),
		StartTab:    v.GetString("tab"),
		MetricsAddr: v.GetString("metrics-addr"),
		ExitOnEnd:   v.GetBool("exit-on-end"),
		Debug:       v.GetBool("debug"),
		Simulated: location.SimulatedConfig{
			Route: route,
			Deny:  v.GetBool("deny-location"),
		},
	}
}

func run(ctx context.Context, v *viper.Viper) error {
	config := configFrom(v)

	// Set up logging
	f, err := os.OpenFile(v.GetString("log-file"), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("error opening log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if config.UseTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	log.Printf("Starting %s %s", version.Product, version.Version)
	if config.Debug {
		log.Printf("[DEBUG] Config: %+v", config)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scope, err := app.New(ctx, config)
	if err != nil {
		log.Printf("Failed to start: %v", err)
		return err
	}
	defer func() {
		if err := scope.Close(); err != nil {
			log.Printf("Error closing scope: %v", err)
		}
	}()

	return scope.Run(ctx)
}
