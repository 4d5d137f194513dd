// ABOUTME: Tests for the scope command line
// ABOUTME: Checks flag defaults, flag parsing and environment overrides
package main

import (
	"testing"

	"github.com/Resonate-Protocol/resonate-scope/internal/location"
	"github.com/Resonate-Protocol/resonate-scope/internal/session"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	v := viper.New()
	rootCommand(v)

	cfg := configFrom(v)
	assert.Equal(t, session.DefaultFFTSize, cfg.FFTSize)
	assert.Equal(t, "oto", cfg.Output)
	assert.True(t, cfg.UseTUI)
	assert.Equal(t, "audio", cfg.StartTab)
	assert.Empty(t, cfg.FeedAddr)
	assert.Equal(t, location.DefaultRouteConfig().Center.Latitude, cfg.Simulated.Route.Center.Latitude)
}

func TestConfigFromFlags(t *testing.T) {
	v := viper.New()
	cmd := rootCommand(v)

	require.NoError(t, cmd.ParseFlags([]string{
		"--audio-url", "http://example.com/a.mp3",
		"--feed", "10.0.0.2:8928",
		"--fft-size", "1024",
		"--output", "null",
		"--no-tui",
		"--deny-location",
	}))

	cfg := configFrom(v)
	assert.Equal(t, "http://example.com/a.mp3", cfg.AudioURL)
	assert.Equal(t, "10.0.0.2:8928", cfg.FeedAddr)
	assert.Equal(t, 1024, cfg.FFTSize)
	assert.Equal(t, "null", cfg.Output)
	assert.False(t, cfg.UseTUI)
	assert.True(t, cfg.Simulated.Deny)
}

func TestConfigFromEnvironment(t *testing.T) {
	t.Setenv("RESONATE_SCOPE_AUDIO_URL", "http://example.com/b.flac")
	t.Setenv("RESONATE_SCOPE_METRICS_ADDR", ":9100")
	t.Setenv("RESONATE_SCOPE_NO_TUI", "true")

	v := viper.New()
	rootCommand(v)

	cfg := configFrom(v)
	assert.Equal(t, "http://example.com/b.flac", cfg.AudioURL)
	assert.Equal(t, ":9100", cfg.MetricsAddr)
	assert.False(t, cfg.UseTUI)
}

func TestFlagBeatsEnvironment(t *testing.T) {
	t.Setenv("RESONATE_SCOPE_OUTPUT", "malgo")

	v := viper.New()
	cmd := rootCommand(v)
	require.NoError(t, cmd.ParseFlags([]string{"--output", "null"}))

	assert.Equal(t, "null", configFrom(v).Output)
}
