// ABOUTME: Remote audio asset fetcher
// ABOUTME: Downloads assets over HTTP with a memory cache in front of a disk cache
package asset

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/Resonate-Protocol/resonate-scope/internal/metrics"
	"github.com/patrickmn/go-cache"
)

const (
	// DefaultTTL for in-memory payloads
	DefaultTTL = 10 * time.Minute

	// DefaultDiskTTL is how long a cached file is trusted, by modification time
	DefaultDiskTTL = 24 * time.Hour

	// DefaultMaxBytes caps a single download
	DefaultMaxBytes = 64 << 20
)

// ErrEmptyURL is returned for an empty asset URL
var ErrEmptyURL = errors.New("empty asset url")

// Config holds fetcher configuration
type Config struct {
	// CacheDir persists across runs. When empty the fetcher uses a
	// private temp directory that Close removes.
	CacheDir string
	TTL      time.Duration
	DiskTTL  time.Duration
	MaxBytes int64
	Client   *http.Client
	Metrics  *metrics.Metrics
}

// Fetcher downloads and caches remote assets
type Fetcher struct {
	cfg       Config
	memory    *cache.Cache
	ephemeral bool
}

// NewFetcher creates the cache directory and returns a fetcher
func NewFetcher(cfg Config) (*Fetcher, error) {
	ephemeral := cfg.CacheDir == ""
	if ephemeral {
		dir, err := os.MkdirTemp("", "resonate-scope-assets-*")
		if err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
		cfg.CacheDir = dir
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.DiskTTL <= 0 {
		cfg.DiskTTL = DefaultDiskTTL
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: time.Minute}
	}

	if err := os.MkdirAll(cfg.CacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	// no janitor goroutine, expired entries are swept on misses
	return &Fetcher{
		cfg:       cfg,
		memory:    cache.New(cfg.TTL, 0),
		ephemeral: ephemeral,
	}, nil
}

// Fetch returns the asset bytes for rawURL
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if rawURL == "" {
		return nil, ErrEmptyURL
	}

	if v, ok := f.memory.Get(rawURL); ok {
		f.cfg.Metrics.RecordFetch("memory")
		return v.([]byte), nil
	}
	f.memory.DeleteExpired()

	path := f.CachePath(rawURL)
	if data, ok := f.readDisk(path); ok {
		log.Printf("Asset cache hit: %s", path)
		f.cfg.Metrics.RecordFetch("disk")
		f.memory.SetDefault(rawURL, data)
		return data, nil
	}

	start := time.Now()
	data, err := f.download(ctx, rawURL, path)
	f.cfg.Metrics.ObserveFetchDuration(time.Since(start).Seconds())
	if err != nil {
		f.cfg.Metrics.RecordFetch("error")
		return nil, err
	}

	f.cfg.Metrics.RecordFetch("network")
	f.memory.SetDefault(rawURL, data)
	return data, nil
}

// readDisk returns a cached file younger than the disk TTL. Stale files
// are removed.
func (f *Fetcher) readDisk(path string) ([]byte, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if time.Since(info.ModTime()) > f.cfg.DiskTTL {
		log.Printf("Asset cache entry expired: %s", path)
		os.Remove(path)
		return nil, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return data, true
}

// download fetches rawURL and writes it to path through a temp file
func (f *Fetcher) download(ctx context.Context, rawURL, path string) ([]byte, error) {
	log.Printf("Downloading asset: %s", rawURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid asset url: %w", err)
	}

	resp, err := f.cfg.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("asset download failed: HTTP %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(f.cfg.CacheDir, "partial-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(resp.Body, f.cfg.MaxBytes+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save asset: %w", err)
	}
	if n > f.cfg.MaxBytes {
		return nil, fmt.Errorf("asset exceeds %d bytes", f.cfg.MaxBytes)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, fmt.Errorf("failed to store asset: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read stored asset: %w", err)
	}

	log.Printf("Asset saved: %s (%d bytes)", path, len(data))
	return data, nil
}

// CachePath returns the disk cache location for rawURL
func (f *Fetcher) CachePath(rawURL string) string {
	hash := sha256.Sum256([]byte(rawURL))
	return filepath.Join(f.cfg.CacheDir, fmt.Sprintf("%x%s", hash[:8], extension(rawURL)))
}

// Forget drops rawURL from both caches
func (f *Fetcher) Forget(rawURL string) {
	f.memory.Delete(rawURL)
	if err := os.Remove(f.CachePath(rawURL)); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to remove cached asset: %v", err)
	}
}

// Close clears memory and removes the cache directory if the fetcher
// created it. A configured CacheDir is left in place.
func (f *Fetcher) Close() error {
	f.memory.Flush()
	if !f.ephemeral {
		return nil
	}
	if err := os.RemoveAll(f.cfg.CacheDir); err != nil {
		return fmt.Errorf("failed to remove cache directory: %w", err)
	}
	return nil
}

// extension returns the path extension of rawURL, ignoring the query
func extension(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ".bin"
	}
	if ext := filepath.Ext(u.Path); ext != "" {
		return ext
	}
	return ".bin"
}
