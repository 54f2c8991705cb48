// SPDX-License-Identifier: MIT

package manifest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/playbackd/internal/cache"
	"github.com/ManuGH/playbackd/internal/metrics"
	platformnet "github.com/ManuGH/playbackd/internal/platform/net"
)

const (
	defaultFetchTimeout = 10 * time.Second
	defaultMaxBytes     = 2 << 20 // 2 MiB, master playlists are tiny
	defaultCacheTTL     = 30 * time.Second
)

// FetcherConfig bounds a fetcher's network behavior.
type FetcherConfig struct {
	Timeout  time.Duration // per-fetch deadline
	CacheTTL time.Duration // how long fetched bodies stay cached
	MaxBytes int64         // refuse bodies larger than this
}

// Fetcher retrieves master manifests over HTTP, validates the target
// against an outbound policy, and caches raw bodies so rapid session
// restarts do not refetch an unchanged manifest.
// Timeouts are enforced via context.WithTimeout; http.Client.Timeout is
// left unset.
type Fetcher struct {
	client   *http.Client
	policy   platformnet.OutboundPolicy
	cache    cache.Cache
	timeout  time.Duration
	cacheTTL time.Duration
	maxBytes int64
	logger   zerolog.Logger
}

// NewFetcher builds a fetcher. A nil cache disables caching.
func NewFetcher(cfg FetcherConfig, policy platformnet.OutboundPolicy, c cache.Cache, logger zerolog.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultFetchTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	if c == nil {
		c = cache.NewNoOpCache()
	}
	return &Fetcher{
		client:   &http.Client{},
		policy:   policy,
		cache:    c,
		timeout:  cfg.Timeout,
		cacheTTL: cfg.CacheTTL,
		maxBytes: cfg.MaxBytes,
		logger:   logger,
	}
}

// Fetch retrieves and parses the master manifest at rawURL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Table, error) {
	if body, ok := f.cache.Get(rawURL); ok {
		metrics.IncManifestCacheLookup("hit")
		table, err := ParseMaster(strings.NewReader(body))
		if err == nil {
			return table, nil
		}
		// A cached body that no longer parses is dropped and refetched.
		f.cache.Delete(rawURL)
	} else {
		metrics.IncManifestCacheLookup("miss")
	}

	start := time.Now()
	body, err := f.download(ctx, rawURL)
	if err != nil {
		metrics.ObserveManifestFetch("error", time.Since(start).Seconds())
		return nil, err
	}
	metrics.ObserveManifestFetch("success", time.Since(start).Seconds())

	table, err := ParseMaster(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	f.cache.Set(rawURL, body, f.cacheTTL)
	metrics.ObserveManifestVariants(table.Len())

	f.logger.Debug().
		Str("event", "manifest.fetched").
		Str("manifest_url", rawURL).
		Int("variants", table.Len()).
		Dur("duration", time.Since(start)).
		Msg("manifest fetched")

	return table, nil
}

func (f *Fetcher) download(ctx context.Context, rawURL string) (string, error) {
	target, err := platformnet.ValidateOutboundURL(ctx, rawURL, f.policy)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/vnd.apple.mpegurl, application/x-mpegURL, */*")

	res, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", fmt.Errorf("manifest fetch: unexpected status %d", res.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(res.Body, f.maxBytes+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > f.maxBytes {
		return "", fmt.Errorf("manifest exceeds %d bytes", f.maxBytes)
	}

	return string(data), nil
}
