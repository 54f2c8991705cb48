// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/ManuGH/playbackd/internal/playback/store"
)

// EndpointChecker probes an HTTP collaborator such as the telemetry
// ingestion endpoint. Any HTTP response counts as reachable; only a
// transport failure degrades the check. The result is a warning, not
// critical, because the daemon keeps serving playback while telemetry
// is dropped.
type EndpointChecker struct {
	name   string
	url    string
	client *http.Client
}

// NewEndpointChecker creates a reachability check for url. An empty url
// reports healthy as not configured.
func NewEndpointChecker(name, url string) *EndpointChecker {
	return &EndpointChecker{
		name:   name,
		url:    url,
		client: &http.Client{},
	}
}

func (c *EndpointChecker) Name() string { return c.name }

func (c *EndpointChecker) Check(ctx context.Context) Check {
	if c.url == "" {
		return Check{Status: StatusHealthy, Message: "not configured (optional)"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.url, nil)
	if err != nil {
		return Check{Status: StatusWarning, Message: fmt.Sprintf("invalid endpoint url: %v", err)}
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return Check{Status: StatusWarning, Message: fmt.Sprintf("endpoint unreachable: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	return Check{Status: StatusHealthy, Message: fmt.Sprintf("reachable (%d)", resp.StatusCode)}
}

// StoreChecker pings the session journal store. The journal is load
// bearing for session persistence, so a failed ping is critical.
type StoreChecker struct {
	name  string
	store store.StateStore
}

// NewStoreChecker creates a ping check for the journal store.
func NewStoreChecker(name string, s store.StateStore) *StoreChecker {
	return &StoreChecker{name: name, store: s}
}

func (c *StoreChecker) Name() string { return c.name }

func (c *StoreChecker) Check(ctx context.Context) Check {
	if c.store == nil {
		return Check{Status: StatusHealthy, Message: "not configured (optional)"}
	}
	if err := c.store.Ping(ctx); err != nil {
		return Check{Status: StatusCritical, Message: fmt.Sprintf("store ping failed: %v", err)}
	}
	return Check{Status: StatusHealthy, Message: "store reachable"}
}

// PingChecker wraps an arbitrary ping func, used for the manifest cache
// backend. A failed ping is a warning: the fetcher falls through to the
// network when the cache is gone.
type PingChecker struct {
	name string
	ping func(ctx context.Context) error
}

// NewPingChecker creates a check from ping. A nil ping reports healthy
// as not configured, which covers the in-memory backends that have
// nothing to probe.
func NewPingChecker(name string, ping func(ctx context.Context) error) *PingChecker {
	return &PingChecker{name: name, ping: ping}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) Check {
	if c.ping == nil {
		return Check{Status: StatusHealthy, Message: "not configured (optional)"}
	}
	if err := c.ping(ctx); err != nil {
		return Check{Status: StatusWarning, Message: fmt.Sprintf("ping failed: %v", err)}
	}
	return Check{Status: StatusHealthy, Message: "reachable"}
}

// StatusFileChecker verifies the periodic status export is still being
// written. A missing file right after boot is expected; a stale one
// means the exporter died.
type StatusFileChecker struct {
	name     string
	path     string
	maxAge   time.Duration
	bootedAt time.Time
}

// NewStatusFileChecker creates a freshness check for the status export
// at path, tolerating maxAge since the last write. An empty path reports
// healthy as not configured.
func NewStatusFileChecker(name, path string, maxAge time.Duration) *StatusFileChecker {
	return &StatusFileChecker{
		name:     name,
		path:     path,
		maxAge:   maxAge,
		bootedAt: time.Now(),
	}
}

func (c *StatusFileChecker) Name() string { return c.name }

func (c *StatusFileChecker) Check(_ context.Context) Check {
	if c.path == "" {
		return Check{Status: StatusHealthy, Message: "not configured (optional)"}
	}

	info, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			if time.Since(c.bootedAt) < c.maxAge {
				return Check{Status: StatusHealthy, Message: "no export yet (starting up)"}
			}
			return Check{Status: StatusWarning, Message: "status file missing: " + c.path}
		}
		return Check{Status: StatusWarning, Message: fmt.Sprintf("status file unreadable: %v", err)}
	}
	if info.IsDir() {
		return Check{Status: StatusWarning, Message: "expected file, got directory"}
	}

	if age := time.Since(info.ModTime()); age > c.maxAge {
		return Check{Status: StatusWarning, Message: fmt.Sprintf("status file stale (%s old)", age.Round(time.Second))}
	}
	return Check{Status: StatusHealthy, Message: "status export fresh"}
}
