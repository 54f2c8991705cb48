// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/playbackd/internal/playback/store"
)

func TestEndpointChecker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer srv.Close()

	// Any HTTP response, even an error status, proves reachability.
	up := NewEndpointChecker("telemetry", srv.URL)
	c := up.Check(context.Background())
	assert.Equal(t, StatusHealthy, c.Status)
	assert.Contains(t, c.Message, "405")

	down := NewEndpointChecker("telemetry", "http://127.0.0.1:1/events")
	c = down.Check(context.Background())
	assert.Equal(t, StatusWarning, c.Status)

	unconfigured := NewEndpointChecker("telemetry", "")
	c = unconfigured.Check(context.Background())
	assert.Equal(t, StatusHealthy, c.Status)
	assert.Contains(t, c.Message, "not configured")
}

func TestStoreChecker(t *testing.T) {
	ok := NewStoreChecker("journal", store.NewMemoryStore())
	assert.Equal(t, StatusHealthy, ok.Check(context.Background()).Status)

	none := NewStoreChecker("journal", nil)
	assert.Equal(t, StatusHealthy, none.Check(context.Background()).Status)
}

func TestStoreChecker_FailedPingIsCritical(t *testing.T) {
	chk := NewStoreChecker("journal", failingStore{})
	c := chk.Check(context.Background())
	assert.Equal(t, StatusCritical, c.Status)
	assert.Contains(t, c.Message, "store ping failed")
}

func TestPingChecker(t *testing.T) {
	ok := NewPingChecker("cache", func(context.Context) error { return nil })
	assert.Equal(t, StatusHealthy, ok.Check(context.Background()).Status)

	failing := NewPingChecker("cache", func(context.Context) error {
		return errors.New("dial tcp: connection refused")
	})
	c := failing.Check(context.Background())
	assert.Equal(t, StatusWarning, c.Status)
	assert.Contains(t, c.Message, "connection refused")

	unconfigured := NewPingChecker("cache", nil)
	c = unconfigured.Check(context.Background())
	assert.Equal(t, StatusHealthy, c.Status)
	assert.Contains(t, c.Message, "not configured")
}

func TestStatusFileChecker(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sessions.json")

	chk := NewStatusFileChecker("status_export", path, time.Minute)

	// Missing right after boot is a grace period, not a failure.
	c := chk.Check(context.Background())
	assert.Equal(t, StatusHealthy, c.Status)
	assert.Contains(t, c.Message, "starting up")

	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o600))
	c = chk.Check(context.Background())
	assert.Equal(t, StatusHealthy, c.Status)

	// Backdate the export past the tolerated age.
	stale := time.Now().Add(-5 * time.Minute)
	require.NoError(t, os.Chtimes(path, stale, stale))
	c = chk.Check(context.Background())
	assert.Equal(t, StatusWarning, c.Status)
	assert.Contains(t, c.Message, "stale")
}

func TestStatusFileChecker_Unconfigured(t *testing.T) {
	chk := NewStatusFileChecker("status_export", "", time.Minute)
	c := chk.Check(context.Background())
	assert.Equal(t, StatusHealthy, c.Status)
	assert.Contains(t, c.Message, "not configured")
}

func TestStatusFileChecker_DirectoryIsWarning(t *testing.T) {
	dir := t.TempDir()
	chk := NewStatusFileChecker("status_export", dir, time.Minute)
	c := chk.Check(context.Background())
	assert.Equal(t, StatusWarning, c.Status)
}

// failingStore implements store.StateStore with a broken Ping.
type failingStore struct{}

func (failingStore) PutSession(context.Context, *store.SessionRecord) error { return nil }
func (failingStore) GetSession(context.Context, string) (*store.SessionRecord, error) {
	return nil, nil
}
func (failingStore) ListSessions(context.Context, store.Filter) ([]*store.SessionRecord, error) {
	return nil, nil
}
func (failingStore) DeleteSession(context.Context, string) error           { return nil }
func (failingStore) AppendTransition(context.Context, store.TransitionRecord) error {
	return nil
}
func (failingStore) Transitions(context.Context, string) ([]store.TransitionRecord, error) {
	return nil, nil
}
func (failingStore) Ping(context.Context) error { return errors.New("database is locked") }
func (failingStore) Close() error               { return nil }
