// SPDX-License-Identifier: MIT

package manifest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/playbackd/internal/cache"
	platformnet "github.com/ManuGH/playbackd/internal/platform/net"
)

const testMaster = `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=640x360
low/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=2400000,RESOLUTION=1280x720
hi/index.m3u8
`

// loopbackPolicy admits the httptest server's 127.0.0.1 address.
func loopbackPolicy() platformnet.OutboundPolicy {
	return platformnet.OutboundPolicy{CIDRs: []string{"127.0.0.0/8", "::1/128"}}
}

func newTestFetcher(c cache.Cache) *Fetcher {
	return NewFetcher(FetcherConfig{Timeout: 2 * time.Second}, loopbackPolicy(), c, zerolog.Nop())
}

func TestFetcherFetchParses(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(testMaster))
	}))
	defer s.Close()

	f := newTestFetcher(nil)
	table, err := f.Fetch(context.Background(), s.URL+"/master.m3u8")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table.Len() != 2 {
		t.Fatalf("expected 2 variants, got %d", table.Len())
	}
}

func TestFetcherServesFromCache(t *testing.T) {
	hits := 0
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		_, _ = w.Write([]byte(testMaster))
	}))

	f := newTestFetcher(cache.NewMemoryCache(0))
	url := s.URL + "/master.m3u8"

	if _, err := f.Fetch(context.Background(), url); err != nil {
		t.Fatalf("first fetch failed: %v", err)
	}
	if hits != 1 {
		t.Fatalf("expected 1 origin hit, got %d", hits)
	}

	// Origin gone; the cached body must still satisfy the second fetch.
	s.Close()

	table, err := f.Fetch(context.Background(), url)
	if err != nil {
		t.Fatalf("cached fetch failed: %v", err)
	}
	if table.Len() != 2 {
		t.Fatalf("expected 2 variants from cache, got %d", table.Len())
	}
	if hits != 1 {
		t.Fatalf("expected no further origin hits, got %d", hits)
	}
}

func TestFetcherFetch5xx(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "fail", http.StatusBadGateway)
	}))
	defer s.Close()

	f := newTestFetcher(nil)
	if _, err := f.Fetch(context.Background(), s.URL); err == nil {
		t.Fatal("expected error on 5xx")
	}
}

func TestFetcherBodyTooLarge(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(testMaster))
		_, _ = w.Write([]byte(strings.Repeat("#", 4096)))
	}))
	defer s.Close()

	f := NewFetcher(FetcherConfig{MaxBytes: 512}, loopbackPolicy(), nil, zerolog.Nop())
	_, err := f.Fetch(context.Background(), s.URL)
	if err == nil {
		t.Fatal("expected size limit error")
	}
	if !strings.Contains(err.Error(), "exceeds") {
		t.Fatalf("expected size error, got: %v", err)
	}
}

func TestFetcherNonVariantBody(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("#EXTM3U\n#EXTINF:10.0,\nseg.ts\n"))
	}))
	defer s.Close()

	f := newTestFetcher(nil)
	_, err := f.Fetch(context.Background(), s.URL)
	if !errors.Is(err, ErrNoVariants) {
		t.Fatalf("expected ErrNoVariants, got %v", err)
	}
}

func TestFetcherPolicyBlocksLoopback(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(testMaster))
	}))
	defer s.Close()

	// Default policy refuses loopback targets.
	f := NewFetcher(FetcherConfig{}, platformnet.OutboundPolicy{}, nil, zerolog.Nop())
	_, err := f.Fetch(context.Background(), s.URL)
	if !errors.Is(err, platformnet.ErrOutboundNotAllowed) {
		t.Fatalf("expected ErrOutboundNotAllowed, got %v", err)
	}
}

func TestFetcherContextCancelled(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(2 * time.Second)
		_, _ = w.Write([]byte(testMaster))
	}))
	defer s.Close()

	f := newTestFetcher(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := f.Fetch(ctx, s.URL); err == nil {
		t.Fatal("expected context deadline error")
	}
}
