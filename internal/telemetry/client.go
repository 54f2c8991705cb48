// SPDX-License-Identifier: MIT

package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/playbackd/internal/metrics"
	platformnet "github.com/ManuGH/playbackd/internal/platform/net"
	"github.com/ManuGH/playbackd/internal/resilience"
)

const (
	defaultPostTimeout  = 5 * time.Second
	breakerThreshold    = 5
	breakerResetTimeout = 30 * time.Second
)

// ClientConfig points the ingest client at a collector.
type ClientConfig struct {
	// Endpoint is the collector base URL; batches are posted to
	// {Endpoint}/v1/events.
	Endpoint string
	// Timeout bounds one post attempt.
	Timeout time.Duration
	// AuthToken is sent as a bearer token when set.
	AuthToken string
}

// Client posts event batches to the ingestion endpoint. A circuit
// breaker shields the daemon from a dead collector: once it opens,
// posts fail fast until the reset probe succeeds.
type Client struct {
	ingestURL string
	token     string
	client    *http.Client
	policy    platformnet.OutboundPolicy
	breaker   *resilience.CircuitBreaker
	timeout   time.Duration
	logger    zerolog.Logger
}

// NewClient builds an ingest client for the configured collector.
// Timeouts are enforced per request via context; http.Client.Timeout is
// left unset.
func NewClient(cfg ClientConfig, policy platformnet.OutboundPolicy, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultPostTimeout
	}
	return &Client{
		ingestURL: strings.TrimRight(cfg.Endpoint, "/") + "/v1/events",
		token:     cfg.AuthToken,
		// The instrumented transport propagates W3C trace context to the
		// collector and records one client span per post.
		client:    &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		policy:    policy,
		breaker:   resilience.NewCircuitBreaker("telemetry_ingest", breakerThreshold, breakerResetTimeout),
		timeout:   cfg.Timeout,
		logger:    logger,
	}
}

// IngestURL returns the resolved collector URL, for health checks.
func (c *Client) IngestURL() string { return c.ingestURL }

// PostEvents delivers one batch. It returns resilience.ErrCircuitOpen
// without touching the network while the breaker is open.
func (c *Client) PostEvents(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	return c.breaker.Execute(func() error {
		return c.post(ctx, events)
	})
}

func (c *Client) post(ctx context.Context, events []Event) (err error) {
	ctx, span := Tracer("playbackd.telemetry").Start(ctx, "telemetry.ingest",
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(IngestAttributes(c.ingestURL, len(events))...)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	target, err := platformnet.ValidateOutboundURL(ctx, c.ingestURL, c.policy)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(struct {
		Events []Event `json:"events"`
	}{Events: events})
	if err != nil {
		return fmt.Errorf("encode telemetry batch: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	res, err := c.client.Do(req)
	if err != nil {
		metrics.ObserveTelemetryPost("error", time.Since(start).Seconds())
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4096))
		_ = res.Body.Close()
	}()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		metrics.ObserveTelemetryPost("rejected", time.Since(start).Seconds())
		return fmt.Errorf("telemetry ingest: unexpected status %d", res.StatusCode)
	}

	metrics.ObserveTelemetryPost("accepted", time.Since(start).Seconds())
	c.logger.Debug().
		Str("event", "telemetry.posted").
		Int("events", len(events)).
		Dur("duration", time.Since(start)).
		Msg("telemetry batch accepted")
	return nil
}
