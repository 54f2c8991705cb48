// SPDX-License-Identifier: MIT
package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestContextWithRequestID(t *testing.T) {
	tests := []struct {
		name      string
		ctx       context.Context
		requestID string
		want      string
	}{
		{
			name:      "nil context",
			ctx:       nil,
			requestID: "test-id-123",
			want:      "test-id-123",
		},
		{
			name:      "background context",
			ctx:       context.Background(),
			requestID: "req-456",
			want:      "req-456",
		},
		{
			name:      "empty request ID",
			ctx:       context.Background(),
			requestID: "",
			want:      "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := ContextWithRequestID(tt.ctx, tt.requestID)
			got := RequestIDFromContext(ctx)
			if got != tt.want {
				t.Errorf("RequestIDFromContext() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContextWithSessionID(t *testing.T) {
	tests := []struct {
		name      string
		ctx       context.Context
		sessionID string
		want      string
	}{
		{
			name:      "nil context",
			ctx:       nil,
			sessionID: "sess-123",
			want:      "sess-123",
		},
		{
			name:      "background context",
			ctx:       context.Background(),
			sessionID: "sess-456",
			want:      "sess-456",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := ContextWithSessionID(tt.ctx, tt.sessionID)
			got := SessionIDFromContext(ctx)
			if got != tt.want {
				t.Errorf("SessionIDFromContext() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWithContextEnrichment(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithCorrelationID(ctx, "corr-1")
	ctx = ContextWithSessionID(ctx, "sess-1")

	enriched := WithContext(ctx, base)
	enriched.Info().Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if entry["request_id"] != "req-1" {
		t.Errorf("request_id = %v, want req-1", entry["request_id"])
	}
	if entry["correlation_id"] != "corr-1" {
		t.Errorf("correlation_id = %v, want corr-1", entry["correlation_id"])
	}
	if entry["session_id"] != "sess-1" {
		t.Errorf("session_id = %v, want sess-1", entry["session_id"])
	}
}

func TestWithContextNoFields(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	enriched := WithContext(context.Background(), base)
	enriched.Info().Msg("bare")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if _, ok := entry["request_id"]; ok {
		t.Error("request_id should be absent when context carries no IDs")
	}
	if _, ok := entry["session_id"]; ok {
		t.Error("session_id should be absent when context carries no IDs")
	}
}

func TestFromContextFallsBackToBase(t *testing.T) {
	l := FromContext(context.Background())
	if l == nil {
		t.Fatal("FromContext returned nil logger")
	}
	if l.GetLevel() == zerolog.Disabled {
		t.Error("fallback logger must not be disabled")
	}
}
