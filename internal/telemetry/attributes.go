// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the daemon.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"

	// Session attributes
	SessionIDKey    = "session.id"
	SessionStateKey = "session.state"
	ManifestURLKey  = "session.manifest_url"
	VariantIndexKey = "session.variant_index"

	// Ingest attributes
	IngestEndpointKey  = "ingest.endpoint"
	IngestBatchSizeKey = "ingest.batch_size"

	// Error attributes
	ErrorKey         = "error"
	ErrorCategoryKey = "error.category"
	ErrorFatalKey    = "error.fatal"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// SessionAttributes creates playback-session span attributes.
func SessionAttributes(sessionID, state string, variantIndex int) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if sessionID != "" {
		attrs = append(attrs, attribute.String(SessionIDKey, sessionID))
	}
	if state != "" {
		attrs = append(attrs, attribute.String(SessionStateKey, state))
	}
	attrs = append(attrs, attribute.Int(VariantIndexKey, variantIndex))
	return attrs
}

// IngestAttributes creates telemetry-forwarding span attributes.
func IngestAttributes(endpoint string, batchSize int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(IngestEndpointKey, endpoint),
		attribute.Int(IngestBatchSizeKey, batchSize),
	}
}

// ErrorAttributes creates error span attributes from a classified failure.
func ErrorAttributes(category string, fatal bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorCategoryKey, category),
		attribute.Bool(ErrorFatalKey, fatal),
	}
}
