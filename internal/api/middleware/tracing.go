// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/playbackd/internal/telemetry"
)

// Tracing starts an OpenTelemetry server span per request. Incoming W3C
// trace context is honored so client-originated traces continue through
// the controller.
func Tracing(tracerName string) func(http.Handler) http.Handler {
	tracer := telemetry.Tracer(tracerName)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
			)
			defer span.End()

			tw := &tracingWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(tw, r.WithContext(ctx))

			// The route pattern is only known after routing; prefer it over
			// the raw path so spans aggregate per endpoint.
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}
			span.SetName(r.Method + " " + route)
			span.SetAttributes(telemetry.HTTPAttributes(r.Method, route, r.URL.String(), tw.statusCode)...)

			// 4xx is the client's problem; only server faults mark the span.
			if tw.statusCode >= 500 {
				span.SetStatus(codes.Error, http.StatusText(tw.statusCode))
			} else {
				span.SetStatus(codes.Ok, "")
			}
		})
	}
}

type tracingWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (tw *tracingWriter) WriteHeader(statusCode int) {
	if !tw.written {
		tw.statusCode = statusCode
		tw.written = true
	}
	tw.ResponseWriter.WriteHeader(statusCode)
}

func (tw *tracingWriter) Write(b []byte) (int, error) {
	if !tw.written {
		tw.WriteHeader(http.StatusOK)
	}
	return tw.ResponseWriter.Write(b)
}
