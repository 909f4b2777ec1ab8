package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Span attributes set by the conversion handler on the request span.
const (
	AttrRewrites = "gdport.rewrites"
	AttrPartial  = "gdport.partial"
)

// RouteUnmatched is the operation name of requests no route accepts.
const RouteUnmatched = "unmatched"

// recordingWriter remembers the first status code written through it.
type recordingWriter struct {
	http.ResponseWriter

	status int
	wrote  bool
}

func (rw *recordingWriter) WriteHeader(code int) {
	if !rw.wrote {
		rw.status = code
		rw.wrote = true
	}

	rw.ResponseWriter.WriteHeader(code)
}

func (rw *recordingWriter) Write(buf []byte) (int, error) {
	rw.wrote = true

	n, err := rw.ResponseWriter.Write(buf)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}

	return n, nil
}

// Unwrap exposes the underlying writer to [http.ResponseController].
func (rw *recordingWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// HTTPInstrumentation instruments the routes of the conversion API.
// Metrics and Logger are optional.
type HTTPInstrumentation struct {
	Tracer  trace.Tracer
	Metrics *REDMetrics
	Logger  *slog.Logger
}

// Wrap returns a handler that serves mux inside a server span named after the matched route
// pattern, such as "POST /api/convert". The same pattern is the op of the RED metrics and the
// route of the access log line. W3C trace context in the request headers is continued.
func (hi HTTPInstrumentation) Wrap(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, hr *http.Request) {
		start := time.Now()

		_, route := mux.Handler(hr)
		if route == "" {
			route = RouteUnmatched
		}

		parentCtx := otel.GetTextMapPropagator().Extract(hr.Context(), propagation.HeaderCarrier(hr.Header))

		ctx, span := hi.Tracer.Start(parentCtx, route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(hr.Method),
				semconv.HTTPRoute(route),
				attribute.String("http.target", hr.URL.Path),
			),
		)
		defer span.End()

		if hi.Metrics != nil {
			done := hi.Metrics.TrackInflight(ctx, route)
			defer done()
		}

		rec := &recordingWriter{ResponseWriter: w, status: http.StatusOK}
		mux.ServeHTTP(rec, hr.WithContext(ctx))

		elapsed := time.Since(start)

		span.SetAttributes(semconv.HTTPResponseStatusCode(rec.status))

		if rec.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}

		status := StatusOK
		if rec.status >= http.StatusBadRequest {
			status = StatusError
		}

		if hi.Metrics != nil {
			hi.Metrics.RecordRequest(ctx, route, status, elapsed)
		}

		if hi.Logger != nil {
			level := slog.LevelInfo
			if rec.status >= http.StatusInternalServerError {
				level = slog.LevelError
			}

			hi.Logger.LogAttrs(ctx, level, "http request",
				slog.String("route", route),
				slog.String("path", hr.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("duration", elapsed),
			)
		}
	})
}
