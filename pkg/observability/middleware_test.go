package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/gdport/pkg/observability"
)

func newTestTracer(t *testing.T) (*tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	return exporter, tp
}

// testMux mimics the API routes, with a status chosen by the "status" query value.
func testMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/convert", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("status") {
		case "500":
			w.WriteHeader(http.StatusInternalServerError)
		case "400":
			w.WriteHeader(http.StatusBadRequest)
		default:
			_, _ = w.Write([]byte("{}"))
		}
	})
	mux.HandleFunc("GET /scenes/{name}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) attribute.Value {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value
		}
	}

	return attribute.Value{}
}

func TestHTTPInstrumentation_SpanPerRoute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		method     string
		target     string
		wantSpan   string
		wantStatus int
		wantCode   codes.Code
	}{
		{
			name: "convert", method: http.MethodPost, target: "/api/convert",
			wantSpan: "POST /api/convert", wantStatus: http.StatusOK, wantCode: codes.Unset,
		},
		{
			name: "path value", method: http.MethodGet, target: "/scenes/Level1",
			wantSpan: "GET /scenes/{name}", wantStatus: http.StatusNoContent, wantCode: codes.Unset,
		},
		{
			name: "client error", method: http.MethodPost, target: "/api/convert?status=400",
			wantSpan: "POST /api/convert", wantStatus: http.StatusBadRequest, wantCode: codes.Unset,
		},
		{
			name: "server error", method: http.MethodPost, target: "/api/convert?status=500",
			wantSpan: "POST /api/convert", wantStatus: http.StatusInternalServerError, wantCode: codes.Error,
		},
		{
			name: "unknown path", method: http.MethodGet, target: "/nope",
			wantSpan: observability.RouteUnmatched, wantStatus: http.StatusNotFound, wantCode: codes.Unset,
		},
		{
			name: "wrong method", method: http.MethodGet, target: "/api/convert",
			wantSpan: observability.RouteUnmatched, wantStatus: http.StatusMethodNotAllowed, wantCode: codes.Unset,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			exporter, tp := newTestTracer(t)
			handler := observability.HTTPInstrumentation{Tracer: tp.Tracer("test")}.Wrap(testMux())

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, http.NoBody))

			assert.Equal(t, tt.wantStatus, rec.Code)

			spans := exporter.GetSpans().Snapshots()
			require.Len(t, spans, 1)
			assert.Equal(t, tt.wantSpan, spans[0].Name())
			assert.Equal(t, tt.wantSpan, spanAttr(spans[0], "http.route").AsString())
			assert.Equal(t, int64(tt.wantStatus), spanAttr(spans[0], "http.response.status_code").AsInt64())
			assert.Equal(t, tt.wantCode, spans[0].Status().Code)
		})
	}
}

func TestHTTPInstrumentation_HandlerSeesSpan(t *testing.T) {
	t.Parallel()

	exporter, tp := newTestTracer(t)

	var sawSpan bool

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		sawSpan = trace.SpanContextFromContext(r.Context()).IsValid()

		trace.SpanFromContext(r.Context()).SetAttributes(attribute.Int(observability.AttrRewrites, 3))
		w.WriteHeader(http.StatusOK)
	})

	observability.HTTPInstrumentation{Tracer: tp.Tracer("test")}.Wrap(mux).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))

	assert.True(t, sawSpan)

	spans := exporter.GetSpans().Snapshots()
	require.Len(t, spans, 1)
	assert.Equal(t, int64(3), spanAttr(spans[0], observability.AttrRewrites).AsInt64())
}

func TestHTTPInstrumentation_RecordsMetricsByRoute(t *testing.T) {
	t.Parallel()

	_, tp := newTestTracer(t)
	mp, reader := newTestReader(t)

	red, err := observability.NewREDMetrics(mp.Meter("test"))
	require.NoError(t, err)

	handler := observability.HTTPInstrumentation{Tracer: tp.Tracer("test"), Metrics: red}.Wrap(testMux())

	for _, target := range []string{"/api/convert", "/api/convert?status=400", "/api/convert?status=500"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, target, http.NoBody))
	}

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/scenes/a", http.NoBody))

	rm := collectMetrics(t, reader)

	assert.Equal(t, map[string]int64{"POST /api/convert": 3, "GET /scenes/{name}": 1},
		sumByAttr(t, findMetric(rm, "gdport.requests.total"), "op"))
	assert.Equal(t, map[string]int64{"POST /api/convert": 2},
		sumByAttr(t, findMetric(rm, "gdport.errors.total"), "op"))
	assert.Equal(t, map[string]int64{"POST /api/convert": 0, "GET /scenes/{name}": 0},
		sumByAttr(t, findMetric(rm, "gdport.inflight.requests"), "op"))
}

func TestHTTPInstrumentation_AccessLog(t *testing.T) {
	t.Parallel()

	_, tp := newTestTracer(t)

	var buf bytes.Buffer

	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := observability.HTTPInstrumentation{Tracer: tp.Tracer("test"), Logger: logger}.Wrap(testMux())

	handler.ServeHTTP(httptest.NewRecorder(),
		httptest.NewRequest(http.MethodPost, "/api/convert?status=500", http.NoBody))

	var entry map[string]any

	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "http request", entry["msg"])
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "POST /api/convert", entry["route"])
	assert.Equal(t, "/api/convert", entry["path"])
	assert.InDelta(t, float64(http.StatusInternalServerError), entry["status"], 0)
}

// Not parallel: installs the global propagator.
func TestHTTPInstrumentation_ExtractsTraceParent(t *testing.T) {
	exporter, tp := newTestTracer(t)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	parentTraceID := "0af7651916cd43dd8448eb211c80319c"
	parentSpanID := "00f067aa0ba902b7"

	req := httptest.NewRequest(http.MethodPost, "/api/convert", http.NoBody)
	req.Header.Set("Traceparent", "00-"+parentTraceID+"-"+parentSpanID+"-01")

	observability.HTTPInstrumentation{Tracer: tp.Tracer("test")}.Wrap(testMux()).
		ServeHTTP(httptest.NewRecorder(), req)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, parentTraceID, spans[0].SpanContext.TraceID().String())
	assert.Equal(t, parentSpanID, spans[0].Parent.SpanID().String())
}
