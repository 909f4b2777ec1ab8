package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRequestsTotal    = "gdport.requests.total"
	metricRequestDuration  = "gdport.request.duration.seconds"
	metricErrorsTotal      = "gdport.errors.total"
	metricInflightRequests = "gdport.inflight.requests"

	metricFilesTotal         = "gdport.convert.files.total"
	metricRuleFiringsTotal   = "gdport.convert.rule_firings.total"
	metricParseFailuresTotal = "gdport.convert.parse_failures.total"
	metricConvertDuration    = "gdport.convert.duration.seconds"
	metricSourceBytes        = "gdport.convert.source.bytes"

	attrOp     = "op"
	attrStatus = "status"
	attrRule   = "rule"

	// StatusOK marks a successful request or conversion.
	StatusOK = "ok"
	// StatusError marks a failed request or conversion.
	StatusError = "error"
)

// durationBucketBoundaries covers 1ms to 60s: a single script converts in
// milliseconds, a large batch in seconds.
var durationBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// metricBuilder accumulates instrument creation errors so a set of instruments
// needs a single error check.
type metricBuilder struct {
	meter metric.Meter
	err   error
}

func newMetricBuilder(mt metric.Meter) *metricBuilder {
	return &metricBuilder{meter: mt}
}

func (b *metricBuilder) counter(name, desc, unit string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	b.setErr(name, err)

	return c
}

func (b *metricBuilder) histogram(name, desc, unit string, bounds ...float64) metric.Float64Histogram {
	opts := []metric.Float64HistogramOption{
		metric.WithDescription(desc),
		metric.WithUnit(unit),
	}

	if len(bounds) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(bounds...))
	}

	h, err := b.meter.Float64Histogram(name, opts...)
	b.setErr(name, err)

	return h
}

func (b *metricBuilder) upDownCounter(name, desc, unit string) metric.Int64UpDownCounter {
	c, err := b.meter.Int64UpDownCounter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	b.setErr(name, err)

	return c
}

func (b *metricBuilder) setErr(name string, err error) {
	if err != nil && b.err == nil {
		b.err = fmt.Errorf("create %s: %w", name, err)
	}
}

// REDMetrics holds the OTel instruments for Rate, Error, Duration metrics.
type REDMetrics struct {
	requestsTotal    metric.Int64Counter
	requestDuration  metric.Float64Histogram
	errorsTotal      metric.Int64Counter
	inflightRequests metric.Int64UpDownCounter
}

// NewREDMetrics creates RED metric instruments from the given meter.
func NewREDMetrics(mt metric.Meter) (*REDMetrics, error) {
	b := newMetricBuilder(mt)

	rm := &REDMetrics{
		requestsTotal:    b.counter(metricRequestsTotal, "Total number of requests", "{request}"),
		requestDuration:  b.histogram(metricRequestDuration, "Request duration in seconds", "s", durationBucketBoundaries...),
		errorsTotal:      b.counter(metricErrorsTotal, "Total number of errors", "{error}"),
		inflightRequests: b.upDownCounter(metricInflightRequests, "Number of in-flight requests", "{request}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return rm, nil
}

// RecordRequest records a completed request with its operation, status, and duration.
func (rm *REDMetrics) RecordRequest(ctx context.Context, op, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrStatus, status),
	)

	rm.requestsTotal.Add(ctx, 1, attrs)
	rm.requestDuration.Record(ctx, duration.Seconds(), attrs)

	if status == StatusError {
		rm.errorsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String(attrOp, op),
		))
	}
}

// TrackInflight increments the in-flight gauge and returns a function to decrement it.
func (rm *REDMetrics) TrackInflight(ctx context.Context, op string) func() {
	attrs := metric.WithAttributes(attribute.String(attrOp, op))
	rm.inflightRequests.Add(ctx, 1, attrs)

	return func() {
		rm.inflightRequests.Add(ctx, -1, attrs)
	}
}

// ConversionMetrics holds the instruments for script conversions.
type ConversionMetrics struct {
	filesTotal    metric.Int64Counter
	ruleFirings   metric.Int64Counter
	parseFailures metric.Int64Counter
	duration      metric.Float64Histogram
	sourceBytes   metric.Int64Counter
}

// ConversionRecord describes one finished conversion.
type ConversionRecord struct {
	// Rules maps rule names to firing counts.
	Rules       map[string]int
	SourceBytes int
	Duration    time.Duration
	Failed      bool
	ParseFailed bool
}

// NewConversionMetrics creates conversion instruments from the given meter.
func NewConversionMetrics(mt metric.Meter) (*ConversionMetrics, error) {
	b := newMetricBuilder(mt)

	cm := &ConversionMetrics{
		filesTotal:    b.counter(metricFilesTotal, "Scripts converted, by status", "{file}"),
		ruleFirings:   b.counter(metricRuleFiringsTotal, "Rewrite rule firings, by rule", "{firing}"),
		parseFailures: b.counter(metricParseFailuresTotal, "Scripts rejected by the parser", "{file}"),
		duration:      b.histogram(metricConvertDuration, "Per-script conversion duration in seconds", "s", durationBucketBoundaries...),
		sourceBytes:   b.counter(metricSourceBytes, "Source bytes read", "By"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return cm, nil
}

// Record adds one conversion to the instruments. A nil receiver records nothing.
func (cm *ConversionMetrics) Record(ctx context.Context, rec ConversionRecord) {
	if cm == nil {
		return
	}

	status := StatusOK
	if rec.Failed {
		status = StatusError
	}

	cm.filesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStatus, status)))
	cm.duration.Record(ctx, rec.Duration.Seconds(), metric.WithAttributes(attribute.String(attrStatus, status)))
	cm.sourceBytes.Add(ctx, int64(rec.SourceBytes))

	if rec.ParseFailed {
		cm.parseFailures.Add(ctx, 1)
	}

	for rule, count := range rec.Rules {
		cm.ruleFirings.Add(ctx, int64(count), metric.WithAttributes(attribute.String(attrRule, rule)))
	}
}
