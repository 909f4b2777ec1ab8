// Package convert runs the conversion pipeline: parse C# source, rewrite the tree with
// the Unity to Godot rules and print the result.
package convert

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/gdport/pkg/csharp"
	"github.com/Sumatoshi-tech/gdport/pkg/observability"
	"github.com/Sumatoshi-tech/gdport/pkg/rewrite"
	"github.com/Sumatoshi-tech/gdport/pkg/rules"
)

const (
	// DefaultSuffix is appended to a script's base name to form the output file name.
	DefaultSuffix = "_Godot"

	// DefaultMaxFileSize caps the size of a script read from disk.
	DefaultMaxFileSize int64 = 4 << 20

	tracerName = "gdport/convert"
)

// Result is the outcome of one successful conversion.
type Result struct {
	Output string        `json:"output"`
	Stats  rewrite.Stats `json:"rules"`
	Hints  []rules.Hint  `json:"hints,omitempty"`
}

// Converter converts scripts with a fixed rewriter. It is safe for concurrent use.
type Converter struct {
	rewriter    *rewrite.Rewriter
	logger      *slog.Logger
	tracer      trace.Tracer
	metrics     *observability.ConversionMetrics
	suffix      string
	maxFileSize int64
}

// Option configures a Converter.
type Option func(*Converter)

// WithLogger sets the logger used for hints and per-file progress.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Converter) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTracer sets the tracer for conversion spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Converter) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// WithMetrics records every conversion in cm.
func WithMetrics(cm *observability.ConversionMetrics) Option {
	return func(c *Converter) {
		c.metrics = cm
	}
}

// WithSuffix sets the output file suffix. An empty suffix keeps DefaultSuffix, since
// writing over the input is never wanted.
func WithSuffix(suffix string) Option {
	return func(c *Converter) {
		if suffix != "" {
			c.suffix = suffix
		}
	}
}

// WithMaxFileSize caps script reads. Zero or less disables the cap.
func WithMaxFileSize(size int64) Option {
	return func(c *Converter) {
		c.maxFileSize = size
	}
}

// New creates a converter around rw. A nil rewriter uses the default rule tables.
func New(rw *rewrite.Rewriter, opts ...Option) *Converter {
	if rw == nil {
		rw = rewrite.New(nil)
	}

	c := &Converter{
		rewriter:    rw,
		logger:      slog.New(slog.DiscardHandler),
		tracer:      otel.Tracer(tracerName),
		suffix:      DefaultSuffix,
		maxFileSize: DefaultMaxFileSize,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Suffix returns the output file suffix.
func (c *Converter) Suffix() string {
	return c.suffix
}

// Convert parses source, rewrites it and prints the result. A parse failure is returned
// as an error wrapping csharp.ErrParse; nothing else fails.
func (c *Converter) Convert(ctx context.Context, source []byte) (Result, error) {
	ctx, span := c.tracer.Start(ctx, "gdport.convert",
		trace.WithAttributes(attribute.Int("source.bytes", len(source))),
	)
	defer span.End()

	start := time.Now()

	root, err := csharp.Parse(ctx, source)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")

		c.metrics.Record(ctx, observability.ConversionRecord{
			SourceBytes: len(source),
			Duration:    time.Since(start),
			Failed:      true,
			ParseFailed: errors.Is(err, csharp.ErrParse),
		})

		return Result{}, err
	}

	rewritten, stats := c.rewriter.Rewrite(root)

	result := Result{
		Output: csharp.Print(rewritten),
		Stats:  stats,
		Hints:  c.hints(ctx, root),
	}

	span.SetAttributes(attribute.Int("rules.fired", stats.Total()))

	c.metrics.Record(ctx, observability.ConversionRecord{
		Rules:       stats.Map(),
		SourceBytes: len(source),
		Duration:    time.Since(start),
	})

	return result, nil
}

// hints lists methods whose names look like a misspelled lifecycle hook.
func (c *Converter) hints(ctx context.Context, root *csharp.Node) []rules.Hint {
	tables := c.rewriter.Tables()

	var hints []rules.Hint

	root.Walk(func(nd *csharp.Node) bool {
		if nd.Kind != csharp.KindMethodDecl {
			return true
		}

		name, ok := rewrite.MethodName(nd)
		if !ok {
			return true
		}

		if suggestions := tables.NearMisses(name); len(suggestions) > 0 {
			hints = append(hints, rules.Hint{Method: name, Suggestions: suggestions})

			c.logger.WarnContext(ctx, "method looks like a lifecycle hook",
				"method", name, "suggestions", suggestions)
		}

		return true
	})

	return hints
}
