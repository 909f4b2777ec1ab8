package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/gdport/pkg/config"
	"github.com/Sumatoshi-tech/gdport/pkg/convert"
	"github.com/Sumatoshi-tech/gdport/pkg/observability"
	"github.com/Sumatoshi-tech/gdport/pkg/rewrite"
	"github.com/Sumatoshi-tech/gdport/pkg/rules"
	"github.com/Sumatoshi-tech/gdport/pkg/version"
)

// app is the per-command runtime: configuration plus initialized telemetry.
type app struct {
	cfg         *config.Config
	providers   observability.Providers
	logger      *slog.Logger
	conversions *observability.ConversionMetrics
}

// setup loads configuration, applies the persistent flag overrides and initializes
// telemetry. Logs go to the command's stderr.
func (ro *rootOptions) setup(cmd *cobra.Command, mode observability.AppMode, prometheus bool) (*app, error) {
	cfg, err := config.LoadConfig(ro.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if ro.logLevel != "" {
		cfg.Logging.Level = ro.logLevel
	}

	if ro.logFormat != "" {
		cfg.Logging.Format = ro.logFormat
	}

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}

	tel := cfg.Telemetry(mode, version.Version)
	tel.Prometheus = prometheus

	providers, err := observability.InitWithWriter(tel, cmd.ErrOrStderr())
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	conversions, err := observability.NewConversionMetrics(providers.Meter)
	if err != nil {
		providers.Logger.Warn("conversion metrics disabled", "error", err)
	}

	return &app{
		cfg:         cfg,
		providers:   providers,
		logger:      providers.Logger,
		conversions: conversions,
	}, nil
}

func (a *app) close(ctx context.Context) {
	err := a.providers.Shutdown(context.WithoutCancel(ctx))
	if err != nil {
		a.logger.Warn("observability shutdown failed", "error", err)
	}
}

// tables loads the rule tables from the flag path, falling back to convert.rules_file and
// then to the built-in defaults.
func (a *app) tables(path string, partial bool) (*rules.Tables, error) {
	if path == "" {
		path = a.cfg.Convert.RulesFile
	}

	tables := rules.Default()

	if path != "" {
		loaded, err := rules.Load(path)
		if err != nil {
			return nil, err
		}

		tables = loaded
	}

	if partial || a.cfg.Convert.Partial {
		tables = tables.WithPartialClasses(true)
	}

	return tables, nil
}

func (a *app) converter(tables *rules.Tables) *convert.Converter {
	return convert.New(rewrite.New(tables),
		convert.WithLogger(a.logger),
		convert.WithTracer(a.providers.Tracer),
		convert.WithMetrics(a.conversions),
		convert.WithSuffix(a.cfg.Convert.Suffix),
		convert.WithMaxFileSize(a.cfg.Convert.MaxFileSizeBytes()),
	)
}
