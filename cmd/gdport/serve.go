package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/gdport/pkg/config"
	"github.com/Sumatoshi-tech/gdport/pkg/convert"
	"github.com/Sumatoshi-tech/gdport/pkg/csharp"
	"github.com/Sumatoshi-tech/gdport/pkg/observability"
	"github.com/Sumatoshi-tech/gdport/pkg/rules"
)

const (
	defaultFilename = "Script.cs"
	shutdownTimeout = 10 * time.Second
)

// ConvertRequest is the body of POST /api/convert.
type ConvertRequest struct {
	Code     string `json:"code"`
	Filename string `json:"filename,omitempty"`
	Partial  bool   `json:"partial,omitempty"`
	Diff     bool   `json:"diff,omitempty"`
}

// ConvertResponse is the body returned by POST /api/convert.
type ConvertResponse struct {
	Output string         `json:"output,omitempty"`
	Rules  map[string]int `json:"rules,omitempty"`
	Hints  []rules.Hint   `json:"hints,omitempty"`
	Diff   string         `json:"diff,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// apiServer holds the handlers of the HTTP API.
type apiServer struct {
	converter        *convert.Converter
	partialConverter *convert.Converter
	metrics          *observability.REDMetrics
	logger           *slog.Logger
	maxBodySize      int64
}

// newServerMux builds the routes and instruments them with the server's tracer, request
// metrics and logger. metricsHandler may be nil, in which case /metrics is not served.
func newServerMux(api *apiServer, tracer trace.Tracer, metricsHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/convert", api.handleConvert)
	mux.HandleFunc("GET /healthz", handleHealth)

	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}

	instr := observability.HTTPInstrumentation{Tracer: tracer, Metrics: api.metrics, Logger: api.logger}

	return instr.Wrap(mux)
}

func serveCmd(ro *rootOptions) *cobra.Command {
	var (
		host      string
		port      int
		rulesFile string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP conversion API",
		Long: `Serve the conversion API:

  POST /api/convert   {"code": "...", "partial": false, "diff": false}
  GET  /healthz
  GET  /metrics       Prometheus scrape endpoint`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := ro.setup(cmd, observability.ModeServe, true)
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			if cmd.Flags().Changed("host") {
				a.cfg.Server.Host = host
			}

			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}

			api, err := a.apiServer(rulesFile)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return a.serve(ctx, newServerMux(api, a.providers.Tracer, a.providers.MetricsHandler))
		},
	}

	cmd.Flags().StringVar(&host, "host", config.DefaultHost, "address to listen on")
	cmd.Flags().IntVarP(&port, "port", "p", config.DefaultPort, "port to listen on")
	cmd.Flags().StringVarP(&rulesFile, "rules", "r", "", "YAML rules file merged over the defaults")

	return cmd
}

func (a *app) apiServer(rulesFile string) (*apiServer, error) {
	tables, err := a.tables(rulesFile, false)
	if err != nil {
		return nil, err
	}

	red, err := observability.NewREDMetrics(a.providers.Meter)
	if err != nil {
		a.logger.Warn("request metrics disabled", "error", err)
	}

	maxBody, err := config.ParseSize(a.cfg.Server.MaxBodySize)
	if err != nil {
		return nil, fmt.Errorf("server.max_body_size: %w", err)
	}

	return &apiServer{
		converter:        a.converter(tables),
		partialConverter: a.converter(tables.WithPartialClasses(true)),
		metrics:          red,
		logger:           a.logger,
		maxBodySize:      maxBody,
	}, nil
}

// serve runs the server until ctx is canceled, then drains connections.
func (a *app) serve(ctx context.Context, handler http.Handler) error {
	srvCfg := a.cfg.Server

	server := &http.Server{
		Addr:         srvCfg.Addr(),
		Handler:      handler,
		ReadTimeout:  srvCfg.ReadTimeout,
		WriteTimeout: srvCfg.WriteTimeout,
		IdleTimeout:  srvCfg.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("gdport server starting", "addr", "http://"+server.Addr)

		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	err := server.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	a.logger.Info("gdport server stopped")

	return nil
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (api *apiServer) handleConvert(w http.ResponseWriter, r *http.Request) {
	code, resp := api.convert(w, r)
	writeJSON(r.Context(), api.logger, w, code, resp)
}

func (api *apiServer) convert(w http.ResponseWriter, r *http.Request) (int, ConvertResponse) {
	body := r.Body
	if api.maxBodySize > 0 {
		body = http.MaxBytesReader(w, r.Body, api.maxBodySize)
	}

	var req ConvertRequest

	err := json.NewDecoder(body).Decode(&req)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return http.StatusRequestEntityTooLarge, ConvertResponse{Error: "request body too large"}
		}

		return http.StatusBadRequest, ConvertResponse{Error: "invalid request body"}
	}

	if req.Code == "" {
		return http.StatusBadRequest, ConvertResponse{Error: "code is required"}
	}

	conv := api.converter
	if req.Partial {
		conv = api.partialConverter
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.Bool(observability.AttrPartial, req.Partial))

	res, err := conv.Convert(r.Context(), []byte(req.Code))
	if err != nil {
		if errors.Is(err, csharp.ErrParse) {
			return http.StatusUnprocessableEntity, ConvertResponse{Error: err.Error()}
		}

		return http.StatusInternalServerError, ConvertResponse{Error: err.Error()}
	}

	span.SetAttributes(attribute.Int(observability.AttrRewrites, res.Stats.Total()))

	resp := ConvertResponse{
		Output: res.Output,
		Rules:  res.Stats.Map(),
		Hints:  res.Hints,
	}

	if req.Diff {
		name := req.Filename
		if name == "" {
			name = defaultFilename
		}

		resp.Diff = convert.UnifiedDiff(name, convert.OutputPath(name, conv.Suffix()), req.Code, res.Output)
	}

	return http.StatusOK, resp
}

func writeJSON(ctx context.Context, logger *slog.Logger, w http.ResponseWriter, code int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	err := json.NewEncoder(w).Encode(value)
	if err != nil {
		logger.ErrorContext(ctx, "failed to encode JSON response", "error", err)
	}
}
