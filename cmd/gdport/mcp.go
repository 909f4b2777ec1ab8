package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/gdport/pkg/mcp"
	"github.com/Sumatoshi-tech/gdport/pkg/observability"
	"github.com/Sumatoshi-tech/gdport/pkg/version"
)

func mcpCmd(ro *rootOptions) *cobra.Command {
	var rulesFile string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

Tools:
  - gdport_convert: convert a Unity C# script to Godot C#
  - gdport_rules:   show the effective rule tables
  - gdport_scene:   summarize a Unity scene or prefab

Logs go to stderr since stdout carries the protocol.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := ro.setup(cmd, observability.ModeMCP, false)
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			tables, err := a.tables(rulesFile, false)
			if err != nil {
				return err
			}

			red, err := observability.NewREDMetrics(a.providers.Meter)
			if err != nil {
				return err
			}

			srv := mcp.NewServer(mcp.ServerDeps{
				Logger:      a.logger,
				Metrics:     red,
				Conversions: a.conversions,
				Tracer:      a.providers.Tracer,
				Tables:      tables,
				Version:     version.Version,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&rulesFile, "rules", "r", "", "YAML rules file merged over the defaults")

	return cmd
}
