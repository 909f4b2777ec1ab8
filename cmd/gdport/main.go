// Package main provides the gdport CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/gdport/pkg/version"
)

// formatJSON is the value of --format that selects JSON output.
const formatJSON = "json"

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

func main() {
	version.InitBinaryVersion()

	err := newRootCmd().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	ro := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "gdport",
		Short: "gdport rewrites Unity C# scripts for Godot",
		Long: `gdport converts Unity MonoBehaviour scripts into Godot C# scripts by rewriting
their syntax tree with a fixed set of substitution tables.

Commands:
  convert   Convert one or more scripts
  scene     Summarize a Unity scene or prefab
  rules     Print or validate rule tables
  serve     Run the HTTP conversion API
  mcp       Run the MCP stdio server`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&ro.configPath, "config", "",
		"config file (default ./gdport.yaml or $HOME/.config/gdport/gdport.yaml)")
	rootCmd.PersistentFlags().StringVar(&ro.logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&ro.logFormat, "log-format", "", "log format: text or json")

	rootCmd.AddCommand(convertCmd(ro))
	rootCmd.AddCommand(sceneCmd(ro))
	rootCmd.AddCommand(rulesCmd(ro))
	rootCmd.AddCommand(serveCmd(ro))
	rootCmd.AddCommand(mcpCmd(ro))
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gdport %s\n", version.String())
		},
	}
}
