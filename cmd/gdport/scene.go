package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/gdport/pkg/report"
	"github.com/Sumatoshi-tech/gdport/pkg/scene"
)

func sceneCmd(_ *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "scene <file>",
		Short: "Summarize a Unity scene or prefab",
		Long: `Read a Unity .unity or .prefab file and count its serialized objects per section.
With --format json the merged top-level entries of every document are printed instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format == formatJSON {
				merged, err := scene.ReadDocument(args[0])
				if err != nil {
					return err
				}

				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")

				err = enc.Encode(merged)
				if err != nil {
					return fmt.Errorf("encode scene: %w", err)
				}

				return nil
			}

			//nolint:gosec // The scene path is supplied by the user on purpose.
			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open scene: %w", err)
			}
			defer file.Close()

			docs, err := scene.ReadDocuments(file)
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			return report.WriteSceneSummary(cmd.OutOrStdout(), scene.Summarize(docs))
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table or json")

	return cmd
}
