package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/gdport/pkg/observability"
	"github.com/Sumatoshi-tech/gdport/pkg/rules"
)

// ErrNoRulesFile reports --validate without a rules file.
var ErrNoRulesFile = errors.New("--validate needs a rules file")

func rulesCmd(ro *rootOptions) *cobra.Command {
	var (
		rulesFile string
		validate  bool
		schema    bool
		partial   bool
	)

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Print or validate rule tables",
		Long: `Print the effective rule tables as YAML: the defaults, merged with --rules when given.
The output is itself a valid rules file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			if schema {
				_, err := out.Write(rules.Schema())
				if err != nil {
					return fmt.Errorf("write schema: %w", err)
				}

				return nil
			}

			if validate {
				return validateRules(cmd, rulesFile)
			}

			a, err := ro.setup(cmd, observability.ModeCLI, false)
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			tables, err := a.tables(rulesFile, partial)
			if err != nil {
				return err
			}

			return tables.WriteYAML(out)
		},
	}

	cmd.Flags().StringVarP(&rulesFile, "rules", "r", "", "YAML rules file merged over the defaults")
	cmd.Flags().BoolVar(&validate, "validate", false, "only validate the rules file")
	cmd.Flags().BoolVar(&schema, "schema", false, "print the rules file JSON schema")
	cmd.Flags().BoolVar(&partial, "partial", false, "show tables with public partial classes enabled")

	return cmd
}

func validateRules(cmd *cobra.Command, path string) error {
	if path == "" {
		return ErrNoRulesFile
	}

	//nolint:gosec // Rules path is supplied by the operator.
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read rules: %w", err)
	}

	err = rules.Validate(raw)
	if err != nil {
		color.New(color.FgRed).Fprintf(cmd.ErrOrStderr(), "✗ %s\n", path)

		return err
	}

	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✓ %s is a valid rules file\n", path)

	return nil
}
