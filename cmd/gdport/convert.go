package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/gdport/pkg/convert"
	"github.com/Sumatoshi-tech/gdport/pkg/observability"
	"github.com/Sumatoshi-tech/gdport/pkg/report"
)

// ErrFilesFailed reports that at least one file of a conversion run failed.
var ErrFilesFailed = errors.New("conversion failed")

const promptText = "Enter the path to the C# file: "

type convertOptions struct {
	all        bool
	output     string
	outputDir  string
	stdout     bool
	diff       bool
	dryRun     bool
	rulesFile  string
	partial    bool
	workers    int
	report     bool
	htmlReport string
}

func convertCmd(ro *rootOptions) *cobra.Command {
	opts := &convertOptions{}

	cmd := &cobra.Command{
		Use:   "convert [files...]",
		Short: "Convert Unity C# scripts to Godot C#",
		Long: `Convert Unity C# scripts to Godot C#.

Each input Player.cs is written to Player_Godot.cs next to it unless --output,
--stdout or --dry-run say otherwise. With --all the arguments are directories
(default ".") searched recursively for C# scripts. Without arguments the path
is read from stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, ro, opts, args)
		},
	}

	cmd.Flags().BoolVarP(&opts.all, "all", "a", false, "treat arguments as directories and convert every script in them")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single input only)")
	cmd.Flags().StringVar(&opts.outputDir, "output-dir", "", "write outputs into this directory")
	cmd.Flags().BoolVar(&opts.stdout, "stdout", false, "print converted code instead of writing files")
	cmd.Flags().BoolVar(&opts.diff, "diff", false, "print a unified diff of each conversion")
	cmd.Flags().BoolVarP(&opts.dryRun, "dry-run", "n", false, "convert without writing files")
	cmd.Flags().StringVarP(&opts.rulesFile, "rules", "r", "", "YAML rules file merged over the defaults")
	cmd.Flags().BoolVar(&opts.partial, "partial", false, "emit public partial classes")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "parallel workers (0 = config or CPU count)")
	cmd.Flags().BoolVar(&opts.report, "report", false, "print a per-file rule table")
	cmd.Flags().StringVar(&opts.htmlReport, "html-report", "", "write an HTML chart of rule firings to this file")

	return cmd
}

func runConvert(cmd *cobra.Command, ro *rootOptions, opts *convertOptions, args []string) error {
	ctx := cmd.Context()

	a, err := ro.setup(cmd, observability.ModeCLI, false)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	tables, err := a.tables(opts.rulesFile, opts.partial)
	if err != nil {
		return err
	}

	conv := a.converter(tables)

	paths, err := inputPaths(cmd, conv, opts, args)
	if err != nil {
		return err
	}

	workers := a.cfg.Convert.Workers
	if cmd.Flags().Changed("workers") {
		workers = opts.workers
	}

	outputDir := opts.outputDir
	if outputDir == "" {
		outputDir = a.cfg.Convert.OutputDir
	}

	fileOpts := convert.FileOptions{
		OutputPath: opts.output,
		OutputDir:  outputDir,
		DryRun:     opts.dryRun || opts.stdout,
	}

	results, batchErr := conv.ConvertAll(ctx, paths, workers, fileOpts)
	if errors.Is(batchErr, convert.ErrOutputPathForBatch) {
		return batchErr
	}

	out := cmd.OutOrStdout()

	// Status lines move to stderr when stdout carries code.
	status := out
	if opts.stdout {
		status = cmd.ErrOrStderr()
	}

	failed := printResults(out, status, results, opts)

	err = writeReports(out, results, opts)
	if err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d files", ErrFilesFailed, failed, len(results))
	}

	return nil
}

// inputPaths resolves the files to convert from arguments, directories or the prompt.
func inputPaths(cmd *cobra.Command, conv *convert.Converter, opts *convertOptions, args []string) ([]string, error) {
	if opts.all {
		roots := args
		if len(roots) == 0 {
			roots = []string{"."}
		}

		var paths []string

		for _, root := range roots {
			found, err := conv.CollectScripts(root)
			if err != nil {
				return nil, err
			}

			paths = append(paths, found...)
		}

		return paths, nil
	}

	if len(args) > 0 {
		return args, nil
	}

	path, err := promptPath(cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil {
		return nil, err
	}

	return []string{path}, nil
}

// promptPath asks for a script path on in. Quotes pasted around the path are dropped.
func promptPath(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, promptText)

	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		err := scanner.Err()
		if err != nil {
			return "", fmt.Errorf("read path: %w", err)
		}

		return "", convert.ErrEmptyPath
	}

	path := strings.TrimSpace(strings.ReplaceAll(scanner.Text(), `"`, ""))
	if path == "" {
		return "", convert.ErrEmptyPath
	}

	return path, nil
}

// printResults writes code, diffs and one status line per file, and returns the failure count.
func printResults(out, status io.Writer, results []convert.FileResult, opts *convertOptions) int {
	okColor := color.New(color.FgGreen)
	failColor := color.New(color.FgRed)
	hintColor := color.New(color.FgYellow)

	failed := 0

	for _, fr := range results {
		if fr.Err != nil {
			failed++

			failColor.Fprintf(status, "✗ %s\n", sanitizeForTerminal(fr.Err.Error()))

			continue
		}

		if opts.stdout {
			fmt.Fprint(out, fr.Output)
		}

		if opts.diff {
			fmt.Fprint(out, convert.UnifiedDiff(fr.Path, fr.OutputPath, string(fr.Source), fr.Output))
		}

		switch {
		case fr.Written:
			okColor.Fprintf(status, "✓ %s -> %s (%d rewrites)\n", fr.Path, fr.OutputPath, fr.Stats.Total())
		default:
			okColor.Fprintf(status, "✓ %s (%d rewrites, not written)\n", fr.Path, fr.Stats.Total())
		}

		for _, hint := range fr.Hints {
			hintColor.Fprintf(status, "  hint: %s looks like %s\n", hint.Method, strings.Join(hint.Suggestions, " or "))
		}
	}

	return failed
}

func writeReports(out io.Writer, results []convert.FileResult, opts *convertOptions) error {
	rows := report.FromResults(results)

	if opts.report {
		err := report.WriteTable(out, rows)
		if err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	if opts.htmlReport == "" {
		return nil
	}

	file, err := os.Create(opts.htmlReport)
	if err != nil {
		return fmt.Errorf("create html report: %w", err)
	}

	err = report.WriteHTML(file, rows)

	return errors.Join(err, file.Close())
}
