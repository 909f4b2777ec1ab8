package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/src-d/enry/v2"
)

// Path and file errors.
var (
	// ErrEmptyPath indicates a path argument was empty.
	ErrEmptyPath = errors.New("path is empty")
	// ErrPathContainsNUL indicates the path contains a NUL byte.
	ErrPathContainsNUL = errors.New("path contains NUL byte")
	// ErrDirectoryPath indicates a file operation was attempted on a directory.
	ErrDirectoryPath = errors.New("path points to a directory")
	// ErrFileTooLarge indicates a script larger than the configured cap.
	ErrFileTooLarge = errors.New("file exceeds size limit")
	// ErrBinaryFile indicates a script that contains NUL bytes.
	ErrBinaryFile = errors.New("file is binary")
)

// binarySniffLength is how far a file is scanned for NUL bytes, as git does.
const binarySniffLength = 8000

const (
	csharpLanguage = "C#"
	scriptExt      = ".cs"
	outputFileMode = 0o644
)

// FileOptions controls where ConvertFile writes.
type FileOptions struct {
	// OutputPath overrides the output file. Only valid for a single file.
	OutputPath string
	// OutputDir places outputs in this directory instead of next to each input.
	OutputDir string
	// DryRun converts without writing anything.
	DryRun bool
}

// FileResult is the outcome of converting one file.
type FileResult struct {
	Result

	Path       string `json:"path"`
	OutputPath string `json:"output_path,omitempty"`
	Written    bool   `json:"written"`
	Source     []byte `json:"-"`
	Err        error  `json:"-"`
}

// ConvertFile reads a script, converts it and writes <name><suffix>.cs next to it unless
// opts say otherwise.
func (c *Converter) ConvertFile(ctx context.Context, path string, opts FileOptions) (FileResult, error) {
	source, resolved, err := c.readScript(path)
	if err != nil {
		return FileResult{Path: path, Err: err}, err
	}

	fr := FileResult{Path: resolved, Source: source}

	fr.Result, err = c.Convert(ctx, source)
	if err != nil {
		fr.Err = fmt.Errorf("convert %s: %w", resolved, err)

		return fr, fr.Err
	}

	fr.OutputPath = c.outputPath(resolved, opts)

	for _, hint := range fr.Hints {
		c.logger.DebugContext(ctx, "hint", "path", resolved, "method", hint.Method)
	}

	if opts.DryRun {
		return fr, nil
	}

	//nolint:gosec // Generated scripts are ordinary project sources.
	err = os.WriteFile(fr.OutputPath, []byte(fr.Output), outputFileMode)
	if err != nil {
		fr.Err = fmt.Errorf("write %s: %w", fr.OutputPath, err)

		return fr, fr.Err
	}

	fr.Written = true

	c.logger.InfoContext(ctx, "converted", "path", resolved, "output", fr.OutputPath,
		"rules", fr.Stats.Total())

	return fr, nil
}

func (c *Converter) outputPath(resolved string, opts FileOptions) string {
	if opts.OutputPath != "" {
		return filepath.Clean(opts.OutputPath)
	}

	out := OutputPath(resolved, c.suffix)
	if opts.OutputDir != "" {
		out = filepath.Join(opts.OutputDir, filepath.Base(out))
	}

	return out
}

// OutputPath returns the converted file name for path: Player.cs becomes Player_Godot.cs
// with the default suffix.
func OutputPath(path, suffix string) string {
	ext := filepath.Ext(path)

	return strings.TrimSuffix(path, ext) + suffix + ext
}

// readScript resolves and reads a script, enforcing the size cap.
func (c *Converter) readScript(path string) (content []byte, resolved string, err error) {
	resolved, err = resolveUserFilePath(path)
	if err != nil {
		return nil, "", fmt.Errorf("resolve path %q: %w", path, err)
	}

	if c.maxFileSize > 0 {
		info, statErr := os.Stat(resolved)
		if statErr != nil {
			return nil, "", fmt.Errorf("stat %s: %w", resolved, statErr)
		}

		if info.Size() > c.maxFileSize {
			return nil, "", fmt.Errorf("%w: %s is %s, limit %s", ErrFileTooLarge, resolved,
				humanize.IBytes(uint64(info.Size())), humanize.IBytes(uint64(c.maxFileSize)))
		}
	}

	//nolint:gosec // resolved is normalized and existence/type checked in resolveUserFilePath.
	content, err = os.ReadFile(resolved)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", resolved, err)
	}

	if bytes.IndexByte(content[:min(len(content), binarySniffLength)], 0) >= 0 {
		return nil, "", fmt.Errorf("%w: %s", ErrBinaryFile, resolved)
	}

	return content, resolved, nil
}

func resolveUserFilePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrEmptyPath
	}

	if strings.ContainsRune(path, '\x00') {
		return "", fmt.Errorf("%w: %q", ErrPathContainsNUL, path)
	}

	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", path, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", absPath, err)
	}

	if info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrDirectoryPath, absPath)
	}

	return absPath, nil
}

// CollectScripts walks root and returns the C# scripts under it in lexical order. Hidden
// and vendored directories are skipped, as are files this converter produced.
func (c *Converter) CollectScripts(root string) ([]string, error) {
	if strings.TrimSpace(root) == "" {
		return nil, ErrEmptyPath
	}

	generated := c.suffix + scriptExt

	var scripts []string

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if entry.IsDir() {
			if path != root && skipDir(root, path, entry.Name()) {
				return filepath.SkipDir
			}

			return nil
		}

		if !entry.Type().IsRegular() || strings.HasSuffix(entry.Name(), generated) {
			return nil
		}

		if isCSharp(entry.Name()) {
			scripts = append(scripts, path)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	return scripts, nil
}

func skipDir(root, path, name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}

	return enry.IsVendor(filepath.ToSlash(rel) + "/")
}

func isCSharp(name string) bool {
	return slices.Contains(enry.GetLanguagesByExtension(name, nil, nil), csharpLanguage)
}
