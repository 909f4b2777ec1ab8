package mcp

//go:generate go run ../../tools/schemagen -o ../../docs/schemas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/gdport/pkg/convert"
	"github.com/Sumatoshi-tech/gdport/pkg/rules"
	"github.com/Sumatoshi-tech/gdport/pkg/scene"
)

// Tool name constants.
const (
	ToolNameConvert = "gdport_convert"
	ToolNameRules   = "gdport_rules"
	ToolNameScene   = "gdport_scene"
)

// MaxCodeInputBytes is the maximum allowed size for inline input (1 MB).
const MaxCodeInputBytes = 1 << 20

// Sentinel errors for tool input validation.
var (
	// ErrEmptyCode indicates the code parameter is empty.
	ErrEmptyCode = errors.New("code parameter is required and must not be empty")
	// ErrEmptyScene indicates the scene parameter is empty.
	ErrEmptyScene = errors.New("scene parameter is required and must not be empty")
	// ErrInputTooLarge indicates the input exceeds the size limit.
	ErrInputTooLarge = errors.New("input exceeds maximum size")
)

// ConvertInput is the input schema for the gdport_convert tool.
type ConvertInput struct {
	Code     string `json:"code"               jsonschema:"Unity C# script source"`
	Filename string `json:"filename,omitempty" jsonschema:"optional script file name used to label the diff"`
	Partial  bool   `json:"partial,omitempty"  jsonschema:"make every class public partial as Godot requires"`
	Diff     bool   `json:"diff,omitempty"     jsonschema:"also return a unified diff of the change"`
}

// RulesInput is the input schema for the gdport_rules tool.
type RulesInput struct{}

// SceneInput is the input schema for the gdport_scene tool.
type SceneInput struct {
	Scene string `json:"scene" jsonschema:"contents of a .unity or .prefab file"`
}

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// ConvertOutput is the data of a gdport_convert result.
type ConvertOutput struct {
	Output string         `json:"output"`
	Rules  map[string]int `json:"rules"`
	Hints  []rules.Hint   `json:"hints,omitempty"`
	Diff   string         `json:"diff,omitempty"`
}

// SceneOutput is the data of a gdport_scene result.
type SceneOutput struct {
	Documents int                  `json:"documents"`
	Sections  []scene.SectionCount `json:"sections"`
	Objects   []string             `json:"objects,omitempty"`
}

func (s *Server) handleConvert(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input ConvertInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := validateInput(input.Code, ErrEmptyCode)
	if err != nil {
		return errorResult(err)
	}

	conv := s.converter
	if input.Partial {
		conv = s.partialConverter
	}

	res, err := conv.Convert(ctx, []byte(input.Code))
	if err != nil {
		return errorResult(fmt.Errorf("convert: %w", err))
	}

	out := ConvertOutput{
		Output: res.Output,
		Rules:  res.Stats.Map(),
		Hints:  res.Hints,
	}

	if input.Diff {
		name := input.Filename
		if name == "" {
			name = "Script.cs"
		}

		out.Diff = convert.UnifiedDiff(name, convert.OutputPath(name, conv.Suffix()), input.Code, res.Output)
	}

	return jsonResult(out)
}

func (s *Server) handleRules(
	_ context.Context,
	_ *mcpsdk.CallToolRequest,
	_ RulesInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return jsonResult(s.tables.Snapshot())
}

func handleSceneSummary(
	_ context.Context,
	_ *mcpsdk.CallToolRequest,
	input SceneInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := validateInput(input.Scene, ErrEmptyScene)
	if err != nil {
		return errorResult(err)
	}

	docs, err := scene.ReadDocuments(strings.NewReader(input.Scene))
	if err != nil {
		return errorResult(err)
	}

	out := SceneOutput{Documents: len(docs), Sections: scene.Summarize(docs)}

	for _, doc := range docs {
		if doc.Section() == "GameObject" && doc.Name() != "" {
			out.Objects = append(out.Objects, doc.Name())
		}
	}

	return jsonResult(out)
}

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}

func validateInput(text string, emptyErr error) error {
	if strings.TrimSpace(text) == "" {
		return emptyErr
	}

	if len(text) > MaxCodeInputBytes {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrInputTooLarge, len(text), MaxCodeInputBytes)
	}

	return nil
}
