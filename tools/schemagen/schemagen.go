// Package main generates JSON schemas for the JSON documents gdport emits: MCP tool
// results and batch conversion results.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/gdport/pkg/convert"
	"github.com/Sumatoshi-tech/gdport/pkg/mcp"
)

const draft07 = "http://json-schema.org/draft-07/schema#"

// Schema represents a JSON Schema.
type Schema struct {
	Schema               string             `json:"$schema,omitempty"`
	Title                string             `json:"title,omitempty"`
	Description          string             `json:"description,omitempty"`
	Type                 string             `json:"type,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	AdditionalProperties *Schema            `json:"additionalProperties,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	Required             []string           `json:"required,omitempty"`
	Ref                  string             `json:"$ref,omitempty"`
	Definitions          map[string]*Schema `json:"definitions,omitempty"`
}

// documents maps output names to a value of the documented type.
var documents = map[string]any{
	"convert_output": mcp.ConvertOutput{},
	"scene_output":   mcp.SceneOutput{},
	"file_result":    convert.FileResult{},
}

var marshalerType = reflect.TypeFor[json.Marshaler]()

func main() {
	outputDir := flag.String("o", "docs/schemas", "output directory for schemas")
	flag.Parse()

	err := run(*outputDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(outputDir string) error {
	err := os.MkdirAll(outputDir, 0o755)
	if err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	for name, value := range documents {
		err = writeSchema(filepath.Join(outputDir, name+".json"), generateSchema(name, value))
		if err != nil {
			return fmt.Errorf("schema %s: %w", name, err)
		}

		fmt.Fprintf(os.Stdout, "generated %s\n", name)
	}

	return nil
}

func generateSchema(name string, value any) *Schema {
	typ := reflect.TypeOf(value)
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}

	defs := make(map[string]*Schema)
	props, required := structToProperties(typ, defs)

	schema := &Schema{
		Schema:      draft07,
		Title:       "gdport " + strings.ReplaceAll(name, "_", " "),
		Description: fmt.Sprintf("JSON schema for %s.%s", typ.PkgPath(), typ.Name()),
		Type:        "object",
		Properties:  props,
		Required:    required,
	}

	if len(defs) > 0 {
		schema.Definitions = defs
	}

	return schema
}

// structToProperties lists the JSON fields of typ. Embedded structs without a tag are
// flattened the way encoding/json flattens them.
func structToProperties(typ reflect.Type, defs map[string]*Schema) (map[string]*Schema, []string) {
	props := make(map[string]*Schema)

	var required []string

	for field := range fields(typ) {
		tag := field.Tag.Get("json")

		if field.Anonymous && tag == "" && field.Type.Kind() == reflect.Struct {
			embedded, embeddedRequired := structToProperties(field.Type, defs)
			for name, schema := range embedded {
				props[name] = schema
			}

			required = append(required, embeddedRequired...)

			continue
		}

		if tag == "-" || !field.IsExported() {
			continue
		}

		name, opts, _ := strings.Cut(tag, ",")
		if name == "" {
			name = field.Name
		}

		props[name] = typeToSchema(field.Type, defs)

		if !strings.Contains(opts, "omitempty") {
			required = append(required, name)
		}
	}

	slices.Sort(required)

	return props, required
}

func fields(typ reflect.Type) func(func(reflect.StructField) bool) {
	return func(yield func(reflect.StructField) bool) {
		for idx := range typ.NumField() {
			if !yield(typ.Field(idx)) {
				return
			}
		}
	}
}

func typeToSchema(typ reflect.Type, defs map[string]*Schema) *Schema {
	// Custom marshalers in this module encode counters as objects.
	if typ.Implements(marshalerType) {
		return &Schema{Type: "object", AdditionalProperties: &Schema{Type: "integer"}}
	}

	switch typ.Kind() {
	case reflect.String:
		return &Schema{Type: "string"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Schema{Type: "integer"}
	case reflect.Float32, reflect.Float64:
		return &Schema{Type: "number"}
	case reflect.Bool:
		return &Schema{Type: "boolean"}
	case reflect.Slice, reflect.Array:
		return &Schema{Type: "array", Items: typeToSchema(typ.Elem(), defs)}
	case reflect.Map:
		return &Schema{Type: "object", AdditionalProperties: typeToSchema(typ.Elem(), defs)}
	case reflect.Struct:
		defName := typ.Name()
		if defName == "" {
			props, required := structToProperties(typ, defs)

			return &Schema{Type: "object", Properties: props, Required: required}
		}

		if _, exists := defs[defName]; !exists {
			// Reserve the name first so recursive types terminate.
			defs[defName] = &Schema{}
			props, required := structToProperties(typ, defs)
			defs[defName] = &Schema{Type: "object", Properties: props, Required: required}
		}

		return &Schema{Ref: "#/definitions/" + defName}
	case reflect.Pointer:
		return typeToSchema(typ.Elem(), defs)
	default:
		return &Schema{}
	}
}

func writeSchema(path string, schema *Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	//nolint:gosec // Schemas are published documentation.
	err = os.WriteFile(path, append(data, '\n'), 0o644)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}
