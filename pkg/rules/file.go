package rules

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed rules-schema.json
var schemaJSON []byte

// Sentinel errors for rules files.
var (
	// ErrInvalidRules indicates the rules file does not match the schema.
	ErrInvalidRules = errors.New("invalid rules file")
	errBadCallName  = errors.New("call name must have the form Receiver.Method")
)

// File is the on-disk form of a rule set. Every section is optional. Entries are merged
// over the defaults unless Replace is set; an empty target string removes an entry.
type File struct {
	Imports         map[string]string       `yaml:"imports,omitempty"          json:"imports,omitempty"`
	BaseClasses     map[string]string       `yaml:"base_classes,omitempty"     json:"base_classes,omitempty"`
	Lifecycle       map[string]LifecycleRow `yaml:"lifecycle,omitempty"        json:"lifecycle,omitempty"`
	MemberChain     map[string]string       `yaml:"member_chain,omitempty"     json:"member_chain,omitempty"`
	TypeRenames     map[string]string       `yaml:"type_renames,omitempty"     json:"type_renames,omitempty"`
	LogCalls        map[string]string       `yaml:"log_calls,omitempty"        json:"log_calls,omitempty"`
	ComponentLookup *ComponentLookupRow     `yaml:"component_lookup,omitempty" json:"component_lookup,omitempty"`
	EnabledFlag     *EnabledFlagRow         `yaml:"enabled_flag,omitempty"     json:"enabled_flag,omitempty"`
	PositionChain   *PositionChainRow       `yaml:"position_chain,omitempty"   json:"position_chain,omitempty"`
	TimeDelta       *TimeDeltaRow           `yaml:"time_delta,omitempty"       json:"time_delta,omitempty"`
	PartialClasses  *bool                   `yaml:"partial_classes,omitempty"  json:"partial_classes,omitempty"`
	Replace         bool                    `yaml:"replace,omitempty"          json:"replace,omitempty"`
}

// LifecycleRow is one lifecycle entry in a rules file.
type LifecycleRow struct {
	Name      string `yaml:"name"                 json:"name"`
	TimeDelta bool   `yaml:"time_delta,omitempty" json:"time_delta,omitempty"`
}

// ComponentLookupRow is the rules-file form of ComponentLookup.
type ComponentLookupRow struct {
	Method      string `yaml:"method"      json:"method"`
	Replacement string `yaml:"replacement" json:"replacement"`
	Path        string `yaml:"path"        json:"path"`
}

// EnabledFlagRow is the rules-file form of EnabledFlag.
type EnabledFlagRow struct {
	Member string `yaml:"member" json:"member"`
	Setter string `yaml:"setter" json:"setter"`
}

// PositionChainRow is the rules-file form of PositionChain.
type PositionChainRow struct {
	Axes   map[string]string `yaml:"axes"   json:"axes"`
	Root   string            `yaml:"root"   json:"root"`
	Member string            `yaml:"member" json:"member"`
}

// TimeDeltaRow is the rules-file form of TimeDelta.
type TimeDeltaRow struct {
	Type string `yaml:"type" json:"type"`
	Name string `yaml:"name" json:"name"`
}

// Load reads a YAML (or JSON) rules file, validates it and merges it over the defaults.
func Load(path string) (*Tables, error) {
	//nolint:gosec // Rules path is supplied by the operator.
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}

	tables, err := Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("rules %s: %w", path, err)
	}

	return tables, nil
}

// Parse validates and merges a rules document read from reader.
func Parse(reader io.Reader) (*Tables, error) {
	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}

	validateErr := Validate(raw)
	if validateErr != nil {
		return nil, validateErr
	}

	var file File

	decodeErr := yaml.Unmarshal(raw, &file)
	if decodeErr != nil {
		return nil, fmt.Errorf("decode rules: %w", decodeErr)
	}

	return file.Apply(Default())
}

// Validate checks a YAML or JSON rules document against the embedded JSON schema.
func Validate(raw []byte) error {
	var document any

	decodeErr := yaml.Unmarshal(raw, &document)
	if decodeErr != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRules, decodeErr)
	}

	if document == nil {
		document = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewGoLoader(document),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRules, err)
	}

	if result.Valid() {
		return nil
	}

	messages := make([]string, 0, len(result.Errors()))
	for _, resultErr := range result.Errors() {
		messages = append(messages, resultErr.String())
	}

	sort.Strings(messages)

	return fmt.Errorf("%w: %s", ErrInvalidRules, strings.Join(messages, "; "))
}

// Schema returns the embedded JSON schema for rules files.
func Schema() []byte {
	return bytes.Clone(schemaJSON)
}

// Apply merges the file over base and returns new tables. base is not modified.
func (file *File) Apply(base *Tables) (*Tables, error) {
	merged := base.clone()
	if file.Replace {
		merged = emptyTables()
	}

	mergeStrings(merged.imports, file.Imports)
	mergeStrings(merged.baseClasses, file.BaseClasses)
	mergeStrings(merged.memberChain, file.MemberChain)
	mergeStrings(merged.typeRenames, file.TypeRenames)

	for name, row := range file.Lifecycle {
		if row.Name == "" {
			delete(merged.lifecycle, name)

			continue
		}

		merged.lifecycle[name] = LifecycleHook{Name: row.Name, AppendsTimeDelta: row.TimeDelta}
	}

	for source, target := range file.LogCalls {
		sourceName, ok := ParseCallName(source)
		if !ok {
			return nil, fmt.Errorf("log_calls key %q: %w", source, errBadCallName)
		}

		if target == "" {
			delete(merged.logCalls, sourceName)

			continue
		}

		targetName, ok := ParseCallName(target)
		if !ok {
			return nil, fmt.Errorf("log_calls value %q: %w", target, errBadCallName)
		}

		merged.logCalls[sourceName] = targetName
	}

	if row := file.ComponentLookup; row != nil {
		merged.componentLookup = ComponentLookup(*row)
	}

	if row := file.EnabledFlag; row != nil {
		merged.enabledFlag = EnabledFlag(*row)
	}

	if row := file.PositionChain; row != nil {
		merged.positionChain = PositionChain{Root: row.Root, Member: row.Member, axes: maps.Clone(row.Axes)}
	}

	if row := file.TimeDelta; row != nil {
		merged.timeDelta = TimeDelta(*row)
	}

	if file.PartialClasses != nil {
		merged.partialClasses = *file.PartialClasses
	}

	return merged, nil
}

// Snapshot renders the tables back into rules-file form.
func (tb *Tables) Snapshot() File {
	lifecycle := make(map[string]LifecycleRow, len(tb.lifecycle))
	for name, hook := range tb.lifecycle {
		lifecycle[name] = LifecycleRow{Name: hook.Name, TimeDelta: hook.AppendsTimeDelta}
	}

	logCalls := make(map[string]string, len(tb.logCalls))
	for source, target := range tb.logCalls {
		logCalls[source.String()] = target.String()
	}

	lookup := ComponentLookupRow(tb.componentLookup)
	flag := EnabledFlagRow(tb.enabledFlag)
	delta := TimeDeltaRow(tb.timeDelta)
	partial := tb.partialClasses

	return File{
		Imports:         maps.Clone(tb.imports),
		BaseClasses:     maps.Clone(tb.baseClasses),
		Lifecycle:       lifecycle,
		MemberChain:     maps.Clone(tb.memberChain),
		TypeRenames:     maps.Clone(tb.typeRenames),
		LogCalls:        logCalls,
		ComponentLookup: &lookup,
		EnabledFlag:     &flag,
		PositionChain: &PositionChainRow{
			Root:   tb.positionChain.Root,
			Member: tb.positionChain.Member,
			Axes:   tb.positionChain.Axes(),
		},
		TimeDelta:      &delta,
		PartialClasses: &partial,
	}
}

// WriteYAML writes the tables in rules-file form.
func (tb *Tables) WriteYAML(writer io.Writer) error {
	encoder := yaml.NewEncoder(writer)
	encoder.SetIndent(2)

	encodeErr := encoder.Encode(tb.Snapshot())
	if encodeErr != nil {
		return fmt.Errorf("encode rules: %w", encodeErr)
	}

	closeErr := encoder.Close()
	if closeErr != nil {
		return fmt.Errorf("encode rules: %w", closeErr)
	}

	return nil
}

func (tb *Tables) clone() *Tables {
	clone := *tb
	clone.imports = cloneOrEmpty(tb.imports)
	clone.baseClasses = cloneOrEmpty(tb.baseClasses)
	clone.memberChain = cloneOrEmpty(tb.memberChain)
	clone.typeRenames = cloneOrEmpty(tb.typeRenames)
	clone.lifecycle = cloneOrEmpty(tb.lifecycle)
	clone.logCalls = cloneOrEmpty(tb.logCalls)
	clone.positionChain.axes = maps.Clone(tb.positionChain.axes)

	return &clone
}

func emptyTables() *Tables {
	return (&Tables{}).clone()
}

func cloneOrEmpty[K comparable, V any](source map[K]V) map[K]V {
	if source == nil {
		return make(map[K]V)
	}

	return maps.Clone(source)
}

func mergeStrings(target, overrides map[string]string) {
	for key, value := range overrides {
		value = strings.TrimSpace(value)
		if value == "" {
			delete(target, key)

			continue
		}

		target[key] = value
	}
}
