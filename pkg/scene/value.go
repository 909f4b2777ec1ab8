package scene

import (
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Kind tags the variant held by a Value.
type Kind uint8

// Value kinds.
const (
	KindScalar Kind = iota
	KindSequence
	KindMapping
)

// Value is a decoded YAML node: a scalar string, a sequence or a mapping with string keys.
type Value struct {
	Kind     Kind
	Scalar   string
	Sequence []Value
	Mapping  map[string]Value
}

// Scalar builds a scalar value.
func Scalar(text string) Value {
	return Value{Kind: KindScalar, Scalar: text}
}

// Get walks nested mappings by key.
func (v Value) Get(keys ...string) (Value, bool) {
	current := v

	for _, key := range keys {
		if current.Kind != KindMapping {
			return Value{}, false
		}

		next, ok := current.Mapping[key]
		if !ok {
			return Value{}, false
		}

		current = next
	}

	return current, true
}

// String renders scalars as their text and containers in a compact form.
func (v Value) String() string {
	switch v.Kind {
	case KindScalar:
		return v.Scalar
	case KindSequence:
		return fmt.Sprintf("[%d items]", len(v.Sequence))
	case KindMapping:
		return fmt.Sprintf("{%d keys}", len(v.Mapping))
	default:
		return ""
	}
}

// Interface converts the value to plain Go types: string, []any and map[string]any.
func (v Value) Interface() any {
	switch v.Kind {
	case KindScalar:
		return v.Scalar
	case KindSequence:
		items := make([]any, len(v.Sequence))
		for idx, item := range v.Sequence {
			items[idx] = item.Interface()
		}

		return items
	case KindMapping:
		fields := make(map[string]any, len(v.Mapping))
		for key, item := range v.Mapping {
			fields[key] = item.Interface()
		}

		return fields
	default:
		return nil
	}
}

// MarshalJSON encodes the plain Go form of the value.
func (v Value) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(v.Interface())
	if err != nil {
		return nil, fmt.Errorf("marshal scene value: %w", err)
	}

	return data, nil
}

// Alias expansion bounds. A document may expand to at most expansionRatio times its own
// node count, but never less than minExpansionBudget values.
const (
	expansionRatio     = 16
	minExpansionBudget = 10_000
)

var (
	errAliasCycle     = errors.New("alias refers to itself")
	errAliasExpansion = errors.New("aliases expand beyond limit")
)

// converter turns yaml.v3 nodes into Values while guarding alias expansion.
type converter struct {
	active map[*yaml.Node]bool
	budget int
}

func newConverter(root *yaml.Node) *converter {
	return &converter{
		active: make(map[*yaml.Node]bool),
		budget: max(countNodes(root)*expansionRatio, minExpansionBudget),
	}
}

// countNodes counts the nodes of the tree without following aliases.
func countNodes(nd *yaml.Node) int {
	if nd == nil {
		return 0
	}

	total := 1
	for _, child := range nd.Content {
		total += countNodes(child)
	}

	return total
}

// fromNode converts a yaml.v3 node. Mapping entries with non-scalar keys are dropped and
// a repeated key keeps its last value.
func fromNode(nd *yaml.Node) (Value, error) {
	return newConverter(nd).convert(nd)
}

func (c *converter) convert(nd *yaml.Node) (Value, error) {
	c.budget--
	if c.budget < 0 {
		return Value{}, fmt.Errorf("%w: %w", ErrInvalidScene, errAliasExpansion)
	}

	switch nd.Kind {
	case yaml.DocumentNode:
		if len(nd.Content) == 0 {
			return Scalar(""), nil
		}

		return c.convert(nd.Content[0])
	case yaml.AliasNode:
		return c.alias(nd)
	case yaml.SequenceNode:
		items := make([]Value, len(nd.Content))

		for idx, item := range nd.Content {
			value, err := c.convert(item)
			if err != nil {
				return Value{}, err
			}

			items[idx] = value
		}

		return Value{Kind: KindSequence, Sequence: items}, nil
	case yaml.MappingNode:
		fields := make(map[string]Value, len(nd.Content)/2)

		for idx := 0; idx+1 < len(nd.Content); idx += 2 {
			key := nd.Content[idx]
			if key.Kind != yaml.ScalarNode {
				continue
			}

			value, err := c.convert(nd.Content[idx+1])
			if err != nil {
				return Value{}, err
			}

			fields[key.Value] = value
		}

		return Value{Kind: KindMapping, Mapping: fields}, nil
	case yaml.ScalarNode:
		return Scalar(nd.Value), nil
	default:
		return Scalar(nd.Value), nil
	}
}

func (c *converter) alias(nd *yaml.Node) (Value, error) {
	target := nd.Alias
	if target == nil {
		return Scalar(""), nil
	}

	if c.active[target] {
		return Value{}, fmt.Errorf("%w: %w: *%s", ErrInvalidScene, errAliasCycle, nd.Value)
	}

	c.active[target] = true
	defer delete(c.active, target)

	return c.convert(target)
}
