package csharp

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/alexaandru/go-sitter-forest/c_sharp"
	sitter "github.com/alexaandru/go-tree-sitter-bare"
)

// Sentinel errors for parsing.
var (
	// ErrParse reports malformed input. It is the only hard failure of a conversion.
	ErrParse      = errors.New("parse failure")
	errNoRootNode = errors.New("no root node")
	errPoolType   = errors.New("parser pool returned unexpected type")
)

//nolint:gochecknoglobals // Grammar handle and parser pool are process-lifetime.
var (
	languageOnce sync.Once
	language     *sitter.Language

	parserPool = sync.Pool{
		New: func() any {
			tsParser := sitter.NewParser()
			tsParser.SetLanguage(Language())

			return tsParser
		},
	}
)

// Language returns the tree-sitter C# grammar.
func Language() *sitter.Language {
	languageOnce.Do(func() {
		language = sitter.NewLanguage(c_sharp.GetLanguage())
	})

	return language
}

// Parse parses C# source into an immutable tree. Any syntax error or missing token
// reported by the grammar is returned as an error wrapping ErrParse.
func Parse(ctx context.Context, source []byte) (*Node, error) {
	tsParser, ok := parserPool.Get().(*sitter.Parser)
	if !ok {
		return nil, errPoolType
	}

	defer parserPool.Put(tsParser)

	tree, err := tsParser.ParseString(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.IsNull() {
		return nil, fmt.Errorf("%w: %w", ErrParse, errNoRootNode)
	}

	if root.HasError() {
		return nil, describeError(root, source)
	}

	conv := &converter{source: source}

	start := int(root.StartByte())
	end := int(root.EndByte())

	result := conv.build(root, string(source[:start]))
	result.Tail += string(source[end:])

	return result, nil
}

// describeError locates the first ERROR or MISSING node for the message.
func describeError(root sitter.Node, source []byte) error {
	bad, found := firstErrorNode(root)
	if !found {
		return fmt.Errorf("%w: syntax error", ErrParse)
	}

	point := bad.StartPoint()
	line := int(point.Row) + 1
	col := int(point.Column) + 1

	if bad.IsMissing() {
		return fmt.Errorf("%w: missing %q at %d:%d", ErrParse, bad.Type(), line, col)
	}

	snippet := string(source[int(bad.StartByte()):int(bad.EndByte())])
	if len(snippet) > maxSnippetLen {
		snippet = snippet[:maxSnippetLen] + "..."
	}

	return fmt.Errorf("%w: unexpected %q at %d:%d", ErrParse, snippet, line, col)
}

// maxSnippetLen caps the offending text quoted in parse errors.
const maxSnippetLen = 40

func firstErrorNode(current sitter.Node) (sitter.Node, bool) {
	if current.IsError() || current.IsMissing() {
		return current, true
	}

	if !current.HasError() {
		return current, false
	}

	for idx := range current.ChildCount() {
		bad, found := firstErrorNode(current.Child(idx))
		if found {
			return bad, true
		}
	}

	return current, false
}

// converter copies a tree-sitter tree into csharp nodes. Every byte of the source ends
// up in exactly one Token, Trivia or Tail, so printing an untouched tree is lossless.
type converter struct {
	source []byte
}

func (conv *converter) build(tsNode sitter.Node, trivia string) *Node {
	nodeType := tsNode.Type()

	result := &Node{
		Type:   nodeType,
		Kind:   KindOf(nodeType),
		Named:  tsNode.IsNamed(),
		Trivia: trivia,
	}

	start := int(tsNode.StartByte())
	end := int(tsNode.EndByte())

	if tsNode.ChildCount() == 0 {
		result.Token = string(conv.source[start:end])

		return result
	}

	cursor := start
	result.Children = make([]*Node, 0, tsNode.ChildCount())

	for idx := range tsNode.ChildCount() {
		child := tsNode.Child(idx)
		childStart := max(int(child.StartByte()), cursor)

		result.Children = append(result.Children, conv.build(child, string(conv.source[cursor:childStart])))
		cursor = max(cursor, int(child.EndByte()))
	}

	if cursor < end {
		result.Tail = string(conv.source[cursor:end])
	}

	return result
}
