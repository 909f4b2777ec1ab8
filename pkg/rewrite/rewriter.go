// Package rewrite applies the Unity to Godot substitution rules to a C# syntax tree.
//
// Traversal is depth first and dispatched on node kind. Every kind has a handler; kinds
// without a rule use the default handler, which rewrites the children and returns the
// original node when none of them changed. Handlers never modify nodes: a rewritten
// node is a fresh copy that shares every untouched subtree with the input.
package rewrite

import (
	"github.com/Sumatoshi-tech/gdport/pkg/csharp"
	"github.com/Sumatoshi-tech/gdport/pkg/rules"
)

// handler rewrites one node of a given kind.
type handler func(p *pass, nd *csharp.Node) *csharp.Node

// Rewriter rewrites trees with a fixed set of tables. It holds no per-call state and
// is safe for concurrent use on independent trees.
type Rewriter struct {
	tables   *rules.Tables
	dispatch map[csharp.Kind]handler
}

// New creates a rewriter. A nil tables value means rules.Default().
func New(tables *rules.Tables) *Rewriter {
	if tables == nil {
		tables = rules.Default()
	}

	return &Rewriter{
		tables: tables,
		dispatch: map[csharp.Kind]handler{
			csharp.KindGeneric:          (*pass).recurse,
			csharp.KindClassDecl:        (*pass).classDecl,
			csharp.KindMethodDecl:       (*pass).methodDecl,
			csharp.KindImportDirective:  (*pass).importDirective,
			csharp.KindMemberAccessExpr: (*pass).memberAccess,
			csharp.KindInvocationExpr:   (*pass).invocation,
			csharp.KindAssignmentExpr:   (*pass).assignment,
			csharp.KindArrayTypeRef:     (*pass).arrayType,
			csharp.KindFieldDecl:        (*pass).fieldDecl,
			csharp.KindArgument:         (*pass).recurse,
			csharp.KindLiteral:          identity,
			csharp.KindIdentifier:       identity,
			csharp.KindBlock:            (*pass).recurse,
		},
	}
}

// Tables returns the tables the rewriter was built with.
func (rw *Rewriter) Tables() *rules.Tables {
	return rw.tables
}

// Handles reports whether kind has a registered handler.
func (rw *Rewriter) Handles(kind csharp.Kind) bool {
	_, ok := rw.dispatch[kind]

	return ok
}

// Rewrite returns the rewritten tree and the rules that fired. The input is not modified;
// when no rule fires the input root itself is returned.
func (rw *Rewriter) Rewrite(root *csharp.Node) (*csharp.Node, Stats) {
	if root == nil {
		return nil, Stats{}
	}

	p := &pass{Rewriter: rw}

	return p.visit(root), p.stats
}

// pass is the state of one Rewrite call.
type pass struct {
	*Rewriter

	stats Stats
}

func (p *pass) visit(nd *csharp.Node) *csharp.Node {
	fn, ok := p.dispatch[nd.Kind]
	if !ok {
		return p.recurse(nd)
	}

	return fn(p, nd)
}

// recurse is the default handler: rewrite every child and rebuild the node only when
// one of them changed.
func (p *pass) recurse(nd *csharp.Node) *csharp.Node {
	return p.recurseExcept(nd, -1)
}

// recurseExcept rewrites every child except the one at skip.
func (p *pass) recurseExcept(nd *csharp.Node, skip int) *csharp.Node {
	var children []*csharp.Node

	for idx, child := range nd.Children {
		if idx == skip {
			continue
		}

		rewritten := p.visit(child)
		if rewritten == child {
			continue
		}

		if children == nil {
			children = make([]*csharp.Node, len(nd.Children))
			copy(children, nd.Children)
		}

		children[idx] = rewritten
	}

	if children == nil {
		return nd
	}

	return nd.WithChildren(children)
}

func identity(_ *pass, nd *csharp.Node) *csharp.Node {
	return nd
}

// namedIndexes returns the indexes of named, non-comment children.
func namedIndexes(nd *csharp.Node) []int {
	indexes := make([]int, 0, len(nd.Children))

	for idx, child := range nd.Children {
		if child.Named && child.Type != csharp.TypeComment {
			indexes = append(indexes, idx)
		}
	}

	return indexes
}

// identifierChain returns the segments of a member access chain built only from
// identifiers, such as a.b.c. Anything else is a structural mismatch.
func identifierChain(nd *csharp.Node) ([]string, bool) {
	switch nd.Kind {
	case csharp.KindIdentifier:
		return []string{nd.Token}, true
	case csharp.KindMemberAccessExpr:
		receiver, name, ok := memberParts(nd)
		if !ok || name.Kind != csharp.KindIdentifier {
			return nil, false
		}

		segments, ok := identifierChain(receiver)
		if !ok {
			return nil, false
		}

		return append(segments, name.Token), true
	default:
		return nil, false
	}
}

// memberParts splits receiver.name. Pointer member access (->) is not a match.
func memberParts(nd *csharp.Node) (receiver, name *csharp.Node, ok bool) {
	receiverIdx, nameIdx, ok := memberIndexes(nd)
	if !ok {
		return nil, nil, false
	}

	return nd.Children[receiverIdx], nd.Children[nameIdx], true
}

func memberIndexes(nd *csharp.Node) (receiverIdx, nameIdx int, ok bool) {
	named := namedIndexes(nd)
	if len(named) != 2 {
		return -1, -1, false
	}

	if _, dot := nd.ChildOfType("."); dot == nil {
		return -1, -1, false
	}

	return named[0], named[1], true
}
