// Package csharp provides an immutable C# syntax tree built on the tree-sitter
// C# grammar, together with a printer that reproduces untouched source byte for byte.
package csharp

import (
	"strings"
)

// Kind is the syntactic category the rewriter dispatches on.
type Kind uint8

// Node kinds. Every grammar node maps to exactly one kind; KindGeneric is the fallback.
const (
	KindGeneric Kind = iota
	KindClassDecl
	KindMethodDecl
	KindImportDirective
	KindMemberAccessExpr
	KindInvocationExpr
	KindAssignmentExpr
	KindArrayTypeRef
	KindFieldDecl
	KindArgument
	KindLiteral
	KindIdentifier
	KindBlock
)

// kindCount is the number of defined kinds.
const kindCount = int(KindBlock) + 1

var kindNames = [kindCount]string{
	KindGeneric:          "Generic",
	KindClassDecl:        "ClassDecl",
	KindMethodDecl:       "MethodDecl",
	KindImportDirective:  "ImportDirective",
	KindMemberAccessExpr: "MemberAccessExpr",
	KindInvocationExpr:   "InvocationExpr",
	KindAssignmentExpr:   "AssignmentExpr",
	KindArrayTypeRef:     "ArrayTypeRef",
	KindFieldDecl:        "FieldDecl",
	KindArgument:         "Argument",
	KindLiteral:          "Literal",
	KindIdentifier:       "Identifier",
	KindBlock:            "Block",
}

// String returns the kind name.
func (k Kind) String() string {
	if int(k) < kindCount {
		return kindNames[k]
	}

	return "Unknown"
}

// Kinds returns every defined kind in declaration order.
func Kinds() []Kind {
	kinds := make([]Kind, kindCount)
	for idx := range kinds {
		kinds[idx] = Kind(idx)
	}

	return kinds
}

// Grammar node types the rewriter and the builders refer to.
const (
	TypeCompilationUnit   = "compilation_unit"
	TypeClassDeclaration  = "class_declaration"
	TypeMethodDeclaration = "method_declaration"
	TypeUsingDirective    = "using_directive"
	TypeMemberAccess      = "member_access_expression"
	TypeInvocation        = "invocation_expression"
	TypeAssignment        = "assignment_expression"
	TypeArrayType         = "array_type"
	TypeFieldDeclaration  = "field_declaration"
	TypeArgument          = "argument"
	TypeArgumentList      = "argument_list"
	TypeIdentifier        = "identifier"
	TypeBlock             = "block"
	TypeBaseList          = "base_list"
	TypeModifier          = "modifier"
	TypeParameterList     = "parameter_list"
	TypeParameter         = "parameter"
	TypePredefinedType    = "predefined_type"
	TypeGenericName       = "generic_name"
	TypeTypeArgumentList  = "type_argument_list"
	TypeVariableDecl      = "variable_declaration"
	TypeVariableDeclrtr   = "variable_declarator"
	TypeTypeParameterList = "type_parameter_list"
	TypeAttributeList     = "attribute_list"
	TypeBooleanLiteral    = "boolean_literal"
	TypeStringLiteral     = "string_literal"
	TypePrefixUnary       = "prefix_unary_expression"
	TypeParenthesized     = "parenthesized_expression"
	TypeAssignmentOp      = "assignment_operator"
	TypeExpressionStmt    = "expression_statement"
	TypeDeclarationList   = "declaration_list"
	TypeComment           = "comment"
)

// KindOf maps a grammar node type to its Kind.
func KindOf(nodeType string) Kind {
	switch nodeType {
	case TypeClassDeclaration:
		return KindClassDecl
	case TypeMethodDeclaration:
		return KindMethodDecl
	case TypeUsingDirective:
		return KindImportDirective
	case TypeMemberAccess:
		return KindMemberAccessExpr
	case TypeInvocation:
		return KindInvocationExpr
	case TypeAssignment:
		return KindAssignmentExpr
	case TypeArrayType:
		return KindArrayTypeRef
	case TypeFieldDeclaration:
		return KindFieldDecl
	case TypeArgument:
		return KindArgument
	case TypeIdentifier:
		return KindIdentifier
	case TypeBlock:
		return KindBlock
	}

	if strings.HasSuffix(nodeType, "_literal") {
		return KindLiteral
	}

	return KindGeneric
}

// Node is one immutable syntax tree node.
//
// Trivia is the source text between the previous sibling (or the parent start) and this
// node. Tail is the text between the last child and the node end; on the root it runs to EOF.
// Leaves carry their text in Token and have no children.
//
// Nodes are never modified after construction. Rewrites build new nodes and share
// every untouched subtree by pointer.
type Node struct {
	Type     string
	Token    string
	Trivia   string
	Tail     string
	Children []*Node
	Kind     Kind
	Named    bool
}

// IsLeaf reports whether the node is a token.
func (nd *Node) IsLeaf() bool {
	return len(nd.Children) == 0
}

// Text renders the node without its own leading trivia.
func (nd *Node) Text() string {
	var buf strings.Builder

	nd.write(&buf, false)

	return buf.String()
}

// String renders the node including its leading trivia.
func (nd *Node) String() string {
	var buf strings.Builder

	nd.write(&buf, true)

	return buf.String()
}

func (nd *Node) write(buf *strings.Builder, withTrivia bool) {
	if withTrivia {
		buf.WriteString(nd.Trivia)
	}

	if nd.IsLeaf() {
		buf.WriteString(nd.Token)
		buf.WriteString(nd.Tail)

		return
	}

	for _, child := range nd.Children {
		child.write(buf, true)
	}

	buf.WriteString(nd.Tail)
}

// NamedChildren returns the named children in order.
func (nd *Node) NamedChildren() []*Node {
	named := make([]*Node, 0, len(nd.Children))

	for _, child := range nd.Children {
		if child.Named && child.Type != TypeComment {
			named = append(named, child)
		}
	}

	return named
}

// ChildOfType returns the index and node of the first child with one of the given types,
// or -1 and nil.
func (nd *Node) ChildOfType(types ...string) (int, *Node) {
	for idx, child := range nd.Children {
		for _, nodeType := range types {
			if child.Type == nodeType {
				return idx, child
			}
		}
	}

	return -1, nil
}

// WithTrivia returns a shallow copy carrying different leading trivia.
func (nd *Node) WithTrivia(trivia string) *Node {
	if nd.Trivia == trivia {
		return nd
	}

	clone := *nd
	clone.Trivia = trivia

	return &clone
}

// WithChildren returns a shallow copy with a new child list.
func (nd *Node) WithChildren(children []*Node) *Node {
	clone := *nd
	clone.Children = children

	return &clone
}

// ReplaceChild returns a copy with the child at idx replaced. The original is untouched.
func (nd *Node) ReplaceChild(idx int, replacement *Node) *Node {
	if nd.Children[idx] == replacement {
		return nd
	}

	children := make([]*Node, len(nd.Children))
	copy(children, nd.Children)
	children[idx] = replacement

	return nd.WithChildren(children)
}

// Find returns all nodes in pre-order that satisfy predicate.
func (nd *Node) Find(predicate func(*Node) bool) []*Node {
	var found []*Node

	nd.Walk(func(current *Node) bool {
		if predicate(current) {
			found = append(found, current)
		}

		return true
	})

	return found
}

// Walk visits the tree in pre-order. Returning false from fn skips the node's children.
func (nd *Node) Walk(fn func(*Node) bool) {
	if !fn(nd) {
		return
	}

	for _, child := range nd.Children {
		child.Walk(fn)
	}
}
