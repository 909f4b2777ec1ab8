package csharp

import (
	"fmt"
	"strings"
	"unicode"
)

// Print renders a tree back to source. Untouched subtrees reproduce the parsed text
// byte for byte; synthesized nodes use single-space separators.
func Print(root *Node) string {
	return root.String()
}

// Separators used between synthesized tokens.
const (
	noSpace = ""
	space   = " "
)

// NewToken builds an anonymous token such as "(" or "override".
func NewToken(text, trivia string) *Node {
	return &Node{Type: text, Token: text, Trivia: trivia, Kind: KindGeneric}
}

// NewIdentifier builds an identifier leaf.
func NewIdentifier(name, trivia string) *Node {
	return &Node{Type: TypeIdentifier, Token: name, Trivia: trivia, Kind: KindIdentifier, Named: true}
}

// NewModifier builds a modifier node wrapping a keyword.
func NewModifier(keyword, trivia string) *Node {
	return &Node{
		Type:     TypeModifier,
		Trivia:   trivia,
		Kind:     KindGeneric,
		Named:    true,
		Children: []*Node{NewToken(keyword, noSpace)},
	}
}

// NewMemberChain builds a member access chain from a dotted path such as
// "Transform.Origin.X". A path without dots yields a bare identifier.
func NewMemberChain(path, trivia string) *Node {
	segments := strings.Split(path, ".")

	chain := NewIdentifier(segments[0], noSpace)

	for _, segment := range segments[1:] {
		chain = NewMemberAccess(chain, segment, noSpace)
	}

	return chain.WithTrivia(trivia)
}

// NewMemberAccess builds receiver.name. The receiver loses its leading trivia.
func NewMemberAccess(receiver *Node, name, trivia string) *Node {
	return &Node{
		Type:   TypeMemberAccess,
		Kind:   KindMemberAccessExpr,
		Named:  true,
		Trivia: trivia,
		Children: []*Node{
			receiver.WithTrivia(noSpace),
			NewToken(".", noSpace),
			NewIdentifier(name, noSpace),
		},
	}
}

// NewArgument wraps an expression as a call argument.
func NewArgument(expr *Node, trivia string) *Node {
	return &Node{
		Type:     TypeArgument,
		Kind:     KindArgument,
		Named:    true,
		Trivia:   trivia,
		Children: []*Node{expr.WithTrivia(noSpace)},
	}
}

// NewArgumentList builds "(a, b, c)" from expressions.
func NewArgumentList(exprs ...*Node) *Node {
	children := make([]*Node, 0, 2*len(exprs)+1)
	children = append(children, NewToken("(", noSpace))

	for idx, expr := range exprs {
		trivia := noSpace
		if idx > 0 {
			children = append(children, NewToken(",", noSpace))
			trivia = space
		}

		children = append(children, NewArgument(expr, trivia))
	}

	children = append(children, NewToken(")", noSpace))

	return &Node{Type: TypeArgumentList, Kind: KindGeneric, Named: true, Children: children}
}

// NewInvocation builds function(arguments). arguments must be an argument_list node.
func NewInvocation(function, arguments *Node, trivia string) *Node {
	return &Node{
		Type:   TypeInvocation,
		Kind:   KindInvocationExpr,
		Named:  true,
		Trivia: trivia,
		Children: []*Node{
			function.WithTrivia(noSpace),
			arguments.WithTrivia(noSpace),
		},
	}
}

// NewGenericName builds name<T1, T2>.
func NewGenericName(name string, typeArgs []string, trivia string) *Node {
	argChildren := make([]*Node, 0, 2*len(typeArgs)+1)
	argChildren = append(argChildren, NewToken("<", noSpace))

	for idx, typeArg := range typeArgs {
		typeTrivia := noSpace
		if idx > 0 {
			argChildren = append(argChildren, NewToken(",", noSpace))
			typeTrivia = space
		}

		argChildren = append(argChildren, NewTypeName(typeArg, typeTrivia))
	}

	argChildren = append(argChildren, NewToken(">", noSpace))

	return &Node{
		Type:   TypeGenericName,
		Kind:   KindGeneric,
		Named:  true,
		Trivia: trivia,
		Children: []*Node{
			NewIdentifier(name, noSpace),
			{Type: TypeTypeArgumentList, Kind: KindGeneric, Named: true, Children: argChildren},
		},
	}
}

// NewTypeName builds a type reference from its rendered name. Simple names become
// identifiers; anything else is kept as one opaque named token.
func NewTypeName(name, trivia string) *Node {
	if isSimpleName(name) {
		return NewIdentifier(name, trivia)
	}

	return &Node{Type: "type", Token: name, Trivia: trivia, Kind: KindGeneric, Named: true}
}

// NewStringLiteral builds a regular string literal holding value.
func NewStringLiteral(value, trivia string) *Node {
	return &Node{
		Type:   TypeStringLiteral,
		Token:  quoteString(value),
		Trivia: trivia,
		Kind:   KindLiteral,
		Named:  true,
	}
}

// quoteString escapes value for a regular (non-verbatim) string literal. Control and line
// separator characters use the fixed-width \u form.
func quoteString(value string) string {
	var sb strings.Builder

	sb.Grow(len(value) + 2)
	sb.WriteByte('"')

	for _, r := range value {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		case 0:
			sb.WriteString(`\0`)
		default:
			if unicode.IsControl(r) || r == '\u2028' || r == '\u2029' {
				fmt.Fprintf(&sb, `\u%04X`, r)

				continue
			}

			sb.WriteRune(r)
		}
	}

	sb.WriteByte('"')

	return sb.String()
}

// NewBooleanLiteral builds true or false.
func NewBooleanLiteral(value bool, trivia string) *Node {
	text := "false"
	if value {
		text = "true"
	}

	return &Node{Type: TypeBooleanLiteral, Token: text, Trivia: trivia, Kind: KindLiteral, Named: true}
}

// NewNot builds !expr, parenthesizing expr unless it is a primary expression.
func NewNot(expr *Node, trivia string) *Node {
	operand := expr.WithTrivia(noSpace)
	if !IsPrimary(expr) {
		operand = &Node{
			Type:  TypeParenthesized,
			Kind:  KindGeneric,
			Named: true,
			Children: []*Node{
				NewToken("(", noSpace),
				operand,
				NewToken(")", noSpace),
			},
		}
	}

	return &Node{
		Type:     TypePrefixUnary,
		Kind:     KindGeneric,
		Named:    true,
		Trivia:   trivia,
		Children: []*Node{NewToken("!", noSpace), operand},
	}
}

// NewParameter builds "type name".
func NewParameter(typeName, name, trivia string) *Node {
	typeNode := NewTypeName(typeName, noSpace)
	if isPredefined(typeName) {
		typeNode = &Node{
			Type:     TypePredefinedType,
			Kind:     KindGeneric,
			Named:    true,
			Children: []*Node{NewToken(typeName, noSpace)},
		}
	}

	return &Node{
		Type:     TypeParameter,
		Kind:     KindGeneric,
		Named:    true,
		Trivia:   trivia,
		Children: []*Node{typeNode, NewIdentifier(name, space)},
	}
}

// IsPrimary reports whether expr binds tighter than a prefix operator, so that
// prefixing it with "!" needs no parentheses.
func IsPrimary(expr *Node) bool {
	switch expr.Kind {
	case KindIdentifier, KindLiteral, KindMemberAccessExpr, KindInvocationExpr:
		return true
	case KindGeneric:
		switch expr.Type {
		case TypeParenthesized, "element_access_expression", "this", "this_expression",
			"base", "base_expression", TypeGenericName, TypePrefixUnary:
			return true
		}
	}

	return false
}

//nolint:gochecknoglobals // Immutable keyword set.
var predefinedTypes = map[string]struct{}{
	"bool": {}, "byte": {}, "sbyte": {}, "char": {}, "decimal": {}, "double": {}, "float": {},
	"int": {}, "uint": {}, "long": {}, "ulong": {}, "short": {}, "ushort": {},
	"object": {}, "string": {}, "nint": {}, "nuint": {},
}

func isPredefined(name string) bool {
	_, ok := predefinedTypes[name]

	return ok
}

func isSimpleName(name string) bool {
	if name == "" || isPredefined(name) {
		return false
	}

	for idx, r := range name {
		isLetter := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'

		if !isLetter && (idx == 0 || !isDigit) {
			return false
		}
	}

	return true
}
