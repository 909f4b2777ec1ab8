package rewrite

import (
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/gdport/pkg/csharp"
)

// memberAccess flattens the fixed root.member.axis chain. Other chains are only
// recursed; their segments are renamed when they appear as call arguments.
func (p *pass) memberAccess(nd *csharp.Node) *csharp.Node {
	chain := p.tables.PositionChain()

	if segments, ok := identifierChain(nd); ok && len(segments) == 3 &&
		segments[0] == chain.Root && segments[1] == chain.Member {
		if replacement, hit := chain.Axis(segments[2]); hit {
			p.stats.record(RulePositionChain)

			return csharp.NewMemberChain(replacement, nd.Trivia)
		}
	}

	return p.recurse(nd)
}

// invocation rewrites member chain arguments first, then tests the call shape against the
// log call and component lookup rules. Other calls keep the rewritten arguments and have
// their callee recursed.
func (p *pass) invocation(nd *csharp.Node) *csharp.Node {
	named := namedIndexes(nd)
	if len(named) != 2 || nd.Children[named[1]].Type != csharp.TypeArgumentList {
		return p.recurse(nd)
	}

	calleeIdx, argsIdx := named[0], named[1]
	callee := nd.Children[calleeIdx]
	args := p.arguments(nd.Children[argsIdx])

	if replacement, ok := p.logCall(callee); ok {
		p.stats.record(RuleLogCall)

		return nd.ReplaceChild(calleeIdx, replacement).ReplaceChild(argsIdx, args)
	}

	if replacement, ok := p.componentLookup(callee); ok {
		p.stats.record(RuleComponentLookup)

		path := csharp.NewStringLiteral(p.tables.ComponentLookup().Path, "")
		lookupArgs := csharp.NewArgumentList(path).WithTrivia(nd.Children[argsIdx].Trivia)

		return nd.ReplaceChild(calleeIdx, replacement).ReplaceChild(argsIdx, lookupArgs)
	}

	return nd.ReplaceChild(calleeIdx, p.visit(callee)).ReplaceChild(argsIdx, args)
}

// arguments applies the segment pre-pass to every argument that is a pure identifier
// member chain and rewrites all other arguments normally.
func (p *pass) arguments(list *csharp.Node) *csharp.Node {
	out := list

	for idx, arg := range list.Children {
		if arg.Kind != csharp.KindArgument {
			continue
		}

		out = out.ReplaceChild(idx, p.argument(arg))
	}

	return out
}

func (p *pass) argument(arg *csharp.Node) *csharp.Node {
	named := namedIndexes(arg)
	if len(named) == 0 {
		return arg
	}

	// The value is the last named child; a leading name: label or ref/out keyword is kept.
	exprIdx := named[len(named)-1]
	expr := arg.Children[exprIdx]

	if expr.Kind == csharp.KindMemberAccessExpr {
		if segments, ok := identifierChain(expr); ok {
			p.stats.record(RuleArgumentChain)

			return arg.ReplaceChild(exprIdx, csharp.NewMemberChain(p.mapSegments(segments), expr.Trivia))
		}
	}

	return p.recurse(arg)
}

// mapSegments renames each segment through the member chain table. Segments missing from
// the table are upper-cased.
func (p *pass) mapSegments(segments []string) string {
	mapped := make([]string, len(segments))

	for idx, segment := range segments {
		if target, ok := p.tables.MemberSegment(segment); ok {
			mapped[idx] = target

			continue
		}

		mapped[idx] = strings.ToUpper(segment)
	}

	return strings.Join(mapped, ".")
}

// logCall matches Receiver.Method where the receiver is an identifier chain.
func (p *pass) logCall(callee *csharp.Node) (*csharp.Node, bool) {
	if callee.Kind != csharp.KindMemberAccessExpr {
		return nil, false
	}

	segments, ok := identifierChain(callee)
	if !ok || len(segments) < 2 {
		return nil, false
	}

	last := len(segments) - 1

	target, ok := p.tables.LogCall(strings.Join(segments[:last], "."), segments[last])
	if !ok {
		return nil, false
	}

	return csharp.NewMemberChain(target.String(), callee.Trivia), true
}

// componentLookup matches Method<T...> called bare or on a receiver, where the method name
// starts with the lookup method, so GetComponents and GetComponentInChildren also match.
// A call without type arguments is a structural mismatch.
func (p *pass) componentLookup(callee *csharp.Node) (*csharp.Node, bool) {
	lookup := p.tables.ComponentLookup()
	if lookup.Method == "" {
		return nil, false
	}

	generic := callee
	wrap := func(name *csharp.Node) *csharp.Node { return name }

	if callee.Kind == csharp.KindMemberAccessExpr {
		receiverIdx, nameIdx, ok := memberIndexes(callee)
		if !ok {
			return nil, false
		}

		generic = callee.Children[nameIdx]
		wrap = func(name *csharp.Node) *csharp.Node {
			receiver := p.visit(callee.Children[receiverIdx])

			return callee.ReplaceChild(receiverIdx, receiver).ReplaceChild(nameIdx, name)
		}
	}

	if generic.Type != csharp.TypeGenericName {
		return nil, false
	}

	_, name := generic.ChildOfType(csharp.TypeIdentifier)
	_, typeArgs := generic.ChildOfType(csharp.TypeTypeArgumentList)

	if name == nil || !strings.HasPrefix(name.Token, lookup.Method) || typeArgs == nil {
		return nil, false
	}

	types := p.typeArguments(typeArgs)
	if len(types) == 0 {
		return nil, false
	}

	return wrap(csharp.NewGenericName(lookup.Replacement, types, generic.Trivia)), true
}

// typeArguments maps each type argument through the rename table. Unmapped types keep
// their rendered name and empty names are dropped.
func (p *pass) typeArguments(list *csharp.Node) []string {
	types := make([]string, 0, len(list.Children))

	for _, idx := range namedIndexes(list) {
		name := strings.TrimSpace(list.Children[idx].Text())
		if target, ok := p.tables.TypeRename(name); ok {
			name = strings.TrimSpace(target)
		}

		if name != "" {
			types = append(types, name)
		}
	}

	return types
}

// assignment turns receiver.enabled = value into receiver.SetDisabled(!value).
func (p *pass) assignment(nd *csharp.Node) *csharp.Node {
	flag := p.tables.EnabledFlag()

	named := namedIndexes(nd)
	if flag.Member == "" || len(named) < 2 || !hasPlainAssign(nd, named[0], named[len(named)-1]) {
		return p.recurse(nd)
	}

	left := nd.Children[named[0]]
	right := nd.Children[named[len(named)-1]]

	if left.Kind != csharp.KindMemberAccessExpr {
		return p.recurse(nd)
	}

	receiver, member, ok := memberParts(left)
	if !ok || member.Kind != csharp.KindIdentifier || member.Token != flag.Member {
		return p.recurse(nd)
	}

	p.stats.record(RuleEnabledFlag)

	setter := csharp.NewMemberAccess(p.visit(receiver), flag.Setter, "")

	return csharp.NewInvocation(setter, csharp.NewArgumentList(invert(p.visit(right))), nd.Trivia)
}

// invert swaps boolean literals and negates any other expression.
func invert(expr *csharp.Node) *csharp.Node {
	if expr.Type == csharp.TypeBooleanLiteral {
		if value, err := strconv.ParseBool(expr.Text()); err == nil {
			return csharp.NewBooleanLiteral(!value, expr.Trivia)
		}
	}

	return csharp.NewNot(expr, expr.Trivia)
}

// hasPlainAssign reports whether the operator between left and right is a plain "=".
// Compound assignments such as |= do not match.
func hasPlainAssign(nd *csharp.Node, left, right int) bool {
	for idx := left + 1; idx < right; idx++ {
		child := nd.Children[idx]
		if child.Type == csharp.TypeComment {
			continue
		}

		return child.Text() == "="
	}

	return false
}
