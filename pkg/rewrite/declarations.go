package rewrite

import (
	"strings"

	"github.com/Sumatoshi-tech/gdport/pkg/csharp"
)

// Modifiers written onto rewritten declarations.
var (
	hookModifiers  = []string{"public", "override"}
	classModifiers = []string{"public", "partial"}
)

const singleSpace = " "

// classDecl maps the first base type and rewrites the members. Only the first base type
// is inspected; on a hit the whole base list collapses to the mapped type.
func (p *pass) classDecl(nd *csharp.Node) *csharp.Node {
	out := nd

	if idx, baseList := nd.ChildOfType(csharp.TypeBaseList); baseList != nil {
		if replacement, ok := p.baseList(baseList); ok {
			out = out.ReplaceChild(idx, replacement)
			p.stats.record(RuleBaseClass)
		}
	}

	if p.tables.PartialClasses() {
		out = setModifiers(out, classModifiers)
		p.stats.record(RulePartialClass)
	}

	return p.recurse(out)
}

func (p *pass) baseList(baseList *csharp.Node) (*csharp.Node, bool) {
	named := namedIndexes(baseList)
	if len(named) == 0 {
		return nil, false
	}

	first := baseList.Children[named[0]]

	target, ok := p.tables.BaseClass(simpleTypeName(first))
	if !ok {
		return nil, false
	}

	colon := csharp.NewToken(":", "")
	if _, original := baseList.ChildOfType(":"); original != nil {
		colon = original
	}

	return &csharp.Node{
		Type:     csharp.TypeBaseList,
		Kind:     csharp.KindGeneric,
		Named:    true,
		Trivia:   baseList.Trivia,
		Children: []*csharp.Node{colon, csharp.NewTypeName(target, singleSpace)},
	}, true
}

// simpleTypeName returns the rightmost identifier of a type reference, or its rendered
// text when the reference has another shape.
func simpleTypeName(typeRef *csharp.Node) string {
	if typeRef.Kind == csharp.KindIdentifier {
		return typeRef.Token
	}

	if typeRef.Type == "qualified_name" {
		named := namedIndexes(typeRef)
		if len(named) > 0 {
			last := typeRef.Children[named[len(named)-1]]
			if last.Kind == csharp.KindIdentifier {
				return last.Token
			}
		}
	}

	return compact(typeRef.Text())
}

// importDirective maps the imported namespace. Aliased and static imports are matched on
// the namespace part.
func (p *pass) importDirective(nd *csharp.Node) *csharp.Node {
	named := namedIndexes(nd)
	if len(named) == 0 {
		return nd
	}

	idx := named[len(named)-1]
	namespace := nd.Children[idx]

	target, ok := p.tables.Import(compact(namespace.Text()))
	if !ok {
		return nd
	}

	p.stats.record(RuleImport)

	return nd.ReplaceChild(idx, csharp.NewTypeName(target, namespace.Trivia))
}

// methodDecl renames lifecycle hooks. A hit also forces public override modifiers and,
// for per-frame hooks, appends the time-delta parameter. The body is always rewritten.
func (p *pass) methodDecl(nd *csharp.Node) *csharp.Node {
	nameIdx, name, ok := methodName(nd)
	if !ok {
		return p.recurse(nd)
	}

	hook, ok := p.tables.Lifecycle(name)
	if !ok {
		return p.recurse(nd)
	}

	p.stats.record(RuleLifecycle)

	out := nd.ReplaceChild(nameIdx, csharp.NewIdentifier(hook.Name, nd.Children[nameIdx].Trivia))

	if hook.AppendsTimeDelta {
		if paramIdx, params := out.ChildOfType(csharp.TypeParameterList); params != nil {
			delta := p.tables.TimeDelta()
			out = out.ReplaceChild(paramIdx, appendParameter(params, delta.Type, delta.Name))
			p.stats.record(RuleTimeDelta)
		}
	}

	return p.recurse(setModifiers(out, hookModifiers))
}

// MethodName returns the declared name of a method declaration.
func MethodName(nd *csharp.Node) (string, bool) {
	_, name, ok := methodName(nd)

	return name, ok
}

// methodName finds the identifier right before the parameter list, skipping a type
// parameter list. The return type is an identifier too, so position is what tells them apart.
func methodName(nd *csharp.Node) (int, string, bool) {
	if nd.Kind != csharp.KindMethodDecl {
		return -1, "", false
	}

	paramIdx, _ := nd.ChildOfType(csharp.TypeParameterList)

	for idx := paramIdx - 1; idx >= 0; idx-- {
		child := nd.Children[idx]
		if child.Type == csharp.TypeTypeParameterList || child.Type == csharp.TypeComment {
			continue
		}

		if child.Type == csharp.TypeIdentifier {
			return idx, child.Token, true
		}

		return -1, "", false
	}

	return -1, "", false
}

// appendParameter adds "type name" as the last parameter, keeping existing ones in order.
func appendParameter(params *csharp.Node, typeName, name string) *csharp.Node {
	closeIdx := -1

	for idx := len(params.Children) - 1; idx >= 0; idx-- {
		if params.Children[idx].Type == ")" {
			closeIdx = idx

			break
		}
	}

	if closeIdx < 0 {
		return params
	}

	inserted := []*csharp.Node{csharp.NewParameter(typeName, name, "")}
	if len(namedIndexes(params)) > 0 {
		inserted = []*csharp.Node{csharp.NewToken(",", ""), csharp.NewParameter(typeName, name, singleSpace)}
	}

	children := make([]*csharp.Node, 0, len(params.Children)+len(inserted))
	children = append(children, params.Children[:closeIdx]...)
	children = append(children, inserted...)
	children = append(children, params.Children[closeIdx:]...)

	return params.WithChildren(children)
}

// setModifiers replaces the declaration modifiers with keywords. Attribute lists stay in
// front; without existing modifiers the keywords go before the first other child.
func setModifiers(nd *csharp.Node, keywords []string) *csharp.Node {
	children := make([]*csharp.Node, 0, len(nd.Children)+len(keywords))
	inserted := false

	for _, child := range nd.Children {
		switch {
		case child.Type == csharp.TypeModifier:
			if !inserted {
				children = append(children, modifiers(keywords, child.Trivia)...)
				inserted = true
			}

			continue
		case !inserted && child.Type != csharp.TypeAttributeList && child.Type != csharp.TypeComment:
			children = append(children, modifiers(keywords, child.Trivia)...)
			inserted = true
			child = child.WithTrivia(singleSpace)
		}

		children = append(children, child)
	}

	return nd.WithChildren(children)
}

func modifiers(keywords []string, trivia string) []*csharp.Node {
	nodes := make([]*csharp.Node, 0, len(keywords))

	for idx, keyword := range keywords {
		if idx > 0 {
			trivia = singleSpace
		}

		nodes = append(nodes, csharp.NewModifier(keyword, trivia))
	}

	return nodes
}

// fieldDecl renames the declared type when its rendered name is in the rename table.
// Array field types fall through to arrayType.
func (p *pass) fieldDecl(nd *csharp.Node) *csharp.Node {
	declIdx, decl := nd.ChildOfType(csharp.TypeVariableDecl)
	if decl == nil {
		return p.recurse(nd)
	}

	named := namedIndexes(decl)
	if len(named) == 0 {
		return p.recurse(nd)
	}

	typeIdx := named[0]
	typeRef := decl.Children[typeIdx]

	target, ok := p.tables.TypeRename(typeRef.Text())
	if !ok {
		return p.recurse(nd)
	}

	p.stats.record(RuleFieldType)

	decl = p.recurseExcept(decl.ReplaceChild(typeIdx, csharp.NewTypeName(target, typeRef.Trivia)), typeIdx)

	return p.recurseExcept(nd.ReplaceChild(declIdx, decl), declIdx)
}

// arrayType renames the element type of T[] by rendered name.
func (p *pass) arrayType(nd *csharp.Node) *csharp.Node {
	named := namedIndexes(nd)
	if len(named) == 0 {
		return p.recurse(nd)
	}

	elemIdx := named[0]
	elem := nd.Children[elemIdx]

	target, ok := p.tables.TypeRename(elem.Text())
	if !ok {
		return p.recurse(nd)
	}

	p.stats.record(RuleArrayType)

	return p.recurseExcept(nd.ReplaceChild(elemIdx, csharp.NewTypeName(target, elem.Trivia)), elemIdx)
}

// compact drops all whitespace, so "UnityEngine . UI" matches "UnityEngine.UI".
func compact(text string) string {
	return strings.Join(strings.Fields(text), "")
}
