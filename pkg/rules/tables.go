// Package rules holds the immutable substitution tables that drive the Unity to Godot
// rewrite. Tables are built once, either from defaults or from a rules file merged over
// the defaults, and are safe for concurrent readers.
package rules

import (
	"maps"
	"strings"
)

// LifecycleHook describes the target of a lifecycle method rename.
type LifecycleHook struct {
	// Name is the target method name, e.g. "_Ready".
	Name string
	// AppendsTimeDelta adds a trailing time-delta parameter to the renamed method.
	AppendsTimeDelta bool
}

// CallName is a receiver-qualified method name such as Debug.Log.
type CallName struct {
	Receiver string
	Method   string
}

// String renders the call name in dotted form.
func (cn CallName) String() string {
	return cn.Receiver + "." + cn.Method
}

// ParseCallName splits "Receiver.Method". The receiver may itself be dotted.
func ParseCallName(dotted string) (CallName, bool) {
	idx := strings.LastIndex(dotted, ".")
	if idx <= 0 || idx == len(dotted)-1 {
		return CallName{}, false
	}

	return CallName{Receiver: dotted[:idx], Method: dotted[idx+1:]}, true
}

// ComponentLookup describes the generic "get component by type" call shape.
type ComponentLookup struct {
	// Method is the source generic method, e.g. GetComponent.
	Method string
	// Replacement is the target generic method, e.g. GetNode.
	Replacement string
	// Path is the placeholder node path literal passed to Replacement.
	Path string
}

// EnabledFlag describes the inverted-polarity activity flag.
type EnabledFlag struct {
	// Member is the source boolean member, e.g. enabled.
	Member string
	// Setter is the target setter taking the inverted value, e.g. SetDisabled.
	Setter string
}

// PositionChain describes the fixed root.member.axis chain that is flattened wholesale.
type PositionChain struct {
	axes   map[string]string
	Root   string
	Member string
}

// Axis returns the flattened replacement for root.member.axis.
func (pc PositionChain) Axis(axis string) (string, bool) {
	replacement, ok := pc.axes[axis]

	return replacement, ok
}

// Axes returns a copy of the axis replacements.
func (pc PositionChain) Axes() map[string]string {
	return maps.Clone(pc.axes)
}

// TimeDelta is the parameter appended to hooks flagged AppendsTimeDelta.
type TimeDelta struct {
	Type string
	Name string
}

// Tables is the read-only rule set. The zero value has empty tables; use Default or Load.
type Tables struct {
	imports         map[string]string
	baseClasses     map[string]string
	lifecycle       map[string]LifecycleHook
	memberChain     map[string]string
	typeRenames     map[string]string
	logCalls        map[CallName]CallName
	positionChain   PositionChain
	componentLookup ComponentLookup
	enabledFlag     EnabledFlag
	timeDelta       TimeDelta
	partialClasses  bool
}

// Import maps a source namespace to the target namespace.
func (tb *Tables) Import(namespace string) (string, bool) {
	target, ok := tb.imports[namespace]

	return target, ok
}

// BaseClass maps a base type simple name to the target base type.
func (tb *Tables) BaseClass(name string) (string, bool) {
	target, ok := tb.baseClasses[name]

	return target, ok
}

// Lifecycle maps a lifecycle method name to its target hook.
func (tb *Tables) Lifecycle(method string) (LifecycleHook, bool) {
	hook, ok := tb.lifecycle[method]

	return hook, ok
}

// MemberSegment maps one member-chain segment.
func (tb *Tables) MemberSegment(segment string) (string, bool) {
	target, ok := tb.memberChain[segment]

	return target, ok
}

// TypeRename maps a field, array element or type argument name.
func (tb *Tables) TypeRename(name string) (string, bool) {
	target, ok := tb.typeRenames[name]

	return target, ok
}

// LogCall maps a diagnostics call to the target print call.
func (tb *Tables) LogCall(receiver, method string) (CallName, bool) {
	target, ok := tb.logCalls[CallName{Receiver: receiver, Method: method}]

	return target, ok
}

// ComponentLookup returns the component lookup call shape.
func (tb *Tables) ComponentLookup() ComponentLookup {
	return tb.componentLookup
}

// EnabledFlag returns the inverted flag description.
func (tb *Tables) EnabledFlag() EnabledFlag {
	return tb.enabledFlag
}

// PositionChain returns the flattened chain description.
func (tb *Tables) PositionChain() PositionChain {
	return tb.positionChain
}

// TimeDelta returns the appended parameter description.
func (tb *Tables) TimeDelta() TimeDelta {
	return tb.timeDelta
}

// PartialClasses reports whether class modifiers are forced to "public partial".
func (tb *Tables) PartialClasses() bool {
	return tb.partialClasses
}

// WithPartialClasses returns a copy of the tables with the partial-class option set.
func (tb *Tables) WithPartialClasses(enabled bool) *Tables {
	clone := *tb
	clone.partialClasses = enabled

	return &clone
}

// LifecycleNames returns the lifecycle keys.
func (tb *Tables) LifecycleNames() []string {
	names := make([]string, 0, len(tb.lifecycle))
	for name := range tb.lifecycle {
		names = append(names, name)
	}

	return names
}

// Default returns the built-in Unity to Godot tables.
func Default() *Tables {
	return &Tables{
		imports: map[string]string{
			"UnityEngine": "Godot",
		},
		baseClasses: map[string]string{
			"MonoBehaviour": "Node",
		},
		lifecycle: map[string]LifecycleHook{
			"Awake":            {Name: "_EnterTree"},
			"Start":            {Name: "_Ready"},
			"Update":           {Name: "_Process", AppendsTimeDelta: true},
			"FixedUpdate":      {Name: "_PhysicsProcess", AppendsTimeDelta: true},
			"OnTriggerEnter2D": {Name: "_OnAreaEntered"},
		},
		memberChain: map[string]string{
			"transform":      "Transform",
			"position":       "Origin",
			"Sprite":         "Texture2D",
			"SpriteRenderer": "Sprite2D",
			"sprite":         "texture",
		},
		typeRenames: map[string]string{
			"Sprite":         "Texture2D",
			"SpriteRenderer": "Sprite2D",
			"Animator":       "AnimationPlayer",
			"AudioSource":    "AudioStreamPlayer",
		},
		logCalls: map[CallName]CallName{
			{Receiver: "Debug", Method: "Log"}:        {Receiver: "GD", Method: "Print"},
			{Receiver: "Debug", Method: "LogWarning"}: {Receiver: "GD", Method: "PushWarning"},
			{Receiver: "Debug", Method: "LogError"}:   {Receiver: "GD", Method: "PushError"},
		},
		componentLookup: ComponentLookup{Method: "GetComponent", Replacement: "GetNode", Path: "."},
		enabledFlag:     EnabledFlag{Member: "enabled", Setter: "SetDisabled"},
		positionChain: PositionChain{
			Root:   "transform",
			Member: "position",
			axes: map[string]string{
				"x": "Transform.Origin.X",
				"y": "Transform.Origin.Y",
			},
		},
		timeDelta: TimeDelta{Type: "double", Name: "deltaTime"},
	}
}
