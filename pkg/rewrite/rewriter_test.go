package rewrite_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gdport/pkg/csharp"
	"github.com/Sumatoshi-tech/gdport/pkg/rewrite"
	"github.com/Sumatoshi-tech/gdport/pkg/rules"
)

func rewriteSource(t *testing.T, rw *rewrite.Rewriter, source string) (string, rewrite.Stats) {
	t.Helper()

	root, err := csharp.Parse(context.Background(), []byte(source))
	require.NoError(t, err)

	out, stats := rw.Rewrite(root)

	return csharp.Print(out), stats
}

// inMethod wraps statements in a class and method so they parse as a full file.
func inMethod(statements string) string {
	return "class A { void F() { " + statements + " } }"
}

type rewriteCase struct {
	name   string
	source string
	want   string
}

func runCases(t *testing.T, rw *rewrite.Rewriter, tests []rewriteCase) {
	t.Helper()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, _ := rewriteSource(t, rw, tt.source)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRewrite_PlayerScript(t *testing.T) {
	t.Parallel()

	got, stats := rewriteSource(t, rewrite.New(nil),
		`class Player : MonoBehaviour { void Start() { Debug.Log("hi"); } }`)

	assert.Equal(t, `class Player : Node { public override void _Ready() { GD.Print("hi"); } }`, got)
	assert.Equal(t, 1, stats.Count(rewrite.RuleBaseClass))
	assert.Equal(t, 1, stats.Count(rewrite.RuleLifecycle))
	assert.Equal(t, 1, stats.Count(rewrite.RuleLogCall))
	assert.Equal(t, 0, stats.Count(rewrite.RuleTimeDelta))
	assert.Equal(t, 3, stats.Total())
}

func TestRewrite_EnabledFlag(t *testing.T) {
	t.Parallel()

	runCases(t, rewrite.New(nil), []rewriteCase{
		{"false literal", inMethod("foo.enabled = false;"), inMethod("foo.SetDisabled(true);")},
		{"true literal", inMethod("foo.enabled = true;"), inMethod("foo.SetDisabled(false);")},
		{"identifier", inMethod("foo.enabled = someFlag;"), inMethod("foo.SetDisabled(!someFlag);")},
		{"member access value", inMethod("foo.enabled = bar.visible;"), inMethod("foo.SetDisabled(!bar.visible);")},
		{"binary value is parenthesized", inMethod("foo.enabled = a && b;"), inMethod("foo.SetDisabled(!(a && b));")},
		{"nested receiver", inMethod("a.b.enabled = false;"), inMethod("a.b.SetDisabled(true);")},
		{
			"receiver is rewritten first",
			inMethod("GetComponent<Sprite>().enabled = true;"),
			inMethod(`GetNode<Texture2D>(".").SetDisabled(false);`),
		},
		{"compound operator is left alone", inMethod("foo.enabled |= x;"), inMethod("foo.enabled |= x;")},
		{"bare field is left alone", inMethod("enabled = false;"), inMethod("enabled = false;")},
		{"other member is left alone", inMethod("foo.visible = false;"), inMethod("foo.visible = false;")},
	})
}

func TestRewrite_ComponentLookup(t *testing.T) {
	t.Parallel()

	runCases(t, rewrite.New(nil), []rewriteCase{
		{"mapped type", inMethod("var s = GetComponent<Sprite>();"), inMethod(`var s = GetNode<Texture2D>(".");`)},
		{"unmapped type", inMethod("var r = GetComponent<Rigidbody2D>();"), inMethod(`var r = GetNode<Rigidbody2D>(".");`)},
		{
			"several type arguments",
			inMethod("var x = GetComponent<AudioSource, Foo>();"),
			inMethod(`var x = GetNode<AudioStreamPlayer, Foo>(".");`),
		},
		{"on a receiver", inMethod("var a = other.GetComponent<Animator>();"), inMethod(`var a = other.GetNode<AnimationPlayer>(".");`)},
		{"arguments are replaced", inMethod("var s = GetComponent<Sprite>(x);"), inMethod(`var s = GetNode<Texture2D>(".");`)},
		{"no type arguments", inMethod(`var s = GetComponent("Sprite");`), inMethod(`var s = GetComponent("Sprite");`)},
		{
			"in children",
			inMethod("var s = GetComponentInChildren<Sprite>();"),
			inMethod(`var s = GetNode<Texture2D>(".");`),
		},
		{"plural", inMethod("var r = GetComponents<Rigidbody2D>();"), inMethod(`var r = GetNode<Rigidbody2D>(".");`)},
		{"other generic call", inMethod("var s = Find<Sprite>();"), inMethod("var s = Find<Sprite>();")},
	})
}

func TestRewrite_ComponentLookupEscapesPath(t *testing.T) {
	t.Parallel()

	tables, err := rules.Parse(strings.NewReader(
		"component_lookup:\n  method: GetComponent\n  replacement: GetNode\n  path: 'Hud\\\"Score\"'\n"))
	require.NoError(t, err)

	runCases(t, rewrite.New(tables), []rewriteCase{
		{"quote and backslash", inMethod("var s = GetComponent<Label>();"), inMethod(`var s = GetNode<Label>("Hud\\\"Score\"");`)},
	})
}

func TestRewrite_LogCalls(t *testing.T) {
	t.Parallel()

	runCases(t, rewrite.New(nil), []rewriteCase{
		{"log", inMethod(`Debug.Log("hi");`), inMethod(`GD.Print("hi");`)},
		{"warning", inMethod(`Debug.LogWarning("w");`), inMethod(`GD.PushWarning("w");`)},
		{"error", inMethod(`Debug.LogError("e");`), inMethod(`GD.PushError("e");`)},
		{"several arguments", inMethod(`Debug.Log("a", b);`), inMethod(`GD.Print("a", b);`)},
		{"chain argument", inMethod("Debug.Log(transform.position);"), inMethod("GD.Print(Transform.Origin);")},
		{
			"nested lookup argument",
			inMethod("Debug.Log(GetComponent<Sprite>());"),
			inMethod(`GD.Print(GetNode<Texture2D>("."));`),
		},
		{"other receiver", inMethod(`Logger.Log("x");`), inMethod(`Logger.Log("x");`)},
		{"other method", inMethod(`Debug.DrawLine(a, b);`), inMethod(`Debug.DrawLine(a, b);`)},
	})
}

func TestRewrite_PositionChain(t *testing.T) {
	t.Parallel()

	runCases(t, rewrite.New(nil), []rewriteCase{
		{"x read", inMethod("float v = transform.position.x;"), inMethod("float v = Transform.Origin.X;")},
		{"y read", inMethod("float v = transform.position.y + 1;"), inMethod("float v = Transform.Origin.Y + 1;")},
		{"assignment target", inMethod("transform.position.x = 1;"), inMethod("Transform.Origin.X = 1;")},
		{"unmapped axis outside arguments", inMethod("float v = transform.position.z;"), inMethod("float v = transform.position.z;")},
		{"other root outside arguments", inMethod("float v = player.position.x;"), inMethod("float v = player.position.x;")},
		{"two segments outside arguments", inMethod("var p = transform.position;"), inMethod("var p = transform.position;")},
		{"inside a non chain argument", inMethod("Move(transform.position.x + 1);"), inMethod("Move(Transform.Origin.X + 1);")},
	})
}

// The same chains as call arguments go through the per-segment pre-pass instead of the
// flattening rule, so the results differ from the cases above.
func TestRewrite_ArgumentChains(t *testing.T) {
	t.Parallel()

	runCases(t, rewrite.New(nil), []rewriteCase{
		{"sentinel chain", inMethod("Move(transform.position.x);"), inMethod("Move(Transform.Origin.X);")},
		{"unmapped axis", inMethod("Move(transform.position.z);"), inMethod("Move(Transform.Origin.Z);")},
		{"other root", inMethod("Move(player.position.x);"), inMethod("Move(PLAYER.Origin.X);")},
		{"no mapped segment", inMethod("Move(player.health);"), inMethod("Move(PLAYER.HEALTH);")},
		{"mixed segments", inMethod("Move(renderer.sprite);"), inMethod("Move(RENDERER.texture);")},
		{"mapped root", inMethod("Move(transform.rotation);"), inMethod("Move(Transform.ROTATION);")},
		{"second argument", inMethod("Move(1, a.b);"), inMethod("Move(1, A.B);")},
		{"single identifier", inMethod("Move(speed);"), inMethod("Move(speed);")},
		{"this receiver", inMethod("Move(this.speed);"), inMethod("Move(this.speed);")},
		{"call in chain", inMethod("Move(a.b(c).d);"), inMethod("Move(a.b(c).d);")},
		{"nested call", inMethod("Move(Clamp(a.b));"), inMethod("Move(Clamp(A.B));")},
	})
}

func TestRewrite_Methods(t *testing.T) {
	t.Parallel()

	runCases(t, rewrite.New(nil), []rewriteCase{
		{"start", "class A { void Start() { } }", "class A { public override void _Ready() { } }"},
		{"awake", "class A { void Awake() { } }", "class A { public override void _EnterTree() { } }"},
		{"update gets delta", "class A { void Update() { } }", "class A { public override void _Process(double deltaTime) { } }"},
		{
			"modifiers replaced",
			"class A { protected virtual void FixedUpdate() { } }",
			"class A { public override void _PhysicsProcess(double deltaTime) { } }",
		},
		{
			"parameters kept",
			"class A { void OnTriggerEnter2D(Collider2D other) { } }",
			"class A { public override void _OnAreaEntered(Collider2D other) { } }",
		},
		{
			"attributes kept in front",
			`class A { [ContextMenu("x")] void Start() { } }`,
			`class A { [ContextMenu("x")] public override void _Ready() { } }`,
		},
		{"coroutine return type", "class A { IEnumerator Start() { } }", "class A { public override IEnumerator _Ready() { } }"},
		{
			"body of other methods rewritten",
			`class A { void Jump() { Debug.Log("j"); } }`,
			`class A { void Jump() { GD.Print("j"); } }`,
		},
		{
			"multiline layout kept",
			"class A\n{\n    void Start()\n    {\n        Debug.Log(1);\n    }\n}\n",
			"class A\n{\n    public override void _Ready()\n    {\n        GD.Print(1);\n    }\n}\n",
		},
		{"unknown method", "class A { void Tick() { } }", "class A { void Tick() { } }"},
	})
}

func TestRewrite_DeltaAppendedAfterExistingParameters(t *testing.T) {
	t.Parallel()

	tables, err := rules.Parse(strings.NewReader("lifecycle:\n  Tick:\n    name: _Process\n    time_delta: true\n"))
	require.NoError(t, err)

	got, stats := rewriteSource(t, rewrite.New(tables), "class A { void Tick(int frames, bool paused) { } }")

	assert.Equal(t, "class A { public override void _Process(int frames, bool paused, double deltaTime) { } }", got)
	assert.Equal(t, 1, stats.Count(rewrite.RuleTimeDelta))
}

func TestRewrite_Classes(t *testing.T) {
	t.Parallel()

	runCases(t, rewrite.New(nil), []rewriteCase{
		{"mapped base", "class P : MonoBehaviour { }", "class P : Node { }"},
		{"other bases dropped", "class P : MonoBehaviour, IFoo, IBar { }", "class P : Node { }"},
		{"qualified base", "class P : UnityEngine.MonoBehaviour { }", "class P : Node { }"},
		{"first base unmapped", "class P : Base, IFoo { }", "class P : Base, IFoo { }"},
		{"only an interface mapped", "class P : IFoo, MonoBehaviour { }", "class P : IFoo, MonoBehaviour { }"},
		{"no base", "public class P { }", "public class P { }"},
		{"modifiers untouched", "public sealed class P : MonoBehaviour { }", "public sealed class P : Node { }"},
	})
}

func TestRewrite_PartialClasses(t *testing.T) {
	t.Parallel()

	runCases(t, rewrite.New(rules.Default().WithPartialClasses(true)), []rewriteCase{
		{"no modifiers", "class P : MonoBehaviour { }", "public partial class P : Node { }"},
		{"modifiers replaced", "internal sealed class P { }", "public partial class P { }"},
	})
}

func TestRewrite_Imports(t *testing.T) {
	t.Parallel()

	runCases(t, rewrite.New(nil), []rewriteCase{
		{"mapped", "using UnityEngine;\nclass A { }\n", "using Godot;\nclass A { }\n"},
		{"unmapped", "using System.Collections;\nclass A { }\n", "using System.Collections;\nclass A { }\n"},
	})
}

func TestRewrite_FieldAndArrayTypes(t *testing.T) {
	t.Parallel()

	runCases(t, rewrite.New(nil), []rewriteCase{
		{"field", "class A { public Sprite icon; }", "class A { public Texture2D icon; }"},
		{"several declarators", "class A { Animator a, b; }", "class A { AnimationPlayer a, b; }"},
		{"array field", "class A { public Sprite[] frames; }", "class A { public Texture2D[] frames; }"},
		{
			"array creation",
			"class A { Sprite[] f = new Sprite[3]; }",
			"class A { Texture2D[] f = new Texture2D[3]; }",
		},
		{"initializer rewritten", "class A { Sprite s = GetComponent<Sprite>(); }", `class A { Texture2D s = GetNode<Texture2D>("."); }`},
		{"generic type misses", "class A { List<Sprite> s; }", "class A { List<Sprite> s; }"},
		{"unmapped", "class A { int count; }", "class A { int count; }"},
	})
}

func TestRewrite_UntouchedInputIsShared(t *testing.T) {
	t.Parallel()

	source := "using System;\n\nclass A : Base\n{\n    // keep\n    int x = 1;\n    void Jump()  {  x++; }\n}\n"

	root, err := csharp.Parse(context.Background(), []byte(source))
	require.NoError(t, err)

	out, stats := rewrite.New(nil).Rewrite(root)

	assert.Same(t, root, out)
	assert.Zero(t, stats.Total())
	assert.Equal(t, source, csharp.Print(out))
}

func TestRewrite_UntouchedSubtreesAreShared(t *testing.T) {
	t.Parallel()

	source := "class A : MonoBehaviour\n{\n    void Jump() { x  =  1; }\n    void Start() { }\n}\n"

	root, err := csharp.Parse(context.Background(), []byte(source))
	require.NoError(t, err)

	out, _ := rewrite.New(nil).Rewrite(root)

	isMethod := func(n *csharp.Node) bool { return n.Kind == csharp.KindMethodDecl }
	before := root.Find(isMethod)
	after := out.Find(isMethod)

	require.Len(t, before, 2)
	require.Len(t, after, 2)
	assert.Same(t, before[0], after[0], "Jump is untouched")
	assert.NotSame(t, before[1], after[1], "Start is rewritten")
	assert.Contains(t, csharp.Print(out), "void Jump() { x  =  1; }")
	assert.Equal(t, source, csharp.Print(root), "input is not modified")
}

func TestRewrite_IsIdempotentForDeclarations(t *testing.T) {
	t.Parallel()

	rw := rewrite.New(nil)
	source := "using UnityEngine;\nclass P : MonoBehaviour\n{\n    void Start() { }\n    void Update() { }\n    Sprite s;\n}\n"

	once, _ := rewriteSource(t, rw, source)
	twice, stats := rewriteSource(t, rw, once)

	assert.Equal(t, once, twice)
	assert.Zero(t, stats.Total())
}

// Argument chains are upper-cased segment by segment, so a second pass changes
// already converted arguments. This is a known limitation.
func TestRewrite_ArgumentChainsAreNotIdempotent(t *testing.T) {
	t.Parallel()

	rw := rewrite.New(nil)

	once, _ := rewriteSource(t, rw, inMethod("Move(transform.position);"))
	twice, _ := rewriteSource(t, rw, once)

	assert.Equal(t, inMethod("Move(Transform.Origin);"), once)
	assert.Equal(t, inMethod("Move(TRANSFORM.ORIGIN);"), twice)
}

func TestRewrite_EmptyTablesChangeNothing(t *testing.T) {
	t.Parallel()

	tables, err := rules.Parse(strings.NewReader("replace: true\n"))
	require.NoError(t, err)

	source := `class P : MonoBehaviour { void Start() { Debug.Log(GetComponent<Sprite>()); foo.enabled = false; } }`
	got, stats := rewriteSource(t, rewrite.New(tables), source)

	assert.Equal(t, source, got)
	assert.Zero(t, stats.Total())
}

func TestRewrite_Nil(t *testing.T) {
	t.Parallel()

	out, stats := rewrite.New(nil).Rewrite(nil)

	assert.Nil(t, out)
	assert.Zero(t, stats.Total())
}

func TestNew_EveryKindHasAHandler(t *testing.T) {
	t.Parallel()

	rw := rewrite.New(nil)

	for _, kind := range csharp.Kinds() {
		assert.True(t, rw.Handles(kind), kind.String())
	}

	assert.NotNil(t, rw.Tables())
}

func TestRewrite_ConcurrentUseOfOneRewriter(t *testing.T) {
	t.Parallel()

	rw := rewrite.New(nil)
	source := `class Player : MonoBehaviour { void Update() { Debug.Log(transform.position.x); } }`
	want := `class Player : Node { public override void _Process(double deltaTime) { GD.Print(Transform.Origin.X); } }`

	root, err := csharp.Parse(context.Background(), []byte(source))
	require.NoError(t, err)

	var wg sync.WaitGroup

	results := make([]string, 16)

	for idx := range results {
		wg.Add(1)

		go func() {
			defer wg.Done()

			out, _ := rw.Rewrite(root)
			results[idx] = csharp.Print(out)
		}()
	}

	wg.Wait()

	for _, got := range results {
		assert.Equal(t, want, got)
	}

	assert.Equal(t, source, csharp.Print(root))
}

func TestMethodName(t *testing.T) {
	t.Parallel()

	root, err := csharp.Parse(context.Background(), []byte("class A { List<int> Items<T>(T x) { return null; } void update() { } }"))
	require.NoError(t, err)

	methods := root.Find(func(n *csharp.Node) bool { return n.Kind == csharp.KindMethodDecl })
	require.Len(t, methods, 2)

	name, ok := rewrite.MethodName(methods[0])
	assert.True(t, ok)
	assert.Equal(t, "Items", name)

	name, ok = rewrite.MethodName(methods[1])
	assert.True(t, ok)
	assert.Equal(t, "update", name)

	_, ok = rewrite.MethodName(root)
	assert.False(t, ok)
}
