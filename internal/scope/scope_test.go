package scope

import (
	"context"
	"testing"

	"flowlint/internal/syntax"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hostGlobals = []string{"msg", "node", "context", "flow", "global", "env", "RED"}

func unusedNames(t *testing.T, src string) []string {
	t.Helper()
	tree, err := syntax.Parse(context.Background(), src)
	require.NoError(t, err)

	var names []string
	for _, d := range NewTracker(hostGlobals).Unused(tree.Root) {
		names = append(names, d.Name)
	}
	return names
}

func TestUnused(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{name: "simple unused", src: "let unused = 1;", want: []string{"unused"}},
		{name: "used later", src: "let a = 1;\nnode.send(a);", want: nil},
		{name: "underscore prefix", src: "let _tmp = 1;", want: nil},
		{name: "host globals", src: "var msg = {};\nvar flow = 1;", want: nil},
		{name: "parameters", src: "function f(a, b) { return 1; }", want: nil},
		{name: "named function declaration", src: "function helper() {}", want: nil},
		{name: "function initializer", src: "const handler = () => 1;\nconst other = function () {};", want: nil},
		{name: "inner scope unused", src: "function f() { const inner = 1; }", want: []string{"inner"}},
		{name: "closure use before declaration", src: "function f() { return later; }\nconst later = 2;\nf();", want: []string{"later"}},
		{name: "assignment before declaration", src: "x = 2;\nvar x;", want: []string{"x"}},
		{name: "hoisted function call", src: "run();\nfunction run() {}", want: nil},
		{name: "used from nested block", src: "const a = 1;\nif (x) { node.send(a); }", want: nil},
		{name: "block declaration invisible outside", src: "if (x) { const b = 1; }\nnode.send(b);", want: []string{"b"}},
		{name: "destructuring", src: "const { a, b: c, d = 1, ...rest } = msg.payload;\nnode.send(c);", want: []string{"a", "d", "rest"}},
		{name: "array destructuring", src: "const [p, q] = pair;\nnode.send(q);", want: []string{"p"}},
		{name: "property keys are not uses", src: "const a = 1;\nconst o = { a: 2 };\nnode.send(o.a);", want: []string{"a"}},
		{name: "shorthand property is a use", src: "const a = 1;\nnode.send({ a });", want: nil},
		{name: "computed member is a use", src: "const k = 'x';\nnode.send(msg[k]);", want: nil},
		{name: "catch parameter", src: "try { f(); } catch (err) { }", want: nil},
		{name: "assignment counts as use", src: "let counter = 0;\ncounter = 5;", want: nil},
		{name: "default parameter references", src: "const base = 1;\nfunction f(x = base) { return x; }\nf();", want: nil},
		{name: "shadowed inner use does not reach outer", src: "const v = 1;\nfunction f() { const v = 2; return v; }\nf();", want: []string{"v"}},
		{name: "class declaration exempt", src: "class Thing {}", want: nil},
		{name: "for-of binding", src: "for (const item of list) { node.send(item); }", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, unusedNames(t, tt.src))
		})
	}
}

func TestUnused_DuplicateDeclarationSharesUsage(t *testing.T) {
	// Usage is tracked per name, so either binding being referenced covers both.
	assert.Empty(t, unusedNames(t, "var dup = 1;\nvar dup = 2;\nnode.send(dup);"))
}

func TestUnused_Positions(t *testing.T) {
	tree, err := syntax.Parse(context.Background(), "msg.x = 1;\nlet stale = 2;\nreturn msg;")
	require.NoError(t, err)
	require.True(t, tree.Wrapped)

	unused := NewTracker(hostGlobals).Unused(tree.Root)
	require.Len(t, unused, 1)
	assert.Equal(t, "stale", unused[0].Name)
	assert.Equal(t, syntax.Position{Line: 2, Column: 5}, unused[0].Ident.Span().Start)
}

func TestTracker_Exempt(t *testing.T) {
	tr := NewTracker([]string{"msg"})
	assert.True(t, tr.Exempt(Declaration{Name: "_x"}))
	assert.True(t, tr.Exempt(Declaration{Name: "msg"}))
	assert.True(t, tr.Exempt(Declaration{Name: "p", Kind: KindParam}))
	assert.True(t, tr.Exempt(Declaration{Name: "f", FuncInit: true}))
	assert.False(t, tr.Exempt(Declaration{Name: "x"}))
}
