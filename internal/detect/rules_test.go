package detect

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumberValue(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"123", 123, true},
		{"123.0", 123, true},
		{"1.23e2", 123, true},
		{"0x7B", 123, true},
		{"0o173", 123, true},
		{"0b1111011", 123, true},
		{"1_23", 123, true},
		{"123n", 123, true},
		{"0123", 83, true},
		{"1230", 1230, true},
		{"0xZZ", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := numberValue(tt.raw)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestSentinelRule(t *testing.T) {
	tests := []struct {
		value   string
		subkind string
	}{
		{`"test"`, SentinelTest},
		{`'Debug'`, SentinelDebug},
		{`"TEMP"`, SentinelTemp},
		{"123", SentinelNumber},
		{"123.0", SentinelNumber},
		{"0x7B", SentinelNumber},
		{`"testing"`, ""},
		{`"temporary"`, ""},
		{"1230", ""},
		{"0123", ""},
		{"-123", ""},
		{"`test`", ""},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			for _, form := range []string{"var v = %s;\nfoo(v);\n", "msg.payload = %s;\n"} {
				src := fmt.Sprintf(form, tt.value)
				issues := filter(Detect(src, 3, Options{}), KindSentinel)
				if tt.subkind == "" {
					assert.Empty(t, issues, src)
					continue
				}
				require.Len(t, issues, 1, src)
				assert.Equal(t, tt.subkind, issues[0].Subkind)
				assert.Equal(t, SeverityWarning, issues[0].Severity)
			}
		})
	}
}

func TestSentinelRule_OnlyAssignments(t *testing.T) {
	src := "foo(\"test\");\nif (x === 123) { bar(); }\nmsg.total += 123;\n"
	assert.Empty(t, filter(Detect(src, 3, Options{}), KindSentinel))
}

func TestConsoleRule_AnyMethod(t *testing.T) {
	src := "console.log(1);\nconsole.error(2);\nconsole[\"table\"](3);\nlogger.log(4);\nnew console.Thing();\n"
	issues := Detect(src, 2, Options{})

	require.Len(t, issues, 3)
	for i, issue := range issues {
		assert.Equal(t, KindConsoleOutput, issue.Kind)
		assert.Equal(t, i+1, issue.Line())
	}
	assert.Equal(t, 1, issues[0].Range.Start.Column)
}

func TestHostWarnRule_ExactlyWarn(t *testing.T) {
	src := "node.warn(1);\nnode.error(2);\nnode.log(3);\nother.warn(4);\n"
	issues := Detect(src, 2, Options{})

	require.Len(t, issues, 1)
	assert.Equal(t, KindHostWarn, issues[0].Kind)
	assert.Equal(t, 1, issues[0].Line())
}

func TestDebuggerRule_Nested(t *testing.T) {
	src := "function f() {\n  if (x) {\n    debugger;\n  }\n}\nf();\n"
	issues := Detect(src, 2, Options{})

	require.Len(t, issues, 1)
	assert.Equal(t, KindDebugger, issues[0].Kind)
	assert.Equal(t, 3, issues[0].Line())
	assert.Equal(t, 5, issues[0].Range.Start.Column)
}

func TestTodoRule(t *testing.T) {
	src := "a(); // todo: lower case\n// FIXME:\n// TODO without colon\nb('TODO: in a string');\n"
	issues := filter(Detect(src, 2, Options{}), KindTodo)

	require.Len(t, issues, 3)
	assert.Equal(t, 1, issues[0].Line())
	assert.Equal(t, 9, issues[0].Range.Start.Column)
	assert.Equal(t, 2, issues[1].Line())
	assert.Equal(t, 4, issues[2].Line())
}

func TestUnusedRule_Exemptions(t *testing.T) {
	src := `let _skip = 1;
let handler = function () {};
const arrow = (a, b) => a;
function helper(x) {}
let msg = 1;
try { foo(); } catch (err) { bar(); }
class Widget {}
let really = 2;
`
	issues := filter(Detect(src, 2, Options{}), KindUnused)

	require.Len(t, issues, 1)
	assert.Equal(t, 8, issues[0].Line())
	assert.Contains(t, issues[0].Message, "really")
}

func TestCommentedCodeRule_SingleCommentIgnored(t *testing.T) {
	src := "// explains the next line\nfoo();\n// another note\nbar();\n"
	assert.Empty(t, filter(Detect(src, 3, Options{}), KindCommentedCodeRun))
}

func TestBlankRunRule_PartialSuppressionDiscardsRun(t *testing.T) {
	src := "a();\n\n// flowlint-ignore-next\n\n\nb();\n\n\n\nc();\n"
	issues := filter(Detect(src, 3, Options{}), KindBlankRun)

	require.Len(t, issues, 1)
	assert.Equal(t, 7, issues[0].Line())
	assert.Contains(t, issues[0].Message, "3 consecutive")
}

func TestKindProperties(t *testing.T) {
	critical := 0
	for _, k := range Kinds {
		if k.Critical() {
			critical++
			assert.Equal(t, SeverityWarning, k.DefaultSeverity())
		}
	}
	assert.Equal(t, 2, critical)
	assert.Equal(t, SeverityInfo, KindTodo.DefaultSeverity())
	assert.Equal(t, SeverityWarning, KindSentinel.DefaultSeverity())
}
