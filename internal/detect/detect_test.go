package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func kinds(issues []Issue) []Kind {
	out := make([]Kind, 0, len(issues))
	for _, issue := range issues {
		out = append(out, issue.Kind)
	}
	return out
}

func TestDetect_BareTopLevelReturn(t *testing.T) {
	issues := Detect("return;\n", 1, Options{})

	require.Len(t, issues, 1)
	assert.Equal(t, KindTopLevelReturn, issues[0].Kind)
	assert.Equal(t, 1, issues[0].Line())
	assert.Equal(t, SeverityWarning, issues[0].Severity)
}

func TestDetect_ReturnInsideIf(t *testing.T) {
	assert.Empty(t, Detect("if (x) {\n  return;\n}\n", 1, Options{}))
}

func TestDetect_ImportantRules(t *testing.T) {
	src := `let unused = 1;
console.log(msg.payload);
node.warn("x");
// TODO: x
return msg;
`
	issues := Detect(src, 2, Options{})

	assert.Equal(t, []Kind{KindConsoleOutput, KindHostWarn, KindTodo, KindUnused}, kinds(issues))
	lines := map[Kind]int{}
	for _, issue := range issues {
		lines[issue.Kind] = issue.Line()
	}
	assert.Equal(t, map[Kind]int{KindConsoleOutput: 2, KindHostWarn: 3, KindTodo: 4, KindUnused: 1}, lines)
}

func TestDetect_ReturnDiscrimination(t *testing.T) {
	flagged := map[string]string{
		"bare":             "foo();\nreturn;\n",
		"bare in block":    "{\n  return;\n}\n",
		"after statements": "var a = msg.payload;\nfoo(a);\nreturn;\n",
	}
	for name, src := range flagged {
		t.Run("flagged/"+name, func(t *testing.T) {
			for level := 1; level <= 3; level++ {
				issues := filter(Detect(src, level, Options{}), KindTopLevelReturn)
				assert.Len(t, issues, 1, "level %d", level)
			}
		})
	}

	clean := map[string]string{
		"value":       "return result;\n",
		"object":      "return {a:1};\n",
		"call":        "return fn();\n",
		"if":          "if (x) return;\n",
		"else":        "if (x) { foo(); } else { return; }\n",
		"for":         "for (let i = 0; i < 3; i++) {\n  return;\n}\n",
		"for of":      "for (const p of msg.parts) { return; }\n",
		"while":       "while (x) {\n  return;\n}\n",
		"do while":    "do { return; } while (x);\n",
		"try":         "try {\n  return;\n} catch (e) {\n  foo(e);\n}\n",
		"catch":       "try {\n  foo();\n} catch (e) {\n  return;\n}\n",
		"switch":      "switch (x) {\ncase 1:\n  return;\n}\n",
		"function":    "function f() {\n  return;\n}\nf();\n",
		"arrow":       "const g = () => {\n  return;\n};\ng();\n",
		"expression":  "msg.cb = function () { return; };\n",
		"method":      "const o = { run() { return; } };\nfoo(o);\n",
		"nested deep": "function f() {\n  if (x) {\n    return;\n  }\n}\n",
	}
	for name, src := range clean {
		t.Run("clean/"+name, func(t *testing.T) {
			for level := 1; level <= 3; level++ {
				assert.Empty(t, filter(Detect(src, level, Options{}), KindTopLevelReturn), "level %d", level)
			}
		})
	}
}

func filter(issues []Issue, kind Kind) []Issue {
	var out []Issue
	for _, issue := range issues {
		if issue.Kind == kind {
			out = append(out, issue)
		}
	}
	return out
}

const everything = `let unused = 1;
msg.mode = "TEMP";
console.info(msg);
node.warn(msg);
debugger;
// FIXME: remove


// old();
// older();
return;
`

func TestDetect_LevelGating(t *testing.T) {
	l1 := kinds(Detect(everything, 1, Options{}))
	l2 := kinds(Detect(everything, 2, Options{}))
	l3 := kinds(Detect(everything, 3, Options{}))

	assert.Equal(t, []Kind{KindTopLevelReturn}, l1)
	assert.Equal(t, []Kind{
		KindTopLevelReturn, KindConsoleOutput, KindHostWarn, KindDebugger,
		KindTodo, KindUnused, KindCommentedCodeRun,
	}, l2)
	assert.Equal(t, []Kind{
		KindTopLevelReturn, KindConsoleOutput, KindHostWarn, KindDebugger,
		KindTodo, KindUnused, KindCommentedCodeRun, KindSentinel, KindBlankRun,
	}, l3)

	for _, k := range l1 {
		assert.Contains(t, l2, k)
	}
	for _, k := range l2 {
		assert.Contains(t, l3, k)
	}
}

func TestDetect_LevelIsClamped(t *testing.T) {
	assert.Equal(t, Detect(everything, 1, Options{}), Detect(everything, -4, Options{}))
	assert.Equal(t, Detect(everything, 3, Options{}), Detect(everything, 9, Options{}))
}

func TestDetect_Idempotent(t *testing.T) {
	first := Detect(everything, 3, Options{})
	second := Detect(everything, 3, Options{})
	assert.Equal(t, first, second)
}

func TestDetect_RunRanges(t *testing.T) {
	issues := Detect(everything, 3, Options{})

	blank := filter(issues, KindBlankRun)
	require.Len(t, blank, 1)
	assert.Equal(t, 7, blank[0].Range.Start.Line)
	assert.Equal(t, 8, blank[0].Range.End.Line)
	assert.Contains(t, blank[0].Message, "2 consecutive")

	commented := filter(issues, KindCommentedCodeRun)
	require.Len(t, commented, 1)
	assert.Equal(t, 6, commented[0].Range.Start.Line, "blank lines do not break a comment run")
	assert.Equal(t, 10, commented[0].Range.End.Line)
	assert.Contains(t, commented[0].Message, "3 consecutive")
}

func TestDetect_Suppression(t *testing.T) {
	tests := []struct {
		name       string
		level      int
		src        string
		suppressed string
		kind       Kind
	}{
		{
			name:       "top-level return",
			level:      1,
			src:        "foo();\nreturn;\n",
			suppressed: "foo();\nreturn; // flowlint-ignore-line\n",
			kind:       KindTopLevelReturn,
		},
		{
			name:       "console",
			level:      2,
			src:        "console.log(1);\n",
			suppressed: "// flowlint-ignore-next\nconsole.log(1);\n",
			kind:       KindConsoleOutput,
		},
		{
			name:       "host warn",
			level:      2,
			src:        "node.warn(1);\n",
			suppressed: "// flowlint-ignore-start\nnode.warn(1);\n// flowlint-ignore-end\n",
			kind:       KindHostWarn,
		},
		{
			name:       "debugger",
			level:      2,
			src:        "debugger;\nfoo();\n",
			suppressed: "debugger; // flowlint-ignore-line\nfoo();\n",
			kind:       KindDebugger,
		},
		{
			name:       "unused",
			level:      2,
			src:        "let a = 1;\nfoo(a);\nlet b = 2;\n",
			suppressed: "let a = 1;\nfoo(a);\nlet b = 2; // flowlint-ignore-line\n",
			kind:       KindUnused,
		},
		{
			name:       "todo",
			level:      2,
			src:        "foo();\n// TODO: later\n",
			suppressed: "foo(); // flowlint-ignore-next\n// TODO: later\n",
			kind:       KindTodo,
		},
		{
			name:       "sentinel",
			level:      3,
			src:        "var mode = \"debug\";\nfoo(mode);\n",
			suppressed: "var mode = \"debug\"; // flowlint-ignore-line\nfoo(mode);\n",
			kind:       KindSentinel,
		},
		{
			name:       "blank run",
			level:      3,
			src:        "a();\n\n\nb();\n",
			suppressed: "a(); // flowlint-ignore-next\n\n\nb();\n",
			kind:       KindBlankRun,
		},
		{
			name:       "commented-out run",
			level:      2,
			src:        "a();\n// b();\n// c();\n",
			suppressed: "a();\n// b(); // flowlint-ignore-line\n// c();\n",
			kind:       KindCommentedCodeRun,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, []Kind{tt.kind}, kinds(Detect(tt.src, tt.level, Options{})))
			assert.Empty(t, Detect(tt.suppressed, tt.level, Options{}))
		})
	}
}

func TestDetect_SuppressionLeavesOtherIssues(t *testing.T) {
	src := "console.log(1); // flowlint-ignore-line\nconsole.log(2);\n"
	issues := Detect(src, 2, Options{})

	require.Len(t, issues, 1)
	assert.Equal(t, 2, issues[0].Line())
}

func TestDetect_EmptyInput(t *testing.T) {
	assert.Empty(t, Detect("", 3, Options{}))
}

func TestDetect_ParseFailure(t *testing.T) {
	src := "let = ;\n// TODO: fix\n"

	assert.Empty(t, Detect(src, 3, Options{}))

	issues := Detect(src, 3, Options{Degraded: true})
	assert.Equal(t, []Kind{KindTodo}, kinds(issues))
}

func TestDetect_VerboseLogsParseFailure(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	d := NewDetector(DefaultHost(), WithLogger(zap.New(core)))

	d.Detect("let = ;", 2, Options{})
	assert.Equal(t, 0, logs.Len(), "diagnostics are off by default")

	d.Detect("let = ;", 2, Options{Verbose: true})
	require.Equal(t, 1, logs.FilterMessage("parse failed").Len())
}

func TestDetector_CustomHost(t *testing.T) {
	host := Host{Globals: []string{"ctx"}, ConsoleObject: "log", NodeObject: "svc"}
	d := NewDetector(host, WithIgnoreMarker("lint-off"))

	src := "log.debug(1);\nsvc.warn(2);\nlog.debug(3); // lint-off-line\nlet ctx = 1;\n"
	issues := d.Detect(src, 2, Options{})

	assert.Equal(t, []Kind{KindConsoleOutput, KindHostWarn}, kinds(issues))
}
