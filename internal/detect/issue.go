package detect

import "flowlint/internal/syntax"

// Kind identifies the rule that produced an issue.
type Kind string

const (
	KindTopLevelReturn   Kind = "top-level-empty-return"
	KindConsoleOutput    Kind = "console-output-call"
	KindHostWarn         Kind = "host-warn-call"
	KindDebugger         Kind = "debugger-statement"
	KindUnused           Kind = "unused-declaration"
	KindTodo             Kind = "todo-or-fixme-comment"
	KindSentinel         Kind = "hardcoded-sentinel-value"
	KindBlankRun         Kind = "excessive-blank-run"
	KindCommentedCodeRun Kind = "commented-out-code-run"
)

// Kinds lists every issue kind in reporting order.
var Kinds = []Kind{
	KindTopLevelReturn,
	KindConsoleOutput,
	KindHostWarn,
	KindDebugger,
	KindUnused,
	KindTodo,
	KindSentinel,
	KindBlankRun,
	KindCommentedCodeRun,
}

// Severity of an issue.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// DefaultSeverity returns the fixed severity of k.
func (k Kind) DefaultSeverity() Severity {
	switch k {
	case KindTopLevelReturn, KindDebugger, KindSentinel:
		return SeverityWarning
	}
	return SeverityInfo
}

// Critical reports whether k caps the achievable quality score.
func (k Kind) Critical() bool {
	return k == KindTopLevelReturn || k == KindDebugger
}

// Sentinel sub-kinds.
const (
	SentinelTest   = "test"
	SentinelDebug  = "debug"
	SentinelTemp   = "temp"
	SentinelNumber = "number"
)

// Issue is one finding. Range.Start.Line is always set; columns are set when
// the issue comes from a syntax node.
type Issue struct {
	Kind     Kind         `json:"kind"`
	Subkind  string       `json:"subkind,omitempty"`
	Message  string       `json:"message"`
	Range    syntax.Range `json:"range"`
	Severity Severity     `json:"severity"`
}

// Line returns the 1-based line the issue starts on.
func (i Issue) Line() int {
	return i.Range.Start.Line
}

func newIssue(kind Kind, msg string, rng syntax.Range) Issue {
	return Issue{Kind: kind, Message: msg, Range: rng, Severity: kind.DefaultSeverity()}
}

func lineIssue(kind Kind, msg string, line int) Issue {
	return newIssue(kind, msg, syntax.Range{Start: syntax.Position{Line: line}, End: syntax.Position{Line: line}})
}
