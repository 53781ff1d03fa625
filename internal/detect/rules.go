package detect

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"flowlint/internal/ignore"
	"flowlint/internal/scope"
	"flowlint/internal/syntax"
)

// Unit is the per-call analysis input shared by every rule.
type Unit struct {
	Lines      []string
	Tree       *syntax.Tree
	Suppressed *ignore.Map
}

// Rule is one detector. Tree rules are skipped when the unit could not be parsed.
type Rule interface {
	Kind() Kind
	Level() int
	NeedsTree() bool
	Check(u *Unit) []Issue
}

// Host names the ambient objects of the scripting environment.
type Host struct {
	Globals       []string
	ConsoleObject string
	NodeObject    string
}

// DefaultHost describes the Node-RED function node environment.
func DefaultHost() Host {
	return Host{
		Globals:       []string{"msg", "node", "context", "flow", "global", "env", "RED"},
		ConsoleObject: "console",
		NodeObject:    "node",
	}
}

// Rules returns the rule set in reporting order.
func Rules(host Host) []Rule {
	return []Rule{
		topLevelReturnRule{},
		consoleRule{object: host.ConsoleObject},
		hostWarnRule{object: host.NodeObject},
		debuggerRule{},
		todoRule{},
		unusedRule{tracker: scope.NewTracker(host.Globals)},
		commentedCodeRule{},
		sentinelRule{},
		blankRunRule{},
	}
}

// top-level-empty-return

type topLevelReturnRule struct{}

func (topLevelReturnRule) Kind() Kind      { return KindTopLevelReturn }
func (topLevelReturnRule) Level() int      { return 1 }
func (topLevelReturnRule) NeedsTree() bool { return true }

func (r topLevelReturnRule) Check(u *Unit) []Issue {
	var issues []Issue
	syntax.Preorder(u.Tree.Root, func(n syntax.Node, stack []syntax.Node) {
		ret, ok := n.(*syntax.ReturnStmt)
		if !ok || ret.Arg != nil || !atTopLevel(stack) {
			return
		}
		issues = append(issues, newIssue(KindTopLevelReturn,
			"empty return at top level stops the flow without sending a message", ret.Span()))
	})
	return issues
}

// atTopLevel walks the ancestors innermost first. The return qualifies only if
// the first function boundary reached is the program or the synthetic wrapper
// and no control structure was passed on the way.
func atTopLevel(stack []syntax.Node) bool {
	for i := len(stack) - 1; i >= 0; i-- {
		switch n := stack[i].(type) {
		case *syntax.Program:
			return true
		case *syntax.Function:
			return n.Synthetic
		case *syntax.IfStmt, *syntax.ForStmt, *syntax.ForInStmt, *syntax.WhileStmt,
			*syntax.DoWhileStmt, *syntax.SwitchStmt, *syntax.SwitchCase,
			*syntax.TryStmt, *syntax.CatchClause, *syntax.WithStmt:
			return false
		}
	}
	return false
}

// console-output-call

type consoleRule struct {
	object string
}

func (consoleRule) Kind() Kind      { return KindConsoleOutput }
func (consoleRule) Level() int      { return 2 }
func (consoleRule) NeedsTree() bool { return true }

func (r consoleRule) Check(u *Unit) []Issue {
	var issues []Issue
	syntax.Preorder(u.Tree.Root, func(n syntax.Node, _ []syntax.Node) {
		obj, method, ok := methodCall(n)
		if !ok || obj != r.object {
			return
		}
		callee := obj + "[...]"
		if method != "" {
			callee = obj + "." + method
		}
		issues = append(issues, newIssue(KindConsoleOutput,
			fmt.Sprintf("%s() call left in code", callee), n.Span()))
	})
	return issues
}

// host-warn-call

type hostWarnRule struct {
	object string
}

func (hostWarnRule) Kind() Kind      { return KindHostWarn }
func (hostWarnRule) Level() int      { return 2 }
func (hostWarnRule) NeedsTree() bool { return true }

func (r hostWarnRule) Check(u *Unit) []Issue {
	var issues []Issue
	syntax.Preorder(u.Tree.Root, func(n syntax.Node, _ []syntax.Node) {
		obj, method, ok := methodCall(n)
		if !ok || obj != r.object || method != "warn" {
			return
		}
		issues = append(issues, newIssue(KindHostWarn,
			fmt.Sprintf("%s.warn() call used for debugging", obj), n.Span()))
	})
	return issues
}

// methodCall matches obj.method(...) and obj[expr](...). For computed access
// method is empty.
func methodCall(n syntax.Node) (obj, method string, ok bool) {
	call, isCall := n.(*syntax.CallExpr)
	if !isCall || call.New {
		return "", "", false
	}
	member, isMember := call.Callee.(*syntax.MemberExpr)
	if !isMember {
		return "", "", false
	}
	id, isIdent := member.Object.(*syntax.Ident)
	if !isIdent {
		return "", "", false
	}
	if !member.Computed {
		if prop, isProp := member.Property.(*syntax.Ident); isProp {
			method = prop.Name
		}
	}
	return id.Name, method, true
}

// debugger-statement

type debuggerRule struct{}

func (debuggerRule) Kind() Kind      { return KindDebugger }
func (debuggerRule) Level() int      { return 2 }
func (debuggerRule) NeedsTree() bool { return true }

func (debuggerRule) Check(u *Unit) []Issue {
	var issues []Issue
	syntax.Preorder(u.Tree.Root, func(n syntax.Node, _ []syntax.Node) {
		if _, ok := n.(*syntax.DebuggerStmt); ok {
			issues = append(issues, newIssue(KindDebugger, "debugger statement", n.Span()))
		}
	})
	return issues
}

// unused-declaration

type unusedRule struct {
	tracker *scope.Tracker
}

func (unusedRule) Kind() Kind      { return KindUnused }
func (unusedRule) Level() int      { return 2 }
func (unusedRule) NeedsTree() bool { return true }

func (r unusedRule) Check(u *Unit) []Issue {
	var issues []Issue
	for _, d := range r.tracker.Unused(u.Tree.Root) {
		issues = append(issues, newIssue(KindUnused,
			fmt.Sprintf("%s '%s' is declared but never used", d.Kind, d.Name), d.Ident.Span()))
	}
	return issues
}

// hardcoded-sentinel-value

type sentinelRule struct{}

func (sentinelRule) Kind() Kind      { return KindSentinel }
func (sentinelRule) Level() int      { return 3 }
func (sentinelRule) NeedsTree() bool { return true }

func (sentinelRule) Check(u *Unit) []Issue {
	var issues []Issue
	check := func(value syntax.Node) {
		lit, ok := value.(*syntax.Literal)
		if !ok {
			return
		}
		if sub, ok := sentinelOf(lit); ok {
			issue := newIssue(KindSentinel, fmt.Sprintf("hardcoded sentinel value %s", lit.Raw), lit.Span())
			issue.Subkind = sub
			issues = append(issues, issue)
		}
	}
	syntax.Preorder(u.Tree.Root, func(n syntax.Node, _ []syntax.Node) {
		switch n := n.(type) {
		case *syntax.Declarator:
			check(n.Init)
		case *syntax.AssignExpr:
			if n.Op == "=" {
				check(n.Right)
			}
		}
	})
	return issues
}

func sentinelOf(lit *syntax.Literal) (string, bool) {
	switch lit.Kind {
	case syntax.LitString:
		switch strings.ToLower(lit.Value) {
		case SentinelTest:
			return SentinelTest, true
		case SentinelDebug:
			return SentinelDebug, true
		case SentinelTemp:
			return SentinelTemp, true
		}
	case syntax.LitNumber:
		if v, ok := numberValue(lit.Raw); ok && v == 123 {
			return SentinelNumber, true
		}
	}
	return "", false
}

var legacyOctal = regexp.MustCompile(`^0[0-7]+$`)

// numberValue evaluates a JavaScript numeric literal.
func numberValue(raw string) (float64, bool) {
	s := strings.ReplaceAll(raw, "_", "")
	if strings.HasSuffix(s, "n") {
		s = strings.TrimSuffix(s, "n")
	}
	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "0x"), strings.HasPrefix(lower, "0o"), strings.HasPrefix(lower, "0b"):
		v, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return 0, false
		}
		return float64(v), true
	case legacyOctal.MatchString(s):
		v, err := strconv.ParseInt(s[1:], 8, 64)
		if err != nil {
			return 0, false
		}
		return float64(v), true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}
