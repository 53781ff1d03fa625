package quality

import (
	"fmt"

	"flowlint/internal/detect"
)

type band struct {
	min   float64
	grade string
}

var bands = []band{
	{98, "A+"},
	{95, "A"},
	{90, "A-"},
	{85, "B+"},
	{80, "B"},
	{70, "B-"},
	{60, "C+"},
	{50, "C"},
	{35, "D"},
	{20, "D-"},
}

// Grade maps a 0-100 score to a letter grade.
func Grade(score float64) string {
	for _, b := range bands {
		if score >= b.min {
			return b.grade
		}
	}
	return "F"
}

var advice = map[detect.Kind]string{
	detect.KindTopLevelReturn:   "Replace bare top-level return with return msg or node.done() so the flow does not silently stop",
	detect.KindDebugger:         "Remove debugger statements before deploying",
	detect.KindConsoleOutput:    "Remove console calls or route them through node.log",
	detect.KindHostWarn:         "Drop node.warn calls that were added for debugging",
	detect.KindUnused:           "Delete unused declarations",
	detect.KindTodo:             "Resolve or track TODO and FIXME comments",
	detect.KindCommentedCodeRun: "Delete commented-out code",
	detect.KindSentinel:         "Replace hardcoded test values with configuration",
	detect.KindBlankRun:         "Collapse runs of blank lines",
}

// Recommendations returns one line of advice per issue kind present, critical
// kinds first, then in reporting order.
func Recommendations(issues []detect.Issue) []string {
	counts := make(map[detect.Kind]int)
	for _, issue := range issues {
		counts[issue.Kind]++
	}
	var critical, rest []string
	for _, k := range detect.Kinds {
		n := counts[k]
		if n == 0 {
			continue
		}
		line := fmt.Sprintf("%s (%d)", advice[k], n)
		if k.Critical() {
			critical = append(critical, line)
		} else {
			rest = append(rest, line)
		}
	}
	return append(critical, rest...)
}
