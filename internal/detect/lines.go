package detect

import (
	"fmt"
	"regexp"
	"strings"
)

// todo-or-fixme-comment

type todoRule struct{}

var todoPattern = regexp.MustCompile(`(?i)(TODO|FIXME):`)

func (todoRule) Kind() Kind      { return KindTodo }
func (todoRule) Level() int      { return 2 }
func (todoRule) NeedsTree() bool { return false }

func (todoRule) Check(u *Unit) []Issue {
	var issues []Issue
	for i, line := range u.Lines {
		loc := todoPattern.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}
		marker := strings.ToUpper(line[loc[2]:loc[3]])
		issue := lineIssue(KindTodo, fmt.Sprintf("%s comment left in code", marker), i+1)
		issue.Range.Start.Column = loc[0] + 1
		issue.Range.End.Column = len(line) + 1
		issues = append(issues, issue)
	}
	return issues
}

// lineRun is an inclusive range of 1-based lines with the number of lines
// that matched the run predicate.
type lineRun struct {
	start, end, count int
}

// runs groups lines matching match into runs. Lines for which skip returns
// true neither extend nor break a run.
func runs(lines []string, match, skip func(string) bool) []lineRun {
	var out []lineRun
	var cur *lineRun
	for i, line := range lines {
		switch {
		case match(line):
			if cur == nil {
				cur = &lineRun{start: i + 1}
			}
			cur.end = i + 1
			cur.count++
		case skip != nil && skip(line):
		default:
			if cur != nil {
				out = append(out, *cur)
				cur = nil
			}
		}
	}
	if cur != nil {
		out = append(out, *cur)
	}
	return out
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

func isLineComment(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "//")
}

// excessive-blank-run

type blankRunRule struct{}

func (blankRunRule) Kind() Kind      { return KindBlankRun }
func (blankRunRule) Level() int      { return 3 }
func (blankRunRule) NeedsTree() bool { return false }

func (blankRunRule) Check(u *Unit) []Issue {
	var issues []Issue
	for _, r := range runs(u.Lines, isBlank, nil) {
		if r.count < 2 || u.Suppressed.AnySuppressed(r.start, r.end) {
			continue
		}
		issue := lineIssue(KindBlankRun, fmt.Sprintf("%d consecutive blank lines", r.count), r.start)
		issue.Range.End.Line = r.end
		issues = append(issues, issue)
	}
	return issues
}

// commented-out-code-run

type commentedCodeRule struct{}

func (commentedCodeRule) Kind() Kind      { return KindCommentedCodeRun }
func (commentedCodeRule) Level() int      { return 2 }
func (commentedCodeRule) NeedsTree() bool { return false }

func (commentedCodeRule) Check(u *Unit) []Issue {
	var issues []Issue
	for _, r := range runs(u.Lines, isLineComment, isBlank) {
		if r.count < 2 || u.Suppressed.AnySuppressed(r.start, r.end) {
			continue
		}
		issue := lineIssue(KindCommentedCodeRun, fmt.Sprintf("%d consecutive commented-out lines", r.count), r.start)
		issue.Range.End.Line = r.end
		issues = append(issues, issue)
	}
	return issues
}
