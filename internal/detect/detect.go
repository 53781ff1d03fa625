// Package detect finds debugging leftovers in function-node source code.
package detect

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"flowlint/internal/ignore"
	"flowlint/internal/syntax"
)

const (
	MinLevel = 1
	MaxLevel = 3
)

// Options tune a single Detect call.
type Options struct {
	// Verbose logs parse failures.
	Verbose bool
	// Degraded runs the line-oriented rules when the source cannot be parsed.
	Degraded bool
}

// Detector runs the rule set. It holds no per-call state and is safe for
// concurrent use.
type Detector struct {
	rules  []Rule
	ignore *ignore.Parser
	logger *zap.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithLogger sets the logger used for verbose diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithIgnoreMarker changes the suppression directive token.
func WithIgnoreMarker(marker string) Option {
	return func(d *Detector) {
		d.ignore = ignore.NewParser(marker)
	}
}

// NewDetector builds a detector for the given host environment.
func NewDetector(host Host, opts ...Option) *Detector {
	d := &Detector{
		rules:  Rules(host),
		ignore: ignore.NewParser(ignore.DefaultMarker),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var defaultDetector = NewDetector(DefaultHost())

// Detect runs the default Node-RED detector.
func Detect(src string, level int, opts Options) []Issue {
	return defaultDetector.Detect(src, level, opts)
}

// Detect returns the issues found in src by every rule enabled at level.
// Issues are ordered by rule, then by position within a rule. It never fails:
// empty input and unparseable source yield no issues.
func (d *Detector) Detect(src string, level int, opts Options) (issues []Issue) {
	if src == "" {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("detector panic", zap.Any("panic", r))
			issues = nil
		}
	}()

	level = ClampLevel(level)
	lines := SplitLines(src)
	unit := &Unit{
		Lines:      lines,
		Suppressed: d.ignore.Parse(lines),
	}

	tree, err := syntax.Parse(context.Background(), src)
	if err != nil {
		if opts.Verbose {
			d.logger.Warn("parse failed", zap.Error(err), zap.Int("lines", len(lines)), zap.Bool("degraded", opts.Degraded))
		}
		if !opts.Degraded {
			return nil
		}
	} else {
		unit.Tree = tree
		if opts.Verbose && tree.Wrapped {
			d.logger.Debug("top-level return: parsed inside synthetic wrapper")
		}
	}

	for _, rule := range d.rules {
		if rule.Level() > level {
			continue
		}
		if rule.NeedsTree() && unit.Tree == nil {
			continue
		}
		for _, issue := range rule.Check(unit) {
			if unit.Suppressed.Suppressed(issue.Line()) {
				continue
			}
			issues = append(issues, issue)
		}
	}
	return issues
}

// ClampLevel forces level into the supported range.
func ClampLevel(level int) int {
	if level < MinLevel {
		return MinLevel
	}
	if level > MaxLevel {
		return MaxLevel
	}
	return level
}

// SplitLines splits src into lines. A trailing newline does not start a new line.
func SplitLines(src string) []string {
	if src == "" {
		return nil
	}
	src = strings.ReplaceAll(src, "\r\n", "\n")
	return strings.Split(strings.TrimSuffix(src, "\n"), "\n")
}
