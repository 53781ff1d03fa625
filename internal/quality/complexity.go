package quality

import (
	"context"
	"strings"

	"flowlint/internal/detect"
	"flowlint/internal/syntax"
)

const (
	lineFactor     = 0.1
	branchFactor   = 2.0
	depthFactor    = 1.5
	functionFactor = 0.5
)

// Complexity estimates how hard a unit is to follow from its size, its
// decision points, its deepest brace nesting and its named functions.
func Complexity(src string) float64 {
	if src == "" {
		return 0
	}
	stats := syntax.ScanTokens(context.Background(), src)
	score := lineFactor*float64(codeLines(src)) +
		branchFactor*float64(stats.Branches) +
		depthFactor*float64(stats.MaxBraceDepth) +
		functionFactor*float64(stats.NamedFunctions)
	return round2(score)
}

// LinesOfCode counts every line of src. A trailing newline does not add one.
func LinesOfCode(src string) int {
	return len(detect.SplitLines(src))
}

// codeLines counts lines that are neither blank nor pure comment lines.
func codeLines(src string) int {
	n := 0
	inBlock := false
	for _, line := range detect.SplitLines(src) {
		t := strings.TrimSpace(line)
		switch {
		case inBlock:
			if strings.Contains(t, "*/") {
				inBlock = false
			}
		case t == "", strings.HasPrefix(t, "//"):
		case strings.HasPrefix(t, "/*"):
			inBlock = !strings.Contains(t[2:], "*/")
		default:
			n++
		}
	}
	return n
}
