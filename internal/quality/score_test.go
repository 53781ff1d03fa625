package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowlint/internal/detect"
)

func issuesOf(kinds ...detect.Kind) []detect.Issue {
	out := make([]detect.Issue, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, detect.Issue{Kind: k, Severity: k.DefaultSeverity()})
	}
	return out
}

func TestScoreUnit(t *testing.T) {
	tests := []struct {
		name   string
		issues []detect.Issue
		loc    int
		want   float64
	}{
		{"clean", nil, 40, 100},
		{"one console", issuesOf(detect.KindConsoleOutput), 0, 95},
		{"important issues scale with size", issuesOf(detect.KindConsoleOutput, detect.KindTodo), 150, 82},
		{"size multiplier is capped", issuesOf(detect.KindBlankRun), 1000, 97.5},
		{"one critical caps at 40", issuesOf(detect.KindDebugger), 0, 17.5},
		{"critical in small unit", issuesOf(detect.KindTopLevelReturn), 10, 16},
		{"critical in large unit", issuesOf(detect.KindTopLevelReturn), 300, 0},
		{"two criticals cap at 15", issuesOf(detect.KindDebugger, detect.KindTopLevelReturn), 0, 0},
		{"negative size", issuesOf(detect.KindConsoleOutput), -5, 95},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ScoreUnit(tt.issues, tt.loc), 1e-9)
		})
	}
}

func TestScoreUnit_SizeIsMonotonic(t *testing.T) {
	issues := issuesOf(detect.KindDebugger)
	small := ScoreUnit(issues, 10)
	large := ScoreUnit(issues, 300)
	assert.Less(t, large, small)

	prev := ScoreUnit(issues, 0)
	for loc := 10; loc <= 400; loc += 10 {
		cur := ScoreUnit(issues, loc)
		assert.LessOrEqual(t, cur, prev, "loc %d", loc)
		prev = cur
	}
}

func TestScoreUnit_Bounds(t *testing.T) {
	for _, k := range detect.Kinds {
		for n := 0; n < 30; n += 3 {
			var kinds []detect.Kind
			for i := 0; i < n; i++ {
				kinds = append(kinds, k)
			}
			for _, loc := range []int{0, 1, 75, 150, 500} {
				score := ScoreUnit(issuesOf(kinds...), loc)
				assert.GreaterOrEqual(t, score, 0.0)
				assert.LessOrEqual(t, score, 100.0)
				if k.Critical() && n >= 1 {
					assert.LessOrEqual(t, score, 40.0)
				}
				if k.Critical() && n >= 2 {
					assert.LessOrEqual(t, score, 15.0)
				}
			}
		}
	}

	// a zero weight still leaves the critical cap in place
	s := NewScorer(Weights{detect.KindDebugger: 0, detect.KindTopLevelReturn: 0}, 0)
	assert.Equal(t, 40.0, s.ScoreUnit(issuesOf(detect.KindDebugger), 0))
	assert.Equal(t, 15.0, s.ScoreUnit(issuesOf(detect.KindDebugger, detect.KindTopLevelReturn), 0))
}

func TestNewScorer_Overrides(t *testing.T) {
	s := NewScorer(Weights{detect.KindConsoleOutput: 10}, 2)

	assert.Equal(t, 90.0, s.ScoreUnit(issuesOf(detect.KindConsoleOutput), 0))
	assert.Equal(t, 96.0, s.ScoreUnit(issuesOf(detect.KindTodo), 0), "missing kinds keep their default")
	assert.Equal(t, 10.0, s.ScoreUnit(issuesOf(detect.KindDebugger), 0))
}

func TestWeights_Validate(t *testing.T) {
	require.NoError(t, DefaultWeights().Validate())
	assert.Error(t, Weights{"made-up": 1}.Validate())
	assert.Error(t, Weights{detect.KindTodo: -1}.Validate())
}

func TestDefaultWeights_Ordering(t *testing.T) {
	w := DefaultWeights()
	important := []detect.Kind{detect.KindConsoleOutput, detect.KindHostWarn, detect.KindTodo, detect.KindUnused}
	minor := []detect.Kind{detect.KindSentinel, detect.KindBlankRun}
	for _, c := range []detect.Kind{detect.KindTopLevelReturn, detect.KindDebugger} {
		for _, i := range important {
			assert.Greater(t, w[c], 2*w[i])
		}
	}
	for _, i := range important {
		for _, m := range minor {
			assert.Greater(t, w[i], w[m])
		}
	}
}

func TestComplexity(t *testing.T) {
	src := `// handler
function check(a) {
  if (a && msg.ok) {
    return a > 1 ? 1 : 2;
  }
}
`
	assert.InDelta(t, 10.0, Complexity(src), 1e-9)
	assert.Equal(t, 0.0, Complexity(""))
	assert.InDelta(t, 0.1, Complexity("x = 1;\n"), 1e-9)
}

func TestComplexity_IgnoresCommentsAndStrings(t *testing.T) {
	src := "/* if (a && b)\n   while (c) */\nvar s = 'if || for';\n"
	assert.InDelta(t, 0.1, Complexity(src), 1e-9)
}

func TestLinesOfCode(t *testing.T) {
	assert.Equal(t, 0, LinesOfCode(""))
	assert.Equal(t, 1, LinesOfCode("a();\n"))
	assert.Equal(t, 3, LinesOfCode("a();\n\nb();"))
}

func TestAssess(t *testing.T) {
	src := "console.log(1);\n"
	issues := detect.Detect(src, 2, detect.Options{})
	rec := NewScorer(nil, 0).Assess("n1", "log it", src, issues)

	assert.Equal(t, "n1", rec.UnitID)
	assert.Equal(t, "log it", rec.UnitName)
	assert.Equal(t, 1, rec.LinesOfCode)
	assert.InDelta(t, 94.97, rec.QualityScore, 1e-9)
	assert.False(t, rec.HasCriticalIssue)
	assert.Len(t, rec.Issues, 1)
	assert.Equal(t, rec.LinesOfCode, rec.Input().LinesOfCode)
}
