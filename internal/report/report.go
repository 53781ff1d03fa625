package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"flowlint/internal/detect"
	"flowlint/internal/pipeline"
	"flowlint/internal/quality"
	"flowlint/internal/storage"
)

// Renderer turns records into styled text.
type Renderer struct {
	theme Theme

	box     lipgloss.Style
	header  lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
}

// New returns a renderer. With noColor set the output is plain text.
func New(noColor bool) *Renderer {
	theme := DefaultTheme()
	if noColor {
		theme = MonochromeTheme()
	}
	return NewWithTheme(theme)
}

func NewWithTheme(theme Theme) *Renderer {
	return &Renderer{
		theme: theme,
		box: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Colors.Muted).
			Padding(0, 1),
		header:  lipgloss.NewStyle().Bold(theme.Bold).Foreground(theme.Colors.Header),
		muted:   lipgloss.NewStyle().Foreground(theme.Colors.Muted),
		success: lipgloss.NewStyle().Foreground(theme.Colors.Success),
		warning: lipgloss.NewStyle().Foreground(theme.Colors.Warning),
		failure: lipgloss.NewStyle().Foreground(theme.Colors.Error),
	}
}

// scoreStyle colors a score by band.
func (r *Renderer) scoreStyle(score float64) lipgloss.Style {
	switch {
	case score >= 80:
		return r.success
	case score >= 50:
		return r.warning
	default:
		return r.failure
	}
}

func (r *Renderer) score(score float64) string {
	return r.scoreStyle(score).Render(fmt.Sprintf("%6.2f %-2s", score, quality.Grade(score)))
}

func bar(score float64, width int) string {
	filled := int(score / 100 * float64(width))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// Issues lists issues one per line as line:column kind message.
func (r *Renderer) Issues(issues []detect.Issue) string {
	var sb strings.Builder
	for _, issue := range issues {
		icon, style := r.theme.Icons.Info, r.muted
		switch {
		case issue.Kind.Critical():
			icon, style = r.theme.Icons.Critical, r.failure
		case issue.Severity == detect.SeverityWarning:
			icon, style = r.theme.Icons.Warning, r.warning
		}
		pos := fmt.Sprintf("%d", issue.Range.Start.Line)
		if issue.Range.Start.Column > 0 {
			pos += fmt.Sprintf(":%d", issue.Range.Start.Column)
		}
		line := fmt.Sprintf("  %s %-7s %-26s %s", icon, pos, issue.Kind, issue.Message)
		sb.WriteString(style.Render(line))
		sb.WriteString("\n")
	}
	return sb.String()
}

// Unit renders one unit with its issues, score and advice.
func (r *Renderer) Unit(rec quality.UnitQualityRecord) string {
	var sb strings.Builder
	sb.WriteString(r.header.Render(rec.UnitName))
	sb.WriteString("\n")
	sb.WriteString(r.muted.Render(fmt.Sprintf("Lines: %d    Complexity: %.2f    Issues: %d",
		rec.LinesOfCode, rec.ComplexityScore, len(rec.Issues))))
	sb.WriteString("\n\n")

	if len(rec.Issues) == 0 {
		sb.WriteString(r.success.Render("  no debugging leftovers found"))
		sb.WriteString("\n")
	} else {
		sb.WriteString(r.Issues(rec.Issues))
	}

	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  Quality %s %s", r.scoreStyle(rec.QualityScore).Render(bar(rec.QualityScore, 20)), r.score(rec.QualityScore)))
	sb.WriteString("\n")

	if recs := quality.Recommendations(rec.Issues); len(recs) > 0 {
		sb.WriteString("\n")
		sb.WriteString(r.header.Render("RECOMMENDATIONS"))
		sb.WriteString("\n")
		for _, line := range recs {
			sb.WriteString("  - " + line + "\n")
		}
	}
	return r.box.Render(strings.TrimRight(sb.String(), "\n"))
}

// Scan renders a full scan: one row per group, then the system summary.
// With details set, every unit with issues is listed under its group.
func (r *Renderer) Scan(rep *pipeline.Report, details bool) string {
	var sb strings.Builder
	sb.WriteString(r.header.Render("FLOW QUALITY"))
	sb.WriteString("\n")
	sb.WriteString(r.muted.Render(fmt.Sprintf("Scan %s    %d groups    %d units    %s",
		shortID(rep.Scan.ID), rep.System.GroupCount, rep.System.TotalUnits, rep.Duration.Round(1e6))))
	sb.WriteString("\n\n")

	for _, g := range rep.Groups {
		rec := g.Group
		line := fmt.Sprintf("  %-28s %s %s  %2d units  %3d issues",
			truncate(rec.GroupName, 28), r.scoreStyle(rec.QualityScore).Render(bar(rec.QualityScore, 16)),
			r.score(rec.QualityScore), rec.TotalUnits, rec.TotalIssues)
		if rec.UnitsWithCriticalIssues > 0 {
			line += r.failure.Render(fmt.Sprintf("  %s %d critical", r.theme.Icons.Critical, rec.UnitsWithCriticalIssues))
		}
		sb.WriteString(line)
		sb.WriteString("\n")

		if !details {
			continue
		}
		for _, u := range g.Units {
			if len(u.Issues) == 0 {
				continue
			}
			sb.WriteString(r.muted.Render(fmt.Sprintf("    %s (%.2f)", u.UnitName, u.QualityScore)))
			sb.WriteString("\n")
			sb.WriteString(indent(r.Issues(u.Issues), "    "))
		}
	}

	sb.WriteString("\n")
	sb.WriteString(r.System(rep.System))
	return r.box.Render(sb.String())
}

// Changed lists the issues that fall on changed lines, per unit. touches
// reports whether a line of the unit with the given id changed.
func (r *Renderer) Changed(rep *pipeline.Report, touches func(unitID string, line int) bool) string {
	var sb strings.Builder
	sb.WriteString(r.header.Render("ON CHANGED LINES"))
	sb.WriteString("\n")
	found := 0
	for _, g := range rep.Groups {
		for _, u := range g.Units {
			var hits []detect.Issue
			for _, is := range u.Issues {
				if touches(u.UnitID, is.Line()) {
					hits = append(hits, is)
				}
			}
			if len(hits) == 0 {
				continue
			}
			found += len(hits)
			sb.WriteString(r.muted.Render(fmt.Sprintf("  %s", u.UnitID)))
			sb.WriteString("\n")
			sb.WriteString(indent(r.Issues(hits), "  "))
		}
	}
	if found == 0 {
		sb.WriteString(r.success.Render("  no issues on changed lines"))
	}
	return r.box.Render(strings.TrimRight(sb.String(), "\n"))
}

// System renders the system summary lines.
func (r *Renderer) System(s quality.SystemTrendRecord) string {
	var sb strings.Builder
	sb.WriteString(r.header.Render("SYSTEM"))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  %-16s %s\n", "Overall quality", r.score(s.OverallQuality)))
	sb.WriteString(fmt.Sprintf("  %-16s %6.2f\n", "Technical debt", s.TechnicalDebt))
	sb.WriteString(fmt.Sprintf("  %-16s %6.2f\n", "Complexity", s.Complexity))
	sb.WriteString(fmt.Sprintf("  %-16s %d of %d units (%d critical)", "Affected", s.AffectedUnits, s.TotalUnits, s.CriticalUnits))
	return sb.String()
}

// Trend renders stored group history, oldest first, with the change between scans.
func (r *Renderer) Trend(points []storage.GroupPoint) string {
	if len(points) == 0 {
		return r.muted.Render("no history")
	}
	var sb strings.Builder
	sb.WriteString(r.header.Render(fmt.Sprintf("TREND: %s", points[len(points)-1].GroupName)))
	sb.WriteString("\n")
	for i, p := range points {
		delta := ""
		if i > 0 {
			delta = r.delta(p.QualityScore - points[i-1].QualityScore)
		}
		sb.WriteString(fmt.Sprintf("  %s  %s  %3d issues  %s\n",
			p.Scan.At.Format("2006-01-02 15:04"), r.score(p.QualityScore), p.TotalIssues, delta))
	}
	return r.box.Render(strings.TrimRight(sb.String(), "\n"))
}

// SystemTrend renders stored system history, oldest first.
func (r *Renderer) SystemTrend(points []storage.SystemPoint) string {
	if len(points) == 0 {
		return r.muted.Render("no history")
	}
	var sb strings.Builder
	sb.WriteString(r.header.Render("TREND: system"))
	sb.WriteString("\n")
	for i, p := range points {
		delta := ""
		if i > 0 {
			delta = r.delta(p.OverallQuality - points[i-1].OverallQuality)
		}
		sb.WriteString(fmt.Sprintf("  %s  %s  debt %6.2f  %3d groups  %s\n",
			p.Scan.At.Format("2006-01-02 15:04"), r.score(p.OverallQuality), p.TechnicalDebt, p.GroupCount, delta))
	}
	return r.box.Render(strings.TrimRight(sb.String(), "\n"))
}

// Latest renders the most recent record of every group, worst first.
func (r *Renderer) Latest(points []storage.GroupPoint) string {
	if len(points) == 0 {
		return r.muted.Render("no history")
	}
	sorted := make([]storage.GroupPoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].QualityScore < sorted[j].QualityScore })

	var sb strings.Builder
	sb.WriteString(r.header.Render("LATEST"))
	sb.WriteString("\n")
	for _, p := range sorted {
		sb.WriteString(fmt.Sprintf("  %-28s %s  %-3s %s\n",
			truncate(p.GroupName, 28), r.score(p.QualityScore), quality.Grade(p.QualityScore),
			r.muted.Render(p.GroupID)))
	}
	return r.box.Render(strings.TrimRight(sb.String(), "\n"))
}

// History renders the stored scores of one unit, oldest first.
func (r *Renderer) History(records []quality.UnitQualityRecord) string {
	if len(records) == 0 {
		return r.muted.Render("no history")
	}
	var sb strings.Builder
	sb.WriteString(r.header.Render(fmt.Sprintf("HISTORY: %s", records[len(records)-1].UnitName)))
	sb.WriteString("\n")
	for i, rec := range records {
		delta := ""
		if i > 0 {
			delta = r.delta(rec.QualityScore - records[i-1].QualityScore)
		}
		sb.WriteString(fmt.Sprintf("  %s  %s  %3d issues  %s\n",
			shortID(rec.ContentHash), r.score(rec.QualityScore), len(rec.Issues), delta))
	}
	return r.box.Render(strings.TrimRight(sb.String(), "\n"))
}

func (r *Renderer) delta(d float64) string {
	switch {
	case d > 0:
		return r.success.Render(fmt.Sprintf("+%.2f", d))
	case d < 0:
		return r.failure.Render(fmt.Sprintf("%.2f", d))
	default:
		return r.muted.Render("=")
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if lipgloss.Width(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) > n-1 {
		r = r[:n-1]
	}
	return string(r) + "…"
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n") + "\n"
}
