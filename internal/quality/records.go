package quality

import (
	"sort"

	"flowlint/internal/detect"
)

// UnitQualityRecord is the scored result of one code unit.
type UnitQualityRecord struct {
	UnitID           string         `json:"unitId"`
	UnitName         string         `json:"unitName"`
	GroupID          string         `json:"groupId,omitempty"`
	ContentHash      string         `json:"contentHash,omitempty"`
	Issues           []detect.Issue `json:"issues"`
	LinesOfCode      int            `json:"linesOfCode"`
	ComplexityScore  float64        `json:"complexityScore"`
	QualityScore     float64        `json:"qualityScore"`
	HasCriticalIssue bool           `json:"hasCriticalIssue"`
}

// Input returns the part of r that group scoring consumes.
func (r UnitQualityRecord) Input() UnitInput {
	return UnitInput{Issues: r.Issues, LinesOfCode: r.LinesOfCode, Complexity: r.ComplexityScore}
}

// UnitInput is what ScoreGroup needs from a unit.
type UnitInput struct {
	Issues      []detect.Issue
	LinesOfCode int
	Complexity  float64
}

// GroupQualityRecord aggregates the units of one group.
type GroupQualityRecord struct {
	GroupID                 string        `json:"groupId"`
	GroupName               string        `json:"groupName"`
	TotalIssues             int           `json:"totalIssues"`
	UnitsWithIssues         int           `json:"unitsWithIssues"`
	UnitsWithCriticalIssues int           `json:"unitsWithCriticalIssues"`
	TotalUnits              int           `json:"totalUnits"`
	DistinctIssueKinds      []detect.Kind `json:"distinctIssueKinds"`
	QualityScore            float64       `json:"qualityScore"`
	ComplexityScore         float64       `json:"complexityScore"`
}

// SystemTrendRecord aggregates every group of a scan.
type SystemTrendRecord struct {
	OverallQuality float64 `json:"overallQuality"`
	TechnicalDebt  float64 `json:"technicalDebt"`
	Complexity     float64 `json:"complexity"`
	GroupCount     int     `json:"groupCount"`
	TotalUnits     int     `json:"totalUnits"`
	TotalIssues    int     `json:"totalIssues"`
	AffectedUnits  int     `json:"affectedUnits"`
	CriticalUnits  int     `json:"criticalUnits"`
}

// Assess builds the record of a unit whose issues are already known.
func (s *Scorer) Assess(id, name, src string, issues []detect.Issue) UnitQualityRecord {
	loc := LinesOfCode(src)
	return UnitQualityRecord{
		UnitID:           id,
		UnitName:         name,
		Issues:           issues,
		LinesOfCode:      loc,
		ComplexityScore:  Complexity(src),
		QualityScore:     s.ScoreUnit(issues, loc),
		HasCriticalIssue: HasCritical(issues),
	}
}

// sortedKinds returns the keys of set in reporting order.
func sortedKinds(set map[detect.Kind]bool) []detect.Kind {
	order := make(map[detect.Kind]int, len(detect.Kinds))
	for i, k := range detect.Kinds {
		order[k] = i
	}
	kinds := make([]detect.Kind, 0, len(set))
	for k := range set {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return order[kinds[i]] < order[kinds[j]] })
	return kinds
}
