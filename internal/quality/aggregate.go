package quality

import (
	"math"

	"flowlint/internal/detect"
)

const (
	groupCriticalPenalty = 60.0
	groupFaultyPenalty   = 25.0
	complexityDivisor    = 1.5
	maxComplexityPenalty = 40.0
	groupCriticalCap     = 50.0
	groupMajorityCap     = 30.0

	systemCriticalPenalty = 70.0
	systemAffectedRatio   = 0.25
	systemAffectedCap     = 60.0
	systemCriticalCap     = 65.0
	debtIssueFactor       = 35.0
	debtCriticalFactor    = 40.0
)

// ScoreGroup aggregates units with the default weights.
func ScoreGroup(units []UnitInput) GroupQualityRecord {
	return defaultScorer.ScoreGroup(units)
}

// ScoreSystem aggregates groups with the default weights.
func ScoreSystem(groups []GroupQualityRecord) SystemTrendRecord {
	return defaultScorer.ScoreSystem(groups)
}

// ScoreGroup scores every unit and folds the results into a group record.
// The caller fills in GroupID and GroupName. An empty group scores 100.
func (s *Scorer) ScoreGroup(units []UnitInput) GroupQualityRecord {
	rec := GroupQualityRecord{
		TotalUnits:         len(units),
		QualityScore:       maxScore,
		DistinctIssueKinds: []detect.Kind{},
	}
	if len(units) == 0 {
		return rec
	}

	kinds := make(map[detect.Kind]bool)
	var sumScore, sumComplexity float64
	for _, u := range units {
		sumScore += s.ScoreUnit(u.Issues, u.LinesOfCode)
		sumComplexity += u.Complexity
		rec.TotalIssues += len(u.Issues)
		if len(u.Issues) > 0 {
			rec.UnitsWithIssues++
		}
		if HasCritical(u.Issues) {
			rec.UnitsWithCriticalIssues++
		}
		for _, issue := range u.Issues {
			kinds[issue.Kind] = true
		}
	}
	rec.DistinctIssueKinds = sortedKinds(kinds)

	total := float64(len(units))
	meanComplexity := sumComplexity / total
	rec.ComplexityScore = round2(meanComplexity)

	score := sumScore / total
	score -= float64(rec.UnitsWithCriticalIssues) / total * groupCriticalPenalty
	score -= float64(rec.UnitsWithIssues) / total * groupFaultyPenalty
	if rec.UnitsWithIssues > 0 {
		score -= math.Min(meanComplexity/complexityDivisor, maxComplexityPenalty)
	}
	if rec.UnitsWithCriticalIssues > 0 {
		score = math.Min(score, groupCriticalCap)
	}
	if float64(rec.UnitsWithIssues) > total/2 {
		score = math.Min(score, groupMajorityCap)
	}
	rec.QualityScore = round2(math.Max(0, score))
	return rec
}

// ScoreSystem folds group records into the system-wide trend record. Groups
// count in proportion to their unit count. With no units at all the system
// scores 100 with zero debt and complexity.
func (s *Scorer) ScoreSystem(groups []GroupQualityRecord) SystemTrendRecord {
	rec := SystemTrendRecord{OverallQuality: maxScore, GroupCount: len(groups)}

	var weightedScore, weightedComplexity float64
	for _, g := range groups {
		rec.TotalUnits += g.TotalUnits
		rec.TotalIssues += g.TotalIssues
		rec.AffectedUnits += g.UnitsWithIssues
		rec.CriticalUnits += g.UnitsWithCriticalIssues
		weightedScore += g.QualityScore * float64(g.TotalUnits)
		weightedComplexity += g.ComplexityScore * float64(g.TotalUnits)
	}
	if rec.TotalUnits == 0 {
		return rec
	}

	total := float64(rec.TotalUnits)
	criticalRatio := float64(rec.CriticalUnits) / total

	score := weightedScore / total
	score -= criticalRatio * systemCriticalPenalty
	if float64(rec.AffectedUnits)/total > systemAffectedRatio {
		score = math.Min(score, systemAffectedCap)
	}
	if rec.CriticalUnits > 0 {
		score = math.Min(score, systemCriticalCap)
	}
	rec.OverallQuality = round2(clamp(score, 0, maxScore))

	debt := math.Min(float64(rec.TotalIssues)/total*debtIssueFactor, maxScore)
	debt += criticalRatio * debtCriticalFactor
	rec.TechnicalDebt = round2(clamp(debt, 0, maxScore))
	rec.Complexity = round2(weightedComplexity / total)
	return rec
}
