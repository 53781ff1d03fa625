// Package notify builds quality alerts for groups and delivers them.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"flowlint/internal/detect"
	"flowlint/internal/quality"
)

// Severity classifies an alert.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Alert is the payload handed to a notification sink.
type Alert struct {
	ID              string              `json:"id"`
	CreatedAt       time.Time           `json:"createdAt"`
	GroupID         string              `json:"groupId"`
	GroupName       string              `json:"groupName"`
	Score           float64             `json:"score"`
	Grade           string              `json:"grade"`
	Severity        Severity            `json:"severity"`
	IssueCounts     map[detect.Kind]int `json:"issueCounts"`
	Units           []UnitSummary       `json:"units"`
	Recommendations []string            `json:"recommendations,omitempty"`
}

// UnitSummary lists the issues of one unit that contributed to an alert.
type UnitSummary struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Score    float64        `json:"score"`
	Critical bool           `json:"critical"`
	Issues   []detect.Issue `json:"issues"`
}

// Sink delivers alerts.
type Sink interface {
	Notify(ctx context.Context, alert Alert) error
}

// BuildAlert summarizes a scored group. Only units with issues are listed.
// The alert is critical when any unit has a critical issue, a warning when the
// group scores below threshold, and info otherwise.
func BuildAlert(group quality.GroupQualityRecord, units []quality.UnitQualityRecord, threshold float64) Alert {
	alert := Alert{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		GroupID:     group.GroupID,
		GroupName:   group.GroupName,
		Score:       group.QualityScore,
		Grade:       quality.Grade(group.QualityScore),
		Severity:    SeverityInfo,
		IssueCounts: make(map[detect.Kind]int),
	}

	var all []detect.Issue
	for _, u := range units {
		if len(u.Issues) == 0 {
			continue
		}
		alert.Units = append(alert.Units, UnitSummary{
			ID:       u.UnitID,
			Name:     u.UnitName,
			Score:    u.QualityScore,
			Critical: u.HasCriticalIssue,
			Issues:   u.Issues,
		})
		for _, issue := range u.Issues {
			alert.IssueCounts[issue.Kind]++
		}
		all = append(all, u.Issues...)
	}
	alert.Recommendations = quality.Recommendations(all)

	switch {
	case group.UnitsWithCriticalIssues > 0:
		alert.Severity = SeverityCritical
	case group.QualityScore < threshold:
		alert.Severity = SeverityWarning
	}
	return alert
}

// ShouldAlert reports whether a group is worth notifying about.
func ShouldAlert(group quality.GroupQualityRecord, threshold float64) bool {
	return group.UnitsWithCriticalIssues > 0 || group.QualityScore < threshold
}
