package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"flowlint/internal/quality"
)

// Store is the metrics store: an insert-only history of scan results.
type Store interface {
	Sink
	Querier
	Close() error
}

// Scan identifies one scan run. Every record written by the run carries it.
type Scan struct {
	ID string    `json:"scanId"`
	At time.Time `json:"scannedAt"`
}

// NewScan starts a scan run stamped with the current time.
func NewScan() Scan {
	return Scan{ID: uuid.NewString(), At: time.Now().UTC()}
}

// Sample is one point of a host-supplied numeric series, such as CPU load or
// event-loop lag. The store does not interpret it.
type Sample struct {
	Metric string
	Value  float64
	At     time.Time
}

// Sink accepts scan results. Writes never overwrite earlier scans.
type Sink interface {
	SaveUnits(ctx context.Context, scan Scan, units []quality.UnitQualityRecord) error
	SaveGroup(ctx context.Context, scan Scan, group quality.GroupQualityRecord) error
	SaveSystem(ctx context.Context, scan Scan, system quality.SystemTrendRecord) error
	SaveSamples(ctx context.Context, scan Scan, samples []Sample) error
}

// Querier reads history back.
type Querier interface {
	// GroupTrend returns the group's records since the given time, oldest first.
	GroupTrend(ctx context.Context, groupID string, since time.Time) ([]GroupPoint, error)
	// LatestGroups returns the most recent record of every group.
	LatestGroups(ctx context.Context) ([]GroupPoint, error)
	// SystemTrend returns system records since the given time, oldest first.
	SystemTrend(ctx context.Context, since time.Time) ([]SystemPoint, error)
	// Prune deletes everything recorded before the given time and reports
	// how many rows went.
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// GroupPoint is a stored group record.
type GroupPoint struct {
	Scan
	quality.GroupQualityRecord
}

// SystemPoint is a stored system record.
type SystemPoint struct {
	Scan
	quality.SystemTrendRecord
}
