package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/multierr"

	"flowlint/internal/detect"
	"flowlint/internal/quality"
)

type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	// single writer
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, multierr.Append(err, db.Close())
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, multierr.Append(fmt.Errorf("failed to init schema: %w", err), db.Close())
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS unit_quality (
			scan_id TEXT NOT NULL,
			scanned_at INTEGER NOT NULL,
			group_id TEXT,
			unit_id TEXT NOT NULL,
			unit_name TEXT,
			content_hash TEXT,
			lines_of_code INTEGER,
			complexity REAL,
			quality_score REAL,
			has_critical INTEGER,
			issues JSON
		);`,
		`CREATE TABLE IF NOT EXISTS group_quality (
			scan_id TEXT NOT NULL,
			scanned_at INTEGER NOT NULL,
			group_id TEXT NOT NULL,
			group_name TEXT,
			total_issues INTEGER,
			units_with_issues INTEGER,
			critical_units INTEGER,
			total_units INTEGER,
			issue_kinds JSON,
			quality_score REAL,
			complexity REAL
		);`,
		`CREATE TABLE IF NOT EXISTS system_trends (
			scan_id TEXT NOT NULL,
			scanned_at INTEGER NOT NULL,
			overall_quality REAL,
			technical_debt REAL,
			complexity REAL,
			group_count INTEGER,
			total_units INTEGER,
			total_issues INTEGER,
			affected_units INTEGER,
			critical_units INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS perf_samples (
			scan_id TEXT,
			sampled_at INTEGER NOT NULL,
			metric TEXT NOT NULL,
			value REAL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_unit_quality_unit ON unit_quality(unit_id, scanned_at);`,
		`CREATE INDEX IF NOT EXISTS idx_group_quality_group ON group_quality(group_id, scanned_at);`,
		`CREATE INDEX IF NOT EXISTS idx_system_trends_time ON system_trends(scanned_at);`,
		`CREATE INDEX IF NOT EXISTS idx_perf_samples_time ON perf_samples(metric, sampled_at);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// withTx runs fn in a transaction, rolling back when fn fails.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, tx.Rollback())
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// --- Sink Implementation ---

func (s *SQLiteStore) SaveUnits(ctx context.Context, scan Scan, units []quality.UnitQualityRecord) error {
	if len(units) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO unit_quality (scan_id, scanned_at, group_id, unit_id, unit_name, content_hash, lines_of_code, complexity, quality_score, has_critical, issues)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, u := range units {
			issues, err := json.Marshal(u.Issues)
			if err != nil {
				return fmt.Errorf("encode issues of %s: %w", u.UnitID, err)
			}
			if _, err := stmt.ExecContext(ctx, scan.ID, scan.At.UnixMilli(), u.GroupID, u.UnitID, u.UnitName, u.ContentHash,
				u.LinesOfCode, u.ComplexityScore, u.QualityScore, u.HasCriticalIssue, issues); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) SaveGroup(ctx context.Context, scan Scan, g quality.GroupQualityRecord) error {
	kinds, err := json.Marshal(g.DistinctIssueKinds)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO group_quality (scan_id, scanned_at, group_id, group_name, total_issues, units_with_issues, critical_units, total_units, issue_kinds, quality_score, complexity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, scan.ID, scan.At.UnixMilli(), g.GroupID, g.GroupName, g.TotalIssues, g.UnitsWithIssues, g.UnitsWithCriticalIssues,
		g.TotalUnits, kinds, g.QualityScore, g.ComplexityScore)
	return err
}

func (s *SQLiteStore) SaveSystem(ctx context.Context, scan Scan, r quality.SystemTrendRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO system_trends (scan_id, scanned_at, overall_quality, technical_debt, complexity, group_count, total_units, total_issues, affected_units, critical_units)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, scan.ID, scan.At.UnixMilli(), r.OverallQuality, r.TechnicalDebt, r.Complexity, r.GroupCount, r.TotalUnits,
		r.TotalIssues, r.AffectedUnits, r.CriticalUnits)
	return err
}

func (s *SQLiteStore) SaveSamples(ctx context.Context, scan Scan, samples []Sample) error {
	if len(samples) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO perf_samples (scan_id, sampled_at, metric, value) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, sample := range samples {
			at := sample.At
			if at.IsZero() {
				at = scan.At
			}
			if _, err := stmt.ExecContext(ctx, scan.ID, at.UnixMilli(), sample.Metric, sample.Value); err != nil {
				return err
			}
		}
		return nil
	})
}

// --- Querier Implementation ---

const groupColumns = `scan_id, scanned_at, group_id, group_name, total_issues, units_with_issues, critical_units, total_units, issue_kinds, quality_score, complexity`

func (s *SQLiteStore) GroupTrend(ctx context.Context, groupID string, since time.Time) ([]GroupPoint, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+groupColumns+` FROM group_quality
		WHERE group_id = ? AND scanned_at >= ? ORDER BY scanned_at, rowid`, groupID, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to query group trend: %w", err)
	}
	return scanGroups(rows)
}

func (s *SQLiteStore) LatestGroups(ctx context.Context) ([]GroupPoint, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+groupColumns+` FROM group_quality g
		WHERE rowid = (SELECT rowid FROM group_quality WHERE group_id = g.group_id ORDER BY scanned_at DESC, rowid DESC LIMIT 1)
		ORDER BY group_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest groups: %w", err)
	}
	return scanGroups(rows)
}

func scanGroups(rows *sql.Rows) ([]GroupPoint, error) {
	defer rows.Close()

	var points []GroupPoint
	for rows.Next() {
		var p GroupPoint
		var at int64
		var kinds []byte
		if err := rows.Scan(&p.Scan.ID, &at, &p.GroupID, &p.GroupName, &p.TotalIssues, &p.UnitsWithIssues,
			&p.UnitsWithCriticalIssues, &p.TotalUnits, &kinds, &p.QualityScore, &p.ComplexityScore); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		p.Scan.At = time.UnixMilli(at).UTC()
		p.DistinctIssueKinds = []detect.Kind{}
		if len(kinds) > 0 {
			if err := json.Unmarshal(kinds, &p.DistinctIssueKinds); err != nil {
				return nil, fmt.Errorf("decode issue kinds of %s: %w", p.GroupID, err)
			}
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func (s *SQLiteStore) SystemTrend(ctx context.Context, since time.Time) ([]SystemPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scan_id, scanned_at, overall_quality, technical_debt, complexity, group_count, total_units, total_issues, affected_units, critical_units
		FROM system_trends WHERE scanned_at >= ? ORDER BY scanned_at, rowid`, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to query system trend: %w", err)
	}
	defer rows.Close()

	var points []SystemPoint
	for rows.Next() {
		var p SystemPoint
		var at int64
		if err := rows.Scan(&p.Scan.ID, &at, &p.OverallQuality, &p.TechnicalDebt, &p.Complexity, &p.GroupCount,
			&p.TotalUnits, &p.TotalIssues, &p.AffectedUnits, &p.CriticalUnits); err != nil {
			return nil, fmt.Errorf("failed to scan system trend: %w", err)
		}
		p.Scan.At = time.UnixMilli(at).UTC()
		points = append(points, p)
	}
	return points, rows.Err()
}

// UnitHistory returns the stored records of one unit, oldest first.
func (s *SQLiteStore) UnitHistory(ctx context.Context, unitID string) ([]quality.UnitQualityRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT group_id, unit_id, unit_name, content_hash, lines_of_code, complexity, quality_score, has_critical, issues
		FROM unit_quality WHERE unit_id = ? ORDER BY scanned_at, rowid`, unitID)
	if err != nil {
		return nil, fmt.Errorf("failed to query unit history: %w", err)
	}
	defer rows.Close()

	var records []quality.UnitQualityRecord
	for rows.Next() {
		var r quality.UnitQualityRecord
		var issues []byte
		if err := rows.Scan(&r.GroupID, &r.UnitID, &r.UnitName, &r.ContentHash, &r.LinesOfCode, &r.ComplexityScore,
			&r.QualityScore, &r.HasCriticalIssue, &issues); err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		if len(issues) > 0 {
			if err := json.Unmarshal(issues, &r.Issues); err != nil {
				return nil, fmt.Errorf("decode issues of %s: %w", r.UnitID, err)
			}
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	cutoff := before.UnixMilli()
	var removed int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, q := range []string{
			`DELETE FROM unit_quality WHERE scanned_at < ?`,
			`DELETE FROM group_quality WHERE scanned_at < ?`,
			`DELETE FROM system_trends WHERE scanned_at < ?`,
			`DELETE FROM perf_samples WHERE sampled_at < ?`,
		} {
			res, err := tx.ExecContext(ctx, q, cutoff)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			removed += n
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("prune: %w", err)
	}
	return removed, nil
}
