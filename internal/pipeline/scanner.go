// Package pipeline scans groups of units, scores them and hands the results
// to the metrics store and the notification sink.
package pipeline

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeebo/blake3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"flowlint/internal/detect"
	"flowlint/internal/notify"
	"flowlint/internal/quality"
	"flowlint/internal/source"
	"flowlint/internal/storage"
)

const defaultQueueSize = 64

// Config tunes a Scanner.
type Config struct {
	Level       int
	Detect      detect.Options
	Concurrency int
	// AlertBelow is the group score under which an alert is sent. Groups
	// with a critical unit alert regardless.
	AlertBelow float64
	QueueSize  int
}

// GroupResult is the outcome of scanning one group.
type GroupResult struct {
	Group quality.GroupQualityRecord
	Units []quality.UnitQualityRecord
	Alert *notify.Alert
}

// Report is the outcome of scanning every group of the provider.
type Report struct {
	Scan     storage.Scan
	Groups   []GroupResult
	System   quality.SystemTrendRecord
	Duration time.Duration
	Stats    Stats
}

// Stats counts scanner work since it was created.
type Stats struct {
	Analyzed  int64
	CacheHits int64
	Alerts    int64
}

// Scanner runs detection and scoring over a source.Provider. It is safe for
// concurrent use. Close must be called to flush pending store writes.
type Scanner struct {
	provider source.Provider
	detector *detect.Detector
	scorer   *quality.Scorer
	cfg      Config
	sink     storage.Sink
	notifier notify.Sink
	logger   *zap.Logger

	flight singleflight.Group
	mu     sync.RWMutex
	cache  map[string][]detect.Issue
	used   map[string]bool

	writer *writer

	analyzed  atomic.Int64
	cacheHits atomic.Int64
	alerts    atomic.Int64
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithSink persists every record to sink.
func WithSink(sink storage.Sink) Option {
	return func(s *Scanner) { s.sink = sink }
}

// WithNotifier sends group alerts to n.
func WithNotifier(n notify.Sink) Option {
	return func(s *Scanner) { s.notifier = n }
}

// WithLogger sets the scanner logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewScanner(provider source.Provider, detector *detect.Detector, scorer *quality.Scorer, cfg Config, opts ...Option) *Scanner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	cfg.Level = detect.ClampLevel(cfg.Level)
	s := &Scanner{
		provider: provider,
		detector: detector,
		scorer:   scorer,
		cfg:      cfg,
		logger:   zap.NewNop(),
		cache:    make(map[string][]detect.Issue),
		used:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.writer = newWriter(cfg.QueueSize, s.logger)
	return s
}

// ScanAll scans every group concurrently, then scores the system.
func (s *Scanner) ScanAll(ctx context.Context) (*Report, error) {
	start := time.Now()
	scan := storage.NewScan()

	groups, err := s.provider.Groups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	results := make([]GroupResult, len(groups))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.cfg.Concurrency)
	for i, g := range groups {
		i, g := i, g
		eg.Go(func() error {
			res, err := s.scanGroup(egCtx, scan, g)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	records := make([]quality.GroupQualityRecord, len(results))
	for i, r := range results {
		records[i] = r.Group
	}
	system := s.scorer.ScoreSystem(records)
	if s.sink != nil {
		if err := s.writer.enqueue(ctx, "system", func(ctx context.Context) error {
			return s.sink.SaveSystem(ctx, scan, system)
		}); err != nil {
			return nil, err
		}
	}

	report := &Report{
		Scan:     scan,
		Groups:   results,
		System:   system,
		Duration: time.Since(start),
		Stats:    s.Stats(),
	}
	s.logger.Info("scan complete",
		zap.String("scan", scan.ID),
		zap.Int("groups", len(groups)),
		zap.Int("units", system.TotalUnits),
		zap.Float64("quality", system.OverallQuality),
		zap.Duration("took", report.Duration),
	)
	return report, nil
}

// ScanGroup scans a single group as its own scan run.
func (s *Scanner) ScanGroup(ctx context.Context, group source.Group) (GroupResult, error) {
	return s.scanGroup(ctx, storage.NewScan(), group)
}

func (s *Scanner) scanGroup(ctx context.Context, scan storage.Scan, group source.Group) (GroupResult, error) {
	units, err := s.provider.Units(ctx, group.ID)
	if err != nil {
		return GroupResult{}, fmt.Errorf("group %s: %w", group.ID, err)
	}

	res := GroupResult{Units: make([]quality.UnitQualityRecord, 0, len(units))}
	inputs := make([]quality.UnitInput, 0, len(units))
	for _, u := range units {
		if err := ctx.Err(); err != nil {
			return GroupResult{}, err
		}
		rec := s.assess(u)
		rec.GroupID = group.ID
		res.Units = append(res.Units, rec)
		inputs = append(inputs, rec.Input())
	}

	res.Group = s.scorer.ScoreGroup(inputs)
	res.Group.GroupID = group.ID
	res.Group.GroupName = group.Name

	if s.sink != nil {
		unitRecords, groupRecord := res.Units, res.Group
		if err := s.writer.enqueue(ctx, "units "+group.ID, func(ctx context.Context) error {
			return s.sink.SaveUnits(ctx, scan, unitRecords)
		}); err != nil {
			return GroupResult{}, err
		}
		if err := s.writer.enqueue(ctx, "group "+group.ID, func(ctx context.Context) error {
			return s.sink.SaveGroup(ctx, scan, groupRecord)
		}); err != nil {
			return GroupResult{}, err
		}
	}

	if notify.ShouldAlert(res.Group, s.cfg.AlertBelow) {
		alert := notify.BuildAlert(res.Group, res.Units, s.cfg.AlertBelow)
		res.Alert = &alert
		s.alert(ctx, alert)
	}

	s.logger.Debug("group scanned",
		zap.String("group", group.ID),
		zap.Int("units", res.Group.TotalUnits),
		zap.Int("issues", res.Group.TotalIssues),
		zap.Float64("quality", res.Group.QualityScore),
	)
	return res, nil
}

// alert delivers to the notifier. Delivery failures are logged; they do not
// fail the scan.
func (s *Scanner) alert(ctx context.Context, alert notify.Alert) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, alert); err != nil {
		s.logger.Warn("alert delivery failed", zap.String("group", alert.GroupID), zap.Error(err))
		return
	}
	s.alerts.Add(1)
}

func (s *Scanner) assess(u source.Unit) quality.UnitQualityRecord {
	hash := ContentHash(u.Source)
	issues := s.issues(hash, u.Source)
	rec := s.scorer.Assess(u.ID, u.Name, u.Source, issues)
	rec.ContentHash = hash
	return rec
}

// issues runs the detector once per distinct source and level. Concurrent
// requests for the same source share one run.
func (s *Scanner) issues(hash, src string) []detect.Issue {
	key := hash + ":" + strconv.Itoa(s.cfg.Level)

	s.mu.Lock()
	cached, ok := s.cache[key]
	s.used[key] = true
	s.mu.Unlock()
	if ok {
		s.cacheHits.Add(1)
		return cached
	}

	detected := false
	v, _, _ := s.flight.Do(key, func() (any, error) {
		s.mu.RLock()
		cached, ok := s.cache[key]
		s.mu.RUnlock()
		if ok {
			return cached, nil
		}
		issues := s.detector.Detect(src, s.cfg.Level, s.cfg.Detect)
		detected = true
		s.analyzed.Add(1)
		s.mu.Lock()
		s.cache[key] = issues
		s.used[key] = true
		s.mu.Unlock()
		return issues, nil
	})
	if !detected {
		s.cacheHits.Add(1)
	}
	return v.([]detect.Issue)
}

// RecordSamples stores host-supplied numeric series with a scan.
func (s *Scanner) RecordSamples(ctx context.Context, scan storage.Scan, samples []storage.Sample) error {
	if s.sink == nil || len(samples) == 0 {
		return nil
	}
	return s.writer.enqueue(ctx, "samples", func(ctx context.Context) error {
		return s.sink.SaveSamples(ctx, scan, samples)
	})
}

// Flush waits for every queued store write to finish.
func (s *Scanner) Flush(ctx context.Context) error {
	return s.writer.flush(ctx)
}

// Forget drops cached detection results that no scan used since the previous
// Forget, such as results for source that has since been edited.
func (s *Scanner) Forget() {
	s.mu.Lock()
	for key := range s.cache {
		if !s.used[key] {
			delete(s.cache, key)
		}
	}
	s.used = make(map[string]bool)
	s.mu.Unlock()
}

func (s *Scanner) Stats() Stats {
	return Stats{
		Analyzed:  s.analyzed.Load(),
		CacheHits: s.cacheHits.Load(),
		Alerts:    s.alerts.Load(),
	}
}

// Close drains pending writes and reports every write that failed.
func (s *Scanner) Close() error {
	return s.writer.close()
}

// ContentHash is the hex blake3 digest of a unit's source.
func ContentHash(src string) string {
	sum := blake3.Sum256([]byte(src))
	return hex.EncodeToString(sum[:])
}

// ScanSamples turns a report into perf samples for the metrics store.
func ScanSamples(r *Report) []storage.Sample {
	at := r.Scan.At
	return []storage.Sample{
		{Metric: "scan.duration_ms", Value: float64(r.Duration.Milliseconds()), At: at},
		{Metric: "scan.units", Value: float64(r.System.TotalUnits), At: at},
		{Metric: "scan.analyzed", Value: float64(r.Stats.Analyzed), At: at},
		{Metric: "scan.cache_hits", Value: float64(r.Stats.CacheHits), At: at},
	}
}
