package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowlint/internal/detect"
	"flowlint/internal/notify"
	"flowlint/internal/quality"
	"flowlint/internal/source"
	"flowlint/internal/storage"
)

type memorySink struct {
	mu      sync.Mutex
	units   []quality.UnitQualityRecord
	groups  []quality.GroupQualityRecord
	systems []quality.SystemTrendRecord
	samples []storage.Sample
	scans   map[string]bool
	fail    error
}

func newMemorySink() *memorySink {
	return &memorySink{scans: make(map[string]bool)}
}

func (m *memorySink) SaveUnits(_ context.Context, scan storage.Scan, units []quality.UnitQualityRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scans[scan.ID] = true
	m.units = append(m.units, units...)
	return m.fail
}

func (m *memorySink) SaveGroup(_ context.Context, scan storage.Scan, g quality.GroupQualityRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scans[scan.ID] = true
	m.groups = append(m.groups, g)
	return m.fail
}

func (m *memorySink) SaveSystem(_ context.Context, scan storage.Scan, r quality.SystemTrendRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scans[scan.ID] = true
	m.systems = append(m.systems, r)
	return m.fail
}

func (m *memorySink) SaveSamples(_ context.Context, _ storage.Scan, samples []storage.Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, samples...)
	return m.fail
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []notify.Alert
	err    error
}

func (r *recordingNotifier) Notify(_ context.Context, a notify.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return r.err
}

func fixture() *source.Static {
	return source.NewStatic(
		source.Unit{ID: "n1", Name: "validate", GroupID: "t1", Source: "if (!msg.payload) {\n  return;\n}\nreturn msg;\n"},
		source.Unit{ID: "n2", Name: "debug", GroupID: "t1", Source: "console.log(msg);\ndebugger;\nreturn;\n"},
		source.Unit{ID: "n3", Name: "pass", GroupID: "t2", Source: "return msg;\n"},
		source.Unit{ID: "n4", Name: "pass copy", GroupID: "t2", Source: "return msg;\n"},
	).Name("t1", "Orders").Name("t2", "Clean")
}

func newTestScanner(provider source.Provider, opts ...Option) *Scanner {
	cfg := Config{Level: 2, Concurrency: 2, AlertBelow: 50}
	return NewScanner(provider, detect.NewDetector(detect.DefaultHost()), quality.NewScorer(nil, 0), cfg, opts...)
}

func TestScanner_ScanAll(t *testing.T) {
	sink := newMemorySink()
	notifier := &recordingNotifier{}
	s := newTestScanner(fixture(), WithSink(sink), WithNotifier(notifier))

	report, err := s.ScanAll(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	require.Len(t, report.Groups, 2)
	orders, clean := report.Groups[0], report.Groups[1]

	assert.Equal(t, "t1", orders.Group.GroupID)
	assert.Equal(t, "Orders", orders.Group.GroupName)
	assert.Equal(t, 2, orders.Group.TotalUnits)
	assert.Equal(t, 1, orders.Group.UnitsWithCriticalIssues)
	assert.LessOrEqual(t, orders.Group.QualityScore, 50.0)
	require.NotNil(t, orders.Alert)
	assert.Equal(t, notify.SeverityCritical, orders.Alert.Severity)

	assert.Equal(t, 100.0, clean.Group.QualityScore)
	assert.Nil(t, clean.Alert)
	assert.Equal(t, ContentHash("return msg;\n"), clean.Units[0].ContentHash)
	assert.Equal(t, "t2", clean.Units[0].GroupID)

	assert.Equal(t, 2, report.System.GroupCount)
	assert.Equal(t, 4, report.System.TotalUnits)
	assert.Equal(t, 1, report.System.CriticalUnits)
	assert.LessOrEqual(t, report.System.OverallQuality, 65.0)

	assert.Len(t, sink.units, 4)
	assert.Len(t, sink.groups, 2)
	assert.Len(t, sink.systems, 1)
	assert.Len(t, sink.scans, 1, "every record of a run shares the scan id")
	assert.True(t, sink.scans[report.Scan.ID])

	require.Len(t, notifier.alerts, 1)
	assert.Equal(t, "t1", notifier.alerts[0].GroupID)
	assert.Equal(t, int64(1), report.Stats.Alerts)
}

func TestScanner_IdenticalSourceAnalyzedOnce(t *testing.T) {
	s := newTestScanner(fixture())
	defer s.Close()

	_, err := s.ScanAll(context.Background())
	require.NoError(t, err)
	stats := s.Stats()
	assert.Equal(t, int64(3), stats.Analyzed)
	assert.Equal(t, int64(1), stats.CacheHits)

	_, err = s.ScanAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), s.Stats().Analyzed)

	s.Forget()
	s.Forget()
	_, err = s.ScanAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(6), s.Stats().Analyzed)
}

func TestScanner_ForgetKeepsResultsInUse(t *testing.T) {
	units := []source.Unit{
		{ID: "a", GroupID: "g", Source: "debugger;\n"},
		{ID: "b", GroupID: "g", Source: "return msg;\n"},
	}
	s := newTestScanner(source.NewStatic(units...))
	defer s.Close()
	ctx := context.Background()

	_, err := s.ScanAll(ctx)
	require.NoError(t, err)
	s.Forget()

	units[1].Source = "return msg.payload;\n"
	s.provider = source.NewStatic(units...)
	_, err = s.ScanAll(ctx)
	require.NoError(t, err)
	s.Forget()

	assert.Len(t, s.cache, 2, "the edited unit's old result is dropped")
	assert.Contains(t, s.cache, ContentHash("debugger;\n")+":2")
	assert.NotContains(t, s.cache, ContentHash("return msg;\n")+":2")
	assert.Equal(t, int64(3), s.Stats().Analyzed)
}

func TestScanner_ConcurrentIdenticalUnits(t *testing.T) {
	var units []source.Unit
	for i := 0; i < 40; i++ {
		units = append(units, source.Unit{ID: fmt.Sprintf("u%d", i), GroupID: fmt.Sprintf("g%d", i%8), Source: "debugger;\n"})
	}
	s := NewScanner(source.NewStatic(units...), detect.NewDetector(detect.DefaultHost()), quality.NewScorer(nil, 0),
		Config{Level: 2, Concurrency: 8})
	defer s.Close()

	report, err := s.ScanAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 40, report.System.TotalUnits)
	assert.Equal(t, int64(1), s.Stats().Analyzed)
	assert.Equal(t, int64(39), s.Stats().CacheHits)
}

func TestScanner_WriteErrorsSurfaceOnClose(t *testing.T) {
	sink := newMemorySink()
	sink.fail = errors.New("disk full")
	s := newTestScanner(fixture(), WithSink(sink))

	_, err := s.ScanAll(context.Background())
	require.NoError(t, err, "store failures do not fail the scan")

	err = s.Close()
	require.Error(t, err)
	assert.ErrorIs(t, err, sink.fail)
	assert.Contains(t, err.Error(), "system")
}

func TestScanner_AlertFailureIsLogged(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("unreachable")}
	s := newTestScanner(fixture(), WithNotifier(notifier))
	defer s.Close()

	report, err := s.ScanAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, notifier.alerts, 1)
	assert.Zero(t, report.Stats.Alerts)
}

func TestScanner_ScanGroup(t *testing.T) {
	sink := newMemorySink()
	s := newTestScanner(fixture(), WithSink(sink))

	res, err := s.ScanGroup(context.Background(), source.Group{ID: "t2", Name: "Clean"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.Equal(t, "t2", res.Group.GroupID)
	assert.Equal(t, 100.0, res.Group.QualityScore)
	assert.Len(t, sink.groups, 1)
	assert.Empty(t, sink.systems, "a single group scan stores no system record")
}

func TestScanner_ProviderError(t *testing.T) {
	s := newTestScanner(fixture())
	defer s.Close()

	_, err := s.ScanGroup(context.Background(), source.Group{ID: "missing"})
	assert.ErrorIs(t, err, source.ErrUnknownGroup)
}

func TestScanner_Cancelled(t *testing.T) {
	s := newTestScanner(fixture())
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.ScanAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScanner_SQLiteRoundTrip(t *testing.T) {
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "metrics.db"))
	require.NoError(t, err)
	defer store.Close()

	s := newTestScanner(fixture(), WithSink(store))
	report, err := s.ScanAll(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.RecordSamples(context.Background(), report.Scan, ScanSamples(report)))
	require.NoError(t, s.Flush(context.Background()))

	latest, err := store.LatestGroups(context.Background())
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, report.Scan.ID, latest[0].Scan.ID)
	assert.Equal(t, report.Groups[0].Group.QualityScore, latest[0].QualityScore)

	history, err := store.UnitHistory(context.Background(), "n2")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].HasCriticalIssue)

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.RecordSamples(context.Background(), report.Scan, ScanSamples(report)), errWriterClosed)
}

func TestContentHash(t *testing.T) {
	assert.Len(t, ContentHash(""), 64)
	assert.Equal(t, ContentHash("a"), ContentHash("a"))
	assert.NotEqual(t, ContentHash("a"), ContentHash("b"))
}
