package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"flowlint/internal/config"
	"flowlint/internal/crawler"
	"flowlint/internal/detect"
	"flowlint/internal/flows"
	"flowlint/internal/git"
	"flowlint/internal/notify"
	"flowlint/internal/pipeline"
	"flowlint/internal/quality"
	"flowlint/internal/report"
	"flowlint/internal/source"
	"flowlint/internal/storage"
	"flowlint/internal/watch"
)

var (
	rootCmd = &cobra.Command{
		Use:           "flowlint",
		Short:         "Code quality analysis for flow function nodes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	dbPath     string
	configPath string
	verbose    bool
	level      int
	noColor    bool

	changedRef string
	details    bool
	noStore    bool
	unitID     string
	groupID    string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Path to the metrics database (SQLite), overrides storage.path")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "flowlint.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging, including parse failures")
	rootCmd.PersistentFlags().IntVarP(&level, "level", "l", 0, "Detection level 1-3, overrides detection.level")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	scanCmd.Flags().StringVar(&changedRef, "changed", "", "Only scan .js files changed relative to this git ref")
	scanCmd.Flags().BoolVar(&details, "details", false, "List the issues of every unit")
	scanCmd.Flags().StringVar(&groupID, "group", "", "Scan only the group with this id")
	scanCmd.Flags().BoolVar(&noStore, "no-store", false, "Do not persist results")
	trendCmd.Flags().StringVar(&unitID, "unit", "", "Show the history of one unit instead")
	watchCmd.Flags().BoolVar(&details, "details", false, "List the issues of every unit")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(trendCmd)
	rootCmd.AddCommand(pruneCmd)
}

// app bundles what every command needs.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	detector *detect.Detector
	scorer   *quality.Scorer
	render   *report.Renderer
	// changes is set when scanning against a git ref.
	changes git.Changes
}

func newApp() (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dbPath != "" {
		cfg.Storage.Path = dbPath
	}
	if level != 0 {
		cfg.Detection.Level = detect.ClampLevel(level)
	}
	if verbose {
		cfg.Detection.Verbose = true
	}

	var logger *zap.Logger
	if cfg.Detection.Verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		detector: detect.NewDetector(cfg.Host(),
			detect.WithLogger(logger),
			detect.WithIgnoreMarker(cfg.Detection.IgnoreMarker),
		),
		scorer: quality.NewScorer(cfg.Weights(), cfg.Scoring.CriticalMultiplier),
		render: report.New(noColor),
	}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

// openStore opens the metrics database, creating its directory.
func (a *app) openStore() (*storage.SQLiteStore, error) {
	path := a.cfg.Storage.Path
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	store, err := storage.NewSQLiteStore(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, nil
}

// provider picks the unit source for path: a flows file or a directory of
// .js files.
func (a *app) provider(ctx context.Context, path string) (source.Provider, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if filepath.Ext(path) != ".json" {
			return nil, fmt.Errorf("%s: expected a flows .json file or a directory", path)
		}
		return flows.NewFileProvider(path, a.cfg.Scan.IncludeLifecycle), nil
	}
	if changedRef == "" {
		return crawler.NewCrawler(path), nil
	}

	changes, err := git.GetChangedFiles(ctx, path, changedRef)
	if err != nil {
		return nil, err
	}
	var only []string
	for _, c := range changes {
		if strings.HasSuffix(c.Path, ".js") {
			only = append(only, c.Path)
		}
	}
	if a.changes, err = git.NewChanges(path, changes); err != nil {
		return nil, err
	}
	fmt.Printf("📝 %d changed .js files since %s\n", len(only), changedRef)
	return crawler.NewCrawler(path, crawler.WithOnly(only)), nil
}

func (a *app) scanner(provider source.Provider, store storage.Sink) *pipeline.Scanner {
	opts := []pipeline.Option{pipeline.WithLogger(a.logger)}
	if store != nil {
		opts = append(opts, pipeline.WithSink(store))
	}
	if a.cfg.Notify.WebhookURL != "" {
		opts = append(opts, pipeline.WithNotifier(notify.NewWebhookSink(a.cfg.Notify.WebhookURL, a.cfg.Notify.Timeout)))
	}
	return pipeline.NewScanner(provider, a.detector, a.scorer, pipeline.Config{
		Level:       a.cfg.Detection.Level,
		Detect:      a.cfg.Options(),
		Concurrency: a.cfg.Scan.Concurrency,
		AlertBelow:  a.cfg.Notify.AlertBelow,
	}, opts...)
}

// runScan scans once, stores the run samples and prints the report.
func (a *app) runScan(ctx context.Context, s *pipeline.Scanner, persist bool) error {
	alerts := s.Stats().Alerts
	rep, err := s.ScanAll(ctx)
	if err != nil {
		return err
	}
	if persist {
		if err := s.RecordSamples(ctx, rep.Scan, pipeline.ScanSamples(rep)); err != nil {
			return err
		}
		if err := s.Flush(ctx); err != nil {
			return err
		}
	}
	fmt.Println(a.render.Scan(rep, details))
	if a.changes != nil {
		fmt.Println(a.render.Changed(rep, a.changes.Touches))
	}
	if sent := rep.Stats.Alerts - alerts; sent > 0 {
		fmt.Printf("🔔 %d alerts sent\n", sent)
	}
	return nil
}

// runGroup scans one group and prints each of its units.
func (a *app) runGroup(ctx context.Context, s *pipeline.Scanner, provider source.Provider, id string) error {
	groups, err := provider.Groups(ctx)
	if err != nil {
		return err
	}
	for _, g := range groups {
		if g.ID != id {
			continue
		}
		res, err := s.ScanGroup(ctx, g)
		if err != nil {
			return err
		}
		for _, u := range res.Units {
			fmt.Println(a.render.Unit(u))
		}
		fmt.Printf("%s: %.2f (%s), %d issues in %d units\n", res.Group.GroupName, res.Group.QualityScore,
			quality.Grade(res.Group.QualityScore), res.Group.TotalIssues, res.Group.TotalUnits)
		return nil
	}
	return fmt.Errorf("%w: %s", source.ErrUnknownGroup, id)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func pathArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

var scanCmd = &cobra.Command{
	Use:   "scan [flows.json|dir]",
	Short: "Scan every group, score it and record the results",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		path := pathArg(args)
		provider, err := a.provider(ctx, path)
		if err != nil {
			return err
		}
		fmt.Printf("📂 Scanning %s (level %d)\n", path, a.cfg.Detection.Level)

		var store *storage.SQLiteStore
		if !noStore {
			if store, err = a.openStore(); err != nil {
				return err
			}
			defer store.Close()
		}

		var sink storage.Sink
		if store != nil {
			sink = store
		}
		s := a.scanner(provider, sink)
		defer func() {
			if cerr := s.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("failed to save results: %w", cerr)
			}
		}()
		if groupID != "" {
			return a.runGroup(ctx, s, provider, groupID)
		}
		return a.runScan(ctx, s, store != nil)
	},
}

var checkCmd = &cobra.Command{
	Use:   "check <file.js>",
	Short: "Analyze one file and print its issues, score and grade",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		src, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		code := string(src)
		issues := a.detector.Detect(code, a.cfg.Detection.Level, a.cfg.Options())
		name := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		rec := a.scorer.Assess(args[0], name, code, issues)
		rec.ContentHash = pipeline.ContentHash(code)
		fmt.Println(a.render.Unit(rec))
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [flows.json|dir]",
	Short: "Rescan whenever flow code changes",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		path := pathArg(args)
		provider, err := a.provider(ctx, path)
		if err != nil {
			return err
		}
		store, err := a.openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		// one scanner for the session so unchanged units stay cached; Forget
		// after each rescan drops results for edited source
		s := a.scanner(provider, store)
		defer func() {
			if cerr := s.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("failed to save results: %w", cerr)
			}
		}()

		if err := a.runScan(ctx, s, true); err != nil {
			return err
		}
		fmt.Printf("👀 Watching %s, press Ctrl+C to stop\n", path)

		w := watch.New(watch.WithMatch(watch.SourceFiles), watch.WithLogger(a.logger))
		return w.Run(ctx, path, func(ctx context.Context, changed []string) {
			fmt.Printf("🔄 %d files changed, rescanning\n", len(changed))
			if err := a.runScan(ctx, s, true); err != nil {
				a.logger.Error("rescan failed", zap.Error(err))
			}
			s.Forget()
		})
	},
}

var trendCmd = &cobra.Command{
	Use:   "trend [groupID]",
	Short: "Print stored score history for the system, a group or a unit",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		store, err := a.openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		var since time.Time
		if days := a.cfg.Storage.RetentionDays; days > 0 {
			since = time.Now().AddDate(0, 0, -days)
		}

		switch {
		case unitID != "":
			records, err := store.UnitHistory(ctx, unitID)
			if err != nil {
				return err
			}
			fmt.Println(a.render.History(records))
		case len(args) == 1:
			points, err := store.GroupTrend(ctx, args[0], since)
			if err != nil {
				return err
			}
			fmt.Println(a.render.Trend(points))
		default:
			points, err := store.SystemTrend(ctx, since)
			if err != nil {
				return err
			}
			latest, err := store.LatestGroups(ctx)
			if err != nil {
				return err
			}
			fmt.Println(a.render.SystemTrend(points))
			fmt.Println(a.render.Latest(latest))
		}
		return nil
	},
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete records older than storage.retention_days",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		days := a.cfg.Storage.RetentionDays
		if days == 0 {
			fmt.Println("Retention is disabled (storage.retention_days = 0)")
			return nil
		}
		store, err := a.openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := store.Prune(ctx, time.Now().AddDate(0, 0, -days))
		if err != nil {
			return err
		}
		fmt.Printf("🧹 Removed %d records older than %d days\n", n, days)
		return nil
	},
}
