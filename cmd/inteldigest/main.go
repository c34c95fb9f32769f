package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/IntelDigest/internal/config"
	"github.com/TobiSchelling/IntelDigest/internal/database"
	"github.com/TobiSchelling/IntelDigest/internal/logging"
	"github.com/TobiSchelling/IntelDigest/internal/pipeline"
	"github.com/TobiSchelling/IntelDigest/internal/schedule"
	"github.com/TobiSchelling/IntelDigest/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "inteldigest",
	Short:   "Daily and weekly travel and AI news digests",
	Long:    "IntelDigest fetches curated feeds, ranks articles by relevance, and delivers a daily or weekly digest by email.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging("INFO")

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		switch {
		case err != nil && configPath != "":
			return err
		case err != nil:
			slog.Warn("no config file found, using built-in defaults")
			cfg = config.Default()
		default:
			cfg, err = config.Load(path)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
		}
		setupLogging(cfg.Logging.Level)
		return nil
	},
}

func setupLogging(level string) {
	if verbose {
		level = "debug"
	}
	slog.SetDefault(logging.New(os.Stderr, level))
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(digestsCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("inteldigest", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/inteldigest/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure recipients, SMTP, and the LLM provider.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Database: %s\n", db.Path())
		fmt.Printf("Period: %s (max %d articles, threshold %.2f, %d-day window)\n\n",
			cfg.Period, cfg.MaxArticles(), cfg.MinRelevanceScore, cfg.MaxAgeDays)
		fmt.Printf("Sources:  %d\n", stats.Sources)
		fmt.Printf("Articles: %d\n", stats.Articles)
		fmt.Printf("Digests:  %d (%d article links)\n", stats.Digests, stats.LinkedPairs)
		for _, status := range []database.SentStatus{
			database.StatusSent, database.StatusPrinted, database.StatusFailed, database.StatusPending,
		} {
			if n := stats.DigestStatus[status]; n > 0 {
				fmt.Printf("  %-8s %d\n", status, n)
			}
		}
		return nil
	},
}

// --- run command ---

var (
	runPeriod    string
	runFetchOnly bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline: fetch -> filter -> score -> dedupe -> store -> digest -> deliver",
	RunE: func(cmd *cobra.Command, args []string) error {
		if runPeriod != "" {
			cfg.Period = database.Period(runPeriod)
		}
		if runFetchOnly {
			cfg.FetchOnly = true
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		result, err := pipeline.New(cfg, db, pipeline.Deps{}).Run(cmd.Context())
		if err != nil {
			return err
		}
		printResult(result)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runPeriod, "period", "", "Digest period: daily or weekly (overrides config)")
	runCmd.Flags().BoolVar(&runFetchOnly, "fetch-only", false, "Store articles without generating a digest")
}

func printResult(r *pipeline.Result) {
	fmt.Printf("\nRun %s (%s)\n", r.RunID, r.Period)
	fmt.Printf("  Fetched:   %d articles (%d sources failed)\n", r.Raw, r.FailedSources)
	fmt.Printf("  Recent:    %d\n", r.Recent)
	fmt.Printf("  Unique:    %d\n", r.Unique)
	fmt.Printf("  Relevant:  %d\n", r.Relevant)
	fmt.Printf("  Stored:    %d new\n", r.Stored)
	switch r.Stage {
	case pipeline.StageFetchOnly:
		fmt.Println("\nFetch-only mode: digest skipped.")
	case pipeline.StageNoDigest:
		fmt.Println("\nNo relevant articles found. Digest skipped.")
	default:
		fmt.Printf("  Digest:    #%d from %d articles (%s), %s\n", r.DigestID, r.Selected, r.DigestSource, r.Status)
	}
}

// --- digests command ---

var digestsLimit int

var digestsCmd = &cobra.Command{
	Use:   "digests [id]",
	Short: "List recent digests, or print one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if len(args) == 1 {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid digest ID: %s", args[0])
			}
			d, err := db.GetDigest(id)
			if err != nil {
				return err
			}
			if d == nil {
				return fmt.Errorf("digest %d not found", id)
			}
			fmt.Printf("Digest #%d · %s · %s · %s\n\n", d.ID, d.Period, database.FormatRunAt(d.RunAt), d.SentStatus)
			fmt.Println(d.ContentText)
			return nil
		}

		digests, err := db.GetDigests(digestsLimit)
		if err != nil {
			return err
		}
		if len(digests) == 0 {
			fmt.Println("No digests yet. Create one with: inteldigest run")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tRUN\tPERIOD\tSTATUS")
		for _, d := range digests {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", d.ID, database.FormatRunAt(d.RunAt), d.Period, d.SentStatus)
		}
		return w.Flush()
	},
}

func init() {
	digestsCmd.Flags().IntVarP(&digestsLimit, "limit", "n", 10, "Number of digests to list")
}

// --- sources command ---

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured feeds",
	RunE: func(cmd *cobra.Command, args []string) error {
		sources := cfg.Catalog()
		sort.SliceStable(sources, func(i, j int) bool { return sources[i].Category < sources[j].Category })

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CATEGORY\tNAME\tURL")
		for _, s := range sources {
			fmt.Fprintf(w, "%s\t%s\t%s\n", s.Category, s.Name, s.URL)
		}
		return w.Flush()
	},
}

// --- schedule command ---

var scheduleRunNow bool

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run daily and weekly digests on their cron schedules",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		s, err := schedule.New(cfg.Schedule.Timezone)
		if err != nil {
			return err
		}

		jobs := map[database.Period]string{
			database.PeriodDaily:  cfg.Schedule.Daily,
			database.PeriodWeekly: cfg.Schedule.Weekly,
		}
		for period, spec := range jobs {
			if spec == "" {
				continue
			}
			if err := s.AddJob(string(period), spec, periodJob(db, period)); err != nil {
				return err
			}
		}
		if len(s.ListJobs()) == 0 {
			return errors.New("no schedules configured; set schedule.daily or schedule.weekly")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if scheduleRunNow {
			if err := s.RunNow(ctx, string(cfg.Period), periodJob(db, cfg.Period)); err != nil {
				slog.Error("immediate run failed", "err", err)
			}
		}

		s.Start()
		for _, j := range s.ListJobs() {
			next, _ := s.NextRun(j.Schedule, time.Now())
			fmt.Printf("  %-7s %-12s next: %s\n", j.Name, j.Schedule, next.Format(time.RFC1123))
		}
		fmt.Println("Scheduler running. Press Ctrl+C to stop")

		<-ctx.Done()
		<-s.Stop().Done()
		return nil
	},
}

func init() {
	scheduleCmd.Flags().BoolVar(&scheduleRunNow, "run-now", false, "Run the configured period once before waiting")
}

func periodJob(db *database.DB, period database.Period) schedule.Job {
	return func(ctx context.Context) error {
		c := *cfg
		c.Period = period
		result, err := pipeline.New(&c, db, pipeline.Deps{}).Run(ctx)
		if err != nil {
			return err
		}
		slog.Info("scheduled run finished", "period", period, "stage", result.Stage, "status", result.Status)
		return nil
	}
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local digest archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Open(cfg.DBPath())
}
