package commands

import (
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/coursesched/internal/logger"
	"github.com/jmylchreest/coursesched/internal/metrics"
	"github.com/jmylchreest/coursesched/internal/store"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load the course corpus into the database",
	Long: `Upsert every course file and its schedules into the database.

Courses are matched on course code; a course's schedules are replaced on
each load. Files that fail (bad code, unreadable JSON, duplicate code) are
skipped and listed in a failure report.

Examples:
  coursesched load --database postgres://localhost/courses
  coursesched load --test
  coursesched load --reset   # drop and recreate all tables first`,
	RunE: runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)

	flags := loadCmd.Flags()
	flags.Bool("test", false, "load only the first few files, committing more often")
	flags.Bool("reset", false, "drop and recreate the schema before loading (destroys existing data)")
	flags.String("failures", "", "failure report path (default <data-dir>/errors/failed_courses.json)")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address while running")
}

func runLoad(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	testMode, _ := cmd.Flags().GetBool("test")
	reset, _ := cmd.Flags().GetBool("reset")
	report, _ := cmd.Flags().GetString("failures")
	if report == "" {
		report = cfg.Load.FailureReport
	}
	commitEvery := cfg.Load.CommitEvery
	if testMode {
		commitEvery = cfg.Load.TestCommitEvery
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	m := metrics.New()
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	if metricsAddr == "" {
		metricsAddr = cfg.Metrics.Addr
	}
	serveMetrics(ctx, metricsAddr, m)

	if reset {
		logger.Warn("resetting database schema", "dialect", s.Dialect())
	}
	summary, err := store.NewLoader(s, corpus(), store.LoaderOptions{
		TestMode:      testMode,
		CommitEvery:   commitEvery,
		Reset:         reset,
		FailureReport: report,
	}, m).Load(ctx)
	if err != nil {
		logger.Error("load failed", "error", err)
		return err
	}

	logger.Info("load complete",
		"files", humanize.Comma(int64(summary.Files)),
		"courses", humanize.Comma(int64(summary.Courses)),
		"schedules", humanize.Comma(int64(summary.Schedules)),
		"errors", summary.Errors,
		"duplicates", summary.Duplicates,
		"commits", summary.Commits)
	if summary.ReportPath != "" {
		logger.Warn("some courses failed to load", "count", len(summary.Failed), "report", summary.ReportPath)
	}
	return nil
}
