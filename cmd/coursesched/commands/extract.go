package commands

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/coursesched/internal/batch"
	"github.com/jmylchreest/coursesched/internal/checkpoint"
	"github.com/jmylchreest/coursesched/internal/logger"
	"github.com/jmylchreest/coursesched/internal/metrics"
	"github.com/jmylchreest/coursesched/internal/store"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract meeting schedules from course section text",
	Long: `Run LLM schedule extraction over the course corpus.

Courses are processed one at a time in file order. Each provider in
fallback_order is tried with exponential backoff before moving to the next;
a course for which every provider fails gets an empty schedule list. Finished
codes are checkpointed so an interrupted run resumes where it stopped.

Examples:
  # Resume a full run
  coursesched extract

  # Only the first few files
  coursesched extract --test

  # Reprocess one course, ignoring the checkpoint and cached responses
  coursesched extract --course "HOSF 9489"`,
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	flags := extractCmd.Flags()
	flags.Bool("test", false, "process only the first few corpus files")
	flags.String("course", "", "reprocess a single course code regardless of the checkpoint")
	flags.Bool("no-resume", false, "ignore and overwrite the checkpoint")
	flags.String("max-content-size", "", "max section text sent to the provider (e.g. 32KB, 0=unlimited; default from config)")
	flags.Int("flush-every", 0, "checkpoint interval in courses (default from config)")
	flags.Int("limit", 0, "process at most this many files (0=all)")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address while running (e.g. :9090)")
}

func runExtract(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	testMode, _ := cmd.Flags().GetBool("test")
	course, _ := cmd.Flags().GetString("course")
	noResume, _ := cmd.Flags().GetBool("no-resume")
	limit, _ := cmd.Flags().GetInt("limit")

	maxContentSize := -1
	if raw, _ := cmd.Flags().GetString("max-content-size"); strings.TrimSpace(raw) != "" {
		if raw == "0" {
			maxContentSize = 0
		} else {
			n, err := humanize.ParseBytes(raw)
			if err != nil {
				logger.Error("invalid max-content-size", "value", raw, "error", err)
				return err
			}
			maxContentSize = int(n)
		}
	}

	opts := batch.DefaultOptions()
	opts.FlushEvery = cfg.Checkpoint.FlushEvery
	if n, _ := cmd.Flags().GetInt("flush-every"); n > 0 {
		opts.FlushEvery = n
	}
	opts.Resume = !noResume
	opts.Limit = limit
	if testMode {
		opts.Limit = store.TestModeFiles
	}
	if course != "" {
		opts.Force = true
		opts.CodePrefix = strings.ToUpper(strings.TrimSpace(course)) + " - "
	}

	m := metrics.New()
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	if metricsAddr == "" {
		metricsAddr = cfg.Metrics.Addr
	}
	serveMetrics(ctx, metricsAddr, m)

	chain, closer, err := buildExtractorChain(cfg, m, maxContentSize)
	if err != nil {
		logger.Error("failed to build extractor chain", "error", err)
		return err
	}
	defer func() { _ = closer.Close() }()

	driver := batch.NewDriver(corpus(), chain, checkpoint.NewStore(cfg.Checkpoint.Path),
		batch.WithOptions(opts),
		batch.WithMetrics(m))

	summary, err := driver.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Warn("extraction interrupted; rerun to resume", "checkpoint", cfg.Checkpoint.Path)
		return nil
	}
	if err != nil {
		logger.Error("extraction failed", "error", err)
		return err
	}

	if course != "" && summary.Processed() == 0 {
		logger.Warn("course not found in corpus", "course_code", course, "dir", cfg.CorpusDir())
	}
	logger.Info("extraction complete",
		"processed", humanize.Comma(int64(summary.Processed())),
		"with_schedules", summary.WithSchedules+summary.ShortCircuited,
		"without_schedules", summary.WithoutSchedules,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"took", summary.Duration.Round(time.Millisecond).String())
	return nil
}
