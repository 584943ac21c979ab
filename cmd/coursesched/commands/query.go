package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/coursesched/internal/api"
	"github.com/jmylchreest/coursesched/internal/logger"
	"github.com/jmylchreest/coursesched/internal/output"
	"github.com/jmylchreest/coursesched/pkg/timeparse"
)

var weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

var queryCmd = &cobra.Command{
	Use:   "query DEPT",
	Short: "Query in-person or evening courses for a department",
	Long: `Query the database for a department's on-campus courses that have
schedules. With --evening-days, only courses meeting on one of those days at
or after --after are returned; --summary reduces each course to its
matching schedules.

Results are written to <data-dir>/query_results/<dept>[_evening][_summary]_courses.<ext>
unless -o is given ("-" for stdout).

Examples:
  coursesched query HOSF
  coursesched query HOSF --evening-days Tuesday --evening-days Thursday --summary
  coursesched query WINE --evening-days Friday --format xlsx
  coursesched query HOSF --evening-days Monday --format ics -o hosf.ics`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)

	flags := queryCmd.Flags()
	flags.StringSlice("evening-days", nil, "days to match for the evening query: "+strings.Join(weekdays, ", "))
	flags.String("after", "17:00", "earliest start time for the evening query")
	flags.Bool("summary", false, "output only matching schedules per course (evening query)")
	flags.StringP("output", "o", "", "output file, or - for stdout")
	flags.String("format", "json", "output format: json, jsonl, yaml, xlsx, ics")
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	dept := strings.ToUpper(strings.TrimSpace(args[0]))
	days, _ := cmd.Flags().GetStringSlice("evening-days")
	afterRaw, _ := cmd.Flags().GetString("after")
	summary, _ := cmd.Flags().GetBool("summary")
	outPath, _ := cmd.Flags().GetString("output")
	formatStr, _ := cmd.Flags().GetString("format")

	format, err := output.ParseFormat(formatStr)
	if err != nil {
		logger.Error("invalid format", "format", formatStr, "error", err)
		return err
	}
	for i, d := range days {
		canonical, ok := canonicalDay(d)
		if !ok {
			return fmt.Errorf("invalid day %q (choose from %s)", d, strings.Join(weekdays, ", "))
		}
		days[i] = canonical
	}
	if summary && len(days) == 0 {
		return fmt.Errorf("--summary requires --evening-days")
	}
	after := api.DefaultEveningAfter
	if afterRaw != "" {
		clock, ok := timeparse.ParseTime(afterRaw)
		if !ok {
			return fmt.Errorf("invalid --after time %q", afterRaw)
		}
		after = clock
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	var (
		result any
		count  int
		kind   = "in-person"
	)
	switch {
	case len(days) > 0 && summary:
		kind = "evening summary"
		rows, qerr := s.EveningSummary(ctx, dept, days, after)
		result, count, err = rows, len(rows), qerr
	case len(days) > 0:
		kind = "evening"
		rows, qerr := s.EveningByDays(ctx, dept, days, after)
		result, count, err = rows, len(rows), qerr
	default:
		rows, qerr := s.InPersonByDepartment(ctx, dept)
		result, count, err = rows, len(rows), qerr
	}
	if err != nil {
		logger.Error("query failed", "department", dept, "error", err)
		return err
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	opts := []output.WriterOption{
		output.WithLocation(loc),
		output.WithCalendarName(fmt.Sprintf("%s %s courses", dept, kind)),
	}

	if outPath == "-" {
		if format.Binary() {
			return fmt.Errorf("%s output needs a file; use -o", format)
		}
		return writeTo(cmd, format, result, opts)
	}
	if outPath == "" {
		outPath = defaultQueryPath(cfg.QueryResultsDir(), dept, len(days) > 0, summary, format)
	}
	if err := output.WriteFile(outPath, format, result, opts...); err != nil {
		logger.Error("failed to write results", "path", outPath, "error", err)
		return err
	}
	logger.Info("query complete", "department", dept, "kind", kind, "courses", count, "path", outPath)
	return nil
}

func writeTo(cmd *cobra.Command, format output.Format, data any, opts []output.WriterOption) error {
	w, err := output.NewWriter(cmd.OutOrStdout(), format, opts...)
	if err != nil {
		return err
	}
	if err := w.Write(data); err != nil {
		return err
	}
	return w.Close()
}

// defaultQueryPath builds <dir>/<dept>[_evening][_summary]_courses.<ext>.
func defaultQueryPath(dir, dept string, evening, summary bool, format output.Format) string {
	name := strings.ToLower(dept)
	if evening {
		name += "_evening"
	}
	if summary {
		name += "_summary"
	}
	return filepath.Join(dir, name+"_courses"+format.Extension())
}

// canonicalDay maps a full or abbreviated day name to its canonical form.
func canonicalDay(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) < 3 {
		return "", false
	}
	for _, d := range weekdays {
		if strings.HasPrefix(strings.ToLower(d), s) {
			return d, true
		}
	}
	return "", false
}
