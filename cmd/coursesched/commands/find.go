package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/coursesched/internal/logger"
	"github.com/jmylchreest/coursesched/pkg/catalog"
	"github.com/jmylchreest/coursesched/pkg/timeparse"
)

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Search the course corpus without a database",
	Long: `Filter the extracted course files by subject, meeting day and start
time window. Every criterion is optional; a course matches when some
schedule satisfies the day and time criteria.

Examples:
  coursesched find --subject wine --day Friday --after 17:00
  coursesched find --subject HOSF --before 12:00 --format yaml`,
	RunE: runFind,
}

func init() {
	rootCmd.AddCommand(findCmd)

	flags := findCmd.Flags()
	flags.String("subject", "", "substring of the course code or name")
	flags.String("day", "", "substring of the meeting days, e.g. Tue")
	flags.String("after", "", "earliest start time, e.g. 17:00 or 5:00 PM")
	flags.String("before", "", "latest start time")
	flags.String("format", "json", "output format: json, jsonl, yaml")
}

func runFind(cmd *cobra.Command, _ []string) error {
	var f catalog.Filter
	f.Subject, _ = cmd.Flags().GetString("subject")
	f.Day, _ = cmd.Flags().GetString("day")

	for _, bound := range []struct {
		flag string
		dst  **timeparse.Clock
	}{{"after", &f.After}, {"before", &f.Before}} {
		raw, _ := cmd.Flags().GetString(bound.flag)
		if raw == "" {
			continue
		}
		clock, ok := timeparse.ParseTime(raw)
		if !ok {
			return fmt.Errorf("invalid --%s time %q", bound.flag, raw)
		}
		*bound.dst = &clock
	}

	entries, err := corpus().Load(catalog.LoadOptions{})
	if err != nil {
		logger.Error("failed to read corpus", "dir", cfg.CorpusDir(), "error", err)
		return err
	}
	courses := make([]*catalog.Course, 0, len(entries))
	for _, e := range entries {
		if e.Course.Extractable() {
			courses = append(courses, e.Course)
		}
	}

	matches := f.Apply(courses)
	logger.Info("search complete", "scanned", len(courses), "matches", len(matches))

	format, _ := cmd.Flags().GetString("format")
	return writeStructured(cmd, format, matches)
}
