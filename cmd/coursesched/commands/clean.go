package commands

import (
	"github.com/spf13/cobra"

	"github.com/jmylchreest/coursesched/internal/logger"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove program and junk entries from the course corpus",
	Long: `Delete corpus files that are not real courses: program pages and files
whose name starts with " -" (courses scraped without a code).

Examples:
  coursesched clean --dry-run
  coursesched clean`,
	RunE: runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().Bool("dry-run", false, "list files that would be removed without removing them")
}

func runClean(cmd *cobra.Command, _ []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	removed, err := corpus().Clean(dryRun)
	if err != nil {
		logger.Error("clean failed", "dir", cfg.CorpusDir(), "removed", len(removed), "error", err)
		return err
	}
	logger.Info("clean complete", "dir", cfg.CorpusDir(), "removed", len(removed), "dry_run", dryRun)
	return nil
}
