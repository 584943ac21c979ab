package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/coursesched/internal/logger"
	"github.com/jmylchreest/coursesched/internal/output"
	"github.com/jmylchreest/coursesched/internal/reconcile"
	"github.com/jmylchreest/coursesched/internal/store"
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare the course corpus with the database",
	Long: `Report courses only in the corpus, only in the database, and courses
whose schedule sets differ. Dates and times are normalised on both sides
before comparing.

Examples:
  coursesched compare
  coursesched compare --format json > drift.json`,
	RunE: runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)

	flags := compareCmd.Flags()
	flags.Bool("test", false, "compare only the first few corpus files")
	flags.String("format", "text", "output format: text, json, yaml")
	flags.Bool("fail-on-drift", false, "exit non-zero when the two sides differ")
}

func runCompare(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	testMode, _ := cmd.Flags().GetBool("test")
	format, _ := cmd.Flags().GetString("format")
	failOnDrift, _ := cmd.Flags().GetBool("fail-on-drift")

	s, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	limit := 0
	if testMode {
		limit = store.TestModeFiles
	}
	files, stored, err := reconcile.Load(ctx, corpus(), s, limit)
	if err != nil {
		logger.Error("failed to read comparison inputs", "error", err)
		return err
	}
	result := reconcile.Compare(files, stored)

	if format == "text" {
		err = result.WriteText(cmd.OutOrStdout())
	} else {
		err = writeStructured(cmd, format, result)
	}
	if err != nil {
		logger.Error("failed to write comparison", "error", err)
		return err
	}

	if failOnDrift && !result.InSync() {
		return errors.New("corpus and database differ")
	}
	return nil
}

func writeStructured(cmd *cobra.Command, formatStr string, data any) error {
	f, err := output.ParseFormat(formatStr)
	if err != nil {
		return err
	}
	if f.Binary() {
		return fmt.Errorf("%s output needs a file", f)
	}
	return writeTo(cmd, f, data, nil)
}
