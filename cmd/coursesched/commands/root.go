// Package commands implements the CLI commands for coursesched.
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/coursesched/internal/config"
	"github.com/jmylchreest/coursesched/internal/logger"
)

// cfg is resolved before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "coursesched",
	Short: "Extract, load and query course meeting schedules",
	Long: `coursesched turns scraped course catalog pages into structured meeting
schedules using LLM extraction, loads them into a relational database and
answers department, in-person and evening queries.

The corpus is a directory of per-course JSON files under <data-dir>/course_data.

Examples:
  # Extract schedules for every course not yet processed
  coursesched extract

  # Re-extract a single course regardless of the checkpoint
  coursesched extract --course "HOSF 9489"

  # Load the corpus into Postgres and check it matches
  DATABASE_URL=postgres://localhost/courses coursesched load
  coursesched compare

  # Evening culinary courses on Tuesday or Thursday, as a calendar
  coursesched query HOSF --evening-days Tuesday --evening-days Thursday --format ics`,
	SilenceUsage:      true,
	PersistentPreRunE: initRuntime,
	PersistentPostRun: func(*cobra.Command, []string) { _ = logger.Close() },
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default ./.coursesched.yaml or $HOME/.coursesched.yaml)")
	flags.Bool("debug", false, "enable debug logging")
	flags.BoolP("quiet", "q", false, "only log errors")
	flags.Bool("log-json", false, "log as JSON")
	flags.String("log-file", "", "also append logs to this file")
	flags.String("data-dir", "", "data directory holding course_data/ and checkpoints (default data)")
	flags.String("database", "", "database DSN (postgres URL or sqlite path; default $DATABASE_URL)")

	_ = viper.BindPFlag("debug", flags.Lookup("debug"))
	_ = viper.BindPFlag("quiet", flags.Lookup("quiet"))
	_ = viper.BindPFlag("log_json", flags.Lookup("log-json"))
	_ = viper.BindPFlag("log_file", flags.Lookup("log-file"))
	_ = viper.BindPFlag("data_dir", flags.Lookup("data-dir"))
	_ = viper.BindPFlag("database.dsn", flags.Lookup("database"))
}

func initRuntime(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	v := viper.GetViper()
	if err := config.Setup(v, cfgFile); err != nil {
		logError("%v", err)
		return err
	}

	if err := logger.Init(logger.Options{
		Debug: v.GetBool("debug"),
		Quiet: v.GetBool("quiet"),
		JSON:  v.GetBool("log_json"),
		File:  v.GetString("log_file"),
	}); err != nil {
		logError("%v", err)
		return err
	}

	loaded, err := config.Load(v)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		return err
	}
	cfg = loaded
	logger.Debug("configuration loaded",
		"data_dir", cfg.DataDir,
		"fallback_order", cfg.FallbackOrder,
		"config_file", v.ConfigFileUsed())
	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// logError prints an error before the logger is configured.
func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
