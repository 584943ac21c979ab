package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/coursesched/internal/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [up|down]",
	Short: "Apply or roll back database migrations",
	Long: `Apply the embedded schema migrations (default "up"), or roll every
migration back with "down", which drops the courses and schedules tables.`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"up", "down"},
	RunE:      runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(_ *cobra.Command, args []string) error {
	direction := "up"
	if len(args) == 1 {
		direction = args[0]
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	switch direction {
	case "up":
		err = s.Migrate()
	case "down":
		logger.Warn("rolling back all migrations", "dialect", s.Dialect())
		err = s.MigrateDown()
	default:
		return fmt.Errorf("unknown direction %q (want up or down)", direction)
	}
	if err != nil {
		logger.Error("migration failed", "direction", direction, "error", err)
		return err
	}
	logger.Info("migration complete", "direction", direction, "dialect", s.Dialect())
	return nil
}
