package commands

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/coursesched/internal/api"
	"github.com/jmylchreest/coursesched/internal/logger"
	"github.com/jmylchreest/coursesched/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the course database over HTTP",
	Long: `Start a read-only JSON API over the loaded course database.

Routes:
  GET /healthz
  GET /metrics
  GET /api/v1/departments
  GET /api/v1/departments/:prefix/courses[?in_person=true]
  GET /api/v1/departments/:prefix/evening?day=Tuesday&day=Friday&after=17:00&summary=true
  GET /api/v1/courses/:code`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	s, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	if err := s.Migrate(); err != nil {
		logger.Error("migration failed", "error", err)
		return err
	}

	if !viper.GetBool("debug") {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(s, metrics.New())
	return api.NewServer(cfg.Server.Addr, router, cfg.Server.ShutdownTimeout).Run(ctx)
}
