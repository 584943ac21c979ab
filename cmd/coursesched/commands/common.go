package commands

import (
	"context"
	"errors"
	"time"

	"github.com/jmylchreest/coursesched/internal/api"
	"github.com/jmylchreest/coursesched/internal/logger"
	"github.com/jmylchreest/coursesched/internal/metrics"
	"github.com/jmylchreest/coursesched/internal/store"
	"github.com/jmylchreest/coursesched/pkg/catalog"
)

var errNoDatabase = errors.New("no database configured: set --database, database.dsn or DATABASE_URL")

func corpus() *catalog.Corpus {
	return catalog.NewCorpus(cfg.CorpusDir())
}

// openStore connects to the configured database.
func openStore() (*store.Store, error) {
	if cfg.Database.DSN == "" {
		logger.Error("database not configured")
		return nil, errNoDatabase
	}
	s, err := store.Open(cfg.Database.DSN, store.Options{
		Debug:        cfg.Database.Debug,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	})
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return nil, err
	}
	return s, nil
}

// serveMetrics exposes m on addr until ctx ends. It returns immediately
// when addr is empty.
func serveMetrics(ctx context.Context, addr string, m *metrics.Metrics) {
	if addr == "" || m == nil {
		return
	}
	srv := api.NewServer(addr, m.Handler(), 5*time.Second)
	go func() {
		if err := srv.Run(ctx); err != nil {
			logger.Error("metrics server stopped", "addr", addr, "error", err)
		}
	}()
}
