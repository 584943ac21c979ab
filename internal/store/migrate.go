package store

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/jmylchreest/coursesched/internal/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate brings the schema up to date. Postgres uses the embedded SQL
// migrations; other dialects use gorm AutoMigrate.
func (s *Store) Migrate() error {
	if s.Dialect() != DialectPostgres {
		if err := s.db.AutoMigrate(&Course{}, &Schedule{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}

	m, err := s.migrator()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	version, dirty, _ := m.Version()
	if dirty {
		logger.Warn("database migration is dirty", "version", version)
	} else {
		logger.Info("database migrated", "version", version)
	}
	return nil
}

// MigrateDown reverts every migration.
func (s *Store) MigrateDown() error {
	if s.Dialect() != DialectPostgres {
		return s.dropTables()
	}
	m, err := s.migrator()
	if err != nil {
		return err
	}
	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("revert migrations: %w", err)
	}
	logger.Info("database migrations reverted")
	return nil
}

// Reset drops and recreates the schema, deleting all data.
func (s *Store) Reset() error {
	logger.Warn("dropping and recreating database tables")
	if err := s.MigrateDown(); err != nil {
		return err
	}
	return s.Migrate()
}

func (s *Store) dropTables() error {
	if err := s.db.Migrator().DropTable(&Schedule{}, &Course{}); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	return nil
}

func (s *Store) migrator() (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	driver, err := migratepg.WithInstance(sqlDB, &migratepg.Config{})
	if err != nil {
		return nil, fmt.Errorf("create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, DialectPostgres, driver)
	if err != nil {
		return nil, fmt.Errorf("init migrations: %w", err)
	}
	return m, nil
}
