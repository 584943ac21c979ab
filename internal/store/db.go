// Package store persists courses and schedules in a relational database
// and answers the catalog queries.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jmylchreest/coursesched/internal/logger"
)

// Dialect names as reported by gorm.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// ErrNotFound is returned when a course does not exist.
var ErrNotFound = errors.New("course not found")

// Options configure Open.
type Options struct {
	// Debug logs every SQL statement.
	Debug bool
	// MaxOpenConns caps the pool. Zero keeps the driver default.
	MaxOpenConns int
}

// Store wraps a gorm connection.
type Store struct {
	db *gorm.DB
}

// Open connects to dsn. "sqlite://path", "file:" DSNs and paths ending in
// .db or .sqlite use SQLite; anything else is handed to the Postgres driver.
func Open(dsn string, opts Options) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("database dsn is empty")
	}

	level := gormlogger.Warn
	if opts.Debug {
		level = gormlogger.Info
	}
	cfg := &gorm.Config{
		Logger: gormlogger.New(gormWriter{}, gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
	}

	db, err := gorm.Open(dialector(dsn), cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if db.Dialector.Name() == DialectSQLite {
		// SQLite serialises writers.
		sqlDB.SetMaxOpenConns(1)
	} else if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Debug("database connected", "dialect", db.Dialector.Name())
	return &Store{db: db}, nil
}

// New wraps an existing connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying connection.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Dialect returns the database dialect name.
func (s *Store) Dialect() string {
	return s.db.Dialector.Name()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func dialector(dsn string) gorm.Dialector {
	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		return sqlite.Open(withForeignKeys(strings.TrimPrefix(dsn, "sqlite://")))
	case strings.HasPrefix(dsn, "file:"),
		strings.HasSuffix(dsn, ".db"),
		strings.HasSuffix(dsn, ".sqlite"),
		dsn == ":memory:":
		return sqlite.Open(withForeignKeys(dsn))
	default:
		return postgres.Open(dsn)
	}
}

// withForeignKeys turns on SQLite foreign key enforcement so schedule rows
// cascade with their course.
func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on"
}

// gormWriter routes gorm's log output through the process logger.
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...any) {
	logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "gorm")
}
