// Package db opens the recorder's SQLite database, applies the embedded
// schema migrations and exposes the connection as a gorm session.
package db

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// DB owns the SQLite handle for the whole process lifetime.
type DB struct {
	sql  *sql.DB
	gorm *gorm.DB
}

func Open(path string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dsn, err := buildDSN(path)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}

	// One connection serializes collector writes and exporter reads.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	if err := Migrate(sqlDB, logger); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	gormDB, err := gorm.Open(sqlite.New(sqlite.Config{
		DriverName: "sqlite3",
		Conn:       sqlDB,
	}), &gorm.Config{
		Logger: newGormLogger(logger),
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("gorm open: %w", err)
	}

	return &DB{sql: sqlDB, gorm: gormDB}, nil
}

func (d *DB) Gorm() *gorm.DB {
	return d.gorm
}

func (d *DB) SQL() *sql.DB {
	return d.sql
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

func buildDSN(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("database path is empty")
	}

	if !strings.HasPrefix(path, "file:") && path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", fmt.Errorf("mkdir %s: %w", dir, err)
			}
		}
	}

	// _loc=UTC: DATETIME columns come back as UTC time.Time values.
	params := []string{
		"_busy_timeout=5000",
		"_journal_mode=WAL",
		"_loc=UTC",
	}

	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}

	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}
