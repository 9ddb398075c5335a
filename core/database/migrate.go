package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	sqlite3migrate "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/linzabot/core/logger"
)

// RunMigrations applies all up migrations found in the driver's directory of source
// (for example "sqlite/000001_init.up.sql").
func RunMigrations(db *sqlx.DB, cfg Config, source fs.FS) error {
	if err := cfg.Normalize(); err != nil {
		return fmt.Errorf("db config: %w", err)
	}
	if source == nil {
		return errors.New("migrations source is nil")
	}

	dir := migrationsDir(cfg.Driver)
	files := listMigrationFiles(source, dir)
	args := []any{
		slog.String("event", "resolve"),
		slog.String("path", dir),
		slog.Int("files_total", len(files)),
	}
	if preview, truncated := logger.SummarizeStrings(files, 6); preview != "" {
		args = append(args, slog.String("files_preview", preview), slog.Bool("files_truncated", truncated))
	}
	logger.MIG.Debug("migrations resolved", args...)

	m, closeFn, err := newMigrate(db, cfg, source, dir)
	if err != nil {
		logger.MIG.Error("init failed",
			slog.String("event", "db.migrate"),
			slog.String("driver", cfg.Driver),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer closeFn()

	fromVer, _, _ := m.Version()

	start := time.Now()
	upErr := m.Up()
	took := time.Since(start)

	switch {
	case upErr == nil:
	case errors.Is(upErr, migrate.ErrNoChange):
		logger.MIG.Info("migrations summary",
			slog.String("event", "summary"),
			slog.Uint64("from_ver", uint64(fromVer)),
			slog.Uint64("to_ver", uint64(fromVer)),
			slog.Int("files", 0),
			slog.Duration("duration", took),
		)
		return nil
	default:
		logger.MIG.Error("migration failed",
			slog.String("event", "apply"),
			slog.String("err", upErr.Error()),
			slog.Duration("duration", took),
		)
		return fmt.Errorf("migration execution failed: %w", upErr)
	}

	toVer, _, _ := m.Version()
	applied := selectApplied(files, uint64(fromVer), uint64(toVer))
	if preview, truncated := logger.SummarizeStrings(applied, 6); preview != "" {
		logger.MIG.Debug("applied files",
			slog.String("event", "apply"),
			slog.Int("files_total", len(applied)),
			slog.String("files_preview", preview),
			slog.Bool("files_truncated", truncated),
		)
	}

	logger.MIG.Info("migrations summary",
		slog.String("event", "summary"),
		slog.Uint64("from_ver", uint64(fromVer)),
		slog.Uint64("to_ver", uint64(toVer)),
		slog.Int("files", len(applied)),
		slog.Duration("duration", took),
	)
	return nil
}

// newMigrate builds a migrator for the configured driver. SQLite migrates through
// the already opened connection so in-memory databases see the schema; closing that
// migrator would close the shared *sql.DB, hence the no-op close func.
func newMigrate(db *sqlx.DB, cfg Config, source fs.FS, dir string) (*migrate.Migrate, func(), error) {
	src, err := iofs.New(source, dir)
	if err != nil {
		return nil, nil, fmt.Errorf("open migrations %s: %w", dir, err)
	}

	if cfg.Driver == DriverSQLite {
		driver, err := sqlite3migrate.WithInstance(db.DB, &sqlite3migrate.Config{})
		if err != nil {
			_ = src.Close()
			return nil, nil, fmt.Errorf("sqlite migrate driver: %w", err)
		}
		m, err := migrate.NewWithInstance("iofs", src, cfg.Driver, driver)
		if err != nil {
			_ = src.Close()
			return nil, nil, err
		}
		return m, func() { _ = src.Close() }, nil
	}

	if err := WaitForReady(context.Background(), db, 30*time.Second); err != nil {
		_ = src.Close()
		return nil, nil, fmt.Errorf("database not ready: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, cfg.MigrateURL())
	if err != nil {
		_ = src.Close()
		return nil, nil, err
	}
	return m, func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.MIG.Warn("migrator close failed",
				slog.String("event", "db.migrate"),
				slog.Any("err", errors.Join(srcErr, dbErr)),
			)
		}
	}, nil
}

func migrationsDir(driver string) string {
	if driver == DriverPostgres {
		return "postgres"
	}
	return "sqlite"
}

func listMigrationFiles(source fs.FS, dir string) []string {
	entries, err := fs.ReadDir(source, dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, path.Base(e.Name()))
		}
	}
	sort.Strings(names)
	return names
}

func parseVersion(name string) uint64 {
	prefix, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(prefix, 10, 64)
	return v
}

func selectApplied(files []string, from, to uint64) []string {
	var out []string
	for _, f := range files {
		if v := parseVersion(f); v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
