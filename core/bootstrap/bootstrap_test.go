package bootstrap

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/linzabot/core/config"
	coredatabase "github.com/m3rciful/linzabot/core/database"
)

func noLogger(*coreconfig.Config) error { return nil }

func TestRunRequiresConfig(t *testing.T) {
	_, err := Run(Options{})
	assert.Error(t, err)
}

func TestRunClosesDBWhenMigrationsFail(t *testing.T) {
	var opened *sqlx.DB
	_, err := Run(Options{
		Config:     &coreconfig.Config{},
		Database:   coredatabase.Config{Path: filepath.Join(t.TempDir(), "bot.db")},
		LoggerInit: noLogger,
		Connect: func(cfg coredatabase.Config) (*sqlx.DB, error) {
			db, err := coredatabase.Connect(cfg)
			opened = db
			return db, err
		},
		Migrate: func(*sqlx.DB, coredatabase.Config, fs.FS) error {
			return errors.New("boom")
		},
	})
	require.Error(t, err)
	require.NotNil(t, opened)
	assert.Error(t, opened.Ping(), "db must be closed after failed migrations")
}

func TestRunPropagatesLoggerError(t *testing.T) {
	_, err := Run(Options{
		Config:     &coreconfig.Config{},
		LoggerInit: func(*coreconfig.Config) error { return errors.New("no sink") },
	})
	assert.ErrorContains(t, err, "logger init failed")
}
