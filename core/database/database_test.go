package database

import (
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSource() fstest.MapFS {
	return fstest.MapFS{
		"sqlite/000001_items.up.sql":   {Data: []byte("CREATE TABLE items (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT);")},
		"sqlite/000001_items.down.sql": {Data: []byte("DROP TABLE items;")},
		"sqlite/000002_tags.up.sql":    {Data: []byte("CREATE TABLE tags (name TEXT PRIMARY KEY);")},
		"sqlite/000002_tags.down.sql":  {Data: []byte("DROP TABLE tags;")},
	}
}

func TestConfigNormalizeSQLiteDefaults(t *testing.T) {
	cfg := Config{MaxConnections: 8}
	require.NoError(t, cfg.Normalize())

	assert.Equal(t, DriverSQLite, cfg.Driver)
	assert.Equal(t, defaultSQLitePath, cfg.Path)
	assert.Equal(t, 1, cfg.MaxConnections, "sqlite is single writer")
	assert.Equal(t, defaultWriteTimeout, cfg.WriteTimeout)
	assert.Contains(t, cfg.DSN(), "_txlock=immediate")
}

func TestConfigNormalizePostgres(t *testing.T) {
	cfg := Config{Driver: "postgres", Host: "db", User: "bot", Password: "p@ss", Name: "forms", WriteTimeout: time.Second}
	require.NoError(t, cfg.Normalize())

	assert.Equal(t, "5432", cfg.Port)
	assert.Equal(t, "disable", cfg.SSLMode)
	assert.Equal(t, 10, cfg.MaxConnections)
	assert.Equal(t, time.Second, cfg.WriteTimeout)
	assert.Equal(t, "postgres://bot:p%40ss@db:5432/forms?sslmode=disable", cfg.MigrateURL())
	assert.Equal(t, "db:5432/forms", cfg.Target())

	missing := Config{Driver: "postgres"}
	assert.Error(t, missing.Normalize())

	unknown := Config{Driver: "mysql"}
	assert.Error(t, unknown.Normalize())
}

func TestRunMigrationsSQLite(t *testing.T) {
	cfg := Config{Path: filepath.Join(t.TempDir(), "nested", "bot.db")}
	db, err := Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, RunMigrations(db, cfg, testSource()))
	// Second run is a no-op.
	require.NoError(t, RunMigrations(db, cfg, testSource()))

	_, err = db.Exec(`INSERT INTO items (name) VALUES ('a')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO tags (name) VALUES ('x')`)
	require.NoError(t, err)

	var count int
	require.NoError(t, db.Get(&count, `SELECT COUNT(*) FROM items`))
	assert.Equal(t, 1, count)
}

func TestRunMigrationsRejectsNilSource(t *testing.T) {
	cfg := Config{Path: filepath.Join(t.TempDir(), "bot.db")}
	db, err := Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	assert.Error(t, RunMigrations(db, cfg, nil))
}

func TestSelectApplied(t *testing.T) {
	files := listMigrationFiles(testSource(), "sqlite")
	require.Equal(t, []string{"000001_items.up.sql", "000002_tags.up.sql"}, files)

	assert.Equal(t, []string{"000002_tags.up.sql"}, selectApplied(files, 1, 2))
	assert.Empty(t, selectApplied(files, 2, 2))
	assert.Equal(t, uint64(2), parseVersion("000002_tags.up.sql"))
}
