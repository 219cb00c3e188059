package datastore

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3" // raw driver for reading the mirror file
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camruler/camruler/internal/conf"
	"github.com/camruler/camruler/internal/logger"
	"github.com/camruler/camruler/internal/measure"
)

func TestSQLiteStore(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	store, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "db", "camruler.db"), logger.NewSlogLogger(nil, logger.LogLevelError, nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	last, err := store.LastProductNumber(ctx)
	require.NoError(t, err)
	assert.Zero(t, last)

	require.NoError(t, store.Append(ctx, scenarioRecord(t, 3)))
	require.NoError(t, store.Append(ctx, scenarioRecord(t, 4)))

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 3, records[0].Product)
	assert.Equal(t, []float64{15, 7.5}, records[1].Distances)
	assert.InDelta(t, 0.15, records[1].Ratio, 1e-12)

	last, err = store.LastProductNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, last)
}

func TestNewWithSQLiteMirror(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	settings := &conf.OutputSettings{
		CSV:    conf.CSVSettings{Path: filepath.Join(dir, "measurements.csv")},
		SQLite: conf.SQLiteSettings{Enabled: true, Path: filepath.Join(dir, "camruler.db")},
	}
	store, err := New(t.Context(), settings, logger.NewSlogLogger(nil, logger.LogLevelError, nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.IsType(t, &MirroredStore{}, store)

	require.NoError(t, store.Append(t.Context(), scenarioRecord(t, 1)))
	records, err := store.List(t.Context())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "15.00, 7.50", measure.JoinDistances(records[0].Distances))

	// the mirror is a plain SQLite file other tools can read
	db, err := sql.Open("sqlite3", settings.SQLite.Path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	var product int
	var width float64
	require.NoError(t, db.QueryRowContext(t.Context(),
		"SELECT product, width FROM measurements ORDER BY id DESC LIMIT 1").Scan(&product, &width))
	assert.Equal(t, 1, product)
	assert.InDelta(t, 15.0, width, 1e-9)
}

func TestMySQLDSN(t *testing.T) {
	t.Parallel()
	dsn := MySQLDSN(&conf.MySQLSettings{
		Username: "user",
		Password: "p@ss:word",
		Host:     "db.local",
		Port:     "3306",
		Database: "camruler",
	})
	assert.Contains(t, dsn, "user:p@ss:word@tcp(db.local:3306)/camruler")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}
