package datastore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camruler/camruler/internal/errors"
	"github.com/camruler/camruler/internal/logger"
	"github.com/camruler/camruler/internal/measure"
)

func scenarioRecord(t *testing.T, product int) measure.Record {
	t.Helper()
	rec, err := measure.NewRecord(product, []measure.Point{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 50}}, 0.15)
	require.NoError(t, err)
	return rec
}

func TestCSVStoreRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "out", "measurements.csv")
	store := NewCSVStore(path)
	ctx := t.Context()

	require.NoError(t, store.Append(ctx, scenarioRecord(t, 1)))

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, records[0].Product)
	assert.InDelta(t, 15.0, records[0].Width, 1e-9)
	assert.InDelta(t, 7.5, records[0].Height, 1e-9)
	assert.Equal(t, "15.00, 7.50", measure.JoinDistances(records[0].Distances))
}

func TestCSVStoreHeaderWrittenOnce(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "measurements.csv")
	ctx := t.Context()

	require.NoError(t, NewCSVStore(path).Append(ctx, scenarioRecord(t, 1)))
	// a second store simulates a later run
	require.NoError(t, NewCSVStore(path).Append(ctx, scenarioRecord(t, 2)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Product Number,Width (cm),Height (cm),Distances (cm)", lines[0])
	assert.Equal(t, `1,15.00,7.50,"15.00, 7.50"`, lines[1])
	assert.Equal(t, `2,15.00,7.50,"15.00, 7.50"`, lines[2])

	last, err := NewCSVStore(path).LastProductNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, last)
}

func TestCSVStoreMissingFileIsEmpty(t *testing.T) {
	t.Parallel()
	store := NewCSVStore(filepath.Join(t.TempDir(), "none.csv"))
	records, err := store.List(t.Context())
	require.NoError(t, err)
	assert.Empty(t, records)

	last, err := store.LastProductNumber(t.Context())
	require.NoError(t, err)
	assert.Zero(t, last)
}

func TestCSVStoreUnwritable(t *testing.T) {
	t.Parallel()
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	store := NewCSVStore(filepath.Join(blocker, "measurements.csv"))
	err := store.Append(t.Context(), scenarioRecord(t, 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.True(t, errors.IsCategory(err, errors.CategoryPersistence))
}

func TestCSVStoreSkipsCorruptRows(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "measurements.csv")
	content := "Product Number,Width (cm),Height (cm),Distances (cm)\n" +
		"abc,1.00,2.00,\n" +
		"4,1.00,2.00,\"1.00\"\n" +
		"5,\"broken\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	records, err := NewCSVStore(path).List(t.Context())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 4, records[0].Product)
}

func TestCSVStoreRecoversFromInterruptedAppend(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "measurements.csv")
	ctx := t.Context()
	store := NewCSVStore(path)
	require.NoError(t, store.Append(ctx, scenarioRecord(t, 1)))

	// a write cut short by a full disk
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString("2,15.0")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	last, err := store.LastProductNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, last)

	require.NoError(t, store.Append(ctx, scenarioRecord(t, 2)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "2,15.0", lines[2])
	assert.Equal(t, `2,15.00,7.50,"15.00, 7.50"`, lines[3])

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []int{1, 2}, []int{records[0].Product, records[1].Product})
}

func TestCSVStoreRefusesAppendOnFullDisk(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "measurements.csv")
	store := NewCSVStore(path)
	store.freeSpace = func(string) (uint64, error) { return 512, nil }

	err := store.Append(t.Context(), scenarioRecord(t, 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, ErrDiskFull)
	_, statErr := os.Stat(path)
	assert.ErrorIs(t, statErr, os.ErrNotExist)

	store.freeSpace = func(string) (uint64, error) { return 0, errors.NewStd("statfs unsupported") }
	require.NoError(t, store.Append(t.Context(), scenarioRecord(t, 1)))
}

func TestDiskFreeSpace(t *testing.T) {
	t.Parallel()
	free, err := getDiskFreeSpace(t.TempDir())
	require.NoError(t, err)
	assert.Positive(t, free)
}

type failingStore struct {
	appends int
	last    int
}

func (f *failingStore) Append(context.Context, measure.Record) error {
	f.appends++
	return errors.NewStd("mirror down")
}
func (f *failingStore) List(context.Context) ([]measure.Record, error) { return nil, nil }
func (f *failingStore) LastProductNumber(context.Context) (int, error) {
	return f.last, nil
}
func (f *failingStore) Close() error { return nil }

func TestMirroredStoreIgnoresMirrorFailure(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "measurements.csv")
	mirror := &failingStore{last: 7}
	store := NewMirroredStore(NewCSVStore(path), []Store{mirror}, logger.NewSlogLogger(nil, logger.LogLevelError, nil))

	require.NoError(t, store.Append(t.Context(), scenarioRecord(t, 1)))
	assert.Equal(t, 1, mirror.appends)

	records, err := store.List(t.Context())
	require.NoError(t, err)
	assert.Len(t, records, 1)

	last, err := store.LastProductNumber(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 7, last)
	assert.NoError(t, store.Close())
}
