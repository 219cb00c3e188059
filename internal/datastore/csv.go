package datastore

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/camruler/camruler/internal/errors"
	"github.com/camruler/camruler/internal/logger"
	"github.com/camruler/camruler/internal/measure"
)

// minFreeSpace is the free space an append requires on the table's volume.
const minFreeSpace = 1 << 20

// ErrDiskFull is returned by Append when the table's volume is nearly full.
var ErrDiskFull = errors.NewStd("insufficient disk space")

// CSVStore keeps records in a CSV file. The header is written once, when the
// file is created; later writes only append.
type CSVStore struct {
	path string
	log  logger.Logger
	mu   sync.Mutex

	// freeSpace reports the bytes available to dir
	freeSpace func(dir string) (uint64, error)
}

// CSVOption configures a CSVStore.
type CSVOption func(*CSVStore)

// WithCSVLogger sets the logger that reports skipped rows.
func WithCSVLogger(log logger.Logger) CSVOption {
	return func(s *CSVStore) { s.log = log }
}

// NewCSVStore returns a store for path. Nothing is touched until the first
// Append.
func NewCSVStore(path string, opts ...CSVOption) *CSVStore {
	s := &CSVStore{path: path, freeSpace: getDiskFreeSpace}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.NewSlogLogger(nil, logger.LogLevelError, nil)
	}
	return s
}

// Path returns the table location.
func (s *CSVStore) Path() string { return s.path }

// Append implements Store. Failures are returned wrapped in ErrPersistence
// and never retried.
func (s *CSVStore) Append(_ context.Context, rec measure.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return persistenceError(err, "create_table_dir")
	}
	if err := s.checkFreeSpace(dir); err != nil {
		return err
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return persistenceError(err, "open_table")
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return persistenceError(err, "stat_table")
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		_ = w.Write(Header)
	} else if err := terminateLastLine(f, info.Size()); err != nil {
		_ = f.Close()
		return persistenceError(err, "repair_last_line")
	}
	_ = w.Write(rec.Row())
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return persistenceError(err, "append_row")
	}
	if err := f.Close(); err != nil {
		return persistenceError(err, "close_table")
	}
	return nil
}

// checkFreeSpace refuses the append before anything is written when the
// volume is nearly full. A volume that cannot be queried is not an error.
func (s *CSVStore) checkFreeSpace(dir string) error {
	free, err := s.freeSpace(dir)
	if err != nil {
		s.log.Debug("free space check unavailable", logger.String("dir", dir), logger.Error(err))
		return nil
	}
	if free < minFreeSpace {
		return errors.New(errors.Join(ErrPersistence, ErrDiskFull)).
			Component(componentName).
			Category(errors.CategoryPersistence).
			Priority(errors.PriorityHigh).
			Context("operation", "check_disk_space").
			Context("free_bytes", free).
			Build()
	}
	return nil
}

// terminateLastLine appends a newline when an interrupted write left the
// last row unterminated, so the next row starts on its own line.
func terminateLastLine(f *os.File, size int64) error {
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, size-1); err != nil {
		return err
	}
	if last[0] == '\n' {
		return nil
	}
	_, err := f.Write([]byte{'\n'})
	return err
}

// List implements Store. A missing file is an empty table. Rows that cannot
// be parsed are skipped with a warning so one damaged line does not hide the
// rest of the table.
func (s *CSVStore) List(_ context.Context) ([]measure.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []measure.Record{}, nil
	}
	if err != nil {
		return nil, persistenceError(err, "open_table")
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records := []measure.Record{}
	for first := true; ; first = false {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			s.skipRow(parseErr.Line, err)
			continue
		}
		if err != nil {
			return nil, persistenceError(err, "read_table")
		}
		if first && row[0] == Header[0] {
			continue
		}
		line, _ := r.FieldPos(0)
		if len(row) != len(Header) {
			s.skipRow(line, fmt.Errorf("%d fields, want %d", len(row), len(Header)))
			continue
		}
		rec, err := parseRow(row)
		if err != nil {
			s.skipRow(line, err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// LastProductNumber implements Store.
func (s *CSVStore) LastProductNumber(ctx context.Context) (int, error) {
	records, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	last := 0
	for _, r := range records {
		last = max(last, r.Product)
	}
	return last, nil
}

func (s *CSVStore) Close() error { return nil }

func (s *CSVStore) skipRow(line int, err error) {
	s.log.Warn("skipping unreadable table row",
		logger.String("path", s.path),
		logger.Int("line", line),
		logger.Error(err))
}

func parseRow(row []string) (measure.Record, error) {
	product, err := strconv.Atoi(row[0])
	if err != nil {
		return measure.Record{}, fmt.Errorf("product number %q: %w", row[0], err)
	}
	width, err := strconv.ParseFloat(row[1], 64)
	if err != nil {
		return measure.Record{}, fmt.Errorf("width %q: %w", row[1], err)
	}
	height, err := strconv.ParseFloat(row[2], 64)
	if err != nil {
		return measure.Record{}, fmt.Errorf("height %q: %w", row[2], err)
	}
	distances, err := measure.ParseDistances(row[3])
	if err != nil {
		return measure.Record{}, fmt.Errorf("distances %q: %w", row[3], err)
	}
	return measure.Record{
		Product:   product,
		Width:     width,
		Height:    height,
		Distances: distances,
	}, nil
}
