package datastore

import (
	"context"
	"time"

	"github.com/camruler/camruler/internal/measure"
	"github.com/camruler/camruler/internal/observability/metrics"
)

// instrumentedStore records latency and outcome of every call on the
// wrapped store.
type instrumentedStore struct {
	Store
	metrics *metrics.DatastoreMetrics
}

// Instrument wraps s so its operations are recorded on m. A nil m returns s
// unchanged.
func Instrument(s Store, m *metrics.DatastoreMetrics) Store {
	if m == nil {
		return s
	}
	return &instrumentedStore{Store: s, metrics: m}
}

func (s *instrumentedStore) Append(ctx context.Context, rec measure.Record) error {
	start := time.Now()
	err := s.Store.Append(ctx, rec)
	s.metrics.RecordOperation("append", start, err)
	if err == nil {
		s.metrics.IncRecordCount()
	}
	return err
}

func (s *instrumentedStore) List(ctx context.Context) ([]measure.Record, error) {
	start := time.Now()
	records, err := s.Store.List(ctx)
	s.metrics.RecordOperation("list", start, err)
	if err == nil {
		s.metrics.SetRecordCount(len(records))
	}
	return records, err
}

func (s *instrumentedStore) LastProductNumber(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := s.Store.LastProductNumber(ctx)
	s.metrics.RecordOperation("last_product", start, err)
	return n, err
}
