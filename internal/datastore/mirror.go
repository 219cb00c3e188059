package datastore

import (
	"context"

	"github.com/camruler/camruler/internal/errors"
	"github.com/camruler/camruler/internal/logger"
	"github.com/camruler/camruler/internal/measure"
)

// MirroredStore writes to a primary store and then to each mirror. Only the
// primary decides success; mirror failures are logged.
type MirroredStore struct {
	primary Store
	mirrors []Store
	log     logger.Logger
}

// NewMirroredStore combines primary with mirrors.
func NewMirroredStore(primary Store, mirrors []Store, log logger.Logger) *MirroredStore {
	return &MirroredStore{primary: primary, mirrors: mirrors, log: log}
}

// Append implements Store.
func (s *MirroredStore) Append(ctx context.Context, rec measure.Record) error {
	if err := s.primary.Append(ctx, rec); err != nil {
		return err
	}
	for i, m := range s.mirrors {
		if err := m.Append(ctx, rec); err != nil {
			s.log.Warn("mirror append failed",
				logger.Int("mirror", i),
				logger.Int("product", rec.Product),
				logger.Error(err))
		}
	}
	return nil
}

// List implements Store, reading from the primary.
func (s *MirroredStore) List(ctx context.Context) ([]measure.Record, error) {
	return s.primary.List(ctx)
}

// LastProductNumber implements Store. Mirrors are consulted too so numbering
// survives a lost primary file.
func (s *MirroredStore) LastProductNumber(ctx context.Context) (int, error) {
	last, err := s.primary.LastProductNumber(ctx)
	if err != nil {
		return 0, err
	}
	for i, m := range s.mirrors {
		n, err := m.LastProductNumber(ctx)
		if err != nil {
			s.log.Warn("mirror product lookup failed", logger.Int("mirror", i), logger.Error(err))
			continue
		}
		last = max(last, n)
	}
	return last, nil
}

// Close closes every store and joins their errors.
func (s *MirroredStore) Close() error {
	errs := []error{s.primary.Close()}
	for _, m := range s.mirrors {
		errs = append(errs, m.Close())
	}
	return errors.Join(errs...)
}
