// Package datastore persists measurement records. The CSV table is the
// primary store; SQLite and MySQL tables can mirror it.
package datastore

import (
	"context"

	"github.com/camruler/camruler/internal/conf"
	"github.com/camruler/camruler/internal/errors"
	"github.com/camruler/camruler/internal/logger"
	"github.com/camruler/camruler/internal/measure"
)

const componentName = "datastore"

// ErrPersistence means a record could not be written or read back.
var ErrPersistence = errors.NewStd("persistence failure")

// Header is the column header of the measurement table.
var Header = []string{"Product Number", "Width (cm)", "Height (cm)", "Distances (cm)"}

// Store is an append-only table of measurement records.
type Store interface {
	// Append writes exactly one record after all existing ones.
	Append(ctx context.Context, rec measure.Record) error
	// List returns all records in insertion order.
	List(ctx context.Context) ([]measure.Record, error)
	// LastProductNumber returns the highest product number stored, 0 when
	// the table is empty.
	LastProductNumber(ctx context.Context) (int, error)
	Close() error
}

// New opens the CSV table plus whichever mirrors settings enable.
func New(ctx context.Context, settings *conf.OutputSettings, log logger.Logger) (Store, error) {
	dsLog := log.Module(componentName)
	primary := NewCSVStore(settings.CSV.Path, WithCSVLogger(dsLog))

	var mirrors []Store
	if settings.SQLite.Enabled {
		s, err := OpenSQLite(ctx, settings.SQLite.Path, dsLog)
		if err != nil {
			return nil, err
		}
		mirrors = append(mirrors, s)
	}
	if settings.MySQL.Enabled {
		s, err := OpenMySQL(ctx, &settings.MySQL, dsLog)
		if err != nil {
			for _, m := range mirrors {
				_ = m.Close()
			}
			return nil, err
		}
		mirrors = append(mirrors, s)
	}
	if len(mirrors) == 0 {
		return primary, nil
	}
	return NewMirroredStore(primary, mirrors, dsLog), nil
}

// persistenceError wraps err as a persistence failure of op.
func persistenceError(err error, op string) error {
	return errors.New(errors.Join(ErrPersistence, err)).
		Component(componentName).
		Category(errors.CategoryPersistence).
		Priority(errors.PriorityHigh).
		Context("operation", op).
		Build()
}
