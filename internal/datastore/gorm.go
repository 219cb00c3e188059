package datastore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/camruler/camruler/internal/conf"
	"github.com/camruler/camruler/internal/errors"
	"github.com/camruler/camruler/internal/logger"
	"github.com/camruler/camruler/internal/measure"
)

const (
	slowQueryThreshold = 200 * time.Millisecond
	mysqlDialTimeout   = 10 * time.Second
)

// Measurement is the database row of a saved record.
type Measurement struct {
	ID        uint      `gorm:"primaryKey"`
	Product   int       `gorm:"index;not null"`
	Width     float64   `gorm:"not null"`
	Height    float64   `gorm:"not null"`
	Distances string    `gorm:"type:text"`
	Ratio     float64
	SavedAt   time.Time `gorm:"index"`
}

func (Measurement) TableName() string { return "measurements" }

func toMeasurement(rec measure.Record) Measurement {
	return Measurement{
		Product:   rec.Product,
		Width:     rec.Width,
		Height:    rec.Height,
		Distances: measure.JoinDistances(rec.Distances),
		Ratio:     rec.Ratio,
		SavedAt:   rec.SavedAt,
	}
}

func (m Measurement) toRecord() (measure.Record, error) {
	distances, err := measure.ParseDistances(m.Distances)
	if err != nil {
		return measure.Record{}, err
	}
	return measure.Record{
		Product:   m.Product,
		Width:     m.Width,
		Height:    m.Height,
		Distances: distances,
		Ratio:     m.Ratio,
		SavedAt:   m.SavedAt,
	}, nil
}

// GormStore keeps records in a SQL table through GORM.
type GormStore struct {
	DB      *gorm.DB
	dialect string
	log     logger.Logger
}

// OpenSQLite opens or creates the SQLite mirror at path.
func OpenSQLite(ctx context.Context, path string, log logger.Logger) (*GormStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.New(err).
				Component(componentName).
				Category(errors.CategoryFileIO).
				Context("path", path).
				Build()
		}
	}
	return openGorm(ctx, "sqlite", sqlite.Open(path), log)
}

// MySQLDSN builds a DSN with credentials escaped by the driver.
func MySQLDSN(settings *conf.MySQLSettings) string {
	cfg := mysql.NewConfig()
	cfg.User = settings.Username
	cfg.Passwd = settings.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%s", settings.Host, settings.Port)
	cfg.DBName = settings.Database
	cfg.ParseTime = true
	cfg.Loc = time.Local
	cfg.Timeout = mysqlDialTimeout
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// OpenMySQL connects to the MySQL mirror.
func OpenMySQL(ctx context.Context, settings *conf.MySQLSettings, log logger.Logger) (*GormStore, error) {
	return openGorm(ctx, "mysql", gormmysql.Open(MySQLDSN(settings)), log)
}

func openGorm(ctx context.Context, dialect string, dialector gorm.Dialector, log logger.Logger) (*GormStore, error) {
	dbLog := log.Module(dialect)
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.NewGormLogger(dbLog, slowQueryThreshold),
	})
	if err != nil {
		return nil, errors.New(err).
			Component(componentName).
			Category(errors.CategoryDatabase).
			Context("dialect", dialect).
			Context("operation", "open").
			Build()
	}
	if err := db.WithContext(ctx).AutoMigrate(&Measurement{}); err != nil {
		return nil, errors.New(err).
			Component(componentName).
			Category(errors.CategoryDatabase).
			Context("dialect", dialect).
			Context("operation", "auto_migrate").
			Build()
	}
	dbLog.Info("database ready")
	return &GormStore{DB: db, dialect: dialect, log: dbLog}, nil
}

// Append implements Store.
func (s *GormStore) Append(ctx context.Context, rec measure.Record) error {
	row := toMeasurement(rec)
	if err := s.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return persistenceError(err, s.dialect+"_insert")
	}
	return nil
}

// List implements Store.
func (s *GormStore) List(ctx context.Context) ([]measure.Record, error) {
	var rows []Measurement
	if err := s.DB.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, persistenceError(err, s.dialect+"_select")
	}
	records := make([]measure.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toRecord()
		if err != nil {
			return nil, persistenceError(fmt.Errorf("row %d: %w", row.ID, err), s.dialect+"_decode")
		}
		records = append(records, rec)
	}
	return records, nil
}

// LastProductNumber implements Store.
func (s *GormStore) LastProductNumber(ctx context.Context) (int, error) {
	var last int
	err := s.DB.WithContext(ctx).Model(&Measurement{}).
		Select("COALESCE(MAX(product), 0)").
		Scan(&last).Error
	if err != nil {
		return 0, persistenceError(err, s.dialect+"_max_product")
	}
	return last, nil
}

// Close releases the connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
