package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger sends GORM output to a module logger. Statements are logged at
// TRACE. Failed and slow statements are logged at WARN.
type GormLogger struct {
	log  Logger
	slow time.Duration
}

// NewGormLogger returns a GORM logger writing to log. Statements slower than
// slow are reported; zero disables the check.
func NewGormLogger(log Logger, slow time.Duration) *GormLogger {
	if log == nil {
		log = NewSlogLogger(nil, LogLevelInfo, nil)
	}
	return &GormLogger{log: log, slow: slow}
}

// LogMode is a no-op: the module level of log decides what is written.
func (g *GormLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface { return g }

func (g *GormLogger) Info(_ context.Context, msg string, args ...any) {
	g.log.Debug(fmt.Sprintf(msg, args...))
}

func (g *GormLogger) Warn(_ context.Context, msg string, args ...any) {
	g.log.Warn(fmt.Sprintf(msg, args...))
}

func (g *GormLogger) Error(_ context.Context, msg string, args ...any) {
	g.log.Error(fmt.Sprintf(msg, args...))
}

// Trace logs one executed statement. A missing row is not a failure.
func (g *GormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	took := time.Since(begin)
	stmt, rows := fc()
	log := g.log.With(String("sql", stmt), Int64("rows", rows), Duration("took", took))

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Warn("statement failed", Error(err))
		return
	}
	if g.slow > 0 && took > g.slow {
		log.Warn("slow statement", Duration("slow_threshold", g.slow))
		return
	}
	log.Trace("statement")
}
