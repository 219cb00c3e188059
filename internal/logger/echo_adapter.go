package logger

import (
	"fmt"
	"io"

	gommonlog "github.com/labstack/gommon/log"
)

// EchoLogger routes echo's internal logging (listener errors, recovered
// panics) through a Logger. Output, prefix, header and level settings are
// owned by the central logger, so their setters do nothing.
//
//	e.Logger = logger.NewEchoLogger(central.Module("echo"))
type EchoLogger struct {
	log Logger
}

// NewEchoLogger wraps log. A nil log discards everything below error.
func NewEchoLogger(log Logger) *EchoLogger {
	if log == nil {
		log = NewSlogLogger(nil, LogLevelError, nil)
	}
	return &EchoLogger{log: log}
}

func (e *EchoLogger) Output() io.Writer              { return io.Discard }
func (e *EchoLogger) SetOutput(io.Writer)            {}
func (e *EchoLogger) Prefix() string                 { return "" }
func (e *EchoLogger) SetPrefix(string)               {}
func (e *EchoLogger) Level() gommonlog.Lvl           { return gommonlog.INFO }
func (e *EchoLogger) SetLevel(gommonlog.Lvl)         {}
func (e *EchoLogger) SetHeader(string)               {}
func (e *EchoLogger) Print(i ...any)                 { e.log.Info(fmt.Sprint(i...)) }
func (e *EchoLogger) Printf(format string, a ...any) { e.log.Info(fmt.Sprintf(format, a...)) }
func (e *EchoLogger) Printj(j gommonlog.JSON)        { e.log.Info("echo", jsonField(j)) }
func (e *EchoLogger) Debug(i ...any)                 { e.log.Debug(fmt.Sprint(i...)) }
func (e *EchoLogger) Debugf(format string, a ...any) { e.log.Debug(fmt.Sprintf(format, a...)) }
func (e *EchoLogger) Debugj(j gommonlog.JSON)        { e.log.Debug("echo", jsonField(j)) }
func (e *EchoLogger) Info(i ...any)                  { e.log.Info(fmt.Sprint(i...)) }
func (e *EchoLogger) Infof(format string, a ...any)  { e.log.Info(fmt.Sprintf(format, a...)) }
func (e *EchoLogger) Infoj(j gommonlog.JSON)         { e.log.Info("echo", jsonField(j)) }
func (e *EchoLogger) Warn(i ...any)                  { e.log.Warn(fmt.Sprint(i...)) }
func (e *EchoLogger) Warnf(format string, a ...any)  { e.log.Warn(fmt.Sprintf(format, a...)) }
func (e *EchoLogger) Warnj(j gommonlog.JSON)         { e.log.Warn("echo", jsonField(j)) }
func (e *EchoLogger) Error(i ...any)                 { e.log.Error(fmt.Sprint(i...)) }
func (e *EchoLogger) Errorf(format string, a ...any) { e.log.Error(fmt.Sprintf(format, a...)) }
func (e *EchoLogger) Errorj(j gommonlog.JSON)        { e.log.Error("echo", jsonField(j)) }

// Fatal and Panic log at error level and panic; the recover middleware or
// the caller decides what happens next.
func (e *EchoLogger) Fatal(i ...any)                 { e.fail(fmt.Sprint(i...)) }
func (e *EchoLogger) Fatalf(format string, a ...any) { e.fail(fmt.Sprintf(format, a...)) }
func (e *EchoLogger) Fatalj(j gommonlog.JSON)        { e.fail(fmt.Sprint(j)) }
func (e *EchoLogger) Panic(i ...any)                 { e.fail(fmt.Sprint(i...)) }
func (e *EchoLogger) Panicf(format string, a ...any) { e.fail(fmt.Sprintf(format, a...)) }
func (e *EchoLogger) Panicj(j gommonlog.JSON)        { e.fail(fmt.Sprint(j)) }

func (e *EchoLogger) fail(msg string) {
	e.log.Error(msg)
	panic(msg)
}

func jsonField(j gommonlog.JSON) Field {
	return Any("data", map[string]any(j))
}
