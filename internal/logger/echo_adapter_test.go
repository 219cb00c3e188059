package logger

import (
	"bytes"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	gommonlog "github.com/labstack/gommon/log"
	"github.com/stretchr/testify/assert"
)

var _ echo.Logger = (*EchoLogger)(nil)

func TestEchoLoggerRoutesLevels(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewEchoLogger(NewSlogLogger(&buf, LogLevelInfo, time.UTC).Module("echo"))

	log.Debug("hidden")
	log.Errorf("listener failed: %s", "address in use")
	log.Warnj(gommonlog.JSON{"status": 500})

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "module=echo")
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, `msg="listener failed: address in use"`)
	assert.Contains(t, out, "data=map[status:500]")
	assert.Equal(t, gommonlog.INFO, log.Level())
}

func TestEchoLoggerFatalPanics(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewEchoLogger(NewSlogLogger(&buf, LogLevelInfo, time.UTC))
	assert.PanicsWithValue(t, "boom", func() { log.Fatal("boom") })
	assert.Contains(t, buf.String(), "msg=boom")
}
