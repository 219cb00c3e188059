package logger

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlogLoggerLevels(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelInfo, time.UTC)

	log.Debug("hidden")
	log.Info("shown", String("unit", "cm"), Float64("ratio", 0.054938))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, "unit=cm")
	assert.Contains(t, out, "ratio=0.055")
	assert.NotContains(t, out, "time=")
}

func TestModuleScoping(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelTrace, time.UTC).Module("session").Module("manager")
	log.Trace("evicted", Int("sessions", 2))

	out := buf.String()
	assert.Contains(t, out, "module=session.manager")
	assert.Contains(t, out, "level=TRACE")
}

func TestWithAndContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := NewSlogLogger(&buf, LogLevelDebug, time.UTC).Module("api")
	log := base.With(String("session_id", "abc")).WithContext(WithTraceID(context.Background(), "req-1"))
	log.Warn("capture failed", Error(errors.New("no frame")))

	out := buf.String()
	assert.Contains(t, out, "session_id=abc")
	assert.Contains(t, out, "trace_id=req-1")
	assert.Contains(t, out, `error="no frame"`)

	buf.Reset()
	base.Info("plain")
	assert.NotContains(t, buf.String(), "session_id")
}

func TestCentralLoggerFileOutput(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "camruler.log")
	cl, err := NewCentralLogger(&LoggingConfig{
		DefaultLevel: "debug",
		Timezone:     "UTC",
		Console:      &ConsoleOutput{Enabled: false},
		FileOutput:   &FileOutput{Enabled: true, Path: path, Level: "debug"},
		ModuleLevels: map[string]string{"video": "error"},
	})
	require.NoError(t, err)

	cl.Module("datastore").Debug("row appended", Int("product", 3))
	cl.Module("video").Info("suppressed")
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"module":"datastore"`)
	assert.Contains(t, string(data), `"product":3`)
	assert.NotContains(t, string(data), "suppressed")
}

func TestNewCentralLoggerRejectsBadTimezone(t *testing.T) {
	t.Parallel()

	_, err := NewCentralLogger(&LoggingConfig{Timezone: "Mars/Olympus"})
	require.Error(t, err)
}

func TestBufferedFileWriterCloseIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "w.log")
	w, err := NewBufferedFileWriter(path, WithFlushInterval(0))
	require.NoError(t, err)

	_, err = w.Write([]byte("line\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	_, err = w.Write([]byte("late\n"))
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "line\n", string(data))
}
