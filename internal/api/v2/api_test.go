package v2

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camruler/camruler/internal/conf"
	"github.com/camruler/camruler/internal/errors"
	"github.com/camruler/camruler/internal/logger"
	"github.com/camruler/camruler/internal/measure"
	"github.com/camruler/camruler/internal/observability"
	"github.com/camruler/camruler/internal/session"
	"github.com/camruler/camruler/internal/video"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type memStore struct {
	mu      sync.Mutex
	records []measure.Record
	fail    error
}

func (m *memStore) Append(_ context.Context, rec measure.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *memStore) List(context.Context) ([]measure.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]measure.Record(nil), m.records...), nil
}

func (m *memStore) LastProductNumber(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	last := 0
	for _, r := range m.records {
		last = max(last, r.Product)
	}
	return last, nil
}

func (m *memStore) Close() error { return nil }

type testEnv struct {
	echo       *echo.Echo
	controller *Controller
	mailbox    *video.Mailbox
	push       *video.PushSource
	store      *memStore
	metrics    *observability.Metrics
}

func newTestEnv(t *testing.T, mutate ...func(*conf.Settings)) *testEnv {
	t.Helper()
	settings := conf.Default()
	for _, fn := range mutate {
		fn(settings)
	}
	log := testLogger()

	m, err := observability.NewMetrics()
	require.NoError(t, err)

	store := &memStore{}
	mb := video.NewMailbox()
	push := video.NewPushSource(log)
	push.Attach(mb)
	mgr := session.NewManager(session.DefaultConfig(), store, testSecret, time.Hour, log,
		session.WithMetrics(m.Measurement))

	e := echo.New()
	c, err := New(e, Deps{
		Settings: settings,
		Sessions: mgr,
		Mailbox:  mb,
		Push:     push,
		Store:    store,
		Metrics:  m,
		Logger:   log,
	})
	require.NoError(t, err)
	t.Cleanup(c.Shutdown)
	return &testEnv{echo: e, controller: c, mailbox: mb, push: push, store: store, metrics: m}
}

// client replays the session cookie like a browser would.
type client struct {
	t       *testing.T
	env     *testEnv
	cookies []*http.Cookie
}

func (e *testEnv) client(t *testing.T) *client {
	return &client{t: t, env: e}
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(c.t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, Prefix+path, r)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c.env.echo.ServeHTTP(rec, req)
	if set := rec.Result().Cookies(); len(set) > 0 {
		c.cookies = set
	}
	return rec
}

func (c *client) snapshot(rec *httptest.ResponseRecorder) session.Snapshot {
	c.t.Helper()
	require.Equal(c.t, http.StatusOK, rec.Code, rec.Body.String())
	var snap session.Snapshot
	require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), &snap))
	return snap
}

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil))
	return buf.Bytes()
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestNewRequiresCollaborators(t *testing.T) {
	t.Parallel()
	_, err := New(echo.New(), Deps{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestStatusFor(t *testing.T) {
	t.Parallel()
	build := func(cat errors.ErrorCategory) error {
		return errors.Newf("boom").Component("test").Category(cat).Build()
	}
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"live frame missing", errors.New(video.ErrNoFrame).Category(errors.CategoryVideoSource).Build(), http.StatusConflict},
		{"session frame missing", session.ErrNoFrame, http.StatusConflict},
		{"invalid jpeg", video.ErrInvalidFrame, http.StatusUnprocessableEntity},
		{"calibration", build(errors.CategoryCalibration), http.StatusUnprocessableEntity},
		{"measurement", build(errors.CategoryMeasurement), http.StatusUnprocessableEntity},
		{"validation", build(errors.CategoryValidation), http.StatusUnprocessableEntity},
		{"state", build(errors.CategoryState), http.StatusConflict},
		{"not found", build(errors.CategoryNotFound), http.StatusNotFound},
		{"persistence", build(errors.CategoryPersistence), http.StatusInternalServerError},
		{"plain", errors.NewStd("x"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	rec := env.client(t).do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, conf.VideoSourcePush, body["video_source"])
	assert.Contains(t, body, "uptime_seconds")
	assert.NotContains(t, body, "live_frame_age_seconds")
}

func TestGetLiveFrame(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	c := env.client(t)

	rec := c.do(http.MethodGet, "/frames/live", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.NotEmpty(t, decodeError(t, rec).CorrelationID)

	data := testJPEG(t, 64, 48)
	_, err := env.push.Ingest(data)
	require.NoError(t, err)

	rec = c.do(http.MethodGet, "/frames/live", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, "1", rec.Header().Get("X-Frame-Seq"))
	assert.Equal(t, data, rec.Body.Bytes())
}

func TestListRecords(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	for i := 1; i <= 3; i++ {
		env.store.records = append(env.store.records, measure.Record{Product: i, Distances: []float64{float64(i)}})
	}
	c := env.client(t)

	rec := c.do(http.MethodGet, "/records?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp RecordsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, 3, resp.Total)
	require.Len(t, resp.Records, 2)
	assert.Equal(t, 2, resp.Records[0].Product)
	assert.Equal(t, 3, resp.Records[1].Product)

	rec = c.do(http.MethodGet, "/records", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Count)

	rec = c.do(http.MethodGet, "/records?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorResponseUsesRequestID(t *testing.T) {
	t.Parallel()
	resp := NewErrorResponse(nil, "No frame", http.StatusConflict, "req-1")
	assert.Equal(t, "No frame", resp.Error)
	assert.Equal(t, "req-1", resp.CorrelationID)

	resp = NewErrorResponse(errors.NewStd("boom"), "Failed", http.StatusInternalServerError, "")
	assert.Equal(t, "boom", resp.Error)
	assert.Len(t, resp.CorrelationID, 36)
}

func ptr[T any](v T) *T { return &v }

func testLogger() logger.Logger {
	return logger.NewSlogLogger(nil, logger.LogLevelError, time.UTC)
}
