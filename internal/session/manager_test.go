package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/camruler/camruler/internal/errors"
	"github.com/camruler/camruler/internal/logger"
	"github.com/camruler/camruler/internal/measure"
	"github.com/camruler/camruler/internal/observability/metrics"
	"github.com/camruler/camruler/internal/video"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestManager(t *testing.T, store Store, opts ...Option) *Manager {
	t.Helper()
	return NewManager(DefaultConfig(), store, testSecret, time.Hour, logger.NewSlogLogger(nil, logger.LogLevelError, nil), opts...)
}

func TestManagerSeedsCounterFromStore(t *testing.T) {
	t.Parallel()
	mgr := newTestManager(t, &memStore{last: 41})

	s := mgr.Create(t.Context())
	assert.Equal(t, 42, s.Snapshot().NextProduct)

	got, ok := mgr.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, mgr.Count())

	_, ok = mgr.Get("unknown")
	assert.False(t, ok)
}

func TestManagerCreateSurvivesUnreadableStore(t *testing.T) {
	t.Parallel()
	store := &memStore{last: 5}
	mgr := newTestManager(t, store)
	assert.Equal(t, 6, mgr.Create(t.Context()).Snapshot().NextProduct)

	store.mu.Lock()
	store.seedErr = errors.NewStd("table unreadable")
	store.mu.Unlock()

	s := mgr.Create(t.Context())
	require.NotNil(t, s)
	assert.Equal(t, 6, s.Snapshot().NextProduct)

	rec := httptest.NewRecorder()
	_, err := mgr.FromRequest(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	require.NoError(t, err)
	assert.Len(t, rec.Result().Cookies(), 1)
}

func TestManagerFromRequestCookie(t *testing.T) {
	t.Parallel()
	mgr := newTestManager(t, &memStore{})

	rec := httptest.NewRecorder()
	first, err := mgr.FromRequest(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	require.NoError(t, err)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.AddCookie(cookies[0])
	second, err := mgr.FromRequest(httptest.NewRecorder(), req)
	require.NoError(t, err)
	assert.Same(t, first, second)

	bad := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	bad.AddCookie(&http.Cookie{Name: CookieName, Value: "tampered"})
	third, err := mgr.FromRequest(httptest.NewRecorder(), bad)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestManagerWorkflowWithHooksAndMetrics(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m, err := metrics.NewMeasurementMetrics(reg)
	require.NoError(t, err)

	var saved []measure.Record
	var ratios []float64
	store := &memStore{}
	mgr := newTestManager(t, store,
		WithMetrics(m),
		WithSaveHook(func(_ context.Context, rec measure.Record) { saved = append(saved, rec) }),
		WithCalibrateHook(func(r float64) { ratios = append(ratios, r) }),
	)

	s := mgr.Create(t.Context())

	mb := video.NewMailbox()
	_, err = mgr.Capture(s, mb)
	require.ErrorIs(t, err, video.ErrNoFrame)

	mb.Put(testFrame())
	_, err = mgr.Capture(s, mb)
	require.NoError(t, err)

	s.SetCalibrationMode(true)
	require.NoError(t, s.SetPoints(pts(0, 0, 100, 0)))
	_, err = mgr.Calibrate(s, nil)
	require.NoError(t, err)
	require.Equal(t, []float64{0.15}, ratios)

	s.SetCalibrationMode(false)
	require.NoError(t, s.SetPoints(pts(0, 0, 100, 0, 100, 50)))
	rec, err := mgr.Save(t.Context(), s)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, rec, saved[0])

	assert.Equal(t, 1, mgr.StartNewProduct(s))
	assert.InDelta(t, 1, testutil.ToFloat64(m.Captures), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Calibrations.WithLabelValues(metrics.ResultSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Saves.WithLabelValues(metrics.ResultSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ProductsStarted), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ActiveSessions), 0)
}

func TestManagerRunStops(t *testing.T) {
	t.Parallel()
	mgr := newTestManager(t, &memStore{})
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- mgr.Run(ctx) }()
	cancel()
	require.NoError(t, <-done)
}
