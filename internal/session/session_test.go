package session

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camruler/camruler/internal/datastore"
	"github.com/camruler/camruler/internal/errors"
	"github.com/camruler/camruler/internal/measure"
	"github.com/camruler/camruler/internal/video"
)

type memStore struct {
	mu      sync.Mutex
	records []measure.Record
	last    int
	fail    error
	seedErr error
}

func (m *memStore) Append(_ context.Context, rec measure.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.records = append(m.records, rec)
	m.last = max(m.last, rec.Product)
	return nil
}

func (m *memStore) LastProductNumber(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seedErr != nil {
		return 0, m.seedErr
	}
	return m.last, nil
}

func testFrame() video.Frame {
	return video.Frame{Data: []byte{0xFF, 0xD8, 0xFF, 0xD9}, Width: 200, Height: 200, Seq: 1}
}

func pts(xy ...int) []measure.Point {
	out := make([]measure.Point, 0, len(xy)/2)
	for i := 0; i+1 < len(xy); i += 2 {
		out = append(out, measure.Point{X: xy[i], Y: xy[i+1]})
	}
	return out
}

func newCapturedSession(t *testing.T) *Session {
	t.Helper()
	s := New("test", DefaultConfig(), 0)
	s.Capture(testFrame())
	return s
}

func TestCalibrateThenMeasureAndSave(t *testing.T) {
	t.Parallel()
	s := newCapturedSession(t)
	store := &memStore{}

	s.SetCalibrationMode(true)
	require.NoError(t, s.SetPoints(pts(0, 0, 100, 0)))
	assert.Equal(t, StateCalibrating, s.Snapshot().State)

	known := 15.0
	res, err := s.Calibrate(&known)
	require.NoError(t, err)
	assert.False(t, res.Waiting)
	assert.InDelta(t, 0.15, res.Ratio, 1e-12)
	assert.InDelta(t, 100, res.PixelDistance, 1e-12)

	s.SetCalibrationMode(false)
	require.NoError(t, s.SetPoints(pts(0, 0, 100, 0, 100, 50)))

	snap := s.Snapshot()
	assert.Equal(t, StateMeasuring, snap.State)
	assert.True(t, snap.RatioExplicit)
	require.Len(t, snap.Segments, 2)
	assert.InDelta(t, 15.0, snap.Segments[0].Distance, 1e-9)
	assert.InDelta(t, 7.5, snap.Segments[1].Distance, 1e-9)
	assert.Equal(t, "Point 1 & 2", snap.DistanceTable[0].Pair)
	require.NotNil(t, snap.Extent)
	assert.InDelta(t, 15.0, snap.Extent.Width, 1e-9)
	assert.InDelta(t, 7.5, snap.Extent.Height, 1e-9)

	rec, err := s.Save(t.Context(), store)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Product)
	assert.Equal(t, []string{"1", "15.00", "7.50", "15.00, 7.50"}, rec.Row())
	require.Len(t, store.records, 1)

	after := s.Snapshot()
	assert.Equal(t, StateIdle, after.State)
	assert.Empty(t, after.Points)
	assert.False(t, after.HasFrame)
	assert.Equal(t, 0, after.Counter, "save does not advance the counter")
	assert.InDelta(t, 0.15, after.Ratio, 1e-12, "ratio survives a save")

	history := after.History
	require.GreaterOrEqual(t, len(history), 2)
	assert.Equal(t, StateSaved, history[len(history)-2].To)
	assert.Equal(t, StateIdle, history[len(history)-1].To)
}

func TestStartNewProductTwice(t *testing.T) {
	t.Parallel()
	s := New("test", DefaultConfig(), 4)

	for want := 5; want <= 6; want++ {
		s.Capture(testFrame())
		require.NoError(t, s.SetPoints(pts(1, 1, 2, 2)))

		assert.Equal(t, want, s.StartNewProduct())
		snap := s.Snapshot()
		assert.Equal(t, StateIdle, snap.State)
		assert.Empty(t, snap.Points)
		assert.Empty(t, snap.Segments)
		assert.False(t, snap.HasFrame)
		assert.Equal(t, want, snap.Counter)
		assert.Equal(t, want+1, snap.NextProduct)
	}
}

func TestCalibrateTooManyPointsClearsSelection(t *testing.T) {
	t.Parallel()
	s := newCapturedSession(t)
	// selected while measuring, then switched to calibration
	require.NoError(t, s.SetPoints(pts(0, 0, 10, 0, 20, 0)))
	s.SetCalibrationMode(true)

	_, err := s.Calibrate(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooManyCalibrationPoints)
	assert.True(t, errors.IsCategory(err, errors.CategoryCalibration))

	snap := s.Snapshot()
	assert.Empty(t, snap.Points)
	assert.False(t, snap.RatioExplicit)
	assert.InDelta(t, measure.DefaultRatio, snap.Ratio, 1e-15)
	assert.Equal(t, StateCapturing, snap.State)
}

func TestSetPointsRejectsThirdCalibrationPoint(t *testing.T) {
	t.Parallel()
	s := newCapturedSession(t)
	s.SetCalibrationMode(true)
	require.NoError(t, s.SetPoints(pts(0, 0, 100, 0)))

	err := s.SetPoints(pts(0, 0, 100, 0, 100, 50))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooManyCalibrationPoints)
	assert.True(t, errors.IsCategory(err, errors.CategoryCalibration))
	assert.Empty(t, s.Snapshot().Points)

	s.SetCalibrationMode(false)
	snap := s.Snapshot()
	assert.Empty(t, snap.Points)
	assert.Empty(t, snap.Segments)
	assert.NotEqual(t, StateMeasuring, snap.State)
}

func TestCalibrateDegenerateClearsSelection(t *testing.T) {
	t.Parallel()
	s := newCapturedSession(t)
	s.SetCalibrationMode(true)

	require.NoError(t, s.SetPoints(pts(0, 0, 100, 0)))
	_, err := s.Calibrate(nil)
	require.NoError(t, err)

	require.NoError(t, s.SetPoints(pts(5, 5, 5, 5)))
	_, err = s.Calibrate(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, measure.ErrDegenerateCalibration)

	snap := s.Snapshot()
	assert.Empty(t, snap.Points)
	assert.InDelta(t, 0.15, snap.Ratio, 1e-12, "previous ratio kept")
}

func TestCalibrateWaitsForTwoPoints(t *testing.T) {
	t.Parallel()
	s := newCapturedSession(t)
	s.SetCalibrationMode(true)
	require.NoError(t, s.SetPoints(pts(3, 3)))

	res, err := s.Calibrate(nil)
	require.NoError(t, err)
	assert.True(t, res.Waiting)
	assert.Len(t, s.Snapshot().Points, 1)
}

func TestCalibrateRequiresMode(t *testing.T) {
	t.Parallel()
	s := newCapturedSession(t)
	require.NoError(t, s.SetPoints(pts(0, 0, 100, 0)))

	_, err := s.Calibrate(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotCalibrating)
	assert.Len(t, s.Snapshot().Points, 2)
}

func TestKnownLengthBounds(t *testing.T) {
	t.Parallel()
	s := New("test", DefaultConfig(), 0)
	assert.InDelta(t, 15.0, s.Snapshot().KnownLength, 0)

	require.NoError(t, s.SetKnownLength(0.1))
	for _, bad := range []float64{0.05, 0, -3} {
		err := s.SetKnownLength(bad)
		require.Error(t, err, "known length %v", bad)
		assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	}
	assert.InDelta(t, 0.1, s.Snapshot().KnownLength, 0)
}

func TestSetPointsValidation(t *testing.T) {
	t.Parallel()
	s := New("test", DefaultConfig(), 0)
	err := s.SetPoints(pts(1, 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoFrame)

	s.Capture(testFrame())
	err = s.SetPoints(pts(1, 1, 250, 10))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPointOutOfFrame)
	assert.Empty(t, s.Snapshot().Points)
}

func TestCaptureClearsPoints(t *testing.T) {
	t.Parallel()
	s := newCapturedSession(t)
	require.NoError(t, s.SetPoints(pts(1, 1, 2, 2)))

	s.Capture(testFrame())
	snap := s.Snapshot()
	assert.Empty(t, snap.Points)
	assert.Equal(t, StateCapturing, snap.State)
}

func TestSaveNeedsTwoPoints(t *testing.T) {
	t.Parallel()
	s := newCapturedSession(t)
	require.NoError(t, s.SetPoints(pts(1, 1)))

	store := &memStore{}
	_, err := s.Save(t.Context(), store)
	require.Error(t, err)
	assert.ErrorIs(t, err, measure.ErrInsufficientPoints)
	assert.Empty(t, store.records)
}

func TestSaveUsesDefaultRatio(t *testing.T) {
	t.Parallel()
	s := newCapturedSession(t)
	require.NoError(t, s.SetPoints(pts(0, 0, 0, 100)))

	rec, err := s.Save(t.Context(), &memStore{})
	require.NoError(t, err)
	assert.InDelta(t, 100*measure.DefaultRatio, rec.Height, 1e-9)
	assert.InDelta(t, measure.DefaultRatio, rec.Ratio, 1e-15)
}

func TestSaveFailureKeepsState(t *testing.T) {
	t.Parallel()
	s := newCapturedSession(t)
	require.NoError(t, s.SetPoints(pts(0, 0, 10, 10)))

	store := &memStore{fail: datastore.ErrPersistence}
	_, err := s.Save(t.Context(), store)
	require.Error(t, err)
	assert.ErrorIs(t, err, datastore.ErrPersistence)

	snap := s.Snapshot()
	assert.Len(t, snap.Points, 2)
	assert.True(t, snap.HasFrame)

	store.fail = nil
	rec, err := s.Save(t.Context(), store)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Product)
}

func TestFrameIsCopy(t *testing.T) {
	t.Parallel()
	s := New("test", DefaultConfig(), 0)
	_, err := s.Frame()
	require.ErrorIs(t, err, ErrNoFrame)

	in := testFrame()
	s.Capture(in)
	in.Data[0] = 0

	f, err := s.Frame()
	require.NoError(t, err)
	assert.Equal(t, byte(0xFF), f.Data[0])
}

func TestRestoredRatio(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Ratio = 0.2
	snap := New("test", cfg, 0).Snapshot()
	assert.True(t, snap.RatioExplicit)
	assert.InDelta(t, 0.2, snap.Ratio, 0)

	cfg.Ratio = -1
	snap = New("test", cfg, 0).Snapshot()
	assert.False(t, snap.RatioExplicit)
}
