// Package session holds the per-operator measurement workflow: the captured
// frame, the selected points, the calibration ratio and the product counter.
// Each Session is an explicit value owned by the Manager and handed to
// request handlers.
package session

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/camruler/camruler/internal/errors"
	"github.com/camruler/camruler/internal/measure"
	"github.com/camruler/camruler/internal/video"
)

const componentName = "session"

// Actions recorded in the transition history.
const (
	ActionStartNewProduct = "start_new_product"
	ActionCapture         = "capture"
	ActionSetPoints       = "set_points"
	ActionSetMode         = "set_mode"
	ActionCalibrate       = "calibrate"
	ActionSave            = "save"
)

var (
	// ErrTooManyCalibrationPoints means more than two points were selected
	// in calibration mode.
	ErrTooManyCalibrationPoints = errors.NewStd("calibration needs exactly 2 points")
	// ErrNoFrame means the action needs a captured frame.
	ErrNoFrame = errors.NewStd("no frame captured")
	// ErrNotCalibrating means calibrate was called outside calibration mode.
	ErrNotCalibrating = errors.NewStd("calibration mode is off")
	// ErrPointOutOfFrame means a point lies outside the captured frame.
	ErrPointOutOfFrame = errors.NewStd("point outside captured frame")
)

// Config holds the measurement settings a session starts with.
type Config struct {
	DefaultRatio float64
	KnownLength  float64
	MinLength    float64
	Epsilon      float64
	Unit         string
	// Ratio is a persisted calibration restored at session start, 0 if none.
	Ratio float64
}

// DefaultConfig mirrors the built-in configuration defaults.
func DefaultConfig() Config {
	return Config{
		DefaultRatio: measure.DefaultRatio,
		KnownLength:  15.0,
		MinLength:    0.1,
		Epsilon:      measure.DefaultEpsilon,
		Unit:         "cm",
	}
}

// Recorder persists saved records.
type Recorder interface {
	Append(ctx context.Context, rec measure.Record) error
}

// Session is one operator's workflow state. All methods are safe for
// concurrent use; each call runs to completion before the next.
type Session struct {
	ID string

	mu              sync.Mutex
	cfg             Config
	state           State
	calibrationMode bool
	points          []measure.Point
	ratio           float64 // 0 until calibrated
	knownLength     float64
	frame           *video.Frame
	counter         int
	history         []Transition
	lastActive      time.Time
	now             func() time.Time
}

// New creates a session in Idle whose product counter starts at counter.
func New(id string, cfg Config, counter int) *Session {
	s := &Session{
		ID:          id,
		cfg:         cfg,
		state:       StateIdle,
		points:      []measure.Point{},
		knownLength: cfg.KnownLength,
		counter:     counter,
		now:         time.Now,
	}
	if measure.ValidRatio(cfg.Ratio) {
		s.ratio = cfg.Ratio
	}
	s.lastActive = s.now()
	return s
}

func (s *Session) touch() { s.lastActive = s.now() }

func (s *Session) sessionError(err error, category errors.ErrorCategory, op string) error {
	return errors.New(err).
		Component(componentName).
		Category(category).
		Context("operation", op).
		Context("state", string(s.state)).
		Build()
}

// effectiveRatio is the explicit ratio or the configured fallback.
func (s *Session) effectiveRatio() float64 {
	return measure.EffectiveRatio(s.ratio, s.cfg.DefaultRatio)
}

// clearProduct drops the per-product state: points and frame. The measured
// distances are derived from the points, so they go too.
func (s *Session) clearProduct() {
	s.points = []measure.Point{}
	s.frame = nil
}

// StartNewProduct forces Idle, clears points, distances and the captured
// frame, and increments the product counter by one.
func (s *Session) StartNewProduct() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	s.clearProduct()
	s.counter++
	s.transition(StateIdle, ActionStartNewProduct)
	return s.counter
}

// SetCalibrationMode selects how annotation branches. It does not leave the
// annotation stage; the current points are re-branched.
func (s *Session) SetCalibrationMode(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	s.calibrationMode = on
	if s.state == StateAnnotating || s.state == StateCalibrating || s.state == StateMeasuring {
		s.branchAfterAnnotation(ActionSetMode)
	}
}

// SetKnownLength sets the real-world distance used by the next calibration.
func (s *Session) SetKnownLength(v float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.setKnownLength(v)
}

func (s *Session) setKnownLength(v float64) error {
	if !(v >= s.cfg.MinLength) || !measure.ValidRatio(v) {
		return errors.New(measure.ErrInvalidKnownLength).
			Component(componentName).
			Category(errors.CategoryValidation).
			Context("known_length", v).
			Context("min_length", s.cfg.MinLength).
			Build()
	}
	s.knownLength = v
	return nil
}

// Capture stores a copy of frame as the captured frame and clears any points
// chosen on the previous one.
func (s *Session) Capture(frame video.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	f := frame.Clone()
	s.frame = &f
	s.points = []measure.Point{}
	s.transition(StateCapturing, ActionCapture)
}

// SetPoints replaces the selected points with points, as reported by the
// annotation surface. Points must lie inside the captured frame. In
// calibration mode more than two points are rejected and the selection is
// cleared.
func (s *Session) SetPoints(points []measure.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.frame == nil {
		return s.sessionError(ErrNoFrame, errors.CategoryState, ActionSetPoints)
	}
	for i, p := range points {
		if !s.frame.Contains(p.X, p.Y) {
			return errors.New(ErrPointOutOfFrame).
				Component(componentName).
				Category(errors.CategoryValidation).
				Context("index", i).
				Context("x", p.X).
				Context("y", p.Y).
				Context("frame_width", s.frame.Width).
				Context("frame_height", s.frame.Height).
				Build()
		}
	}
	if s.calibrationMode && len(points) > 2 {
		s.rejectCalibration(ActionSetPoints)
		return tooManyCalibrationPoints(len(points))
	}
	s.points = slices.Clone(points)
	s.branchAfterAnnotation(ActionSetPoints)
	return nil
}

func tooManyCalibrationPoints(n int) error {
	return errors.New(ErrTooManyCalibrationPoints).
		Component(componentName).
		Category(errors.CategoryCalibration).
		Context("points", n).
		Build()
}

// CalibrationResult reports the outcome of Calibrate.
type CalibrationResult struct {
	// Waiting is true when fewer than two points are selected; nothing
	// changed.
	Waiting       bool    `json:"waiting"`
	Ratio         float64 `json:"ratio"`
	PixelDistance float64 `json:"pixel_distance"`
	KnownLength   float64 `json:"known_length"`
}

// Calibrate computes the ratio from the two selected points. knownLength, if
// non-nil, replaces the session's known length first.
//
// With fewer than two points it waits. More than two points or coincident
// points are rejected, the selection is cleared and the ratio is unchanged.
func (s *Session) Calibrate(knownLength *float64) (CalibrationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if !s.calibrationMode {
		return CalibrationResult{}, s.sessionError(ErrNotCalibrating, errors.CategoryState, ActionCalibrate)
	}
	if knownLength != nil {
		if err := s.setKnownLength(*knownLength); err != nil {
			return CalibrationResult{}, err
		}
	}

	switch n := len(s.points); {
	case n < 2:
		return CalibrationResult{Waiting: true, KnownLength: s.knownLength}, nil
	case n > 2:
		s.rejectCalibration(ActionCalibrate)
		return CalibrationResult{}, tooManyCalibrationPoints(n)
	}

	p1, p2 := s.points[0], s.points[1]
	ratio, err := measure.CalibrateWithEpsilon(p1, p2, s.knownLength, s.cfg.Epsilon)
	if err != nil {
		if errors.Is(err, measure.ErrDegenerateCalibration) {
			s.rejectCalibration(ActionCalibrate)
		}
		return CalibrationResult{}, err
	}
	s.ratio = ratio
	s.transition(StateCalibrating, ActionCalibrate)
	return CalibrationResult{
		Ratio:         ratio,
		PixelDistance: measure.PixelDistance(p1, p2),
		KnownLength:   s.knownLength,
	}, nil
}

// rejectCalibration clears the selection so rejected reference points never
// reach measurement mode.
func (s *Session) rejectCalibration(action string) {
	s.points = []measure.Point{}
	s.branchAfterAnnotation(action)
}

// Save measures the selected points, appends the record for product
// counter+1 and then clears points and frame. The counter is unchanged. On a
// persistence failure the state is kept so the save can be retried.
func (s *Session) Save(ctx context.Context, rec Recorder) (measure.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if len(s.points) < 2 {
		return measure.Record{}, errors.New(measure.ErrInsufficientPoints).
			Component(componentName).
			Category(errors.CategoryMeasurement).
			Context("points", len(s.points)).
			Build()
	}
	record, err := measure.NewRecord(s.counter+1, s.points, s.effectiveRatio())
	if err != nil {
		return measure.Record{}, err
	}
	record.SavedAt = s.now()
	if err := rec.Append(ctx, record); err != nil {
		return measure.Record{}, err
	}

	s.transition(StateSaved, ActionSave)
	s.clearProduct()
	s.transition(StateIdle, ActionSave)
	return record, nil
}

// Frame returns a copy of the captured frame.
func (s *Session) Frame() (video.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return video.Frame{}, s.sessionError(ErrNoFrame, errors.CategoryState, "frame")
	}
	return s.frame.Clone(), nil
}

// LastActive returns when the session last handled an action.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}
