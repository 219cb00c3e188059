// Package measure converts pixel geometry on a captured frame into real-world
// lengths using a calibration ratio.
package measure

import (
	"math"

	"github.com/camruler/camruler/internal/errors"
)

const componentName = "measure"

// DefaultRatio is used when no calibration has been performed: a 15 cm
// reference spanning 273.03 px.
const DefaultRatio = 15.0 / 273.03

// DefaultEpsilon is the smallest pixel distance accepted for calibration.
const DefaultEpsilon = 1e-9

var (
	// ErrDegenerateCalibration means the two calibration points coincide.
	ErrDegenerateCalibration = errors.NewStd("calibration points are too close")
	// ErrInsufficientPoints means fewer than two points were supplied.
	ErrInsufficientPoints = errors.NewStd("at least two points are required")
	// ErrInvalidKnownLength means the reference length is not positive.
	ErrInvalidKnownLength = errors.NewStd("known length must be positive")
	// ErrInvalidRatio means a ratio is not a positive finite number.
	ErrInvalidRatio = errors.NewStd("ratio must be a positive number")
)

// Point is a pixel coordinate with the origin at the top-left corner.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// PixelDistance returns the Euclidean distance between p and q in pixels.
func PixelDistance(p, q Point) float64 {
	return math.Hypot(float64(q.X-p.X), float64(q.Y-p.Y))
}

// Midpoint returns the integer midpoint used for label placement. Division
// floors toward negative infinity so negative coordinates stay consistent.
func Midpoint(p, q Point) Point {
	return Point{X: floorDiv2(p.X + q.X), Y: floorDiv2(p.Y + q.Y)}
}

func floorDiv2(v int) int {
	if v < 0 && v%2 != 0 {
		return v/2 - 1
	}
	return v / 2
}

// ValidRatio reports whether r can be used as a calibration ratio.
func ValidRatio(r float64) bool {
	return r > 0 && !math.IsInf(r, 0) && !math.IsNaN(r)
}

// EffectiveRatio returns r when it is a usable explicit ratio and fallback
// otherwise.
func EffectiveRatio(r, fallback float64) float64 {
	if ValidRatio(r) {
		return r
	}
	return fallback
}
