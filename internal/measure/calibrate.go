package measure

import (
	"math"

	"github.com/camruler/camruler/internal/errors"
)

// Calibrate returns the real-world length per pixel given two points spanning
// a reference of knownLength. It fails with ErrDegenerateCalibration when the
// points are closer than DefaultEpsilon.
func Calibrate(p1, p2 Point, knownLength float64) (float64, error) {
	return CalibrateWithEpsilon(p1, p2, knownLength, DefaultEpsilon)
}

// CalibrateWithEpsilon is Calibrate with a configurable degeneracy threshold.
func CalibrateWithEpsilon(p1, p2 Point, knownLength, epsilon float64) (float64, error) {
	if !(knownLength > 0) || math.IsInf(knownLength, 0) {
		return 0, errors.New(ErrInvalidKnownLength).
			Component(componentName).
			Category(errors.CategoryValidation).
			Context("known_length", knownLength).
			Build()
	}

	dist := PixelDistance(p1, p2)
	if dist <= epsilon {
		return 0, errors.New(ErrDegenerateCalibration).
			Component(componentName).
			Category(errors.CategoryCalibration).
			Context("p1", p1).
			Context("p2", p2).
			Build()
	}

	return knownLength / dist, nil
}
