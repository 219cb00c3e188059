package measure

import "github.com/camruler/camruler/internal/errors"

// Extent returns the width and height of the axis-aligned bounding box of
// points, scaled by ratio. It requires at least two points.
func Extent(points []Point, ratio float64) (width, height float64, err error) {
	if len(points) < 2 {
		return 0, 0, errors.New(ErrInsufficientPoints).
			Component(componentName).
			Category(errors.CategoryMeasurement).
			Context("points", len(points)).
			Build()
	}

	minX, maxX := points[0].X, points[0].X
	minY, maxY := points[0].Y, points[0].Y
	for _, p := range points[1:] {
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}

	return float64(maxX-minX) * ratio, float64(maxY-minY) * ratio, nil
}
