package measure

import (
	"strconv"
	"strings"

	"github.com/camruler/camruler/internal/errors"
)

// ParsePoint reads a point written as "x,y".
func ParsePoint(s string) (Point, error) {
	xs, ys, ok := strings.Cut(strings.TrimSpace(s), ",")
	if !ok {
		return Point{}, invalidPoint(s, nil)
	}
	x, err := strconv.Atoi(strings.TrimSpace(xs))
	if err != nil {
		return Point{}, invalidPoint(s, err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(ys))
	if err != nil {
		return Point{}, invalidPoint(s, err)
	}
	return Point{X: x, Y: y}, nil
}

// ParsePoints reads a ";" separated list of points. Empty entries are
// skipped so a trailing separator is accepted.
func ParsePoints(s string) ([]Point, error) {
	var points []Point
	for part := range strings.SplitSeq(s, ";") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		p, err := ParsePoint(part)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}

func invalidPoint(s string, cause error) error {
	if cause == nil {
		cause = errors.NewStd("expected x,y")
	}
	return errors.New(cause).
		Component(componentName).
		Category(errors.CategoryValidation).
		Context("point", s).
		Build()
}
