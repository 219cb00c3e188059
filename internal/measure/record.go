package measure

import (
	"strconv"
	"strings"
	"time"

	"github.com/camruler/camruler/internal/errors"
)

// DistanceSeparator joins the distance list in a persisted row.
const DistanceSeparator = ", "

// Record is one saved measurement of a product. Width, Height and Distances
// are in real-world units.
type Record struct {
	Product   int       `json:"product"`
	Width     float64   `json:"width"`
	Height    float64   `json:"height"`
	Distances []float64 `json:"distances"`
	Ratio     float64   `json:"ratio"`
	SavedAt   time.Time `json:"saved_at"`
}

// NewRecord measures points with ratio and builds the record for product.
func NewRecord(product int, points []Point, ratio float64) (Record, error) {
	if !ValidRatio(ratio) {
		return Record{}, errors.New(ErrInvalidRatio).
			Component(componentName).
			Category(errors.CategoryMeasurement).
			Context("ratio", ratio).
			Build()
	}
	width, height, err := Extent(points, ratio)
	if err != nil {
		return Record{}, err
	}
	return Record{
		Product:   product,
		Width:     width,
		Height:    height,
		Distances: Distances(Annotate(points, ratio)),
		Ratio:     ratio,
		SavedAt:   time.Now(),
	}, nil
}

// FormatValue renders a real-world length with two decimals.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// JoinDistances renders distances as a ", "-joined list of 2-decimal values.
func JoinDistances(distances []float64) string {
	parts := make([]string, len(distances))
	for i, d := range distances {
		parts[i] = FormatValue(d)
	}
	return strings.Join(parts, DistanceSeparator)
}

// ParseDistances is the inverse of JoinDistances. An empty string yields an
// empty list.
func ParseDistances(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []float64{}, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Row renders r in persisted column order: product, width, height,
// distances.
func (r Record) Row() []string {
	return []string{
		strconv.Itoa(r.Product),
		FormatValue(r.Width),
		FormatValue(r.Height),
		JoinDistances(r.Distances),
	}
}
