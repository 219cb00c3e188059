package measure

import "fmt"

// Segment is one consecutive pair of points with its real-world length and
// the label anchor.
type Segment struct {
	Start    Point   `json:"start"`
	End      Point   `json:"end"`
	Distance float64 `json:"distance"`
	Midpoint Point   `json:"midpoint"`
}

// Annotate returns one Segment per consecutive pair in points, in input order.
// Fewer than two points yield an empty result.
func Annotate(points []Point, ratio float64) []Segment {
	if len(points) < 2 {
		return []Segment{}
	}
	segments := make([]Segment, 0, len(points)-1)
	for i := 0; i < len(points)-1; i++ {
		p, q := points[i], points[i+1]
		segments = append(segments, Segment{
			Start:    p,
			End:      q,
			Distance: PixelDistance(p, q) * ratio,
			Midpoint: Midpoint(p, q),
		})
	}
	return segments
}

// Distances extracts the real-world lengths of segments.
func Distances(segments []Segment) []float64 {
	out := make([]float64, len(segments))
	for i, s := range segments {
		out[i] = s.Distance
	}
	return out
}

// TableRow is one line of the distance table shown to the operator.
type TableRow struct {
	Pair     string `json:"pair"`
	Distance string `json:"distance"`
}

// DistanceTable labels each segment "Point i & i+1" with a 2-decimal length.
func DistanceTable(segments []Segment) []TableRow {
	rows := make([]TableRow, len(segments))
	for i, s := range segments {
		rows[i] = TableRow{
			Pair:     fmt.Sprintf("Point %d & %d", i+1, i+2),
			Distance: FormatValue(s.Distance),
		}
	}
	return rows
}
