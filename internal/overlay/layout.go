// Package overlay draws measurement annotations onto captured frames.
//
// Layout is computed by pure functions returning a Plan; Renderer turns a
// Plan into pixels with OpenCV.
package overlay

import (
	"fmt"
	"image"
	"image/color"

	"github.com/camruler/camruler/internal/measure"
)

// Style controls how a Plan is drawn.
type Style struct {
	LineColor    color.RGBA
	MarkerColor  color.RGBA
	Thickness    int
	FontScale    float64
	MarkerRadius int
}

// DefaultStyle draws red segments labelled in Hershey simplex at 0.7 and
// green calibration markers.
var DefaultStyle = Style{
	LineColor:    color.RGBA{R: 255, A: 255},
	MarkerColor:  color.RGBA{G: 255, A: 255},
	Thickness:    2,
	FontScale:    0.7,
	MarkerRadius: 6,
}

// markerLabelOffset moves a marker label off the marker itself.
var markerLabelOffset = image.Point{X: 8, Y: -8}

// Label is text anchored at its bottom-left corner.
type Label struct {
	Text string
	At   image.Point
}

// Line is a measured segment and its distance label.
type Line struct {
	From, To image.Point
	Label    Label
}

// Marker is a selected point drawn as a filled circle.
type Marker struct {
	Center image.Point
	Label  Label
}

// Plan is everything to draw on one frame.
type Plan struct {
	Lines   []Line
	Markers []Marker
}

// Empty reports whether the plan draws nothing.
func (p Plan) Empty() bool {
	return len(p.Lines) == 0 && len(p.Markers) == 0
}

// FormatDistance renders a distance label such as "15.00 cm".
func FormatDistance(d float64, unit string) string {
	if unit == "" {
		return measure.FormatValue(d)
	}
	return fmt.Sprintf("%s %s", measure.FormatValue(d), unit)
}

func toImagePoint(p measure.Point) image.Point {
	return image.Point{X: p.X, Y: p.Y}
}

// MeasurementPlan draws each segment with its distance label at the segment
// midpoint.
func MeasurementPlan(segments []measure.Segment, unit string) Plan {
	plan := Plan{Lines: make([]Line, 0, len(segments))}
	for _, s := range segments {
		plan.Lines = append(plan.Lines, Line{
			From: toImagePoint(s.Start),
			To:   toImagePoint(s.End),
			Label: Label{
				Text: FormatDistance(s.Distance, unit),
				At:   toImagePoint(s.Midpoint),
			},
		})
	}
	return plan
}

// CalibrationPlan marks the selected reference points as P1, P2, ...
func CalibrationPlan(points []measure.Point) Plan {
	plan := Plan{Markers: make([]Marker, 0, len(points))}
	for i, p := range points {
		c := toImagePoint(p)
		plan.Markers = append(plan.Markers, Marker{
			Center: c,
			Label:  Label{Text: fmt.Sprintf("P%d", i+1), At: c.Add(markerLabelOffset)},
		})
	}
	return plan
}
