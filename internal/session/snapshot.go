package session

import (
	"slices"

	"github.com/camruler/camruler/internal/measure"
)

// Extent is the bounding box of the selected points in real-world units.
type Extent struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Snapshot is a read-only view of a session.
type Snapshot struct {
	ID              string             `json:"id"`
	State           State              `json:"state"`
	CalibrationMode bool               `json:"calibration_mode"`
	Points          []measure.Point    `json:"points"`
	Ratio           float64            `json:"ratio"`
	RatioExplicit   bool               `json:"ratio_explicit"`
	KnownLength     float64            `json:"known_length"`
	Unit            string             `json:"unit"`
	Counter         int                `json:"product_counter"`
	NextProduct     int                `json:"next_product"`
	HasFrame        bool               `json:"has_frame"`
	FrameWidth      int                `json:"frame_width,omitempty"`
	FrameHeight     int                `json:"frame_height,omitempty"`
	Segments        []measure.Segment  `json:"segments"`
	DistanceTable   []measure.TableRow `json:"distance_table"`
	Extent          *Extent            `json:"extent,omitempty"`
	History         []Transition       `json:"history"`
}

// Snapshot returns the current view. Segments, the distance table and the
// extent are filled only in measurement mode.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	ratio := s.effectiveRatio()
	snap := Snapshot{
		ID:              s.ID,
		State:           s.state,
		CalibrationMode: s.calibrationMode,
		Points:          slices.Clone(s.points),
		Ratio:           ratio,
		RatioExplicit:   measure.ValidRatio(s.ratio),
		KnownLength:     s.knownLength,
		Unit:            s.cfg.Unit,
		Counter:         s.counter,
		NextProduct:     s.counter + 1,
		HasFrame:        s.frame != nil,
		Segments:        []measure.Segment{},
		DistanceTable:   []measure.TableRow{},
		History:         slices.Clone(s.history),
	}
	if s.frame != nil {
		snap.FrameWidth = s.frame.Width
		snap.FrameHeight = s.frame.Height
	}
	if !s.calibrationMode {
		snap.Segments = measure.Annotate(s.points, ratio)
		snap.DistanceTable = measure.DistanceTable(snap.Segments)
		if w, h, err := measure.Extent(s.points, ratio); err == nil {
			snap.Extent = &Extent{Width: w, Height: h}
		}
	}
	return snap
}
