package mqtt

import (
	"encoding/json"
	"time"

	"github.com/camruler/camruler/internal/measure"
)

// RecordDTO is the JSON payload published for each saved record.
type RecordDTO struct {
	Product   int       `json:"product"`
	Width     float64   `json:"width"`
	Height    float64   `json:"height"`
	Distances []float64 `json:"distances"`
	Unit      string    `json:"unit"`
	Ratio     float64   `json:"ratio"`
	SavedAt   time.Time `json:"savedAt"`
	// Row holds the values exactly as written to the table.
	Row []string `json:"row"`
}

// NewRecordDTO converts rec for publication.
func NewRecordDTO(rec measure.Record, unit string) RecordDTO {
	distances := rec.Distances
	if distances == nil {
		distances = []float64{}
	}
	return RecordDTO{
		Product:   rec.Product,
		Width:     rec.Width,
		Height:    rec.Height,
		Distances: distances,
		Unit:      unit,
		Ratio:     rec.Ratio,
		SavedAt:   rec.SavedAt,
		Row:       rec.Row(),
	}
}

// Marshal encodes the payload.
func (d RecordDTO) Marshal() ([]byte, error) {
	return json.Marshal(d)
}
