package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Shape is the row and column count of a loaded dataset.
type Shape struct {
	Rows    int `json:"rows"`
	Columns int `json:"columns"`
}

// Manifest describes one completed run for downstream consumers.
type Manifest struct {
	RunID           string    `json:"run_id"`
	RunTimestamp    time.Time `json:"run_timestamp"`
	Source          string    `json:"source"`
	Outputs         []string  `json:"outputs"`
	WeatherLocation string    `json:"weather_location,omitempty"`
	Shape           Shape     `json:"shape"`
	Columns         []string  `json:"columns"`
	Summary         Summary   `json:"summary"`
	ElapsedSeconds  float64   `json:"elapsed_seconds"`
}

// NewManifest stamps a run that started at started with a fresh run ID and
// the current clock time in UTC.
func NewManifest(source string, outputs []string, weatherLocation string, summary Summary, started time.Time) Manifest {
	now := clock.Now()
	return Manifest{
		RunID:           uuid.NewString(),
		RunTimestamp:    now.UTC(),
		Source:          source,
		Outputs:         slices.Clone(outputs),
		WeatherLocation: weatherLocation,
		Shape:           Shape{Rows: summary.Rows, Columns: len(Columns)},
		Columns:         slices.Clone(Columns),
		Summary:         summary,
		ElapsedSeconds:  round2(now.Sub(started).Seconds()),
	}
}
