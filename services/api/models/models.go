package models

import (
	"encoding/json"
	"time"
)

// Snapshot is the full provider payload, kept as raw JSON and never reshaped.
type Snapshot = json.RawMessage

// ObservationRecord is the flattened row written to weather_observations.
// Nil fields are stored as NULL.
type ObservationRecord struct {
	StationID   *string
	Temp        *float64
	Dewpt       *float64
	Humidity    *float64
	WindSpeed   *float64
	WindGust    *float64
	WindDir     *float64
	Pressure    *float64
	PrecipTotal *float64
	PrecipRate  *float64
	RawData     Snapshot
}

// StoredObservation is a weather_observations row read back from the store.
type StoredObservation struct {
	ID        int64
	StationID *string
	RawData   Snapshot
	CreatedAt time.Time
}
