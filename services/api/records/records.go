package records

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/02loveslollipop/Shizuku-weather-relay/services/api/models"
)

var (
	// ErrNoObservationsList means the payload has no top-level "observations" array.
	ErrNoObservationsList = errors.New("payload has no observations list")
	// ErrEmptyObservations means the array exists but holds no entries.
	ErrEmptyObservations = errors.New("observations list is empty")
)

// Decode checks the envelope only: the payload must be JSON with an
// "observations" array. Entries are left raw; nothing inside them is validated.
func Decode(raw models.Snapshot) ([]json.RawMessage, error) {
	var envelope struct {
		Observations json.RawMessage `json:"observations"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, errors.Wrap(err, "decode payload")
	}

	list := bytes.TrimSpace(envelope.Observations)
	if len(list) == 0 || list[0] != '[' {
		return nil, ErrNoObservationsList
	}

	var observations []json.RawMessage
	if err := json.Unmarshal(list, &observations); err != nil {
		return nil, errors.Wrap(err, "decode observations")
	}
	return observations, nil
}

// First returns the canonical observation.
func First(observations []json.RawMessage) (json.RawMessage, error) {
	if len(observations) == 0 {
		return nil, ErrEmptyObservations
	}
	return observations[0], nil
}

// Build flattens obs into a storage record. Values are copied as-is; a field
// that is absent or not of the expected JSON type stays nil.
func Build(obs json.RawMessage, raw models.Snapshot) models.ObservationRecord {
	fields := object(obs)
	metric := object(fields["metric"])

	return models.ObservationRecord{
		StationID:   str(fields["stationID"]),
		Humidity:    num(fields["humidity"]),
		WindDir:     num(fields["winddir"]),
		Temp:        num(metric["temp"]),
		Dewpt:       num(metric["dewpt"]),
		WindSpeed:   num(metric["windSpeed"]),
		WindGust:    num(metric["windGust"]),
		Pressure:    num(metric["pressure"]),
		PrecipTotal: num(metric["precipTotal"]),
		PrecipRate:  num(metric["precipRate"]),
		RawData:     raw,
	}
}

func object(v json.RawMessage) map[string]json.RawMessage {
	var m map[string]json.RawMessage
	if !present(v) || json.Unmarshal(v, &m) != nil {
		return nil
	}
	return m
}

func str(v json.RawMessage) *string {
	var s string
	if !present(v) || json.Unmarshal(v, &s) != nil {
		return nil
	}
	return &s
}

func num(v json.RawMessage) *float64 {
	var f float64
	if !present(v) || json.Unmarshal(v, &f) != nil {
		return nil
	}
	return &f
}

// present is false for missing fields and explicit nulls, which Unmarshal
// would otherwise accept as zero values.
func present(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) > 0 && !bytes.Equal(v, []byte("null"))
}
