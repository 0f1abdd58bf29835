package dialog

import (
	"encoding/json"
	"fmt"
	"strings"
)

// geoPrefix marks an utterance carrying a location payload instead of text.
const geoPrefix = "__geo__"

// GeoPoint is the validated location payload of a geo utterance.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ParseGeoPayload parses the payload after the geo prefix: either a JSON
// object {"lat":..,"lon":..} or a JSON two-element array [lat, lon]. The
// payload is never evaluated as code; anything but two in-range numbers is
// rejected.
func ParseGeoPayload(payload string) (*GeoPoint, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, fmt.Errorf("empty geo payload")
	}

	var point GeoPoint
	if strings.HasPrefix(payload, "[") {
		var pair []float64
		if err := json.Unmarshal([]byte(payload), &pair); err != nil {
			return nil, fmt.Errorf("malformed geo payload: %w", err)
		}
		if len(pair) != 2 {
			return nil, fmt.Errorf("geo payload has %d elements, want 2", len(pair))
		}
		point = GeoPoint{Lat: pair[0], Lon: pair[1]}
	} else {
		dec := json.NewDecoder(strings.NewReader(payload))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&point); err != nil {
			return nil, fmt.Errorf("malformed geo payload: %w", err)
		}
	}

	if point.Lat < -90 || point.Lat > 90 {
		return nil, fmt.Errorf("latitude %v out of range", point.Lat)
	}
	if point.Lon < -180 || point.Lon > 180 {
		return nil, fmt.Errorf("longitude %v out of range", point.Lon)
	}
	return &point, nil
}
