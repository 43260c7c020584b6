package models

// Sample is a plain GPS sample as produced by an importer or a decoder.
// Optional attributes are nil when the sample carries no value for them.
type Sample struct {
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	Ele         *float64 `json:"ele,omitempty"`         // meters
	Time        *int64   `json:"time,omitempty"`        // epoch milliseconds
	PosAccuracy *float64 `json:"posAccuracy,omitempty"` // meters
	EleAccuracy *float64 `json:"eleAccuracy,omitempty"` // meters
	Heading     *float64 `json:"heading,omitempty"`     // degrees
	Speed       *float64 `json:"speed,omitempty"`       // m/s
}

// Float returns a pointer to v
func Float(v float64) *float64 {
	return &v
}

// Int64 returns a pointer to v
func Int64(v int64) *int64 {
	return &v
}

// WayPoint is a named place of a track, outside of its segments
type WayPoint struct {
	Sample
	Name        string `json:"name"`
	Description string `json:"description"`
}
