package models

// TrackRecord is the storage and transfer form of a track.
// Points are delta encoded, see package codec.
type TrackRecord struct {
	ID        string           `json:"id"`
	Version   int64            `json:"version"`
	Updated   bool             `json:"updated"`
	Segments  []SegmentRecord  `json:"s"`
	WayPoints []WayPointRecord `json:"wp,omitempty"`
}

// SegmentRecord holds the encoded points of one segment
type SegmentRecord struct {
	Points []PointRecord `json:"p"`
}

// PointRecord is one encoded point.
// A nil field is omitted on the wire; a field pointing to 0 is present with value zero.
type PointRecord struct {
	Lat         *int64 `json:"l,omitempty"`
	Lng         *int64 `json:"n,omitempty"`
	Ele         *int64 `json:"e,omitempty"`
	Time        *int64 `json:"t,omitempty"`
	PosAccuracy *int64 `json:"pa,omitempty"`
	EleAccuracy *int64 `json:"ea,omitempty"`
	Heading     *int64 `json:"h,omitempty"`
	Speed       *int64 `json:"s,omitempty"`
}

// WayPointRecord is one encoded way point. Its values are absolute, as for
// the first point of a segment.
type WayPointRecord struct {
	PointRecord
	Name        string `json:"na,omitempty"`
	Description string `json:"de,omitempty"`
}

// PointCount returns the number of points across all segments
func (r *TrackRecord) PointCount() int {
	n := 0
	for _, s := range r.Segments {
		n += len(s.Points)
	}
	return n
}
