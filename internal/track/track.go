// Package track is the in-memory model of a GPS trail: points grouped in
// segments grouped in a track, with aggregate metadata kept current on every
// edit.
//
// A track graph has a single owner. Nothing in this package locks; callers
// that share a track between goroutines must hand it over explicitly or
// guard it with their own mutex.
package track

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jengzang/trails-backend-go/internal/codec"
	"github.com/jengzang/trails-backend-go/internal/models"
)

// ErrInvalidModel is returned when a track is built without a mandatory attribute
var ErrInvalidModel = errors.New("invalid track model")

// Track is an ordered list of segments belonging to one owner
type Track struct {
	ID      string
	Owner   string
	Version int64
	Updated bool

	segments  []*Segment
	wayPoints []*models.WayPoint
	meta      Metadata
	listeners listeners
	// while > 0 segment changes do not recompute the track metadata
	suspended int
}

// New creates an empty track with a fresh identifier
func New(owner string) (*Track, error) {
	if owner == "" {
		return nil, fmt.Errorf("%w: missing owner", ErrInvalidModel)
	}
	return &Track{ID: uuid.NewString(), Owner: owner}, nil
}

// FromRecord rebuilds a track from its stored form
func FromRecord(owner string, rec models.TrackRecord) (*Track, error) {
	t, err := New(owner)
	if err != nil {
		return nil, err
	}
	if rec.ID != "" {
		t.ID = rec.ID
	}
	t.Version = rec.Version
	t.Updated = rec.Updated

	t.batch(func() {
		for _, sr := range rec.Segments {
			t.NewSegment().AppendMany(FromSamples(codec.DecodeSegment(sr.Points))...)
		}
	})
	for _, wr := range rec.WayPoints {
		wp := codec.DecodeWayPoint(wr)
		t.AppendWayPoint(&wp)
	}
	return t, nil
}

// ToRecord encodes the track into its stored form
func (t *Track) ToRecord() models.TrackRecord {
	rec := models.TrackRecord{
		ID:       t.ID,
		Version:  t.Version,
		Updated:  t.Updated,
		Segments: make([]models.SegmentRecord, len(t.segments)),
	}
	for i, s := range t.segments {
		rec.Segments[i] = models.SegmentRecord{Points: codec.EncodeSegment(s.Samples())}
	}
	for _, wp := range t.wayPoints {
		rec.WayPoints = append(rec.WayPoints, codec.EncodeWayPoint(*wp))
	}
	return rec
}

// Metadata returns the combined metadata of all segments
func (t *Track) Metadata() Metadata { return t.meta }

// OnChange registers fn to be called synchronously each time the track
// metadata is recomputed. The returned function removes the registration.
func (t *Track) OnChange(fn func(Metadata)) (cancel func()) {
	return t.listeners.add(fn)
}

// Segments returns a copy of the segment list
func (t *Track) Segments() []*Segment {
	segments := make([]*Segment, len(t.segments))
	copy(segments, t.segments)
	return segments
}

// Segment returns the segment at index i
func (t *Track) Segment(i int) *Segment { return t.segments[i] }

// SegmentCount returns the number of segments
func (t *Track) SegmentCount() int { return len(t.segments) }

// LastSegment returns the last segment, or nil when there is none
func (t *Track) LastSegment() *Segment {
	if len(t.segments) == 0 {
		return nil
	}
	return t.segments[len(t.segments)-1]
}

// PointCount returns the number of points across all segments
func (t *Track) PointCount() int {
	n := 0
	for _, s := range t.segments {
		n += s.Len()
	}
	return n
}

// WayPoints returns a copy of the way point list
func (t *Track) WayPoints() []*models.WayPoint {
	wayPoints := make([]*models.WayPoint, len(t.wayPoints))
	copy(wayPoints, t.wayPoints)
	return wayPoints
}

// AppendWayPoint adds wp at the end of the way point list
func (t *Track) AppendWayPoint(wp *models.WayPoint) {
	t.wayPoints = append(t.wayPoints, wp)
}

// RemoveWayPoint removes wp and reports whether it was found
func (t *Track) RemoveWayPoint(wp *models.WayPoint) bool {
	for i, e := range t.wayPoints {
		if e == wp {
			t.wayPoints = append(t.wayPoints[:i], t.wayPoints[i+1:]...)
			return true
		}
	}
	return false
}

// NewSegment appends a new empty segment and returns it
func (t *Track) NewSegment() *Segment {
	s := NewSegment()
	t.AddSegment(s)
	return s
}

// AddSegment appends s to the track
func (t *Track) AddSegment(s *Segment) {
	t.InsertSegment(len(t.segments), s)
}

// InsertSegment places s at index i
func (t *Track) InsertSegment(i int, s *Segment) {
	if s.track != nil {
		panic("track: segment already belongs to a track")
	}
	if i < 0 || i > len(t.segments) {
		panic(fmt.Sprintf("track: segment index %d out of bounds for %d segments", i, len(t.segments)))
	}
	s.track = t
	t.segments = append(t.segments, nil)
	copy(t.segments[i+1:], t.segments[i:])
	t.segments[i] = s
	t.segmentChanged()
}

// RemoveSegmentAt detaches the segment at index i and returns it
func (t *Track) RemoveSegmentAt(i int) *Segment {
	s := t.segments[i]
	t.segments = append(t.segments[:i], t.segments[i+1:]...)
	s.track = nil
	t.segmentChanged()
	return s
}

// RemoveSegment detaches s if it belongs to the track
func (t *Track) RemoveSegment(s *Segment) {
	for i, e := range t.segments {
		if e == s {
			t.RemoveSegmentAt(i)
			return
		}
	}
}

// RemoveEmptySegments drops the segments holding fewer than two points
func (t *Track) RemoveEmptySegments() {
	t.batch(func() {
		for i := 0; i < len(t.segments); {
			if t.segments[i].Len() < 2 {
				t.RemoveSegmentAt(i)
				continue
			}
			i++
		}
	})
}

// SplitSegment moves the points of segment si starting at point pi into a
// new segment placed right after it, and returns the new segment
func (t *Track) SplitSegment(si, pi int) *Segment {
	s := t.segments[si]
	moved := s.Points()[pi:]
	next := NewSegment()
	t.batch(func() {
		s.RemoveRange(pi, s.Len())
		next.AppendMany(moved...)
		t.InsertSegment(si+1, next)
	})
	return next
}

// JoinSegments appends the points of segment si+1 to segment si and removes
// segment si+1
func (t *Track) JoinSegments(si int) {
	s, next := t.segments[si], t.segments[si+1]
	moved := next.Points()
	t.batch(func() {
		next.Clear()
		t.RemoveSegmentAt(si + 1)
		s.AppendMany(moved...)
	})
}

// Departure returns the first point of the first non empty segment
func (t *Track) Departure() *Point {
	for _, s := range t.segments {
		if p := s.Departure(); p != nil {
			return p
		}
	}
	return nil
}

// Arrival returns the last point of the last non empty segment
func (t *Track) Arrival() *Point {
	for i := len(t.segments) - 1; i >= 0; i-- {
		if p := t.segments[i].Arrival(); p != nil {
			return p
		}
	}
	return nil
}

// StartTime returns the first defined time of the first segment having one
func (t *Track) StartTime() *int64 {
	for _, s := range t.segments {
		if ts := s.StartTime(); ts != nil {
			return ts
		}
	}
	return nil
}

// SegmentTimeSinceDeparture returns the recorded time spent in the segments
// before segment si, pauses between segments excluded
func (t *Track) SegmentTimeSinceDeparture(si int) int64 {
	var total int64
	for i := si - 1; i >= 0; i-- {
		start, end := t.segments[i].StartTime(), t.segments[i].EndTime()
		if start != nil && *end > *start {
			total += *end - *start
		}
	}
	return total
}

// AllPositions returns every position of the track as lat/lng pairs
func (t *Track) AllPositions() [][2]float64 {
	positions := make([][2]float64, 0, t.PointCount())
	for _, s := range t.segments {
		for _, p := range s.points {
			positions = append(positions, [2]float64{p.lat, p.lng})
		}
	}
	return positions
}

// SubTrack copies the points from (startSeg, startPt) to (endSeg, endPt)
// inclusive into a new single segment track of the same owner
func (t *Track) SubTrack(startSeg, startPt, endSeg, endPt int) *Track {
	sub := &Track{ID: uuid.NewString(), Owner: t.Owner}
	var points []*Point
	for si := startSeg; si <= endSeg; si++ {
		s := t.segments[si]
		from, to := 0, s.Len()-1
		if si == startSeg {
			from = startPt
		}
		if si == endSeg {
			to = endPt
		}
		for pi := from; pi <= to; pi++ {
			points = append(points, FromSample(s.points[pi].Sample()))
		}
	}
	sub.NewSegment().AppendMany(points...)
	return sub
}

// Copy returns a deep copy of the track under a new identifier and owner
func (t *Track) Copy(owner string) (*Track, error) {
	cp, err := New(owner)
	if err != nil {
		return nil, err
	}
	cp.batch(func() {
		for _, s := range t.segments {
			cp.NewSegment().AppendMany(FromSamples(s.Samples())...)
		}
	})
	for _, wp := range t.wayPoints {
		c := copyWayPoint(*wp)
		cp.AppendWayPoint(&c)
	}
	return cp, nil
}

// Equal reports whether both tracks carry the same point and way point values
func (t *Track) Equal(other *Track) bool {
	if len(t.segments) != len(other.segments) || len(t.wayPoints) != len(other.wayPoints) {
		return false
	}
	for i, s := range t.segments {
		if !s.Equal(other.segments[i]) {
			return false
		}
	}
	for i, wp := range t.wayPoints {
		o := other.wayPoints[i]
		if wp.Name != o.Name || wp.Description != o.Description ||
			!FromSample(wp.Sample).Equal(FromSample(o.Sample)) {
			return false
		}
	}
	return true
}

func copyWayPoint(wp models.WayPoint) models.WayPoint {
	wp.Sample = FromSample(wp.Sample).Sample()
	return wp
}

// Close releases the links from segments to the track and every listener
func (t *Track) Close() {
	for _, s := range t.segments {
		s.close()
	}
	t.listeners.clear()
}

func (t *Track) batch(fn func()) {
	t.suspended++
	defer func() {
		t.suspended--
		t.segmentChanged()
	}()
	fn()
}

// segmentChanged recombines the segment metadata, in time proportional to
// the number of segments
func (t *Track) segmentChanged() {
	if t.suspended > 0 {
		return
	}
	parts := make([]Metadata, len(t.segments))
	for i, s := range t.segments {
		parts[i] = s.Metadata()
	}
	t.meta = CombineMetadata(parts...)
	if t.listeners.len() > 0 {
		t.listeners.notify(t.meta)
	}
}
