package track

import (
	"fmt"

	"github.com/jengzang/trails-backend-go/internal/models"
	"github.com/jengzang/trails-backend-go/internal/spatial"
)

// Segment is an ordered run of points recorded without interruption.
//
// The segment keeps an aggregate of its points (distance, ascent, descent,
// duration, altitude extremes, start time and bounds) that is updated on
// every append, insert, removal or point edit without rescanning the points,
// except when the point holding an extreme value stops being extreme.
type Segment struct {
	points    []*Point
	agg       aggregate
	track     *Track
	listeners listeners
}

// NewSegment creates an empty segment not attached to any track
func NewSegment() *Segment {
	return &Segment{}
}

// Len returns the number of points
func (s *Segment) Len() int { return len(s.points) }

// At returns the point at index i
func (s *Segment) At(i int) *Point { return s.points[i] }

// Points returns a copy of the point list
func (s *Segment) Points() []*Point {
	points := make([]*Point, len(s.points))
	copy(points, s.points)
	return points
}

// Samples returns the values of every point in order
func (s *Segment) Samples() []models.Sample {
	samples := make([]models.Sample, len(s.points))
	for i, p := range s.points {
		samples[i] = p.Sample()
	}
	return samples
}

// Track returns the track owning the segment, or nil
func (s *Segment) Track() *Track { return s.track }

// Metadata returns the current aggregate values
func (s *Segment) Metadata() Metadata { return s.agg.metadata() }

// OnChange registers fn to be called synchronously after every change of the
// segment. The returned function removes the registration.
func (s *Segment) OnChange(fn func(Metadata)) (cancel func()) {
	return s.listeners.add(fn)
}

// Append adds p at the end of the segment
func (s *Segment) Append(p *Point) *Segment {
	s.attach(p, len(s.points))
	s.points = append(s.points, p)
	s.refresh(len(s.points) - 1)
	s.agg.offer(p, allFields)
	s.changed()
	return s
}

// AppendMany adds all points at the end of the segment in one pass.
// It panics before changing anything if one of the points is owned.
func (s *Segment) AppendMany(points ...*Point) *Segment {
	if len(points) == 0 {
		return s
	}
	for i, p := range points {
		if p.seg != nil {
			panic(fmt.Sprintf("track: point %d already belongs to a segment", i))
		}
	}
	for _, p := range points {
		s.attach(p, len(s.points))
		s.points = append(s.points, p)
		s.refresh(len(s.points) - 1)
		s.agg.offer(p, allFields)
	}
	s.changed()
	return s
}

// Insert adds p at index; an index outside the segment appends
func (s *Segment) Insert(index int, p *Point) *Segment {
	if index < 0 || index >= len(s.points) {
		return s.Append(p)
	}
	s.attach(p, index)
	s.points = append(s.points, nil)
	copy(s.points[index+1:], s.points[index:])
	s.points[index] = p
	s.reindex(index + 1)
	s.refresh(index)
	s.refreshFrom(index+1, allFields)
	s.agg.offer(p, allFields)
	s.changed()
	return s
}

// Remove removes p if it belongs to the segment
func (s *Segment) Remove(p *Point) *Segment {
	if p.seg != s {
		return s
	}
	return s.RemoveAt(p.index)
}

// RemoveAt removes the point at index
func (s *Segment) RemoveAt(index int) *Segment {
	return s.RemoveRange(index, index+1)
}

// RemoveRange removes the points in [from, to)
func (s *Segment) RemoveRange(from, to int) *Segment {
	if from < 0 || to > len(s.points) || from > to {
		panic(fmt.Sprintf("track: remove range [%d, %d) out of bounds for %d points", from, to, len(s.points)))
	}
	if from == to {
		return s
	}
	var stale extremumSet
	for _, p := range s.points[from:to] {
		stale |= s.withdraw(p)
	}
	n := len(s.points) - (to - from)
	copy(s.points[from:], s.points[to:])
	clear(s.points[n:])
	s.points = s.points[:n]
	s.reindex(from)
	if len(s.points) < 2 {
		s.resetContributions()
	} else {
		s.refreshFrom(from, allFields)
	}
	s.agg.rescan(s.points, stale)
	s.changed()
	return s
}

// RemoveMany removes the given points wherever they are in the segment.
// Points of other segments are ignored.
func (s *Segment) RemoveMany(points ...*Point) *Segment {
	first := len(s.points)
	var stale extremumSet
	for _, p := range points {
		if p.seg != s {
			continue
		}
		first = min(first, p.index)
		stale |= s.withdraw(p)
	}
	if first == len(s.points) {
		return s
	}
	kept := s.points[:first]
	for _, p := range s.points[first:] {
		if p.seg == s {
			kept = append(kept, p)
		}
	}
	clear(s.points[len(kept):])
	s.points = kept
	s.reindex(first)
	if len(s.points) < 2 {
		s.resetContributions()
	} else {
		for i := first; i < len(s.points); i++ {
			s.refresh(i)
		}
	}
	s.agg.rescan(s.points, stale)
	s.changed()
	return s
}

// Clear removes every point
func (s *Segment) Clear() *Segment {
	return s.RemoveRange(0, len(s.points))
}

// Departure returns the first point, or nil when empty
func (s *Segment) Departure() *Point {
	if len(s.points) == 0 {
		return nil
	}
	return s.points[0]
}

// Arrival returns the last point, or nil when empty
func (s *Segment) Arrival() *Point {
	if len(s.points) == 0 {
		return nil
	}
	return s.points[len(s.points)-1]
}

// StartTime returns the first defined time in point order
func (s *Segment) StartTime() *int64 {
	for _, p := range s.points {
		if p.time.ok {
			return p.time.ptr()
		}
	}
	return nil
}

// EndTime returns the last defined time in point order
func (s *Segment) EndTime() *int64 {
	for i := len(s.points) - 1; i >= 0; i-- {
		if s.points[i].time.ok {
			return s.points[i].time.ptr()
		}
	}
	return nil
}

// TimeSinceStart returns the milliseconds from the segment's start time to t
func (s *Segment) TimeSinceStart(t int64) (int64, bool) {
	start := s.StartTime()
	if start == nil || t < *start {
		return 0, false
	}
	return t - *start, true
}

// DistanceFromStart returns the meters walked from the first point to point i
func (s *Segment) DistanceFromStart(i int) float64 {
	if i <= 0 {
		return 0
	}
	var total float64
	for _, p := range s.points[1 : i+1] {
		total += p.distanceFromPrevious
	}
	return total
}

// NearestPoint returns the point closest to the position among those
// accepted by match, nil when none is accepted. A nil match accepts all.
func (s *Segment) NearestPoint(lat, lng float64, match func(*Point) bool) *Point {
	var (
		nearest  *Point
		distance float64
	)
	for _, p := range s.points {
		if match != nil && !match(p) {
			continue
		}
		d := spatial.Distance(p.lat, p.lng, lat, lng)
		if nearest == nil || d < distance {
			nearest, distance = p, d
		}
	}
	return nearest
}

// Equal reports whether both segments carry the same point values
func (s *Segment) Equal(other *Segment) bool {
	if len(s.points) != len(other.points) {
		return false
	}
	for i, p := range s.points {
		if !p.Equal(other.points[i]) {
			return false
		}
	}
	return true
}

func (s *Segment) attach(p *Point, index int) {
	if p.seg != nil {
		panic("track: point already belongs to a segment")
	}
	p.seg = s
	p.index = index
}

func (s *Segment) reindex(from int) {
	for i := from; i < len(s.points); i++ {
		s.points[i].index = i
	}
}

// withdraw cancels the contribution of p, detaches it and returns the
// extrema it held
func (s *Segment) withdraw(p *Point) extremumSet {
	s.agg.setContribution(p, 0, 0, 0)
	held := s.agg.heldBy(p)
	p.detach()
	return held
}

// previousValues returns the nearest points before index i holding an
// elevation and a time
func (s *Segment) previousValues(i int) (ele, time *Point) {
	if i == 0 {
		return nil, nil
	}
	prev := s.points[i-1]
	ele, time = prev.elePrevious, prev.timePrevious
	if prev.ele.ok {
		ele = prev
	}
	if prev.time.ok {
		time = prev
	}
	return ele, time
}

// refresh recomputes the contribution of point i. Distance is taken from
// point i-1, elevation and duration from the nearest earlier point having
// one.
func (s *Segment) refresh(i int) {
	if i >= len(s.points) {
		return
	}
	p := s.points[i]
	p.elePrevious, p.timePrevious = s.previousValues(i)
	var (
		distance  float64
		elevation float64
		duration  int64
	)
	if i > 0 {
		distance = p.DistanceTo(s.points[i-1])
	}
	if p.ele.ok && p.elePrevious != nil {
		elevation = p.ele.v - p.elePrevious.ele.v
	}
	if p.time.ok && p.timePrevious != nil {
		duration = p.time.v - p.timePrevious.time.v
	}
	s.agg.setContribution(p, distance, elevation, duration)
}

// refreshFrom refreshes point i and the following points lacking the
// fields in f, up to and including the first point that has each of them
func (s *Segment) refreshFrom(i int, f field) {
	eleDone, timeDone := f&fieldElevation == 0, f&fieldTime == 0
	for ; i < len(s.points); i++ {
		s.refresh(i)
		p := s.points[i]
		eleDone = eleDone || p.ele.ok
		timeDone = timeDone || p.time.ok
		if eleDone && timeDone {
			return
		}
	}
}

// resetContributions zeroes the sums once no pair of points is left
func (s *Segment) resetContributions() {
	for _, p := range s.points {
		p.distanceFromPrevious = 0
		p.elevationFromPrevious = 0
		p.durationFromPrevious = 0
		p.elePrevious, p.timePrevious = nil, nil
	}
	s.agg.resetSums()
}

func (s *Segment) pointChanged(p *Point, f field) {
	s.refresh(p.index)
	s.refreshFrom(p.index+1, f)
	s.agg.rescan(s.points, s.agg.changed(p, f))
	s.changed()
}

func (s *Segment) changed() {
	if s.track != nil {
		s.track.segmentChanged()
	}
	if s.listeners.len() > 0 {
		s.listeners.notify(s.agg.metadata())
	}
}

// close drops the listeners and the owner link to the track
func (s *Segment) close() {
	s.listeners.clear()
	s.track = nil
}
