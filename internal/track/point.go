package track

import (
	"github.com/jengzang/trails-backend-go/internal/models"
	"github.com/jengzang/trails-backend-go/internal/spatial"
)

type optFloat struct {
	v  float64
	ok bool
}

func newOptFloat(v *float64) optFloat {
	if v == nil {
		return optFloat{}
	}
	return optFloat{v: *v, ok: true}
}

func (o optFloat) ptr() *float64 {
	if !o.ok {
		return nil
	}
	return models.Float(o.v)
}

type optTime struct {
	v  int64
	ok bool
}

func newOptTime(v *int64) optTime {
	if v == nil {
		return optTime{}
	}
	return optTime{v: *v, ok: true}
}

func (o optTime) ptr() *int64 {
	if !o.ok {
		return nil
	}
	return models.Int64(o.v)
}

// field identifies the point attributes the segment aggregate depends on
type field uint8

const (
	fieldPosition field = 1 << iota
	fieldElevation
	fieldTime

	allFields = fieldPosition | fieldElevation | fieldTime
)

// Point is one GPS sample inside a segment.
//
// Changes to position, elevation or time are pushed to the owning segment,
// which keeps its aggregate metadata up to date before the setter returns.
type Point struct {
	lat, lng    float64
	ele         optFloat
	time        optTime
	posAccuracy optFloat
	eleAccuracy optFloat
	heading     optFloat
	speed       optFloat

	// owner link, nil when the point is not part of a segment
	seg   *Segment
	index int

	// nearest earlier points of the segment having an elevation and a time
	elePrevious, timePrevious *Point

	// contribution relative to the previous points of the segment
	distanceFromPrevious  float64
	elevationFromPrevious float64
	durationFromPrevious  int64
}

// NewPoint creates a detached point at the given position
func NewPoint(lat, lng float64, ele *float64, time *int64) *Point {
	return &Point{
		lat:   lat,
		lng:   lng,
		ele:   newOptFloat(ele),
		time:  newOptTime(time),
		index: -1,
	}
}

// FromSample creates a detached point carrying every attribute of s
func FromSample(s models.Sample) *Point {
	p := NewPoint(s.Lat, s.Lng, s.Ele, s.Time)
	p.posAccuracy = newOptFloat(s.PosAccuracy)
	p.eleAccuracy = newOptFloat(s.EleAccuracy)
	p.heading = newOptFloat(s.Heading)
	p.speed = newOptFloat(s.Speed)
	return p
}

// FromSamples creates one detached point per sample
func FromSamples(samples []models.Sample) []*Point {
	points := make([]*Point, len(samples))
	for i, s := range samples {
		points[i] = FromSample(s)
	}
	return points
}

func (p *Point) Lat() float64          { return p.lat }
func (p *Point) Lng() float64          { return p.lng }
func (p *Point) Ele() *float64         { return p.ele.ptr() }
func (p *Point) Time() *int64          { return p.time.ptr() }
func (p *Point) PosAccuracy() *float64 { return p.posAccuracy.ptr() }
func (p *Point) EleAccuracy() *float64 { return p.eleAccuracy.ptr() }
func (p *Point) Heading() *float64     { return p.heading.ptr() }
func (p *Point) Speed() *float64       { return p.speed.ptr() }

// Segment returns the segment owning p, or nil for a detached point
func (p *Point) Segment() *Segment { return p.seg }

// Index returns the position of p in its segment, or -1 when detached
func (p *Point) Index() int { return p.index }

// DistanceFromPrevious returns the meters from the previous point of the segment
func (p *Point) DistanceFromPrevious() float64 { return p.distanceFromPrevious }

// ElevationFromPrevious returns the signed elevation change from the nearest
// earlier point having an elevation, 0 when there is none or p has none
func (p *Point) ElevationFromPrevious() float64 { return p.elevationFromPrevious }

// DurationFromPrevious returns the signed milliseconds from the nearest
// earlier point having a time, 0 when there is none or p has none
func (p *Point) DurationFromPrevious() int64 { return p.durationFromPrevious }

// DistanceTo returns the great-circle distance to other in meters
func (p *Point) DistanceTo(other *Point) float64 {
	return spatial.Distance(p.lat, p.lng, other.lat, other.lng)
}

// Sample returns a detached copy of the point's values
func (p *Point) Sample() models.Sample {
	return models.Sample{
		Lat:         p.lat,
		Lng:         p.lng,
		Ele:         p.ele.ptr(),
		Time:        p.time.ptr(),
		PosAccuracy: p.posAccuracy.ptr(),
		EleAccuracy: p.eleAccuracy.ptr(),
		Heading:     p.heading.ptr(),
		Speed:       p.speed.ptr(),
	}
}

// Equal reports whether p and other carry the same values
func (p *Point) Equal(other *Point) bool {
	return p.lat == other.lat && p.lng == other.lng &&
		p.ele == other.ele && p.time == other.time &&
		p.posAccuracy == other.posAccuracy && p.eleAccuracy == other.eleAccuracy &&
		p.heading == other.heading && p.speed == other.speed
}

func (p *Point) SetPosition(lat, lng float64) {
	if p.lat == lat && p.lng == lng {
		return
	}
	p.lat, p.lng = lat, lng
	p.notify(fieldPosition)
}

func (p *Point) SetElevation(ele *float64) {
	v := newOptFloat(ele)
	if v == p.ele {
		return
	}
	p.ele = v
	p.notify(fieldElevation)
}

func (p *Point) SetTime(time *int64) {
	v := newOptTime(time)
	if v == p.time {
		return
	}
	p.time = v
	p.notify(fieldTime)
}

// The remaining attributes do not feed the aggregate
func (p *Point) SetPosAccuracy(v *float64) { p.posAccuracy = newOptFloat(v) }
func (p *Point) SetEleAccuracy(v *float64) { p.eleAccuracy = newOptFloat(v) }
func (p *Point) SetHeading(v *float64)     { p.heading = newOptFloat(v) }
func (p *Point) SetSpeed(v *float64)       { p.speed = newOptFloat(v) }

func (p *Point) notify(f field) {
	if p.seg != nil {
		p.seg.pointChanged(p, f)
	}
}

func (p *Point) detach() {
	p.seg = nil
	p.index = -1
	p.distanceFromPrevious = 0
	p.elevationFromPrevious = 0
	p.durationFromPrevious = 0
	p.elePrevious, p.timePrevious = nil, nil
}
