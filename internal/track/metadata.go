package track

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/jengzang/trails-backend-go/internal/models"
	"github.com/jengzang/trails-backend-go/internal/spatial"
)

// Metadata is a snapshot of the aggregate values of a segment or a track
type Metadata struct {
	Distance        float64    `json:"distance"` // meters
	Ascent          float64    `json:"ascent"`   // meters
	Descent         float64    `json:"descent"`  // meters
	Duration        int64      `json:"duration"` // milliseconds
	HighestAltitude *float64   `json:"highestAltitude,omitempty"`
	LowestAltitude  *float64   `json:"lowestAltitude,omitempty"`
	StartTime       *int64     `json:"startTime,omitempty"`
	Bounds          *orb.Bound `json:"bounds,omitempty"`
}

// CombineMetadata merges segment metadata into track metadata.
// Sums are added, altitudes take the defined max/min, start time the defined
// earliest and bounds their union.
func CombineMetadata(parts ...Metadata) Metadata {
	var m Metadata
	for _, p := range parts {
		m.Distance += p.Distance
		m.Ascent += p.Ascent
		m.Descent += p.Descent
		m.Duration += p.Duration
		m.HighestAltitude = pickFloat(m.HighestAltitude, p.HighestAltitude, math.Max)
		m.LowestAltitude = pickFloat(m.LowestAltitude, p.LowestAltitude, math.Min)
		if p.StartTime != nil && (m.StartTime == nil || *p.StartTime < *m.StartTime) {
			m.StartTime = models.Int64(*p.StartTime)
		}
		m.Bounds = spatial.UnionBounds(m.Bounds, p.Bounds)
	}
	return m
}

func pickFloat(a, b *float64, pick func(x, y float64) float64) *float64 {
	if a == nil {
		if b == nil {
			return nil
		}
		return models.Float(*b)
	}
	if b == nil {
		return a
	}
	return models.Float(pick(*a, *b))
}

// ComputeMetadata computes the metadata of one segment from scratch.
// Elevation and duration pair each value with the nearest earlier one, so
// points missing a value are skipped over.
func ComputeMetadata(samples []models.Sample) Metadata {
	var (
		m        Metadata
		duration int64
		lastEle  *float64
		lastTime *int64
	)
	for i, s := range samples {
		if s.Ele != nil {
			m.HighestAltitude = pickFloat(m.HighestAltitude, s.Ele, math.Max)
			m.LowestAltitude = pickFloat(m.LowestAltitude, s.Ele, math.Min)
		}
		if s.Time != nil && (m.StartTime == nil || *s.Time < *m.StartTime) {
			m.StartTime = models.Int64(*s.Time)
		}
		b := spatial.PointBound(s.Lat, s.Lng)
		m.Bounds = spatial.UnionBounds(m.Bounds, &b)

		if i > 0 {
			prev := samples[i-1]
			m.Distance += spatial.Distance(prev.Lat, prev.Lng, s.Lat, s.Lng)
		}
		if s.Ele != nil {
			if lastEle != nil {
				if d := *s.Ele - *lastEle; d > 0 {
					m.Ascent += d
				} else {
					m.Descent -= d
				}
			}
			lastEle = s.Ele
		}
		if s.Time != nil {
			if lastTime != nil {
				duration += *s.Time - *lastTime
			}
			lastTime = s.Time
		}
	}
	if duration > 0 {
		m.Duration = duration
	}
	return m
}

// extremum identifies one tracked extreme value of a segment
type extremum int

const (
	highest extremum = iota
	lowest
	earliest
	north
	south
	east
	west
	extremumCount
)

type extremumRule struct {
	field field
	value func(p *Point) (float64, bool)
	// better reports whether a is strictly more extreme than b
	better func(a, b float64) bool
}

func greater(a, b float64) bool { return a > b }
func less(a, b float64) bool    { return a < b }

func elevationOf(p *Point) (float64, bool) { return p.ele.v, p.ele.ok }
func timeOf(p *Point) (float64, bool)      { return float64(p.time.v), p.time.ok }
func latOf(p *Point) (float64, bool)       { return p.lat, true }
func lngOf(p *Point) (float64, bool)       { return p.lng, true }

var extremumRules = [extremumCount]extremumRule{
	highest:  {fieldElevation, elevationOf, greater},
	lowest:   {fieldElevation, elevationOf, less},
	earliest: {fieldTime, timeOf, less},
	north:    {fieldPosition, latOf, greater},
	south:    {fieldPosition, latOf, less},
	east:     {fieldPosition, lngOf, greater},
	west:     {fieldPosition, lngOf, less},
}

type extremumSet uint8

func (s extremumSet) has(e extremum) bool { return s&(1<<e) != 0 }

// aggregate holds the incrementally maintained sums and extremum holders of
// a segment. Sums only ever receive the difference between a point's old and
// new contribution.
type aggregate struct {
	distance float64
	ascent   float64
	descent  float64
	duration int64

	holders [extremumCount]*Point
	values  [extremumCount]float64

	// number of full rescans performed, observed by tests
	rescans int
}

func (a *aggregate) addElevation(d float64) {
	if d > 0 {
		a.ascent += d
	} else {
		a.descent -= d
	}
}

func (a *aggregate) cancelElevation(d float64) {
	if d > 0 {
		a.ascent -= d
	} else {
		a.descent += d
	}
}

// setContribution replaces the neighbor-relative contribution of p
func (a *aggregate) setContribution(p *Point, distance, elevation float64, duration int64) {
	a.distance += distance - p.distanceFromPrevious
	if elevation != p.elevationFromPrevious {
		a.cancelElevation(p.elevationFromPrevious)
		a.addElevation(elevation)
	}
	a.duration += duration - p.durationFromPrevious
	p.distanceFromPrevious = distance
	p.elevationFromPrevious = elevation
	p.durationFromPrevious = duration
}

func (a *aggregate) resetSums() {
	a.distance, a.ascent, a.descent, a.duration = 0, 0, 0, 0
}

// offer compares p against the current holders of the extrema depending on fields
func (a *aggregate) offer(p *Point, fields field) {
	for e := extremum(0); e < extremumCount; e++ {
		rule := extremumRules[e]
		if rule.field&fields == 0 {
			continue
		}
		v, ok := rule.value(p)
		if !ok {
			continue
		}
		if a.holders[e] == nil || rule.better(v, a.values[e]) {
			a.holders[e] = p
			a.values[e] = v
		}
	}
}

// changed handles a value change of p and returns the extrema that need a
// rescan: those held by p whose value became unknown or less extreme.
func (a *aggregate) changed(p *Point, fields field) extremumSet {
	var stale extremumSet
	for e := extremum(0); e < extremumCount; e++ {
		rule := extremumRules[e]
		if rule.field&fields == 0 {
			continue
		}
		v, ok := rule.value(p)
		if a.holders[e] == p {
			if !ok || rule.better(a.values[e], v) {
				stale |= 1 << e
			} else {
				a.values[e] = v
			}
			continue
		}
		if ok && (a.holders[e] == nil || rule.better(v, a.values[e])) {
			a.holders[e] = p
			a.values[e] = v
		}
	}
	return stale
}

// heldBy returns the extrema currently held by p
func (a *aggregate) heldBy(p *Point) extremumSet {
	var held extremumSet
	for e := extremum(0); e < extremumCount; e++ {
		if a.holders[e] == p {
			held |= 1 << e
		}
	}
	return held
}

// rescan finds new holders for the given extrema over points
func (a *aggregate) rescan(points []*Point, stale extremumSet) {
	if stale == 0 {
		return
	}
	a.rescans++
	for e := extremum(0); e < extremumCount; e++ {
		if stale.has(e) {
			a.holders[e] = nil
		}
	}
	for _, p := range points {
		for e := extremum(0); e < extremumCount; e++ {
			if !stale.has(e) {
				continue
			}
			rule := extremumRules[e]
			v, ok := rule.value(p)
			if ok && (a.holders[e] == nil || rule.better(v, a.values[e])) {
				a.holders[e] = p
				a.values[e] = v
			}
		}
	}
}

func (a *aggregate) metadata() Metadata {
	m := Metadata{
		Distance: math.Max(0, a.distance),
		Ascent:   math.Max(0, a.ascent),
		Descent:  math.Max(0, a.descent),
	}
	if a.duration > 0 {
		m.Duration = a.duration
	}
	if p := a.holders[highest]; p != nil {
		m.HighestAltitude = p.ele.ptr()
	}
	if p := a.holders[lowest]; p != nil {
		m.LowestAltitude = p.ele.ptr()
	}
	if p := a.holders[earliest]; p != nil {
		m.StartTime = p.time.ptr()
	}
	if a.holders[north] != nil {
		b := spatial.NewBound(a.values[south], a.values[west], a.values[north], a.values[east])
		m.Bounds = &b
	}
	return m
}
