package spatial

import (
	"github.com/paulmach/orb"
)

// PointBound returns the degenerate bound holding a single position
func PointBound(lat, lng float64) orb.Bound {
	p := orb.Point{lng, lat}
	return orb.Bound{Min: p, Max: p}
}

// NewBound builds a bound from its four edges
func NewBound(south, west, north, east float64) orb.Bound {
	return orb.Bound{
		Min: orb.Point{west, south},
		Max: orb.Point{east, north},
	}
}

// UnionBounds merges two optional bounds, nil meaning no positions
func UnionBounds(a, b *orb.Bound) *orb.Bound {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	u := a.Union(*b)
	return &u
}
