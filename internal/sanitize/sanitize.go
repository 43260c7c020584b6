// Package sanitize cleans raw imported samples before they become a segment
package sanitize

import (
	"github.com/jengzang/trails-backend-go/internal/models"
)

// Plausible elevation range in meters
const (
	MinElevation = -1000
	MaxElevation = 10000
)

// Report counts the values dropped by Points
type Report struct {
	TimesDropped      int `json:"timesDropped"`
	ElevationsDropped int `json:"elevationsDropped"`
}

// Changed reports whether anything was dropped
func (r Report) Changed() bool {
	return r.TimesDropped > 0 || r.ElevationsDropped > 0
}

// Points repairs the samples in place:
// times going back in the past are dropped, either on the disputed point or
// on the earlier points, whichever the other timestamps disagree with;
// times are dropped altogether when every point reports the same one;
// elevations outside [MinElevation, MaxElevation] are dropped.
func Points(samples []models.Sample) Report {
	var r Report
	for {
		n := fixChronology(samples)
		if n == 0 {
			break
		}
		r.TimesDropped += n
	}
	r.TimesDropped += dropConstantTime(samples)
	r.ElevationsDropped = dropImpossibleElevations(samples)
	return r
}

// fixChronology makes one pass over the samples and returns the number of
// times dropped
func fixChronology(samples []models.Sample) int {
	if len(samples) == 0 {
		return 0
	}
	dropped := 0
	previous := samples[0].Time
	for i := 1; i < len(samples); i++ {
		current := samples[i].Time
		if current == nil {
			continue
		}
		if previous == nil {
			previous = current
			continue
		}
		if *current < *previous {
			if closerTo(samples, *previous, *current) {
				samples[i].Time = nil
				dropped++
				continue
			}
			for j := i - 1; j >= 0; j-- {
				if samples[j].Time != nil && *samples[j].Time > *current {
					samples[j].Time = nil
					dropped++
				}
			}
		}
		previous = current
	}
	return dropped
}

// closerTo reports whether at least as many timestamps lie closer to a than
// to b
func closerTo(samples []models.Sample, a, b int64) bool {
	var toA, toB int
	for _, s := range samples {
		if s.Time == nil {
			continue
		}
		if abs(a-*s.Time) < abs(b-*s.Time) {
			toA++
		} else {
			toB++
		}
	}
	return toA >= toB
}

func dropConstantTime(samples []models.Sample) int {
	first, last := -1, -1
	for i, s := range samples {
		if s.Time == nil {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}
	if first < 0 || last == first || *samples[first].Time != *samples[last].Time {
		return 0
	}
	dropped := 0
	for i := range samples {
		if samples[i].Time != nil {
			samples[i].Time = nil
			dropped++
		}
	}
	return dropped
}

func dropImpossibleElevations(samples []models.Sample) int {
	dropped := 0
	for i := range samples {
		if e := samples[i].Ele; e != nil && (*e < MinElevation || *e > MaxElevation) {
			samples[i].Ele = nil
			dropped++
		}
	}
	return dropped
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
