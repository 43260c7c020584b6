// Package codec converts points to and from their delta encoded wire form.
//
// Each point is written relative to the previous point of the same segment,
// using fixed-point integers. The first point of a segment carries absolute
// values. For later points a latitude or longitude is omitted when unchanged,
// otherwise it holds the difference of the scaled values. Optional fields
// have three states: omitted means unchanged from the previous point, zero
// means the point has no value, anything else is the difference from the
// previous scaled value (or the absolute scaled value when the previous
// point had none).
package codec

import (
	"math"

	"github.com/jengzang/trails-backend-go/internal/models"
)

// Scale factors applied before a value is written as an integer
const (
	PositionFactor          = 10000000
	ElevationFactor         = 10
	PositionAccuracyFactor  = 100
	ElevationAccuracyFactor = 100
	HeadingFactor           = 100
	SpeedFactor             = 100
)

// coordSlack absorbs the representation error of v × 1e7 so that a decoded
// coordinate encodes back to the same integer
const coordSlack = 1e-6

// EncodeCoord returns the scaled integer form of a latitude or longitude,
// truncated toward negative infinity
func EncodeCoord(v float64) int64 {
	return int64(math.Floor(float64(v*PositionFactor) + coordSlack))
}

// DecodeCoord returns the degrees for a scaled latitude or longitude
func DecodeCoord(n int64) float64 {
	return float64(n) / PositionFactor
}

// EncodeElevation returns the scaled integer form of an elevation in meters
func EncodeElevation(v float64) int64 {
	return scale(v, ElevationFactor)
}

// DecodeElevation returns the meters for a scaled elevation
func DecodeElevation(n int64) float64 {
	return unscale(n, ElevationFactor)
}

// scale rounds half up, negative halves included
func scale(v float64, factor int64) int64 {
	return int64(math.Floor(float64(v*float64(factor)) + 0.5))
}

func unscale(n int64, factor int64) float64 {
	return float64(n) / float64(factor)
}

// scaled is an optional fixed-point value
type scaled struct {
	v  int64
	ok bool
}

func scaleOpt(v *float64, factor int64) scaled {
	if v == nil {
		return scaled{}
	}
	return scaled{v: scale(*v, factor), ok: true}
}

func millisOpt(v *int64) scaled {
	if v == nil {
		return scaled{}
	}
	return scaled{v: *v, ok: true}
}

func (s scaled) float(factor int64) *float64 {
	if !s.ok {
		return nil
	}
	return models.Float(unscale(s.v, factor))
}

func (s scaled) ptr() *int64 {
	if !s.ok {
		return nil
	}
	return models.Int64(s.v)
}

func diff(cur, prev scaled) *int64 {
	switch {
	case cur == prev:
		return nil
	case !cur.ok:
		return models.Int64(0)
	case !prev.ok:
		return models.Int64(cur.v)
	default:
		return models.Int64(cur.v - prev.v)
	}
}

// EncodePoint encodes cur relative to prev.
// prev is nil for the first point of a segment.
func EncodePoint(cur models.Sample, prev *models.Sample) models.PointRecord {
	if prev == nil {
		return models.PointRecord{
			Lat:         models.Int64(EncodeCoord(cur.Lat)),
			Lng:         models.Int64(EncodeCoord(cur.Lng)),
			Ele:         scaleOpt(cur.Ele, ElevationFactor).ptr(),
			Time:        millisOpt(cur.Time).ptr(),
			PosAccuracy: scaleOpt(cur.PosAccuracy, PositionAccuracyFactor).ptr(),
			EleAccuracy: scaleOpt(cur.EleAccuracy, ElevationAccuracyFactor).ptr(),
			Heading:     scaleOpt(cur.Heading, HeadingFactor).ptr(),
			Speed:       scaleOpt(cur.Speed, SpeedFactor).ptr(),
		}
	}

	var rec models.PointRecord
	if d := EncodeCoord(cur.Lat) - EncodeCoord(prev.Lat); d != 0 {
		rec.Lat = models.Int64(d)
	}
	if d := EncodeCoord(cur.Lng) - EncodeCoord(prev.Lng); d != 0 {
		rec.Lng = models.Int64(d)
	}
	rec.Ele = diff(scaleOpt(cur.Ele, ElevationFactor), scaleOpt(prev.Ele, ElevationFactor))
	rec.Time = diff(millisOpt(cur.Time), millisOpt(prev.Time))
	rec.PosAccuracy = diff(scaleOpt(cur.PosAccuracy, PositionAccuracyFactor), scaleOpt(prev.PosAccuracy, PositionAccuracyFactor))
	rec.EleAccuracy = diff(scaleOpt(cur.EleAccuracy, ElevationAccuracyFactor), scaleOpt(prev.EleAccuracy, ElevationAccuracyFactor))
	rec.Heading = diff(scaleOpt(cur.Heading, HeadingFactor), scaleOpt(prev.Heading, HeadingFactor))
	rec.Speed = diff(scaleOpt(cur.Speed, SpeedFactor), scaleOpt(prev.Speed, SpeedFactor))
	return rec
}

// EncodeSegment encodes the points of one segment in order
func EncodeSegment(samples []models.Sample) []models.PointRecord {
	records := make([]models.PointRecord, len(samples))
	var prev *models.Sample
	for i := range samples {
		records[i] = EncodePoint(samples[i], prev)
		prev = &samples[i]
	}
	return records
}

// EncodeWayPoint encodes a way point with absolute values
func EncodeWayPoint(wp models.WayPoint) models.WayPointRecord {
	return models.WayPointRecord{
		PointRecord: EncodePoint(wp.Sample, nil),
		Name:        wp.Name,
		Description: wp.Description,
	}
}

// DecodeWayPoint decodes a way point record
func DecodeWayPoint(rec models.WayPointRecord) models.WayPoint {
	var d Decoder
	return models.WayPoint{
		Sample:      d.Decode(rec.PointRecord),
		Name:        rec.Name,
		Description: rec.Description,
	}
}

// Decoder replays a segment's records from its first point.
// The zero value is ready to decode the first point of a segment.
type Decoder struct {
	started  bool
	lat, lng int64

	ele, time, posAccuracy, eleAccuracy, heading, speed scaled
}

// Reset prepares the decoder for the first point of a new segment
func (d *Decoder) Reset() {
	*d = Decoder{}
}

// Decode returns the sample for the next record of the segment
func (d *Decoder) Decode(rec models.PointRecord) models.Sample {
	d.lat = d.coord(rec.Lat, d.lat)
	d.lng = d.coord(rec.Lng, d.lng)
	d.ele = next(rec.Ele, d.ele)
	d.time = next(rec.Time, d.time)
	d.posAccuracy = next(rec.PosAccuracy, d.posAccuracy)
	d.eleAccuracy = next(rec.EleAccuracy, d.eleAccuracy)
	d.heading = next(rec.Heading, d.heading)
	d.speed = next(rec.Speed, d.speed)
	d.started = true

	return models.Sample{
		Lat:         DecodeCoord(d.lat),
		Lng:         DecodeCoord(d.lng),
		Ele:         d.ele.float(ElevationFactor),
		Time:        d.time.ptr(),
		PosAccuracy: d.posAccuracy.float(PositionAccuracyFactor),
		EleAccuracy: d.eleAccuracy.float(ElevationAccuracyFactor),
		Heading:     d.heading.float(HeadingFactor),
		Speed:       d.speed.float(SpeedFactor),
	}
}

// coord applies a coordinate field. A missing coordinate keeps the previous
// value, which is 0 on the first point of a segment.
func (d *Decoder) coord(field *int64, prev int64) int64 {
	if field == nil {
		return prev
	}
	if !d.started {
		return *field
	}
	return prev + *field
}

func next(field *int64, prev scaled) scaled {
	switch {
	case field == nil:
		return prev
	case *field == 0:
		return scaled{}
	case !prev.ok:
		return scaled{v: *field, ok: true}
	default:
		return scaled{v: prev.v + *field, ok: true}
	}
}

// DecodeSegment decodes the records of one segment in order
func DecodeSegment(records []models.PointRecord) []models.Sample {
	samples := make([]models.Sample, len(records))
	var d Decoder
	for i, rec := range records {
		samples[i] = d.Decode(rec)
	}
	return samples
}
