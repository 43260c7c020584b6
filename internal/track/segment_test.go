package track

import (
	"math"
	"math/rand"
	"testing"

	"github.com/jengzang/trails-backend-go/internal/models"
	"github.com/jengzang/trails-backend-go/internal/sanitize"
	"github.com/jengzang/trails-backend-go/internal/spatial"
)

func assertFloatPtr(t *testing.T, name string, got, want *float64) {
	t.Helper()
	if (got == nil) != (want == nil) {
		t.Fatalf("%s: got %v, want %v", name, got, want)
	}
	if got != nil && math.Abs(*got-*want) > 1e-9 {
		t.Fatalf("%s: got %f, want %f", name, *got, *want)
	}
}

func assertMetadata(t *testing.T, got, want Metadata) {
	t.Helper()
	if math.Abs(got.Distance-want.Distance) > 1e-6 {
		t.Fatalf("distance: got %f, want %f", got.Distance, want.Distance)
	}
	if math.Abs(got.Ascent-want.Ascent) > 1e-6 {
		t.Fatalf("ascent: got %f, want %f", got.Ascent, want.Ascent)
	}
	if math.Abs(got.Descent-want.Descent) > 1e-6 {
		t.Fatalf("descent: got %f, want %f", got.Descent, want.Descent)
	}
	if got.Duration != want.Duration {
		t.Fatalf("duration: got %d, want %d", got.Duration, want.Duration)
	}
	assertFloatPtr(t, "highest", got.HighestAltitude, want.HighestAltitude)
	assertFloatPtr(t, "lowest", got.LowestAltitude, want.LowestAltitude)
	if (got.StartTime == nil) != (want.StartTime == nil) || (got.StartTime != nil && *got.StartTime != *want.StartTime) {
		t.Fatalf("start time: got %v, want %v", got.StartTime, want.StartTime)
	}
	if (got.Bounds == nil) != (want.Bounds == nil) || (got.Bounds != nil && *got.Bounds != *want.Bounds) {
		t.Fatalf("bounds: got %v, want %v", got.Bounds, want.Bounds)
	}
	if got.Distance < 0 || got.Ascent < 0 || got.Descent < 0 || got.Duration < 0 {
		t.Fatalf("negative aggregate: %+v", got)
	}
}

func assertConsistent(t *testing.T, s *Segment) {
	t.Helper()
	assertMetadata(t, s.Metadata(), ComputeMetadata(s.Samples()))
	for i, p := range s.points {
		if p.index != i || p.seg != s {
			t.Fatalf("point %d has index %d and owner %p", i, p.index, p.seg)
		}
	}
}

func TestAppendThenRemoveExample(t *testing.T) {
	a := NewPoint(45.0, 6.0, models.Float(1000), models.Int64(0))
	b := NewPoint(45.001, 6.001, models.Float(1010), models.Int64(60000))

	s := NewSegment()
	s.Append(a).Append(b)

	m := s.Metadata()
	want := spatial.Distance(45.0, 6.0, 45.001, 6.001)
	if math.Abs(m.Distance-want) > 1e-9 {
		t.Errorf("distance = %f, want %f", m.Distance, want)
	}
	if m.Ascent != 10 || m.Descent != 0 {
		t.Errorf("ascent/descent = %f/%f, want 10/0", m.Ascent, m.Descent)
	}
	if m.Duration != 60000 {
		t.Errorf("duration = %d, want 60000", m.Duration)
	}
	if m.StartTime == nil || *m.StartTime != 0 {
		t.Errorf("start time = %v, want 0", m.StartTime)
	}

	s.RemoveAt(1)
	m = s.Metadata()
	if m.Distance != 0 || m.Ascent != 0 || m.Descent != 0 || m.Duration != 0 {
		t.Fatalf("expected zero sums after removing B, got %+v", m)
	}
	if b.Segment() != nil || b.Index() != -1 {
		t.Fatalf("removed point must be detached")
	}
}

func TestFirstPointContributesNothing(t *testing.T) {
	s := NewSegment()
	s.Append(NewPoint(1, 1, models.Float(100), models.Int64(1000)))
	s.Append(NewPoint(1.001, 1, models.Float(120), models.Int64(2000)))
	s.Append(NewPoint(1.002, 1, models.Float(90), models.Int64(3000)))

	s.RemoveAt(0)
	first := s.At(0)
	if first.DistanceFromPrevious() != 0 || first.ElevationFromPrevious() != 0 || first.DurationFromPrevious() != 0 {
		t.Fatalf("new first point keeps a contribution: %f %f %d",
			first.DistanceFromPrevious(), first.ElevationFromPrevious(), first.DurationFromPrevious())
	}
	assertConsistent(t, s)
	if s.Metadata().Descent != 30 {
		t.Fatalf("descent = %f, want 30", s.Metadata().Descent)
	}
}

func TestUndefinedValuesPairWithEarlierValue(t *testing.T) {
	s := NewSegment()
	p0 := NewPoint(1, 1, models.Float(100), models.Int64(0))
	p1 := NewPoint(1, 1.001, models.Float(150), models.Int64(1000))
	p2 := NewPoint(1, 1.002, models.Float(120), models.Int64(5000))
	s.AppendMany(p0, p1, p2)

	p1.SetElevation(nil)
	m := s.Metadata()
	if m.Ascent != 20 || m.Descent != 0 {
		t.Fatalf("ascent/descent = %f/%f, want 20/0", m.Ascent, m.Descent)
	}
	if p1.ElevationFromPrevious() != 0 || p2.ElevationFromPrevious() != 20 {
		t.Fatalf("elevation deltas = %f/%f, want 0/20", p1.ElevationFromPrevious(), p2.ElevationFromPrevious())
	}
	assertFloatPtr(t, "highest", m.HighestAltitude, models.Float(120))
	assertConsistent(t, s)

	p1.SetTime(nil)
	if got := s.Metadata().Duration; got != 5000 {
		t.Fatalf("duration = %d, want 5000", got)
	}
	if p2.DurationFromPrevious() != 5000 {
		t.Fatalf("duration delta = %d, want 5000", p2.DurationFromPrevious())
	}
	assertConsistent(t, s)

	p1.SetElevation(models.Float(110))
	p1.SetTime(models.Int64(2000))
	assertConsistent(t, s)
	if m := s.Metadata(); m.Duration != 5000 || m.Ascent != 20 || m.Descent != 0 {
		t.Fatalf("unexpected metadata %+v", m)
	}

	p0.SetElevation(nil)
	p0.SetTime(nil)
	assertConsistent(t, s)
	if m := s.Metadata(); m.Duration != 3000 || m.Ascent != 10 {
		t.Fatalf("unexpected metadata %+v", m)
	}
}

func TestSanitizedGapKeepsTimeAndClimb(t *testing.T) {
	// the third point is out of order and above any plausible altitude
	samples := []models.Sample{
		{Lat: 45, Lng: 6, Time: models.Int64(100), Ele: models.Float(1000)},
		{Lat: 45.001, Lng: 6, Time: models.Int64(200), Ele: models.Float(1100)},
		{Lat: 45.002, Lng: 6, Time: models.Int64(150), Ele: models.Float(20000)},
		{Lat: 45.003, Lng: 6, Time: models.Int64(400), Ele: models.Float(1200)},
	}
	report := sanitize.Points(samples)
	if report.TimesDropped != 1 || report.ElevationsDropped != 1 {
		t.Fatalf("unexpected report %+v", report)
	}

	s := NewSegment().AppendMany(FromSamples(samples)...)
	m := s.Metadata()
	if m.Duration != 300 || math.Abs(m.Ascent-200) > 1e-9 || m.Descent != 0 {
		t.Fatalf("duration/ascent = %d/%f, want 300/200", m.Duration, m.Ascent)
	}
	assertConsistent(t, s)

	// removing the gap keeps the same pairs
	s.RemoveAt(2)
	if m := s.Metadata(); m.Duration != 300 || math.Abs(m.Ascent-200) > 1e-9 {
		t.Fatalf("after removal duration/ascent = %d/%f", m.Duration, m.Ascent)
	}
	assertConsistent(t, s)

	// a value appearing inside a gap splits it
	s.Insert(2, NewPoint(45.0025, 6, models.Float(1300), models.Int64(300)))
	if m := s.Metadata(); m.Duration != 300 || math.Abs(m.Ascent-300) > 1e-9 || m.Descent != 100 {
		t.Fatalf("after insert %+v", m)
	}
	assertConsistent(t, s)
}

func TestExtremumAfterRemoval(t *testing.T) {
	elevations := []float64{500, 820, 640, 910, 300, 700}
	s := NewSegment()
	for i, e := range elevations {
		s.Append(NewPoint(1, 1+float64(i)*0.001, models.Float(e), nil))
	}
	s.Append(NewPoint(1, 1.01, nil, nil))

	s.RemoveAt(3) // 910
	assertFloatPtr(t, "highest", s.Metadata().HighestAltitude, models.Float(820))
	s.RemoveAt(3) // 300
	assertFloatPtr(t, "lowest", s.Metadata().LowestAltitude, models.Float(500))
	assertConsistent(t, s)

	for s.Len() > 1 {
		s.RemoveAt(0)
	}
	m := s.Metadata()
	if m.HighestAltitude != nil || m.LowestAltitude != nil {
		t.Fatalf("no elevation left, got %v %v", m.HighestAltitude, m.LowestAltitude)
	}
}

func TestRescanOnlyWhenHolderLosesExtreme(t *testing.T) {
	s := NewSegment()
	pts := []*Point{
		NewPoint(1.000, 1.000, models.Float(100), models.Int64(1000)),
		NewPoint(1.001, 1.001, models.Float(300), models.Int64(2000)),
		NewPoint(1.002, 1.002, models.Float(200), models.Int64(3000)),
		NewPoint(1.003, 1.003, models.Float(250), models.Int64(4000)),
	}
	s.AppendMany(pts...)
	s.Append(NewPoint(1.004, 1.004, models.Float(150), models.Int64(5000)))
	if s.agg.rescans != 0 {
		t.Fatalf("appends must not rescan, got %d", s.agg.rescans)
	}

	// non holder inside the current range
	pts[2].SetElevation(models.Float(220))
	pts[2].SetTime(models.Int64(3500))
	if s.agg.rescans != 0 {
		t.Fatalf("non holder edit must not rescan, got %d", s.agg.rescans)
	}

	// non holder becoming the new extreme
	pts[3].SetElevation(models.Float(400))
	if s.agg.rescans != 0 || s.agg.holders[highest] != pts[3] {
		t.Fatalf("new extreme should be taken over without rescan")
	}

	// holder becoming more extreme keeps its place
	pts[3].SetElevation(models.Float(450))
	if s.agg.rescans != 0 {
		t.Fatalf("holder improving must not rescan, got %d", s.agg.rescans)
	}

	// holder falling back
	pts[3].SetElevation(models.Float(10))
	if s.agg.rescans != 1 {
		t.Fatalf("holder losing the extreme must rescan once, got %d", s.agg.rescans)
	}
	assertFloatPtr(t, "highest", s.Metadata().HighestAltitude, models.Float(300))
	assertFloatPtr(t, "lowest", s.Metadata().LowestAltitude, models.Float(10))

	// removing a non holder
	s.RemoveAt(2)
	if s.agg.rescans != 1 {
		t.Fatalf("removing a non holder must not rescan, got %d", s.agg.rescans)
	}
	assertConsistent(t, s)
}

func TestInsertUpdatesNeighbors(t *testing.T) {
	s := NewSegment()
	s.Append(NewPoint(1, 1, models.Float(100), models.Int64(0)))
	s.Append(NewPoint(1, 1.002, models.Float(100), models.Int64(2000)))

	s.Insert(1, NewPoint(1.001, 1.001, models.Float(150), models.Int64(1000)))
	assertConsistent(t, s)
	if m := s.Metadata(); m.Ascent != 50 || m.Descent != 50 {
		t.Fatalf("ascent/descent = %f/%f, want 50/50", m.Ascent, m.Descent)
	}

	s.Insert(-1, NewPoint(1, 1.003, nil, nil))
	if s.Len() != 4 || s.Arrival().Ele() != nil {
		t.Fatalf("out of range insert must append")
	}
	assertConsistent(t, s)
}

func TestRemoveRange(t *testing.T) {
	s := NewSegment()
	for i := 0; i < 10; i++ {
		s.Append(NewPoint(1, 1+float64(i)*0.001, models.Float(float64(100+i*10)), models.Int64(int64(i*1000))))
	}
	removed := s.Points()[3:7]
	s.RemoveRange(3, 7)
	if s.Len() != 6 {
		t.Fatalf("len = %d, want 6", s.Len())
	}
	for _, p := range removed {
		if p.Segment() != nil {
			t.Fatalf("removed point still attached")
		}
	}
	assertConsistent(t, s)

	// edits on a detached point never reach the segment
	before := s.Metadata()
	removed[0].SetElevation(models.Float(5000))
	assertMetadata(t, s.Metadata(), before)
}

func TestAppendOwnedPointPanics(t *testing.T) {
	p := NewPoint(1, 1, nil, nil)
	NewSegment().Append(p)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic when appending an owned point")
		}
	}()
	NewSegment().Append(p)
}

func TestAppendManyOwnedPointChangesNothing(t *testing.T) {
	owned := NewPoint(1, 1, nil, nil)
	NewSegment().Append(owned)

	s := NewSegment().Append(NewPoint(1, 1, models.Float(10), nil))
	var calls int
	s.OnChange(func(Metadata) { calls++ })
	fresh := NewPoint(1, 1.001, models.Float(20), nil)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected panic when appending an owned point")
			}
		}()
		s.AppendMany(fresh, owned)
	}()
	if s.Len() != 1 || fresh.Segment() != nil || calls != 0 {
		t.Fatalf("failed append must leave the segment untouched: len %d, calls %d", s.Len(), calls)
	}
	if m := s.Metadata(); m.Ascent != 0 {
		t.Fatalf("ascent = %f, want 0", m.Ascent)
	}
}

func TestRemoveMany(t *testing.T) {
	s := NewSegment()
	elevations := []float64{100, 400, 150, 300, 120, 200}
	for i, e := range elevations {
		s.Append(NewPoint(1, 1+float64(i)*0.001, models.Float(e), models.Int64(int64(i*1000))))
	}
	pts := s.Points()
	other := NewPoint(2, 2, nil, nil)
	NewSegment().Append(other)

	var calls int
	s.OnChange(func(Metadata) { calls++ })
	rescans := s.agg.rescans
	s.RemoveMany(pts[1], pts[3], pts[1], other)

	if s.Len() != 4 || calls != 1 {
		t.Fatalf("len %d, calls %d, want 4 and 1", s.Len(), calls)
	}
	if s.agg.rescans != rescans+1 {
		t.Fatalf("rescans = %d, want %d", s.agg.rescans, rescans+1)
	}
	if pts[1].Segment() != nil || pts[3].Segment() != nil || other.Segment() == nil {
		t.Fatalf("wrong points detached")
	}
	assertFloatPtr(t, "highest", s.Metadata().HighestAltitude, models.Float(200))
	assertConsistent(t, s)

	s.RemoveMany(s.Points()...)
	if s.Len() != 0 || s.Metadata().Distance != 0 || s.Metadata().HighestAltitude != nil {
		t.Fatalf("segment not emptied: %+v", s.Metadata())
	}
}

func TestSegmentListeners(t *testing.T) {
	s := NewSegment()
	var calls int
	var last Metadata
	cancel := s.OnChange(func(m Metadata) {
		calls++
		last = m
	})

	s.AppendMany(NewPoint(1, 1, models.Float(10), nil), NewPoint(1, 1.001, models.Float(20), nil))
	if calls != 1 {
		t.Fatalf("bulk append should notify once, got %d", calls)
	}
	if last.Ascent != 10 {
		t.Fatalf("listener saw ascent %f, want 10", last.Ascent)
	}

	cancel()
	s.Append(NewPoint(1, 1.002, nil, nil))
	if calls != 1 {
		t.Fatalf("cancelled listener was called")
	}
}

func TestDistanceFromStartAndNearest(t *testing.T) {
	s := NewSegment()
	s.AppendMany(
		NewPoint(1, 1, nil, nil),
		NewPoint(1, 1.001, nil, models.Int64(100)),
		NewPoint(1, 1.002, nil, nil),
	)
	if got := s.DistanceFromStart(2); math.Abs(got-s.Metadata().Distance) > 1e-9 {
		t.Fatalf("DistanceFromStart(last) = %f, want %f", got, s.Metadata().Distance)
	}
	if got := s.DistanceFromStart(0); got != 0 {
		t.Fatalf("DistanceFromStart(0) = %f", got)
	}

	nearest := s.NearestPoint(1, 1.0021, nil)
	if nearest != s.At(2) {
		t.Fatalf("nearest point should be the last one")
	}
	timed := s.NearestPoint(1, 1.0021, func(p *Point) bool { return p.Time() != nil })
	if timed != s.At(1) {
		t.Fatalf("nearest timed point should be the second one")
	}
}

func randomPoint(r *rand.Rand) *Point {
	p := NewPoint(45+r.Float64()*0.01, 6+r.Float64()*0.01, nil, nil)
	if r.Intn(5) > 0 {
		p.ele = optFloat{v: 200 + r.Float64()*800, ok: true}
	}
	if r.Intn(5) > 0 {
		p.time = optTime{v: int64(r.Intn(1000000)), ok: true}
	}
	return p
}

func mutate(r *rand.Rand, s *Segment) {
	n := s.Len()
	switch op := r.Intn(10); {
	case op == 0 || n == 0:
		s.Append(randomPoint(r))
	case op == 1:
		s.AppendMany(randomPoint(r), randomPoint(r), randomPoint(r))
	case op == 2:
		s.Insert(r.Intn(n), randomPoint(r))
	case op == 3:
		s.RemoveAt(r.Intn(n))
	case op == 4:
		from := r.Intn(n)
		s.RemoveRange(from, from+r.Intn(n-from+1))
	case op == 5:
		p := s.At(r.Intn(n))
		if r.Intn(4) == 0 {
			p.SetElevation(nil)
		} else {
			p.SetElevation(models.Float(r.Float64() * 1500))
		}
	case op == 6:
		p := s.At(r.Intn(n))
		if r.Intn(4) == 0 {
			p.SetTime(nil)
		} else {
			p.SetTime(models.Int64(int64(r.Intn(1000000))))
		}
	case op == 7:
		p := s.At(r.Intn(n))
		p.SetPosition(45+r.Float64()*0.01, 6+r.Float64()*0.01)
	case op == 8:
		s.RemoveMany(s.At(r.Intn(n)), s.At(r.Intn(n)))
	default:
		s.Remove(s.At(r.Intn(n)))
	}
}

func TestIncrementalMatchesFromScratch(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	s := NewSegment()
	for i := 0; i < 3000; i++ {
		mutate(r, s)
		assertConsistent(t, s)
	}
}

func TestComputeMetadataClampsDuration(t *testing.T) {
	samples := []models.Sample{
		{Lat: 1, Lng: 1, Time: models.Int64(5000)},
		{Lat: 1, Lng: 1, Time: models.Int64(1000)},
	}
	if m := ComputeMetadata(samples); m.Duration != 0 {
		t.Fatalf("negative duration must read as 0, got %d", m.Duration)
	}

	s := NewSegment()
	s.AppendMany(FromSamples(samples)...)
	if m := s.Metadata(); m.Duration != 0 {
		t.Fatalf("segment duration = %d, want 0", m.Duration)
	}
	s.Append(NewPoint(1, 1, nil, models.Int64(9000)))
	if m := s.Metadata(); m.Duration != 4000 {
		t.Fatalf("segment duration = %d, want 4000", m.Duration)
	}
}
