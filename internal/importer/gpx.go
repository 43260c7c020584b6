// Package importer reads trail files into raw sanitized point lists
package importer

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/tkrajina/gpxgo/gpx"

	"github.com/jengzang/trails-backend-go/internal/models"
	"github.com/jengzang/trails-backend-go/internal/sanitize"
)

// ErrNotGPX is returned for input that holds no track or route
var ErrNotGPX = errors.New("not a gpx trail")

// Trail is the content of one imported file
type Trail struct {
	Name        string
	Description string
	// one point list per track segment or route, in file order
	Segments  [][]models.Sample
	WayPoints []models.WayPoint
	Report    sanitize.Report
}

// ParseGPX parses GPX bytes. Every track segment and every route becomes one
// point list, sanitized before it is returned. Way points are read from the
// track extensions, or from the top level wpt elements when the tracks carry
// none.
func ParseGPX(data []byte) (*Trail, error) {
	doc, err := gpx.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotGPX, err)
	}
	if len(doc.Tracks) == 0 && len(doc.Routes) == 0 {
		return nil, ErrNotGPX
	}

	trail := &Trail{Name: doc.Name, Description: doc.Description}
	for _, trk := range doc.Tracks {
		trail.fillNames(trk.Name, trk.Description)
		for _, seg := range trk.Segments {
			trail.add(seg.Points)
		}
		for _, n := range trk.Extensions.Nodes {
			if n.XMLName.Local == "wpt" {
				if wp, ok := extensionWayPoint(n); ok {
					trail.WayPoints = append(trail.WayPoints, wp)
				}
			}
		}
	}
	for _, rte := range doc.Routes {
		trail.fillNames(rte.Name, rte.Description)
		trail.add(rte.Points)
	}
	if len(trail.WayPoints) == 0 {
		for _, p := range doc.Waypoints {
			trail.WayPoints = append(trail.WayPoints, models.WayPoint{
				Sample:      toSample(p),
				Name:        p.Name,
				Description: p.Description,
			})
		}
	}

	if trail.Report.Changed() {
		log.Printf("gpx import %q: dropped %d times and %d elevations",
			trail.Name, trail.Report.TimesDropped, trail.Report.ElevationsDropped)
	}
	return trail, nil
}

func (t *Trail) fillNames(name, description string) {
	if t.Name == "" {
		t.Name = name
	}
	if t.Description == "" {
		t.Description = description
	}
}

func (t *Trail) add(points []gpx.GPXPoint) {
	samples := make([]models.Sample, len(points))
	for i, p := range points {
		samples[i] = toSample(p)
	}
	r := sanitize.Points(samples)
	t.Report.TimesDropped += r.TimesDropped
	t.Report.ElevationsDropped += r.ElevationsDropped
	t.Segments = append(t.Segments, samples)
}

func toSample(p gpx.GPXPoint) models.Sample {
	s := models.Sample{Lat: p.Latitude, Lng: p.Longitude}
	if p.Elevation.NotNull() {
		s.Ele = models.Float(p.Elevation.Value())
	}
	if !p.Timestamp.IsZero() {
		s.Time = models.Int64(p.Timestamp.UnixMilli())
	}
	if p.HorizontalDilution.NotNull() {
		s.PosAccuracy = models.Float(p.HorizontalDilution.Value())
	}
	if p.VerticalDilution.NotNull() {
		s.EleAccuracy = models.Float(p.VerticalDilution.Value())
	}
	for _, n := range p.Extensions.Nodes {
		switch n.XMLName.Local {
		case "heading":
			s.Heading = parseFloat(n.Data)
		case "speed":
			s.Speed = parseFloat(n.Data)
		}
	}
	return s
}

// extensionWayPoint reads a wpt element nested in track extensions, which
// the gpx parser keeps as raw nodes
func extensionWayPoint(n gpx.ExtensionNode) (models.WayPoint, bool) {
	var (
		wp             models.WayPoint
		hasLat, hasLng bool
	)
	for _, a := range n.Attrs {
		v := parseFloat(a.Value)
		switch {
		case v == nil:
		case a.Name.Local == "lat":
			wp.Lat, hasLat = *v, true
		case a.Name.Local == "lon":
			wp.Lng, hasLng = *v, true
		}
	}
	if !hasLat || !hasLng {
		return wp, false
	}
	for _, c := range n.Nodes {
		data := strings.TrimSpace(c.Data)
		switch c.XMLName.Local {
		case "ele":
			wp.Ele = parseFloat(data)
		case "time":
			if t, err := time.Parse(time.RFC3339, data); err == nil {
				wp.Time = models.Int64(t.UnixMilli())
			}
		case "name":
			wp.Name = data
		case "desc":
			wp.Description = data
		}
	}
	return wp, true
}

func parseFloat(s string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return models.Float(v)
}
