// Package region builds the area of interest a catalog search is restricted to.
package region

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

var ErrNoCoordinates = errors.New("no coordinates provided")

// Region is either the bounding rectangle of a buffered point or a polygon
// taken verbatim from the request.
type Region struct {
	geometry orb.Geometry
	bound    orb.Bound
}

// Build interprets raw coordinate pairs. A single pair is buffered by
// bufferKM kilometers and bounded; two or more pairs form a polygon ring that
// is passed through unmodified (no closure or winding checks).
func Build(coordinates []json.RawMessage, bufferKM int) (*Region, error) {
	if len(coordinates) == 0 {
		return nil, ErrNoCoordinates
	}
	points := make([]orb.Point, len(coordinates))
	for i, raw := range coordinates {
		p, err := parsePoint(raw)
		if err != nil {
			return nil, fmt.Errorf("coordinate %d: %w", i, err)
		}
		points[i] = p
	}
	if len(points) == 1 {
		return Buffered(points[0], bufferKM)
	}
	return Polygon(points), nil
}

// Buffered returns the bounding rectangle of a circle of bufferKM*1000 meters
// around p. A zero radius degenerates to the point's own bound.
func Buffered(p orb.Point, bufferKM int) (*Region, error) {
	if bufferKM < 0 {
		return nil, fmt.Errorf("buffer_km must not be negative, got %d", bufferKM)
	}
	b := p.Bound()
	if bufferKM > 0 {
		b = geo.NewBoundAroundPoint(p, float64(bufferKM)*1000)
	}
	return &Region{geometry: b.ToPolygon(), bound: b}, nil
}

// Polygon returns a region whose single ring is exactly points.
func Polygon(points []orb.Point) *Region {
	ring := orb.Ring(points)
	return &Region{geometry: orb.Polygon{ring}, bound: ring.Bound()}
}

func parsePoint(raw json.RawMessage) (orb.Point, error) {
	var pair []float64
	if err := json.Unmarshal(raw, &pair); err != nil {
		return orb.Point{}, fmt.Errorf("expected [lon, lat], got %s", string(raw))
	}
	if len(pair) != 2 {
		return orb.Point{}, fmt.Errorf("expected [lon, lat], got %d values", len(pair))
	}
	for _, v := range pair {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return orb.Point{}, fmt.Errorf("non-finite coordinate %v", v)
		}
	}
	return orb.Point{pair[0], pair[1]}, nil
}

func (r *Region) Geometry() orb.Geometry { return r.geometry }

func (r *Region) Bound() orb.Bound { return r.bound }

// Polygon returns the region as a polygon.
func (r *Region) Polygon() orb.Polygon {
	return r.geometry.(orb.Polygon)
}

// GeoJSON encodes the region geometry as a GeoJSON geometry object.
func (r *Region) GeoJSON() ([]byte, error) {
	return json.Marshal(geojson.NewGeometry(r.geometry))
}

// Coverage returns the fraction of the region's bound covered by footprint.
func (r *Region) Coverage(footprint orb.Geometry) float64 {
	area := planar.Area(r.bound)
	if area == 0 || footprint == nil {
		return 0
	}
	var covered float64
	switch g := footprint.(type) {
	case orb.Polygon:
		covered = planar.Area(clip.Polygon(r.bound, g.Clone()))
	case orb.MultiPolygon:
		covered = planar.Area(clip.MultiPolygon(r.bound, g.Clone()))
	default:
		return 0
	}
	return math.Min(math.Abs(covered/area), 1)
}
