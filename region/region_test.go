package region

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	. "github.com/smartystreets/goconvey/convey"
)

func raw(pairs ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(pairs))
	for i, p := range pairs {
		out[i] = json.RawMessage(p)
	}
	return out
}

func TestBuildPoint(t *testing.T) {
	Convey("Given a single coordinate", t, func() {
		center := orb.Point{10, 45}

		Convey("A 5km buffer bounds a 5km circle around the point", func() {
			r, err := Build(raw("[10.0, 45.0]"), 5)
			So(err, ShouldBeNil)

			b := r.Bound()
			So(b.Center()[0], ShouldAlmostEqual, 10, 1e-9)
			So(b.Center()[1], ShouldAlmostEqual, 45, 1e-6)
			So(b, ShouldResemble, geo.NewBoundAroundPoint(center, 5000))

			// Half the north/south extent is the buffer radius.
			north := orb.Point{10, b.Max[1]}
			So(geo.Distance(center, north), ShouldAlmostEqual, 5000, 1)
			east := orb.Point{b.Max[0], 45}
			So(geo.Distance(center, east), ShouldAlmostEqual, 5000, 1)

			_, ok := r.Geometry().(orb.Polygon)
			So(ok, ShouldBeTrue)
		})

		Convey("A zero buffer degenerates to the point's bound", func() {
			r, err := Build(raw("[10.0, 45.0]"), 0)
			So(err, ShouldBeNil)
			So(r.Bound(), ShouldResemble, center.Bound())
			So(r.Bound().Min, ShouldResemble, center)
			So(r.Bound().Max, ShouldResemble, center)
		})

		Convey("A negative buffer is rejected", func() {
			_, err := Build(raw("[10.0, 45.0]"), -1)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestBuildPolygon(t *testing.T) {
	Convey("Given two or more coordinates", t, func() {
		r, err := Build(raw("[10.0,45.0]", "[10.1,45.0]", "[10.1,45.1]", "[10.0,45.1]"), 5)
		So(err, ShouldBeNil)

		Convey("The ring is passed through unmodified", func() {
			So(r.Polygon(), ShouldResemble, orb.Polygon{orb.Ring{
				{10.0, 45.0}, {10.1, 45.0}, {10.1, 45.1}, {10.0, 45.1},
			}})
			So(r.Polygon()[0].Closed(), ShouldBeFalse)
		})

		Convey("The buffer is ignored", func() {
			So(r.Bound(), ShouldResemble, orb.Bound{Min: orb.Point{10.0, 45.0}, Max: orb.Point{10.1, 45.1}})
		})

		Convey("It encodes as a GeoJSON polygon", func() {
			data, err := r.GeoJSON()
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, `{"type":"Polygon","coordinates":[[[10,45],[10.1,45],[10.1,45.1],[10,45.1]]]}`)
		})
	})
}

func TestBuildMalformed(t *testing.T) {
	Convey("Given malformed coordinates", t, func() {
		Convey("An empty list fails", func() {
			_, err := Build(nil, 5)
			So(errors.Is(err, ErrNoCoordinates), ShouldBeTrue)
		})

		Convey("A pair with one value fails", func() {
			_, err := Build(raw("[10.0]"), 5)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "coordinate 0")
		})

		Convey("A non-numeric pair fails", func() {
			_, err := Build(raw(`[10.0,45.0]`, `["a","b"]`), 5)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "coordinate 1")
		})
	})
}

func TestCoverage(t *testing.T) {
	Convey("Given a unit square region", t, func() {
		r := Polygon([]orb.Point{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}})

		Convey("A footprint containing it covers it fully", func() {
			fp := orb.Bound{Min: orb.Point{-1, -1}, Max: orb.Point{2, 2}}.ToPolygon()
			So(r.Coverage(fp), ShouldAlmostEqual, 1, 1e-9)
		})

		Convey("A footprint over the left half covers half", func() {
			fp := orb.Bound{Min: orb.Point{-1, -1}, Max: orb.Point{0.5, 2}}.ToPolygon()
			So(r.Coverage(fp), ShouldAlmostEqual, 0.5, 1e-9)
		})

		Convey("A missing footprint covers nothing", func() {
			So(r.Coverage(nil), ShouldEqual, 0)
		})
	})
}
