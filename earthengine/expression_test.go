package earthengine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	. "github.com/smartystreets/goconvey/convey"
)

func ctx() context.Context { return context.Background() }

func TestGraph(t *testing.T) {
	Convey("Given a graph with a shared sub-expression", t, func() {
		g := NewGraph()
		img := g.Bind(SelectBands(LoadImage("S2/a"), []string{"B4", "B3", "B2"}))
		mask := GreaterThan(SelectBands(img, []string{"B4"}), ConstantImage(0))
		expr := g.Expression(UpdateMask(img, mask))

		Convey("The shared node is stored once and referenced", func() {
			So(len(expr.Values), ShouldEqual, 2)
			So(expr.Result, ShouldEqual, "1")
			out := expr.Values["1"].FunctionInvocationValue
			So(out.FunctionName, ShouldEqual, "Image.updateMask")
			So(out.Arguments["image"].ValueReference, ShouldEqual, "0")
			sel := out.Arguments["mask"].FunctionInvocationValue.Arguments["image1"].FunctionInvocationValue
			So(sel.Arguments["input"].ValueReference, ShouldEqual, "0")
		})

		Convey("A zero constant survives serialization", func() {
			data, err := json.Marshal(ConstantImage(0))
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, `{"functionInvocationValue":{"functionName":"Image.constant","arguments":{"value":{"constantValue":0}}}}`)
		})

		Convey("Binding a reference is a no-op", func() {
			So(g.Bind(img), ShouldEqual, img)
		})
	})

	Convey("PolygonGeometry carries the ring coordinates", t, func() {
		p := orb.Polygon{orb.Ring{{0, 0}, {1, 0}, {1, 1}}}
		data, err := json.Marshal(PolygonGeometry(p))
		So(err, ShouldBeNil)
		So(string(data), ShouldContainSubstring, `"coordinates":{"constantValue":[[[0,0],[1,0],[1,1]]]}`)
		So(string(data), ShouldContainSubstring, `"GeometryConstructors.Polygon"`)
	})

	Convey("ClipToBoundsAndScale sets the scale", t, func() {
		n := ClipToBoundsAndScale(LoadImage("x"), PolygonGeometry(orb.Polygon{}), 20)
		So(n.FunctionInvocationValue.Arguments["scale"].ConstantValue, ShouldEqual, 20.0)
	})
}
