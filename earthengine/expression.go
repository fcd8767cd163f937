package earthengine

import (
	"strconv"

	"github.com/paulmach/orb"
)

// Graph accumulates named expression values so a sub-expression used twice
// is serialized once and referenced.
type Graph struct {
	values map[string]*ValueNode
}

func NewGraph() *Graph {
	return &Graph{values: make(map[string]*ValueNode)}
}

// Bind stores n in the graph and returns a reference to it.
func (g *Graph) Bind(n *ValueNode) *ValueNode {
	if n.ValueReference != "" {
		return n
	}
	key := strconv.Itoa(len(g.values))
	g.values[key] = n
	return &ValueNode{ValueReference: key}
}

// Expression finalizes the graph with result as its output.
func (g *Graph) Expression(result *ValueNode) *Expression {
	ref := g.Bind(result)
	return &Expression{Values: g.values, Result: ref.ValueReference}
}

func Constant(v interface{}) *ValueNode {
	return &ValueNode{ConstantValue: v}
}

func Invoke(function string, args map[string]*ValueNode) *ValueNode {
	return &ValueNode{FunctionInvocationValue: &FunctionInvocation{
		FunctionName: function,
		Arguments:    args,
	}}
}

func LoadImage(id string) *ValueNode {
	return Invoke("Image.load", map[string]*ValueNode{"id": Constant(id)})
}

func SelectBands(image *ValueNode, bands []string) *ValueNode {
	return Invoke("Image.select", map[string]*ValueNode{
		"input":         image,
		"bandSelectors": Constant(bands),
	})
}

func ConstantImage(v float64) *ValueNode {
	return Invoke("Image.constant", map[string]*ValueNode{"value": Constant(v)})
}

func GreaterThan(image1, image2 *ValueNode) *ValueNode {
	return Invoke("Image.gt", map[string]*ValueNode{"image1": image1, "image2": image2})
}

func UpdateMask(image, mask *ValueNode) *ValueNode {
	return Invoke("Image.updateMask", map[string]*ValueNode{"image": image, "mask": mask})
}

func PolygonGeometry(p orb.Polygon) *ValueNode {
	return Invoke("GeometryConstructors.Polygon", map[string]*ValueNode{
		"coordinates": Constant(p),
		"evenOdd":     Constant(true),
	})
}

// ClipToBoundsAndScale clips image to geometry and resamples it to scale
// units per pixel, as getThumbURL does for a region plus scale.
func ClipToBoundsAndScale(image, geometry *ValueNode, scale float64) *ValueNode {
	return Invoke("Image.clipToBoundsAndScale", map[string]*ValueNode{
		"input":    image,
		"geometry": geometry,
		"scale":    Constant(scale),
	})
}
