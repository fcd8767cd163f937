package imagery

import "satimage-server/earthengine"

// PositiveMask keeps pixels whose value in Band is strictly positive.
type PositiveMask struct {
	Band string
}

func (m PositiveMask) Keeps(v float64) bool {
	return v > 0
}

// Apply masks image by its own Band.
func (m PositiveMask) Apply(image *earthengine.ValueNode) *earthengine.ValueNode {
	mask := earthengine.GreaterThan(
		earthengine.SelectBands(image, []string{m.Band}),
		earthengine.ConstantImage(0),
	)
	return earthengine.UpdateMask(image, mask)
}
