package imagery

import "satimage-server/earthengine"

// Family is a sensor family with its own visible-light band names.
type Family int

const (
	// FamilyStandard covers sensors whose RGB bands are B4, B3, B2
	// (Sentinel-2, Landsat TOA).
	FamilyStandard Family = iota
	// FamilySurfaceReflectance covers Landsat surface reflectance products.
	FamilySurfaceReflectance
)

func (f Family) String() string {
	switch f {
	case FamilySurfaceReflectance:
		return "surface-reflectance"
	default:
		return "standard"
	}
}

// Bands returns the red, green and blue band ids.
func (f Family) Bands() []string {
	switch f {
	case FamilySurfaceReflectance:
		return []string{"SR_B4", "SR_B3", "SR_B2"}
	default:
		return []string{"B4", "B3", "B2"}
	}
}

// Identifier is the band whose presence marks an image as this family.
func (f Family) Identifier() string {
	return f.Bands()[0]
}

// FamilyOf picks surface reflectance if the image exposes its identifying
// band and the standard family otherwise.
func FamilyOf(img *earthengine.Image) Family {
	if img.HasBand(FamilySurfaceReflectance.Identifier()) {
		return FamilySurfaceReflectance
	}
	return FamilyStandard
}
