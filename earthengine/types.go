package earthengine

import (
	"fmt"
	"net/http"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const (
	PublicAssetsParent = "projects/earthengine-public/assets"
	FormatPNG          = "PNG"
)

type Band struct {
	ID string `json:"id"`
}

// Image is one catalog entry as returned by listImages. StartTime and Geometry
// are not deep copied by copier and must be carried over by hand.
type Image struct {
	Type       string                 `json:"type"`
	Name       string                 `json:"name"`
	ID         string                 `json:"id"`
	StartTime  time.Time              `json:"startTime" copier:"-"`
	Bands      []*Band                `json:"bands"`
	Properties map[string]interface{} `json:"properties"`
	Geometry   *geojson.Geometry      `json:"geometry" copier:"-"`
}

// HasBand reports whether the image exposes a band with the given id.
func (i *Image) HasBand(id string) bool {
	for _, b := range i.Bands {
		if b.ID == id {
			return true
		}
	}
	return false
}

// CloudCover reads a numeric cloud-cover property.
func (i *Image) CloudCover(property string) (float64, bool) {
	v, ok := i.Properties[property]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// Footprint returns the image geometry, or nil if none was reported.
func (i *Image) Footprint() orb.Geometry {
	if i.Geometry == nil {
		return nil
	}
	return i.Geometry.Geometry()
}

type listImagesResponse struct {
	Images        []*Image `json:"images"`
	NextPageToken string   `json:"nextPageToken"`
}

// ValueNode is a node of a serialized Earth Engine expression.
type ValueNode struct {
	ConstantValue           interface{}         `json:"constantValue,omitempty"`
	FunctionInvocationValue *FunctionInvocation `json:"functionInvocationValue,omitempty"`
	ValueReference          string              `json:"valueReference,omitempty"`
}

type FunctionInvocation struct {
	FunctionName string                `json:"functionName"`
	Arguments    map[string]*ValueNode `json:"arguments"`
}

type Expression struct {
	Values map[string]*ValueNode `json:"values"`
	Result string                `json:"result"`
}

type Thumbnail struct {
	Name       string      `json:"name,omitempty"`
	Expression *Expression `json:"expression,omitempty"`
	FileFormat string      `json:"fileFormat,omitempty"`
	BandIDs    []string    `json:"bandIds,omitempty"`
}

type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// APIError is a non-2xx reply from Earth Engine.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("earth engine %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("earth engine %d: %s", e.Status, e.Message)
}
