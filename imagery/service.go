package imagery

import (
	"context"
	"encoding/json"
	"errors"

	"satimage-server/earthengine"
	"satimage-server/region"

	log "github.com/sirupsen/logrus"
)

// GeometryError reports coordinates that do not form a region.
type GeometryError struct {
	Err error
}

func (e *GeometryError) Error() string { return "invalid geometry: " + e.Err.Error() }

func (e *GeometryError) Unwrap() error { return e.Err }

// Service turns a region request into a thumbnail URL.
type Service struct {
	Selector *Selector
	Renderer Renderer
}

// Thumbnail selects the best image over the region described by coordinates
// and returns the URL of its masked RGB rendering.
func (s *Service) Thumbnail(ctx context.Context, coordinates []json.RawMessage, bufferKM int) (string, error) {
	url, err := s.thumbnail(ctx, coordinates, bufferKM)
	if err != nil {
		log.Errorf("Error generating image: %v", err)
		return "", err
	}
	log.Infof("Image URL: %s", url)
	return url, nil
}

func (s *Service) thumbnail(ctx context.Context, coordinates []json.RawMessage, bufferKM int) (string, error) {
	r, err := region.Build(coordinates, bufferKM)
	if err != nil {
		return "", &GeometryError{Err: err}
	}
	if log.IsLevelEnabled(log.DebugLevel) {
		if gj, err := r.GeoJSON(); err == nil {
			log.Debugf("Region: %s", gj)
		}
	}
	c, err := s.Selector.Select(ctx, r)
	if err != nil {
		return "", err
	}
	log.WithFields(log.Fields{
		"image":    c.Image.ID,
		"cloud":    c.CloudCover,
		"coverage": r.Coverage(c.Image.Footprint()),
		"family":   FamilyOf(c.Image).String(),
	}).Infof("Selected image from %s", c.Collection.ID)

	return s.Renderer.CreateThumbnail(ctx, Render(c, r, s.Selector.Policy.Scale))
}

// Render builds the thumbnail request for a candidate: the family's RGB bands,
// masked where the first band is not positive, clipped to the region at scale.
func Render(c *Candidate, r *region.Region, scale float64) *earthengine.Thumbnail {
	bands := FamilyOf(c.Image).Bands()
	g := earthengine.NewGraph()
	selected := g.Bind(earthengine.SelectBands(earthengine.LoadImage(c.Image.ID), bands))
	masked := PositiveMask{Band: bands[0]}.Apply(selected)
	clipped := earthengine.ClipToBoundsAndScale(masked, earthengine.PolygonGeometry(r.Polygon()), scale)
	return &earthengine.Thumbnail{
		Expression: g.Expression(clipped),
		FileFormat: earthengine.FormatPNG,
	}
}

// IsNotFound reports whether err means no image qualified.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNoImages)
}
