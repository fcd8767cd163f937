// Package imagery decides which catalog image answers a request and how it is
// rendered.
package imagery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"satimage-server/earthengine"
	"satimage-server/region"

	log "github.com/sirupsen/logrus"
)

var ErrNoImages = errors.New("No images found for this region.")

type Searcher interface {
	ListImages(ctx context.Context, q earthengine.Query) ([]*earthengine.Image, error)
}

type Renderer interface {
	CreateThumbnail(ctx context.Context, t *earthengine.Thumbnail) (string, error)
}

// Observer is notified of search outcomes.
type Observer interface {
	CatalogSearch(collection, outcome string)
	FallbackSearch()
}

const (
	OutcomeFound = "found"
	OutcomeEmpty = "empty"
	OutcomeError = "error"
)

type Collection struct {
	ID            string
	CloudProperty string
}

// Policy fixes the search window, the cloud threshold and the collections
// tried in order.
type Policy struct {
	Primary         Collection
	Fallback        Collection
	Start           time.Time
	End             time.Time
	MaxCloudPercent float64
	Scale           float64
}

func DefaultPolicy() Policy {
	return Policy{
		Primary:         Collection{ID: "COPERNICUS/S2_SR_HARMONIZED", CloudProperty: "CLOUDY_PIXEL_PERCENTAGE"},
		Fallback:        Collection{ID: "LANDSAT/LC09/C02/T1_TOA", CloudProperty: "CLOUD_COVER"},
		Start:           time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
		End:             time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		MaxCloudPercent: 20,
		Scale:           20,
	}
}

// Candidate is a selected image and the collection it came from.
type Candidate struct {
	Image      *earthengine.Image
	Collection Collection
	CloudCover float64
}

type Selector struct {
	Searcher Searcher
	Policy   Policy
	Observer Observer
}

// Select returns the least cloudy image of the primary collection, or of the
// fallback collection when the primary one has no qualifying image.
func (s *Selector) Select(ctx context.Context, r *region.Region) (*Candidate, error) {
	candidates, err := s.search(ctx, s.Policy.Primary, r)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		log.Infof("No %s image below %v%% cloud cover, trying %s", s.Policy.Primary.ID, s.Policy.MaxCloudPercent, s.Policy.Fallback.ID)
		if s.Observer != nil {
			s.Observer.FallbackSearch()
		}
		if candidates, err = s.search(ctx, s.Policy.Fallback, r); err != nil {
			return nil, err
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoImages
	}
	return candidates[0], nil
}

// search lists a collection and orders qualifying images by ascending cloud
// cover. Images without the cloud property never qualify.
func (s *Selector) search(ctx context.Context, c Collection, r *region.Region) ([]*Candidate, error) {
	q := earthengine.NewQuery(c.ID, c.CloudProperty, s.Policy.MaxCloudPercent, s.Policy.Start, s.Policy.End, r.Geometry())
	images, err := s.Searcher.ListImages(ctx, q)
	if err != nil {
		s.observe(c, OutcomeError)
		return nil, fmt.Errorf("search %s: %w", c.ID, err)
	}
	var out []*Candidate
	for _, img := range images {
		cc, ok := img.CloudCover(c.CloudProperty)
		if !ok || cc >= s.Policy.MaxCloudPercent {
			continue
		}
		out = append(out, &Candidate{Image: img, Collection: c, CloudCover: cc})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CloudCover < out[j].CloudCover
	})
	if len(out) == 0 {
		s.observe(c, OutcomeEmpty)
	} else {
		s.observe(c, OutcomeFound)
	}
	log.Debugf("%s: %d of %d images qualify", c.ID, len(out), len(images))
	return out, nil
}

func (s *Selector) observe(c Collection, outcome string) {
	if s.Observer != nil {
		s.Observer.CatalogSearch(c.ID, outcome)
	}
}
