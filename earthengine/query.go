package earthengine

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const pageSize = 500

// Query restricts a collection to a region, a date window and a maximum
// cloud cover.
type Query struct {
	Collection      string            `json:"collection"`
	CloudProperty   string            `json:"cloud_property"`
	MaxCloudPercent float64           `json:"max_cloud_percent"`
	Start           time.Time         `json:"start"`
	End             time.Time         `json:"end"`
	Region          *geojson.Geometry `json:"region"`
}

func NewQuery(collection, cloudProperty string, maxCloud float64, start, end time.Time, region orb.Geometry) Query {
	return Query{
		Collection:      collection,
		CloudProperty:   cloudProperty,
		MaxCloudPercent: maxCloud,
		Start:           start,
		End:             end,
		Region:          geojson.NewGeometry(region),
	}
}

// Filter renders the cloud threshold in listImages filter syntax.
func (q Query) Filter() string {
	return fmt.Sprintf("%s < %s", q.CloudProperty, strconv.FormatFloat(q.MaxCloudPercent, 'f', -1, 64))
}

// Parent is the asset path images are listed under.
func (q Query) Parent() string {
	return PublicAssetsParent + "/" + q.Collection
}

func (q Query) values(pageToken string) (url.Values, error) {
	v := make(url.Values)
	v.Set("startTime", q.Start.UTC().Format(time.RFC3339))
	v.Set("endTime", q.End.UTC().Format(time.RFC3339))
	v.Set("filter", q.Filter())
	v.Set("view", "FULL")
	v.Set("pageSize", strconv.Itoa(pageSize))
	if q.Region != nil {
		region, err := q.Region.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("encode region: %w", err)
		}
		v.Set("region", string(region))
	}
	if pageToken != "" {
		v.Set("pageToken", pageToken)
	}
	return v, nil
}
