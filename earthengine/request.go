package earthengine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ListImages returns every image of the query's collection that matches its
// region, date window and cloud filter, following pagination to the end.
func (c *Client) ListImages(ctx context.Context, q Query) ([]*Image, error) {
	var images []*Image
	token := ""
	for page := 0; ; page++ {
		v, err := q.values(token)
		if err != nil {
			return nil, err
		}
		resp := &listImagesResponse{}
		if err := c.getJSON(ctx, c.url(q.Parent()+":listImages?"+v.Encode()), resp); err != nil {
			return nil, fmt.Errorf("listImages %s: %w", q.Collection, err)
		}
		images = append(images, resp.Images...)
		log.Debugf("listImages %s page %d: %d images", q.Collection, page, len(resp.Images))
		if resp.NextPageToken == "" {
			return images, nil
		}
		token = resp.NextPageToken
	}
}

// CreateThumbnail registers a thumbnail rendering and returns its pixel URL.
func (c *Client) CreateThumbnail(ctx context.Context, t *Thumbnail) (string, error) {
	out := &Thumbnail{}
	if err := c.postJSON(ctx, c.url("projects/"+c.Session.Project+"/thumbnails"), t, out); err != nil {
		return "", fmt.Errorf("create thumbnail: %w", err)
	}
	if out.Name == "" {
		return "", fmt.Errorf("create thumbnail: empty thumbnail name in reply")
	}
	return c.url(out.Name + ":getPixels"), nil
}

// ThumbnailID extracts the trailing id of a thumbnail resource name or URL.
func ThumbnailID(nameOrURL string) string {
	s := strings.TrimSuffix(nameOrURL, ":getPixels")
	if i := strings.LastIndex(s, "/thumbnails/"); i >= 0 {
		return s[i+len("/thumbnails/"):]
	}
	return ""
}

// FetchThumbnail streams the rendered pixels of a thumbnail to w.
func (c *Client) FetchThumbnail(ctx context.Context, id string, w io.Writer) error {
	res, err := c.do(ctx, http.MethodGet, c.url("projects/"+c.Session.Project+"/thumbnails/"+id+":getPixels"), nil)
	if err != nil {
		return fmt.Errorf("fetch thumbnail %s: %w", id, err)
	}
	defer res.Body.Close()
	if _, err := io.Copy(w, res.Body); err != nil {
		return fmt.Errorf("fetch thumbnail %s: %w", id, err)
	}
	return nil
}
