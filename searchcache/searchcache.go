// Package searchcache keeps recent catalog searches so that repeated
// requests over the same region do not hit the catalog again.
package searchcache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"satimage-server/earthengine"

	"github.com/jinzhu/copier"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultHistory = 10 * time.Minute
	// DefaultTimeout bounds a shared upstream search.
	DefaultTimeout = 60 * time.Second
)

type Searcher interface {
	ListImages(ctx context.Context, q earthengine.Query) ([]*earthengine.Image, error)
}

type cachedSearch struct {
	Images []*earthengine.Image
	Added  time.Time
}

// Cache wraps a Searcher. Entries are keyed by the JSON encoding of the query
// and expire after History.
type Cache struct {
	Searcher Searcher
	History  time.Duration
	// Timeout bounds a shared search, which is detached from the caller that
	// started it. Zero means no limit.
	Timeout time.Duration

	now   func() time.Time
	group singleflight.Group

	mu    sync.Mutex
	cache map[string]*cachedSearch
}

func New(s Searcher, history time.Duration) *Cache {
	return &Cache{
		Searcher: s,
		History:  history,
		Timeout:  DefaultTimeout,
		now:      time.Now,
		cache:    make(map[string]*cachedSearch),
	}
}

func key(q earthengine.Query) (string, error) {
	j, err := json.Marshal(q)
	if err != nil {
		return "", err
	}
	return string(j), nil
}

func (c *Cache) get(k string) ([]*earthengine.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for ck, d := range c.cache {
		if c.now().Sub(d.Added) > c.History {
			delete(c.cache, ck)
		}
	}
	d, ok := c.cache[k]
	if !ok {
		return nil, false
	}
	return d.Images, true
}

func (c *Cache) put(k string, images []*earthengine.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[k] = &cachedSearch{Images: images, Added: c.now()}
	log.Debugf("Search cache has %d entries", len(c.cache))
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

// ListImages serves q from the cache when a fresh entry exists. Concurrent
// misses for the same query share one upstream search. Errors are not cached.
func (c *Cache) ListImages(ctx context.Context, q earthengine.Query) ([]*earthengine.Image, error) {
	if c.History <= 0 {
		return c.Searcher.ListImages(ctx, q)
	}
	k, err := key(q)
	if err != nil {
		return nil, err
	}
	if images, ok := c.get(k); ok {
		log.Debugf("Search cache hit for %s", q.Collection)
		return clone(images)
	}
	ch := c.group.DoChan(k, func() (interface{}, error) {
		sctx := context.WithoutCancel(ctx)
		if c.Timeout > 0 {
			var cancel context.CancelFunc
			sctx, cancel = context.WithTimeout(sctx, c.Timeout)
			defer cancel()
		}
		images, err := c.Searcher.ListImages(sctx, q)
		if err != nil {
			return nil, err
		}
		c.put(k, images)
		return images, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			log.Debugf("Shared in-flight search for %s", q.Collection)
		}
		return clone(res.Val.([]*earthengine.Image))
	}
}

func clone(images []*earthengine.Image) ([]*earthengine.Image, error) {
	var out []*earthengine.Image
	if err := copier.CopyWithOption(&out, &images, copier.Option{DeepCopy: true}); err != nil {
		return nil, err
	}
	for i, img := range images {
		out[i].StartTime = img.StartTime
		if img.Geometry != nil {
			out[i].Geometry = geojson.NewGeometry(orb.Clone(img.Geometry.Geometry()))
		}
	}
	return out, nil
}
