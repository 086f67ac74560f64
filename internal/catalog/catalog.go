// Package catalog enumerates the game's item definitions from the public
// metadata API: GET {base}/{id}.json for id = 1, 2, ... until the first
// non-200 response.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// maxItems bounds enumeration against a server that never returns 404.
const maxItems = 10_000

// Item is one catalog entry. ID is assigned from the enumeration index.
type Item struct {
	ID          uint64 `json:"-"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// Fetcher talks to the metadata API.
type Fetcher struct {
	http *resty.Client
	log  *zap.Logger
}

func NewFetcher(baseURL string, log *zap.Logger) *Fetcher {
	if log == nil {
		log = zap.NewNop()
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetHeader("Accept", "application/json")
	return &Fetcher{http: c, log: log}
}

// FetchAll enumerates the catalog. Transport errors abort the enumeration;
// a non-200 status ends it.
func (f *Fetcher) FetchAll(ctx context.Context) ([]Item, error) {
	var items []Item
	for id := uint64(1); id <= maxItems; id++ {
		resp, err := f.http.R().SetContext(ctx).Get(fmt.Sprintf("/%d.json", id))
		if err != nil {
			return nil, fmt.Errorf("catalog item %d: %w", id, err)
		}
		if resp.StatusCode() != http.StatusOK {
			f.log.Debug("catalog enumeration ended", zap.Uint64("id", id), zap.Int("status", resp.StatusCode()))
			break
		}
		var it Item
		if err := json.Unmarshal(resp.Body(), &it); err != nil {
			return nil, fmt.Errorf("catalog item %d: decode: %w", id, err)
		}
		it.ID = id
		items = append(items, it)
	}
	f.log.Info("catalog loaded", zap.Int("items", len(items)))
	return items, nil
}

// Cache memoizes a successful enumeration for the life of the process.
type Cache struct {
	fetch func(context.Context) ([]Item, error)

	mu    sync.Mutex
	items []Item
	ok    bool
}

func NewCache(f *Fetcher) *Cache { return &Cache{fetch: f.FetchAll} }

// NewStaticCache serves a fixed catalog.
func NewStaticCache(items []Item) *Cache {
	return &Cache{items: items, ok: true}
}

func (c *Cache) Items(ctx context.Context) ([]Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ok {
		return c.items, nil
	}
	items, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.items, c.ok = items, true
	return items, nil
}
