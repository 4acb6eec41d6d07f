package api

import (
	"context"
	"net/http"
	"sync"
)

// ImageCache holds downloaded image bytes for the lifetime of the process,
// keyed by absolute URL. It never evicts.
type ImageCache struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewImageCache creates an empty cache.
func NewImageCache() *ImageCache {
	return &ImageCache{items: make(map[string][]byte)}
}

// Get returns cached bytes for url.
func (ic *ImageCache) Get(url string) ([]byte, bool) {
	ic.mu.RLock()
	defer ic.mu.RUnlock()
	data, ok := ic.items[url]
	return data, ok
}

// Put stores bytes for url.
func (ic *ImageCache) Put(url string, data []byte) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	ic.items[url] = data
}

// Len returns the number of cached images.
func (ic *ImageCache) Len() int {
	ic.mu.RLock()
	defer ic.mu.RUnlock()
	return len(ic.items)
}

// FetchImage downloads an image with the session cookies, serving repeats
// from the cache. Relative URLs are resolved against the base URL.
func (c *Client) FetchImage(ctx context.Context, rawURL string) ([]byte, error) {
	u := c.ResolveURL(rawURL)
	if data, ok := c.images.Get(u); ok {
		return data, nil
	}

	status, data, err := c.do(ctx, MetadataTimeout, http.MethodGet, u, nil, "")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, newError(status, data)
	}

	c.images.Put(u, data)
	return data, nil
}

// Download fetches an arbitrary file (an attachment) with the session.
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, error) {
	status, data, err := c.do(ctx, SendTimeout, http.MethodGet, c.ResolveURL(rawURL), nil, "")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, newError(status, data)
	}
	return data, nil
}
