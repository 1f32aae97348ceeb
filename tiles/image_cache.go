package tiles

import (
	"image"

	"github.com/olablt/gio-trackmap/metrics"
)

type ImageCache struct {
	cache map[Key]image.Image
}

func NewImageCache() *ImageCache {
	return &ImageCache{
		cache: make(map[Key]image.Image),
	}
}

func (c *ImageCache) Get(key Key) (image.Image, bool) {
	img, ok := c.cache[key]
	return img, ok
}

func (c *ImageCache) Set(key Key, img image.Image) {
	c.cache[key] = img
	metrics.CachedTiles.Set(float64(len(c.cache)))
}

func (c *ImageCache) Delete(key Key) {
	delete(c.cache, key)
	metrics.CachedTiles.Set(float64(len(c.cache)))
}

func (c *ImageCache) Keys() []Key {
	keys := make([]Key, 0, len(c.cache))
	for k := range c.cache {
		keys = append(keys, k)
	}
	return keys
}

func (c *ImageCache) Len() int {
	return len(c.cache)
}

func (c *ImageCache) Clear() {
	c.cache = make(map[Key]image.Image)
	metrics.CachedTiles.Set(0)
}
