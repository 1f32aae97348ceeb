package tiles

import (
	"image"
)

// Cache holds decoded tiles in memory. Implementations are owned by the
// interactive goroutine and need not be safe for concurrent use.
type Cache interface {
	Get(key Key) (image.Image, bool)
	Set(key Key, img image.Image)
	Delete(key Key)
	Keys() []Key
	Len() int
	Clear()
}

// EvictOutside removes every entry of another layer or zoom, or lying outside w.
// It returns the number of removed entries.
func EvictOutside(c Cache, layer Layer, zoom int, w Window) int {
	n := 0
	for _, k := range c.Keys() {
		if k.Layer != layer || k.Zoom != zoom || !w.Contains(k.Row, k.Col) {
			c.Delete(k)
			n++
		}
	}
	return n
}
