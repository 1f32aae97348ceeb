package tiles

import (
	"image"
	"testing"
)

func TestEvictOutside(t *testing.T) {
	c := NewImageCache()
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	keep := NewKey(LayerMap, Tile{Zoom: 10, Row: 5, Col: 5})
	drop := []Key{
		NewKey(LayerMap, Tile{Zoom: 10, Row: 9, Col: 5}),
		NewKey(LayerMap, Tile{Zoom: 11, Row: 5, Col: 5}),
		NewKey(LayerSatellite, Tile{Zoom: 10, Row: 5, Col: 5}),
	}
	c.Set(keep, img)
	for _, k := range drop {
		c.Set(k, img)
	}

	n := EvictOutside(c, LayerMap, 10, Window{RowMin: 4, RowMax: 6, ColMin: 4, ColMax: 6})
	if n != len(drop) {
		t.Fatalf("evicted %d entries, want %d", n, len(drop))
	}
	if _, ok := c.Get(keep); !ok {
		t.Fatal("tile inside the window was evicted")
	}
	for _, k := range drop {
		if _, ok := c.Get(k); ok {
			t.Errorf("%s still cached", k)
		}
	}
}
