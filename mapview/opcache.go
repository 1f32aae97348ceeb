package mapview

import (
	"image"

	"gioui.org/op/paint"

	"github.com/olablt/gio-trackmap/tiles"
)

// opCache keeps one uploaded paint.ImageOp per resident tile so images are
// not converted again every frame.
type opCache struct {
	ops map[tiles.Key]paint.ImageOp
}

func newOpCache() *opCache {
	return &opCache{ops: make(map[tiles.Key]paint.ImageOp)}
}

func (c *opCache) get(key tiles.Key, img image.Image) paint.ImageOp {
	if op, ok := c.ops[key]; ok {
		return op
	}
	op := paint.NewImageOp(img)
	c.ops[key] = op
	return op
}

// retain drops ops whose tile left the memory cache.
func (c *opCache) retain(cache tiles.Cache) {
	for k := range c.ops {
		if _, ok := cache.Get(k); !ok {
			delete(c.ops, k)
		}
	}
}
