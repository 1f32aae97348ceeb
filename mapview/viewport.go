package mapview

import (
	"image"

	"github.com/olablt/gio-trackmap/tiles"
)

// State tells whether the viewport is deriving a new tile window.
type State int

const (
	Idle State = iota
	Recomputing
)

const (
	MinScale = 0.5
	MaxScale = 2.0

	// DefaultMargin is the number of extra tiles kept on each side of the window.
	DefaultMargin = 1
)

var defaultSize = image.Pt(3*tiles.TileSize, 3*tiles.TileSize)

// TileRequester receives the tile window to keep loaded.
type TileRequester interface {
	Request(req tiles.Request)
}

type Option func(*Viewport)

func WithZoomBounds(minZoom, maxZoom int) Option {
	return func(v *Viewport) { v.minZoom, v.maxZoom = minZoom, maxZoom }
}

func WithMargin(n int) Option {
	return func(v *Viewport) { v.margin = n }
}

func WithLayer(l tiles.Layer) Option {
	return func(v *Viewport) { v.layer = l }
}

// Viewport maps the world onto the screen. Map pixels are pixels of the
// current tile window frame; the screen shows them translated by
// Translation and scaled by Scale around Anchor:
//
//	screen = anchor + scale*(map + translation - anchor)
//
// It is owned by the UI goroutine.
type Viewport struct {
	center           tiles.LatLng
	zoom             int
	minZoom, maxZoom int
	scale            float64
	anchor           tiles.Pixel
	translation      tiles.Pixel
	size             image.Point
	margin           int
	layer            tiles.Layer

	window     tiles.Window
	centerTile tiles.Tile
	reqZoom    int
	reqLayer   tiles.Layer
	valid      bool
	state      State

	loader    TileRequester
	listeners []func(tiles.Frame)
}

// NewViewport creates a viewport centered on center. loader may be nil.
func NewViewport(center tiles.LatLng, zoom int, loader TileRequester, opts ...Option) *Viewport {
	v := &Viewport{
		minZoom: 2,
		maxZoom: 17,
		scale:   1,
		size:    defaultSize,
		margin:  DefaultMargin,
		loader:  loader,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.center = clampLatLng(center)
	v.zoom = max(v.minZoom, min(zoom, v.maxZoom))
	return v
}

// OnFrameChange registers fn to run whenever the tile window frame changes.
func (v *Viewport) OnFrameChange(fn func(tiles.Frame)) {
	v.listeners = append(v.listeners, fn)
}

func (v *Viewport) Center() tiles.LatLng     { return v.center }
func (v *Viewport) Zoom() int                { return v.zoom }
func (v *Viewport) Scale() float64           { return v.scale }
func (v *Viewport) Anchor() tiles.Pixel      { return v.anchor }
func (v *Viewport) Translation() tiles.Pixel { return v.translation }
func (v *Viewport) Size() image.Point        { return v.size }
func (v *Viewport) Layer() tiles.Layer       { return v.layer }
func (v *Viewport) State() State             { return v.state }
func (v *Viewport) Window() tiles.Window     { return v.window }
func (v *Viewport) CenterTile() tiles.Tile   { return v.centerTile }
func (v *Viewport) Frame() tiles.Frame       { return v.window.Frame(v.zoom) }

// Start computes the first window. Later changes recompute on their own.
func (v *Viewport) Start() {
	v.recompute()
}

// Recenter moves the center to ll at unit scale.
func (v *Viewport) Recenter(ll tiles.LatLng) {
	v.center = clampLatLng(ll)
	v.scale = 1
	v.recompute()
}

// Resize sets the component size in pixels. Empty sizes fall back to three
// tiles square.
func (v *Viewport) Resize(size image.Point) {
	if size.X <= 0 || size.Y <= 0 {
		size = defaultSize
	}
	if size == v.size && v.valid {
		return
	}
	v.size = size
	v.recompute()
}

// SetLayer switches imagery.
func (v *Viewport) SetLayer(l tiles.Layer) {
	if l == v.layer {
		return
	}
	v.layer = l
	v.recompute()
}

// SetZoom jumps to zoom at unit scale, keeping the center.
func (v *Viewport) SetZoom(zoom int) {
	v.zoom = max(v.minZoom, min(zoom, v.maxZoom))
	v.scale = 1
	v.recompute()
}

// Pan moves the map by a screen delta in pixels. The center stays inside
// the world; the part of the delta beyond its edge is dropped.
func (v *Viewport) Pan(dx, dy float64) {
	dim := tiles.TileDim(v.zoom)
	old := tiles.ClampProjected(tiles.Project(v.center))
	p := tiles.ClampProjected(tiles.Projected{
		X: old.X - dx/v.scale/tiles.TileSize*dim,
		Y: old.Y - dy/v.scale/tiles.TileSize*dim,
	})
	v.center = tiles.Unproject(p)

	if v.valid && tiles.TileAt(p, v.zoom) == v.centerTile {
		v.translation.X += (old.X - p.X) / dim * tiles.TileSize
		v.translation.Y += (old.Y - p.Y) / dim * tiles.TileSize
		return
	}
	v.recompute()
}

// ZoomAt changes the scale by delta keeping the point under cursor still.
// Crossing MaxScale or MinScale commits a zoom level change when the zoom
// bounds allow it.
func (v *Viewport) ZoomAt(cursor tiles.Pixel, delta float64) {
	if !v.valid {
		v.recompute()
	}
	if cursor != v.anchor {
		// move the anchor without moving the picture
		k := (1 - v.scale) / v.scale
		v.translation.X += (v.anchor.X - cursor.X) * k
		v.translation.Y += (v.anchor.Y - cursor.Y) * k
		v.anchor = cursor
	}
	v.scale = max(MinScale, min(v.scale+delta, MaxScale))

	mid := tiles.Pixel{X: float64(v.size.X) / 2, Y: float64(v.size.Y) / 2}
	raw := v.Frame().PixelToProjected(v.ScreenToMap(mid))
	p := tiles.ClampProjected(raw)
	v.center = tiles.Unproject(p)

	switch {
	case v.scale >= MaxScale && v.zoom < v.maxZoom:
		v.zoom++
		v.scale = 1
		v.recompute()
	case v.scale <= MinScale && v.zoom > v.minZoom:
		v.zoom--
		v.scale = 1
		v.recompute()
	case p != raw, tiles.TileAt(p, v.zoom) != v.centerTile:
		v.recompute()
	}
}

// ScreenToMap converts a screen position to map pixels.
func (v *Viewport) ScreenToMap(s tiles.Pixel) tiles.Pixel {
	return tiles.Pixel{
		X: (s.X-v.anchor.X)/v.scale + v.anchor.X - v.translation.X,
		Y: (s.Y-v.anchor.Y)/v.scale + v.anchor.Y - v.translation.Y,
	}
}

// MapToScreen converts map pixels to a screen position.
func (v *Viewport) MapToScreen(m tiles.Pixel) tiles.Pixel {
	return tiles.Pixel{
		X: v.anchor.X + v.scale*(m.X+v.translation.X-v.anchor.X),
		Y: v.anchor.Y + v.scale*(m.Y+v.translation.Y-v.anchor.Y),
	}
}

// ScreenToLatLng returns the location under a screen position.
func (v *Viewport) ScreenToLatLng(s tiles.Pixel) tiles.LatLng {
	return v.Frame().ToLatLng(v.ScreenToMap(s))
}

func (v *Viewport) recompute() {
	v.state = Recomputing
	defer func() { v.state = Idle }()

	p := tiles.ClampProjected(tiles.Project(v.center))
	ct := tiles.TileAt(p, v.zoom)
	cols := tilesAcross(v.size.X, v.margin)
	rows := tilesAcross(v.size.Y, v.margin)
	w := tiles.WindowAround(ct, rows, cols)

	frame := w.Frame(v.zoom)
	c := frame.ProjectedToPixel(p)
	v.translation = tiles.Pixel{
		X: (float64(v.size.X)/2-v.anchor.X)/v.scale + v.anchor.X - c.X,
		Y: (float64(v.size.Y)/2-v.anchor.Y)/v.scale + v.anchor.Y - c.Y,
	}

	changed := !v.valid || w != v.window || v.zoom != v.reqZoom || v.layer != v.reqLayer
	v.window, v.centerTile = w, ct
	v.reqZoom, v.reqLayer = v.zoom, v.layer
	v.valid = true
	if !changed {
		return
	}

	if v.loader != nil {
		v.loader.Request(tiles.Request{Layer: v.layer, Zoom: v.zoom, Window: w, Center: ct})
	}
	for _, fn := range v.listeners {
		fn(frame)
	}
}

// tilesAcross returns the odd number of tiles covering twice px plus
// margin tiles on each side.
func tilesAcross(px, margin int) int {
	n := (2*px+tiles.TileSize-1)/tiles.TileSize + 2*margin
	if n%2 == 0 {
		n++
	}
	return n
}

func clampLatLng(ll tiles.LatLng) tiles.LatLng {
	ll.Lat = tiles.ClampLatitude(ll.Lat)
	ll.Lng = max(-180, min(ll.Lng, 180))
	return ll
}
