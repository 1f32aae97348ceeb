package tiles

import (
	"math"
)

const (
	TileSize           = 256
	earthRadius        = 6378137.0
	earthCircumference = 2 * math.Pi * earthRadius // meters at equator

	// MaxLatitude is the latitude at which the projected plane becomes square.
	MaxLatitude = 85.05112878
)

// Tile represents a map tile coordinates
type Tile struct {
	Zoom, Row, Col int
}

// LatLng represents a geographical point
type LatLng struct {
	Lat, Lng float64
}

// Projected is a point on the Mercator plane in meters, measured from the
// north-west corner of the world. Y grows southward like tile rows.
type Projected struct {
	X, Y float64
}

// Pixel is a position in pixel space.
type Pixel struct {
	X, Y float64
}

// ClampLatitude limits lat to the range the projection is defined on.
func ClampLatitude(lat float64) float64 {
	return max(-MaxLatitude, min(lat, MaxLatitude))
}

// Project converts geographical coordinates to the projected plane.
func Project(ll LatLng) Projected {
	latRad := ClampLatitude(ll.Lat) * math.Pi / 180
	x := (ll.Lng + 180) / 360 * earthCircumference
	y := (1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * earthCircumference
	return Projected{X: x, Y: y}
}

// Unproject converts a projected point back to geographical coordinates.
func Unproject(p Projected) LatLng {
	lng := p.X/earthCircumference*360 - 180
	latRad := math.Atan(math.Sinh(math.Pi * (1 - 2*p.Y/earthCircumference)))
	return LatLng{Lat: latRad * 180 / math.Pi, Lng: lng}
}

// worldMax is the largest projected coordinate still inside the last tile.
var worldMax = math.Nextafter(earthCircumference, 0)

// ClampProjected limits p to the projected world square.
func ClampProjected(p Projected) Projected {
	return Projected{
		X: max(0, min(p.X, worldMax)),
		Y: max(0, min(p.Y, worldMax)),
	}
}

// TileDim returns the side of one tile in projected meters at zoom.
func TileDim(zoom int) float64 {
	return earthCircumference / math.Exp2(float64(zoom))
}

// TileAt returns the tile holding p at zoom.
func TileAt(p Projected, zoom int) Tile {
	dim := TileDim(zoom)
	return Tile{
		Zoom: zoom,
		Row:  int(math.Floor(p.Y / dim)),
		Col:  int(math.Floor(p.X / dim)),
	}
}

// InWorld reports whether t is one of the 2^zoom x 2^zoom tiles of its zoom.
func (t Tile) InWorld() bool {
	n := 1 << t.Zoom
	return t.Zoom >= 0 && t.Row >= 0 && t.Row < n && t.Col >= 0 && t.Col < n
}

// Origin returns the projected north-west corner of the tile.
func (t Tile) Origin() Projected {
	dim := TileDim(t.Zoom)
	return Projected{X: float64(t.Col) * dim, Y: float64(t.Row) * dim}
}

// PixelOffset returns the tile holding p and the pixel position of p inside
// that tile, in [0, TileSize).
func PixelOffset(p Projected, zoom int) (Tile, Pixel) {
	t := TileAt(p, zoom)
	o := t.Origin()
	dim := TileDim(zoom)
	return t, Pixel{
		X: (p.X - o.X) / dim * TileSize,
		Y: (p.Y - o.Y) / dim * TileSize,
	}
}

// FromTilePixel is the inverse of PixelOffset.
func FromTilePixel(t Tile, px Pixel) Projected {
	o := t.Origin()
	dim := TileDim(t.Zoom)
	return Projected{
		X: o.X + px.X/TileSize*dim,
		Y: o.Y + px.Y/TileSize*dim,
	}
}

// LatLngToTile converts geographical coordinates to tile coordinates
func LatLngToTile(ll LatLng, zoom int) Tile {
	return TileAt(Project(ll), zoom)
}

// TileToLatLng converts tile coordinates to geographical coordinates (returns north-west corner of tile)
func TileToLatLng(tile Tile) LatLng {
	return Unproject(tile.Origin())
}

// Frame anchors pixel space at the north-west corner of a tile window.
// Tiles and track points are both expressed in the pixel space of the
// current frame.
type Frame struct {
	Zoom   int
	Origin Tile
}

// ToPixel converts ll to a pixel position relative to the frame origin.
func (f Frame) ToPixel(ll LatLng) Pixel {
	return f.ProjectedToPixel(Project(ll))
}

// ProjectedToPixel converts a projected point to frame pixels.
func (f Frame) ProjectedToPixel(p Projected) Pixel {
	dim := TileDim(f.Zoom)
	return Pixel{
		X: p.X/dim*TileSize - float64(f.Origin.Col*TileSize),
		Y: p.Y/dim*TileSize - float64(f.Origin.Row*TileSize),
	}
}

// PixelToProjected converts frame pixels to a projected point.
func (f Frame) PixelToProjected(px Pixel) Projected {
	dim := TileDim(f.Zoom)
	return Projected{
		X: (px.X + float64(f.Origin.Col*TileSize)) * dim / TileSize,
		Y: (px.Y + float64(f.Origin.Row*TileSize)) * dim / TileSize,
	}
}

// ToLatLng converts frame pixels to geographical coordinates.
func (f Frame) ToLatLng(px Pixel) LatLng {
	return Unproject(f.PixelToProjected(px))
}

// TileOffset returns the pixel position of the north-west corner of t in the frame.
func (f Frame) TileOffset(t Tile) Pixel {
	return Pixel{
		X: float64((t.Col - f.Origin.Col) * TileSize),
		Y: float64((t.Row - f.Origin.Row) * TileSize),
	}
}
