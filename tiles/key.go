package tiles

import (
	"fmt"
)

// Layer selects the imagery served for a tile.
type Layer int

const (
	LayerMap Layer = iota
	LayerSatellite
)

// Prefix is the key prefix of the layer.
func (l Layer) Prefix() string {
	switch l {
	case LayerSatellite:
		return "ortho"
	default:
		return "map"
	}
}

func (l Layer) String() string {
	return l.Prefix()
}

// Key identifies one tile image of one layer at one resolution.
type Key struct {
	Layer Layer
	Tile
}

// NewKey builds the key of t in layer.
func NewKey(layer Layer, t Tile) Key {
	return Key{Layer: layer, Tile: t}
}

// String returns the key as used for disk file names and logs.
func (k Key) String() string {
	return fmt.Sprintf("%s-z%d-r%d-c%d", k.Layer.Prefix(), k.Zoom, k.Row, k.Col)
}

// Window is an inclusive range of tile rows and columns.
type Window struct {
	RowMin, RowMax int
	ColMin, ColMax int
}

// WindowAround returns a window of rows x cols tiles centered on c.
func WindowAround(c Tile, rows, cols int) Window {
	return Window{
		RowMin: c.Row - rows/2,
		RowMax: c.Row - rows/2 + rows - 1,
		ColMin: c.Col - cols/2,
		ColMax: c.Col - cols/2 + cols - 1,
	}
}

// Contains reports whether the tile at row, col is inside the window.
func (w Window) Contains(row, col int) bool {
	return row >= w.RowMin && row <= w.RowMax && col >= w.ColMin && col <= w.ColMax
}

func (w Window) Rows() int { return w.RowMax - w.RowMin + 1 }
func (w Window) Cols() int { return w.ColMax - w.ColMin + 1 }

// Tiles lists the tiles of the window at zoom, row by row.
func (w Window) Tiles(zoom int) []Tile {
	out := make([]Tile, 0, w.Rows()*w.Cols())
	for r := w.RowMin; r <= w.RowMax; r++ {
		for c := w.ColMin; c <= w.ColMax; c++ {
			out = append(out, Tile{Zoom: zoom, Row: r, Col: c})
		}
	}
	return out
}

// Frame returns the frame anchored at the north-west tile of the window.
func (w Window) Frame(zoom int) Frame {
	return Frame{Zoom: zoom, Origin: Tile{Zoom: zoom, Row: w.RowMin, Col: w.ColMin}}
}

func (w Window) String() string {
	return fmt.Sprintf("r[%d,%d] c[%d,%d]", w.RowMin, w.RowMax, w.ColMin, w.ColMax)
}
