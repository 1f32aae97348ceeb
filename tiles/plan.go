package tiles

import (
	"slices"
	"sort"
)

// Plan returns the tiles of w at the zoom of center, nearest to center first.
// Tiles at equal distance keep row-major order. Tiles outside the world are
// left out.
func Plan(w Window, center Tile) []Tile {
	tiles := slices.DeleteFunc(w.Tiles(center.Zoom), func(t Tile) bool { return !t.InWorld() })
	sort.SliceStable(tiles, func(i, j int) bool {
		return Distance2(tiles[i], center) < Distance2(tiles[j], center)
	})
	return tiles
}

// Distance2 is the squared euclidean distance between two tiles in tile units.
func Distance2(a, b Tile) int {
	dr := a.Row - b.Row
	dc := a.Col - b.Col
	return dr*dr + dc*dc
}
