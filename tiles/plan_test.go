package tiles

import (
	"testing"
)

func TestPlanOrdersByDistance(t *testing.T) {
	center := Tile{Zoom: 8, Row: 50, Col: 60}
	windows := []Window{
		WindowAround(center, 5, 5),
		WindowAround(center, 7, 9),
		{RowMin: 50, RowMax: 53, ColMin: 55, ColMax: 60},
	}
	for _, w := range windows {
		t.Run(w.String(), func(t *testing.T) {
			plan := Plan(w, center)
			if len(plan) != w.Rows()*w.Cols() {
				t.Fatalf("plan has %d tiles, window has %d", len(plan), w.Rows()*w.Cols())
			}
			seen := make(map[Tile]bool)
			for i, tile := range plan {
				if seen[tile] {
					t.Fatalf("tile %+v planned twice", tile)
				}
				seen[tile] = true
				if !w.Contains(tile.Row, tile.Col) {
					t.Fatalf("tile %+v outside window", tile)
				}
				if i > 0 && Distance2(plan[i-1], center) > Distance2(tile, center) {
					t.Fatalf("plan not ordered at %d: %+v before %+v", i, plan[i-1], tile)
				}
			}
		})
	}
}

func TestPlanStartsAtCenter(t *testing.T) {
	center := Tile{Zoom: 8, Row: 50, Col: 60}
	plan := Plan(WindowAround(center, 3, 3), center)
	if plan[0] != center {
		t.Fatalf("first tile %+v, want %+v", plan[0], center)
	}
}

func TestPlanSkipsTilesOutsideWorld(t *testing.T) {
	center := Tile{Zoom: 2, Row: 0, Col: 3}
	plan := Plan(WindowAround(center, 3, 5), center)
	// rows 0..1, cols 1..3 remain of the 3x5 window
	if len(plan) != 6 {
		t.Fatalf("plan = %v, want 6 tiles", plan)
	}
	for _, tile := range plan {
		if !tile.InWorld() {
			t.Fatalf("tile %+v outside the world", tile)
		}
	}
	if plan[0] != center {
		t.Fatalf("first tile %+v", plan[0])
	}
}
