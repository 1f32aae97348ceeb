package mapview

import (
	"image"
	"math"
	"testing"

	"github.com/olablt/gio-trackmap/tiles"
)

type recordingRequester struct {
	requests []tiles.Request
}

func (r *recordingRequester) Request(req tiles.Request) {
	r.requests = append(r.requests, req)
}

// tileCenter returns the location at the middle of t.
func tileCenter(t tiles.Tile) tiles.LatLng {
	return tiles.Unproject(tiles.FromTilePixel(t, tiles.Pixel{X: 128, Y: 128}))
}

func assertNear(t *testing.T, what string, got, want tiles.LatLng) {
	t.Helper()
	if math.Abs(got.Lat-want.Lat) > 1e-7 || math.Abs(got.Lng-want.Lng) > 1e-7 {
		t.Fatalf("%s = %+v, want %+v", what, got, want)
	}
}

func newTestViewport(t *testing.T, zoom int, opts ...Option) (*Viewport, *recordingRequester) {
	t.Helper()
	req := &recordingRequester{}
	center := tileCenter(tiles.Tile{Zoom: zoom, Row: 300 << (zoom - 10), Col: 500 << (zoom - 10)})
	v := NewViewport(center, zoom, req, opts...)
	v.Resize(image.Pt(800, 600))
	return v, req
}

func TestViewportWindowSize(t *testing.T) {
	v, req := newTestViewport(t, 10)

	w := v.Window()
	if w.Cols() != 9 || w.Rows() != 7 {
		t.Fatalf("window %s is %dx%d, want 9 cols x 7 rows", w, w.Cols(), w.Rows())
	}
	ct := v.CenterTile()
	if ct.Row != 300 || ct.Col != 500 {
		t.Fatalf("center tile = %+v", ct)
	}
	if w.RowMin != 297 || w.ColMin != 496 {
		t.Fatalf("window not centered: %s", w)
	}
	if len(req.requests) != 1 {
		t.Fatalf("requests = %d, want 1", len(req.requests))
	}
	if got := req.requests[0]; got.Window != w || got.Zoom != 10 || got.Center != ct {
		t.Fatalf("request = %+v", got)
	}
}

func TestViewportCenterOnScreen(t *testing.T) {
	v, _ := newTestViewport(t, 12)

	s := v.MapToScreen(v.Frame().ToPixel(v.Center()))
	if math.Abs(s.X-400) > 1e-6 || math.Abs(s.Y-300) > 1e-6 {
		t.Fatalf("center drawn at %+v, want (400, 300)", s)
	}
	assertNear(t, "ScreenToLatLng(mid)", v.ScreenToLatLng(tiles.Pixel{X: 400, Y: 300}), v.Center())
}

func TestViewportPan(t *testing.T) {
	v, req := newTestViewport(t, 10)
	before := v.ScreenToLatLng(tiles.Pixel{X: 420, Y: 310})

	v.Pan(20, 10)
	if len(req.requests) != 1 {
		t.Fatalf("pan inside the center tile issued a request")
	}
	assertNear(t, "moved point", v.ScreenToLatLng(tiles.Pixel{X: 440, Y: 320}), before)
	assertNear(t, "center", v.ScreenToLatLng(tiles.Pixel{X: 400, Y: 300}), v.Center())

	v.Pan(-300, 0)
	if len(req.requests) != 2 {
		t.Fatalf("requests = %d, want 2 after crossing a tile", len(req.requests))
	}
	if got := v.CenterTile().Col; got != 501 {
		t.Fatalf("center col = %d, want 501", got)
	}
	assertNear(t, "moved point", v.ScreenToLatLng(tiles.Pixel{X: 140, Y: 320}), before)
}

func TestViewportZoomKeepsCursorPoint(t *testing.T) {
	v, _ := newTestViewport(t, 10)

	cursor := tiles.Pixel{X: 100, Y: 50}
	under := v.ScreenToLatLng(cursor)
	v.ZoomAt(cursor, 0.3)
	if math.Abs(v.Scale()-1.3) > 1e-12 {
		t.Fatalf("scale = %v", v.Scale())
	}
	if v.Anchor() != cursor {
		t.Fatalf("anchor = %+v", v.Anchor())
	}
	assertNear(t, "under cursor", v.ScreenToLatLng(cursor), under)

	// moving the anchor must not move the picture
	other := tiles.Pixel{X: 600, Y: 400}
	underOther := v.ScreenToLatLng(other)
	v.ZoomAt(other, -0.2)
	assertNear(t, "under second cursor", v.ScreenToLatLng(other), underOther)
	assertNear(t, "center", v.ScreenToLatLng(tiles.Pixel{X: 400, Y: 300}), v.Center())
}

func TestViewportZoomCommit(t *testing.T) {
	v, req := newTestViewport(t, 10)

	cursor := tiles.Pixel{X: 200, Y: 150}
	under := v.ScreenToLatLng(cursor)
	v.ZoomAt(cursor, 1)
	if v.Zoom() != 11 || v.Scale() != 1 {
		t.Fatalf("zoom %d scale %v, want 11 and 1", v.Zoom(), v.Scale())
	}
	if last := req.requests[len(req.requests)-1]; last.Zoom != 11 {
		t.Fatalf("last request zoom = %d", last.Zoom)
	}
	assertNear(t, "under cursor", v.ScreenToLatLng(cursor), under)

	v.ZoomAt(cursor, -0.5)
	if v.Zoom() != 10 || v.Scale() != 1 {
		t.Fatalf("zoom %d scale %v, want 10 and 1", v.Zoom(), v.Scale())
	}
	assertNear(t, "under cursor", v.ScreenToLatLng(cursor), under)
}

func TestViewportZoomBounds(t *testing.T) {
	v, _ := newTestViewport(t, 10, WithZoomBounds(10, 11))

	v.ZoomAt(tiles.Pixel{X: 400, Y: 300}, -0.7)
	if v.Zoom() != 10 || v.Scale() != MinScale {
		t.Fatalf("zoom %d scale %v at min zoom", v.Zoom(), v.Scale())
	}

	v.SetZoom(11)
	v.ZoomAt(tiles.Pixel{X: 400, Y: 300}, 3)
	if v.Zoom() != 11 || v.Scale() != MaxScale {
		t.Fatalf("zoom %d scale %v at max zoom", v.Zoom(), v.Scale())
	}

	v.SetZoom(20)
	if v.Zoom() != 11 || v.Scale() != 1 {
		t.Fatalf("SetZoom past the bound: zoom %d scale %v", v.Zoom(), v.Scale())
	}
}

func TestViewportStateDuringFrameChange(t *testing.T) {
	req := &recordingRequester{}
	v := NewViewport(tiles.LatLng{Lat: 54.68, Lng: 25.28}, 12, req)

	var seen []State
	var frames []tiles.Frame
	v.OnFrameChange(func(f tiles.Frame) {
		seen = append(seen, v.State())
		frames = append(frames, f)
	})
	v.Start()

	if len(seen) != 1 || seen[0] != Recomputing {
		t.Fatalf("states seen by listener = %v", seen)
	}
	if v.State() != Idle {
		t.Fatalf("state after Start = %v", v.State())
	}
	if frames[0] != v.Frame() {
		t.Fatalf("frame = %+v, want %+v", frames[0], v.Frame())
	}
}

func TestViewportResizeAndLayer(t *testing.T) {
	v, req := newTestViewport(t, 10)

	v.Resize(image.Pt(800, 600))
	if len(req.requests) != 1 {
		t.Fatalf("same size issued a request")
	}

	v.Resize(image.Pt(1600, 600))
	if len(req.requests) != 2 || v.Window().Cols() != 15 {
		t.Fatalf("requests %d cols %d after resize", len(req.requests), v.Window().Cols())
	}

	v.Resize(image.Point{})
	if v.Size() != defaultSize {
		t.Fatalf("empty size = %v", v.Size())
	}

	v.SetLayer(tiles.LayerSatellite)
	last := req.requests[len(req.requests)-1]
	if last.Layer != tiles.LayerSatellite {
		t.Fatalf("layer = %v", last.Layer)
	}
	n := len(req.requests)
	v.SetLayer(tiles.LayerSatellite)
	if len(req.requests) != n {
		t.Fatalf("same layer issued a request")
	}
}

func TestViewportRecenter(t *testing.T) {
	v, req := newTestViewport(t, 10)
	v.ZoomAt(tiles.Pixel{X: 10, Y: 10}, 0.4)

	target := tiles.LatLng{Lat: 48.85, Lng: 2.35}
	v.Recenter(target)
	if v.Scale() != 1 {
		t.Fatalf("scale = %v", v.Scale())
	}
	assertNear(t, "center", v.ScreenToLatLng(tiles.Pixel{X: 400, Y: 300}), target)
	if last := req.requests[len(req.requests)-1]; last.Center != tiles.LatLngToTile(target, 10) {
		t.Fatalf("request center = %+v", last.Center)
	}

	v.Recenter(tiles.LatLng{Lat: 89, Lng: 0})
	if v.Center().Lat != tiles.MaxLatitude {
		t.Fatalf("lat not clamped: %v", v.Center().Lat)
	}
}

func TestViewportPanStopsAtWorldEdge(t *testing.T) {
	req := &recordingRequester{}
	v := NewViewport(tiles.LatLng{Lat: 0, Lng: 179.9}, 3, req)
	v.Resize(image.Pt(800, 600))

	for range 20 {
		v.Pan(-200, 0)
	}
	if c := v.Center(); c.Lng > 180 || c.Lng < 179.99 {
		t.Fatalf("center = %+v, want pinned to the east edge", c)
	}
	if ct := v.CenterTile(); ct.Col != 7 || !ct.InWorld() {
		t.Fatalf("center tile = %+v", ct)
	}
	assertNear(t, "center", v.ScreenToLatLng(tiles.Pixel{X: 400, Y: 300}), v.Center())

	for range 20 {
		v.Pan(0, 400)
	}
	if c := v.Center(); c.Lat > tiles.MaxLatitude || c.Lat < tiles.MaxLatitude-1e-6 {
		t.Fatalf("center = %+v, want pinned to the north edge", c)
	}
	if ct := v.CenterTile(); ct.Row != 0 {
		t.Fatalf("center tile = %+v", ct)
	}

	last := req.requests[len(req.requests)-1]
	plan := tiles.Plan(last.Window, last.Center)
	if len(plan) == 0 {
		t.Fatal("no tile of the window is inside the world")
	}
	for _, tile := range plan {
		if !tile.InWorld() {
			t.Fatalf("planned tile %+v outside the world", tile)
		}
	}
}

func TestViewportZoomOutStaysInWorld(t *testing.T) {
	v, _ := newTestViewport(t, 10)
	v.Recenter(tiles.LatLng{Lat: -85, Lng: -179.99})

	for range 6 {
		v.ZoomAt(tiles.Pixel{X: 800, Y: 600}, -0.5)
	}
	c := v.Center()
	if c.Lat < -tiles.MaxLatitude-1e-9 || c.Lng < -180 || c.Lng > 180 {
		t.Fatalf("center = %+v", c)
	}
	if !v.CenterTile().InWorld() {
		t.Fatalf("center tile = %+v", v.CenterTile())
	}
	assertNear(t, "center", v.ScreenToLatLng(tiles.Pixel{X: 400, Y: 300}), c)
}
