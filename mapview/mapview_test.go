package mapview

import (
	"context"
	"errors"
	"image"
	"math"
	"testing"

	"gioui.org/f32"
	"gioui.org/io/event"
	"gioui.org/io/input"
	"gioui.org/io/key"
	"gioui.org/io/pointer"
	"gioui.org/layout"
	"gioui.org/op"
	"go.uber.org/zap"

	"github.com/olablt/gio-trackmap/tiles"
	"github.com/olablt/gio-trackmap/tiles/worker"
	"github.com/olablt/gio-trackmap/track"
)

type offlineFetcher struct{}

func (offlineFetcher) Fetch(ctx context.Context, key tiles.Key) ([]byte, tiles.Source, error) {
	return nil, tiles.SourceNetwork, errors.New("offline")
}

var viewCenter = tiles.LatLng{Lat: 45, Lng: 7}

type harness struct {
	t      *testing.T
	router *input.Router
	gtx    layout.Context
	view   *MapView
}

// newHarness lays out a 800x600 map view centered on viewCenter showing a
// track of n points 0.001 degrees apart, starting at the center and heading
// east.
func newHarness(t *testing.T, n int) *harness {
	t.Helper()
	pool := worker.NewPool(1, zap.NewNop())
	loader := tiles.NewLoader(tiles.NewImageCache(), offlineFetcher{}, pool, zap.NewNop())
	t.Cleanup(func() {
		loader.Close()
		pool.Shutdown()
	})

	pts := make([]track.GeoPoint, n)
	for i := range pts {
		pts[i] = track.GeoPoint{Lat: viewCenter.Lat, Lng: viewCenter.Lng + float64(i)*0.001}
	}
	engine := track.NewEngine()
	vp := NewViewport(viewCenter, 16, loader)
	mv := New(vp, loader, engine, zap.NewNop())
	vp.Start()
	engine.SetTrack(track.New(pts))

	router := new(input.Router)
	h := &harness{
		t:      t,
		router: router,
		view:   mv,
		gtx: layout.Context{
			Ops:         new(op.Ops),
			Constraints: layout.Exact(image.Pt(800, 600)),
			Source:      router.Source(),
		},
	}
	h.frame()
	return h
}

func (h *harness) frame() {
	h.gtx.Ops.Reset()
	h.view.Layout(h.gtx)
	h.router.Frame(h.gtx.Ops)
}

// send queues evs and runs the frame that handles them.
func (h *harness) send(evs ...event.Event) {
	h.router.Queue(evs...)
	h.frame()
}

func (h *harness) press(pos f32.Point, mods key.Modifiers) {
	h.send(pointer.Event{
		Kind:      pointer.Press,
		Source:    pointer.Mouse,
		Buttons:   pointer.ButtonPrimary,
		Position:  pos,
		Modifiers: mods,
	})
}

func (h *harness) drag(pos f32.Point) {
	h.send(pointer.Event{Kind: pointer.Move, Source: pointer.Mouse, Buttons: pointer.ButtonPrimary, Position: pos})
}

func (h *harness) release(pos f32.Point) {
	h.send(pointer.Event{Kind: pointer.Release, Source: pointer.Mouse, Position: pos})
}

func (h *harness) click(pos f32.Point, mods key.Modifiers) {
	h.press(pos, mods)
	h.release(pos)
}

func (h *harness) key(name key.Name) {
	h.send(key.Event{Name: name, State: key.Press})
}

// pointAt returns the screen position of track point i.
func (h *harness) pointAt(i int) f32.Point {
	p := h.view.Viewport.MapToScreen(h.view.Track.Polyline()[i])
	return f32.Pt(float32(p.X), float32(p.Y))
}

func (h *harness) trackLen() int {
	return h.view.Track.Track().Len()
}

func TestMapViewToggles(t *testing.T) {
	h := newHarness(t, 3)

	h.key("E")
	if !h.view.EditMode {
		t.Fatal("E did not enable edit mode")
	}
	h.key("E")
	if h.view.EditMode {
		t.Fatal("E did not disable edit mode")
	}

	h.key("S")
	if h.view.Viewport.Layer() != tiles.LayerSatellite {
		t.Fatalf("layer = %v after S", h.view.Viewport.Layer())
	}
	h.key("S")
	if h.view.Viewport.Layer() != tiles.LayerMap {
		t.Fatalf("layer = %v after second S", h.view.Viewport.Layer())
	}

	h.key("M")
	if src := h.view.Track.Track().ElevationSource(); src != track.ModelElevation {
		t.Fatalf("elevation source = %v after M", src)
	}
}

func TestMapViewDragPans(t *testing.T) {
	h := newHarness(t, 3)
	vp := h.view.Viewport

	from := f32.Pt(100, 100)
	under := vp.ScreenToLatLng(tiles.Pixel{X: 100, Y: 100})
	h.press(from, 0)
	h.drag(f32.Pt(130, 110))
	h.drag(f32.Pt(150, 120))
	h.release(f32.Pt(150, 120))

	got := vp.ScreenToLatLng(tiles.Pixel{X: 150, Y: 120})
	if math.Abs(got.Lat-under.Lat) > 1e-7 || math.Abs(got.Lng-under.Lng) > 1e-7 {
		t.Fatalf("dragged point at %+v, want %+v", got, under)
	}
	if h.view.Track.Track().At(0).Edited {
		t.Fatal("panning edited the track")
	}
}

func TestMapViewDragMovesPoint(t *testing.T) {
	h := newHarness(t, 3)
	h.view.EditMode = true

	var changes []track.Change
	h.view.Track.Subscribe(func(_ *track.Track, c track.Change) { changes = append(changes, c) })

	center := h.view.Viewport.Center()
	start := h.pointAt(2)
	end := start.Add(f32.Pt(30, 20))
	h.press(start, 0)
	if h.view.Selected() != 2 {
		t.Fatalf("selected = %d", h.view.Selected())
	}
	h.drag(start.Add(f32.Pt(10, 5)))
	h.drag(end)
	if len(changes) != 0 {
		t.Fatalf("drag notified listeners: %v", changes)
	}
	h.release(end)

	if len(changes) != 1 || changes[0] != (track.Change{Kind: track.ChangeMove, Index: 2}) {
		t.Fatalf("changes = %v", changes)
	}
	p := h.view.Track.Track().At(2)
	want := h.view.Viewport.ScreenToLatLng(tiles.Pixel{X: float64(end.X), Y: float64(end.Y)})
	if !p.Edited || math.Abs(p.EditedLat-want.Lat) > 1e-7 || math.Abs(p.EditedLng-want.Lng) > 1e-7 {
		t.Fatalf("moved point = %+v, want at %+v", p, want)
	}
	if h.view.Viewport.Center() != center {
		t.Fatal("dragging a point panned the map")
	}
}

func TestMapViewShiftClickHighlights(t *testing.T) {
	h := newHarness(t, 4)
	h.view.EditMode = true

	h.click(h.pointAt(3), 0)
	h.click(h.pointAt(1), key.ModShift)

	i, j, ok := h.view.Track.Highlighted()
	if !ok || i != 1 || j != 3 {
		t.Fatalf("highlighted %d..%d %v, want 1..3", i, j, ok)
	}
	if h.view.Selected() != 3 {
		t.Fatalf("shift click changed the selection to %d", h.view.Selected())
	}

	h.key(key.NameEscape)
	if _, _, ok := h.view.Track.Highlighted(); ok || h.view.Selected() != -1 {
		t.Fatal("escape kept the highlight")
	}
}

func TestMapViewInsert(t *testing.T) {
	h := newHarness(t, 3)

	h.click(h.pointAt(1), 0)
	h.key("I")
	if h.trackLen() != 3 {
		t.Fatal("I inserted outside edit mode")
	}

	h.view.EditMode = true
	h.click(h.pointAt(1), 0)
	h.key("I")
	if h.trackLen() != 4 || h.view.Selected() != 2 {
		t.Fatalf("len %d selected %d after insert", h.trackLen(), h.view.Selected())
	}

	h.click(h.pointAt(3), 0)
	h.key("I")
	if h.trackLen() != 4 {
		t.Fatal("I inserted after the last point")
	}
}

func TestMapViewDelete(t *testing.T) {
	h := newHarness(t, 3)
	h.view.EditMode = true

	h.click(h.pointAt(1), 0)
	h.key(key.NameDeleteForward)
	if h.trackLen() != 2 {
		t.Fatalf("len = %d after delete", h.trackLen())
	}
	if h.view.Selected() != -1 {
		t.Fatalf("selection kept after delete: %d", h.view.Selected())
	}

	h.click(h.pointAt(1), 0)
	h.key(key.NameDeleteBackward)
	if h.trackLen() != 2 {
		t.Fatalf("deleted below two points, len = %d", h.trackLen())
	}
}

func TestMapViewExport(t *testing.T) {
	h := newHarness(t, 3)

	var exported *track.Track
	h.view.OnExport = func(t *track.Track) { exported = t }
	h.key("X")
	if exported != h.view.Track.Track() {
		t.Fatal("X did not export the track")
	}
}
