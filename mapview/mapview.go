package mapview

import (
	"image"
	"image/color"

	"gioui.org/f32"
	"gioui.org/io/event"
	"gioui.org/io/key"
	"gioui.org/io/pointer"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"go.uber.org/zap"

	"github.com/olablt/gio-trackmap/tiles"
	"github.com/olablt/gio-trackmap/track"
)

// wheelStep converts scroll distance to a scale change.
const wheelStep = 0.01

var (
	trackColor    = color.NRGBA{R: 220, G: 30, B: 30, A: 230}
	subpathColor  = color.NRGBA{R: 30, G: 90, B: 230, A: 240}
	startColor    = color.NRGBA{R: 20, G: 170, B: 20, A: 255}
	endColor      = color.NRGBA{R: 200, G: 20, B: 20, A: 255}
	pointColor    = color.NRGBA{R: 255, G: 255, B: 255, A: 220}
	selectedColor = color.NRGBA{R: 255, G: 200, B: 0, A: 255}
)

// MapView is the widget showing the tiles and the track. It drains the
// loader and applies user input on the UI goroutine.
type MapView struct {
	Viewport *Viewport
	Loader   *tiles.Loader
	Track    *track.Engine

	// EditMode enables point selection, dragging and editing keys.
	EditMode bool
	// OnExport is called with the track when X is pressed.
	OnExport func(*track.Track)

	log *zap.Logger
	ops *opCache

	lastPos   f32.Point
	dragging  bool
	dragPoint int
	moved     bool
	selected  int
}

func New(vp *Viewport, loader *tiles.Loader, engine *track.Engine, log *zap.Logger) *MapView {
	mv := &MapView{
		Viewport:  vp,
		Loader:    loader,
		Track:     engine,
		log:       log.Named("mapview"),
		ops:       newOpCache(),
		dragPoint: -1,
		selected:  -1,
	}
	vp.OnFrameChange(engine.SetFrame)
	engine.Subscribe(func(t *track.Track, c track.Change) {
		if c.Kind == track.ChangeTrack || c.Kind == track.ChangeDelete {
			mv.selected = -1
		}
	})
	return mv
}

// Selected returns the selected point index, or -1.
func (mv *MapView) Selected() int { return mv.selected }

func (mv *MapView) Layout(gtx layout.Context) layout.Dimensions {
	tag := mv

	if added := mv.Loader.Drain(); len(added) > 0 {
		mv.log.Debug("tiles ready", zap.Int("count", len(added)))
	}
	mv.ops.retain(mv.Loader.Cache())

	mv.Viewport.Resize(gtx.Constraints.Max)

	mv.handlePointer(gtx, tag)
	mv.handleKeys(gtx)

	size := mv.Viewport.Size()
	defer clip.Rect{Max: size}.Push(gtx.Ops).Pop()
	event.Op(gtx.Ops, tag)

	paint.Fill(gtx.Ops, color.NRGBA{R: 235, G: 235, B: 235, A: 255})

	vp := mv.Viewport
	t := vp.Translation()
	a := vp.Anchor()
	s := float32(vp.Scale())
	aff := f32.Affine2D{}.
		Offset(f32.Pt(float32(t.X), float32(t.Y))).
		Scale(f32.Pt(float32(a.X), float32(a.Y)), f32.Pt(s, s))
	transform := op.Affine(aff).Push(gtx.Ops)

	mv.drawTiles(gtx)
	mv.drawTrack(gtx, s)

	transform.Pop()
	return layout.Dimensions{Size: size}
}

func (mv *MapView) handlePointer(gtx layout.Context, tag event.Tag) {
	for {
		ev, ok := gtx.Event(pointer.Filter{
			Target:  tag,
			Kinds:   pointer.Scroll | pointer.Drag | pointer.Press | pointer.Release | pointer.Cancel,
			ScrollY: pointer.ScrollRange{Min: -100, Max: 100},
		})
		if !ok {
			break
		}
		x, ok := ev.(pointer.Event)
		if !ok {
			continue
		}

		pos := toPixel(x.Position)
		switch x.Kind {
		case pointer.Press:
			mv.lastPos = x.Position
			mv.dragging = true
			mv.moved = false
			if mv.EditMode && mv.Track.Track() != nil {
				idx := mv.Track.HitTest(mv.Viewport.ScreenToMap(pos))
				if idx >= 0 {
					if x.Modifiers.Contain(key.ModShift) && mv.selected >= 0 {
						mv.Track.Highlight(mv.selected, idx)
					} else {
						mv.selected = idx
						mv.dragPoint = idx
					}
				}
			}
		case pointer.Drag:
			if !mv.dragging {
				break
			}
			delta := x.Position.Sub(mv.lastPos)
			mv.lastPos = x.Position
			mv.moved = true
			if mv.dragPoint >= 0 {
				mv.Track.PreviewMove(mv.dragPoint, mv.Viewport.ScreenToLatLng(pos))
			} else {
				mv.Viewport.Pan(float64(delta.X), float64(delta.Y))
			}
		case pointer.Release, pointer.Cancel:
			if mv.dragPoint >= 0 && mv.moved {
				mv.Track.MovePoint(mv.dragPoint, mv.Viewport.ScreenToLatLng(pos))
			}
			mv.dragging = false
			mv.dragPoint = -1
		case pointer.Scroll:
			mv.Viewport.ZoomAt(pos, -float64(x.Scroll.Y)*wheelStep)
		}
	}
}

func (mv *MapView) handleKeys(gtx layout.Context) {
	for {
		ev, ok := gtx.Event(
			key.Filter{Name: "E"},
			key.Filter{Name: "S"},
			key.Filter{Name: "I"},
			key.Filter{Name: "M"},
			key.Filter{Name: "X"},
			key.Filter{Name: key.NameDeleteForward},
			key.Filter{Name: key.NameDeleteBackward},
			key.Filter{Name: key.NameEscape},
		)
		if !ok {
			break
		}
		e, ok := ev.(key.Event)
		if !ok || e.State != key.Press {
			continue
		}
		switch e.Name {
		case "E":
			mv.EditMode = !mv.EditMode
		case "S":
			if mv.Viewport.Layer() == tiles.LayerSatellite {
				mv.Viewport.SetLayer(tiles.LayerMap)
			} else {
				mv.Viewport.SetLayer(tiles.LayerSatellite)
			}
		case "I":
			t := mv.Track.Track()
			if mv.EditMode && t != nil && mv.selected >= 0 && mv.selected+1 < t.Len() {
				mv.selected = mv.Track.InsertPoint(mv.selected, mv.selected+1)
			}
		case "M":
			if t := mv.Track.Track(); t != nil {
				src := track.ModelElevation
				if t.ElevationSource() == track.ModelElevation {
					src = track.SensorElevation
				}
				mv.Track.SetElevationSource(src)
			}
		case "X":
			if t := mv.Track.Track(); t != nil && mv.OnExport != nil {
				mv.OnExport(t)
			}
		case key.NameDeleteForward, key.NameDeleteBackward:
			t := mv.Track.Track()
			if mv.EditMode && t != nil && mv.selected >= 0 && mv.selected < t.Len() && t.Len() > 2 {
				mv.Track.DeletePoint(mv.selected)
			}
		case key.NameEscape:
			mv.Track.ClearHighlight()
			mv.selected = -1
		}
	}
}

func (mv *MapView) drawTiles(gtx layout.Context) {
	vp := mv.Viewport
	frame := vp.Frame()
	cache := mv.Loader.Cache()
	for _, t := range vp.Window().Tiles(vp.Zoom()) {
		key := tiles.NewKey(vp.Layer(), t)
		img, ok := cache.Get(key)
		if !ok {
			continue
		}
		off := frame.TileOffset(t)
		stack := op.Offset(image.Pt(int(off.X), int(off.Y))).Push(gtx.Ops)
		cl := clip.Rect{Max: image.Pt(tiles.TileSize, tiles.TileSize)}.Push(gtx.Ops)
		mv.ops.get(key, img).Add(gtx.Ops)
		paint.PaintOp{}.Add(gtx.Ops)
		cl.Pop()
		stack.Pop()
	}
}

func (mv *MapView) drawTrack(gtx layout.Context, scale float32) {
	pts := mv.Track.Polyline()
	if len(pts) == 0 {
		return
	}
	width := 4 / scale
	strokePolyline(gtx.Ops, pts, width, trackColor)
	if sub := mv.Track.Subpath(); len(sub) > 1 {
		strokePolyline(gtx.Ops, sub, 2*width, subpathColor)
	}

	if mv.EditMode {
		for i, b := range mv.Track.HitBoxes() {
			c := pointColor
			if i == mv.selected {
				c = selectedColor
			}
			r := image.Rect(int(b.Min.X), int(b.Min.Y), int(b.Max.X+0.5), int(b.Max.Y+0.5))
			paint.FillShape(gtx.Ops, c, clip.Rect(r).Op())
		}
	}

	if start, end, ok := mv.Track.Markers(); ok {
		radius := 6 / scale
		drawDisc(gtx.Ops, start, radius, startColor)
		drawDisc(gtx.Ops, end, radius, endColor)
	}
}

func strokePolyline(ops *op.Ops, pts []tiles.Pixel, width float32, c color.NRGBA) {
	var p clip.Path
	p.Begin(ops)
	p.MoveTo(toF32(pts[0]))
	for _, pt := range pts[1:] {
		p.LineTo(toF32(pt))
	}
	paint.FillShape(ops, c, clip.Stroke{Path: p.End(), Width: width}.Op())
}

func drawDisc(ops *op.Ops, center tiles.Pixel, radius float32, c color.NRGBA) {
	r := image.Rect(
		int(float32(center.X)-radius), int(float32(center.Y)-radius),
		int(float32(center.X)+radius), int(float32(center.Y)+radius),
	)
	paint.FillShape(ops, c, clip.Ellipse(r).Op(ops))
}

func toF32(p tiles.Pixel) f32.Point {
	return f32.Pt(float32(p.X), float32(p.Y))
}

func toPixel(p f32.Point) tiles.Pixel {
	return tiles.Pixel{X: float64(p.X), Y: float64(p.Y)}
}
