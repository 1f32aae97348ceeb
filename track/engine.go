package track

import (
	"slices"

	"github.com/olablt/gio-trackmap/tiles"
)

// HitBoxSize is the side in pixels of the square used to pick a point.
const HitBoxSize = 7.5

// Box is an axis aligned pixel rectangle.
type Box struct {
	Min, Max tiles.Pixel
}

func (b Box) Contains(p tiles.Pixel) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X && p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

// ChangeKind names what modified the track.
type ChangeKind int

const (
	ChangeTrack ChangeKind = iota
	ChangeInsert
	ChangeDelete
	ChangeMove
	ChangeElevation
)

// Change is passed to listeners. Index is the affected point, or -1.
type Change struct {
	Kind  ChangeKind
	Index int
}

type Listener func(t *Track, c Change)

// Subscription is the handle returned by Subscribe. Unsubscribe it before
// the listener goes away.
type Subscription struct {
	e  *Engine
	id uint64
}

func (s *Subscription) Unsubscribe() {
	if s == nil || s.e == nil {
		return
	}
	s.e.listeners = slices.DeleteFunc(s.e.listeners, func(l listener) bool { return l.id == s.id })
	s.e = nil
}

type listener struct {
	id uint64
	fn Listener
}

// Engine derives the pixel geometry of a track in the current frame and
// applies point edits. All methods must be called from the goroutine that
// owns the track.
type Engine struct {
	track    *Track
	frame    tiles.Frame
	hasFrame bool

	polyline []tiles.Pixel
	boxes    []Box
	subpath  []tiles.Pixel

	highlighted    bool
	subFrom, subTo int

	listeners []listener
	nextID    uint64
}

func NewEngine() *Engine {
	return &Engine{}
}

func (e *Engine) Track() *Track { return e.track }

// SetTrack replaces the track; nil removes it.
func (e *Engine) SetTrack(t *Track) {
	e.track = t
	e.highlighted = false
	e.regenerate()
	e.notify(Change{Kind: ChangeTrack, Index: -1})
}

// SetFrame moves geometry into the pixel space of f.
func (e *Engine) SetFrame(f tiles.Frame) {
	e.frame, e.hasFrame = f, true
	e.regenerate()
}

func (e *Engine) Frame() (tiles.Frame, bool) {
	return e.frame, e.hasFrame
}

func (e *Engine) regenerate() {
	e.polyline = e.polyline[:0]
	e.boxes = e.boxes[:0]
	if e.track != nil && e.hasFrame {
		half := HitBoxSize / 2
		for _, p := range e.track.points {
			px := e.frame.ToPixel(p.Position())
			e.polyline = append(e.polyline, px)
			e.boxes = append(e.boxes, Box{
				Min: tiles.Pixel{X: px.X - half, Y: px.Y - half},
				Max: tiles.Pixel{X: px.X + half, Y: px.Y + half},
			})
		}
	}
	e.buildSubpath()
}

func (e *Engine) buildSubpath() {
	e.subpath = e.subpath[:0]
	if !e.highlighted {
		return
	}
	last := len(e.polyline) - 1
	if e.subFrom > last {
		e.highlighted = false
		return
	}
	to := min(e.subTo, last)
	e.subpath = append(e.subpath, e.polyline[e.subFrom:to+1]...)
}

// Polyline returns the pixel position of every point. The slice is reused
// by the next regeneration.
func (e *Engine) Polyline() []tiles.Pixel { return e.polyline }

// HitBoxes returns one box per point, parallel to Polyline.
func (e *Engine) HitBoxes() []Box { return e.boxes }

// Subpath returns the highlighted section, or nil.
func (e *Engine) Subpath() []tiles.Pixel { return e.subpath }

// Markers returns the first and last points of the polyline.
func (e *Engine) Markers() (start, end tiles.Pixel, ok bool) {
	if len(e.polyline) == 0 {
		return tiles.Pixel{}, tiles.Pixel{}, false
	}
	return e.polyline[0], e.polyline[len(e.polyline)-1], true
}

// Highlight selects the inclusive range between points i and j.
func (e *Engine) Highlight(i, j int) {
	e.mustTrack()
	e.track.checkIndex(i)
	e.track.checkIndex(j)
	if i > j {
		i, j = j, i
	}
	e.subFrom, e.subTo, e.highlighted = i, j, true
	e.buildSubpath()
}

func (e *Engine) ClearHighlight() {
	e.highlighted = false
	e.subpath = e.subpath[:0]
}

// Highlighted returns the selected range.
func (e *Engine) Highlighted() (i, j int, ok bool) {
	return e.subFrom, e.subTo, e.highlighted
}

// HitTest returns the index of the point whose box holds p, preferring
// later points, or -1.
func (e *Engine) HitTest(p tiles.Pixel) int {
	for i := len(e.boxes) - 1; i >= 0; i-- {
		if e.boxes[i].Contains(p) {
			return i
		}
	}
	return -1
}

// InsertPoint inserts the midpoint of points before and after, which must
// be adjacent, and returns its index.
func (e *Engine) InsertPoint(before, after int) int {
	e.mustTrack()
	i := e.track.Insert(before, after)
	if e.highlighted {
		switch {
		case i <= e.subFrom:
			e.subFrom++
			e.subTo++
		case i <= e.subTo:
			e.subTo++
		}
	}
	e.regenerate()
	e.notify(Change{Kind: ChangeInsert, Index: i})
	return i
}

func (e *Engine) DeletePoint(i int) {
	e.mustTrack()
	e.track.Delete(i)
	if e.highlighted {
		switch {
		case i < e.subFrom:
			e.subFrom--
			e.subTo--
		case i <= e.subTo:
			e.subTo--
			if e.subTo < e.subFrom {
				e.highlighted = false
			}
		}
	}
	e.regenerate()
	e.notify(Change{Kind: ChangeDelete, Index: i})
}

// PreviewMove relocates point i without notifying listeners, for use while
// a drag is in progress.
func (e *Engine) PreviewMove(i int, ll tiles.LatLng) {
	e.mustTrack()
	e.track.Move(i, ll.Lat, ll.Lng)
	e.regenerate()
}

func (e *Engine) MovePoint(i int, ll tiles.LatLng) {
	e.PreviewMove(i, ll)
	e.notify(Change{Kind: ChangeMove, Index: i})
}

// SetElevationSource switches the elevation used for display and lengths.
func (e *Engine) SetElevationSource(src ElevationSource) {
	e.mustTrack()
	if e.track.ElevationSource() == src {
		return
	}
	e.track.SetElevationSource(src)
	e.notify(Change{Kind: ChangeElevation, Index: -1})
}

// ElevationsUpdated reports that model elevations were stored on the track.
func (e *Engine) ElevationsUpdated() {
	e.notify(Change{Kind: ChangeElevation, Index: -1})
}

// Subscribe registers fn for every change of the track.
func (e *Engine) Subscribe(fn Listener) *Subscription {
	e.nextID++
	e.listeners = append(e.listeners, listener{id: e.nextID, fn: fn})
	return &Subscription{e: e, id: e.nextID}
}

func (e *Engine) notify(c Change) {
	for _, l := range slices.Clone(e.listeners) {
		l.fn(e.track, c)
	}
}

func (e *Engine) mustTrack() {
	if e.track == nil {
		panic("track: engine has no track")
	}
}
