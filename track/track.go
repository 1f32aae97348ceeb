package track

import (
	"fmt"
	"math"
	"slices"
	"sort"
)

// ElevationSource selects the elevation used for display and distances.
type ElevationSource int

const (
	SensorElevation ElevationSource = iota
	ModelElevation
)

func (s ElevationSource) String() string {
	if s == ModelElevation {
		return "model"
	}
	return "sensor"
}

// ParseElevationSource accepts the names returned by ElevationSource.String.
func ParseElevationSource(s string) (ElevationSource, error) {
	switch s {
	case "sensor":
		return SensorElevation, nil
	case "model":
		return ModelElevation, nil
	}
	return SensorElevation, fmt.Errorf("unknown elevation source %q", s)
}

type Option func(*Track)

func WithElevationSource(src ElevationSource) Option {
	return func(t *Track) { t.source = src }
}

// WithSmoothing makes elevation changes smaller than threshold meters
// carry the previous display elevation forward.
func WithSmoothing(threshold float64) Option {
	return func(t *Track) { t.smoothing = threshold }
}

// Track is an ordered, editable sequence of points. Lengths, speeds and
// display elevations are derived and refreshed by every mutating method.
// A Track is not safe for concurrent use.
type Track struct {
	points    []GeoPoint
	source    ElevationSource
	smoothing float64
	revision  uint64
}

// New copies points into a new track and computes derived fields.
func New(points []GeoPoint, opts ...Option) *Track {
	t := &Track{points: slices.Clone(points)}
	for _, opt := range opts {
		opt(t)
	}
	t.Recompute()
	return t
}

func (t *Track) Len() int { return len(t.points) }

// At returns a copy of point i.
func (t *Track) At(i int) GeoPoint {
	t.checkIndex(i)
	return t.points[i]
}

// Points returns a copy of all points.
func (t *Track) Points() []GeoPoint {
	return slices.Clone(t.points)
}

// Revision changes on every insertion, deletion or move.
func (t *Track) Revision() uint64 { return t.revision }

func (t *Track) ElevationSource() ElevationSource { return t.source }

func (t *Track) SetElevationSource(src ElevationSource) {
	if t.source == src {
		return
	}
	t.source = src
	t.Recompute()
}

func (t *Track) checkIndex(i int) {
	if i < 0 || i >= len(t.points) {
		panic(fmt.Sprintf("track: index %d out of range [0,%d)", i, len(t.points)))
	}
}

// Recompute refreshes display elevation, cumulative length and speed of
// every point. The first point has zero length and speed.
func (t *Track) Recompute() {
	for i := range t.points {
		p := &t.points[i]
		elev := p.SensorElevation
		if t.source == ModelElevation && p.Corrected {
			elev = p.ModelElevation
		}
		if i > 0 && t.smoothing > 0 && math.Abs(elev-t.points[i-1].DisplayElevation) < t.smoothing {
			elev = t.points[i-1].DisplayElevation
		}
		p.DisplayElevation = elev

		if i == 0 {
			p.Length, p.Speed = 0, 0
			continue
		}
		prev := &t.points[i-1]
		d := prev.DistanceTo(*p)
		p.Length = prev.Length + d
		p.Speed = 0
		if dt := p.Time - prev.Time; dt > 0 {
			p.Speed = d * 3.6 / float64(dt)
		}
	}
}

// Insert adds the midpoint of the adjacent points before and after at
// index after and returns that index. The new point has no model elevation.
func (t *Track) Insert(before, after int) int {
	t.checkIndex(before)
	t.checkIndex(after)
	if after != before+1 {
		panic(fmt.Sprintf("track: points %d and %d are not adjacent", before, after))
	}
	p := midpoint(t.points[before], t.points[after])
	t.points = slices.Insert(t.points, after, p)
	t.revision++
	t.Recompute()
	return after
}

// Delete removes point i.
func (t *Track) Delete(i int) {
	t.checkIndex(i)
	t.points = slices.Delete(t.points, i, i+1)
	t.revision++
	t.Recompute()
}

// Move relocates point i. Its model elevation must be fetched again.
func (t *Track) Move(i int, lat, lng float64) {
	t.checkIndex(i)
	p := &t.points[i]
	p.Edited = true
	p.EditedLat, p.EditedLng = lat, lng
	p.Corrected = false
	t.revision++
	t.Recompute()
}

// PendingElevations lists the points without a model elevation.
func (t *Track) PendingElevations() []int {
	var idx []int
	for i := range t.points {
		if !t.points[i].Corrected {
			idx = append(idx, i)
		}
	}
	return idx
}

// SetModelElevations stores elevations[k] as the model elevation of point
// indices[k].
func (t *Track) SetModelElevations(indices []int, elevations []float64) {
	if len(indices) != len(elevations) {
		panic(fmt.Sprintf("track: %d indices for %d elevations", len(indices), len(elevations)))
	}
	for k, i := range indices {
		t.checkIndex(i)
		t.points[i].ModelElevation = elevations[k]
		t.points[i].Corrected = true
	}
	t.Recompute()
}

// NearestByLength returns the index of the point whose cumulative length is
// nearest to d. A query exactly halfway between two points returns the
// later one. It returns -1 for an empty track.
func (t *Track) NearestByLength(d float64) int {
	n := len(t.points)
	if n == 0 {
		return -1
	}
	j := sort.Search(n, func(k int) bool { return t.points[k].Length >= d })
	switch {
	case j == 0:
		return 0
	case j == n:
		return n - 1
	case t.points[j].Length == d:
		return j
	}
	i := j - 1
	if d >= (t.points[i].Length+t.points[j].Length)/2 {
		return j
	}
	return i
}
