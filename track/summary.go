package track

import (
	"math"
	"time"

	"github.com/golang/geo/s2"
)

// Summary holds statistics over a range of points.
type Summary struct {
	Points   int
	Length   float64
	Duration time.Duration
	Bounds   s2.Rect

	MinElevation, MaxElevation float64
	MinSpeed, MaxSpeed         float64
	// Climb and Descent accumulate positive and negative display elevation changes.
	Climb, Descent float64
}

// Summary describes the whole track.
func (t *Track) Summary() Summary {
	if len(t.points) == 0 {
		return Summary{Bounds: s2.EmptyRect()}
	}
	return t.SummaryRange(0, len(t.points)-1)
}

// SummaryRange describes the inclusive range of points between i and j, in
// either order.
func (t *Track) SummaryRange(i, j int) Summary {
	t.checkIndex(i)
	t.checkIndex(j)
	if i > j {
		i, j = j, i
	}

	first, last := t.points[i], t.points[j]
	s := Summary{
		Points:       j - i + 1,
		Length:       last.Length - first.Length,
		Duration:     time.Duration(last.Time-first.Time) * time.Second,
		Bounds:       s2.EmptyRect(),
		MinElevation: math.Inf(1),
		MaxElevation: math.Inf(-1),
		MinSpeed:     math.Inf(1),
		MaxSpeed:     math.Inf(-1),
	}
	for k := i; k <= j; k++ {
		p := t.points[k]
		pos := p.Position()
		s.Bounds = s.Bounds.AddPoint(s2.LatLngFromDegrees(pos.Lat, pos.Lng))
		s.MinElevation = math.Min(s.MinElevation, p.DisplayElevation)
		s.MaxElevation = math.Max(s.MaxElevation, p.DisplayElevation)
		s.MinSpeed = math.Min(s.MinSpeed, p.Speed)
		s.MaxSpeed = math.Max(s.MaxSpeed, p.Speed)
		if k > i {
			if dz := p.DisplayElevation - t.points[k-1].DisplayElevation; dz > 0 {
				s.Climb += dz
			} else {
				s.Descent -= dz
			}
		}
	}
	return s
}
