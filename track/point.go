package track

import (
	"math"

	"github.com/golang/geo/s2"

	"github.com/olablt/gio-trackmap/tiles"
)

// distanceRadius is the mean earth radius used for track lengths.
const distanceRadius = 6370000.0

// GeoPoint is one location of a track.
type GeoPoint struct {
	Lat, Lng float64

	// SensorElevation is the elevation recorded with the track.
	SensorElevation float64
	// ModelElevation is the terrain model elevation; valid only when Corrected.
	ModelElevation float64
	Corrected      bool
	// DisplayElevation is the elevation selected by the track's ElevationSource.
	DisplayElevation float64

	// Time is in seconds since the Unix epoch.
	Time int64
	// Length is the distance from the first point in meters.
	Length float64
	// Speed is in km/h, measured from the previous point.
	Speed float64

	// Edited points are drawn and measured at EditedLat, EditedLng.
	Edited               bool
	EditedLat, EditedLng float64

	// Address and Bounds describe a resolved place attached to the point.
	Address string
	Bounds  *s2.Rect
}

// Position returns the effective location, honoring edits.
func (p GeoPoint) Position() tiles.LatLng {
	if p.Edited {
		return tiles.LatLng{Lat: p.EditedLat, Lng: p.EditedLng}
	}
	return tiles.LatLng{Lat: p.Lat, Lng: p.Lng}
}

// DistanceTo returns the straight line distance in meters between p and q,
// taking their display elevations into account.
func (p GeoPoint) DistanceTo(q GeoPoint) float64 {
	a, b := p.Position(), q.Position()
	angle := s2.LatLngFromDegrees(a.Lat, a.Lng).Distance(s2.LatLngFromDegrees(b.Lat, b.Lng))

	ha := distanceRadius + p.DisplayElevation
	hb := distanceRadius + q.DisplayElevation
	// chord between the two elevated points, exact for short steps
	s := math.Sin(angle.Radians() / 2)
	dh := ha - hb
	return math.Sqrt(dh*dh + 4*ha*hb*s*s)
}

// midpoint averages every numeric field of a and b.
func midpoint(a, b GeoPoint) GeoPoint {
	pa, pb := a.Position(), b.Position()
	return GeoPoint{
		Lat:              (pa.Lat + pb.Lat) / 2,
		Lng:              (pa.Lng + pb.Lng) / 2,
		SensorElevation:  (a.SensorElevation + b.SensorElevation) / 2,
		ModelElevation:   (a.ModelElevation + b.ModelElevation) / 2,
		DisplayElevation: (a.DisplayElevation + b.DisplayElevation) / 2,
		Time:             (a.Time + b.Time) / 2,
		Length:           (a.Length + b.Length) / 2,
		Speed:            (a.Speed + b.Speed) / 2,
	}
}
