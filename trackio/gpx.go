package trackio

import (
	"fmt"
	"io"

	"github.com/tkrajina/gpxgo/gpx"

	"github.com/olablt/gio-trackmap/track"
)

// ReadGPX returns the points of every track segment in document order.
func ReadGPX(r io.Reader) ([]track.GeoPoint, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	g, err := gpx.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse gpx: %w", err)
	}

	var pts []track.GeoPoint
	for _, trk := range g.Tracks {
		for _, seg := range trk.Segments {
			for _, p := range seg.Points {
				gp := track.GeoPoint{Lat: p.Latitude, Lng: p.Longitude}
				if p.Elevation.NotNull() {
					gp.SensorElevation = p.Elevation.Value()
				}
				if !p.Timestamp.IsZero() {
					gp.Time = p.Timestamp.Unix()
				}
				pts = append(pts, gp)
			}
		}
	}
	return pts, nil
}
