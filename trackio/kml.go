package trackio

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olablt/gio-trackmap/track"
)

const kmlNamespace = "http://www.opengis.net/kml/2.2"

type kmlDocument struct {
	XMLName  xml.Name     `xml:"kml"`
	XMLNS    string       `xml:"xmlns,attr,omitempty"`
	Document kmlContainer `xml:"Document"`
}

type kmlContainer struct {
	Name       string         `xml:"name,omitempty"`
	Folders    []kmlContainer `xml:"Folder"`
	Placemarks []kmlPlacemark `xml:"Placemark"`
}

type kmlPlacemark struct {
	Name       string        `xml:"name,omitempty"`
	TimeStamp  *kmlTimeStamp `xml:"TimeStamp"`
	Point      *kmlGeometry  `xml:"Point"`
	LineString *kmlGeometry  `xml:"LineString"`
	Track      *kmlTrack     `xml:"Track"`
}

type kmlTimeStamp struct {
	When string `xml:"when"`
}

type kmlGeometry struct {
	Coordinates string `xml:"coordinates"`
}

// kmlTrack is a gx:Track.
type kmlTrack struct {
	When  []string `xml:"when"`
	Coord []string `xml:"coord"`
}

// ReadKML returns the points of a KML file. A gx:Track is preferred, then
// timestamped Point placemarks, then the first LineString.
func ReadKML(r io.Reader) ([]track.GeoPoint, error) {
	var doc kmlDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse kml: %w", err)
	}

	var placemarks []kmlPlacemark
	collectPlacemarks(doc.Document, &placemarks)

	for _, pm := range placemarks {
		if pm.Track != nil && len(pm.Track.Coord) > 0 {
			return readGXTrack(pm.Track)
		}
	}

	var pts []track.GeoPoint
	for _, pm := range placemarks {
		if pm.Point == nil {
			continue
		}
		p, err := parseCoordinate(strings.TrimSpace(pm.Point.Coordinates), ",")
		if err != nil {
			return nil, err
		}
		if pm.TimeStamp != nil && pm.TimeStamp.When != "" {
			ts, err := time.Parse(time.RFC3339, strings.TrimSpace(pm.TimeStamp.When))
			if err != nil {
				return nil, fmt.Errorf("placemark time: %w", err)
			}
			p.Time = ts.Unix()
		}
		p.Address = pm.Name
		pts = append(pts, p)
	}
	if len(pts) > 1 {
		return pts, nil
	}

	for _, pm := range placemarks {
		if pm.LineString == nil {
			continue
		}
		var line []track.GeoPoint
		for _, field := range strings.Fields(pm.LineString.Coordinates) {
			p, err := parseCoordinate(field, ",")
			if err != nil {
				return nil, err
			}
			line = append(line, p)
		}
		return line, nil
	}
	return pts, nil
}

func collectPlacemarks(c kmlContainer, out *[]kmlPlacemark) {
	*out = append(*out, c.Placemarks...)
	for _, f := range c.Folders {
		collectPlacemarks(f, out)
	}
}

func readGXTrack(t *kmlTrack) ([]track.GeoPoint, error) {
	if len(t.When) != 0 && len(t.When) != len(t.Coord) {
		return nil, fmt.Errorf("corrupt gx:Track: %d timestamps for %d coordinates", len(t.When), len(t.Coord))
	}
	pts := make([]track.GeoPoint, 0, len(t.Coord))
	for i, c := range t.Coord {
		p, err := parseCoordinate(strings.TrimSpace(c), " ")
		if err != nil {
			return nil, err
		}
		if len(t.When) > 0 {
			ts, err := time.Parse(time.RFC3339, strings.TrimSpace(t.When[i]))
			if err != nil {
				return nil, fmt.Errorf("gx:Track time: %w", err)
			}
			p.Time = ts.Unix()
		}
		pts = append(pts, p)
	}
	return pts, nil
}

// parseCoordinate parses "lon<sep>lat[<sep>alt]".
func parseCoordinate(s, sep string) (track.GeoPoint, error) {
	var fields []string
	if sep == " " {
		fields = strings.Fields(s)
	} else {
		fields = strings.Split(s, sep)
	}
	if len(fields) < 2 {
		return track.GeoPoint{}, fmt.Errorf("bad coordinate %q", s)
	}
	var vals [3]float64
	for i := 0; i < len(fields) && i < 3; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(fields[i]), 64)
		if err != nil {
			return track.GeoPoint{}, fmt.Errorf("bad coordinate %q: %w", s, err)
		}
		vals[i] = v
	}
	return track.GeoPoint{Lng: vals[0], Lat: vals[1], SensorElevation: vals[2]}, nil
}

// WriteKML writes t as timestamped Point placemarks followed by a LineString
// of the whole path. Elevations come from src; points without a model
// elevation fall back to the sensor value.
func WriteKML(w io.Writer, t *track.Track, src track.ElevationSource) error {
	points := kmlContainer{Name: "Points"}
	coords := make([]string, 0, t.Len())
	for _, p := range t.Points() {
		elev := p.SensorElevation
		if src == track.ModelElevation && p.Corrected {
			elev = p.ModelElevation
		}
		pos := p.Position()
		c := formatCoordinate(pos.Lng, pos.Lat, elev)
		coords = append(coords, c)
		points.Placemarks = append(points.Placemarks, kmlPlacemark{
			Name:      p.Address,
			TimeStamp: &kmlTimeStamp{When: time.Unix(p.Time, 0).UTC().Format(time.RFC3339)},
			Point:     &kmlGeometry{Coordinates: c},
		})
	}

	doc := kmlDocument{
		XMLNS: kmlNamespace,
		Document: kmlContainer{
			Name:    time.Now().Format("2006-01-02 15:04"),
			Folders: []kmlContainer{points},
			Placemarks: []kmlPlacemark{{
				Name:       "Path",
				LineString: &kmlGeometry{Coordinates: strings.Join(coords, " ")},
			}},
		},
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "\t")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode kml: %w", err)
	}
	return enc.Flush()
}

func formatCoordinate(lng, lat, elev float64) string {
	return strconv.FormatFloat(lng, 'f', 7, 64) + "," +
		strconv.FormatFloat(lat, 'f', 7, 64) + "," +
		strconv.FormatFloat(elev, 'f', 1, 64)
}
