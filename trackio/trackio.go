// Package trackio reads tracks from GPX and KML files and writes them back
// as KML.
package trackio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/olablt/gio-trackmap/track"
)

// Load reads the track stored at path, choosing the format from its extension.
func Load(path string, opts ...track.Option) (*track.Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open track: %w", err)
	}
	defer f.Close()

	var pts []track.GeoPoint
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".gpx":
		pts, err = ReadGPX(f)
	case ".kml":
		pts, err = ReadKML(f)
	default:
		return nil, fmt.Errorf("unsupported track format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if len(pts) == 0 {
		return nil, fmt.Errorf("read %s: no points", filepath.Base(path))
	}
	return track.New(pts, opts...), nil
}
