package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/olablt/gio-trackmap/config"
	"github.com/olablt/gio-trackmap/elevation"
	"github.com/olablt/gio-trackmap/mapview"
	"github.com/olablt/gio-trackmap/tiles"
	"github.com/olablt/gio-trackmap/tiles/worker"
	"github.com/olablt/gio-trackmap/track"
	"github.com/olablt/gio-trackmap/trackio"
)

// session wires the viewer components together. Its methods run on the
// window goroutine.
type session struct {
	pool      *worker.Pool
	loader    *tiles.Loader
	engine    *track.Engine
	corrector *elevation.Corrector
	view      *mapview.MapView
	sub       *track.Subscription
	log       *zap.Logger
}

func newSession(cfg *config.Config, tr *track.Track, wake func(), log *zap.Logger) (*session, error) {
	disk, err := tiles.NewDiskCache(cfg.Tiles.CacheDir, map[tiles.Layer]string{
		tiles.LayerMap:       cfg.Tiles.MapExt,
		tiles.LayerSatellite: cfg.Tiles.SatelliteExt,
	}, log)
	if err != nil {
		return nil, err
	}
	remote, err := newRemote(cfg, log)
	if err != nil {
		return nil, err
	}

	pool := worker.NewPool(cfg.Tiles.Workers, log)
	loader := tiles.NewLoader(tiles.NewImageCache(), tiles.NewCombinedTileProvider(disk, remote, log), pool, log)
	loader.SetOnLoadCallback(wake)

	layer := tiles.LayerMap
	if cfg.View.Satellite {
		layer = tiles.LayerSatellite
	}
	center := tiles.LatLng{Lat: cfg.View.Lat, Lng: cfg.View.Lng}
	if tr != nil && tr.Len() > 0 {
		center = tr.At(max(tr.NearestByLength(cfg.Track.StartAt), 0)).Position()
	}
	vp := mapview.NewViewport(center, cfg.View.Zoom, loader,
		mapview.WithZoomBounds(cfg.View.MinZoom, cfg.View.MaxZoom),
		mapview.WithMargin(cfg.Tiles.Margin),
		mapview.WithLayer(layer))

	engine := track.NewEngine()
	s := &session{
		pool:   pool,
		loader: loader,
		engine: engine,
		view:   mapview.New(vp, loader, engine, log),
		log:    log,
	}
	exportPath := cfg.Track.ExportPath
	s.view.OnExport = func(t *track.Track) {
		if err := exportKML(exportPath, t); err != nil {
			log.Error("export failed", zap.String("file", exportPath), zap.Error(err))
			return
		}
		log.Info("track exported", zap.String("file", exportPath), zap.Stringer("elevation", t.ElevationSource()))
	}

	if cfg.Elevation.URL != "" {
		client := elevation.NewClient(elevation.ClientConfig{
			URL:       cfg.Elevation.URL,
			APIKey:    cfg.Elevation.APIKey,
			CacheSize: cfg.Elevation.CacheSize,
		}, nil, log)
		s.corrector = elevation.NewCorrector(client, pool, cfg.Elevation.BatchSize, log)
		s.corrector.SetOnResultCallback(wake)
		s.sub = engine.Subscribe(func(t *track.Track, c track.Change) {
			if c.Kind != track.ChangeElevation && t != nil {
				s.corrector.Start(t)
			}
		})
	}

	vp.Start()
	if tr != nil {
		engine.SetTrack(tr)
	}
	return s, nil
}

func newRemote(cfg *config.Config, log *zap.Logger) (tiles.TileProvider, error) {
	switch cfg.Tiles.Provider {
	case "local":
		return tiles.NewLocalTileProvider(), nil
	case "http":
		return tiles.NewHTTPProvider(tiles.HTTPConfig{
			Templates: map[tiles.Layer]string{
				tiles.LayerMap:       cfg.Tiles.MapURL,
				tiles.LayerSatellite: cfg.Tiles.SatelliteURL,
			},
			APIKey:    cfg.Tiles.APIKey,
			Referer:   cfg.Tiles.Referer,
			UserAgent: cfg.Tiles.UserAgent,
			ProxyHost: cfg.Proxy.Host,
			ProxyPort: cfg.Proxy.Port,
		}, log), nil
	}
	return nil, fmt.Errorf("unknown tile provider %q", cfg.Tiles.Provider)
}

func exportKML(path string, t *track.Track) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := trackio.WriteKML(f, t, t.ElevationSource()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// frame applies background results before the view is laid out.
func (s *session) frame() {
	t := s.engine.Track()
	if s.corrector == nil || t == nil {
		return
	}
	if n := s.corrector.Drain(t); n > 0 {
		s.engine.ElevationsUpdated()
		s.log.Debug("model elevations applied", zap.Int("points", n))
	}
}

func (s *session) close() {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	if s.corrector != nil {
		s.corrector.Close()
	}
	s.loader.Close()
	s.pool.Shutdown()
}
