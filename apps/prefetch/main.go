// Command prefetch downloads the tiles covering a track into the disk
// cache so the viewer can show it offline.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/olablt/gio-trackmap/config"
	"github.com/olablt/gio-trackmap/logging"
	"github.com/olablt/gio-trackmap/tiles"
	"github.com/olablt/gio-trackmap/trackio"
)

func main() {
	flags := pflag.NewFlagSet("prefetch", pflag.ExitOnError)
	cfgPath := flags.String("config", "", "config file (yaml)")
	trackPath := flags.String("track", "", "GPX or KML track whose area is downloaded")
	minZoom := flags.Int("min-zoom", 10, "lowest zoom level")
	maxZoom := flags.Int("max-zoom", 16, "highest zoom level")
	satellite := flags.Bool("satellite", false, "download satellite imagery")
	concurrency := flags.Int("concurrency", 4, "parallel downloads")
	flags.String("cache-dir", "", "tile cache directory")
	flags.String("log-level", "", "log level")
	flags.Parse(os.Args[1:])

	if err := run(*cfgPath, *trackPath, *minZoom, *maxZoom, *satellite, *concurrency, flags); err != nil {
		fmt.Fprintln(os.Stderr, "prefetch:", err)
		os.Exit(1)
	}
}

func run(cfgPath, trackPath string, minZoom, maxZoom int, satellite bool, concurrency int, flags *pflag.FlagSet) error {
	if trackPath == "" {
		return errors.New("--track is required")
	}
	if minZoom < 0 || minZoom > maxZoom {
		return fmt.Errorf("bad zoom range [%d,%d]", minZoom, maxZoom)
	}

	cfg, err := config.Load(cfgPath, flags)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer log.Sync()

	tr, err := trackio.Load(trackPath)
	if err != nil {
		return err
	}
	bounds := tr.Summary().Bounds
	nw := tiles.LatLng{Lat: bounds.Hi().Lat.Degrees(), Lng: bounds.Lo().Lng.Degrees()}
	se := tiles.LatLng{Lat: bounds.Lo().Lat.Degrees(), Lng: bounds.Hi().Lng.Degrees()}

	layer := tiles.LayerMap
	if satellite {
		layer = tiles.LayerSatellite
	}
	disk, err := tiles.NewDiskCache(cfg.Tiles.CacheDir, map[tiles.Layer]string{
		tiles.LayerMap:       cfg.Tiles.MapExt,
		tiles.LayerSatellite: cfg.Tiles.SatelliteExt,
	}, log)
	if err != nil {
		return err
	}
	remote := tiles.NewHTTPProvider(tiles.HTTPConfig{
		Templates: map[tiles.Layer]string{
			tiles.LayerMap:       cfg.Tiles.MapURL,
			tiles.LayerSatellite: cfg.Tiles.SatelliteURL,
		},
		APIKey:    cfg.Tiles.APIKey,
		Referer:   cfg.Tiles.Referer,
		UserAgent: cfg.Tiles.UserAgent,
		ProxyHost: cfg.Proxy.Host,
		ProxyPort: cfg.Proxy.Port,
	}, log)
	provider := tiles.NewCombinedTileProvider(disk, remote, log)

	var keys []tiles.Key
	for z := minZoom; z <= maxZoom; z++ {
		a := tiles.LatLngToTile(nw, z)
		b := tiles.LatLngToTile(se, z)
		w := tiles.Window{RowMin: a.Row, RowMax: b.Row, ColMin: a.Col, ColMax: b.Col}
		for _, t := range w.Tiles(z) {
			keys = append(keys, tiles.NewKey(layer, t))
		}
	}
	log.Info("prefetching tiles",
		zap.Stringer("layer", layer),
		zap.Int("tiles", len(keys)),
		zap.Int("min_zoom", minZoom),
		zap.Int("max_zoom", maxZoom))

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	bar := progressbar.Default(int64(len(keys)), "tiles")
	var fetched, cached, failed atomic.Int64

	g, ctx := errgroup.WithContext(sigCtx)
	g.SetLimit(max(concurrency, 1))
	for _, key := range keys {
		if ctx.Err() != nil {
			break
		}
		if disk.Has(key) {
			cached.Add(1)
			bar.Add(1)
			continue
		}
		g.Go(func() error {
			defer bar.Add(1)
			if _, _, err := provider.Fetch(ctx, key); err != nil {
				failed.Add(1)
				log.Debug("tile failed", zap.String("key", key.String()), zap.Error(err))
				return nil
			}
			fetched.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	bar.Finish()

	log.Info("prefetch done",
		zap.Int64("fetched", fetched.Load()),
		zap.Int64("cached", cached.Load()),
		zap.Int64("failed", failed.Load()))
	return sigCtx.Err()
}
