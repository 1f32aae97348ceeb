package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"gioui.org/app"
	"gioui.org/op"
	"gioui.org/unit"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/olablt/gio-trackmap/config"
	"github.com/olablt/gio-trackmap/logging"
	"github.com/olablt/gio-trackmap/metrics"
	"github.com/olablt/gio-trackmap/track"
	"github.com/olablt/gio-trackmap/trackio"
)

func main() {
	flags := pflag.NewFlagSet("trackmap", pflag.ExitOnError)
	cfgPath := flags.String("config", "", "config file (yaml)")
	trackPath := flags.String("track", "", "GPX or KML track to display")
	flags.Float64("lat", 0, "initial latitude")
	flags.Float64("lng", 0, "initial longitude")
	flags.Int("zoom", 0, "initial zoom level")
	flags.Bool("satellite", false, "start on satellite imagery")
	flags.Bool("offline", false, "draw placeholder tiles instead of fetching them")
	flags.String("cache-dir", "", "tile cache directory")
	flags.String("log-level", "", "log level")
	flags.String("metrics", "", "serve prometheus metrics on this address")
	flags.String("elevation-source", "", "elevation shown and measured: sensor or model")
	flags.Float64("smoothing", 0, "ignore elevation changes below this many meters")
	flags.String("export", "", "KML file written when X is pressed")
	flags.Float64("at", 0, "start on the track point nearest to this many meters")
	flags.Parse(os.Args[1:])

	cfg, err := config.Load(*cfgPath, flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	if cfg.Metrics.Addr != "" {
		srv := metrics.Serve(cfg.Metrics.Addr, log)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
	}

	var tr *track.Track
	if *trackPath != "" {
		src, err := track.ParseElevationSource(cfg.Track.ElevationSource)
		if err != nil {
			log.Fatal("elevation source", zap.Error(err))
		}
		tr, err = trackio.Load(*trackPath,
			track.WithElevationSource(src),
			track.WithSmoothing(cfg.Track.Smoothing))
		if err != nil {
			log.Fatal("loading track", zap.Error(err))
		}
		s := tr.Summary()
		log.Info("track loaded",
			zap.String("file", *trackPath),
			zap.Int("points", s.Points),
			zap.Float64("length_m", s.Length),
			zap.Float64("elev_min", s.MinElevation),
			zap.Float64("elev_max", s.MaxElevation))
	}

	refresh := make(chan struct{}, 1)
	wake := func() {
		select {
		case refresh <- struct{}{}:
		default:
		}
	}

	s, err := newSession(cfg, tr, wake, log)
	if err != nil {
		log.Fatal("starting viewer", zap.Error(err))
	}

	go func() {
		w := new(app.Window)
		w.Option(app.Title("trackmap"), app.Size(unit.Dp(1024), unit.Dp(768)))

		var ops op.Ops
		go func() {
			for range refresh {
				w.Invalidate()
			}
		}()
		for {
			switch e := w.Event().(type) {
			case app.DestroyEvent:
				s.close()
				if e.Err != nil {
					log.Error("window closed", zap.Error(e.Err))
					os.Exit(1)
				}
				os.Exit(0)
			case app.FrameEvent:
				gtx := app.NewContext(&ops, e)
				s.frame()
				s.view.Layout(gtx)
				e.Frame(gtx.Ops)
			}
		}
	}()
	app.Main()
}
