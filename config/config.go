package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Tiles     TilesConfig     `mapstructure:"tiles"`
	Proxy     ProxyConfig     `mapstructure:"proxy"`
	View      ViewConfig      `mapstructure:"view"`
	Track     TrackConfig     `mapstructure:"track"`
	Elevation ElevationConfig `mapstructure:"elevation"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type TilesConfig struct {
	Provider     string `mapstructure:"provider"`
	MapURL       string `mapstructure:"map_url"`
	SatelliteURL string `mapstructure:"satellite_url"`
	APIKey       string `mapstructure:"api_key"`
	Referer      string `mapstructure:"referer"`
	UserAgent    string `mapstructure:"user_agent"`
	CacheDir     string `mapstructure:"cache_dir"`
	MapExt       string `mapstructure:"map_ext"`
	SatelliteExt string `mapstructure:"satellite_ext"`
	Workers      int    `mapstructure:"workers"`
	Margin       int    `mapstructure:"margin"`
}

// ProxyConfig routes tile requests through an HTTP proxy when Host is set.
type ProxyConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

func (p ProxyConfig) Enabled() bool { return p.Host != "" }

type ViewConfig struct {
	Lat       float64 `mapstructure:"lat"`
	Lng       float64 `mapstructure:"lng"`
	Zoom      int     `mapstructure:"zoom"`
	MinZoom   int     `mapstructure:"min_zoom"`
	MaxZoom   int     `mapstructure:"max_zoom"`
	Satellite bool    `mapstructure:"satellite"`
}

// TrackConfig controls how a loaded track is measured and exported.
type TrackConfig struct {
	ElevationSource string  `mapstructure:"elevation_source"`
	Smoothing       float64 `mapstructure:"smoothing"`
	ExportPath      string  `mapstructure:"export_path"`
	// StartAt centers the view on the point nearest to this many meters
	// along the track.
	StartAt float64 `mapstructure:"start_at"`
}

type ElevationConfig struct {
	URL       string `mapstructure:"url"`
	APIKey    string `mapstructure:"api_key"`
	BatchSize int    `mapstructure:"batch_size"`
	CacheSize int64  `mapstructure:"cache_size"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// DefaultCacheDir is the tile directory used when tiles.cache_dir is empty.
func DefaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "trackmap", "cache")
	}
	return filepath.Join(home, ".trackmap", "cache")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("tiles.provider", "http")
	v.SetDefault("tiles.map_url", "https://tile.openstreetmap.org/{z}/{x}/{y}.png")
	v.SetDefault("tiles.satellite_url", "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}")
	v.SetDefault("tiles.api_key", "")
	v.SetDefault("tiles.referer", "https://www.openstreetmap.org/")
	v.SetDefault("tiles.user_agent", "gio-trackmap/1.0")
	v.SetDefault("tiles.cache_dir", "")
	v.SetDefault("tiles.map_ext", ".png")
	v.SetDefault("tiles.satellite_ext", ".jpg")
	v.SetDefault("tiles.workers", 4)
	v.SetDefault("tiles.margin", 1)
	v.SetDefault("proxy.host", "")
	v.SetDefault("proxy.port", 8080)
	v.SetDefault("view.lat", 45.1885)
	v.SetDefault("view.lng", 5.7245)
	v.SetDefault("view.zoom", 13)
	v.SetDefault("view.min_zoom", 2)
	v.SetDefault("view.max_zoom", 17)
	v.SetDefault("view.satellite", false)
	v.SetDefault("track.elevation_source", "sensor")
	v.SetDefault("track.smoothing", 0)
	v.SetDefault("track.export_path", "track-export.kml")
	v.SetDefault("track.start_at", 0)
	v.SetDefault("elevation.url", "")
	v.SetDefault("elevation.api_key", "")
	v.SetDefault("elevation.batch_size", 50)
	v.SetDefault("elevation.cache_size", 10000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("metrics.addr", "")
}

// Load reads configuration from defaults, an optional config file, the
// environment and flags, in increasing order of precedence. path may be
// empty, in which case config.yaml is searched in the working directory
// and in ~/.trackmap.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".trackmap"))
		}
		_ = v.ReadInConfig() // OK if missing
	}

	// Environment variables: TRACKMAP_PROXY_HOST -> proxy.host
	v.SetEnvPrefix("TRACKMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Tiles.CacheDir == "" {
		cfg.Tiles.CacheDir = DefaultCacheDir()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// flag name -> config key
var flagKeys = map[string]string{
	"lat":       "view.lat",
	"lng":       "view.lng",
	"zoom":      "view.zoom",
	"satellite": "view.satellite",
	"offline":   "tiles.provider",
	"cache-dir": "tiles.cache_dir",
	"log-level": "log.level",
	"metrics":   "metrics.addr",

	"elevation-source": "track.elevation_source",
	"smoothing":        "track.smoothing",
	"export":           "track.export_path",
	"at":               "track.start_at",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if name == "offline" {
			if f.Changed && f.Value.String() == "true" {
				v.Set(key, "local")
			}
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Validate checks that configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	switch c.Tiles.Provider {
	case "http":
		if c.Tiles.MapURL == "" {
			errs = append(errs, "tiles.map_url is required")
		}
		if c.Tiles.SatelliteURL == "" {
			errs = append(errs, "tiles.satellite_url is required")
		}
	case "local":
	default:
		errs = append(errs, fmt.Sprintf("tiles.provider must be http or local, got %q", c.Tiles.Provider))
	}
	if c.Tiles.Workers <= 0 {
		errs = append(errs, "tiles.workers must be positive")
	}
	if c.Tiles.Margin < 0 {
		errs = append(errs, "tiles.margin must not be negative")
	}
	if c.Proxy.Enabled() && (c.Proxy.Port <= 0 || c.Proxy.Port > 65535) {
		errs = append(errs, fmt.Sprintf("proxy.port must be 1-65535, got %d", c.Proxy.Port))
	}
	if c.View.MinZoom < 0 || c.View.MaxZoom > 22 || c.View.MinZoom > c.View.MaxZoom {
		errs = append(errs, fmt.Sprintf("view zoom bounds invalid: [%d,%d]", c.View.MinZoom, c.View.MaxZoom))
	}
	if c.View.Zoom < c.View.MinZoom || c.View.Zoom > c.View.MaxZoom {
		errs = append(errs, fmt.Sprintf("view.zoom must be within [%d,%d], got %d", c.View.MinZoom, c.View.MaxZoom, c.View.Zoom))
	}
	if c.View.Lat < -90 || c.View.Lat > 90 {
		errs = append(errs, "view.lat must be within [-90,90]")
	}
	if c.View.Lng < -180 || c.View.Lng > 180 {
		errs = append(errs, "view.lng must be within [-180,180]")
	}
	switch c.Track.ElevationSource {
	case "sensor", "model":
	default:
		errs = append(errs, fmt.Sprintf("track.elevation_source must be sensor or model, got %q", c.Track.ElevationSource))
	}
	if c.Track.Smoothing < 0 {
		errs = append(errs, "track.smoothing must not be negative")
	}
	if c.Track.StartAt < 0 {
		errs = append(errs, "track.start_at must not be negative")
	}
	if c.Elevation.BatchSize <= 0 {
		errs = append(errs, "elevation.batch_size must be positive")
	}
	if c.Elevation.CacheSize <= 0 {
		errs = append(errs, "elevation.cache_size must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
