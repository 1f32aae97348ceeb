package elevation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/karlseguin/ccache/v3"
	"go.uber.org/zap"

	"github.com/olablt/gio-trackmap/metrics"
	"github.com/olablt/gio-trackmap/tiles"
)

// Service returns terrain elevations in meters, parallel to pts.
type Service interface {
	Elevations(ctx context.Context, pts []tiles.LatLng) ([]float64, error)
}

type ClientConfig struct {
	// URL of the altimetry endpoint, queried with
	// ?lat=a,b&lon=c,d&zonly=true&delimiter=,
	URL       string
	APIKey    string
	CacheSize int64
	CacheTTL  time.Duration
}

// Client queries a REST altimetry service and remembers answered locations.
type Client struct {
	http  *http.Client
	cfg   ClientConfig
	cache *ccache.Cache[float64]
	log   *zap.Logger
}

func NewClient(cfg ClientConfig, httpClient *http.Client, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 10000
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	return &Client{
		http:  httpClient,
		cfg:   cfg,
		cache: ccache.New(ccache.Configure[float64]().MaxSize(cfg.CacheSize).ItemsToPrune(uint32(max(cfg.CacheSize/20, 1)))),
		log:   log.Named("elevation"),
	}
}

func cacheKey(ll tiles.LatLng) string {
	return strconv.FormatFloat(ll.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(ll.Lng, 'f', 6, 64)
}

type response struct {
	Elevations []float64 `json:"elevations"`
}

func (c *Client) Elevations(ctx context.Context, pts []tiles.LatLng) ([]float64, error) {
	out := make([]float64, len(pts))
	var missing []int
	for i, p := range pts {
		if item := c.cache.Get(cacheKey(p)); item != nil && !item.Expired() {
			out[i] = item.Value()
			metrics.ElevationCacheHits.Inc()
			continue
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	lats := make([]string, len(missing))
	lons := make([]string, len(missing))
	for k, i := range missing {
		lats[k] = strconv.FormatFloat(pts[i].Lat, 'f', 6, 64)
		lons[k] = strconv.FormatFloat(pts[i].Lng, 'f', 6, 64)
	}
	q := url.Values{}
	q.Set("lat", strings.Join(lats, ","))
	q.Set("lon", strings.Join(lons, ","))
	q.Set("zonly", "true")
	q.Set("delimiter", ",")
	if c.cfg.APIKey != "" {
		q.Set("apikey", c.cfg.APIKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create elevation request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query elevations: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("query elevations: unexpected status %s", resp.Status)
	}

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode elevations: %w", err)
	}
	if len(r.Elevations) != len(missing) {
		return nil, fmt.Errorf("elevation service returned %d values for %d points", len(r.Elevations), len(missing))
	}
	for k, i := range missing {
		out[i] = r.Elevations[k]
		c.cache.Set(cacheKey(pts[i]), r.Elevations[k], c.cfg.CacheTTL)
	}
	c.log.Debug("elevations fetched", zap.Int("points", len(missing)), zap.Int("cached", len(pts)-len(missing)))
	return out, nil
}
