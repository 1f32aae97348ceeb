package tiles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/olablt/gio-trackmap/metrics"
)

// ErrTileUnavailable reports a tile the service did not deliver.
var ErrTileUnavailable = errors.New("tile unavailable")

// TileProvider returns the raw image bytes of a tile.
type TileProvider interface {
	FetchTile(ctx context.Context, key Key) ([]byte, error)
}

// HTTPConfig configures an HTTPProvider.
type HTTPConfig struct {
	// URL templates per layer. Placeholders: {z} {x} {y} {row} {col} {key} {apikey}.
	Templates map[Layer]string
	APIKey    string
	Referer   string
	UserAgent string
	ProxyHost string
	ProxyPort int
}

// HTTPProvider fetches tiles from a remote tile service.
type HTTPProvider struct {
	client *http.Client
	cfg    HTTPConfig
	log    *zap.Logger
}

func NewHTTPProvider(cfg HTTPConfig, log *zap.Logger) *HTTPProvider {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 20 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if cfg.ProxyHost != "" {
		transport.Proxy = http.ProxyURL(&url.URL{
			Scheme: "http",
			Host:   net.JoinHostPort(cfg.ProxyHost, strconv.Itoa(cfg.ProxyPort)),
		})
	}
	return &HTTPProvider{
		client: &http.Client{Transport: transport},
		cfg:    cfg,
		log:    log.Named("http"),
	}
}

// TileURL returns the URL for downloading the tile
func (p *HTTPProvider) TileURL(key Key) (string, error) {
	tmpl, ok := p.cfg.Templates[key.Layer]
	if !ok || tmpl == "" {
		return "", fmt.Errorf("no url template for layer %s", key.Layer)
	}
	r := strings.NewReplacer(
		"{z}", strconv.Itoa(key.Zoom),
		"{x}", strconv.Itoa(key.Col),
		"{y}", strconv.Itoa(key.Row),
		"{col}", strconv.Itoa(key.Col),
		"{row}", strconv.Itoa(key.Row),
		"{key}", key.String(),
		"{apikey}", url.PathEscape(p.cfg.APIKey),
	)
	return r.Replace(tmpl), nil
}

func (p *HTTPProvider) FetchTile(ctx context.Context, key Key) ([]byte, error) {
	u, err := p.TileURL(key)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request for %s: %w", key, err)
	}
	req.Header.Set("Accept", "image/webp,image/png,image/jpeg,*/*")
	if p.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", p.cfg.UserAgent)
	}
	if p.cfg.Referer != "" {
		req.Header.Set("Referer", p.cfg.Referer)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: %s returned %s", ErrTileUnavailable, key, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	metrics.TileFetchDuration.WithLabelValues(key.Layer.String()).Observe(time.Since(start).Seconds())
	p.log.Debug("fetched tile",
		zap.String("key", key.String()),
		zap.Int("bytes", len(data)),
		zap.Duration("took", time.Since(start)))
	return data, nil
}
