package tiles

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"go.uber.org/zap"
)

func TestHTTPProviderFetch(t *testing.T) {
	var gotPath, gotReferer, gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.RequestURI()
		gotReferer = r.Header.Get("Referer")
		gotAgent = r.Header.Get("User-Agent")
		if r.URL.Query().Get("k") != "secret" {
			http.Error(w, "bad key", http.StatusForbidden)
			return
		}
		w.Write([]byte("tile-bytes"))
	}))
	defer srv.Close()

	p := NewHTTPProvider(HTTPConfig{
		Templates: map[Layer]string{
			LayerMap: srv.URL + "/{z}/{x}/{y}.png?k={apikey}",
		},
		APIKey:    "secret",
		Referer:   "https://example.org/",
		UserAgent: "trackmap-test",
	}, zap.NewNop())

	data, err := p.FetchTile(context.Background(), NewKey(LayerMap, Tile{Zoom: 7, Row: 44, Col: 66}))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "tile-bytes" {
		t.Fatalf("body = %q", data)
	}
	if gotPath != "/7/66/44.png?k=secret" {
		t.Errorf("path = %s", gotPath)
	}
	if gotReferer != "https://example.org/" || gotAgent != "trackmap-test" {
		t.Errorf("headers: referer=%q agent=%q", gotReferer, gotAgent)
	}
}

func TestHTTPProviderUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	p := NewHTTPProvider(HTTPConfig{
		Templates: map[Layer]string{LayerMap: srv.URL + "/{key}"},
	}, zap.NewNop())

	_, err := p.FetchTile(context.Background(), NewKey(LayerMap, Tile{Zoom: 1}))
	if !errors.Is(err, ErrTileUnavailable) {
		t.Fatalf("err = %v, want ErrTileUnavailable", err)
	}

	if _, err := p.FetchTile(context.Background(), NewKey(LayerSatellite, Tile{Zoom: 1})); err == nil {
		t.Fatal("expected an error for a layer without template")
	}
}

func TestHTTPProviderProxy(t *testing.T) {
	var proxiedHost string
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxiedHost = r.Host
		w.Write([]byte("via-proxy"))
	}))
	defer proxy.Close()

	host, port, err := net.SplitHostPort(proxy.Listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	portNum, _ := strconv.Atoi(port)

	p := NewHTTPProvider(HTTPConfig{
		Templates: map[Layer]string{LayerMap: "http://tiles.invalid/{z}/{x}/{y}.png"},
		ProxyHost: host,
		ProxyPort: portNum,
	}, zap.NewNop())

	data, err := p.FetchTile(context.Background(), NewKey(LayerMap, Tile{Zoom: 2, Row: 1, Col: 3}))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "via-proxy" || proxiedHost != "tiles.invalid" {
		t.Fatalf("got %q for host %q", data, proxiedHost)
	}
}
