package tiles

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"sync"

	"go.uber.org/zap"
	_ "golang.org/x/image/webp"

	"github.com/olablt/gio-trackmap/metrics"
	"github.com/olablt/gio-trackmap/tiles/worker"
)

// Fetcher loads the raw bytes of a tile from persistent or remote storage.
type Fetcher interface {
	Fetch(ctx context.Context, key Key) ([]byte, Source, error)
}

// Request describes the tiles the viewport wants resident.
type Request struct {
	Layer  Layer
	Zoom   int
	Window Window
	// Center is the tile holding the viewport center; nearer tiles are fetched first.
	Center Tile
}

func (r Request) sameTiles(o Request) bool {
	return r.Layer == o.Layer && r.Zoom == o.Zoom && r.Window == o.Window
}

// Ready is posted by a background task when a tile finished loading.
type Ready struct {
	Key    Key
	Image  image.Image
	Source Source
	Err    error
	gen    uint64
}

// Loader keeps the memory cache populated with the tiles of the active
// request. Request and Drain must be called from the goroutine owning the
// cache; fetching and decoding run on the worker pool and report back
// through a channel.
type Loader struct {
	cache   Cache
	fetcher Fetcher
	pool    *worker.Pool
	log     *zap.Logger

	results   chan Ready
	onLoad    func()
	closed    chan struct{}
	closeOnce sync.Once

	active    Request
	hasActive bool
	gen       uint64
	cancel    context.CancelFunc
	total     int
	done      int
}

func NewLoader(cache Cache, fetcher Fetcher, pool *worker.Pool, log *zap.Logger) *Loader {
	return &Loader{
		cache:   cache,
		fetcher: fetcher,
		pool:    pool,
		log:     log.Named("loader"),
		results: make(chan Ready, 64),
		closed:  make(chan struct{}),
	}
}

// SetOnLoadCallback registers fn to be called from background goroutines
// after a result was posted. It must be set before the first Request.
func (l *Loader) SetOnLoadCallback(fn func()) {
	l.onLoad = fn
}

func (l *Loader) Cache() Cache {
	return l.cache
}

// Active returns the current request.
func (l *Loader) Active() (Request, bool) {
	return l.active, l.hasActive
}

// Request makes req the active request. Queued fetches of the previous
// request are cancelled, the memory cache is pruned to req and the missing
// tiles are queued nearest to req.Center first. Repeating the active
// request is a no-op.
func (l *Loader) Request(req Request) {
	req.Center.Zoom = req.Zoom
	if l.hasActive && req.sameTiles(l.active) {
		return
	}
	if l.cancel != nil {
		l.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.active, l.hasActive = req, true
	l.gen++
	l.total, l.done = 0, 0

	evicted := EvictOutside(l.cache, req.Layer, req.Zoom, req.Window)

	gen := l.gen
	for _, t := range Plan(req.Window, req.Center) {
		key := NewKey(req.Layer, t)
		if _, ok := l.cache.Get(key); ok {
			metrics.TileLookups.WithLabelValues(req.Layer.String(), SourceMemory.String()).Inc()
			continue
		}
		l.total++
		l.pool.Submit(worker.Task{
			Ctx:      ctx,
			Priority: Distance2(t, req.Center),
			Work: func(ctx context.Context) error {
				return l.load(ctx, gen, key)
			},
		})
	}

	l.log.Debug("tile window requested",
		zap.Stringer("layer", req.Layer),
		zap.Int("zoom", req.Zoom),
		zap.Stringer("window", req.Window),
		zap.Int("queued", l.total),
		zap.Int("evicted", evicted))
}

// load runs on the worker pool.
func (l *Loader) load(ctx context.Context, gen uint64, key Key) error {
	// A started fetch is allowed to finish after its request was superseded;
	// the result is filtered in Drain.
	data, src, err := l.fetcher.Fetch(context.WithoutCancel(ctx), key)
	r := Ready{Key: key, Source: src, gen: gen}
	if err == nil {
		r.Image, _, err = image.Decode(bytes.NewReader(data))
		if err != nil {
			metrics.TileFetchErrors.WithLabelValues(key.Layer.String()).Inc()
			err = fmt.Errorf("decode %s: %w", key, err)
		}
	}
	r.Err = err
	l.post(r)
	return err
}

func (l *Loader) post(r Ready) {
	select {
	case l.results <- r:
	case <-l.closed:
		return
	}
	if l.onLoad != nil {
		l.onLoad()
	}
}

// Drain applies every posted result to the memory cache in arrival order
// and returns the keys that were added. Results for tiles outside the
// active request are dropped.
func (l *Loader) Drain() []Key {
	var added []Key
	for {
		select {
		case r := <-l.results:
			if r.gen == l.gen {
				l.done++
			}
			if !l.wants(r.Key) {
				metrics.StaleTiles.Inc()
				continue
			}
			if r.Err != nil {
				l.log.Debug("tile not loaded", zap.String("key", r.Key.String()), zap.Error(r.Err))
				continue
			}
			l.cache.Set(r.Key, r.Image)
			added = append(added, r.Key)
		default:
			return added
		}
	}
}

func (l *Loader) wants(k Key) bool {
	return l.hasActive &&
		k.Layer == l.active.Layer &&
		k.Zoom == l.active.Zoom &&
		l.active.Window.Contains(k.Row, k.Col)
}

// Progress reports how many tiles of the active request have completed,
// successfully or not, out of those that had to be fetched.
func (l *Loader) Progress() (done, total int) {
	return l.done, l.total
}

// Close cancels queued fetches and stops delivering results.
func (l *Loader) Close() {
	if l.cancel != nil {
		l.cancel()
	}
	l.closeOnce.Do(func() { close(l.closed) })
}
