package elevation

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/olablt/gio-trackmap/metrics"
	"github.com/olablt/gio-trackmap/tiles"
	"github.com/olablt/gio-trackmap/tiles/worker"
	"github.com/olablt/gio-trackmap/track"
)

const (
	DefaultBatchSize = 50

	// batches queue behind every tile fetch
	batchPriority = 1 << 20
)

// Result is posted by a background batch.
type Result struct {
	Indices    []int
	Elevations []float64
	Err        error

	gen      uint64
	revision uint64
}

// Corrector fetches model elevations for the points of a track that lack
// one. Start and Drain must be called from the goroutine owning the track;
// queries run on the worker pool.
type Corrector struct {
	svc   Service
	pool  *worker.Pool
	batch int
	log   *zap.Logger

	results   chan Result
	onResult  func()
	closed    chan struct{}
	closeOnce sync.Once

	gen    uint64
	cancel context.CancelFunc
}

func NewCorrector(svc Service, pool *worker.Pool, batchSize int, log *zap.Logger) *Corrector {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Corrector{
		svc:     svc,
		pool:    pool,
		batch:   batchSize,
		log:     log.Named("corrector"),
		results: make(chan Result, 16),
		closed:  make(chan struct{}),
	}
}

// SetOnResultCallback registers fn to be called from background goroutines
// after a batch result was posted.
func (c *Corrector) SetOnResultCallback(fn func()) {
	c.onResult = fn
}

// Start cancels running batches and queues new ones for every point of t
// without a model elevation. It returns the number of queued batches.
func (c *Corrector) Start(t *track.Track) int {
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.gen++

	pending := t.PendingElevations()
	gen, rev := c.gen, t.Revision()
	n := 0
	for start := 0; start < len(pending); start += c.batch {
		idx := pending[start:min(start+c.batch, len(pending))]
		pts := make([]tiles.LatLng, len(idx))
		for k, i := range idx {
			pts[k] = t.At(i).Position()
		}
		c.pool.Submit(worker.Task{
			Ctx:      ctx,
			Priority: batchPriority,
			Work: func(ctx context.Context) error {
				elev, err := c.svc.Elevations(ctx, pts)
				c.post(ctx, Result{Indices: idx, Elevations: elev, Err: err, gen: gen, revision: rev})
				return err
			},
		})
		n++
	}
	if n > 0 {
		c.log.Debug("elevation correction started", zap.Int("points", len(pending)), zap.Int("batches", n))
	}
	return n
}

func (c *Corrector) post(ctx context.Context, r Result) {
	select {
	case c.results <- r:
	case <-ctx.Done():
		return
	case <-c.closed:
		return
	}
	if c.onResult != nil {
		c.onResult()
	}
}

// Drain stores the elevations of finished batches on t and returns the
// number of updated points. Batches started before t was last edited are
// dropped.
func (c *Corrector) Drain(t *track.Track) int {
	updated := 0
	for {
		select {
		case r := <-c.results:
			if r.gen != c.gen || r.revision != t.Revision() {
				metrics.ElevationBatches.WithLabelValues("stale").Inc()
				continue
			}
			if r.Err != nil {
				metrics.ElevationBatches.WithLabelValues("failed").Inc()
				c.log.Warn("elevation batch failed", zap.Int("points", len(r.Indices)), zap.Error(r.Err))
				continue
			}
			metrics.ElevationBatches.WithLabelValues("ok").Inc()
			t.SetModelElevations(r.Indices, r.Elevations)
			updated += len(r.Indices)
		default:
			return updated
		}
	}
}

// Close cancels queued batches and stops delivering results.
func (c *Corrector) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	c.closeOnce.Do(func() { close(c.closed) })
}
