package worker

import (
	"container/heap"
	"context"
	"sync"

	"go.uber.org/zap"
)

// Pool runs tasks on a fixed number of goroutines, lowest Priority first.
// Tasks of equal priority run in submission order.
type Pool struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  taskQueue
	seq    uint64
	closed bool
	wg     sync.WaitGroup
	log    *zap.Logger
}

type Task struct {
	// Ctx is passed to Work. A task whose Ctx is done before it starts is dropped.
	Ctx      context.Context
	Work     func(ctx context.Context) error
	Priority int
}

func NewPool(maxWorkers int, log *zap.Logger) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	p := &Pool{log: log.Named("pool")}
	p.cond = sync.NewCond(&p.mu)
	p.wg.Add(maxWorkers)
	for i := 0; i < maxWorkers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if p.closed {
			p.mu.Unlock()
			return
		}
		item := heap.Pop(&p.queue).(*queued)
		p.mu.Unlock()

		task := item.task
		if task.Ctx.Err() != nil {
			continue
		}
		if err := task.Work(task.Ctx); err != nil {
			p.log.Debug("task failed", zap.Int("priority", task.Priority), zap.Error(err))
		}
	}
}

// Submit queues task. It returns false once the pool is shut down.
func (p *Pool) Submit(task Task) bool {
	if task.Ctx == nil {
		task.Ctx = context.Background()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.seq++
	heap.Push(&p.queue, &queued{task: task, seq: p.seq})
	p.cond.Signal()
	return true
}

// Pending returns the number of queued tasks not yet started.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Shutdown drops queued tasks and waits for running ones to return.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.queue = nil
	p.cond.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()
}

type queued struct {
	task Task
	seq  uint64
}

type taskQueue []*queued

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if q[i].task.Priority != q[j].task.Priority {
		return q[i].task.Priority < q[j].task.Priority
	}
	return q[i].seq < q[j].seq
}

func (q taskQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *taskQueue) Push(x any) { *q = append(*q, x.(*queued)) }

func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}
