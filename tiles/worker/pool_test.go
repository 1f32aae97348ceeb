package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// blockPool occupies the single worker of p until the returned func is called.
func blockPool(t *testing.T, p *Pool) func() {
	t.Helper()
	started := make(chan struct{})
	release := make(chan struct{})
	p.Submit(Task{
		Ctx: context.Background(),
		Work: func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		},
	})
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not start")
	}
	return func() { close(release) }
}

func TestPoolRunsLowestPriorityFirst(t *testing.T) {
	p := NewPool(1, zap.NewNop())
	defer p.Shutdown()
	release := blockPool(t, p)

	var (
		mu    sync.Mutex
		order []string
		wg    sync.WaitGroup
	)
	submit := func(name string, prio int) {
		wg.Add(1)
		p.Submit(Task{
			Ctx:      context.Background(),
			Priority: prio,
			Work: func(ctx context.Context) error {
				defer wg.Done()
				mu.Lock()
				order = append(order, name)
				mu.Unlock()
				return nil
			},
		})
	}
	submit("five", 5)
	submit("one-a", 1)
	submit("three", 3)
	submit("one-b", 1)
	submit("zero", 0)
	if n := p.Pending(); n != 5 {
		t.Fatalf("Pending = %d", n)
	}
	release()
	wg.Wait()

	want := []string{"zero", "one-a", "one-b", "three", "five"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestPoolSkipsCancelledTasks(t *testing.T) {
	p := NewPool(1, zap.NewNop())
	defer p.Shutdown()
	release := blockPool(t, p)

	ctx, cancel := context.WithCancel(context.Background())
	ran := false
	p.Submit(Task{Ctx: ctx, Work: func(ctx context.Context) error {
		ran = true
		return nil
	}})
	cancel()

	done := make(chan struct{})
	p.Submit(Task{Ctx: context.Background(), Priority: 1, Work: func(ctx context.Context) error {
		close(done)
		return nil
	}})
	release()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("marker task did not run")
	}
	if ran {
		t.Fatal("cancelled task ran")
	}
}

func TestPoolShutdown(t *testing.T) {
	p := NewPool(2, zap.NewNop())
	p.Shutdown()
	if p.Submit(Task{Work: func(ctx context.Context) error { return nil }}) {
		t.Fatal("Submit accepted a task after Shutdown")
	}
	p.Shutdown()
}
