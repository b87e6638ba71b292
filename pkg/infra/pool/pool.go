package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"
)

// Config defines the configuration for the worker pool.
type Config struct {
	// Capacity 池容量（最大并发 goroutine 数）
	Capacity int
	// ExpiryDuration goroutine 空闲过期时间
	ExpiryDuration time.Duration
	// Nonblocking 池满时 Submit 直接返回 ErrPoolOverload
	Nonblocking bool
	// MaxBlockingTasks 阻塞模式下最大等待任务数（0 表示无限制）
	MaxBlockingTasks int
}

// DefaultConfig returns a blocking pool sized for CPU-bound parsing.
func DefaultConfig(capacity int) *Config {
	if capacity <= 0 {
		capacity = 4
	}
	return &Config{
		Capacity:       capacity,
		ExpiryDuration: 10 * time.Second,
	}
}

// Pool is a named ants pool with task counters.
type Pool struct {
	name   string
	pool   *ants.Pool
	closed atomic.Bool

	submitted atomic.Int64
	completed atomic.Int64
	panics    atomic.Int64
}

// Stats is a snapshot of the task counters.
type Stats struct {
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Panics    int64 `json:"panics"`
}

// New creates a pool. A panicking task is logged and counted; it does not
// take the process down.
func New(name string, cfg *Config) (*Pool, error) {
	if cfg == nil {
		cfg = DefaultConfig(0)
	}
	p := &Pool{name: name}

	ap, err := ants.NewPool(cfg.Capacity,
		ants.WithExpiryDuration(cfg.ExpiryDuration),
		ants.WithNonblocking(cfg.Nonblocking),
		ants.WithMaxBlockingTasks(cfg.MaxBlockingTasks),
		ants.WithPanicHandler(func(r any) {
			p.panics.Add(1)
			logger.Errorw("worker panic recovered", "pool", name, "panic", r)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create ants pool %s: %w", name, err)
	}
	p.pool = ap
	return p, nil
}

// Name 返回池名称
func (p *Pool) Name() string { return p.name }

// Cap 返回池容量
func (p *Pool) Cap() int { return p.pool.Cap() }

// Running 返回正在运行的 goroutine 数量
func (p *Pool) Running() int { return p.pool.Running() }

// Submit 提交任务到池中执行
func (p *Pool) Submit(task func()) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	p.submitted.Add(1)
	err := p.pool.Submit(func() {
		defer p.completed.Add(1)
		task()
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ants.ErrPoolOverload):
		p.submitted.Add(-1)
		return ErrPoolOverload
	case errors.Is(err, ants.ErrPoolClosed):
		p.submitted.Add(-1)
		return ErrPoolClosed
	default:
		p.submitted.Add(-1)
		return err
	}
}

// ForEach runs fn for every index in [0, n) on the pool and waits for all
// submitted calls. Indexes not yet started when ctx is done are skipped;
// the context error is returned in that case.
func (p *Pool) ForEach(ctx context.Context, n int, fn func(ctx context.Context, i int)) error {
	var wg sync.WaitGroup
	var submitErr error
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			submitErr = err
			break
		}
		wg.Add(1)
		i := i
		if err := p.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			fn(ctx, i)
		}); err != nil {
			wg.Done()
			submitErr = err
			break
		}
	}
	wg.Wait()
	if submitErr != nil {
		return submitErr
	}
	return ctx.Err()
}

// Stats 返回统计快照
func (p *Pool) Stats() Stats {
	return Stats{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Panics:    p.panics.Load(),
	}
}

// Release 关闭池，等待运行中的任务直到 timeout
func (p *Pool) Release(timeout time.Duration) error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.pool.ReleaseTimeout(timeout)
}
