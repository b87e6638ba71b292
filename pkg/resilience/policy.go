package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/kart-io/logger"

	"github.com/mycvconnect/mhire/pkg/utils/requestid"
)

// Observer receives per-attempt call outcomes and breaker transitions.
// Implementations must be safe for concurrent use and must not block.
type Observer interface {
	ObserveCall(upstream string, d time.Duration, err error)
	ObserveBreaker(upstream string, from, to State)
}

// Policy is the retry policy shared by every upstream client. Retries use
// one RetryConfig; each named upstream gets its own circuit breaker.
type Policy struct {
	retry   *RetryConfig
	breaker *CircuitBreakerConfig

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
	observer Observer
}

// NewPolicy creates a Policy. A nil breaker config disables breaking.
func NewPolicy(retry *RetryConfig, breaker *CircuitBreakerConfig) *Policy {
	if retry == nil {
		retry = DefaultRetryConfig()
	}
	if breaker == nil {
		breaker = &CircuitBreakerConfig{}
	}
	return &Policy{
		retry:    retry,
		breaker:  breaker,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// NoRetry returns a Policy that calls fn exactly once. Useful in tests.
func NoRetry() *Policy {
	return NewPolicy(&RetryConfig{MaxAttempts: 1, Multiplier: 1}, nil)
}

// SetObserver attaches o to the policy. Breakers created before the call
// do not report transitions, so set it before the first Do.
func (p *Policy) SetObserver(o Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observer = o
}

func (p *Policy) getObserver() Observer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.observer
}

// Do runs fn against upstream with backoff and the upstream's breaker.
// Final failures are logged with the upstream name and request id.
func (p *Policy) Do(ctx context.Context, upstream string, fn func(context.Context) error) error {
	cb := p.Breaker(upstream)
	obs := p.getObserver()
	err := RetryWithBackoff(ctx, p.retry, func(ctx context.Context) error {
		return cb.Execute(func() error {
			start := time.Now()
			err := fn(ctx)
			if obs != nil {
				obs.ObserveCall(upstream, time.Since(start), err)
			}
			return err
		})
	})
	if err != nil {
		logger.Warnw("upstream call failed",
			"upstream", upstream,
			"request_id", requestid.FromContext(ctx),
			"breaker", cb.State().String(),
			"error", err.Error(),
		)
	}
	return err
}

// Breaker returns the breaker of upstream, creating it on first use.
func (p *Policy) Breaker(upstream string) *CircuitBreaker {
	p.mu.Lock()
	defer p.mu.Unlock()
	cb, ok := p.breakers[upstream]
	if !ok {
		cfg := *p.breaker
		if obs := p.observer; obs != nil {
			next := cfg.OnStateChange
			cfg.OnStateChange = func(name string, from, to State) {
				obs.ObserveBreaker(name, from, to)
				if next != nil {
					next(name, from, to)
				}
			}
		}
		cb = NewCircuitBreaker(upstream, &cfg)
		p.breakers[upstream] = cb
	}
	return cb
}
