package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kart-io/logger"
)

// ErrCircuitBreakerOpen 熔断器打开错误。
var ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig 熔断器配置。
type CircuitBreakerConfig struct {
	// MaxFailures 触发熔断的连续失败次数，0 表示禁用。
	MaxFailures int
	// Timeout 熔断器打开后进入半开状态前的等待时间。
	Timeout time.Duration
	// HalfOpenMaxCalls 半开状态允许的探测调用次数。
	HalfOpenMaxCalls int
	// OnStateChange 状态切换回调，在持有锁时调用，不能阻塞或回调熔断器。
	OnStateChange func(name string, from, to State)
}

// DefaultCircuitBreakerConfig 返回默认熔断器配置。
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		MaxFailures:      5,
		Timeout:          30 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// State 熔断器状态。
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker 熔断器实现。
type CircuitBreaker struct {
	name   string
	config CircuitBreakerConfig
	now    func() time.Time

	mu                sync.Mutex
	state             State
	failures          int
	openedAt          time.Time
	halfOpenCalls     int
	halfOpenSuccesses int
}

// NewCircuitBreaker 创建熔断器。
func NewCircuitBreaker(name string, config *CircuitBreakerConfig) *CircuitBreaker {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}
	cfg := *config
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}
	return &CircuitBreaker{
		name:   name,
		config: cfg,
		now:    time.Now,
		state:  StateClosed,
	}
}

// Execute 通过熔断器执行函数。
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if cb.config.MaxFailures <= 0 {
		return fn()
	}
	if err := cb.beforeCall(); err != nil {
		return err
	}
	err := fn()
	cb.afterCall(err)
	return err
}

func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.config.Timeout {
			return ErrCircuitBreakerOpen
		}
		logger.Infow("circuit breaker transitioning to half-open", "upstream", cb.name)
		cb.setState(StateHalfOpen)
		cb.halfOpenCalls = 1
		cb.halfOpenSuccesses = 0
		return nil
	case StateHalfOpen:
		if cb.halfOpenCalls >= cb.config.HalfOpenMaxCalls {
			return ErrCircuitBreakerOpen
		}
		cb.halfOpenCalls++
		return nil
	}
	return ErrCircuitBreakerOpen
}

func (cb *CircuitBreaker) afterCall(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch {
	case err == nil:
		cb.onSuccess(true)
		return
	case errors.Is(err, context.Canceled):
		// 调用方放弃，不能说明上游状态：仅释放半开调用名额。
		if cb.state == StateHalfOpen && cb.halfOpenCalls > 0 {
			cb.halfOpenCalls--
		}
		return
	case !upstreamFailed(err):
		// 非上游故障（如参数错误）说明上游已正常应答，不计入失败。
		cb.onSuccess(false)
		return
	}

	cb.failures++
	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.config.MaxFailures {
			logger.Warnw("circuit breaker opening",
				"upstream", cb.name,
				"failures", cb.failures,
				"max_failures", cb.config.MaxFailures,
			)
			cb.setState(StateOpen)
			cb.openedAt = cb.now()
		}
	case StateHalfOpen:
		logger.Warnw("circuit breaker re-opening after half-open failure", "upstream", cb.name)
		cb.setState(StateOpen)
		cb.openedAt = cb.now()
	}
}

// onSuccess handles an answered call. reset clears the failure streak,
// which only a successful call does.
func (cb *CircuitBreaker) onSuccess(reset bool) {
	switch cb.state {
	case StateClosed:
		if reset {
			cb.failures = 0
		}
	case StateHalfOpen:
		cb.halfOpenSuccesses++
		if cb.halfOpenSuccesses >= cb.halfOpenCalls {
			logger.Infow("circuit breaker transitioning to closed", "upstream", cb.name)
			cb.setState(StateClosed)
			cb.failures = 0
			cb.halfOpenCalls = 0
			cb.halfOpenSuccesses = 0
		}
	}
}

func (cb *CircuitBreaker) setState(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.name, from, to)
	}
}

// State 获取当前状态。
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset 重置熔断器状态。
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.setState(StateClosed)
	cb.failures = 0
	cb.halfOpenCalls = 0
	cb.halfOpenSuccesses = 0
}
