// Package resilience 提供上游调用的韧性模式：带抖动的指数退避重试与熔断器。
//
// 所有上游（embedding、chat、Face++）共享同一个 Policy，每个上游拥有
// 独立的熔断器。
package resilience

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/kart-io/logger"

	"github.com/mycvconnect/mhire/pkg/utils/requestid"
)

// RetryConfig 重试配置。
type RetryConfig struct {
	// MaxAttempts 最大尝试次数（包括首次调用）。
	MaxAttempts int
	// InitialDelay 初始延迟时间。
	InitialDelay time.Duration
	// MaxDelay 单次延迟上限。
	MaxDelay time.Duration
	// Multiplier 延迟倍增因子。
	Multiplier float64
	// Jitter 随机抖动比例（0-1），实际延迟在 delay*(1±Jitter) 之间且不超过 MaxDelay。
	Jitter float64
	// Retryable 判断错误是否可重试，为空时使用 IsRetryable。
	Retryable func(error) bool
}

// DefaultRetryConfig 返回默认重试配置。
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     8 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.2,
		Retryable:    IsRetryable,
	}
}

// Backoff returns the delay before retry number attempt (1-based).
func (c *RetryConfig) Backoff(attempt int) time.Duration {
	delay := float64(c.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= c.Multiplier
		if time.Duration(delay) >= c.MaxDelay {
			return c.MaxDelay
		}
	}
	if time.Duration(delay) > c.MaxDelay {
		return c.MaxDelay
	}
	return time.Duration(delay)
}

// jittered spreads d by the configured jitter so callers that failed
// together do not retry in lockstep.
func (c *RetryConfig) jittered(d time.Duration) time.Duration {
	if c.Jitter <= 0 || d <= 0 {
		return d
	}
	j := min(c.Jitter, 1)
	d = time.Duration(float64(d) * (1 + j*(2*rand.Float64()-1)))
	if c.MaxDelay > 0 && d > c.MaxDelay {
		return c.MaxDelay
	}
	return d
}

// RetryWithBackoff 使用带抖动的指数退避重试 fn。ctx 取消时立即返回。
// 耗尽次数后返回的错误包装最后一次失败。
func RetryWithBackoff(ctx context.Context, config *RetryConfig, fn func(context.Context) error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	retryable := config.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}
	attempts := config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return err
		}
		if !retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		delay := config.jittered(config.Backoff(attempt))
		if hint := retryAfter(err); hint > delay {
			delay = min(hint, config.MaxDelay)
		}
		logger.Debugw("retrying after delay",
			"attempt", attempt,
			"delay", delay,
			"request_id", requestid.FromContext(ctx),
			"error", err.Error(),
		)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		}
	}

	return fmt.Errorf("max retry attempts (%d) reached: %w", attempts, lastErr)
}
