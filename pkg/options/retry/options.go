// Package retry provides the retry policy shared by every upstream client.
package retry

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/mycvconnect/mhire/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options configures bounded exponential backoff and the circuit breaker
// in front of the embedding, chat and face services.
type Options struct {
	MaxAttempts  int           `json:"max-attempts" mapstructure:"max-attempts"`
	InitialDelay time.Duration `json:"initial-delay" mapstructure:"initial-delay"`
	MaxDelay     time.Duration `json:"max-delay" mapstructure:"max-delay"`
	Multiplier   float64       `json:"multiplier" mapstructure:"multiplier"`
	// Jitter spreads each delay by up to ±Jitter of itself.
	Jitter float64 `json:"jitter" mapstructure:"jitter"`

	// BreakerThreshold is the number of consecutive failures that opens
	// the breaker; zero disables it.
	BreakerThreshold int           `json:"breaker-threshold" mapstructure:"breaker-threshold"`
	BreakerTimeout   time.Duration `json:"breaker-timeout" mapstructure:"breaker-timeout"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		MaxAttempts:      3,
		InitialDelay:     500 * time.Millisecond,
		MaxDelay:         8 * time.Second,
		Multiplier:       2.0,
		Jitter:           0.2,
		BreakerThreshold: 5,
		BreakerTimeout:   30 * time.Second,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "retry."
	fs.IntVar(&o.MaxAttempts, p+"max-attempts", o.MaxAttempts, "Attempts per upstream call, the first included.")
	fs.DurationVar(&o.InitialDelay, p+"initial-delay", o.InitialDelay, "Delay before the first retry.")
	fs.DurationVar(&o.MaxDelay, p+"max-delay", o.MaxDelay, "Upper bound of a single backoff delay.")
	fs.Float64Var(&o.Multiplier, p+"multiplier", o.Multiplier, "Backoff growth factor.")
	fs.Float64Var(&o.Jitter, p+"jitter", o.Jitter, "Random spread of each backoff delay, as a fraction in [0,1].")
	fs.IntVar(&o.BreakerThreshold, p+"breaker-threshold", o.BreakerThreshold, "Consecutive failures that open the circuit (0 disables).")
	fs.DurationVar(&o.BreakerTimeout, p+"breaker-timeout", o.BreakerTimeout, "Time an open circuit waits before letting a trial call through.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.max-attempts must be at least 1"))
	}
	if o.InitialDelay < 0 || o.MaxDelay < o.InitialDelay {
		errs = append(errs, fmt.Errorf("retry delays must satisfy 0 <= initial-delay <= max-delay"))
	}
	if o.Multiplier < 1 {
		errs = append(errs, fmt.Errorf("retry.multiplier must be >= 1"))
	}
	if o.Jitter < 0 || o.Jitter > 1 {
		errs = append(errs, fmt.Errorf("retry.jitter must be within [0,1]"))
	}
	if o.BreakerThreshold < 0 {
		errs = append(errs, fmt.Errorf("retry.breaker-threshold cannot be negative"))
	}
	return errs
}
