// Package session provides options for conversation history storage.
package session

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/mycvconnect/mhire/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Session store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Options configures where chat sessions live.
type Options struct {
	Backend string `json:"backend" mapstructure:"backend"`
	// TTL expires idle sessions; zero keeps them forever.
	TTL time.Duration `json:"ttl" mapstructure:"ttl"`
	// MaxTurns bounds stored history per session; zero means unbounded.
	MaxTurns int `json:"max-turns" mapstructure:"max-turns"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Backend:  BackendMemory,
		TTL:      24 * time.Hour,
		MaxTurns: 100,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "session."
	fs.StringVar(&o.Backend, p+"backend", o.Backend, "Session store: memory or redis.")
	fs.DurationVar(&o.TTL, p+"ttl", o.TTL, "Idle session expiry (0 keeps sessions).")
	fs.IntVar(&o.MaxTurns, p+"max-turns", o.MaxTurns, "Stored turns per session (0 is unbounded).")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Backend != BackendMemory && o.Backend != BackendRedis {
		errs = append(errs, fmt.Errorf("session.backend must be %q or %q", BackendMemory, BackendRedis))
	}
	if o.TTL < 0 {
		errs = append(errs, fmt.Errorf("session.ttl cannot be negative"))
	}
	if o.MaxTurns < 0 {
		errs = append(errs, fmt.Errorf("session.max-turns cannot be negative"))
	}
	return errs
}
