// Package http provides HTTP server configuration options.
package http

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/mycvconnect/mhire/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains HTTP server configuration.
type Options struct {
	// Addr is the address to listen on.
	Addr string `json:"addr" mapstructure:"addr"`
	// ReadTimeout bounds reading the entire request, multipart bodies included.
	ReadTimeout time.Duration `json:"read-timeout" mapstructure:"read-timeout"`
	// WriteTimeout bounds writing the response. Chat calls wait on the LLM,
	// so it must exceed the upstream timeout.
	WriteTimeout time.Duration `json:"write-timeout" mapstructure:"write-timeout"`
	// IdleTimeout is the keep-alive idle timeout.
	IdleTimeout time.Duration `json:"idle-timeout" mapstructure:"idle-timeout"`
	// MaxBodyBytes caps request bodies; uploads above it get 413.
	MaxBodyBytes int64 `json:"max-body-bytes" mapstructure:"max-body-bytes"`
	// BasePath is the versioned route prefix. Routes are also mounted at root.
	BasePath string `json:"base-path" mapstructure:"base-path"`
	// Mode is the gin mode (debug, release, test).
	Mode string `json:"mode" mapstructure:"mode"`
}

// NewOptions creates a new Options with default values.
func NewOptions() *Options {
	return &Options{
		Addr:         ":8000",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 150 * time.Second,
		IdleTimeout:  60 * time.Second,
		MaxBodyBytes: 12 << 20,
		BasePath:     "/api/v1",
		Mode:         "release",
	}
}

// AddFlags adds flags for HTTP options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "http."
	fs.StringVar(&o.Addr, p+"addr", o.Addr, "HTTP server bind address and port.")
	fs.DurationVar(&o.ReadTimeout, p+"read-timeout", o.ReadTimeout, "Timeout for reading the entire request.")
	fs.DurationVar(&o.WriteTimeout, p+"write-timeout", o.WriteTimeout, "Timeout before timing out writes of the response.")
	fs.DurationVar(&o.IdleTimeout, p+"idle-timeout", o.IdleTimeout, "Maximum amount of time to wait for the next request.")
	fs.Int64Var(&o.MaxBodyBytes, p+"max-body-bytes", o.MaxBodyBytes, "Maximum accepted request body size in bytes.")
	fs.StringVar(&o.BasePath, p+"base-path", o.BasePath, "Versioned route prefix.")
	fs.StringVar(&o.Mode, p+"mode", o.Mode, "Gin mode: debug, release or test.")
}

// Validate validates the HTTP options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Addr == "" {
		errs = append(errs, fmt.Errorf("http.addr cannot be empty"))
	}
	if o.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("http.read-timeout must be positive"))
	}
	if o.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("http.write-timeout must be positive"))
	}
	if o.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("http.max-body-bytes must be positive"))
	}
	switch o.Mode {
	case "debug", "release", "test":
	default:
		errs = append(errs, fmt.Errorf("http.mode must be one of debug, release, test"))
	}
	return errs
}

// Complete completes the HTTP options with defaults.
func (o *Options) Complete() error {
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = 60 * time.Second
	}
	return nil
}
