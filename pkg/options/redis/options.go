// Package redis provides Redis options.
package redis

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/mycvconnect/mhire/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// redactedPassword is the placeholder used when serializing passwords.
const redactedPassword = "[REDACTED]"

// Options defines configuration options for Redis.
//
// Redis is optional: it backs the shared session store and the
// query-embedding cache when Enabled is set. Without it sessions stay in
// process memory and the cache is off.
type Options struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	Host         string        `json:"host" mapstructure:"host"`
	Port         int           `json:"port" mapstructure:"port"`
	Password     string        `json:"-" mapstructure:"password"`
	Database     int           `json:"database" mapstructure:"database"`
	MaxRetries   int           `json:"max-retries" mapstructure:"max-retries"`
	PoolSize     int           `json:"pool-size" mapstructure:"pool-size"`
	MinIdleConns int           `json:"min-idle-conns" mapstructure:"min-idle-conns"`
	DialTimeout  time.Duration `json:"dial-timeout" mapstructure:"dial-timeout"`
	ReadTimeout  time.Duration `json:"read-timeout" mapstructure:"read-timeout"`
	WriteTimeout time.Duration `json:"write-timeout" mapstructure:"write-timeout"`
	PoolTimeout  time.Duration `json:"pool-timeout" mapstructure:"pool-timeout"`
	// KeyPrefix namespaces every key written by this service.
	KeyPrefix string `json:"key-prefix" mapstructure:"key-prefix"`
}

type optionsForJSON struct {
	Enabled   bool   `json:"enabled"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Password  string `json:"password"`
	Database  int    `json:"database"`
	PoolSize  int    `json:"pool-size"`
	KeyPrefix string `json:"key-prefix"`
}

// MarshalJSON implements json.Marshaler with password redaction.
func (o *Options) MarshalJSON() ([]byte, error) {
	password := redactedPassword
	if o.Password == "" {
		password = ""
	}
	return json.Marshal(optionsForJSON{
		Enabled:   o.Enabled,
		Host:      o.Host,
		Port:      o.Port,
		Password:  password,
		Database:  o.Database,
		PoolSize:  o.PoolSize,
		KeyPrefix: o.KeyPrefix,
	})
}

// String returns a string representation with password redacted.
func (o *Options) String() string {
	password := redactedPassword
	if o.Password == "" {
		password = ""
	}
	return fmt.Sprintf("Redis{host=%s, port=%d, password=%s, database=%d}",
		o.Host, o.Port, password, o.Database)
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		Enabled:      false,
		Host:         "127.0.0.1",
		Port:         6379,
		MaxRetries:   3,
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
		KeyPrefix:    "mhire:",
	}
}

// Addr returns host:port.
func (o *Options) Addr() string {
	return fmt.Sprintf("%s:%d", o.Host, o.Port)
}

// Complete reads the password from REDIS_PASSWORD when it was not set.
func (o *Options) Complete() error {
	if o.Password == "" {
		o.Password = os.Getenv("REDIS_PASSWORD")
	}
	return nil
}

// Validate checks if the options are valid.
func (o *Options) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	var errs []error
	if o.Host == "" {
		errs = append(errs, fmt.Errorf("redis.host is required"))
	}
	if o.Port <= 0 || o.Port > 65535 {
		errs = append(errs, fmt.Errorf("redis.port must be between 1 and 65535"))
	}
	if o.Database < 0 {
		errs = append(errs, fmt.Errorf("redis.database cannot be negative"))
	}
	if o.PoolSize <= 0 {
		errs = append(errs, fmt.Errorf("redis.pool-size must be positive"))
	}
	return errs
}

// AddFlags adds flags for Redis options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "redis."
	fs.BoolVar(&o.Enabled, p+"enabled", o.Enabled, "Use Redis for sessions and the query-embedding cache.")
	fs.StringVar(&o.Host, p+"host", o.Host, "Redis host.")
	fs.IntVar(&o.Port, p+"port", o.Port, "Redis port.")
	fs.StringVar(&o.Password, p+"password", o.Password, "Redis password (DEPRECATED: use REDIS_PASSWORD env var instead).")
	fs.IntVar(&o.Database, p+"database", o.Database, "Redis database.")
	fs.IntVar(&o.MaxRetries, p+"max-retries", o.MaxRetries, "Redis max retries.")
	fs.IntVar(&o.PoolSize, p+"pool-size", o.PoolSize, "Redis pool size.")
	fs.IntVar(&o.MinIdleConns, p+"min-idle-conns", o.MinIdleConns, "Redis min idle connections.")
	fs.DurationVar(&o.DialTimeout, p+"dial-timeout", o.DialTimeout, "Redis dial timeout.")
	fs.DurationVar(&o.ReadTimeout, p+"read-timeout", o.ReadTimeout, "Redis read timeout.")
	fs.DurationVar(&o.WriteTimeout, p+"write-timeout", o.WriteTimeout, "Redis write timeout.")
	fs.DurationVar(&o.PoolTimeout, p+"pool-timeout", o.PoolTimeout, "Redis pool timeout.")
	fs.StringVar(&o.KeyPrefix, p+"key-prefix", o.KeyPrefix, "Prefix applied to every key.")
}
