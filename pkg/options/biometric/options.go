// Package biometric provides options for the face comparison service.
package biometric

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/mycvconnect/mhire/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options configures the Face++ client and the match policy.
type Options struct {
	BaseURL   string `json:"base-url" mapstructure:"base-url"`
	APIKey    string `json:"-" mapstructure:"api-key"`
	APISecret string `json:"-" mapstructure:"api-secret"`

	// Threshold is the confidence (0-100) at or above which two faces match.
	Threshold float64 `json:"threshold" mapstructure:"threshold"`

	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// QPS limits outbound calls; the free Face++ tier allows a handful.
	QPS   float64 `json:"qps" mapstructure:"qps"`
	Burst int     `json:"burst" mapstructure:"burst"`

	// MaxUploadBytes caps each uploaded image before normalisation.
	MaxUploadBytes int64 `json:"max-upload-bytes" mapstructure:"max-upload-bytes"`

	// HistoryLimit caps the records returned per user; zero returns all.
	HistoryLimit int `json:"history-limit" mapstructure:"history-limit"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		BaseURL:        "https://api-us.faceplusplus.com",
		Threshold:      75,
		Timeout:        30 * time.Second,
		QPS:            2,
		Burst:          2,
		MaxUploadBytes: 10 << 20,
		HistoryLimit:   100,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "biometric."
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "Face++ API base URL.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "Face++ API key (or FACEPP_API_KEY).")
	fs.StringVar(&o.APISecret, p+"api-secret", o.APISecret, "Face++ API secret (or FACEPP_API_SECRET).")
	fs.Float64Var(&o.Threshold, p+"threshold", o.Threshold, "Match confidence threshold (50-95).")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Face++ request timeout.")
	fs.Float64Var(&o.QPS, p+"qps", o.QPS, "Maximum Face++ requests per second.")
	fs.IntVar(&o.Burst, p+"burst", o.Burst, "Face++ request burst size.")
	fs.Int64Var(&o.MaxUploadBytes, p+"max-upload-bytes", o.MaxUploadBytes, "Maximum accepted image size in bytes.")
	fs.IntVar(&o.HistoryLimit, p+"history-limit", o.HistoryLimit, "Records returned per verification history request (0 is unbounded).")
}

// Complete reads the credentials from the environment when unset.
func (o *Options) Complete() error {
	if o.APIKey == "" {
		o.APIKey = os.Getenv("FACEPP_API_KEY")
	}
	if o.APISecret == "" {
		o.APISecret = os.Getenv("FACEPP_API_SECRET")
	}
	if o.Burst <= 0 {
		o.Burst = 1
	}
	return nil
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.BaseURL == "" {
		errs = append(errs, fmt.Errorf("biometric.base-url is required"))
	}
	if o.APIKey == "" || o.APISecret == "" {
		errs = append(errs, fmt.Errorf("biometric.api-key and biometric.api-secret are required"))
	}
	if o.Threshold < 50 || o.Threshold > 95 {
		errs = append(errs, fmt.Errorf("biometric.threshold must be within [50, 95]"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("biometric.timeout must be positive"))
	}
	if o.QPS <= 0 {
		errs = append(errs, fmt.Errorf("biometric.qps must be positive"))
	}
	if o.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("biometric.max-upload-bytes must be positive"))
	}
	if o.HistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("biometric.history-limit cannot be negative"))
	}
	return errs
}
