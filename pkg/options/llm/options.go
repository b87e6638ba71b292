// Package llm provides LLM provider configuration options.
package llm

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/mycvconnect/mhire/pkg/options"
)

var _ options.IOptions = (*ProviderOptions)(nil)

// ProviderOptions 定义 LLM 供应商配置。
type ProviderOptions struct {
	// Provider 供应商名称（openai, hashing）。
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL API 基础地址。
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey API 密钥，为空时读取 OPENAI_API_KEY。
	APIKey string `json:"-" mapstructure:"api-key"`

	// Model 使用的模型名称。
	Model string `json:"model" mapstructure:"model"`

	// Timeout 单次请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// Temperature 采样温度，仅对 chat 生效。
	Temperature float64 `json:"temperature" mapstructure:"temperature"`

	// MaxTokens 生成的最大 token 数，仅对 chat 生效。
	MaxTokens int `json:"max-tokens" mapstructure:"max-tokens"`

	// Dimensions 向量维度，hashing 供应商使用。
	Dimensions int `json:"dimensions" mapstructure:"dimensions"`
}

// NewProviderOptions 创建默认 LLM 供应商配置。
func NewProviderOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:    "openai",
		BaseURL:     "https://api.openai.com/v1",
		Timeout:     60 * time.Second,
		Temperature: 0.7,
		MaxTokens:   1024,
		Dimensions:  256,
	}
}

// NewEmbeddingOptions 创建默认 Embedding 供应商配置。
func NewEmbeddingOptions() *ProviderOptions {
	opts := NewProviderOptions()
	opts.Model = "text-embedding-3-small"
	return opts
}

// NewChatOptions 创建默认 Chat 供应商配置。
func NewChatOptions() *ProviderOptions {
	opts := NewProviderOptions()
	opts.Model = "gpt-4o-mini"
	return opts
}

// ToConfigMap 转换为配置 map，用于供应商工厂。
func (o *ProviderOptions) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":    o.BaseURL,
		"api_key":     o.APIKey,
		"embed_model": o.Model,
		"chat_model":  o.Model,
		"timeout":     o.Timeout,
		"temperature": o.Temperature,
		"max_tokens":  o.MaxTokens,
		"dimensions":  o.Dimensions,
	}
}

// AddFlags adds flags for LLM provider options to the specified FlagSet.
// The prefix names the role, e.g. "chat." or "embedding."; without one
// the flags live under "llm.".
func (o *ProviderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	if p == "" {
		p = "llm."
	}
	fs.StringVar(&o.Provider, p+"provider", o.Provider, "LLM provider (openai, hashing).")
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "LLM API base URL.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "LLM API key (or OPENAI_API_KEY).")
	fs.StringVar(&o.Model, p+"model", o.Model, "LLM model name.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "LLM request timeout.")
	fs.Float64Var(&o.Temperature, p+"temperature", o.Temperature, "Sampling temperature.")
	fs.IntVar(&o.MaxTokens, p+"max-tokens", o.MaxTokens, "Maximum tokens to generate.")
	fs.IntVar(&o.Dimensions, p+"dimensions", o.Dimensions, "Vector dimension for the hashing provider.")
}

// Validate validates the LLM provider options.
func (o *ProviderOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	switch o.Provider {
	case "openai":
		if o.BaseURL == "" {
			errs = append(errs, fmt.Errorf("base-url is required"))
		}
		if o.Model == "" {
			errs = append(errs, fmt.Errorf("model is required"))
		}
		if o.APIKey == "" {
			errs = append(errs, fmt.Errorf("api-key is required for openai provider"))
		}
	case "hashing":
		if o.Dimensions <= 0 {
			errs = append(errs, fmt.Errorf("dimensions must be positive for hashing provider"))
		}
	case "":
		errs = append(errs, fmt.Errorf("provider is required"))
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q", o.Provider))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive"))
	}
	if o.Temperature < 0 || o.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature must be within [0, 2]"))
	}
	return errs
}

// Complete completes the LLM provider options with defaults.
func (o *ProviderOptions) Complete() error {
	if o.APIKey == "" {
		o.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 1024
	}
	return nil
}
