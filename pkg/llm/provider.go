// Package llm 提供统一的 LLM 供应商抽象层。
// Embedding 与 Chat 可以使用不同供应商。
package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// EmbeddingProvider 定义 Embedding 供应商接口。
type EmbeddingProvider interface {
	// Embed 为多个文本生成向量嵌入，结果顺序与输入一致。
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Name 返回供应商名称。
	Name() string
}

// ChatProvider 定义 Chat 供应商接口。
type ChatProvider interface {
	// Chat 进行多轮对话。
	Chat(ctx context.Context, messages []Message, opts ...ChatOption) (string, error)

	// Name 返回供应商名称。
	Name() string
}

// ChatStreamer is implemented by chat providers that can stream the
// answer. onDelta receives each content fragment in order; an error from
// onDelta aborts the stream. The full answer is returned at the end.
type ChatStreamer interface {
	ChatStream(ctx context.Context, messages []Message, onDelta func(string) error, opts ...ChatOption) (string, error)
}

// Message 表示对话中的一条消息。
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Role 定义消息角色。
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatOptions 单次调用覆盖的生成参数，零值表示沿用供应商配置。
type ChatOptions struct {
	Temperature *float64
	MaxTokens   int
	// JSONMode 要求模型只输出 JSON 对象。
	JSONMode bool
}

// ChatOption 修改 ChatOptions。
type ChatOption func(*ChatOptions)

// WithTemperature 覆盖采样温度。
func WithTemperature(t float64) ChatOption {
	return func(o *ChatOptions) { o.Temperature = &t }
}

// WithMaxTokens 覆盖最大生成 token 数。
func WithMaxTokens(n int) ChatOption {
	return func(o *ChatOptions) { o.MaxTokens = n }
}

// WithJSONMode 要求 JSON 输出。
func WithJSONMode() ChatOption {
	return func(o *ChatOptions) { o.JSONMode = true }
}

// ApplyChatOptions folds opts into a ChatOptions value.
func ApplyChatOptions(opts ...ChatOption) ChatOptions {
	var o ChatOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Generate 单轮生成：可选的系统提示加一条用户消息。
func Generate(ctx context.Context, p ChatProvider, prompt, systemPrompt string, opts ...ChatOption) (string, error) {
	messages := make([]Message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: systemPrompt})
	}
	messages = append(messages, Message{Role: RoleUser, Content: prompt})
	return p.Chat(ctx, messages, opts...)
}

// Provider 同时支持 Embedding 和 Chat 的完整供应商。
type Provider interface {
	EmbeddingProvider
	ChatProvider
}

// ProviderFactory 供应商工厂函数类型。
type ProviderFactory func(config map[string]any) (Provider, error)

// EmbeddingProviderFactory Embedding 供应商工厂函数类型。
type EmbeddingProviderFactory func(config map[string]any) (EmbeddingProvider, error)

var registry = &providerRegistry{
	providers:          make(map[string]ProviderFactory),
	embeddingProviders: make(map[string]EmbeddingProviderFactory),
}

type providerRegistry struct {
	mu                 sync.RWMutex
	providers          map[string]ProviderFactory
	embeddingProviders map[string]EmbeddingProviderFactory
}

// RegisterProvider 注册完整供应商工厂。
func RegisterProvider(name string, factory ProviderFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.providers[name] = factory
}

// RegisterEmbeddingProvider 注册 Embedding 供应商工厂。
func RegisterEmbeddingProvider(name string, factory EmbeddingProviderFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.embeddingProviders[name] = factory
}

// NewEmbeddingProvider 根据名称创建 Embedding 供应商实例。
// 优先查找专用 Embedding 工厂，其次查找完整供应商工厂。
func NewEmbeddingProvider(name string, config map[string]any) (EmbeddingProvider, error) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	if factory, ok := registry.embeddingProviders[name]; ok {
		return factory(config)
	}
	if factory, ok := registry.providers[name]; ok {
		return factory(config)
	}
	return nil, fmt.Errorf("unknown embedding provider: %s", name)
}

// NewChatProvider 根据名称创建 Chat 供应商实例。
func NewChatProvider(name string, config map[string]any) (ChatProvider, error) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	if factory, ok := registry.providers[name]; ok {
		return factory(config)
	}
	return nil, fmt.Errorf("unknown chat provider: %s", name)
}

// ListProviders 返回已注册的供应商名称。
func ListProviders() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	seen := make(map[string]struct{})
	for name := range registry.providers {
		seen[name] = struct{}{}
	}
	for name := range registry.embeddingProviders {
		seen[name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
