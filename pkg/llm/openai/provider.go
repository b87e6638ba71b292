// Package openai 提供 OpenAI LLM 供应商实现，兼容 OpenAI API 的服务同样适用。
//
//	import _ "github.com/mycvconnect/mhire/pkg/llm/openai"
//
//	provider, err := llm.NewChatProvider("openai", map[string]any{
//	    "api_key":    "sk-...",
//	    "chat_model": "gpt-4o-mini",
//	})
package openai

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mycvconnect/mhire/pkg/llm"
	"github.com/mycvconnect/mhire/pkg/utils/httpclient"
	"github.com/mycvconnect/mhire/pkg/utils/json"
)

// ProviderName 是 OpenAI 供应商的名称标识符
const ProviderName = "openai"

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

// Config OpenAI 供应商配置。
type Config struct {
	// BaseURL API 基础地址，默认为 OpenAI 官方地址。
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// APIKey API 密钥。
	APIKey string `json:"-" mapstructure:"api_key"`

	// EmbedModel 用于生成嵌入的模型。
	EmbedModel string `json:"embed_model" mapstructure:"embed_model"`

	// ChatModel 用于对话的模型。
	ChatModel string `json:"chat_model" mapstructure:"chat_model"`

	// Timeout 单次请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// Organization 组织 ID（可选）。
	Organization string `json:"organization" mapstructure:"organization"`

	// Temperature 默认采样温度，0 表示使用 API 默认值。
	Temperature float64 `json:"temperature" mapstructure:"temperature"`

	// MaxTokens 默认最大生成 token 数，0 表示使用 API 默认值。
	MaxTokens int `json:"max_tokens" mapstructure:"max_tokens"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "https://api.openai.com/v1",
		EmbedModel: "text-embedding-3-small",
		ChatModel:  "gpt-4o-mini",
		Timeout:    60 * time.Second,
	}
}

// Provider OpenAI 供应商实现。
type Provider struct {
	config *Config
	client *httpclient.Client
}

// NewProvider 从配置 map 创建 OpenAI 供应商。
func NewProvider(configMap map[string]any) (llm.Provider, error) {
	cfg := DefaultConfig()

	if v, ok := configMap["base_url"].(string); ok && v != "" {
		cfg.BaseURL = v
	}
	if v, ok := configMap["api_key"].(string); ok && v != "" {
		cfg.APIKey = v
	}
	if v, ok := configMap["embed_model"].(string); ok && v != "" {
		cfg.EmbedModel = v
	}
	if v, ok := configMap["chat_model"].(string); ok && v != "" {
		cfg.ChatModel = v
	}
	if v, ok := configMap["timeout"].(time.Duration); ok && v > 0 {
		cfg.Timeout = v
	}
	if v, ok := configMap["organization"].(string); ok && v != "" {
		cfg.Organization = v
	}
	if v, ok := configMap["temperature"].(float64); ok {
		cfg.Temperature = v
	}
	if v, ok := configMap["max_tokens"].(int); ok {
		cfg.MaxTokens = v
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: api_key is required")
	}
	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建 OpenAI 供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Provider{
		config: cfg,
		client: httpclient.NewClient(cfg.Timeout),
	}
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

// Embed 为多个文本生成向量嵌入。返回数量与输入不一致时视为错误。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp embeddingResponse
	if err := p.post(ctx, "/embeddings", embeddingRequest{Model: p.config.EmbedModel, Input: texts}, &resp); err != nil {
		return nil, err
	}

	embeddings := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(embeddings) {
			return nil, fmt.Errorf("openai: embedding index %d out of range", d.Index)
		}
		embeddings[d.Index] = d.Embedding
	}
	for i, e := range embeddings {
		if len(e) == 0 {
			return nil, fmt.Errorf("openai: missing embedding for input %d", i)
		}
	}
	return embeddings, nil
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []llm.Message   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    *float64        `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	Stream         bool            `json:"stream,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message      llm.Message `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Chat 进行多轮对话。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.ChatOption) (string, error) {
	var resp chatResponse
	if err := p.post(ctx, "/chat/completions", p.chatRequest(messages, opts), &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *Provider) chatRequest(messages []llm.Message, opts []llm.ChatOption) chatRequest {
	o := llm.ApplyChatOptions(opts...)

	req := chatRequest{
		Model:     p.config.ChatModel,
		Messages:  messages,
		MaxTokens: p.config.MaxTokens,
	}
	if p.config.Temperature > 0 {
		t := p.config.Temperature
		req.Temperature = &t
	}
	if o.Temperature != nil {
		req.Temperature = o.Temperature
	}
	if o.MaxTokens > 0 {
		req.MaxTokens = o.MaxTokens
	}
	if o.JSONMode {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	return req
}

// SSE 流式响应格式
const (
	sseDataPrefix = "data:"
	sseDone       = "[DONE]"
	// maxSSELine 单行事件的最大长度。
	maxSSELine = 1 << 20
)

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// ChatStream 以 stream=true 调用对话接口，按到达顺序把内容片段交给 onDelta。
// 流在 [DONE] 之前断开时返回 io.ErrUnexpectedEOF。
func (p *Provider) ChatStream(ctx context.Context, messages []llm.Message, onDelta func(string) error, opts ...llm.ChatOption) (string, error) {
	req := p.chatRequest(messages, opts)
	req.Stream = true

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("openai: marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("openai: create request: %w", err)
	}
	p.setHeaders(httpReq)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if err := httpclient.CheckStatus(resp); err != nil {
		return "", err
	}

	var answer strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELine)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, sseDataPrefix) {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, sseDataPrefix))
		if data == sseDone {
			return answer.String(), nil
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return answer.String(), fmt.Errorf("openai: decode stream chunk: %w", err)
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		answer.WriteString(delta)
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				return answer.String(), err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return answer.String(), err
	}
	return answer.String(), fmt.Errorf("openai: stream ended before [DONE]: %w", io.ErrUnexpectedEOF)
}

func (p *Provider) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("openai: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("openai: create request: %w", err)
	}
	p.setHeaders(req)
	return p.client.DoJSON(req, out)
}

var _ llm.ChatStreamer = (*Provider)(nil)

func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	if p.config.Organization != "" {
		req.Header.Set("OpenAI-Organization", p.config.Organization)
	}
}
