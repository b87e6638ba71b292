package biz

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kart-io/logger"

	"github.com/mycvconnect/mhire/internal/mhire/metrics"
	"github.com/mycvconnect/mhire/internal/mhire/model"
	"github.com/mycvconnect/mhire/internal/mhire/store"
	"github.com/mycvconnect/mhire/pkg/llm"
	"github.com/mycvconnect/mhire/pkg/resilience"
	apierrors "github.com/mycvconnect/mhire/pkg/utils/errors"
	"github.com/mycvconnect/mhire/pkg/utils/requestid"
)

// ConversationConfig 对话服务配置。
type ConversationConfig struct {
	// TopK 每轮检索的文档块数量。
	TopK int
	// TokenBudget 提示词的估算 token 上限。
	TokenBudget int
	// Metrics 业务指标，为空时不记录。
	Metrics *metrics.Metrics
}

// ChatHooks are called while an exchange is in progress.
type ChatHooks struct {
	// OnCategory is called once the message category is known, before the
	// answer is generated.
	OnCategory func(model.Category)
	// OnDelta receives the answer as it is generated. Providers that cannot
	// stream deliver the whole answer in one call. An error stops the
	// exchange.
	OnDelta func(string) error
}

// ChatResult is the outcome of one exchange.
type ChatResult struct {
	SessionID string
	Response  string
	Category  model.Category
	Sources   []model.Source
}

// ConversationService answers chat messages with retrieved context and
// per-session history.
type ConversationService struct {
	sessions   store.SessionStore
	retriever  *Retriever
	chat       llm.ChatProvider
	classifier *IntentClassifier
	policy     *resilience.Policy
	locks      *KeyedMutex
	config     ConversationConfig
	now        func() time.Time
}

// NewConversationService creates the service. A nil classifier answers
// every message as general chat.
func NewConversationService(
	sessions store.SessionStore,
	retriever *Retriever,
	chat llm.ChatProvider,
	classifier *IntentClassifier,
	policy *resilience.Policy,
	config ConversationConfig,
) *ConversationService {
	if policy == nil {
		policy = resilience.NoRetry()
	}
	if config.TokenBudget <= 0 {
		config.TokenBudget = DefaultTokenBudget
	}
	return &ConversationService{
		sessions:   sessions,
		retriever:  retriever,
		chat:       chat,
		classifier: classifier,
		policy:     policy,
		locks:      NewKeyedMutex(),
		config:     config,
		now:        time.Now,
	}
}

// Chat answers message within sessionID. An empty sessionID starts a new
// session whose id is returned in the result.
func (s *ConversationService) Chat(ctx context.Context, sessionID, message string) (*ChatResult, error) {
	return s.ChatWithCategory(ctx, sessionID, message, nil)
}

// ChatWithCategory is Chat with a hook called once the message category
// is known, before the answer is generated. Streaming uses it to send the
// category early.
//
// History is only written when the model answered: the user message and
// the reply are appended together.
func (s *ConversationService) ChatWithCategory(ctx context.Context, sessionID, message string, onCategory func(model.Category)) (*ChatResult, error) {
	res, err := s.exchange(ctx, sessionID, message, ChatHooks{OnCategory: onCategory})
	s.config.Metrics.RecordChat(false, err)
	return res, err
}

// ChatStream answers like Chat and hands the answer to hooks.OnDelta as
// the model produces it. A stream that fails after its first delta is not
// retried, since the client already holds part of the answer.
func (s *ConversationService) ChatStream(ctx context.Context, sessionID, message string, hooks ChatHooks) (*ChatResult, error) {
	res, err := s.exchange(ctx, sessionID, message, hooks)
	s.config.Metrics.RecordChat(true, err)
	return res, err
}

func (s *ConversationService) exchange(ctx context.Context, sessionID, message string, hooks ChatHooks) (*ChatResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apierrors.ErrInvalidRequest.WithMessage("message is required and cannot be empty")
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	rid := requestid.FromContext(ctx)

	unlock, err := s.locks.Lock(ctx, sessionID)
	if err != nil {
		return nil, apierrors.ErrRequestTimeout.WithCause(err)
	}
	defer unlock()

	history, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, apierrors.ErrCache.WithCause(err)
	}

	category := model.CategoryGeneralChat
	if s.classifier != nil {
		category = s.classifier.Classify(ctx, message)
	}
	if hooks.OnCategory != nil {
		hooks.OnCategory(category)
	}

	start := time.Now()
	hits, err := s.retriever.Retrieve(ctx, message, s.config.TopK)
	s.config.Metrics.RecordRetrieval(time.Since(start), err)
	if err != nil {
		return nil, err
	}

	prompt := BuildPrompt(category, hits, history, message, s.config.TokenBudget)
	if prompt.DroppedTurns > 0 || len(prompt.Hits) < len(hits) {
		logger.Infow("prompt trimmed to token budget",
			"request_id", rid,
			"session_id", sessionID,
			"dropped_turns", prompt.DroppedTurns,
			"dropped_chunks", len(hits)-len(prompt.Hits),
			"tokens", prompt.Tokens,
		)
	}

	answer, err := s.generate(ctx, prompt.Messages, hooks.OnDelta)
	if err != nil {
		return nil, apierrors.ErrUpstreamModel.WithCause(err)
	}

	now := s.now().UTC()
	if err := s.sessions.Append(ctx, sessionID,
		model.Turn{Role: model.RoleUser, Content: message, CreatedAt: now},
		model.Turn{Role: model.RoleAssistant, Content: answer, CreatedAt: now},
	); err != nil {
		// 回答已生成，保存失败只记录日志
		logger.Errorw("failed to save conversation",
			"request_id", rid,
			"session_id", sessionID,
			"error", err.Error(),
		)
	}

	logger.Infow("chat answered",
		"request_id", rid,
		"session_id", sessionID,
		"category", string(category),
		"chunks", len(prompt.Hits),
		"history_turns", len(history)-prompt.DroppedTurns,
	)
	return &ChatResult{
		SessionID: sessionID,
		Response:  answer,
		Category:  category,
		Sources:   Sources(prompt.Hits),
	}, nil
}


// generate asks the chat model for the answer. With onDelta set and a
// streaming provider the answer is forwarded as it arrives.
func (s *ConversationService) generate(ctx context.Context, messages []llm.Message, onDelta func(string) error) (string, error) {
	streamer, ok := s.chat.(llm.ChatStreamer)
	if onDelta == nil || !ok {
		var answer string
		err := s.policy.Do(ctx, upstreamChat, func(ctx context.Context) error {
			out, err := s.chat.Chat(ctx, messages)
			answer = out
			return err
		})
		if err == nil && onDelta != nil && answer != "" {
			err = onDelta(answer)
		}
		return answer, err
	}

	var answer string
	err := s.policy.Do(ctx, upstreamChat, func(ctx context.Context) error {
		sent := false
		out, err := streamer.ChatStream(ctx, messages, func(delta string) error {
			sent = true
			if err := onDelta(delta); err != nil {
				return resilience.Permanent(err)
			}
			return nil
		})
		answer = out
		if err != nil && sent {
			return resilience.Permanent(err)
		}
		return err
	})
	return answer, err
}
