package biz

import (
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/logger"

	"github.com/mycvconnect/mhire/internal/mhire/model"
	"github.com/mycvconnect/mhire/pkg/llm"
	"github.com/mycvconnect/mhire/pkg/resilience"
	"github.com/mycvconnect/mhire/pkg/utils/requestid"
)

const upstreamChat = "chat"

// IntentClassifier asks the chat model which category a message belongs to.
type IntentClassifier struct {
	chat   llm.ChatProvider
	policy *resilience.Policy
}

// NewIntentClassifier creates an IntentClassifier.
func NewIntentClassifier(chat llm.ChatProvider, policy *resilience.Policy) *IntentClassifier {
	if policy == nil {
		policy = resilience.NoRetry()
	}
	return &IntentClassifier{chat: chat, policy: policy}
}

// Classify never fails: errors and unknown labels fall back to general chat.
func (c *IntentClassifier) Classify(ctx context.Context, message string) model.Category {
	var label string
	err := c.policy.Do(ctx, upstreamChat, func(ctx context.Context) error {
		out, err := llm.Generate(ctx, c.chat, fmt.Sprintf(classifierPrompt, message), "",
			llm.WithTemperature(0), llm.WithMaxTokens(10))
		label = out
		return err
	})
	if err != nil {
		logger.Warnw("intent classification failed, using general_chat",
			"request_id", requestid.FromContext(ctx),
			"error", err.Error(),
		)
		return model.CategoryGeneralChat
	}
	return model.ParseCategory(normalizeLabel(label))
}

func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSpace(strings.TrimPrefix(s, "category:"))
	if i := strings.IndexAny(s, " \n\t"); i >= 0 {
		s = s[:i]
	}
	return strings.Trim(s, "\"'`.,:;*")
}
