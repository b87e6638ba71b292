package biz

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mycvconnect/mhire/internal/mhire/model"
	"github.com/mycvconnect/mhire/internal/mhire/store"
	"github.com/mycvconnect/mhire/pkg/llm"
)

// DefaultTokenBudget caps the estimated size of a chat prompt.
const DefaultTokenBudget = 3000

// messageOverhead approximates the role and framing tokens of a message.
const messageOverhead = 4

const noHistory = "No previous conversation."

const knowledgeTemplate = `You are the MyCvConnect assistant. Answer questions about the MyCvConnect platform, its features, settings and processes.

Use the knowledge base excerpts below. If they do not contain the answer, say so plainly instead of guessing.

Knowledge base:
{{context}}

History:
{{history}}`

const writerTemplate = `You are a professional content writer for MyCvConnect. You only create career-related content: resumes, cover letters, job applications, professional emails, LinkedIn posts, interview answers and skill descriptions.

Write in professional language, keep formats ATS-friendly and aim at the current job market.
If the request is not about career content, reply: "I create career content. Need help with resumes, cover letters, or LinkedIn posts instead?"

Platform notes that may help:
{{context}}

History:
{{history}}`

const counselorTemplate = `You are a career counselor on the MyCvConnect platform. Give professional, encouraging and actionable guidance on job search, interviews, networking, skill building and using MyCvConnect.

Formatting: "#" for main headers, "*" or "-" for bullets, blank lines between sections, **bold** for key terms.
If the message is off-topic, reply: "I focus on career development. Let me help with job search, skills, or professional growth instead."

Platform notes that may help:
{{context}}

History:
{{history}}`

const classifierPrompt = `Classify the user message for the MyCvConnect career platform.

Categories:
- system_info: app features, settings, tools, processes
- content_generation: writing resumes, cover letters, emails, LinkedIn posts
- general_chat: career advice, guidance, anything else

Answer with the category name only.

Message: %s
Category:`

func templateFor(c model.Category) string {
	switch c {
	case model.CategorySystemInfo:
		return knowledgeTemplate
	case model.CategoryContentGeneration:
		return writerTemplate
	default:
		return counselorTemplate
	}
}

// EstimateTokens approximates the token count of one message: a token per
// four runes, rounded up, plus the per-message overhead.
func EstimateTokens(s string) int {
	return (utf8.RuneCountInString(s)+3)/4 + messageOverhead
}

// FormatHistory renders turns as "User:" and "AI:" lines.
func FormatHistory(turns []model.Turn) string {
	if len(turns) == 0 {
		return noHistory
	}
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		switch t.Role {
		case model.RoleUser:
			b.WriteString("User: ")
		case model.RoleAssistant:
			b.WriteString("AI: ")
		default:
			b.WriteString(string(t.Role) + ": ")
		}
		b.WriteString(t.Content)
	}
	return b.String()
}

func formatContext(hits []store.Hit) string {
	if len(hits) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for i, h := range hits {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s:\n%s", i+1, h.Chunk.DocumentName, h.Chunk.Text)
	}
	return b.String()
}

// Prompt is a composed chat request.
type Prompt struct {
	Messages []llm.Message
	// Hits are the chunks that made it into the prompt.
	Hits []store.Hit
	// DroppedTurns counts history turns removed to fit the budget.
	DroppedTurns int
	Tokens       int
}

// BuildPrompt fills the category template with context and history and
// appends the user message. Over budget, the oldest turns go first, then
// the lowest ranked chunks. The user message is never cut.
func BuildPrompt(category model.Category, hits []store.Hit, history []model.Turn, message string, budget int) Prompt {
	if budget <= 0 {
		budget = DefaultTokenBudget
	}
	tmpl := templateFor(category)
	compose := func(h []store.Hit, turns []model.Turn) (string, int) {
		system := strings.NewReplacer(
			"{{context}}", formatContext(h),
			"{{history}}", FormatHistory(turns),
		).Replace(tmpl)
		return system, EstimateTokens(system) + EstimateTokens(message)
	}

	turns, used := history, hits
	system, tokens := compose(used, turns)
	for tokens > budget && len(turns) > 0 {
		// 成对丢弃，避免留下孤立的回答
		drop := 1
		if len(turns) >= 2 && turns[0].Role == model.RoleUser {
			drop = 2
		}
		turns = turns[drop:]
		system, tokens = compose(used, turns)
	}
	for tokens > budget && len(used) > 0 {
		used = used[:len(used)-1]
		system, tokens = compose(used, turns)
	}

	return Prompt{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: message},
		},
		Hits:         used,
		DroppedTurns: len(history) - len(turns),
		Tokens:       tokens,
	}
}
