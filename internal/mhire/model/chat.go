// Package model defines the request, response and persisted types of the
// mhire service.
package model

import "time"

// Role of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of a conversation session.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Category is the classified intent of a chat message.
type Category string

const (
	CategorySystemInfo        Category = "system_info"
	CategoryContentGeneration Category = "content_generation"
	CategoryGeneralChat       Category = "general_chat"
)

// ParseCategory maps a classifier label to a Category. Anything it does
// not recognise is general chat.
func ParseCategory(label string) Category {
	switch Category(label) {
	case CategorySystemInfo, CategoryContentGeneration:
		return Category(label)
	default:
		return CategoryGeneralChat
	}
}

// ChatRequest is the body of POST /chat. query and user_id are accepted
// for clients of the previous API.
type ChatRequest struct {
	Message   string `json:"message" form:"message"`
	Query     string `json:"query,omitempty" form:"query"`
	SessionID string `json:"session_id" form:"session_id" validate:"omitempty,identifier"`
	UserID    string `json:"user_id,omitempty" form:"user_id" validate:"omitempty,identifier"`
}

// Normalize folds the legacy aliases into Message and SessionID.
func (r *ChatRequest) Normalize() {
	if r.Message == "" {
		r.Message = r.Query
	}
	if r.SessionID == "" {
		r.SessionID = r.UserID
	}
}

// Source is a knowledge-base chunk that informed an answer.
type Source struct {
	ChunkID      string  `json:"chunk_id"`
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	Source       string  `json:"source"`
	Seq          int     `json:"seq"`
	Score        float32 `json:"score"`
}

// ChatResponse is returned by POST /chat.
type ChatResponse struct {
	Response  string   `json:"response"`
	Category  Category `json:"category"`
	SessionID string   `json:"session_id"`
	Sources   []Source `json:"sources"`
}
