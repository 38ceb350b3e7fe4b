package model

import (
	"time"
)

// Conversation is one user's open ticket, backed by a single staff thread.
type Conversation struct {
	UserID            string    `json:"userId"`
	ThreadID          string    `json:"threadId"`
	MessageCount      int       `json:"messageCount"`
	OpenedAt          time.Time `json:"openedAt"`
	LastMessageAt     time.Time `json:"lastMessageAt"`
	LastUserMessageAt time.Time `json:"lastUserMessageAt"`
}

type CreateConversationParams struct {
	UserID   string
	ThreadID string
	OpenedAt time.Time
}
