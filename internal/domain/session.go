package domain

import "time"

// DefaultTitle marks a session whose title has not been generated yet.
const DefaultTitle = "New Chat"

type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Messages  []Message `json:"messages,omitempty"`
}
