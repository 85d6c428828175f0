package domain

import (
	"context"
	"errors"
)

var ErrSessionNotFound = errors.New("chat session not found")

// SessionStore persists sessions and their messages. Messages returns the
// history in creation order, oldest first.
type SessionStore interface {
	CreateSession(ctx context.Context, s Session) error
	ListSessions(ctx context.Context) ([]Session, error)
	GetSession(ctx context.Context, id string) (Session, error)
	UpdateTitle(ctx context.Context, id, title string) error
	AddMessage(ctx context.Context, msg Message) error
	Messages(ctx context.Context, sessionID string) ([]Message, error)
}
