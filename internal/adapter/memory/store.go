package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/petedillo/ollama-chat-api/internal/domain"
)

type Store struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	messages map[string][]domain.Message
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]domain.Session),
		messages: make(map[string][]domain.Message),
	}
}

func (s *Store) CreateSession(_ context.Context, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return fmt.Errorf("session %s already exists", session.ID)
	}
	session.Messages = nil
	s.sessions[session.ID] = session
	return nil
}

func (s *Store) ListSessions(_ context.Context) ([]domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := make([]domain.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		res = append(res, session)
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

func (s *Store) GetSession(_ context.Context, id string) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *Store) UpdateTitle(_ context.Context, id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	session.Title = title
	session.UpdatedAt = time.Now()
	s.sessions[id] = session
	return nil
}

func (s *Store) AddMessage(_ context.Context, msg domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[msg.SessionID]; !ok {
		return domain.ErrSessionNotFound
	}
	s.messages[msg.SessionID] = append(s.messages[msg.SessionID], msg)
	return nil
}

// Messages returns a copy of the session history ordered by creation time;
// messages created at the same instant keep their insertion order.
func (s *Store) Messages(_ context.Context, sessionID string) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return nil, domain.ErrSessionNotFound
	}
	history := append([]domain.Message(nil), s.messages[sessionID]...)
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].CreatedAt.Before(history[j].CreatedAt)
	})
	return history, nil
}

var _ domain.SessionStore = (*Store)(nil)
