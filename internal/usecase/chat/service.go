package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/petedillo/ollama-chat-api/internal/domain"
)

var (
	ErrEmptyMessage = errors.New("empty message")
	ErrInvalidRole  = errors.New("role must be user or assistant")
)

// Client talks to the inference backend. GenerateTitle reports ok=false
// instead of an error: a missing title never fails a chat turn.
type Client interface {
	Chat(ctx context.Context, messages []Message) (Message, error)
	GenerateTitle(ctx context.Context, message string) (title string, ok bool)
	Ping(ctx context.Context) bool
}

// Message is what the model sees: role and content only.
type Message struct {
	Role    string
	Content string
}

type Input struct {
	Role    string
	Content string
}

// Exchange is the result of one conversation turn.
type Exchange struct {
	UserMessage      domain.Message `json:"userMessage"`
	AssistantMessage domain.Message `json:"assistantMessage"`
	Title            string         `json:"title"`
}

type Service struct {
	store  domain.SessionStore
	client Client
	now    func() time.Time
	newID  func() string
}

func NewService(store domain.SessionStore, client Client) *Service {
	return &Service{
		store:  store,
		client: client,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func (s *Service) CreateSession(ctx context.Context, title string) (domain.Session, error) {
	return s.createSession(ctx, s.newID(), title)
}

// EnsureSession returns the session with the given id, creating it with the
// default title if it does not exist yet. If a concurrent caller creates it
// first, that session is returned.
func (s *Service) EnsureSession(ctx context.Context, id string) (domain.Session, error) {
	session, err := s.store.GetSession(ctx, id)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, domain.ErrSessionNotFound) {
		return domain.Session{}, err
	}
	session, err = s.createSession(ctx, id, "")
	if err == nil {
		return session, nil
	}
	if existing, getErr := s.store.GetSession(ctx, id); getErr == nil {
		return existing, nil
	}
	return domain.Session{}, err
}

func (s *Service) createSession(ctx context.Context, id, title string) (domain.Session, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = domain.DefaultTitle
	}
	now := s.now()
	session := domain.Session{
		ID:        id,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return domain.Session{}, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

func (s *Service) ListSessions(ctx context.Context) ([]domain.Session, error) {
	return s.store.ListSessions(ctx)
}

// GetSession returns the session with its messages, oldest first.
func (s *Service) GetSession(ctx context.Context, id string) (domain.Session, error) {
	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		return domain.Session{}, err
	}
	msgs, err := s.store.Messages(ctx, id)
	if err != nil {
		return domain.Session{}, err
	}
	session.Messages = msgs
	return session, nil
}

// SendMessage runs one conversation turn: the user message is stored, a
// title is generated on the first user message of a fresh session, and the
// model reply is stored and returned. If the model call fails the user
// message stays stored and the error is returned.
func (s *Service) SendMessage(ctx context.Context, sessionID string, input Input) (Exchange, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return Exchange{}, ErrEmptyMessage
	}
	role := input.Role
	if role == "" {
		role = domain.RoleUser
	}
	if role != domain.RoleUser && role != domain.RoleAssistant {
		return Exchange{}, ErrInvalidRole
	}

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return Exchange{}, err
	}

	userMessage := domain.Message{
		ID:        s.newID(),
		SessionID: sessionID,
		Role:      role,
		Content:   input.Content,
		CreatedAt: s.now(),
	}
	if err := s.store.AddMessage(ctx, userMessage); err != nil {
		return Exchange{}, fmt.Errorf("save user message: %w", err)
	}

	stored, err := s.store.Messages(ctx, sessionID)
	if err != nil {
		return Exchange{}, fmt.Errorf("load history: %w", err)
	}
	history := toMessages(stored)

	title := session.Title
	if NeedsTitleGeneration(history, session.Title) {
		if generated, ok := s.client.GenerateTitle(ctx, input.Content); ok && generated != session.Title {
			if err := s.store.UpdateTitle(ctx, sessionID, generated); err != nil {
				log.Printf("failed to update title for session %s: %v", sessionID, err)
			} else {
				title = generated
			}
		}
	}

	reply, err := s.client.Chat(ctx, BuildPrompt(history))
	if err != nil {
		return Exchange{}, err
	}

	assistantMessage := domain.Message{
		ID:        s.newID(),
		SessionID: sessionID,
		Role:      domain.RoleAssistant,
		Content:   reply.Content,
		CreatedAt: s.now(),
	}
	if err := s.store.AddMessage(ctx, assistantMessage); err != nil {
		return Exchange{}, fmt.Errorf("save assistant message: %w", err)
	}

	return Exchange{
		UserMessage:      userMessage,
		AssistantMessage: assistantMessage,
		Title:            title,
	}, nil
}

// Healthy reports whether the inference backend answers.
func (s *Service) Healthy(ctx context.Context) bool {
	return s.client.Ping(ctx)
}

func toMessages(stored []domain.Message) []Message {
	res := make([]Message, 0, len(stored))
	for _, m := range stored {
		res = append(res, Message{Role: m.Role, Content: m.Content})
	}
	return res
}
