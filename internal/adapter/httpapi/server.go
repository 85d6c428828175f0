// Package httpapi exposes chat sessions over a JSON REST API.
//
// Endpoints:
//   - GET  /                   - welcome message and backend status
//   - GET  /health             - backend liveness
//   - GET  /chat               - list sessions, newest first
//   - POST /chat               - create a session
//   - GET  /chat/{id}          - session with its messages
//   - POST /chat/{id}/message  - send a message and get the model reply
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/petedillo/ollama-chat-api/internal/adapter/ollama"
	"github.com/petedillo/ollama-chat-api/internal/domain"
	"github.com/petedillo/ollama-chat-api/internal/usecase/chat"
)

const (
	maxRequestBodySize = 1 << 20
	shutdownTimeout    = 10 * time.Second
)

type Config struct {
	Addr           string
	RateLimitRPS   float64
	RateLimitBurst int
}

type Server struct {
	cfg     Config
	chat    *chat.Service
	handler http.Handler
	now     func() time.Time
}

func NewServer(cfg Config, chatSvc *chat.Service) *Server {
	s := &Server{
		cfg:  cfg,
		chat: chatSvc,
		now:  time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /chat", s.handleListSessions)
	mux.HandleFunc("POST /chat", s.handleCreateSession)
	mux.HandleFunc("GET /chat/{id}", s.handleGetSession)
	mux.HandleFunc("POST /chat/{id}/message", s.handleSendMessage)

	middlewares := []Middleware{Recover, Logging, CORS, LimitBody(maxRequestBodySize)}
	if cfg.RateLimitRPS > 0 {
		middlewares = append(middlewares, NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).Middleware)
	}
	s.handler = Chain(mux, middlewares...)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("server listening on %s", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	}
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
	Status  int    `json:"status,omitempty"`
}

type indexResponse struct {
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	Ollama    string    `json:"ollama"`
	Timestamp time.Time `json:"timestamp"`
}

type healthResponse struct {
	Status string `json:"status"`
	Ollama bool   `json:"ollama"`
}

// sessionResponse always carries the messages array, even when empty.
type sessionResponse struct {
	domain.Session
	Messages []domain.Message `json:"messages"`
}

type createSessionRequest struct {
	Title string `json:"title"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	status := "Ollama is not reachable"
	if s.chat.Healthy(r.Context()) {
		status = "Ollama is working"
	}
	writeJSON(w, http.StatusOK, indexResponse{
		Message:   "Welcome to the API",
		Status:    "Server is running",
		Ollama:    status,
		Timestamp: s.now(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.chat.Healthy(r.Context()) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Ollama: true})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded", Ollama: false})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.chat.ListSessions(r.Context())
	if err != nil {
		log.Printf("error fetching chat sessions: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "Failed to fetch chat sessions", Error: err.Error()})
		return
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Invalid request body", Error: err.Error()})
		return
	}

	session, err := s.chat.CreateSession(r.Context(), req.Title)
	if err != nil {
		log.Printf("error creating chat session: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "Failed to create chat session", Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.chat.GetSession(r.Context(), r.PathValue("id"))
	if errors.Is(err, domain.ErrSessionNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Message: "Chat session not found"})
		return
	}
	if err != nil {
		log.Printf("error fetching chat session: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "Failed to fetch chat session", Error: err.Error()})
		return
	}
	msgs := session.Messages
	if msgs == nil {
		msgs = []domain.Message{}
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: session, Messages: msgs})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Invalid request body", Error: err.Error()})
		return
	}

	exchange, err := s.chat.SendMessage(r.Context(), r.PathValue("id"), chat.Input{Role: req.Role, Content: req.Content})
	if err != nil {
		status, resp := messageError(err)
		if status >= http.StatusInternalServerError {
			log.Printf("error sending message: %v", err)
		}
		writeJSON(w, status, resp)
		return
	}
	writeJSON(w, http.StatusCreated, exchange)
}

// messageError maps a SendMessage failure to a status and body. Backend
// failures carry the backend's HTTP status when there was one.
func messageError(err error) (int, errorResponse) {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, chat.ErrInvalidRole):
		return http.StatusBadRequest, errorResponse{Message: "Invalid message", Error: err.Error()}
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, errorResponse{Message: "Chat session not found"}
	case ollama.IsTimeout(err):
		return http.StatusGatewayTimeout, errorResponse{Message: "Request to Ollama API timed out", Error: err.Error()}
	case ollama.IsTransport(err), ollama.IsBackendAPI(err), ollama.IsResponseFormat(err):
		return http.StatusBadGateway, errorResponse{
			Message: "Failed to get response from Ollama",
			Error:   err.Error(),
			Status:  ollama.StatusCode(err),
		}
	default:
		return http.StatusInternalServerError, errorResponse{Message: "Failed to send message", Error: err.Error()}
	}
}

// decodeBody decodes a JSON body; an empty body leaves v untouched, whether
// or not it was sent chunked.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to write response: %v", err)
	}
}
