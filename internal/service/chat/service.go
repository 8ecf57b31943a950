package chat

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/muser-music/muser/backend/internal/service/responder"
)

// Config holds what every new session is created with.
type Config struct {
	Welcome          string
	Responder        responder.Responder
	ResponderTimeout time.Duration
}

// Service keeps the live sessions. Creating a session mounts a chat view,
// closing it unmounts the view; nothing outlives the process.
type Service struct {
	cfg Config

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
}

// NewService returns an empty in-memory session registry.
func NewService(cfg Config) *Service {
	return &Service{
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// CreateSession provisions a seeded session. It returns ErrSessionClosed
// once the service has been closed.
func (s *Service) CreateSession(_ context.Context) (*Session, error) {
	session := NewSession(uuid.NewString(), Options{
		Welcome:   s.cfg.Welcome,
		Responder: s.cfg.Responder,
		Timeout:   s.cfg.ResponderTimeout,
	})

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		session.Close()
		return nil, ErrSessionClosed
	}
	s.sessions[session.ID()] = session
	s.mu.Unlock()

	log.Printf("[chat] created session=%s", session.ID())
	return session, nil
}

// GetSession retrieves a live session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// CloseSession closes and forgets a session.
func (s *Service) CloseSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	session.Close()
	log.Printf("[chat] closed session=%s", sessionID)
	return nil
}

// Len returns the number of live sessions.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close closes every live session and stops new ones from being created.
func (s *Service) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.closed = true
	s.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
}
