// Package session tracks the operator the console acts on behalf of.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

var (
	// ErrUnauthenticated means nobody is signed in.
	ErrUnauthenticated = errors.New("not signed in")
	// ErrForbidden means the operator lacks the required role.
	ErrForbidden = errors.New("access denied. insufficient permissions")
)

// Operator is the signed-in staff member.
type Operator struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Logouter notifies the backend that the session ended.
type Logouter interface {
	Logout(ctx context.Context) error
}

// Session holds the current operator and the role every page requires.
type Session struct {
	requiredRole string
	loginURL     string
	backend      Logouter
	logger       zerolog.Logger

	mu       sync.RWMutex
	operator *Operator
}

// New starts a session for op. A zero Operator starts signed out.
func New(op Operator, requiredRole, loginURL string, backend Logouter, logger zerolog.Logger) *Session {
	s := &Session{
		requiredRole: requiredRole,
		loginURL:     loginURL,
		backend:      backend,
		logger:       logger.With().Str("component", "session").Logger(),
	}
	if op.Email != "" && op.Role != "" {
		s.operator = &op
	}
	return s
}

// Operator returns the signed-in operator.
func (s *Session) Operator() (Operator, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.operator == nil {
		return Operator{}, false
	}
	return *s.operator, true
}

// LoginURL is where signed-out operators are sent.
func (s *Session) LoginURL() string {
	return s.loginURL
}

// Authorize checks that someone is signed in with the required role.
func (s *Session) Authorize() error {
	op, ok := s.Operator()
	if !ok {
		return ErrUnauthenticated
	}
	if s.requiredRole != "" && op.Role != s.requiredRole {
		return ErrForbidden
	}
	return nil
}

// Logout clears the session and tells the backend. A backend failure is
// logged only; the local session is cleared regardless.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	op := s.operator
	s.operator = nil
	s.mu.Unlock()

	if op == nil {
		return
	}
	s.logger.Info().Str("email", op.Email).Msg("Operator signed out")

	if s.backend == nil {
		return
	}
	if err := s.backend.Logout(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Backend logout failed")
	}
}
