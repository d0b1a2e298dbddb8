// Package session holds the signed-in user's identity for the lifetime of the
// client. It is created at start-up and ended at sign-out; managers receive it
// explicitly instead of reading ambient state.
package session

import (
	"errors"
	"sync"
)

// ErrNotAuthenticated is returned when an operation needs a signed-in user.
// Its text is the message shown to the user.
var ErrNotAuthenticated = errors.New("User not authenticated.")

// Session is the authentication context shared by the board and project managers
type Session struct {
	mu     sync.RWMutex
	userID string
	token  string
	active bool
}

// New starts an authenticated session. An empty user id yields a signed-out
// session.
func New(userID, token string) *Session {
	return &Session{
		userID: userID,
		token:  token,
		active: userID != "",
	}
}

// Identity returns the current user id and whether a user is signed in
func (s *Session) Identity() (string, bool) {
	if s == nil {
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID, s.active
}

// Authenticated reports whether a user is signed in
func (s *Session) Authenticated() bool {
	_, ok := s.Identity()
	return ok
}

// Token returns the access token used for the table store
func (s *Session) Token() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// RequireUser returns the user id or ErrNotAuthenticated
func (s *Session) RequireUser() (string, error) {
	id, ok := s.Identity()
	if !ok {
		return "", ErrNotAuthenticated
	}
	return id, nil
}

// End signs the user out. Subsequent mutations are rejected locally.
func (s *Session) End() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = ""
	s.token = ""
	s.active = false
}
