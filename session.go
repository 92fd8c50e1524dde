package aegisx

import (
	"fmt"
	"sync"
)

var _ SessionReader = (*SessionStore)(nil)

// Session is an immutable snapshot of the client-held authentication
// state. Authenticated holds exactly when both the token and the user
// are present.
type Session struct {
	AccessToken   string `json:"access_token,omitempty"`
	User          *User  `json:"user,omitempty"`
	Authenticated bool   `json:"authenticated"`
}

// SessionStore holds the access token and user projection behind a
// mutex. The Client is the only writer; everything else reads through
// the SessionReader accessors. That single-writer discipline is the
// whole concurrency-safety argument, mirroring the source's
// signal/readonly-signal split.
type SessionStore struct {
	mu    sync.RWMutex
	token string
	user  *User
}

// NewSessionStore returns an empty, anonymous store.
func NewSessionStore() *SessionStore {
	return &SessionStore{}
}

// AccessToken returns the current access token, or "" when anonymous.
func (s *SessionStore) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// CurrentUser returns the current user projection, or nil when
// anonymous. The projection is replaced wholesale on every write, so
// callers may hold onto it across updates.
func (s *SessionStore) CurrentUser() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// IsAuthenticated reports whether both token and user are present.
func (s *SessionStore) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != "" && s.user != nil
}

// Snapshot returns a point-in-time copy of the session.
func (s *SessionStore) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Session{
		AccessToken:   s.token,
		User:          s.user,
		Authenticated: s.token != "" && s.user != nil,
	}
}

// set installs a new token and user pair. Empty token or nil user
// degrade to a cleared session so the authenticated invariant can not
// be half-satisfied.
func (s *SessionStore) set(token string, user *User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token == "" || user == nil {
		s.token = ""
		s.user = nil
		return
	}

	s.token = token
	s.user = user.Clone()
}

// rotateToken swaps the access token while leaving the user untouched.
// Rotating to an empty token clears the session instead.
func (s *SessionStore) rotateToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token == "" || s.user == nil {
		s.token = ""
		s.user = nil
		return
	}

	s.token = token
}

// clear resets the store to anonymous.
func (s *SessionStore) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.user = nil
}

func (s *SessionStore) String() string {
	snap := s.Snapshot()
	return fmt.Sprintf("authenticated=%t user=%s", snap.Authenticated, snap.User.DisplayName())
}
