// Package session keeps the signed-in user and their tokens on the client
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"storefront/internal/domain"
	"storefront/internal/localstore"
)

// StorageKey is where the serialized auth payload lives
const StorageKey = "auth"

var ErrNotSignedIn = errors.New("not signed in")

// Payload is the persisted {user, token} pair
type Payload struct {
	User         *domain.User `json:"user"`
	Token        string       `json:"token"`
	RefreshToken string       `json:"refresh_token,omitempty"`
}

type Session struct {
	mu      sync.RWMutex
	store   localstore.Store
	payload *Payload
}

// Load restores a persisted session. An unreadable payload is dropped and
// the session starts signed out.
func Load(store localstore.Store) (*Session, error) {
	s := &Session{store: store}

	data, ok, err := store.Get(StorageKey)
	if err != nil {
		return s, fmt.Errorf("failed to load session: %w", err)
	}
	if !ok {
		return s, nil
	}

	var p Payload
	if err := json.Unmarshal(data, &p); err != nil || p.Token == "" {
		return s, store.Delete(StorageKey)
	}
	s.payload = &p
	return s, nil
}

// SignIn stores a new payload, replacing any previous one
func (s *Session) SignIn(p Payload) error {
	if p.Token == "" {
		return errors.New("token is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.save(&p); err != nil {
		return err
	}
	s.payload = &p
	return nil
}

// UpdateUser replaces the stored user after a profile change
func (s *Session) UpdateUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.payload == nil {
		return ErrNotSignedIn
	}
	next := *s.payload
	next.User = user
	if err := s.save(&next); err != nil {
		return err
	}
	s.payload = &next
	return nil
}

// UpdateToken swaps in a refreshed access token
func (s *Session) UpdateToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.payload == nil {
		return ErrNotSignedIn
	}
	next := *s.payload
	next.Token = token
	if err := s.save(&next); err != nil {
		return err
	}
	s.payload = &next
	return nil
}

// SignOut forgets the session in memory and in storage
func (s *Session) SignOut() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(StorageKey); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	s.payload = nil
	return nil
}

func (s *Session) save(p *Payload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.store.Set(StorageKey, data); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.payload != nil
}

// Token returns the access token, or "" when signed out
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.payload == nil {
		return ""
	}
	return s.payload.Token
}

func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.payload == nil {
		return ""
	}
	return s.payload.RefreshToken
}

// User returns a copy of the signed-in user, or nil
func (s *Session) User() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.payload == nil || s.payload.User == nil {
		return nil
	}
	u := *s.payload.User
	return &u
}

// IsAdmin reports whether the signed-in user may manage the catalog
func (s *Session) IsAdmin() bool {
	u := s.User()
	return u != nil && u.Role.Can(domain.CapManageCatalog)
}
