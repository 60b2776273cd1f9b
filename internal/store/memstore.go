package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-process [Store]. Data is lost when the process exits.
// It is safe for concurrent use.
type MemStore struct {
	mu       sync.RWMutex
	users    map[string]User
	sessions map[string]Session
	messages map[string][]Message // keyed by session ID, append order

	now func() time.Time
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{
		users:    make(map[string]User),
		sessions: make(map[string]Session),
		messages: make(map[string][]Message),
		now:      time.Now,
	}
}

// CreateUser implements [Store].
func (s *MemStore) CreateUser(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u.ID = uuid.NewString()
	u.Profile = u.Profile.Normalize()
	u.CreatedAt = s.now()
	u.UpdatedAt = u.CreatedAt
	s.users[u.ID] = *u
	return nil
}

// GetUser implements [Store].
func (s *MemStore) GetUser(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("store: get user %q: %w", id, ErrNotFound)
	}
	return &u, nil
}

// UpdateUser implements [Store].
func (s *MemStore) UpdateUser(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[u.ID]
	if !ok {
		return fmt.Errorf("store: update user %q: %w", u.ID, ErrNotFound)
	}
	existing.Profile = u.Profile.Normalize()
	existing.UpdatedAt = s.now()
	s.users[u.ID] = existing
	*u = existing
	return nil
}

// CreateSession implements [Store].
func (s *MemStore) CreateSession(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[sess.UserID]; !ok {
		return fmt.Errorf("store: create session for user %q: %w", sess.UserID, ErrNotFound)
	}
	sess.ID = uuid.NewString()
	sess.CreatedAt = s.now()
	sess.UpdatedAt = sess.CreatedAt
	s.sessions[sess.ID] = *sess
	return nil
}

// GetSession implements [Store].
func (s *MemStore) GetSession(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("store: get session %q: %w", id, ErrNotFound)
	}
	return &sess, nil
}

// ListSessions implements [Store].
func (s *MemStore) ListSessions(_ context.Context, userID string) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Session{}
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			out = append(out, sess)
		}
	}
	slices.SortFunc(out, func(a, b Session) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// TouchSession implements [Store].
func (s *MemStore) TouchSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("store: touch session %q: %w", id, ErrNotFound)
	}
	sess.UpdatedAt = s.now()
	s.sessions[id] = sess
	return nil
}

// AddMessage implements [Store].
func (s *MemStore) AddMessage(_ context.Context, m *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[m.SessionID]; !ok {
		return fmt.Errorf("store: add message to %q: %w", m.SessionID, ErrNotFound)
	}
	m.ID = uuid.NewString()
	m.CreatedAt = s.now()
	s.messages[m.SessionID] = append(s.messages[m.SessionID], *m)
	return nil
}

// ListMessages implements [Store].
func (s *MemStore) ListMessages(_ context.Context, sessionID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]Message{}, s.messages[sessionID]...), nil
}

// RecentMessages implements [Store].
func (s *MemStore) RecentMessages(_ context.Context, sessionID string, limit int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		return []Message{}, nil
	}
	msgs := s.messages[sessionID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]Message{}, msgs...), nil
}

// LastMessage implements [Store].
func (s *MemStore) LastMessage(_ context.Context, sessionID string) (*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[sessionID]
	if len(msgs) == 0 {
		return nil, fmt.Errorf("store: last message of %q: %w", sessionID, ErrNotFound)
	}
	m := msgs[len(msgs)-1]
	return &m, nil
}
