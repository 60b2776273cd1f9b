// Package store persists users, chat sessions and messages.
//
// Two implementations are provided: [PostgresStore] for production use and
// [MemStore] for development without a database and for tests. Both return
// [ErrNotFound] (wrapped) for missing records so callers can use errors.Is.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/MrWong99/carecompanion/internal/persona"
)

// ErrNotFound is returned when a user, session or message does not exist.
var ErrNotFound = errors.New("store: not found")

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// User is a registered companion user. The persona fields are flattened into
// the JSON object.
type User struct {
	ID string `json:"id"`
	persona.Profile
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Session is one conversation thread.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message is one persisted chat turn.
type Message struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`

	// Role is RoleUser or RoleAssistant.
	Role    string `json:"role"`
	Content string `json:"content"`

	// AudioURL is a data URL of the spoken reply. Empty for user turns and for
	// replies synthesised without audio.
	AudioURL  string    `json:"audioUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store is the persistence contract used by the chat service and API.
//
// Create methods assign ID and timestamps on the passed value.
type Store interface {
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id string) (*User, error)

	// UpdateUser replaces the profile of an existing user and bumps UpdatedAt.
	UpdateUser(ctx context.Context, u *User) error

	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)

	// ListSessions returns the user's sessions, most recently active first.
	ListSessions(ctx context.Context, userID string) ([]Session, error)

	// TouchSession sets the session's UpdatedAt to now.
	TouchSession(ctx context.Context, id string) error

	AddMessage(ctx context.Context, m *Message) error

	// ListMessages returns every message in the session, oldest first.
	ListMessages(ctx context.Context, sessionID string) ([]Message, error)

	// RecentMessages returns at most limit of the newest messages, oldest
	// first. A non-positive limit returns nothing.
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]Message, error)

	// LastMessage returns the newest message or ErrNotFound for an empty
	// session.
	LastMessage(ctx context.Context, sessionID string) (*Message, error)
}
