package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/carecompanion/internal/persona"
	"github.com/MrWong99/carecompanion/internal/store"
)

// SessionSummary is a session with its newest message, for history lists.
type SessionSummary struct {
	store.Session

	// LastMessage is nil for a session without messages.
	LastMessage *store.Message
}

// Transcript is a session with every message, oldest first.
type Transcript struct {
	store.Session
	Messages []store.Message
}

// CreateUser validates p and registers a new user.
func (s *Service) CreateUser(ctx context.Context, p persona.Profile) (*store.User, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	u := &store.User{Profile: p.Normalize()}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("chat: create user: %w", err)
	}
	return u, nil
}

// GetUser returns the user with id.
func (s *Service) GetUser(ctx context.Context, id string) (*store.User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: user ID is required", ErrInvalidInput)
	}
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound, "get user")
	}
	return u, nil
}

// UpdateUser replaces the persona of an existing user.
func (s *Service) UpdateUser(ctx context.Context, id string, p persona.Profile) (*store.User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: user ID is required", ErrInvalidInput)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	u := &store.User{ID: id, Profile: p.Normalize()}
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, notFound(err, ErrUserNotFound, "update user")
	}
	return u, nil
}

// StartSession opens a new conversation for userID.
func (s *Service) StartSession(ctx context.Context, userID string) (*store.Session, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user ID is required", ErrInvalidInput)
	}
	sess := &store.Session{UserID: userID}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, notFound(err, ErrUserNotFound, "start session")
	}
	s.metrics.SessionsCreated.Add(ctx, 1)
	return sess, nil
}

// Sessions lists the user's sessions, most recent first, each with its last
// message. The last messages are fetched concurrently.
func (s *Service) Sessions(ctx context.Context, userID string) ([]SessionSummary, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user ID is required", ErrInvalidInput)
	}
	sessions, err := s.store.ListSessions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("chat: list sessions: %w", err)
	}

	out := make([]SessionSummary, len(sessions))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(8)
	for i, sess := range sessions {
		out[i].Session = sess
		eg.Go(func() error {
			m, err := s.store.LastMessage(egCtx, sess.ID)
			switch {
			case errors.Is(err, store.ErrNotFound):
				return nil
			case err != nil:
				return fmt.Errorf("chat: last message of %q: %w", sess.ID, err)
			}
			out[i].LastMessage = m
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Transcript returns the session with every message.
func (s *Service) Transcript(ctx context.Context, sessionID string) (*Transcript, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: session ID is required", ErrInvalidInput)
	}
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, notFound(err, ErrSessionNotFound, "transcript")
	}
	msgs, err := s.store.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("chat: transcript %q: %w", sessionID, err)
	}
	return &Transcript{Session: *sess, Messages: msgs}, nil
}

// notFound maps store.ErrNotFound onto the service sentinel and wraps
// everything else with op.
func notFound(err, sentinel error, op string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return fmt.Errorf("chat: %s: %w", op, err)
}
