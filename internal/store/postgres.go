package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/carecompanion/internal/persona"
)

// Schema is the SQL DDL for the users, sessions and messages tables. Execute
// it via [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY,
    ai_role       TEXT NOT NULL,
    ai_modulation TEXT NOT NULL,
    language      TEXT NOT NULL DEFAULT 'en',
    disease_focus TEXT NOT NULL,
    custom_topic  TEXT,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS sessions (
    id         TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, updated_at DESC);
CREATE TABLE IF NOT EXISTS messages (
    id         TEXT PRIMARY KEY,
    session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    role       TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
    content    TEXT NOT NULL,
    audio_url  TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database.
type PostgresStore struct {
	db DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a [PostgresStore] over db. The caller is
// responsible for calling [PostgresStore.Migrate] before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Open creates a connection pool for dsn and verifies it with a ping.
// maxConns <= 0 keeps the pgxpool default.
func Open(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return pool, nil
}

// Migrate executes the [Schema] DDL.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// CreateUser implements [Store].
func (s *PostgresStore) CreateUser(ctx context.Context, u *User) error {
	u.ID = uuid.NewString()
	p := u.Profile.Normalize()

	const query = `
		INSERT INTO users (id, ai_role, ai_modulation, language, disease_focus, custom_topic)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at`

	err := s.db.QueryRow(ctx, query,
		u.ID, string(p.Role), string(p.Modulation), string(p.Language), string(p.Focus), nullIfEmpty(p.CustomTopic),
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("store: user with id %q already exists", u.ID)
		}
		return fmt.Errorf("store: create user: %w", err)
	}
	u.Profile = p
	return nil
}

// GetUser implements [Store].
func (s *PostgresStore) GetUser(ctx context.Context, id string) (*User, error) {
	const query = `
		SELECT id, ai_role, ai_modulation, language, disease_focus,
		       COALESCE(custom_topic, ''), created_at, updated_at
		FROM users
		WHERE id = $1`

	var (
		u                             User
		role, mod, lang, focus, topic string
	)
	err := s.db.QueryRow(ctx, query, id).Scan(
		&u.ID, &role, &mod, &lang, &focus, &topic, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("store: get user %q: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("store: get user %q: %w", id, err)
	}
	u.Profile = persona.Profile{
		Role:        persona.Role(role),
		Modulation:  persona.Modulation(mod),
		Language:    persona.Language(lang),
		Focus:       persona.Focus(focus),
		CustomTopic: topic,
	}
	return &u, nil
}

// UpdateUser implements [Store].
func (s *PostgresStore) UpdateUser(ctx context.Context, u *User) error {
	p := u.Profile.Normalize()

	const query = `
		UPDATE users SET
			ai_role = $2, ai_modulation = $3, language = $4,
			disease_focus = $5, custom_topic = $6, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at`

	err := s.db.QueryRow(ctx, query,
		u.ID, string(p.Role), string(p.Modulation), string(p.Language), string(p.Focus), nullIfEmpty(p.CustomTopic),
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("store: update user %q: %w", u.ID, ErrNotFound)
		}
		return fmt.Errorf("store: update user %q: %w", u.ID, err)
	}
	u.Profile = p
	return nil
}

// CreateSession implements [Store]. The user must exist.
func (s *PostgresStore) CreateSession(ctx context.Context, sess *Session) error {
	sess.ID = uuid.NewString()

	const query = `
		INSERT INTO sessions (id, user_id)
		SELECT $1, id FROM users WHERE id = $2
		RETURNING created_at, updated_at`

	err := s.db.QueryRow(ctx, query, sess.ID, sess.UserID).Scan(&sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("store: create session for user %q: %w", sess.UserID, ErrNotFound)
		}
		return fmt.Errorf("store: create session: %w", err)
	}
	return nil
}

// GetSession implements [Store].
func (s *PostgresStore) GetSession(ctx context.Context, id string) (*Session, error) {
	const query = `SELECT id, user_id, created_at, updated_at FROM sessions WHERE id = $1`

	var sess Session
	err := s.db.QueryRow(ctx, query, id).Scan(&sess.ID, &sess.UserID, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("store: get session %q: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("store: get session %q: %w", id, err)
	}
	return &sess, nil
}

// ListSessions implements [Store].
func (s *PostgresStore) ListSessions(ctx context.Context, userID string) ([]Session, error) {
	const query = `
		SELECT id, user_id, created_at, updated_at
		FROM sessions
		WHERE user_id = $1
		ORDER BY updated_at DESC`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: list sessions scan: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	return sessions, nil
}

// TouchSession implements [Store].
func (s *PostgresStore) TouchSession(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `UPDATE sessions SET updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: touch session %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: touch session %q: %w", id, ErrNotFound)
	}
	return nil
}

// AddMessage implements [Store].
func (s *PostgresStore) AddMessage(ctx context.Context, m *Message) error {
	m.ID = uuid.NewString()

	const query = `
		INSERT INTO messages (id, session_id, user_id, role, content, audio_url)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at`

	err := s.db.QueryRow(ctx, query,
		m.ID, m.SessionID, m.UserID, m.Role, m.Content, nullIfEmpty(m.AudioURL),
	).Scan(&m.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: add message: %w", err)
	}
	return nil
}

const messageColumns = `id, session_id, user_id, role, content, COALESCE(audio_url, ''), created_at`

// ListMessages implements [Store].
func (s *PostgresStore) ListMessages(ctx context.Context, sessionID string) ([]Message, error) {
	query := `SELECT ` + messageColumns + `
		FROM messages
		WHERE session_id = $1
		ORDER BY created_at, id`

	rows, err := s.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: list messages: %w", err)
	}
	return collectMessages(rows)
}

// RecentMessages implements [Store].
func (s *PostgresStore) RecentMessages(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	if limit <= 0 {
		return []Message{}, nil
	}
	query := `SELECT * FROM (
			SELECT ` + messageColumns + `
			FROM messages
			WHERE session_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY created_at, id`

	rows, err := s.db.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent messages: %w", err)
	}
	return collectMessages(rows)
}

// LastMessage implements [Store].
func (s *PostgresStore) LastMessage(ctx context.Context, sessionID string) (*Message, error) {
	query := `SELECT ` + messageColumns + `
		FROM messages
		WHERE session_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`

	var m Message
	err := s.db.QueryRow(ctx, query, sessionID).Scan(
		&m.ID, &m.SessionID, &m.UserID, &m.Role, &m.Content, &m.AudioURL, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("store: last message of %q: %w", sessionID, ErrNotFound)
		}
		return nil, fmt.Errorf("store: last message of %q: %w", sessionID, err)
	}
	return &m, nil
}

func collectMessages(rows pgx.Rows) ([]Message, error) {
	defer rows.Close()

	msgs := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.UserID, &m.Role, &m.Content, &m.AudioURL, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: read messages: %w", err)
	}
	return msgs, nil
}

// nullIfEmpty maps "" to SQL NULL.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// isDuplicateKeyError checks whether a PostgreSQL error is a unique-violation
// (SQLSTATE 23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
