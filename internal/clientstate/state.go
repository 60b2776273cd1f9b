// Package clientstate holds the terminal client's application state and a
// typed HTTP client for the carecompanion API.
//
// The state is owned by a [Manager] created with [Load]. Nothing in this
// package is global: callers pass the Manager to a [Client] explicitly.
package clientstate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/carecompanion/internal/persona"
	"github.com/MrWong99/carecompanion/pkg/cue"
)

// UserProfile is the server-side user as remembered by the client.
type UserProfile struct {
	ID              string `yaml:"id"`
	persona.Profile `yaml:",inline"`
}

// Message is one remembered chat turn. Cue fields are only set on
// assistant turns.
type Message struct {
	Role       string         `yaml:"role"`
	Content    string         `yaml:"content"`
	Expression cue.Expression `yaml:"expression,omitempty"`
	Animation  cue.Animation  `yaml:"animation,omitempty"`
	Duration   float64        `yaml:"duration,omitempty"`
	At         time.Time      `yaml:"at"`
}

// State is everything the client persists between runs.
type State struct {
	Profile   *UserProfile `yaml:"profile,omitempty"`
	Onboarded bool         `yaml:"onboarded"`
	SessionID string       `yaml:"sessionId,omitempty"`
	Messages  []Message    `yaml:"messages,omitempty"`
}

// Manager guards a [State] and its backing file. All mutations go through
// its methods. It is safe for concurrent use.
type Manager struct {
	path string

	mu    sync.Mutex
	state State
}

// Load reads the state file at path. A missing file yields an empty state
// that will be created on the first Save.
func Load(path string) (*Manager, error) {
	m := &Manager{path: path}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("clientstate: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &m.state); err != nil {
		return nil, fmt.Errorf("clientstate: parse %q: %w", path, err)
	}
	return m, nil
}

// Path returns the backing file path.
func (m *Manager) Path() string { return m.path }

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.state
	if s.Profile != nil {
		p := *s.Profile
		s.Profile = &p
	}
	s.Messages = append([]Message(nil), s.Messages...)
	return s
}

// Save writes the state to disk, replacing the previous file atomically.
func (m *Manager) Save() error {
	m.mu.Lock()
	data, err := yaml.Marshal(&m.state)
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("clientstate: encode: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0o700); err != nil {
		return fmt.Errorf("clientstate: save: %w", err)
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("clientstate: save: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("clientstate: save: %w", err)
	}
	return nil
}

// SetProfile records the user returned by the server.
func (m *Manager) SetProfile(p UserProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Profile = &p
}

// CompleteOnboarding marks the onboarding wizard as finished.
func (m *Manager) CompleteOnboarding() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Onboarded = true
}

// StartSession makes id the active session and forgets the previous
// conversation.
func (m *Manager) StartSession(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.SessionID = id
	m.state.Messages = nil
}

// AppendMessage adds a turn to the active conversation.
func (m *Manager) AppendMessage(msg Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Messages = append(m.state.Messages, msg)
}

// ResetConversation drops the active session so the next message starts a
// new one.
func (m *Manager) ResetConversation() {
	m.StartSession("")
}

// Logout clears the state and removes the backing file.
func (m *Manager) Logout() error {
	m.mu.Lock()
	m.state = State{}
	m.mu.Unlock()
	if err := os.Remove(m.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clientstate: logout: %w", err)
	}
	return nil
}
