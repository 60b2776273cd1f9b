// Package chat orchestrates one companion conversation turn: it loads the
// user's persona and recent history, asks the LLM for a reply, speaks it
// through the TTS provider and derives avatar cues from the result.
//
// Speech is best-effort. A missing or failing TTS backend yields a reply
// without audio whose cues are timed against an estimated duration; only LLM
// and storage failures fail a turn.
package chat

import (
	"errors"
	"maps"
	"sync"
	"time"

	"github.com/MrWong99/carecompanion/internal/observe"
	"github.com/MrWong99/carecompanion/internal/persona"
	"github.com/MrWong99/carecompanion/internal/store"
	"github.com/MrWong99/carecompanion/pkg/cue"
	"github.com/MrWong99/carecompanion/pkg/provider/llm"
	"github.com/MrWong99/carecompanion/pkg/provider/tts"
)

// Errors returned by [Service] methods. Callers map them to transport status
// codes with errors.Is.
var (
	ErrInvalidInput    = errors.New("chat: invalid input")
	ErrUserNotFound    = errors.New("chat: user not found")
	ErrSessionNotFound = errors.New("chat: session not found")

	// ErrGeneration wraps LLM failures.
	ErrGeneration = errors.New("chat: reply generation failed")

	// ErrVoiceUnavailable is returned by voice catalogue operations when no
	// TTS provider is configured.
	ErrVoiceUnavailable = errors.New("chat: no speech provider configured")
)

// DefaultHistoryLimit is the number of prior messages sent with each turn.
const DefaultHistoryLimit = 20

// Settings are the runtime-tunable parameters of a [Service]. They can be
// swapped while the service is handling requests.
type Settings struct {
	// HistoryLimit caps how many prior messages accompany each turn.
	// Zero or negative means [DefaultHistoryLimit].
	HistoryLimit int

	// Voices maps a speaking style to a provider voice ID.
	Voices map[persona.Modulation]string

	// DefaultVoice is used for styles missing from Voices. When both are
	// empty the reply is not spoken.
	DefaultVoice string

	// Temperature and MaxTokens are passed to the LLM. Zero keeps the
	// provider default.
	Temperature float64
	MaxTokens   int

	// ReplyTimeout bounds a whole turn. Zero means no extra deadline.
	ReplyTimeout time.Duration
}

func (s Settings) historyLimit() int {
	if s.HistoryLimit <= 0 {
		return DefaultHistoryLimit
	}
	return s.HistoryLimit
}

// VoiceFor returns the voice ID for a speaking style, falling back to
// DefaultVoice.
func (s Settings) VoiceFor(m persona.Modulation) string {
	if id := s.Voices[m]; id != "" {
		return id
	}
	return s.DefaultVoice
}

// Service handles companion conversations. It is safe for concurrent use.
type Service struct {
	store   store.Store
	llm     llm.Provider
	tts     tts.Provider
	deriver cue.Deriver
	metrics *observe.Metrics

	llmName string
	ttsName string

	mu       sync.RWMutex
	settings Settings
}

// Option is a functional option for [New].
type Option func(*Service)

// WithTTS enables spoken replies. name labels the provider in metrics and logs.
func WithTTS(p tts.Provider, name string) Option {
	return func(s *Service) {
		s.tts = p
		s.ttsName = name
	}
}

// WithLLMName labels the LLM provider in metrics and logs.
func WithLLMName(name string) Option {
	return func(s *Service) { s.llmName = name }
}

// WithRand sets the random source behind animation selection. Tests pass a
// seeded source for repeatable output.
func WithRand(r cue.Rand) Option {
	return func(s *Service) { s.deriver.Rand = r }
}

// WithMetrics records instruments on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithSettings sets the initial [Settings].
func WithSettings(set Settings) Option {
	return func(s *Service) { s.settings = cloneSettings(set) }
}

// New creates a [Service] over st and l.
func New(st store.Store, l llm.Provider, opts ...Option) *Service {
	s := &Service{
		store:   st,
		llm:     l,
		llmName: "llm",
		ttsName: "tts",
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Settings returns a copy of the current settings.
func (s *Service) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSettings(s.settings)
}

// SetSettings replaces the settings. Turns already in flight keep the values
// they started with.
func (s *Service) SetSettings(set Settings) {
	set = cloneSettings(set)
	s.mu.Lock()
	s.settings = set
	s.mu.Unlock()
}

func cloneSettings(set Settings) Settings {
	set.Voices = maps.Clone(set.Voices)
	return set
}
