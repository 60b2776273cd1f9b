// Package types holds the data structures shared between providers and the
// chat service. Each package keeps its own domain types; only what crosses a
// provider boundary lives here.
package types

// Conversation roles understood by every LLM backend.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of an LLM conversation.
type Message struct {
	// Role is one of RoleSystem, RoleUser or RoleAssistant.
	Role string

	// Content is the plain-text body of the turn.
	Content string
}

// VoiceProfile describes a voice offered by a TTS provider.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier passed back to SynthesizeStream.
	ID string `json:"id"`

	// Name is the human-readable voice name.
	Name string `json:"name"`

	// Provider identifies which TTS provider this voice belongs to.
	Provider string `json:"provider"`

	// SpeedFactor adjusts speaking rate (0.5–2.0). Zero means the provider default.
	SpeedFactor float64 `json:"speedFactor,omitempty"`

	// Metadata holds provider-specific attributes such as gender, accent or
	// category.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one completion.
	MaxOutputTokens int

	// SupportsStreaming indicates the model supports streaming completions.
	SupportsStreaming bool
}
