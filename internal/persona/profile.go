package persona

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidProfile wraps every validation failure returned by [Profile.Validate].
var ErrInvalidProfile = errors.New("persona: invalid profile")

// Profile is a user's companion configuration.
type Profile struct {
	Role       Role       `json:"aiRole" yaml:"aiRole"`
	Modulation Modulation `json:"aiModulation" yaml:"aiModulation"`
	Language   Language   `json:"language" yaml:"language"`
	Focus      Focus      `json:"diseaseFocus" yaml:"diseaseFocus"`

	// CustomTopic is only meaningful with FocusCustom.
	CustomTopic string `json:"customTopic,omitempty" yaml:"customTopic,omitempty"`
}

// Normalize trims the custom topic and drops it unless the focus is custom.
func (p Profile) Normalize() Profile {
	p.CustomTopic = strings.TrimSpace(p.CustomTopic)
	if p.Focus != FocusCustom {
		p.CustomTopic = ""
	}
	return p
}

// Validate checks that every field holds a known value and that a custom
// focus names its topic. All problems are reported together.
func (p Profile) Validate() error {
	var errs []error

	if !p.Role.IsValid() {
		errs = append(errs, fmt.Errorf("aiRole %q is not a recognised role", p.Role))
	}
	if !p.Modulation.IsValid() {
		errs = append(errs, fmt.Errorf("aiModulation %q is not a recognised modulation", p.Modulation))
	}
	if !p.Language.IsValid() {
		errs = append(errs, fmt.Errorf("language %q is not supported", p.Language))
	}
	if !p.Focus.IsValid() {
		errs = append(errs, fmt.Errorf("diseaseFocus %q is not a recognised focus", p.Focus))
	}
	if p.Focus == FocusCustom && strings.TrimSpace(p.CustomTopic) == "" {
		errs = append(errs, errors.New("customTopic is required when diseaseFocus is custom"))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidProfile, errors.Join(errs...))
}

// SystemPrompt renders the profile into the instruction block that precedes
// the conversation. Unknown values contribute empty lines rather than failing;
// callers validate first.
func SystemPrompt(p Profile) string {
	var sb strings.Builder

	sb.WriteString(roles.entries[p.Role].prompt)
	sb.WriteString("\n\n")
	sb.WriteString(modulations.entries[p.Modulation].prompt)
	sb.WriteString("\n\n")
	sb.WriteString(focuses.entries[p.Focus].prompt)
	if topic := strings.TrimSpace(p.CustomTopic); topic != "" {
		sb.WriteString(" Focus specifically on: ")
		sb.WriteString(topic)
	}
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Always respond in %s. Keep responses conversational, supportive, and actionable.", p.Language.Label())
	sb.WriteString("\n\nImportant guidelines:\n")
	for _, g := range guidelines {
		sb.WriteString("- ")
		sb.WriteString(g)
		sb.WriteByte('\n')
	}
	return sb.String()
}
