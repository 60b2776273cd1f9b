package persona_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/carecompanion/internal/persona"
)

func validProfile() persona.Profile {
	return persona.Profile{
		Role:       persona.RoleDoctor,
		Modulation: persona.ModulationProfessional,
		Language:   persona.LanguageHindi,
		Focus:      persona.FocusDiabetes,
	}
}

func TestProfile_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*persona.Profile)
		wantErr string
	}{
		{name: "valid", mutate: func(*persona.Profile) {}},
		{name: "unknown role", mutate: func(p *persona.Profile) { p.Role = "uncle" }, wantErr: "aiRole"},
		{name: "missing modulation", mutate: func(p *persona.Profile) { p.Modulation = "" }, wantErr: "aiModulation"},
		{name: "unsupported language", mutate: func(p *persona.Profile) { p.Language = "fr" }, wantErr: "language"},
		{name: "unknown focus", mutate: func(p *persona.Profile) { p.Focus = "asthma" }, wantErr: "diseaseFocus"},
		{name: "custom without topic", mutate: func(p *persona.Profile) { p.Focus = persona.FocusCustom; p.CustomTopic = "  " }, wantErr: "customTopic"},
		{name: "custom with topic", mutate: func(p *persona.Profile) { p.Focus = persona.FocusCustom; p.CustomTopic = "thyroid" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := validProfile()
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !errors.Is(err, persona.ErrInvalidProfile) {
				t.Errorf("error %v does not wrap ErrInvalidProfile", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestProfile_Validate_ReportsAllProblems(t *testing.T) {
	t.Parallel()

	err := persona.Profile{}.Validate()
	if err == nil {
		t.Fatal("empty profile should be invalid")
	}
	for _, field := range []string{"aiRole", "aiModulation", "language", "diseaseFocus"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error %q does not mention %s", err, field)
		}
	}
}

func TestProfile_Normalize(t *testing.T) {
	t.Parallel()

	p := validProfile()
	p.CustomTopic = "thyroid"
	if got := p.Normalize().CustomTopic; got != "" {
		t.Errorf("non-custom focus kept topic %q", got)
	}

	p.Focus = persona.FocusCustom
	p.CustomTopic = "  thyroid care "
	if got := p.Normalize().CustomTopic; got != "thyroid care" {
		t.Errorf("custom topic = %q, want trimmed", got)
	}
}

func TestSystemPrompt(t *testing.T) {
	t.Parallel()

	p := persona.Profile{
		Role:        persona.RoleMother,
		Modulation:  persona.ModulationSoftCaring,
		Language:    persona.LanguageTamil,
		Focus:       persona.FocusCustom,
		CustomTopic: "thyroid",
	}
	want := "You are a caring and nurturing mother figure. You speak with warmth, concern, and gentle guidance.\n\n" +
		"Speak in a gentle, compassionate manner. Use comforting words and show deep empathy.\n\n" +
		"You provide general health guidance tailored to the user's specific needs. Focus specifically on: thyroid\n\n" +
		"Always respond in Tamil. Keep responses conversational, supportive, and actionable.\n\n" +
		"Important guidelines:\n" +
		"- Provide practical, evidence-based health advice\n" +
		"- Be encouraging and non-judgmental\n" +
		"- Ask clarifying questions when needed\n" +
		"- Celebrate progress and small wins\n" +
		"- Remind users to consult healthcare professionals for serious concerns\n" +
		"- Keep responses concise but comprehensive (2-4 paragraphs)\n"

	if got := persona.SystemPrompt(p); got != want {
		t.Errorf("SystemPrompt mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestSystemPrompt_NoTopicSuffix(t *testing.T) {
	t.Parallel()

	got := persona.SystemPrompt(validProfile())
	if strings.Contains(got, "Focus specifically on") {
		t.Error("prompt without custom topic must not carry the topic suffix")
	}
	if !strings.Contains(got, "Always respond in Hindi.") {
		t.Error("prompt does not name the reply language")
	}
	if !strings.HasPrefix(got, "You are a knowledgeable and professional healthcare provider.") {
		t.Errorf("prompt does not open with the role text: %q", got[:60])
	}
}

func TestCatalogue(t *testing.T) {
	t.Parallel()

	c := persona.Options()
	if len(c.Roles) != 8 || len(c.Modulations) != 5 || len(c.Languages) != 5 || len(c.Focuses) != 6 {
		t.Fatalf("catalogue sizes = %d/%d/%d/%d, want 8/5/5/6", len(c.Roles), len(c.Modulations), len(c.Languages), len(c.Focuses))
	}
	if c.Roles[0] != (persona.Option{Value: "mother", Label: "Mother", Description: "Caring & nurturing"}) {
		t.Errorf("first role = %+v", c.Roles[0])
	}
	for _, r := range persona.AllRoles() {
		if !r.IsValid() || r.Label() == "" {
			t.Errorf("role %q has no label", r)
		}
	}
	for _, f := range persona.AllFocuses() {
		if f.Label() == "" || f.Description() == "" {
			t.Errorf("focus %q lacks display text", f)
		}
	}
	if persona.FocusHeart.Label() != "Heart Health" || persona.ModulationSoftCaring.Label() != "Soft & Caring" {
		t.Error("labels do not match the wizard text")
	}
}
