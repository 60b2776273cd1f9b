// Package persona models the companion a user configures during onboarding:
// who the assistant plays, how it speaks, which language it answers in and
// which health topic it concentrates on. It renders that choice into the
// system prompt sent with every LLM call.
//
// Everything in this package is pure and safe for concurrent use.
package persona

// Role is the relationship the companion plays towards the user.
type Role string

const (
	RoleMother      Role = "mother"
	RoleFather      Role = "father"
	RoleBrother     Role = "brother"
	RoleSister      Role = "sister"
	RoleGrandparent Role = "grandparent"
	RoleDoctor      Role = "doctor"
	RoleCoach       Role = "coach"
	RoleFriend      Role = "friend"
)

// Modulation is the speaking style. It also selects the TTS voice.
type Modulation string

const (
	ModulationSoftCaring         Modulation = "soft_caring"
	ModulationStrictMotivational Modulation = "strict_motivational"
	ModulationProfessional       Modulation = "professional"
	ModulationEnergetic          Modulation = "energetic"
	ModulationCalm               Modulation = "calm"
)

// Language is the reply language as a short code.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageHindi   Language = "hi"
	LanguageTamil   Language = "ta"
	LanguageTelugu  Language = "te"
	LanguageBengali Language = "bn"
)

// Focus is the health topic the companion concentrates on.
type Focus string

const (
	FocusDiabetes     Focus = "diabetes"
	FocusHeart        Focus = "heart"
	FocusWeightLoss   Focus = "weight_loss"
	FocusPCOS         Focus = "pcos"
	FocusMentalHealth Focus = "mental_health"
	FocusCustom       Focus = "custom"
)

// entry is the display and prompt text behind one enum value.
type entry struct {
	label       string
	description string
	prompt      string
}

// table keeps enum values in presentation order.
type table[K ~string] struct {
	order   []K
	entries map[K]entry
}

func (t table[K]) valid(k K) bool {
	_, ok := t.entries[k]
	return ok
}

func (t table[K]) all() []K { return append([]K(nil), t.order...) }

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool { return roles.valid(r) }

// Label is the short display name, e.g. "Mother".
func (r Role) Label() string { return roles.entries[r].label }

// Description is the one-line blurb shown next to the label.
func (r Role) Description() string { return roles.entries[r].description }

// IsValid reports whether m is a known modulation.
func (m Modulation) IsValid() bool { return modulations.valid(m) }

// Label is the short display name, e.g. "Soft & Caring".
func (m Modulation) Label() string { return modulations.entries[m].label }

// Description is the one-line blurb shown next to the label.
func (m Modulation) Description() string { return modulations.entries[m].description }

// IsValid reports whether l is a supported language.
func (l Language) IsValid() bool { return languages.valid(l) }

// Label is the English name of the language, e.g. "Hindi".
func (l Language) Label() string { return languages.entries[l].label }

// Description is empty for languages.
func (l Language) Description() string { return languages.entries[l].description }

// IsValid reports whether f is a known focus.
func (f Focus) IsValid() bool { return focuses.valid(f) }

// Label is the short display name, e.g. "Heart Health".
func (f Focus) Label() string { return focuses.entries[f].label }

// Description is the one-line blurb shown next to the label.
func (f Focus) Description() string { return focuses.entries[f].description }

// AllRoles returns every role in presentation order.
func AllRoles() []Role { return roles.all() }

// AllModulations returns every modulation in presentation order.
func AllModulations() []Modulation { return modulations.all() }

// AllLanguages returns every language in presentation order.
func AllLanguages() []Language { return languages.all() }

// AllFocuses returns every focus in presentation order.
func AllFocuses() []Focus { return focuses.all() }

// Option is one selectable value with its display text.
type Option struct {
	Value       string `json:"value"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// Catalogue lists every selectable value, for onboarding wizards.
type Catalogue struct {
	Roles       []Option `json:"roles"`
	Modulations []Option `json:"modulations"`
	Languages   []Option `json:"languages"`
	Focuses     []Option `json:"focuses"`
}

func options[K ~string](t table[K]) []Option {
	out := make([]Option, 0, len(t.order))
	for _, k := range t.order {
		e := t.entries[k]
		out = append(out, Option{Value: string(k), Label: e.label, Description: e.description})
	}
	return out
}

// Options returns the full catalogue.
func Options() Catalogue {
	return Catalogue{
		Roles:       options(roles),
		Modulations: options(modulations),
		Languages:   options(languages),
		Focuses:     options(focuses),
	}
}
