package domain

// Quirk is the humanizer intensity level.
type Quirk string

// Quirk intensities for the humanizer.
const (
	QuirkLight  = "light"
	QuirkMedium = "medium"
	QuirkHeavy  = "heavy"
)

// Fallbacks used when neither a user override nor a server record exists.
const (
	DefaultPreset = "default"
	DefaultQuirk  = QuirkHeavy
)

// PersonaRecord is a stored persona layer (user override or server default).
// Empty fields mean "unset" and fall through to the next layer.
type PersonaRecord struct {
	Preset      string `json:"preset,omitempty"`
	Quirk       string `json:"quirk,omitempty"`
	StyleSample string `json:"style_sample,omitempty"`
}

// PersonaProfile is the effective persona after precedence resolution.
type PersonaProfile struct {
	Source      string // "user" | "server" | "default"
	Preset      string
	Quirk       string
	StyleSample string
}
