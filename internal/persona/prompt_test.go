package persona

import (
	"strings"
	"testing"

	"lunabot/internal/domain"
)

func TestBuildSystemPromptComposition(t *testing.T) {
	prompt := BuildSystemPrompt(PromptInput{
		Persona:          domain.PersonaProfile{Preset: "homie", Quirk: "heavy"},
		Language:         "id",
		MentionDirectory: map[string]string{"111": "alice", "222": "bob"},
		TalkingTo:        "alice",
	})

	for _, want := range []string{
		"You are Luna",
		"BANNED PHRASES",
		"supportive friend vibes",
		"alice = <@111>",
		"bob = <@222>",
		"Talking to: alice",
		"respond in Indonesian",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	// Directory must come before the addressee, addressee before language.
	if strings.Index(prompt, "USER LIST") > strings.Index(prompt, "Talking to:") {
		t.Error("user list should precede addressee")
	}
	if strings.Index(prompt, "Talking to:") > strings.Index(prompt, "Indonesian") {
		t.Error("addressee should precede language note")
	}
}

func TestBuildSystemPromptMirrorStyle(t *testing.T) {
	prompt := BuildSystemPrompt(PromptInput{
		Persona:           domain.PersonaProfile{Preset: MirrorPreset},
		RecentOwnMessages: []string{"gg ez clutch", "that diff was real gg"},
	})
	if !strings.Contains(prompt, "MIRROR USER STYLE:") {
		t.Error("mirror preset should include style block")
	}

	plain := BuildSystemPrompt(PromptInput{
		Persona:           domain.PersonaProfile{Preset: "homie"},
		RecentOwnMessages: []string{"gg ez clutch"},
	})
	if strings.Contains(plain, "MIRROR USER STYLE:") {
		t.Error("non-mirror preset must not include style block")
	}
}

func TestBuildSystemPromptUnknownPresetFallsBack(t *testing.T) {
	prompt := BuildSystemPrompt(PromptInput{
		Persona: domain.PersonaProfile{Preset: "nonexistent"},
	})
	if !strings.Contains(prompt, "Default Moonrise energy") {
		t.Error("unknown preset should fall back to the default modifier")
	}
}

func TestTimeContext(t *testing.T) {
	if got := timeContext(3); !strings.Contains(got, "late night") {
		t.Errorf("hour 3 = %q, want late-night note", got)
	}
	if got := timeContext(23); !strings.Contains(got, "nighttime") {
		t.Errorf("hour 23 = %q, want nighttime note", got)
	}
	if got := timeContext(14); got != "" {
		t.Errorf("hour 14 = %q, want empty", got)
	}
}

func TestValidators(t *testing.T) {
	for _, p := range PresetNames() {
		if !ValidPreset(p) {
			t.Errorf("preset %q should be valid", p)
		}
	}
	if ValidPreset("bogus") {
		t.Error("bogus preset should be invalid")
	}
	if !ValidQuirk("light") || !ValidQuirk("medium") || !ValidQuirk("heavy") {
		t.Error("quirk validator rejects valid values")
	}
	if ValidQuirk("extreme") {
		t.Error("quirk validator accepts invalid value")
	}
}
