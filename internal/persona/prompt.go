package persona

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"lunabot/internal/domain"
)

// PromptInput carries the situational context for system prompt composition.
type PromptInput struct {
	Persona domain.PersonaProfile
	// RecentOwnMessages feeds the style analyzer; only used by the mirror
	// preset.
	RecentOwnMessages []string
	Language          string
	// MentionDirectory maps user id to display name for @mention use.
	MentionDirectory map[string]string
	TalkingTo        string
}

// BuildSystemPrompt composes, in fixed order: base identity, time-of-day
// note, preset modifier, mirror style block, user directory, addressee, and
// language note.
func BuildSystemPrompt(in PromptInput) string {
	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString(timeContext(time.Now().UTC().Hour()))

	mod, ok := personaMods[in.Persona.Preset]
	if !ok {
		mod = personaMods["default"]
	}
	b.WriteString(mod)

	if in.Persona.Preset == MirrorPreset && len(in.RecentOwnMessages) > 0 {
		b.WriteString("\n\n")
		b.WriteString(styleBlock(AnalyzeStyle(in.RecentOwnMessages)))
	}

	if len(in.MentionDirectory) > 0 {
		b.WriteString("\n\n[USER LIST — use <@ID> to mention]\n")
		b.WriteString(formatDirectory(in.MentionDirectory))
	}

	if in.TalkingTo != "" {
		fmt.Fprintf(&b, "\nTalking to: %s", in.TalkingTo)
	}

	switch in.Language {
	case "id":
		b.WriteString("\n[Language: respond in Indonesian]")
	case "ja":
		b.WriteString("\n[Language: respond in Japanese]")
	case "ko":
		b.WriteString("\n[Language: respond in Korean]")
	case "zh":
		b.WriteString("\n[Language: respond in Chinese]")
	}

	return b.String()
}

// timeContext returns a situational note for late hours (UTC).
func timeContext(hour int) string {
	switch {
	case hour >= 0 && hour < 5:
		return "\n[Its late night/early morning. You can comment on it if natural like \"still up?\" or \"go sleep\"]"
	case hour >= 22:
		return "\n[Its nighttime]"
	}
	return ""
}

// formatDirectory renders the mention directory in sorted-by-name order so
// prompts are stable for caching and tests.
func formatDirectory(dir map[string]string) string {
	type pair struct{ id, name string }
	pairs := make([]pair, 0, len(dir))
	for id, name := range dir {
		pairs = append(pairs, pair{id, name})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].name < pairs[j].name })
	lines := make([]string, len(pairs))
	for i, p := range pairs {
		lines[i] = fmt.Sprintf("%s = <@%s>", p.name, p.id)
	}
	return strings.Join(lines, "\n")
}
