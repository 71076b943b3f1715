package persona

import (
	"regexp"
	"strings"
)

// StyleProfile is the result of analyzing a user's own recent messages, used
// by the mirror preset.
type StyleProfile struct {
	Formality string // formal | casual | neutral
	Energy    string // high | medium | low
	Verbosity string // brief | normal | verbose
	Humor     string // playful | subtle
	Culture   string // internet_youth | gamer | anime_fan | regional_slang | ""
}

var (
	formalPattern   = regexp.MustCompile(`(?i)please|thank you|could you|would you|kindly`)
	casualPattern   = regexp.MustCompile(`gw|lu|anjir|lol|bruh|yo|bro|dude`)
	shoutPattern    = regexp.MustCompile(`!{2,}|[A-Z]{4,}`)
	laughterPattern = regexp.MustCompile(`wkwk|haha|lol|lmao|😂|💀|xd`)
)

// cultureMarkers are slang clusters; the first cluster to reach two hits
// wins, in this iteration order.
var cultureMarkers = []struct {
	name    string
	markers []string
}{
	{"internet_youth", []string{"fr fr", "no cap", "lowkey", "highkey", "bussin", "slay", "bet", "sus", "mid", "ratio", "ong", "ngl"}},
	{"gamer", []string{"gg", "ez", "noob", "nerf", "buff", "op", "meta", "carry", "clutch", "throw", "diff", "feed"}},
	{"anime_fan", []string{"nani", "kawaii", "sugoi", "baka", "senpai", "desu", "uwu", "owo"}},
	{"regional_slang", []string{"gw", "gue", "lu", "lo", "anjir", "bangsat", "cuk", "wkwk", "awkwk", "dong", "sih", "deh", "nih", "mager"}},
}

// AnalyzeStyle classifies the user's writing style. With no input messages
// it returns fixed neutral defaults.
func AnalyzeStyle(messages []string) StyleProfile {
	if len(messages) == 0 {
		return StyleProfile{Formality: "casual", Energy: "medium", Verbosity: "brief", Humor: "subtle"}
	}

	combined := strings.Join(messages, " ")
	lower := strings.ToLower(combined)
	avgLen := float64(len(combined)) / float64(len(messages))

	formality := "neutral"
	if formalPattern.MatchString(combined) {
		formality = "formal"
	} else if casualPattern.MatchString(lower) {
		formality = "casual"
	}

	energy := "medium"
	if shoutPattern.MatchString(combined) {
		energy = "high"
	} else if avgLen < 15 {
		energy = "low"
	}

	verbosity := "normal"
	if avgLen > 80 {
		verbosity = "verbose"
	} else if avgLen < 25 {
		verbosity = "brief"
	}

	humor := "subtle"
	if laughterPattern.MatchString(lower) {
		humor = "playful"
	}

	culture := ""
	for _, cluster := range cultureMarkers {
		hits := 0
		for _, m := range cluster.markers {
			if strings.Contains(lower, m) {
				hits++
			}
		}
		if hits >= 2 {
			culture = cluster.name
			break
		}
	}

	return StyleProfile{
		Formality: formality,
		Energy:    energy,
		Verbosity: verbosity,
		Humor:     humor,
		Culture:   culture,
	}
}

// styleBlock renders the mirror-style directives, one line per detected
// attribute.
func styleBlock(style StyleProfile) string {
	parts := []string{"MIRROR USER STYLE:"}

	switch style.Formality {
	case "casual":
		parts = append(parts, "- Use casual/slang language")
	case "formal":
		parts = append(parts, "- Be slightly more polite")
	}

	switch style.Energy {
	case "high":
		parts = append(parts, "- High energy, expressive")
	case "low":
		parts = append(parts, "- Chill, minimal responses")
	}

	switch style.Verbosity {
	case "brief":
		parts = append(parts, "- Keep responses very short")
	case "verbose":
		parts = append(parts, "- Can be more detailed")
	}

	switch style.Culture {
	case "regional_slang":
		parts = append(parts, "- Use Indo slang (gw, lu, anjir, etc)")
	case "internet_youth":
		parts = append(parts, "- Use gen z slang (fr, no cap, bet)")
	case "gamer":
		parts = append(parts, "- Use gaming terms (gg, ez, clutch)")
	case "anime_fan":
		parts = append(parts, "- Mix in weeb expressions if natural")
	}

	if style.Humor == "playful" {
		parts = append(parts, "- Can joke around freely")
	}

	return strings.Join(parts, "\n")
}
