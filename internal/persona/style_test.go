package persona

import (
	"strings"
	"testing"
)

func TestAnalyzeStyleEmptyInput(t *testing.T) {
	got := AnalyzeStyle(nil)
	want := StyleProfile{Formality: "casual", Energy: "medium", Verbosity: "brief", Humor: "subtle"}
	if got != want {
		t.Errorf("empty input = %+v, want %+v", got, want)
	}
}

func TestAnalyzeStyleFormality(t *testing.T) {
	formal := AnalyzeStyle([]string{"could you please check this when convenient, thank you"})
	if formal.Formality != "formal" {
		t.Errorf("formality = %q, want formal", formal.Formality)
	}
	casual := AnalyzeStyle([]string{"yo bruh that was wild lol honestly speaking"})
	if casual.Formality != "casual" {
		t.Errorf("formality = %q, want casual", casual.Formality)
	}
}

func TestAnalyzeStyleEnergy(t *testing.T) {
	high := AnalyzeStyle([]string{"THIS IS AMAZING!!! best thing ever"})
	if high.Energy != "high" {
		t.Errorf("energy = %q, want high", high.Energy)
	}
	low := AnalyzeStyle([]string{"ok", "sure", "fine"})
	if low.Energy != "low" {
		t.Errorf("energy = %q, want low", low.Energy)
	}
}

func TestAnalyzeStyleVerbosity(t *testing.T) {
	verbose := AnalyzeStyle([]string{strings.Repeat("many words in a detailed message ", 4)})
	if verbose.Verbosity != "verbose" {
		t.Errorf("verbosity = %q, want verbose", verbose.Verbosity)
	}
	brief := AnalyzeStyle([]string{"short one here now"})
	if brief.Verbosity != "brief" {
		t.Errorf("verbosity = %q, want brief", brief.Verbosity)
	}
}

func TestAnalyzeStyleCultureNeedsTwoHits(t *testing.T) {
	one := AnalyzeStyle([]string{"that match was interesting to watch overall"})
	if one.Culture != "" {
		t.Errorf("culture = %q, want none for single marker", one.Culture)
	}
	two := AnalyzeStyle([]string{"gg that was ez clutch from you"})
	if two.Culture != "gamer" {
		t.Errorf("culture = %q, want gamer", two.Culture)
	}
}

func TestAnalyzeStyleClusterOrderBreaksTies(t *testing.T) {
	// Both internet-youth and gamer clusters hit twice; first cluster wins.
	got := AnalyzeStyle([]string{"ngl that was mid, gg ez anyway"})
	if got.Culture != "internet_youth" {
		t.Errorf("culture = %q, want internet_youth by iteration order", got.Culture)
	}
}

func TestStyleBlockDirectives(t *testing.T) {
	block := styleBlock(StyleProfile{
		Formality: "casual", Energy: "low", Verbosity: "brief",
		Humor: "playful", Culture: "gamer",
	})
	for _, want := range []string{
		"MIRROR USER STYLE:",
		"casual/slang",
		"minimal responses",
		"very short",
		"gaming terms",
		"joke around",
	} {
		if !strings.Contains(block, want) {
			t.Errorf("style block missing %q:\n%s", want, block)
		}
	}
}
