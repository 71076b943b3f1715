// Package humanize roughs up generated replies so they read like a person
// typing: occasional typos, filler words, lowercase drift, and loose
// punctuation. Intensity follows the persona quirk level.
package humanize

import (
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"lunabot/internal/domain"
)

var commonTypos = map[string][]string{
	"the":     {"teh", "hte"},
	"that":    {"taht", "tht"},
	"this":    {"tihs", "ths"},
	"with":    {"wiht", "wth"},
	"have":    {"ahve", "hve"},
	"just":    {"jsut", "jst"},
	"what":    {"waht", "wht"},
	"about":   {"abuot", "abut"},
	"really":  {"relaly", "rly"},
	"because": {"becuase", "bc"},
	"people":  {"poeple", "ppl"},
	"would":   {"woudl", "wuld"},
	"should":  {"shoudl", "shuld"},
	"think":   {"thnk", "thnik"},
	"know":    {"knwo", "kno"},
	"right":   {"rihgt", "riht"},
}

var typoRates = map[domain.Quirk]float64{
	domain.QuirkLight:  0.02,
	domain.QuirkMedium: 0.05,
	domain.QuirkHeavy:  0.08,
}

var fillerRates = map[domain.Quirk]float64{
	domain.QuirkLight:  0.03,
	domain.QuirkMedium: 0.08,
	domain.QuirkHeavy:  0.12,
}

var (
	fillersStart = []string{"oh", "hmm", "eh", "ah", "well", "ngl", "honestly"}
	fillersMid   = []string{"like", "tho", "kinda", "lowkey"}
)

var (
	ellipsisRun = regexp.MustCompile(`\.{4,}`)
	bangRun     = regexp.MustCompile(`!{3,}`)
	questionRun = regexp.MustCompile(`\?{3,}`)
	sentenceEnd = regexp.MustCompile(`([.!?])\s+`)
)

// Humanizer applies the transforms with an injectable random source so tests
// can be deterministic. The mutex serializes access to the source; the
// pipeline humanizes replies from concurrent handler goroutines.
type Humanizer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func New(rng *rand.Rand) *Humanizer {
	return &Humanizer{rng: rng}
}

// Apply runs the full transform chain at the given quirk intensity.
func (h *Humanizer) Apply(text string, quirk domain.Quirk) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.apply(text, quirk)
}

// ApplyAndSplit humanizes then splits long replies into up to three shorter
// messages, mimicking rapid consecutive sends.
func (h *Humanizer) ApplyAndSplit(text string, quirk domain.Quirk) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.split(h.apply(text, quirk), 80)
}

func (h *Humanizer) apply(text string, quirk domain.Quirk) string {
	if len(text) < 2 {
		return text
	}
	result := strings.TrimSpace(text)
	result = h.normalizeCase(result)
	result = h.injectTypos(result, quirk)
	result = h.injectFillers(result, quirk)
	result = h.cleanPunctuation(result)
	return strings.TrimSpace(result)
}

func (h *Humanizer) injectTypos(text string, quirk domain.Quirk) string {
	rate, ok := typoRates[quirk]
	if !ok {
		rate = typoRates[domain.QuirkMedium]
	}

	words := strings.Fields(text)
	for i, word := range words {
		lower := strings.ToLower(word)
		if variants, ok := commonTypos[lower]; ok && h.rng.Float64() < rate {
			replacement := variants[h.rng.Intn(len(variants))]
			if firstUpper(word) {
				replacement = capitalize(replacement)
			}
			words[i] = replacement
		} else if len(word) > 4 && h.rng.Float64() < rate*0.5 {
			words[i] = h.swapAdjacent(word)
		}
	}
	return strings.Join(words, " ")
}

func (h *Humanizer) swapAdjacent(word string) string {
	runes := []rune(word)
	if len(runes) < 3 {
		return word
	}
	idx := 1 + h.rng.Intn(len(runes)-2)
	runes[idx], runes[idx+1] = runes[idx+1], runes[idx]
	return string(runes)
}

func (h *Humanizer) injectFillers(text string, quirk domain.Quirk) string {
	rate, ok := fillerRates[quirk]
	if !ok {
		rate = fillerRates[domain.QuirkMedium]
	}

	if h.rng.Float64() < rate && !startsWithFiller(text) {
		text = fillersStart[h.rng.Intn(len(fillersStart))] + " " + text
	}

	words := strings.Fields(text)
	if len(words) > 6 && h.rng.Float64() < rate {
		mid := len(words) / 2
		filler := fillersMid[h.rng.Intn(len(fillersMid))]
		words = append(words[:mid], append([]string{filler}, words[mid:]...)...)
		text = strings.Join(words, " ")
	}
	return text
}

// normalizeCase lowercases replies, except short all-caps ones which read as
// intentional shouting. A small fraction keep a leading capital.
func (h *Humanizer) normalizeCase(text string) string {
	if text == strings.ToUpper(text) && strings.ContainsFunc(text, unicode.IsLetter) && len(text) < 30 {
		return text
	}
	result := strings.ToLower(text)
	if h.rng.Float64() < 0.15 {
		result = capitalize(result)
	}
	return result
}

func (h *Humanizer) cleanPunctuation(text string) string {
	text = ellipsisRun.ReplaceAllString(text, "...")
	text = bangRun.ReplaceAllString(text, "!!")
	text = questionRun.ReplaceAllString(text, "??")

	// Short casual messages usually skip the final period.
	if strings.HasSuffix(text, ".") && !strings.HasSuffix(text, "..") && len(text) < 40 && h.rng.Float64() < 0.6 {
		text = text[:len(text)-1]
	}
	return text
}

func (h *Humanizer) split(text string, maxPerChunk int) []string {
	if len(text) <= maxPerChunk {
		return []string{text}
	}

	sentences := splitSentences(text)
	if len(sentences) <= 1 {
		words := strings.Fields(text)
		mid := len(words) / 2
		return []string{
			strings.Join(words[:mid], " "),
			strings.Join(words[mid:], " "),
		}
	}

	var chunks []string
	current := ""
	for _, sentence := range sentences {
		if current != "" && len(current)+len(sentence) > maxPerChunk {
			chunks = append(chunks, strings.TrimSpace(current))
			current = sentence
		} else if current == "" {
			current = sentence
		} else {
			current = current + " " + sentence
		}
	}
	if current != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}
	if len(chunks) > 3 {
		chunks = chunks[:3]
	}
	return chunks
}

func splitSentences(text string) []string {
	marked := sentenceEnd.ReplaceAllString(text, "$1\x00")
	parts := strings.Split(marked, "\x00")
	out := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

func startsWithFiller(text string) bool {
	for _, f := range fillersStart {
		if strings.HasPrefix(text, f) {
			return true
		}
	}
	return false
}

func firstUpper(s string) bool {
	for _, r := range s {
		return unicode.IsUpper(r)
	}
	return false
}

func capitalize(s string) string {
	for i, r := range s {
		return string(unicode.ToUpper(r)) + s[i+len(string(r)):]
	}
	return s
}
