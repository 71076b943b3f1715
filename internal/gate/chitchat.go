package gate

import (
	"math/rand"
	"strings"
)

// Canned reply pools for high-frequency social exchanges. Picking one of
// these avoids a model call entirely.
var chitchatReplies = map[string][]string{
	"greeting":         {"yo", "hey", "sup", "hello", "yo wassup", "oi"},
	"greeting_morning": {"gm", "morning", "good morning", "rise and shine"},
	"greeting_night":   {"night", "gn", "good night", "nite", "sleep well"},
	"how_are_you":      {"chillin, you?", "vibing", "fine", "same old", "good good"},
	"thanks":           {"np", "no prob", "sure", "anytime", "yw"},
	"bye":              {"see ya", "bye", "later", "peace", "cya"},
	"whats_up":         {"nothing much", "chillin", "just existing", "bored", "vibing"},
}

// Keyword sets are English-only on purpose: non-English chitchat fails these
// checks and falls through to the model, which answers in the user's language.
var (
	greetingKeywords = wordSet("hi", "hello", "hey", "yo", "sup")
	morningKeywords  = wordSet("morning", "gm")
	nightKeywords    = wordSet("night", "gn")
	thanksKeywords   = wordSet("thanks", "thank", "thx", "ty")
	byeKeywords      = wordSet("bye", "goodbye")
	byePhrases       = []string{"see ya", "see you"}
	whatsUpPhrases   = []string{"whats up", "what's up", "wassup"}
	howAreYouPhrases = []string{"how are you"}
)

func wordSet(words ...string) map[string]bool {
	s := make(map[string]bool, len(words))
	for _, w := range words {
		s[w] = true
	}
	return s
}

// pickChitchatReply selects a canned reply for normalized chitchat text.
// Intent priority is fixed: time-of-day greetings first, then social
// niceties, then the generic greeting pool as fallback.
func pickChitchatReply(cleaned string) string {
	words := strings.Fields(cleaned)

	switch {
	case anyWord(words, morningKeywords):
		return pick(chitchatReplies["greeting_morning"])
	case anyWord(words, nightKeywords):
		return pick(chitchatReplies["greeting_night"])
	case anyWord(words, thanksKeywords):
		return pick(chitchatReplies["thanks"])
	case anyWord(words, byeKeywords) || anyPhrase(cleaned, byePhrases):
		return pick(chitchatReplies["bye"])
	case anyPhrase(cleaned, whatsUpPhrases):
		return pick(chitchatReplies["whats_up"])
	case anyPhrase(cleaned, howAreYouPhrases):
		return pick(chitchatReplies["how_are_you"])
	case anyWord(words, greetingKeywords):
		return pick(chitchatReplies["greeting"])
	}
	return pick(chitchatReplies["greeting"])
}

func anyWord(words []string, set map[string]bool) bool {
	for _, w := range words {
		if set[w] {
			return true
		}
	}
	return false
}

func anyPhrase(content string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(content, p) {
			return true
		}
	}
	return false
}

func pick(pool []string) string {
	return pool[rand.Intn(len(pool))]
}
