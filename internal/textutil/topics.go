package textutil

import (
	"regexp"
	"strings"
)

// topicKeywords maps long-term memory topics to their trigger keywords.
var topicKeywords = map[string][]string{
	"gaming": {
		"game", "play", "steam", "valorant", "minecraft", "roblox",
		"rank", "match", "gg", "noob", "grind", "clutch", "nerf",
		"buff", "meta", "carry", "genshin", "mobile legends", "ml",
	},
	"personal": {
		"feel", "sad", "happy", "love", "hate", "friend", "family",
		"girlfriend", "boyfriend", "crush", "relationship", "life",
		"lonely", "stress", "anxious", "tired", "bored",
	},
	"work": {
		"work", "job", "boss", "project", "deadline", "meeting",
		"office", "salary", "interview", "resign", "client",
	},
	"hobby": {
		"music", "movie", "anime", "art", "draw", "cook", "gym",
		"sport", "book", "manga", "cosplay", "photography",
	},
	"tech": {
		"code", "programming", "python", "javascript", "server",
		"api", "bug", "error", "deploy", "database", "linux",
	},
	"food": {
		"food", "eat", "hungry", "lunch", "dinner", "breakfast",
		"pizza", "burger", "nasi", "makan", "lapar", "masak",
	},
}

// topicOrder keeps DetectTopics deterministic across runs.
var topicOrder = []string{"gaming", "personal", "work", "hobby", "tech", "food"}

var importancePattern = regexp.MustCompile(`(?i)\b(always|never|hate|love|important|serious|favorite|worst|best)\b`)

// DetectTopics returns every memory topic whose keywords appear in content.
func DetectTopics(content string) []string {
	lower := strings.ToLower(content)
	var found []string
	for _, topic := range topicOrder {
		for _, kw := range topicKeywords[topic] {
			if strings.Contains(lower, kw) {
				found = append(found, topic)
				break
			}
		}
	}
	return found
}

// ImportanceScore rates how memorable a statement is, from a base of 5 up to
// a cap of 10. Long statements, strong sentiment, and absolute wording raise
// the score.
func ImportanceScore(content string, sentiment float64) int {
	score := 5
	if len(content) > 100 {
		score += 2
	}
	if sentiment > 0.5 || sentiment < -0.5 {
		score += 2
	}
	if importancePattern.MatchString(content) {
		score++
	}
	if score > 10 {
		score = 10
	}
	return score
}
