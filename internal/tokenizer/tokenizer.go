// Package tokenizer provides a deterministic subword token counter used for
// prompt budget enforcement. It approximates BPE density without model files:
// runs of ASCII letters and digits cost one token per started group of four
// characters, every other rune (CJK, emoji, punctuation) costs one token.
// Whitespace separates runs and is free. The same boundary scan backs both
// counting and trimming, so a trimmed string always re-counts consistently.
package tokenizer

import "unicode"

const asciiGroupSize = 4

// Count returns the number of subword tokens in text.
func Count(text string) int {
	return len(boundaries(text))
}

// Trim returns the longest prefix of text that fits within max tokens,
// cut on a token boundary. A non-positive max yields an empty string.
func Trim(text string, max int) string {
	if max <= 0 {
		return ""
	}
	ends := boundaries(text)
	if len(ends) <= max {
		return text
	}
	return text[:ends[max-1]]
}

// boundaries returns the byte offset just past each token.
func boundaries(text string) []int {
	var ends []int
	run := 0 // length of the current ASCII word run
	for i, r := range text {
		switch {
		case unicode.IsSpace(r):
			run = 0
		case r < 128 && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			run++
			if run%asciiGroupSize == 1 {
				// a new group starts; it ends where the run ends, so
				// record the running end and extend it below
				ends = append(ends, i+1)
			} else {
				ends[len(ends)-1] = i + 1
			}
		default:
			run = 0
			ends = append(ends, i+len(string(r)))
		}
	}
	return ends
}
