// Package textutil holds small stateless helpers for message text: input
// sanitization, mention stripping, language detection, image link extraction,
// and display-name cleanup.
package textutil

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	mentionPattern    = regexp.MustCompile(`<@!?\d+>`)
	channelPattern    = regexp.MustCompile(`<#\d+>`)
	customEmojiRegexp = regexp.MustCompile(`<a?:\w+:\d+>`)
	multiSpacePattern = regexp.MustCompile(`[ \t]{2,}`)
	imageURLPattern   = regexp.MustCompile(`https?://\S+\.(?:png|jpe?g|gif|webp)(?:\?\S*)?`)
	clanTagPattern    = regexp.MustCompile(`^[\[({【].*?[\])}】]\s*`)
)

// Sanitize strips zero-width characters, control characters, and collapses
// excessive whitespace.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\ufeff':
			continue
		}
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	out := multiSpacePattern.ReplaceAllString(b.String(), " ")
	return strings.TrimSpace(out)
}

// StripMentions removes user/channel mention tokens and custom emoji codes.
func StripMentions(s string) string {
	s = mentionPattern.ReplaceAllString(s, "")
	s = channelPattern.ReplaceAllString(s, "")
	s = customEmojiRegexp.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// ImageURLs returns direct image links found in the text.
func ImageURLs(s string) []string {
	return imageURLPattern.FindAllString(s, -1)
}

var indonesianMarkers = []string{
	"yang", "tidak", "gak", "nggak", "aku", "kamu", "udah", "banget",
	"gimana", "kenapa", "sama", "juga", "bisa", "mau", "lagi", "dong",
}

// DetectLanguage guesses the message language from script ranges and a small
// Indonesian marker-word list. Returns "" when nothing matches, so callers
// can fall through to the stored profile preference.
func DetectLanguage(s string) string {
	var kana, hangul, han bool
	for _, r := range s {
		switch {
		case unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r):
			kana = true
		case unicode.Is(unicode.Hangul, r):
			hangul = true
		case unicode.Is(unicode.Han, r):
			han = true
		}
	}
	// Kana implies Japanese even when Han characters are present.
	switch {
	case kana:
		return "ja"
	case hangul:
		return "ko"
	case han:
		return "zh"
	}

	hits := 0
	for _, w := range strings.Fields(strings.ToLower(s)) {
		for _, marker := range indonesianMarkers {
			if w == marker {
				hits++
				break
			}
		}
	}
	if hits >= 2 {
		return "id"
	}
	return ""
}

// ShortName extracts a casual display name: clan tags and bracketed
// decorations are stripped, and only the first word is kept.
func ShortName(display string) string {
	name := clanTagPattern.ReplaceAllString(strings.TrimSpace(display), "")
	name = strings.TrimSpace(name)
	if name == "" {
		return strings.TrimSpace(display)
	}
	if i := strings.IndexAny(name, " |·~"); i > 0 {
		name = name[:i]
	}
	return name
}
