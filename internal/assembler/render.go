package assembler

import (
	"sort"
	"strings"

	"lunabot/internal/domain"
	"lunabot/internal/tokenizer"
)

const (
	// neverTrim marks sections that always survive budget enforcement.
	neverTrim = 5
	// minSectionTokens is the floor below which a partially fitting section
	// is dropped instead of trimmed into a useless stub.
	minSectionTokens = 50
	// historyRenderLimit bounds how many history lines enter the prompt even
	// before token trimming.
	historyRenderLimit = 10
)

type section struct {
	label    string
	content  string
	priority int // lower trims first
}

// Render lays the assembled context out as labeled text blocks under the
// token budget. Untrimmable blocks are placed first; the rest fit in
// whatever budget remains, lowest priority sacrificed first.
func (a *Assembler) Render(c *Context, msg domain.InboundMessage) string {
	var sections []section

	if len(c.Memories) > 0 {
		lines := make([]string, len(c.Memories))
		for i, fact := range c.Memories {
			lines[i] = "- " + clip(fact.Content, 100)
		}
		sections = append(sections, section{"[MEMORIES]", strings.Join(lines, "\n"), 2})
	}

	if len(c.Semantic) > 0 {
		lines := make([]string, len(c.Semantic))
		for i, frag := range c.Semantic {
			lines[i] = fragmentRole(frag) + ": " + clip(frag.Text, 150)
		}
		sections = append(sections, section{"[SEMANTIC RECALL]", strings.Join(lines, "\n"), 3})
	}

	if len(c.ReplyChain) > 0 {
		// The chain was walked child to parent; render oldest first.
		lines := make([]string, 0, len(c.ReplyChain))
		for i := len(c.ReplyChain) - 1; i >= 0; i-- {
			frag := c.ReplyChain[i]
			lines = append(lines, fragmentAuthor(frag)+": "+clip(frag.Text, 200))
		}
		sections = append(sections, section{"[REPLY CONTEXT]", strings.Join(lines, "\n"), neverTrim})
	}

	if len(c.History) > 0 {
		recent := c.History
		if len(recent) > historyRenderLimit {
			recent = recent[len(recent)-historyRenderLimit:]
		}
		lines := make([]string, len(recent))
		for i, frag := range recent {
			lines[i] = fragmentAuthor(frag) + ": " + clip(frag.Text, 150)
		}
		sections = append(sections, section{"[RECENT CHAT]", strings.Join(lines, "\n"), 1})
	}

	sections = append(sections, section{"[CURRENT]", msg.AuthorName + ": " + msg.Content, neverTrim})

	// Stable sort keeps insertion order within equal priorities, so the two
	// untrimmable blocks stay reply-context-then-current.
	sort.SliceStable(sections, func(i, j int) bool {
		return sections[i].priority > sections[j].priority
	})

	var parts []string
	used := 0
	for _, s := range sections {
		block := s.label + "\n" + s.content
		blockTokens := tokenizer.Count(block)

		if used+blockTokens > a.cfg.TokenBudget && s.priority < neverTrim {
			remaining := a.cfg.TokenBudget - used
			if remaining > minSectionTokens {
				trimmed := tokenizer.Trim(block, remaining)
				parts = append(parts, trimmed)
				used += tokenizer.Count(trimmed)
			}
			continue
		}

		parts = append(parts, block)
		used += blockTokens
	}

	return strings.Join(parts, "\n\n")
}

// fragmentRole labels semantic recall lines without leaking display names
// from possibly long ago.
func fragmentRole(frag domain.MessageFragment) string {
	if frag.FromBot {
		return "Bot"
	}
	return "user_" + clip(frag.AuthorID, 6)
}

func fragmentAuthor(frag domain.MessageFragment) string {
	if frag.FromBot {
		return "Bot"
	}
	return frag.AuthorName
}

// clip truncates s to at most n runes.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
