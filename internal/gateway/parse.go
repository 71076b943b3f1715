package gateway

import (
	"encoding/json"
	"fmt"
	"strings"

	"lunabot/internal/domain"
)

// parseStructuredReply extracts a StructuredReply from LLM content. Smaller
// models wrap the JSON in code fences, leak role prefixes, or pad it with
// prose, so parsing is tolerant:
//   - Pure JSON: `{"should_respond":true,...}`
//   - Code-fenced: ```json\n{...}\n```
//   - Mixed text: `Sure.\n{...}\nHope that helps.`
func parseStructuredReply(content string) (domain.StructuredReply, error) {
	content = strings.TrimSpace(content)

	// Strip markdown code fences if present.
	if strings.HasPrefix(content, "```") {
		lines := strings.Split(content, "\n")
		if len(lines) >= 3 && strings.HasPrefix(lines[len(lines)-1], "```") {
			content = strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
		}
	}

	// Fast path: the whole content is the object.
	if reply, ok := tryParseReply(content); ok {
		return reply, nil
	}

	// Fallback: find JSON object boundaries within surrounding text.
	if start, end := findJSONBounds(content); start >= 0 && end > start {
		if reply, ok := tryParseReply(content[start:end]); ok {
			return reply, nil
		}
	}

	return domain.StructuredReply{}, fmt.Errorf("no parseable reply object in content")
}

func tryParseReply(raw string) (domain.StructuredReply, bool) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		raw = sanitizeJSONEscapes(raw)
		if err := json.Unmarshal([]byte(raw), &probe); err != nil {
			return domain.StructuredReply{}, false
		}
	}
	// The should_respond key is what distinguishes our object from any other
	// JSON the model happens to emit. A deliberate decline carries the key
	// with a false value, so field values cannot be used for the check.
	if _, ok := probe["should_respond"]; !ok {
		return domain.StructuredReply{}, false
	}
	var reply domain.StructuredReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return domain.StructuredReply{}, false
	}
	return reply, true
}

// findJSONBounds locates the first top-level JSON object ({}) in s.
// Returns the start index and end+1 index, or (-1, -1) if not found.
func findJSONBounds(s string) (int, int) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return -1, -1
	}

	depth := 0
	inStr := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inStr {
			if ch == '\\' {
				i++ // skip escaped character
				continue
			}
			if ch == '"' {
				inStr = false
			}
			continue
		}
		switch ch {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return start, i + 1
			}
		}
	}
	return -1, -1
}

// sanitizeJSONEscapes fixes invalid JSON escape sequences produced by some LLMs.
// Valid JSON escapes: \", \\, \/, \b, \f, \n, \r, \t, \uXXXX.
// Invalid ones (e.g. \% or \Y) are corrected by dropping the backslash.
func sanitizeJSONEscapes(s string) string {
	var buf strings.Builder
	buf.Grow(len(s))
	inString := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch == '"' && (i == 0 || s[i-1] != '\\') {
			inString = !inString
			buf.WriteByte(ch)
			continue
		}
		if inString && ch == '\\' && i+1 < len(s) {
			next := s[i+1]
			switch next {
			case '"', '\\', '/', 'b', 'f', 'n', 'r', 't', 'u':
				buf.WriteByte(ch) // valid escape, keep the backslash
			default:
				continue // invalid escape, drop the backslash
			}
			continue
		}
		buf.WriteByte(ch)
	}
	return buf.String()
}
