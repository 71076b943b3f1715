package tokenizer

import "testing"

func TestCount(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"    ", 0},
		{"hi", 1},
		{"hello", 2},          // 5 letters, groups of 4
		{"hello world", 4},    // 2 + 2
		{"abcd", 1},           // exactly one group
		{"abcde", 2},          // one full group + remainder
		{"a b c", 3},          // one token per short word
		{"你好", 2},             // one token per CJK rune
		{"hi!", 2},            // word + punctuation
		{"👍👍", 2},             // one token per emoji
		{"count 12345 now", 5}, // 2 + 2 + 1
	}
	for _, tc := range cases {
		if got := Count(tc.in); got != tc.want {
			t.Errorf("Count(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestCountStableAcrossRuns(t *testing.T) {
	text := "the quick brown fox 跳过 the lazy 🐕 dog!!"
	first := Count(text)
	for i := 0; i < 10; i++ {
		if got := Count(text); got != first {
			t.Fatalf("count changed between runs: %d vs %d", got, first)
		}
	}
}

func TestTrim(t *testing.T) {
	text := "hello world again"
	if got := Trim(text, 100); got != text {
		t.Errorf("trim with slack should return input unchanged, got %q", got)
	}
	if got := Trim(text, 0); got != "" {
		t.Errorf("trim to zero should be empty, got %q", got)
	}

	trimmed := Trim(text, 2)
	if trimmed != "hello" {
		t.Errorf("Trim(%q, 2) = %q, want %q", text, trimmed, "hello")
	}
	if Count(trimmed) != 2 {
		t.Errorf("trimmed text re-counts as %d, want 2", Count(trimmed))
	}
}

func TestTrimRespectsRuneBoundaries(t *testing.T) {
	text := "你好世界"
	trimmed := Trim(text, 2)
	if trimmed != "你好" {
		t.Errorf("Trim(%q, 2) = %q, want %q", text, trimmed, "你好")
	}
}
