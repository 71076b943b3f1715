package gate

import "testing"

func contains(pool []string, s string) bool {
	for _, p := range pool {
		if p == s {
			return true
		}
	}
	return false
}

func TestPickChitchatReplyIntentPriority(t *testing.T) {
	cases := []struct {
		text string
		pool string
	}{
		{"good morning", "greeting_morning"},
		{"gm everyone", "greeting_morning"},
		{"good night", "greeting_night"},
		{"gn", "greeting_night"},
		{"thanks a lot", "thanks"},
		{"ty", "thanks"},
		{"bye now", "bye"},
		{"see ya", "bye"},
		{"whats up", "whats_up"},
		{"wassup", "whats_up"},
		{"how are you", "how_are_you"},
		{"hey", "greeting"},
		{"yo", "greeting"},
		{"something unmatched", "greeting"}, // generic fallback
	}
	for _, tc := range cases {
		for i := 0; i < 20; i++ {
			reply := pickChitchatReply(tc.text)
			if !contains(chitchatReplies[tc.pool], reply) {
				t.Fatalf("pickChitchatReply(%q) = %q, not in pool %s", tc.text, reply, tc.pool)
			}
		}
	}
}

func TestMorningBeatsGenericGreeting(t *testing.T) {
	// "hey" alone is generic, but a morning keyword takes priority.
	for i := 0; i < 20; i++ {
		reply := pickChitchatReply("hey gm")
		if !contains(chitchatReplies["greeting_morning"], reply) {
			t.Fatalf("morning keyword should win, got %q", reply)
		}
	}
}
