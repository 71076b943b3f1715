package store

import (
	"context"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"lunabot/internal/domain"
)

func testStore(t *testing.T) *SQLite {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertUserRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.UpsertUser(ctx, "u1", "Alice", "en", 0.5, []string{"gaming"}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	p, err := s.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p == nil {
		t.Fatal("profile missing after upsert")
	}
	if p.InteractionCount != 1 {
		t.Errorf("interaction count = %d, want 1", p.InteractionCount)
	}
	if math.Abs(p.Sentiment-0.1) > 1e-9 {
		t.Errorf("initial sentiment = %v, want 0.1", p.Sentiment)
	}

	if err := s.UpsertUser(ctx, "u1", "Alice2", "id", 1.0, nil); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	p, _ = s.GetUser(ctx, "u1")
	if p.InteractionCount != 2 {
		t.Errorf("interaction count = %d, want 2", p.InteractionCount)
	}
	if p.DisplayName != "Alice2" {
		t.Errorf("display name = %q, want Alice2", p.DisplayName)
	}
	if p.PreferredLang != "id" {
		t.Errorf("language = %q, want id", p.PreferredLang)
	}
	// EMA: 0.1*0.8 + 1.0*0.2 = 0.28
	if math.Abs(p.Sentiment-0.28) > 1e-9 {
		t.Errorf("sentiment = %v, want 0.28", p.Sentiment)
	}
	if len(p.LastTopics) != 1 || p.LastTopics[0] != "gaming" {
		t.Errorf("topics should survive nil update, got %v", p.LastTopics)
	}
}

func TestFoldSentimentKeepsInteractionCount(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.UpsertUser(ctx, "u1", "Alice", "en", 0.5, nil); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.FoldSentiment(ctx, "u1", 1.0); err != nil {
		t.Fatalf("fold: %v", err)
	}

	p, err := s.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.InteractionCount != 1 {
		t.Errorf("interaction count = %d, want 1 after a sentiment-only fold", p.InteractionCount)
	}
	// EMA: 0.1*0.8 + 1.0*0.2 = 0.28
	if math.Abs(p.Sentiment-0.28) > 1e-9 {
		t.Errorf("sentiment = %v, want 0.28", p.Sentiment)
	}

	// Unknown users are left alone rather than erroring.
	if err := s.FoldSentiment(ctx, "nobody", 0.5); err != nil {
		t.Errorf("fold on unknown user: %v", err)
	}
}

func TestGetUserUnknownReturnsNil(t *testing.T) {
	s := testStore(t)
	p, err := s.GetUser(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p != nil {
		t.Fatal("unknown user should be nil, not error")
	}
}

func TestFactSaveAndRecall(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	facts := []domain.Fact{
		{UserID: "u1", Topic: "gaming", Content: "mains jungle in every game", Importance: 5},
		{UserID: "u1", Topic: "gaming", Content: "hates losing ranked matches so much", Importance: 9},
		{UserID: "u1", Topic: "food", Content: "loves spicy nasi goreng a lot", Importance: 6},
		{UserID: "u2", Topic: "gaming", Content: "someone else entirely plays too", Importance: 8},
	}
	for _, f := range facts {
		if err := s.SaveFact(ctx, f); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	got, err := s.RecallFacts(ctx, "u1", []string{"gaming"}, 3)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("recalled %d facts, want 2", len(got))
	}
	if got[0].Importance != 9 {
		t.Errorf("facts not ranked by importance: first has %d", got[0].Importance)
	}

	all, err := s.RecallFacts(ctx, "u1", nil, 10)
	if err != nil {
		t.Fatalf("recall all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("recalled %d facts without topic filter, want 3", len(all))
	}
}

func TestExtractFacts(t *testing.T) {
	if got := ExtractFacts("u1", "short", 0); got != nil {
		t.Errorf("short content should yield nothing, got %v", got)
	}
	if got := ExtractFacts("u1", "nothing topical in this long enough sentence", 0); got != nil {
		t.Errorf("topic-less content should yield nothing, got %v", got)
	}
	got := ExtractFacts("u1", "I love this game and I always grind ranked", 0.8)
	if len(got) != 2 { // gaming + personal
		t.Fatalf("got %d facts, want 2: %v", len(got), got)
	}
	for _, f := range got {
		if f.Importance != 8 { // base 5 + strong sentiment 2 + absolute wording 1
			t.Errorf("importance = %d, want 8", f.Importance)
		}
	}
}

func TestLogMessageAndSemanticSearch(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	entries := []domain.LogEntry{
		{MessageID: "m1", ChannelID: "c1", AuthorID: "u1", AuthorName: "Alice", Content: "talking about games", Embedding: []float32{1, 0, 0}},
		{MessageID: "m2", ChannelID: "c1", AuthorID: "u2", AuthorName: "Bob", Content: "cooking dinner tonight", Embedding: []float32{0, 1, 0}},
		{MessageID: "m3", ChannelID: "c2", AuthorID: "u1", AuthorName: "Alice", Content: "other channel", Embedding: []float32{1, 0, 0}},
		{MessageID: "m4", ChannelID: "c1", AuthorID: "u3", AuthorName: "Cara", Content: "no embedding here"},
	}
	for _, e := range entries {
		if err := s.LogMessage(ctx, e); err != nil {
			t.Fatalf("log %s: %v", e.MessageID, err)
		}
	}

	// Duplicate insert must be a silent no-op.
	if err := s.LogMessage(ctx, entries[0]); err != nil {
		t.Fatalf("duplicate log: %v", err)
	}

	got, err := s.SemanticSearch(ctx, "c1", []float32{0.9, 0.1, 0}, 24*time.Hour, 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d matches, want 1: %v", len(got), got)
	}
	if got[0].ID != "m1" {
		t.Errorf("best match = %s, want m1", got[0].ID)
	}
}

func TestSemanticSearchWindowExcludesOldRows(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	old := domain.LogEntry{
		MessageID: "old", ChannelID: "c1", AuthorID: "u1", Content: "ancient history",
		Embedding: []float32{1, 0, 0}, CreatedAt: time.Now().Add(-48 * time.Hour),
	}
	if err := s.LogMessage(ctx, old); err != nil {
		t.Fatalf("log: %v", err)
	}
	got, err := s.SemanticSearch(ctx, "c1", []float32{1, 0, 0}, 24*time.Hour, 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("rows outside the window must be excluded, got %v", got)
	}
}

func TestPersonaStoreRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if p, _ := s.GetUserPersona(ctx, "u1"); p != nil {
		t.Fatal("unset user persona should be nil")
	}
	if p, _ := s.GetServerPersona(ctx, "g1"); p != nil {
		t.Fatal("unset server persona should be nil")
	}

	if err := s.SetUserPersona(ctx, "u1", domain.PersonaRecord{Preset: "homie"}); err != nil {
		t.Fatalf("set user persona: %v", err)
	}
	// Quirk-only update must not clear the preset.
	if err := s.SetUserPersona(ctx, "u1", domain.PersonaRecord{Quirk: "light"}); err != nil {
		t.Fatalf("update quirk: %v", err)
	}
	p, err := s.GetUserPersona(ctx, "u1")
	if err != nil {
		t.Fatalf("get user persona: %v", err)
	}
	if p.Preset != "homie" || p.Quirk != "light" {
		t.Errorf("persona = %+v, want preset homie quirk light", p)
	}

	if err := s.SetServerPersona(ctx, "g1", domain.PersonaRecord{Preset: "mentor", Quirk: "medium"}); err != nil {
		t.Fatalf("set server persona: %v", err)
	}
	sp, _ := s.GetServerPersona(ctx, "g1")
	if sp.Preset != "mentor" || sp.Quirk != "medium" {
		t.Errorf("server persona = %+v", sp)
	}

	if err := s.DeleteUserPersona(ctx, "u1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if p, _ := s.GetUserPersona(ctx, "u1"); p != nil {
		t.Fatal("persona should be gone after delete")
	}
}

func TestCleanup(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	s.LogMessage(ctx, domain.LogEntry{
		MessageID: "old", ChannelID: "c1", AuthorID: "u1", Content: "old",
		CreatedAt: time.Now().Add(-72 * time.Hour),
	})
	s.LogMessage(ctx, domain.LogEntry{
		MessageID: "new", ChannelID: "c1", AuthorID: "u1", Content: "new",
	})

	deleted, err := s.Cleanup(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted %d rows, want 1", deleted)
	}
}
