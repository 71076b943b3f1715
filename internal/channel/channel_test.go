package channel

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"lunabot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSplitMessageShortPassthrough(t *testing.T) {
	chunks := splitMessage("hello", 2000)
	if len(chunks) != 1 || chunks[0] != "hello" {
		t.Errorf("chunks = %v", chunks)
	}
}

func TestSplitMessagePrefersNewlines(t *testing.T) {
	msg := strings.Repeat("a", 60) + "\n" + strings.Repeat("b", 60)
	chunks := splitMessage(msg, 100)
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(chunks))
	}
	if !strings.HasSuffix(chunks[0], "\n") {
		t.Error("first chunk should cut at the newline")
	}
	if chunks[1] != strings.Repeat("b", 60) {
		t.Errorf("second chunk = %q", chunks[1])
	}
}

func TestSplitMessageHardCut(t *testing.T) {
	msg := strings.Repeat("x", 250)
	chunks := splitMessage(msg, 100)
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(chunks))
	}
	for _, c := range chunks {
		if len(c) > 100 {
			t.Errorf("chunk of %d bytes exceeds limit", len(c))
		}
	}
	if strings.Join(chunks, "") != msg {
		t.Error("chunks must reassemble to the original")
	}
}

func TestImageURLsCollectsAllSources(t *testing.T) {
	m := &discordgo.Message{
		Content: "check https://cdn.example.com/pic.png out",
		Attachments: []*discordgo.MessageAttachment{
			{URL: "https://cdn.example.com/att.jpg", ContentType: "image/jpeg"},
			{URL: "https://cdn.example.com/doc.pdf", ContentType: "application/pdf"},
		},
		Embeds: []*discordgo.MessageEmbed{
			{
				Image:     &discordgo.MessageEmbedImage{URL: "https://cdn.example.com/emb.png"},
				Thumbnail: &discordgo.MessageEmbedThumbnail{URL: "https://cdn.example.com/thumb.webp"},
			},
		},
	}

	urls := imageURLs(m)
	want := []string{
		"https://cdn.example.com/att.jpg",
		"https://cdn.example.com/emb.png",
		"https://cdn.example.com/thumb.webp",
		"https://cdn.example.com/pic.png",
	}
	if len(urls) != len(want) {
		t.Fatalf("urls = %v", urls)
	}
	for i, u := range want {
		if urls[i] != u {
			t.Errorf("urls[%d] = %q, want %q", i, urls[i], u)
		}
	}
}

func TestMentionsUser(t *testing.T) {
	m := &discordgo.Message{Mentions: []*discordgo.User{{ID: "bot1"}, {ID: "u2"}}}
	if !mentionsUser(m, "bot1") {
		t.Error("mention of bot1 not detected")
	}
	if mentionsUser(m, "u3") {
		t.Error("false positive for unmentioned user")
	}
}

func TestToFragmentPrefersNick(t *testing.T) {
	ts := time.Now()
	m := &discordgo.Message{
		ID:        "m1",
		Content:   "yo",
		Timestamp: ts,
		Author:    &discordgo.User{ID: "u1", Username: "alice", Bot: false},
		Member:    &discordgo.Member{Nick: "ally"},
		MessageReference: &discordgo.MessageReference{
			MessageID: "m0",
		},
	}

	frag := toFragment(m)
	if frag.ID != "m1" || frag.AuthorID != "u1" || frag.Text != "yo" {
		t.Errorf("frag = %+v", frag)
	}
	if frag.AuthorName != "ally" {
		t.Errorf("author name = %q, want nick", frag.AuthorName)
	}
	if frag.ReplyToID != "m0" {
		t.Errorf("reply to = %q", frag.ReplyToID)
	}
	if !frag.Timestamp.Equal(ts) {
		t.Error("timestamp not carried over")
	}
}

func TestDisplayNameFallbackChain(t *testing.T) {
	m := &discordgo.MessageCreate{Message: &discordgo.Message{
		Author: &discordgo.User{Username: "alice", GlobalName: "Alice G"},
		Member: &discordgo.Member{Nick: "ally"},
	}}
	if got := displayName(m); got != "ally" {
		t.Errorf("displayName = %q, want nick", got)
	}

	m.Member = nil
	if got := displayName(m); got != "Alice G" {
		t.Errorf("displayName = %q, want global name", got)
	}

	m.Author.GlobalName = ""
	if got := displayName(m); got != "alice" {
		t.Errorf("displayName = %q, want username", got)
	}
}

// --- command handlers ---

type fakePersonas struct {
	userRecs   map[string]domain.PersonaRecord
	serverRecs map[string]domain.PersonaRecord
	resets     int
}

func newFakePersonas() *fakePersonas {
	return &fakePersonas{
		userRecs:   map[string]domain.PersonaRecord{},
		serverRecs: map[string]domain.PersonaRecord{},
	}
}

func (f *fakePersonas) Resolve(_ context.Context, userID, guildID string) domain.PersonaProfile {
	if rec, ok := f.userRecs[userID]; ok && userID != "" {
		return domain.PersonaProfile{Source: "user", Preset: rec.Preset, Quirk: rec.Quirk}
	}
	if rec, ok := f.serverRecs[guildID]; ok {
		return domain.PersonaProfile{Source: "server", Preset: rec.Preset, Quirk: rec.Quirk}
	}
	return domain.PersonaProfile{Source: "default", Preset: domain.DefaultPreset, Quirk: domain.DefaultQuirk}
}

func (f *fakePersonas) SetUserPersona(_ context.Context, userID string, rec domain.PersonaRecord) error {
	f.userRecs[userID] = rec
	return nil
}

func (f *fakePersonas) ResetUserPersona(_ context.Context, userID string) error {
	delete(f.userRecs, userID)
	f.resets++
	return nil
}

func (f *fakePersonas) SetServerPersona(_ context.Context, guildID string, rec domain.PersonaRecord) error {
	f.serverRecs[guildID] = rec
	return nil
}

type fakeStats struct {
	top     []domain.UserProfile
	total   int
	removed int64
	cutoff  time.Time
}

func (f *fakeStats) TopUsers(context.Context, int) ([]domain.UserProfile, error) { return f.top, nil }
func (f *fakeStats) TotalUsers(context.Context) (int, error)                     { return f.total, nil }
func (f *fakeStats) Cleanup(_ context.Context, olderThan time.Time) (int64, error) {
	f.cutoff = olderThan
	return f.removed, nil
}

type fakeCircuits map[string]string

func (f fakeCircuits) Status(context.Context) map[string]string { return f }

func memberInteraction(userID, guildID string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		GuildID: guildID,
		Member:  &discordgo.Member{User: &discordgo.User{ID: userID}},
	}}
}

func subCommandData(name, sub string, opts map[string]string) discordgo.ApplicationCommandInteractionData {
	subOpt := &discordgo.ApplicationCommandInteractionDataOption{
		Name: sub,
		Type: discordgo.ApplicationCommandOptionSubCommand,
	}
	for k, v := range opts {
		subOpt.Options = append(subOpt.Options, &discordgo.ApplicationCommandInteractionDataOption{
			Name:  k,
			Type:  discordgo.ApplicationCommandOptionString,
			Value: v,
		})
	}
	return discordgo.ApplicationCommandInteractionData{
		Name:    name,
		Options: []*discordgo.ApplicationCommandInteractionDataOption{subOpt},
	}
}

func TestHandlePersonaSetAndView(t *testing.T) {
	personas := newFakePersonas()
	h := NewCommandHandler(personas, &fakeStats{}, fakeCircuits{}, testLogger())
	i := memberInteraction("u1", "g1")

	got := h.handlePersona(context.Background(), i, subCommandData("persona", "set", map[string]string{"preset": "homie", "quirks": "medium"}))
	if !strings.Contains(got, "homie") {
		t.Errorf("set response = %q", got)
	}
	if rec := personas.userRecs["u1"]; rec.Preset != "homie" || rec.Quirk != "medium" {
		t.Errorf("stored record = %+v", rec)
	}

	got = h.handlePersona(context.Background(), i, subCommandData("persona", "view", nil))
	if !strings.Contains(got, "homie") || !strings.Contains(got, "user") {
		t.Errorf("view response = %q", got)
	}
}

func TestHandlePersonaRejectsUnknownPreset(t *testing.T) {
	personas := newFakePersonas()
	h := NewCommandHandler(personas, &fakeStats{}, fakeCircuits{}, testLogger())
	i := memberInteraction("u1", "g1")

	got := h.handlePersona(context.Background(), i, subCommandData("persona", "set", map[string]string{"preset": "villain"}))
	if got != "unknown preset" {
		t.Errorf("response = %q", got)
	}
	if len(personas.userRecs) != 0 {
		t.Error("invalid preset must not be stored")
	}
}

func TestHandlePersonaReset(t *testing.T) {
	personas := newFakePersonas()
	personas.userRecs["u1"] = domain.PersonaRecord{Preset: "chaos"}
	h := NewCommandHandler(personas, &fakeStats{}, fakeCircuits{}, testLogger())
	i := memberInteraction("u1", "g1")

	got := h.handlePersona(context.Background(), i, subCommandData("persona", "reset", nil))
	if !strings.Contains(got, "Reset") {
		t.Errorf("response = %q", got)
	}
	if personas.resets != 1 || len(personas.userRecs) != 0 {
		t.Error("reset did not clear the user override")
	}
}

func TestHandleServerPersonaRejectsMirror(t *testing.T) {
	personas := newFakePersonas()
	h := NewCommandHandler(personas, &fakeStats{}, fakeCircuits{}, testLogger())
	i := memberInteraction("admin", "g1")

	got := h.handleServerPersona(context.Background(), i, subCommandData("serverpersona", "set", map[string]string{"preset": "mirror"}))
	if got != "unknown preset" {
		t.Errorf("response = %q", got)
	}
	if len(personas.serverRecs) != 0 {
		t.Error("mirror must not be stored as server default")
	}
}

func TestHandleServerPersonaSetDefaultsQuirk(t *testing.T) {
	personas := newFakePersonas()
	h := NewCommandHandler(personas, &fakeStats{}, fakeCircuits{}, testLogger())
	i := memberInteraction("admin", "g1")

	got := h.handleServerPersona(context.Background(), i, subCommandData("serverpersona", "set", map[string]string{"preset": "mentor"}))
	if !strings.Contains(got, "mentor") {
		t.Errorf("response = %q", got)
	}
	if rec := personas.serverRecs["g1"]; rec.Preset != "mentor" || rec.Quirk != domain.DefaultQuirk {
		t.Errorf("stored record = %+v", rec)
	}
}

func TestHandleStatusListsProviders(t *testing.T) {
	circuits := fakeCircuits{"groq": "closed", "openrouter": "open"}
	h := NewCommandHandler(newFakePersonas(), &fakeStats{}, circuits, testLogger())

	got := h.handleStatus(context.Background())
	if !strings.Contains(got, "🟢 groq") {
		t.Errorf("status missing healthy groq line:\n%s", got)
	}
	if !strings.Contains(got, "🔴 openrouter") {
		t.Errorf("status missing open openrouter line:\n%s", got)
	}
	if !strings.Contains(got, "Uptime") {
		t.Error("status missing uptime")
	}
}

func TestHandleStatsFormatsTopUsers(t *testing.T) {
	stats := &fakeStats{
		total: 42,
		top: []domain.UserProfile{
			{DisplayName: "alice", InteractionCount: 30, Sentiment: 0.5},
			{DisplayName: "bob", InteractionCount: 12, Sentiment: -0.4},
		},
	}
	h := NewCommandHandler(newFakePersonas(), stats, fakeCircuits{}, testLogger())

	got := h.handleStats(context.Background())
	if !strings.Contains(got, "`42`") {
		t.Errorf("stats missing total:\n%s", got)
	}
	if !strings.Contains(got, "alice") || !strings.Contains(got, "😊") {
		t.Errorf("stats missing positive user line:\n%s", got)
	}
	if !strings.Contains(got, "bob") || !strings.Contains(got, "😤") {
		t.Errorf("stats missing negative user line:\n%s", got)
	}
}

func TestHandleCleanupUsesDaysOption(t *testing.T) {
	stats := &fakeStats{removed: 7}
	h := NewCommandHandler(newFakePersonas(), stats, fakeCircuits{}, testLogger())

	data := discordgo.ApplicationCommandInteractionData{
		Name: "botcleanup",
		Options: []*discordgo.ApplicationCommandInteractionDataOption{
			{Name: "days", Type: discordgo.ApplicationCommandOptionInteger, Value: float64(3)},
		},
	}
	got := h.handleCleanup(context.Background(), data)
	if !strings.Contains(got, "7 rows") || !strings.Contains(got, "3 days") {
		t.Errorf("response = %q", got)
	}

	wantCutoff := time.Now().AddDate(0, 0, -3)
	if diff := stats.cutoff.Sub(wantCutoff); diff < -time.Minute || diff > time.Minute {
		t.Errorf("cutoff = %v, want ~%v", stats.cutoff, wantCutoff)
	}
}
