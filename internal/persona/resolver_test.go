package persona

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"lunabot/internal/domain"
	"lunabot/internal/kvstore"
)

// fakePersonaStore counts reads so cache behavior is observable.
type fakePersonaStore struct {
	user        *domain.PersonaRecord
	server      *domain.PersonaRecord
	userReads   int
	serverReads int
}

func (f *fakePersonaStore) GetUserPersona(context.Context, string) (*domain.PersonaRecord, error) {
	f.userReads++
	return f.user, nil
}

func (f *fakePersonaStore) SetUserPersona(_ context.Context, _ string, rec domain.PersonaRecord) error {
	f.user = &rec
	return nil
}

func (f *fakePersonaStore) DeleteUserPersona(context.Context, string) error {
	f.user = nil
	return nil
}

func (f *fakePersonaStore) GetServerPersona(context.Context, string) (*domain.PersonaRecord, error) {
	f.serverReads++
	return f.server, nil
}

func (f *fakePersonaStore) SetServerPersona(_ context.Context, _ string, rec domain.PersonaRecord) error {
	f.server = &rec
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestResolver(t *testing.T, fs *fakePersonaStore) *Resolver {
	t.Helper()
	kv := kvstore.NewMemory()
	t.Cleanup(kv.Close)
	return NewResolver(fs, kv, testLogger())
}

func TestResolveUserOverrideWins(t *testing.T) {
	fs := &fakePersonaStore{
		user:   &domain.PersonaRecord{Preset: "chaos", Quirk: "light"},
		server: &domain.PersonaRecord{Preset: "mentor", Quirk: "medium"},
	}
	r := newTestResolver(t, fs)

	p := r.Resolve(context.Background(), "u1", "g1")
	if p.Source != "user" || p.Preset != "chaos" || p.Quirk != "light" {
		t.Errorf("resolved %+v, want user/chaos/light", p)
	}
}

func TestResolveUserQuirkFallsBackToServer(t *testing.T) {
	fs := &fakePersonaStore{
		user:   &domain.PersonaRecord{Preset: "homie"},
		server: &domain.PersonaRecord{Preset: "mentor", Quirk: "medium"},
	}
	r := newTestResolver(t, fs)

	p := r.Resolve(context.Background(), "u1", "g1")
	if p.Preset != "homie" || p.Quirk != "medium" {
		t.Errorf("resolved %+v, want homie with server quirk medium", p)
	}
}

func TestResolveServerDefault(t *testing.T) {
	fs := &fakePersonaStore{
		server: &domain.PersonaRecord{Preset: "professional", Quirk: "light"},
	}
	r := newTestResolver(t, fs)

	p := r.Resolve(context.Background(), "u1", "g1")
	if p.Source != "server" || p.Preset != "professional" || p.Quirk != "light" {
		t.Errorf("resolved %+v, want server/professional/light", p)
	}
}

func TestResolveDocumentedFallback(t *testing.T) {
	r := newTestResolver(t, &fakePersonaStore{})

	p := r.Resolve(context.Background(), "u1", "g1")
	if p.Source != "default" || p.Preset != domain.DefaultPreset || p.Quirk != domain.DefaultQuirk {
		t.Errorf("resolved %+v, want default/%s/%s", p, domain.DefaultPreset, domain.DefaultQuirk)
	}
}

func TestResolveCachesLayers(t *testing.T) {
	fs := &fakePersonaStore{
		user:   &domain.PersonaRecord{Preset: "chaos"},
		server: &domain.PersonaRecord{Preset: "mentor"},
	}
	r := newTestResolver(t, fs)
	ctx := context.Background()

	r.Resolve(ctx, "u1", "g1")
	r.Resolve(ctx, "u1", "g1")
	if fs.userReads != 1 || fs.serverReads != 1 {
		t.Errorf("store reads = (%d, %d), want (1, 1) after caching", fs.userReads, fs.serverReads)
	}
}

func TestWritesInvalidateCache(t *testing.T) {
	fs := &fakePersonaStore{
		user:   &domain.PersonaRecord{Preset: "chaos"},
		server: &domain.PersonaRecord{Preset: "mentor"},
	}
	r := newTestResolver(t, fs)
	ctx := context.Background()

	r.Resolve(ctx, "u1", "g1") // populates cache

	if err := r.SetUserPersona(ctx, "u1", domain.PersonaRecord{Preset: "homie"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	p := r.Resolve(ctx, "u1", "g1")
	if p.Preset != "homie" {
		t.Errorf("stale cache: got preset %q after write, want homie", p.Preset)
	}

	if err := r.ResetUserPersona(ctx, "u1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	p = r.Resolve(ctx, "u1", "g1")
	if p.Preset != "mentor" {
		t.Errorf("after reset: got preset %q, want server default mentor", p.Preset)
	}

	if err := r.SetServerPersona(ctx, "g1", domain.PersonaRecord{Preset: "professional"}); err != nil {
		t.Fatalf("set server: %v", err)
	}
	p = r.Resolve(ctx, "u1", "g1")
	if p.Preset != "professional" {
		t.Errorf("after server write: got preset %q, want professional", p.Preset)
	}
}
