package persona

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"lunabot/internal/domain"
)

const cacheTTL = 10 * time.Minute

// Resolver computes the effective persona from the user-override and
// server-default layers. Each layer is cached in the key-value store; writes
// invalidate the cache entry rather than overwriting it.
type Resolver struct {
	store  domain.PersonaStore
	kv     domain.KVStore
	logger *slog.Logger
}

func NewResolver(store domain.PersonaStore, kv domain.KVStore, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, kv: kv, logger: logger}
}

func userCacheKey(userID string) string    { return "up:" + userID }
func serverCacheKey(guildID string) string { return "sp:" + guildID }

// Resolve applies precedence: a user override with a non-empty preset fully
// wins, falling back to the server quirk when its own quirk is unset; then
// the server record; then the documented defaults.
func (r *Resolver) Resolve(ctx context.Context, userID, guildID string) domain.PersonaProfile {
	userRec := r.cachedUserPersona(ctx, userID)
	serverRec := r.cachedServerPersona(ctx, guildID)

	serverPreset := domain.DefaultPreset
	serverQuirk := domain.DefaultQuirk
	source := "default"
	if serverRec != nil {
		if serverRec.Preset != "" {
			serverPreset = serverRec.Preset
		}
		if serverRec.Quirk != "" {
			serverQuirk = serverRec.Quirk
		}
		source = "server"
	}

	if userRec != nil && userRec.Preset != "" {
		quirk := userRec.Quirk
		if quirk == "" {
			quirk = serverQuirk
		}
		return domain.PersonaProfile{
			Source:      "user",
			Preset:      userRec.Preset,
			Quirk:       quirk,
			StyleSample: userRec.StyleSample,
		}
	}

	return domain.PersonaProfile{
		Source: source,
		Preset: serverPreset,
		Quirk:  serverQuirk,
	}
}

// SetUserPersona persists the override and invalidates its cache entry.
func (r *Resolver) SetUserPersona(ctx context.Context, userID string, rec domain.PersonaRecord) error {
	if err := r.store.SetUserPersona(ctx, userID, rec); err != nil {
		return err
	}
	if err := r.kv.Delete(ctx, userCacheKey(userID)); err != nil {
		r.logger.Warn("persona cache invalidation failed", "user", userID, "err", err)
	}
	return nil
}

// ResetUserPersona removes the override and invalidates its cache entry.
func (r *Resolver) ResetUserPersona(ctx context.Context, userID string) error {
	if err := r.store.DeleteUserPersona(ctx, userID); err != nil {
		return err
	}
	if err := r.kv.Delete(ctx, userCacheKey(userID)); err != nil {
		r.logger.Warn("persona cache invalidation failed", "user", userID, "err", err)
	}
	return nil
}

// SetServerPersona persists the guild default and invalidates its cache entry.
func (r *Resolver) SetServerPersona(ctx context.Context, guildID string, rec domain.PersonaRecord) error {
	if err := r.store.SetServerPersona(ctx, guildID, rec); err != nil {
		return err
	}
	if err := r.kv.Delete(ctx, serverCacheKey(guildID)); err != nil {
		r.logger.Warn("persona cache invalidation failed", "guild", guildID, "err", err)
	}
	return nil
}

// cachedUserPersona reads the override through the cache. Store failures
// degrade to "no override" with a warn log.
func (r *Resolver) cachedUserPersona(ctx context.Context, userID string) *domain.PersonaRecord {
	key := userCacheKey(userID)
	if raw, ok, err := r.kv.Get(ctx, key); err == nil && ok {
		var rec domain.PersonaRecord
		if json.Unmarshal([]byte(raw), &rec) == nil {
			return &rec
		}
	}

	rec, err := r.store.GetUserPersona(ctx, userID)
	if err != nil {
		r.logger.Warn("user persona lookup failed", "user", userID, "err", err)
		return nil
	}
	if rec == nil {
		return nil
	}
	if raw, err := json.Marshal(rec); err == nil {
		if err := r.kv.Set(ctx, key, string(raw), cacheTTL); err != nil {
			r.logger.Warn("persona cache write failed", "key", key, "err", err)
		}
	}
	return rec
}

func (r *Resolver) cachedServerPersona(ctx context.Context, guildID string) *domain.PersonaRecord {
	key := serverCacheKey(guildID)
	if raw, ok, err := r.kv.Get(ctx, key); err == nil && ok {
		var rec domain.PersonaRecord
		if json.Unmarshal([]byte(raw), &rec) == nil {
			return &rec
		}
	}

	rec, err := r.store.GetServerPersona(ctx, guildID)
	if err != nil {
		r.logger.Warn("server persona lookup failed", "guild", guildID, "err", err)
		return nil
	}
	if rec == nil {
		return nil
	}
	if raw, err := json.Marshal(rec); err == nil {
		if err := r.kv.Set(ctx, key, string(raw), cacheTTL); err != nil {
			r.logger.Warn("persona cache write failed", "key", key, "err", err)
		}
	}
	return rec
}
