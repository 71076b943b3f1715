package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"lunabot/internal/domain"
)

// GetUserPersona returns the user's persona override, or nil when none is set.
func (s *SQLite) GetUserPersona(ctx context.Context, userID string) (*domain.PersonaRecord, error) {
	var preset, quirk, sample sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT preset, quirk_intensity, style_sample FROM user_personas WHERE user_id = ?`,
		userID,
	).Scan(&preset, &quirk, &sample)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user persona %s: %w", userID, err)
	}
	return &domain.PersonaRecord{
		Preset:      preset.String,
		Quirk:       quirk.String,
		StyleSample: sample.String,
	}, nil
}

// SetUserPersona upserts the override. Empty fields keep existing values so
// a quirk-only change does not clear the preset.
func (s *SQLite) SetUserPersona(ctx context.Context, userID string, rec domain.PersonaRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_personas (user_id, preset, quirk_intensity, style_sample, updated_at)
		 VALUES (?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			preset          = COALESCE(NULLIF(excluded.preset, ''), user_personas.preset),
			quirk_intensity = COALESCE(NULLIF(excluded.quirk_intensity, ''), user_personas.quirk_intensity),
			style_sample    = COALESCE(NULLIF(excluded.style_sample, ''), user_personas.style_sample),
			updated_at      = excluded.updated_at`,
		userID, rec.Preset, rec.Quirk, rec.StyleSample, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("set user persona %s: %w", userID, err)
	}
	return nil
}

func (s *SQLite) DeleteUserPersona(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM user_personas WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("delete user persona %s: %w", userID, err)
	}
	return nil
}

// GetServerPersona returns the guild-level default, or nil when unset.
func (s *SQLite) GetServerPersona(ctx context.Context, guildID string) (*domain.PersonaRecord, error) {
	var preset, quirk sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT preset, quirk_intensity FROM server_personas WHERE server_id = ?`,
		guildID,
	).Scan(&preset, &quirk)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get server persona %s: %w", guildID, err)
	}
	return &domain.PersonaRecord{
		Preset: preset.String,
		Quirk:  quirk.String,
	}, nil
}

func (s *SQLite) SetServerPersona(ctx context.Context, guildID string, rec domain.PersonaRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO server_personas (server_id, preset, quirk_intensity, updated_at)
		 VALUES (?, NULLIF(?, ''), NULLIF(?, ''), ?)
		 ON CONFLICT(server_id) DO UPDATE SET
			preset          = COALESCE(NULLIF(excluded.preset, ''), server_personas.preset),
			quirk_intensity = COALESCE(NULLIF(excluded.quirk_intensity, ''), server_personas.quirk_intensity),
			updated_at      = excluded.updated_at`,
		guildID, rec.Preset, rec.Quirk, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("set server persona %s: %w", guildID, err)
	}
	return nil
}
