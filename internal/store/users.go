package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"lunabot/internal/domain"
)

// Sentiment folds in with weight 0.2 per update.
const sentimentWeight = 0.2

// UpsertUser creates the profile on first contact; on later contacts it
// bumps the interaction count, refreshes the display name and language, and
// folds the observed sentiment into the running average.
func (s *SQLite) UpsertUser(ctx context.Context, userID, displayName, language string, sentiment float64, topics []string) error {
	now := time.Now()

	var topicsJSON any
	if len(topics) > 0 {
		b, err := json.Marshal(topics)
		if err != nil {
			return fmt.Errorf("marshal topics: %w", err)
		}
		topicsJSON = string(b)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE user_profiles SET
			display_name = ?,
			preferred_lang = COALESCE(NULLIF(?, ''), preferred_lang),
			sentiment_avg = sentiment_avg * ? + ? * ?,
			interaction_count = interaction_count + 1,
			topics = COALESCE(?, topics),
			updated_at = ?
		 WHERE user_id = ?`,
		displayName, language,
		1-sentimentWeight, sentiment, sentimentWeight,
		topicsJSON, now, userID,
	)
	if err != nil {
		return fmt.Errorf("update user %s: %w", userID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	lang := language
	if lang == "" {
		lang = "en"
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO user_profiles
			(user_id, display_name, preferred_lang, sentiment_avg, interaction_count, topics, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 1, ?, ?, ?)`,
		userID, displayName, lang, sentiment*sentimentWeight, topicsJSON, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert user %s: %w", userID, err)
	}
	return nil
}

// FoldSentiment adjusts only the running sentiment average of an existing
// profile. Unknown users are a no-op.
func (s *SQLite) FoldSentiment(ctx context.Context, userID string, sentiment float64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE user_profiles SET
			sentiment_avg = sentiment_avg * ? + ? * ?,
			updated_at = ?
		 WHERE user_id = ?`,
		1-sentimentWeight, sentiment, sentimentWeight, time.Now(), userID,
	)
	if err != nil {
		return fmt.Errorf("fold sentiment %s: %w", userID, err)
	}
	return nil
}

// GetUser returns the stored profile, or nil when the user is unknown.
func (s *SQLite) GetUser(ctx context.Context, userID string) (*domain.UserProfile, error) {
	var (
		p          domain.UserProfile
		topicsJSON sql.NullString
		lang       sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, display_name, preferred_lang, sentiment_avg, interaction_count, topics, created_at, updated_at
		 FROM user_profiles WHERE user_id = ?`, userID,
	).Scan(&p.UserID, &p.DisplayName, &lang, &p.Sentiment, &p.InteractionCount, &topicsJSON, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}
	p.PreferredLang = lang.String
	if topicsJSON.Valid && topicsJSON.String != "" {
		if err := json.Unmarshal([]byte(topicsJSON.String), &p.LastTopics); err != nil {
			s.logger.Warn("corrupt topics column", "user", userID, "err", err)
		}
	}
	return &p, nil
}

// TopUsers returns the most active profiles, for the stats command.
func (s *SQLite) TopUsers(ctx context.Context, limit int) ([]domain.UserProfile, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, display_name, interaction_count, sentiment_avg
		 FROM user_profiles ORDER BY interaction_count DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("top users: %w", err)
	}
	defer rows.Close()

	var users []domain.UserProfile
	for rows.Next() {
		var p domain.UserProfile
		if err := rows.Scan(&p.UserID, &p.DisplayName, &p.InteractionCount, &p.Sentiment); err != nil {
			return nil, err
		}
		users = append(users, p)
	}
	return users, rows.Err()
}

// TotalUsers counts stored profiles.
func (s *SQLite) TotalUsers(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_profiles`).Scan(&n)
	return n, err
}
