package store

import (
	"context"
	"fmt"
	"strings"

	"lunabot/internal/domain"
	"lunabot/internal/textutil"
)

const (
	minFactLen = 20
	maxFactLen = 500
)

// ExtractFacts turns a message into durable memory rows, one per detected
// topic. Messages that are too short or carry no topic yield nothing.
func ExtractFacts(userID, content string, sentiment float64) []domain.Fact {
	if len(content) < minFactLen {
		return nil
	}
	topics := textutil.DetectTopics(content)
	if len(topics) == 0 {
		return nil
	}

	truncated := content
	if len(truncated) > maxFactLen {
		truncated = truncated[:maxFactLen]
	}
	importance := textutil.ImportanceScore(content, sentiment)

	facts := make([]domain.Fact, 0, len(topics))
	for _, topic := range topics {
		facts = append(facts, domain.Fact{
			UserID:     userID,
			Topic:      topic,
			Content:    truncated,
			Importance: importance,
		})
	}
	return facts
}

func (s *SQLite) SaveFact(ctx context.Context, fact domain.Fact) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bot_memories (user_id, topic, content, importance)
		 VALUES (?, ?, ?, ?)`,
		fact.UserID, fact.Topic, fact.Content, fact.Importance,
	)
	if err != nil {
		return fmt.Errorf("save fact: %w", err)
	}
	return nil
}

// RecallFacts returns the user's memories ranked by importance then recency,
// narrowed to the given topics when any are provided.
func (s *SQLite) RecallFacts(ctx context.Context, userID string, topics []string, limit int) ([]domain.Fact, error) {
	if limit <= 0 {
		limit = 3
	}

	query := `SELECT id, user_id, topic, content, importance, created_at
		 FROM bot_memories WHERE user_id = ?`
	args := []any{userID}
	if len(topics) > 0 {
		query += ` AND topic IN (?` + strings.Repeat(",?", len(topics)-1) + `)`
		for _, t := range topics {
			args = append(args, t)
		}
	}
	query += ` ORDER BY importance DESC, created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("recall facts: %w", err)
	}
	defer rows.Close()

	var facts []domain.Fact
	for rows.Next() {
		var f domain.Fact
		if err := rows.Scan(&f.ID, &f.UserID, &f.Topic, &f.Content, &f.Importance, &f.CreatedAt); err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}
