package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"lunabot/internal/domain"
	"lunabot/internal/embed"
)

const (
	maxLoggedContentLen = 2000
	similarityFloor     = 0.3
)

// LogMessage appends a turn to the conversation log. Duplicate message ids
// are silently ignored so retried persistence stays idempotent.
func (s *SQLite) LogMessage(ctx context.Context, entry domain.LogEntry) error {
	content := entry.Content
	if len(content) > maxLoggedContentLen {
		content = content[:maxLoggedContentLen]
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var blob []byte
	if len(entry.Embedding) > 0 {
		var err error
		blob, err = embed.EncodeVector(entry.Embedding)
		if err != nil {
			return fmt.Errorf("encode embedding: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO conversation_log
			(channel_id, message_id, user_id, author_name, content, embedding, is_bot, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ChannelID, entry.MessageID, entry.AuthorID, entry.AuthorName,
		content, blob, entry.FromBot, createdAt,
	)
	if err != nil {
		return fmt.Errorf("log message: %w", err)
	}
	return nil
}

// SemanticSearch scans the channel's recent window and returns the fragments
// nearest to the query vector, best first. Rows below the similarity floor
// are dropped.
func (s *SQLite) SemanticSearch(ctx context.Context, channelID string, embedding []float32, window time.Duration, limit int) ([]domain.MessageFragment, error) {
	if limit <= 0 {
		limit = 3
	}
	cutoff := time.Now().Add(-window)

	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, user_id, author_name, content, embedding, is_bot, created_at
		 FROM conversation_log
		 WHERE channel_id = ? AND embedding IS NOT NULL AND created_at > ?`,
		channelID, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	defer rows.Close()

	type scored struct {
		frag  domain.MessageFragment
		score float64
	}
	var candidates []scored

	for rows.Next() {
		var (
			frag       domain.MessageFragment
			authorName sql.NullString
			blob       []byte
		)
		if err := rows.Scan(&frag.ID, &frag.AuthorID, &authorName, &frag.Text, &blob, &frag.FromBot, &frag.Timestamp); err != nil {
			return nil, err
		}
		frag.AuthorName = authorName.String

		vec, err := embed.DecodeVector(blob)
		if err != nil {
			s.logger.Warn("corrupt embedding blob", "message_id", frag.ID, "err", err)
			continue
		}
		score, err := embed.CosineSimilarity(embedding, vec)
		if err != nil || score <= similarityFloor {
			continue
		}
		candidates = append(candidates, scored{frag: frag, score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	frags := make([]domain.MessageFragment, len(candidates))
	for i, c := range candidates {
		frags[i] = c.frag
	}
	return frags, nil
}
