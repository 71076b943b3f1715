// Package store implements the relational persistence layer on SQLite:
// user profiles, long-term memories, the conversation log with embeddings,
// and persona overrides.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Memories older than this with low importance are swept by Cleanup.
const (
	memoryRetention     = 30 * 24 * time.Hour
	memoryKeepThreshold = 7
)

// SQLite implements domain.UserStore, domain.FactStore,
// domain.ConversationStore, and domain.PersonaStore.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

func Open(dbPath string, logger *slog.Logger) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLite{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS user_profiles (
		user_id           TEXT PRIMARY KEY,
		display_name      TEXT NOT NULL,
		preferred_lang    TEXT DEFAULT 'en',
		sentiment_avg     REAL DEFAULT 0.0,
		interaction_count INTEGER DEFAULT 0,
		topics            TEXT,
		created_at        DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at        DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS bot_memories (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id    TEXT NOT NULL,
		topic      TEXT NOT NULL,
		content    TEXT NOT NULL,
		importance INTEGER DEFAULT 5,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_memories_user ON bot_memories(user_id, importance DESC);

	CREATE TABLE IF NOT EXISTS conversation_log (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		channel_id  TEXT NOT NULL,
		message_id  TEXT UNIQUE NOT NULL,
		user_id     TEXT NOT NULL,
		author_name TEXT,
		content     TEXT NOT NULL,
		embedding   BLOB,
		is_bot      INTEGER DEFAULT 0,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_convlog_channel ON conversation_log(channel_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS server_personas (
		server_id       TEXT PRIMARY KEY,
		preset          TEXT,
		quirk_intensity TEXT,
		updated_at      DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS user_personas (
		user_id         TEXT PRIMARY KEY,
		preset          TEXT,
		quirk_intensity TEXT,
		style_sample    TEXT,
		updated_at      DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Cleanup removes conversation-log rows older than the cutoff and sweeps
// stale low-importance memories. Returns conversation rows deleted.
func (s *SQLite) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM conversation_log WHERE created_at < ?`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("cleanup conversation log: %w", err)
	}
	deleted, _ := res.RowsAffected()

	_, err = s.db.ExecContext(ctx,
		`DELETE FROM bot_memories WHERE created_at < ? AND importance < ?`,
		time.Now().Add(-memoryRetention), memoryKeepThreshold)
	if err != nil {
		return deleted, fmt.Errorf("cleanup memories: %w", err)
	}
	return deleted, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
