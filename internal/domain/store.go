package domain

import (
	"context"
	"time"
)

// UserProfile accumulates per-user state across interactions. Sentiment is an
// exponential running average (weight 0.2 per update).
type UserProfile struct {
	UserID           string
	DisplayName      string
	PreferredLang    string
	Sentiment        float64
	InteractionCount int
	LastTopics       []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// UserStore persists user profiles.
type UserStore interface {
	// UpsertUser creates the profile on first contact, otherwise increments
	// the interaction count and folds in the new observations.
	UpsertUser(ctx context.Context, userID, displayName, language string, sentiment float64, topics []string) error

	// FoldSentiment folds an observed sentiment into an existing profile's
	// running average without touching the interaction count.
	FoldSentiment(ctx context.Context, userID string, sentiment float64) error

	GetUser(ctx context.Context, userID string) (*UserProfile, error)
}

// Fact is a durable, topic-tagged piece of long-term memory about a user.
type Fact struct {
	ID         int64
	UserID     string
	Topic      string
	Content    string
	Importance int
	CreatedAt  time.Time
}

// FactStore persists and recalls long-term facts.
type FactStore interface {
	SaveFact(ctx context.Context, fact Fact) error
	// RecallFacts returns the user's facts ranked by importance, then
	// recency. A non-empty topics slice narrows the recall to those topics.
	RecallFacts(ctx context.Context, userID string, topics []string, limit int) ([]Fact, error)
}

// LogEntry is one logged conversation turn, optionally with an embedding.
type LogEntry struct {
	MessageID  string
	ChannelID  string
	AuthorID   string
	AuthorName string
	Content    string
	FromBot    bool
	Embedding  []float32 // nil when the content was too short or embedding failed
	CreatedAt  time.Time
}

// ConversationStore persists the conversation log and serves semantic recall.
type ConversationStore interface {
	LogMessage(ctx context.Context, entry LogEntry) error
	// SemanticSearch returns fragments from the channel's recent time window
	// whose stored embeddings are nearest to the query vector.
	SemanticSearch(ctx context.Context, channelID string, embedding []float32, window time.Duration, limit int) ([]MessageFragment, error)
	// Cleanup removes log rows older than the cutoff, returning rows deleted.
	Cleanup(ctx context.Context, olderThan time.Time) (int64, error)
}

// PersonaStore persists server-level and user-level persona overrides.
type PersonaStore interface {
	GetUserPersona(ctx context.Context, userID string) (*PersonaRecord, error)
	SetUserPersona(ctx context.Context, userID string, rec PersonaRecord) error
	DeleteUserPersona(ctx context.Context, userID string) error
	GetServerPersona(ctx context.Context, guildID string) (*PersonaRecord, error)
	SetServerPersona(ctx context.Context, guildID string, rec PersonaRecord) error
}
