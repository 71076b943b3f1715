package domain

import "context"

// ChatClient is the narrow surface of the chat platform the pipeline
// consumes. Every operation may fail (deleted message, missing permission,
// network error) and callers treat failures as recoverable.
type ChatClient interface {
	BotUserID() string

	Send(ctx context.Context, channelID, content string) error
	Reply(ctx context.Context, channelID, content, replyToID string) error
	React(ctx context.Context, channelID, messageID, emoji string) error
	Typing(ctx context.Context, channelID string) error

	// History returns up to limit recent messages, oldest first.
	History(ctx context.Context, channelID string, limit int) ([]MessageFragment, error)
	FetchMessage(ctx context.Context, channelID, messageID string) (*MessageFragment, error)
}

// MessageBus decouples the platform adapter from the pipeline. The adapter
// publishes inbound events; the pipeline consumes them.
type MessageBus interface {
	Publish(msg InboundMessage)
	Inbound() <-chan InboundMessage
	Close()
}
