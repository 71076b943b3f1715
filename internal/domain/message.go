package domain

import "time"

// MessageFragment is an immutable snapshot of a single chat message, used in
// reply chains, channel history, and semantic recall.
type MessageFragment struct {
	ID         string    `json:"id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Text       string    `json:"text"`
	FromBot    bool      `json:"from_bot"`
	ReplyToID  string    `json:"reply_to_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// InboundMessage is a message event delivered by the chat platform adapter.
type InboundMessage struct {
	MessageID    string
	GuildID      string
	ChannelID    string
	AuthorID     string
	AuthorName   string
	Content      string
	ImageURLs    []string
	ReplyToID    string // id of the message this one replies to, "" if none
	MentionsBot  bool
	RepliesToBot bool
	Timestamp    time.Time
}

// HasImage reports whether the message carries at least one image attachment.
func (m InboundMessage) HasImage() bool { return len(m.ImageURLs) > 0 }
