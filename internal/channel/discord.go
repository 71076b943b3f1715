// Package channel adapts Discord to the narrow chat surface the pipeline
// consumes and hosts the guild slash commands.
package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"lunabot/internal/domain"
	"lunabot/internal/textutil"
)

const discordMaxMsgLen = 2000

// Discord connects the bot to one Discord guild. It publishes inbound
// message events onto the bus and implements domain.ChatClient for the
// pipeline's outbound calls.
type Discord struct {
	token    string
	guildID  string
	session  *discordgo.Session
	bus      domain.MessageBus
	commands *CommandHandler
	logger   *slog.Logger
}

type DiscordConfig struct {
	Token    string
	GuildID  string
	Commands *CommandHandler
	Logger   *slog.Logger
}

func NewDiscord(cfg DiscordConfig) *Discord {
	return &Discord{
		token:    cfg.Token,
		guildID:  cfg.GuildID,
		commands: cfg.Commands,
		logger:   cfg.Logger,
	}
}

// Start connects and blocks until ctx is canceled.
func (d *Discord) Start(ctx context.Context, bus domain.MessageBus) error {
	d.bus = bus

	session, err := discordgo.New("Bot " + d.token)
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsGuildMessageReactions | discordgo.IntentsMessageContent
	d.session = session

	session.AddHandler(d.onMessageCreate)
	if d.commands != nil {
		session.AddHandler(d.commands.onInteraction)
	}

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord connect: %w", err)
	}
	d.logger.Info("discord connected", "user", session.State.User.Username)

	if d.commands != nil {
		d.commands.register(session, d.guildID)
	}

	<-ctx.Done()
	d.logger.Info("discord disconnecting")
	return session.Close()
}

func (d *Discord) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if d.guildID != "" && m.GuildID != "" && m.GuildID != d.guildID {
		return
	}

	msg := domain.InboundMessage{
		MessageID:   m.ID,
		GuildID:     m.GuildID,
		ChannelID:   m.ChannelID,
		AuthorID:    m.Author.ID,
		AuthorName:  displayName(m),
		Content:     m.Content,
		ImageURLs:   imageURLs(m.Message),
		MentionsBot: mentionsUser(m.Message, s.State.User.ID),
		Timestamp:   m.Timestamp,
	}

	if ref := m.MessageReference; ref != nil && ref.MessageID != "" {
		msg.ReplyToID = ref.MessageID
		msg.RepliesToBot = d.referencesBot(s, m)
	}

	d.logger.Debug("discord message",
		"author", m.Author.Username,
		"channel", m.ChannelID,
		"len", len(m.Content),
	)
	d.bus.Publish(msg)
}

func (d *Discord) referencesBot(s *discordgo.Session, m *discordgo.MessageCreate) bool {
	if m.ReferencedMessage != nil {
		return m.ReferencedMessage.Author != nil && m.ReferencedMessage.Author.ID == s.State.User.ID
	}
	ref, err := s.ChannelMessage(m.ChannelID, m.MessageReference.MessageID)
	if err != nil || ref.Author == nil {
		return false
	}
	return ref.Author.ID == s.State.User.ID
}

// --- domain.ChatClient ---

func (d *Discord) BotUserID() string {
	if d.session == nil || d.session.State.User == nil {
		return ""
	}
	return d.session.State.User.ID
}

func (d *Discord) Send(_ context.Context, channelID, content string) error {
	for _, chunk := range splitMessage(content, discordMaxMsgLen) {
		if _, err := d.session.ChannelMessageSend(channelID, chunk); err != nil {
			return fmt.Errorf("discord send: %w", err)
		}
	}
	return nil
}

func (d *Discord) Reply(_ context.Context, channelID, content, replyToID string) error {
	chunks := splitMessage(content, discordMaxMsgLen)
	ref := &discordgo.MessageReference{MessageID: replyToID, ChannelID: channelID}
	if _, err := d.session.ChannelMessageSendReply(channelID, chunks[0], ref); err != nil {
		return fmt.Errorf("discord reply: %w", err)
	}
	for _, chunk := range chunks[1:] {
		if _, err := d.session.ChannelMessageSend(channelID, chunk); err != nil {
			return fmt.Errorf("discord reply continuation: %w", err)
		}
	}
	return nil
}

func (d *Discord) React(_ context.Context, channelID, messageID, emoji string) error {
	if err := d.session.MessageReactionAdd(channelID, messageID, emoji); err != nil {
		return fmt.Errorf("discord react: %w", err)
	}
	return nil
}

func (d *Discord) Typing(_ context.Context, channelID string) error {
	if err := d.session.ChannelTyping(channelID); err != nil {
		return fmt.Errorf("discord typing: %w", err)
	}
	return nil
}

// History returns up to limit recent messages, oldest first.
func (d *Discord) History(_ context.Context, channelID string, limit int) ([]domain.MessageFragment, error) {
	messages, err := d.session.ChannelMessages(channelID, limit, "", "", "")
	if err != nil {
		return nil, fmt.Errorf("discord history: %w", err)
	}
	// The API returns newest first.
	frags := make([]domain.MessageFragment, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		frags = append(frags, toFragment(messages[i]))
	}
	return frags, nil
}

func (d *Discord) FetchMessage(_ context.Context, channelID, messageID string) (*domain.MessageFragment, error) {
	m, err := d.session.ChannelMessage(channelID, messageID)
	if err != nil {
		return nil, fmt.Errorf("discord fetch message: %w", err)
	}
	frag := toFragment(m)
	return &frag, nil
}

// --- helpers ---

func toFragment(m *discordgo.Message) domain.MessageFragment {
	frag := domain.MessageFragment{
		ID:        m.ID,
		Text:      m.Content,
		Timestamp: m.Timestamp,
	}
	if m.Author != nil {
		frag.AuthorID = m.Author.ID
		frag.AuthorName = m.Author.Username
		frag.FromBot = m.Author.Bot
	}
	if m.Member != nil && m.Member.Nick != "" {
		frag.AuthorName = m.Member.Nick
	}
	if m.MessageReference != nil {
		frag.ReplyToID = m.MessageReference.MessageID
	}
	return frag
}

func displayName(m *discordgo.MessageCreate) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}

func mentionsUser(m *discordgo.Message, userID string) bool {
	for _, u := range m.Mentions {
		if u.ID == userID {
			return true
		}
	}
	return false
}

// imageURLs collects image links from attachments, embeds, and inline URLs.
func imageURLs(m *discordgo.Message) []string {
	var urls []string
	for _, att := range m.Attachments {
		if strings.HasPrefix(att.ContentType, "image/") {
			urls = append(urls, att.URL)
		}
	}
	for _, emb := range m.Embeds {
		if emb.Image != nil && emb.Image.URL != "" {
			urls = append(urls, emb.Image.URL)
		}
		if emb.Thumbnail != nil && emb.Thumbnail.URL != "" {
			urls = append(urls, emb.Thumbnail.URL)
		}
	}
	urls = append(urls, textutil.ImageURLs(m.Content)...)
	return urls
}

// splitMessage splits content into chunks under maxLen, preferring newline
// boundaries in the back half of a chunk.
func splitMessage(msg string, maxLen int) []string {
	if len(msg) <= maxLen {
		return []string{msg}
	}
	var chunks []string
	for len(msg) > 0 {
		if len(msg) <= maxLen {
			chunks = append(chunks, msg)
			break
		}
		cut := maxLen
		if idx := strings.LastIndex(msg[:maxLen], "\n"); idx > maxLen/2 {
			cut = idx + 1
		}
		chunks = append(chunks, msg[:cut])
		msg = msg[cut:]
	}
	return chunks
}
