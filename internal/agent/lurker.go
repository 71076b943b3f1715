package agent

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"lunabot/internal/domain"
	"lunabot/internal/metrics"
)

// interestKeywords weights topics the bot finds worth butting into.
var interestKeywords = []struct {
	topic  string
	words  []string
	weight int
}{
	{"gaming", []string{"valorant", "minecraft", "roblox", "game", "rank", "grind", "noob", "gg", "clutch", "apex", "ml"}, 15},
	{"drama", []string{"drama", "beef", "toxic", "cancel", "expose", "caught"}, 20},
	{"food", []string{"food", "eat", "hungry", "lunch", "dinner", "pizza", "makan", "lapar"}, 10},
	{"tech", []string{"code", "bug", "server", "api", "error", "python", "javascript", "deploy"}, 12},
	{"meme", []string{"meme", "funny", "lmao", "bruh moment", "based", "chad", "shitpost"}, 8},
	{"personal", []string{"girlfriend", "boyfriend", "crush", "love", "relationship", "dating", "pacar", "gebetan"}, 18},
}

type LurkerConfig struct {
	Channels        []string
	MinInterest     int
	CooldownSeconds int
	BaseChance      float64
}

func (c *LurkerConfig) defaults() {
	if c.MinInterest <= 0 {
		c.MinInterest = 85
	}
	if c.CooldownSeconds <= 0 {
		c.CooldownSeconds = 600
	}
	if c.BaseChance <= 0 {
		c.BaseChance = 0.03
	}
}

// freeformGenerator is the slice of the gateway the lurker consumes.
type freeformGenerator interface {
	GenerateFreeform(ctx context.Context, req domain.GenerateRequest) (string, error)
}

// Lurker watches designated channels and occasionally interjects when the
// conversation hits something it cares about.
type Lurker struct {
	cfg      LurkerConfig
	channels map[string]bool
	chat     domain.ChatClient
	kv       domain.KVStore
	gw       freeformGenerator
	resolver personaResolver
	human    humanizer
	logger   *slog.Logger

	mu     sync.Mutex
	recent map[string][]time.Time // channelID -> message timestamps, last 60s
}

func NewLurker(cfg LurkerConfig, chat domain.ChatClient, kv domain.KVStore, gw freeformGenerator, resolver personaResolver, human humanizer, logger *slog.Logger) *Lurker {
	cfg.defaults()
	channels := make(map[string]bool, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		channels[ch] = true
	}
	return &Lurker{
		cfg:      cfg,
		channels: channels,
		chat:     chat,
		kv:       kv,
		gw:       gw,
		resolver: resolver,
		human:    human,
		logger:   logger,
		recent:   make(map[string][]time.Time),
	}
}

func lurkKey(channelID string) string { return "lurk:" + channelID }

// Observe considers one non-directed message. It never replies directly;
// when it fires, the interjection goes out as a plain channel message.
func (l *Lurker) Observe(ctx context.Context, msg domain.InboundMessage) {
	if !l.channels[msg.ChannelID] {
		return
	}

	recentCount := l.trackActivity(msg.ChannelID)
	interest, topic := scoreInterest(msg.Content, recentCount)
	if interest < l.cfg.MinInterest {
		return
	}

	if l.onCooldown(ctx, msg.ChannelID) {
		return
	}

	chance := l.cfg.BaseChance + float64(interest-l.cfg.MinInterest)*0.01
	if rand.Float64() > chance {
		return
	}

	l.interject(ctx, msg, topic, interest)
}

func (l *Lurker) interject(ctx context.Context, msg domain.InboundMessage, topic string, interest int) {
	prof := l.resolver.Resolve(ctx, msg.AuthorID, msg.GuildID)

	systemPrompt := fmt.Sprintf(
		"You are Luna (MR_Luna), lurking in Discord. "+
			"You just read something interesting and want to chime in.\n"+
			"Topic: %s\n"+
			"RULES:\n"+
			"- Jump in naturally, like a friend suddenly commenting\n"+
			"- VERY SHORT (max 12 words)\n"+
			"- Don't pretend to know stuff you don't\n"+
			"- Can be random, funny, or absurd\n"+
			"- Don't ask questions, just comment or react\n"+
			"- Lowercase, casual",
		topic,
	)

	text, err := l.gw.GenerateFreeform(ctx, domain.GenerateRequest{
		SystemPrompt: systemPrompt,
		UserContent:  fmt.Sprintf("Someone said: %q", clipContent(msg.Content, 200)),
		MaxTokens:    40,
		Temperature:  0.95,
	})
	if err != nil {
		l.logger.Warn("lurk generation failed", "channel", msg.ChannelID, "error", err)
		return
	}
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return
	}

	text = l.human.Apply(text, domain.Quirk(prof.Quirk))

	sleepCtx(ctx, time.Duration(1+rand.Float64()*2)*time.Second)
	if err := l.chat.Send(ctx, msg.ChannelID, text); err != nil {
		l.logger.Warn("lurk send failed", "channel", msg.ChannelID, "error", err)
		return
	}

	cooldown := time.Duration(l.cfg.CooldownSeconds) * time.Second
	if err := l.kv.Set(ctx, lurkKey(msg.ChannelID), "1", cooldown); err != nil {
		l.logger.Warn("lurk cooldown set failed", "channel", msg.ChannelID, "error", err)
	}

	metrics.LurkerInterjections().Inc()
	l.logger.Info("lurk interjection",
		"channel", msg.ChannelID,
		"interest", interest,
		"topic", topic,
	)
}

// onCooldown fails closed: if the KV store errors, the lurker stays quiet.
func (l *Lurker) onCooldown(ctx context.Context, channelID string) bool {
	_, exists, err := l.kv.Get(ctx, lurkKey(channelID))
	if err != nil {
		l.logger.Warn("lurk cooldown check failed", "channel", channelID, "error", err)
		return true
	}
	return exists
}

// trackActivity records the message and returns how many arrived in the
// channel over the last minute.
func (l *Lurker) trackActivity(channelID string) int {
	now := time.Now()
	cutoff := now.Add(-time.Minute)

	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.recent[channelID][:0]
	for _, ts := range l.recent[channelID] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, now)
	l.recent[channelID] = kept
	return len(kept)
}

// scoreInterest rates a message 0..100 by topic keywords, length, excitement
// punctuation, and channel busyness.
func scoreInterest(content string, recentCount int) (int, string) {
	lower := strings.ToLower(content)
	score := 0
	topTopic := "general"
	topWeight := 0

	for _, group := range interestKeywords {
		matches := 0
		for _, w := range group.words {
			if strings.Contains(lower, w) {
				matches++
			}
		}
		topicScore := matches * group.weight
		score += topicScore
		if topicScore > topWeight {
			topWeight = topicScore
			topTopic = group.topic
		}
	}

	if len(content) > 50 {
		score += 5
	}
	if len(content) > 100 {
		score += 5
	}
	if strings.Contains(content, "!!") || strings.Contains(content, "??") {
		score += 8
	}
	if recentCount > 5 {
		score += 10
	}

	if score > 100 {
		score = 100
	}
	return score, topTopic
}

func clipContent(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
