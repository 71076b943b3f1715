// Package assembler gathers everything the model needs to answer one
// message: the reply chain, recent channel history, long-term facts, and
// semantically similar past fragments, rendered under a token budget.
package assembler

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"time"

	"lunabot/internal/domain"
	"lunabot/internal/textutil"
)

// minSemanticQueryLen gates vector retrieval; very short messages embed
// poorly and mostly return noise.
const minSemanticQueryLen = 10

// Vectorizer turns text into an embedding, returning nil when the embedding
// backend is unavailable.
type Vectorizer interface {
	Vector(ctx context.Context, text string) []float32
}

type Config struct {
	HistoryLimit        int
	ReplyChainDepth     int
	HistoryCacheSeconds int
	SemanticWindowHours int
	SemanticLimit       int
	FactLimit           int
	TokenBudget         int
}

func (c *Config) defaults() {
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 15
	}
	if c.ReplyChainDepth <= 0 {
		c.ReplyChainDepth = 5
	}
	if c.HistoryCacheSeconds <= 0 {
		c.HistoryCacheSeconds = 120
	}
	if c.SemanticWindowHours <= 0 {
		c.SemanticWindowHours = 24
	}
	if c.SemanticLimit <= 0 {
		c.SemanticLimit = 3
	}
	if c.FactLimit <= 0 {
		c.FactLimit = 3
	}
	if c.TokenBudget <= 0 {
		c.TokenBudget = 800
	}
}

// Context is the assembled material for one inbound message.
type Context struct {
	ReplyChain []domain.MessageFragment // newest first, walked up from the current message
	History    []domain.MessageFragment // oldest first, current message excluded
	Memories   []domain.Fact
	Semantic   []domain.MessageFragment // deduplicated, chronological
	Profile    *domain.UserProfile
	Language   string
	// ActiveUsers maps user IDs to display names seen in recent history.
	ActiveUsers map[string]string
}

type Assembler struct {
	cfg    Config
	chat   domain.ChatClient
	kv     domain.KVStore
	users  domain.UserStore
	facts  domain.FactStore
	convs  domain.ConversationStore
	vec    Vectorizer
	logger *slog.Logger
}

func New(cfg Config, chat domain.ChatClient, kv domain.KVStore, users domain.UserStore, facts domain.FactStore, convs domain.ConversationStore, vec Vectorizer, logger *slog.Logger) *Assembler {
	cfg.defaults()
	return &Assembler{
		cfg:    cfg,
		chat:   chat,
		kv:     kv,
		users:  users,
		facts:  facts,
		convs:  convs,
		vec:    vec,
		logger: logger,
	}
}

// Build assembles context for msg. Individual sources failing degrade to an
// emptier context rather than an error; a reply built from less is better
// than no reply.
func (a *Assembler) Build(ctx context.Context, msg domain.InboundMessage) *Context {
	start := time.Now()
	out := &Context{ActiveUsers: make(map[string]string)}

	out.ReplyChain = a.traceReplyChain(ctx, msg)
	out.History = a.channelHistory(ctx, msg.ChannelID, msg.MessageID)

	topics := textutil.DetectTopics(msg.Content)
	facts, err := a.facts.RecallFacts(ctx, msg.AuthorID, topics, a.cfg.FactLimit)
	if err != nil {
		a.logger.Warn("fact recall failed", "user", msg.AuthorID, "error", err)
	}
	out.Memories = facts

	rawSemantic := a.semanticRetrieval(ctx, msg.ChannelID, msg.Content)
	out.Semantic = dedupeSemantic(rawSemantic, out.ReplyChain, out.History, msg.MessageID)

	profile, err := a.users.GetUser(ctx, msg.AuthorID)
	if err != nil {
		a.logger.Warn("profile load failed", "user", msg.AuthorID, "error", err)
	}
	out.Profile = profile

	out.Language = textutil.DetectLanguage(msg.Content)
	if out.Language == "" && profile != nil {
		out.Language = profile.PreferredLang
	}
	if out.Language == "" {
		out.Language = "en"
	}

	for _, frag := range out.History {
		if !frag.FromBot {
			out.ActiveUsers[frag.AuthorID] = frag.AuthorName
		}
	}

	a.logger.Info("context built",
		"history", len(out.History),
		"chain", len(out.ReplyChain),
		"memories", len(out.Memories),
		"semantic", len(out.Semantic),
		"took", time.Since(start),
	)
	return out
}

// traceReplyChain walks parent references up from msg, newest first. The
// walk stops at the depth limit or the first fetch failure (deleted parent,
// missing permission).
func (a *Assembler) traceReplyChain(ctx context.Context, msg domain.InboundMessage) []domain.MessageFragment {
	var chain []domain.MessageFragment
	parentID := msg.ReplyToID
	for depth := 0; parentID != "" && depth < a.cfg.ReplyChainDepth; depth++ {
		parent, err := a.chat.FetchMessage(ctx, msg.ChannelID, parentID)
		if err != nil {
			a.logger.Debug("reply chain walk stopped", "message", parentID, "error", err)
			break
		}
		chain = append(chain, *parent)
		parentID = parent.ReplyToID
	}
	return chain
}

func historyCacheKey(channelID string) string { return "ctx:" + channelID }

// channelHistory returns recent channel messages oldest first, serving from
// the KV cache when fresh. The current message is excluded in both paths.
func (a *Assembler) channelHistory(ctx context.Context, channelID, excludeID string) []domain.MessageFragment {
	if cached, ok := a.cachedHistory(ctx, channelID); ok {
		return excludeFragment(cached, excludeID)
	}

	fetched, err := a.chat.History(ctx, channelID, a.cfg.HistoryLimit)
	if err != nil {
		a.logger.Warn("history fetch failed", "channel", channelID, "error", err)
		return nil
	}

	history := make([]domain.MessageFragment, 0, len(fetched))
	for _, frag := range fetched {
		if frag.Text == "" {
			continue
		}
		history = append(history, frag)
	}

	if data, err := json.Marshal(history); err == nil {
		ttl := time.Duration(a.cfg.HistoryCacheSeconds) * time.Second
		if err := a.kv.Set(ctx, historyCacheKey(channelID), string(data), ttl); err != nil {
			a.logger.Warn("history cache write failed", "channel", channelID, "error", err)
		}
	}

	return excludeFragment(history, excludeID)
}

func (a *Assembler) cachedHistory(ctx context.Context, channelID string) ([]domain.MessageFragment, bool) {
	raw, ok, err := a.kv.Get(ctx, historyCacheKey(channelID))
	if err != nil || !ok {
		return nil, false
	}
	var history []domain.MessageFragment
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		a.logger.Warn("history cache corrupt", "channel", channelID, "error", err)
		return nil, false
	}
	return history, true
}

// InvalidateHistory drops the channel's history cache. Called after the bot
// itself posts so its own messages show up in the next assembly.
func (a *Assembler) InvalidateHistory(ctx context.Context, channelID string) {
	if err := a.kv.Delete(ctx, historyCacheKey(channelID)); err != nil {
		a.logger.Warn("history cache invalidation failed", "channel", channelID, "error", err)
	}
}

func (a *Assembler) semanticRetrieval(ctx context.Context, channelID, content string) []domain.MessageFragment {
	if a.vec == nil || len(content) < minSemanticQueryLen {
		return nil
	}
	embedding := a.vec.Vector(ctx, content)
	if embedding == nil {
		return nil
	}
	window := time.Duration(a.cfg.SemanticWindowHours) * time.Hour
	results, err := a.convs.SemanticSearch(ctx, channelID, embedding, window, a.cfg.SemanticLimit)
	if err != nil {
		a.logger.Warn("semantic search failed", "channel", channelID, "error", err)
		return nil
	}
	return results
}

// dedupeSemantic drops semantic hits already present in the chain or
// history, then orders survivors chronologically.
func dedupeSemantic(semantic, chain, history []domain.MessageFragment, currentID string) []domain.MessageFragment {
	seen := map[string]bool{currentID: true}
	for _, frag := range chain {
		seen[frag.ID] = true
	}
	for _, frag := range history {
		seen[frag.ID] = true
	}

	var unique []domain.MessageFragment
	for _, frag := range semantic {
		if !seen[frag.ID] {
			seen[frag.ID] = true
			unique = append(unique, frag)
		}
	}
	sort.Slice(unique, func(i, j int) bool {
		return unique[i].Timestamp.Before(unique[j].Timestamp)
	})
	return unique
}

func excludeFragment(frags []domain.MessageFragment, id string) []domain.MessageFragment {
	out := make([]domain.MessageFragment, 0, len(frags))
	for _, frag := range frags {
		if frag.ID != id {
			out = append(out, frag)
		}
	}
	return out
}
