// Package agent runs the message pipeline: trigger filtering, gatekeeping,
// context assembly, generation, and reply delivery, plus the unprompted
// lurker and the per-user rate limit.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"lunabot/internal/assembler"
	"lunabot/internal/domain"
	"lunabot/internal/metrics"
	"lunabot/internal/persona"
	"lunabot/internal/store"
	"lunabot/internal/textutil"
)

const (
	apologyReply   = "my brain glitched sry"
	reactChance    = 0.10
	visionTokens   = 100
	minEmbedLen    = 10
	persistTimeout = 15 * time.Second
)

var quickReactions = []string{"👍", "💀", "😂", "🔥"}

// router decides what a message deserves.
type router interface {
	Classify(ctx context.Context, text string, hasImage bool) domain.RouteDecision
}

// contextBuilder assembles and renders per-message context.
type contextBuilder interface {
	Build(ctx context.Context, msg domain.InboundMessage) *assembler.Context
	Render(c *assembler.Context, msg domain.InboundMessage) string
	InvalidateHistory(ctx context.Context, channelID string)
}

// personaResolver yields the effective persona for a user in a guild.
type personaResolver interface {
	Resolve(ctx context.Context, userID, guildID string) domain.PersonaProfile
}

// generator is the slice of the gateway the pipeline consumes.
type generator interface {
	GenerateStructuredReply(ctx context.Context, req domain.GenerateRequest) domain.StructuredReply
	GenerateVision(ctx context.Context, req domain.GenerateRequest) (string, error)
}

// humanizer roughs up outgoing text.
type humanizer interface {
	Apply(text string, quirk domain.Quirk) string
	ApplyAndSplit(text string, quirk domain.Quirk) []string
}

type PipelineConfig struct {
	AllowedGuildID  string
	IgnoredChannels []string
	Temperature     float64
}

type Pipeline struct {
	cfg      PipelineConfig
	ignored  map[string]bool
	chat     domain.ChatClient
	bus      domain.MessageBus
	router   router
	asm      contextBuilder
	resolver personaResolver
	gw       generator
	limiter  *Limiter
	human    humanizer
	users    domain.UserStore
	facts    domain.FactStore
	convs    domain.ConversationStore
	vec      assembler.Vectorizer
	lurker   *Lurker
	logger   *slog.Logger
}

func NewPipeline(
	cfg PipelineConfig,
	chat domain.ChatClient,
	bus domain.MessageBus,
	r router,
	asm contextBuilder,
	resolver personaResolver,
	gw generator,
	limiter *Limiter,
	human humanizer,
	users domain.UserStore,
	facts domain.FactStore,
	convs domain.ConversationStore,
	vec assembler.Vectorizer,
	lurker *Lurker,
	logger *slog.Logger,
) *Pipeline {
	ignored := make(map[string]bool, len(cfg.IgnoredChannels))
	for _, ch := range cfg.IgnoredChannels {
		ignored[ch] = true
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.85
	}
	return &Pipeline{
		cfg:      cfg,
		ignored:  ignored,
		chat:     chat,
		bus:      bus,
		router:   r,
		asm:      asm,
		resolver: resolver,
		gw:       gw,
		limiter:  limiter,
		human:    human,
		users:    users,
		facts:    facts,
		convs:    convs,
		vec:      vec,
		lurker:   lurker,
		logger:   logger,
	}
}

// Run consumes the inbound bus until ctx is canceled. Each message gets its
// own goroutine so one slow provider call never stalls the channel.
func (p *Pipeline) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-p.bus.Inbound():
			if !ok {
				return
			}
			go p.Handle(ctx, msg)
		}
	}
}

// Handle processes one inbound message end to end. A panic anywhere in the
// flow is answered with a generic apology instead of silence.
func (p *Pipeline) Handle(ctx context.Context, msg domain.InboundMessage) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("pipeline panic", "channel", msg.ChannelID, "panic", r)
			if err := p.chat.Reply(ctx, msg.ChannelID, apologyReply, msg.MessageID); err != nil {
				p.logger.Warn("apology send failed", "error", err)
			}
		}
	}()

	if msg.AuthorID == p.chat.BotUserID() {
		return
	}
	if p.cfg.AllowedGuildID != "" && msg.GuildID != "" && msg.GuildID != p.cfg.AllowedGuildID {
		return
	}
	if p.ignored[msg.ChannelID] {
		return
	}

	if !msg.MentionsBot && !msg.RepliesToBot {
		if p.lurker != nil {
			p.lurker.Observe(ctx, msg)
		}
		return
	}

	content := textutil.Sanitize(textutil.StripMentions(msg.Content))

	decision := p.router.Classify(ctx, content, msg.HasImage())
	metrics.MessagesRouted(string(decision.Route)).Inc()
	p.logger.Debug("message classified",
		"route", decision.Route,
		"confidence", decision.Confidence,
		"channel", msg.ChannelID,
	)

	switch decision.Route {
	case domain.RouteIgnore:
		p.maybeReact(ctx, msg)
		return
	case domain.RouteChitchat:
		if decision.CannedReply != "" {
			p.sendReply(ctx, msg, decision.CannedReply, domain.DefaultQuirk)
			return
		}
	}

	allowed, resetIn := p.limiter.Allow(ctx, msg.AuthorID)
	if !allowed {
		metrics.RateLimited().Inc()
		seconds := int(resetIn.Round(time.Second).Seconds())
		if seconds < 1 {
			seconds = 1
		}
		p.reply(ctx, msg, fmt.Sprintf("chill, slow down %ds", seconds))
		return
	}

	if err := p.chat.Typing(ctx, msg.ChannelID); err != nil {
		p.logger.Debug("typing indicator failed", "error", err)
	}

	actx := p.asm.Build(ctx, msg)

	// The profile updates before generation so a declined or failed turn
	// still counts as an interaction. Mood sentiment folds in after the
	// reply, once the model has reported it.
	if err := p.users.UpsertUser(ctx, msg.AuthorID, msg.AuthorName, actx.Language, 0, textutil.DetectTopics(content)); err != nil {
		p.logger.Warn("user upsert failed", "user", msg.AuthorID, "error", err)
	}

	prof := p.resolver.Resolve(ctx, msg.AuthorID, msg.GuildID)

	var recentOwn []string
	if prof.Preset == persona.MirrorPreset {
		for _, frag := range actx.History {
			if frag.AuthorID == msg.AuthorID && frag.Text != "" {
				recentOwn = append(recentOwn, frag.Text)
			}
		}
	}

	systemPrompt := persona.BuildSystemPrompt(persona.PromptInput{
		Persona:           prof,
		RecentOwnMessages: recentOwn,
		Language:          actx.Language,
		MentionDirectory:  actx.ActiveUsers,
		TalkingTo:         textutil.ShortName(msg.AuthorName),
	})

	var replyText, mood string
	if decision.Route == domain.RouteVision {
		replyText = p.generateVision(ctx, msg, content, systemPrompt)
	} else {
		userContent := p.asm.Render(actx, msg)
		reply := p.gw.GenerateStructuredReply(ctx, domain.GenerateRequest{
			SystemPrompt: systemPrompt,
			UserContent:  userContent,
			MaxTokens:    maxTokensFor(content),
			Temperature:  p.cfg.Temperature,
		})
		if !reply.ShouldRespond {
			return
		}
		replyText = reply.ResponseText
		mood = reply.Mood
	}

	if replyText == "" {
		return
	}

	p.sendReply(ctx, msg, replyText, domain.Quirk(prof.Quirk))

	go p.persist(msg, content, replyText, mood)
}

func (p *Pipeline) generateVision(ctx context.Context, msg domain.InboundMessage, content, systemPrompt string) string {
	if len(msg.ImageURLs) == 0 {
		return ""
	}
	prompt := content
	if prompt == "" {
		prompt = "react to this image naturally"
	}
	text, err := p.gw.GenerateVision(ctx, domain.GenerateRequest{
		SystemPrompt: systemPrompt,
		UserContent:  prompt,
		ImageURL:     msg.ImageURLs[0],
		MaxTokens:    visionTokens,
		Temperature:  p.cfg.Temperature,
	})
	if err != nil {
		p.logger.Warn("vision generation failed", "error", err)
		return ""
	}
	return text
}

// sendReply humanizes the text, waits a human-feeling beat, and delivers it.
// Long replies go out as up to three consecutive messages.
func (p *Pipeline) sendReply(ctx context.Context, msg domain.InboundMessage, text string, quirk domain.Quirk) {
	chunks := p.human.ApplyAndSplit(text, quirk)
	if len(chunks) == 0 {
		return
	}

	sleepCtx(ctx, typingDelay(chunks[0]))
	p.reply(ctx, msg, chunks[0])
	for _, chunk := range chunks[1:] {
		sleepCtx(ctx, typingDelay(chunk))
		if err := p.chat.Send(ctx, msg.ChannelID, chunk); err != nil {
			p.logger.Warn("followup send failed", "channel", msg.ChannelID, "error", err)
		}
	}

	metrics.RepliesSent().Inc()
	p.asm.InvalidateHistory(ctx, msg.ChannelID)
}

func (p *Pipeline) reply(ctx context.Context, msg domain.InboundMessage, text string) {
	if err := p.chat.Reply(ctx, msg.ChannelID, text, msg.MessageID); err != nil {
		p.logger.Warn("reply failed", "channel", msg.ChannelID, "error", err)
	}
}

func (p *Pipeline) maybeReact(ctx context.Context, msg domain.InboundMessage) {
	if rand.Float64() >= reactChance {
		return
	}
	emoji := quickReactions[rand.Intn(len(quickReactions))]
	if err := p.chat.React(ctx, msg.ChannelID, msg.MessageID, emoji); err != nil {
		p.logger.Debug("quick react failed", "error", err)
	}
}

// persist runs after the reply went out, on its own context so a canceled
// request context cannot abort the writes.
func (p *Pipeline) persist(msg domain.InboundMessage, content, replyText, mood string) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("persistence panic", "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	// Neutral moods leave the average alone; the pre-generation upsert
	// already folded a neutral observation for this turn.
	sentiment := moodSentiment(mood)
	if sentiment != 0 {
		if err := p.users.FoldSentiment(ctx, msg.AuthorID, sentiment); err != nil {
			p.logger.Warn("sentiment fold failed", "user", msg.AuthorID, "error", err)
		}
	}

	p.logTurn(ctx, domain.LogEntry{
		MessageID:  msg.MessageID,
		ChannelID:  msg.ChannelID,
		AuthorID:   msg.AuthorID,
		AuthorName: msg.AuthorName,
		Content:    content,
		FromBot:    false,
		CreatedAt:  msg.Timestamp,
	})
	p.logTurn(ctx, domain.LogEntry{
		MessageID:  uuid.NewString(),
		ChannelID:  msg.ChannelID,
		AuthorID:   p.chat.BotUserID(),
		AuthorName: "Luna",
		Content:    replyText,
		FromBot:    true,
		CreatedAt:  time.Now(),
	})

	for _, fact := range store.ExtractFacts(msg.AuthorID, content, sentiment) {
		if err := p.facts.SaveFact(ctx, fact); err != nil {
			p.logger.Warn("fact save failed", "user", msg.AuthorID, "error", err)
		}
	}
}

func (p *Pipeline) logTurn(ctx context.Context, entry domain.LogEntry) {
	if p.vec != nil && len(entry.Content) >= minEmbedLen {
		entry.Embedding = p.vec.Vector(ctx, entry.Content)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if err := p.convs.LogMessage(ctx, entry); err != nil {
		p.logger.Warn("conversation log failed", "message", entry.MessageID, "error", err)
	}
}

// typingDelay fakes keystroke time: a base, a per-character cost, and some
// jitter, capped so long replies do not feel robotic either way.
func typingDelay(text string) time.Duration {
	base := 0.3
	perChar := float64(len(text)) * 0.015
	if perChar > 1.5 {
		perChar = 1.5
	}
	jitter := 0.1 + rand.Float64()*0.5
	total := base + perChar + jitter
	if total > 2.5 {
		total = 2.5
	}
	return time.Duration(total * float64(time.Second))
}

// maxTokensFor scales the reply budget with prompt length; short pings get
// short answers.
func maxTokensFor(content string) int {
	switch l := len(content); {
	case l < 15:
		return 60
	case l < 60:
		return 100
	default:
		return 150
	}
}

// moodSentiment maps the model's self-reported mood onto the sentiment scale
// folded into the user profile.
func moodSentiment(mood string) float64 {
	switch mood {
	case "happy", "excited", "hyped", "amused", "playful":
		return 0.7
	case "annoyed", "angry", "sad", "tired":
		return -0.6
	default:
		return 0
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

