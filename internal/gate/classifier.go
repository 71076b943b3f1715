// Package gate triages inbound messages: it decides whether a message is
// ignorable noise, canned chitchat, something that needs a model call, or a
// vision request. It also owns the embedding function the rest of the
// pipeline reuses.
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"lunabot/internal/domain"
	"lunabot/internal/embed"
)

// maxClassifiableLen is the ceiling, in characters, past which similarity
// scoring is skipped; long messages always go to the model.
const maxClassifiableLen = 500

type reference struct {
	route  domain.Route
	vector []float32
}

// Classifier scores message text against embedded reference utterances.
// When initialization fails it stays not-ready and fails open to the
// llm_required route rather than dropping messages.
type Classifier struct {
	embedder   domain.Embedder
	threshold  float64
	utterances map[domain.Route][]string
	logger     *slog.Logger

	mu    sync.RWMutex
	refs  []reference
	ready bool
}

func NewClassifier(embedder domain.Embedder, threshold float64, logger *slog.Logger) *Classifier {
	return &Classifier{
		embedder:   embedder,
		threshold:  threshold,
		utterances: defaultUtterances(),
		logger:     logger,
	}
}

// newWithUtterances is used by tests to install small reference sets.
func newWithUtterances(embedder domain.Embedder, threshold float64, logger *slog.Logger, utterances map[domain.Route][]string) *Classifier {
	c := NewClassifier(embedder, threshold, logger)
	c.utterances = utterances
	return c
}

// Init embeds every reference utterance. On any failure the classifier is
// left not-ready.
func (c *Classifier) Init(ctx context.Context) error {
	if !c.embedder.Ready() {
		return fmt.Errorf("classifier init: embedder not ready")
	}

	var refs []reference
	for route, texts := range c.utterances {
		for _, text := range texts {
			vec, err := c.embedder.Embed(ctx, text)
			if err != nil {
				return fmt.Errorf("classifier init: embed %q: %w", text, err)
			}
			refs = append(refs, reference{route: route, vector: vec})
		}
	}

	c.mu.Lock()
	c.refs = refs
	c.ready = true
	c.mu.Unlock()

	c.logger.Info("classifier ready", "references", len(refs))
	return nil
}

func (c *Classifier) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// Classify maps message text to a route. Image presence overrides any text
// signal unconditionally.
func (c *Classifier) Classify(ctx context.Context, text string, hasImage bool) domain.RouteDecision {
	if hasImage {
		return domain.RouteDecision{Route: domain.RouteVision, Confidence: 1.0}
	}

	if !c.Ready() {
		return domain.RouteDecision{Route: domain.RouteLLM, Confidence: 0}
	}

	cleaned := strings.ToLower(strings.TrimSpace(text))
	if cleaned == "" {
		return domain.RouteDecision{Route: domain.RouteIgnore, Confidence: 1.0}
	}
	if utf8.RuneCountInString(cleaned) > maxClassifiableLen {
		return domain.RouteDecision{Route: domain.RouteLLM, Confidence: 1.0}
	}

	vec := c.Vector(ctx, cleaned)
	if vec == nil {
		return domain.RouteDecision{Route: domain.RouteLLM, Confidence: 0}
	}

	best := make(map[domain.Route]float64)
	c.mu.RLock()
	refs := c.refs
	c.mu.RUnlock()
	for _, ref := range refs {
		score, err := embed.CosineSimilarity(vec, ref.vector)
		if err != nil {
			continue
		}
		if score > best[ref.route] {
			best[ref.route] = score
		}
	}

	winner := domain.RouteLLM
	top := 0.0
	for _, route := range []domain.Route{domain.RouteIgnore, domain.RouteChitchat, domain.RouteLLM} {
		if best[route] > top {
			top = best[route]
			winner = route
		}
	}
	if top < c.threshold {
		return domain.RouteDecision{Route: domain.RouteLLM, Confidence: top}
	}

	decision := domain.RouteDecision{Route: winner, Confidence: top}
	if winner == domain.RouteChitchat {
		decision.CannedReply = pickChitchatReply(cleaned)
	}
	return decision
}

// Vector embeds text, returning nil when the model is unavailable or the
// embed call fails. It never surfaces an error to the caller.
func (c *Classifier) Vector(ctx context.Context, text string) []float32 {
	if !c.embedder.Ready() {
		return nil
	}
	vec, err := c.embedder.Embed(ctx, text)
	if err != nil {
		c.logger.Warn("embedding failed", "err", err)
		return nil
	}
	return vec
}
