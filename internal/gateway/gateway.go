package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"lunabot/internal/domain"
	"lunabot/internal/metrics"
)

// Gateway fans requests out across providers in configured order, skipping
// providers whose circuit is open. Structured generation exhaustion degrades
// to a silent no-response rather than an error the pipeline must invent a
// reply for.
type Gateway struct {
	providers []domain.Provider
	breaker   *Breaker
	logger    *slog.Logger
}

func New(providers []domain.Provider, breaker *Breaker, logger *slog.Logger) *Gateway {
	return &Gateway{
		providers: providers,
		breaker:   breaker,
		logger:    logger,
	}
}

// GenerateStructuredReply asks providers in order for a JSON reply object.
// When every provider is open or failing, the returned reply has
// ShouldRespond false so the caller stays silent instead of erroring at the
// user.
func (g *Gateway) GenerateStructuredReply(ctx context.Context, req domain.GenerateRequest) domain.StructuredReply {
	start := time.Now()
	defer func() {
		metrics.GenerationLatency().Observe(time.Since(start).Seconds())
	}()

	for _, p := range g.providers {
		if g.breaker.IsOpen(ctx, p.Name()) {
			g.logger.Debug("skipping provider with open circuit", "provider", p.Name())
			continue
		}

		content, err := p.GenerateStructured(ctx, req)
		if err != nil {
			g.recordFailure(ctx, p.Name(), err)
			continue
		}

		reply, err := parseStructuredReply(content)
		if err != nil {
			// The provider answered but not in our shape. Counts as a
			// failure for breaker purposes since retrying the same model
			// tends to repeat the problem.
			g.recordFailure(ctx, p.Name(), err)
			continue
		}

		g.breaker.RecordSuccess(ctx, p.Name())
		return reply
	}

	g.logger.Warn("all providers unavailable for structured generation")
	return domain.StructuredReply{ShouldRespond: false}
}

// GenerateFreeform returns plain text from the first available provider.
// Used by the lurker and by admin commands where JSON discipline is not
// needed.
func (g *Gateway) GenerateFreeform(ctx context.Context, req domain.GenerateRequest) (string, error) {
	var lastErr error
	for _, p := range g.providers {
		if g.breaker.IsOpen(ctx, p.Name()) {
			continue
		}
		content, err := p.GenerateText(ctx, req)
		if err != nil {
			g.recordFailure(ctx, p.Name(), err)
			lastErr = err
			continue
		}
		g.breaker.RecordSuccess(ctx, p.Name())
		return content, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no provider available")
	}
	return "", fmt.Errorf("freeform generation: %w", lastErr)
}

// GenerateVision goes straight to the first vision-capable provider with a
// closed circuit. Vision replies are plain prose so the structured path is
// bypassed entirely.
func (g *Gateway) GenerateVision(ctx context.Context, req domain.GenerateRequest) (string, error) {
	var lastErr error
	for _, p := range g.providers {
		if !p.SupportsVision() {
			continue
		}
		if g.breaker.IsOpen(ctx, p.Name()) {
			continue
		}
		content, err := p.GenerateVision(ctx, req)
		if err != nil {
			g.recordFailure(ctx, p.Name(), err)
			lastErr = err
			continue
		}
		g.breaker.RecordSuccess(ctx, p.Name())
		return content, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no vision-capable provider available")
	}
	return "", fmt.Errorf("vision generation: %w", lastErr)
}

func (g *Gateway) recordFailure(ctx context.Context, name string, err error) {
	g.logger.Warn("provider failed, trying next", "provider", name, "error", err)
	metrics.ProviderFailures(name).Inc()
	g.breaker.RecordFailure(ctx, name)
}

// Status reports each provider's breaker state for the status command.
func (g *Gateway) Status(ctx context.Context) map[string]string {
	out := make(map[string]string, len(g.providers))
	for _, p := range g.providers {
		out[p.Name()] = g.breaker.State(ctx, p.Name())
	}
	return out
}
