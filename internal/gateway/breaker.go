// Package gateway routes generation requests across providers with ordered
// failover and a per-provider circuit breaker backed by the shared KV store.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"lunabot/internal/domain"
	"lunabot/internal/metrics"
)

const (
	breakerStateOpen   = "open"
	breakerStateClosed = "closed"
)

// Breaker tracks consecutive provider failures in the KV store so breaker
// state survives across pipeline goroutines without extra locking.
type Breaker struct {
	kv        domain.KVStore
	threshold int
	openFor   time.Duration
	window    time.Duration
	logger    *slog.Logger
}

type BreakerConfig struct {
	// Threshold is the failure count that opens the circuit.
	Threshold int
	// OpenSeconds is how long an opened circuit stays open.
	OpenSeconds int
	// WindowSeconds bounds how long failures accumulate before the counter
	// expires on its own.
	WindowSeconds int
}

func NewBreaker(kv domain.KVStore, cfg BreakerConfig, logger *slog.Logger) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.OpenSeconds <= 0 {
		cfg.OpenSeconds = 30
	}
	if cfg.WindowSeconds <= 0 {
		cfg.WindowSeconds = 120
	}
	return &Breaker{
		kv:        kv,
		threshold: cfg.Threshold,
		openFor:   time.Duration(cfg.OpenSeconds) * time.Second,
		window:    time.Duration(cfg.WindowSeconds) * time.Second,
		logger:    logger,
	}
}

func failuresKey(name string) string { return "cb:" + name + ":failures" }
func stateKey(name string) string    { return "cb:" + name + ":state" }

// IsOpen reports whether the provider's circuit is currently open. KV errors
// count as closed so a broken KV store never blocks all generation.
func (b *Breaker) IsOpen(ctx context.Context, name string) bool {
	state, ok, err := b.kv.Get(ctx, stateKey(name))
	if err != nil {
		b.logger.Warn("breaker state read failed", "provider", name, "error", err)
		return false
	}
	return ok && state == breakerStateOpen
}

// RecordFailure bumps the provider's failure counter and opens the circuit
// once the counter reaches the threshold. The open state expires on its own,
// after which the provider gets tried again.
func (b *Breaker) RecordFailure(ctx context.Context, name string) {
	count, err := b.kv.Incr(ctx, failuresKey(name))
	if err != nil {
		b.logger.Warn("breaker failure count failed", "provider", name, "error", err)
		return
	}
	if count == 1 {
		if err := b.kv.Expire(ctx, failuresKey(name), b.window); err != nil {
			b.logger.Warn("breaker window expire failed", "provider", name, "error", err)
		}
	}
	if count >= int64(b.threshold) {
		if err := b.kv.Set(ctx, stateKey(name), breakerStateOpen, b.openFor); err != nil {
			b.logger.Warn("breaker open failed", "provider", name, "error", err)
			return
		}
		metrics.BreakerOpens(name).Inc()
		b.logger.Warn("circuit opened",
			"provider", name,
			"failures", count,
			"open_for", b.openFor,
		)
	}
}

// RecordSuccess resets the failure counter and marks the circuit closed. A
// success while the circuit is open closes it immediately rather than waiting
// out the open TTL.
func (b *Breaker) RecordSuccess(ctx context.Context, name string) {
	if err := b.kv.Delete(ctx, failuresKey(name)); err != nil {
		b.logger.Warn("breaker counter reset failed", "provider", name, "error", err)
	}
	if err := b.kv.Set(ctx, stateKey(name), breakerStateClosed, 0); err != nil {
		b.logger.Warn("breaker close failed", "provider", name, "error", err)
	}
}

// State returns a human-readable state for status commands.
func (b *Breaker) State(ctx context.Context, name string) string {
	if b.IsOpen(ctx, name) {
		return breakerStateOpen
	}
	count, _, err := b.kv.Get(ctx, failuresKey(name))
	if err == nil && count != "" {
		return fmt.Sprintf("closed (%s recent failures)", count)
	}
	return breakerStateClosed
}
