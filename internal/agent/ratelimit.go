package agent

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"lunabot/internal/domain"
)

// Limiter throttles LLM-bound messages per user with a fixed window counter
// in the KV store. Store errors fail open: losing rate limiting briefly is
// better than dropping everyone's messages.
type Limiter struct {
	kv     domain.KVStore
	max    int
	window time.Duration
	logger *slog.Logger
}

func NewLimiter(kv domain.KVStore, maxRequests, windowSeconds int, logger *slog.Logger) *Limiter {
	if maxRequests <= 0 {
		maxRequests = 20
	}
	if windowSeconds <= 0 {
		windowSeconds = 60
	}
	return &Limiter{
		kv:     kv,
		max:    maxRequests,
		window: time.Duration(windowSeconds) * time.Second,
		logger: logger,
	}
}

func rateKey(userID string) string { return "rl:" + userID }

// Allow consumes one slot for the user. When denied, resetIn is how long
// until the window rolls over.
func (l *Limiter) Allow(ctx context.Context, userID string) (allowed bool, resetIn time.Duration) {
	key := rateKey(userID)

	current, ok, err := l.kv.Get(ctx, key)
	if err != nil {
		l.logger.Warn("rate limit check failed", "user", userID, "error", err)
		return true, 0
	}

	if !ok {
		if err := l.kv.Set(ctx, key, "1", l.window); err != nil {
			l.logger.Warn("rate limit window start failed", "user", userID, "error", err)
		}
		return true, 0
	}

	count, err := strconv.Atoi(current)
	if err != nil {
		l.logger.Warn("rate limit counter corrupt", "user", userID, "value", current)
		return true, 0
	}

	if count >= l.max {
		ttl, ok, err := l.kv.TTL(ctx, key)
		if err != nil || !ok || ttl <= 0 {
			ttl = time.Second
		}
		return false, ttl
	}

	n, err := l.kv.Incr(ctx, key)
	if err != nil {
		l.logger.Warn("rate limit increment failed", "user", userID, "error", err)
		return true, 0
	}
	// The key can expire between Get and Incr; Incr then recreates it with no
	// expiry, so a fresh counter must get the window TTL attached here.
	if n == 1 {
		if err := l.kv.Expire(ctx, key, l.window); err != nil {
			l.logger.Warn("rate limit window reset failed", "user", userID, "error", err)
		}
	}
	return true, 0
}
