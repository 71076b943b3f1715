package agent

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"lunabot/internal/kvstore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestLimiterAllowsUpToMax(t *testing.T) {
	kv := kvstore.NewMemory()
	t.Cleanup(kv.Close)
	l := NewLimiter(kv, 3, 60, testLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if allowed, _ := l.Allow(ctx, "u1"); !allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	allowed, resetIn := l.Allow(ctx, "u1")
	if allowed {
		t.Fatal("request over the limit should be denied")
	}
	if resetIn <= 0 || resetIn > 60*time.Second {
		t.Errorf("resetIn = %v, want within the window", resetIn)
	}
}

func TestLimiterIsolatesUsers(t *testing.T) {
	kv := kvstore.NewMemory()
	t.Cleanup(kv.Close)
	l := NewLimiter(kv, 1, 60, testLogger())
	ctx := context.Background()

	l.Allow(ctx, "u1")
	if allowed, _ := l.Allow(ctx, "u1"); allowed {
		t.Error("u1 should be limited")
	}
	if allowed, _ := l.Allow(ctx, "u2"); !allowed {
		t.Error("u2 must not share u1's window")
	}
}

// vanishingKV drops a key right after it is read, reproducing a window key
// expiring between the limiter's Get and Incr.
type vanishingKV struct {
	*kvstore.Memory
	dropAfterGet string
}

func (k *vanishingKV) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := k.Memory.Get(ctx, key)
	if ok && key == k.dropAfterGet {
		k.Memory.Delete(ctx, key)
	}
	return v, ok, err
}

func TestLimiterReattachesTTLWhenWindowExpiresMidCheck(t *testing.T) {
	mem := kvstore.NewMemory()
	t.Cleanup(mem.Close)
	l := NewLimiter(&vanishingKV{Memory: mem, dropAfterGet: "rl:u1"}, 3, 60, testLogger())
	ctx := context.Background()

	l.Allow(ctx, "u1") // starts the window
	if allowed, _ := l.Allow(ctx, "u1"); !allowed {
		t.Fatal("second request should be allowed")
	}

	// The counter was recreated by Incr; without a fresh TTL it would never
	// roll over and the user would stay limited after max requests.
	ttl, ok, err := mem.TTL(ctx, "rl:u1")
	if err != nil || !ok {
		t.Fatalf("ttl lookup: ok=%v err=%v", ok, err)
	}
	if ttl <= 0 {
		t.Error("recreated counter must carry the window expiry")
	}
}

func TestLimiterWindowRollsOver(t *testing.T) {
	kv := kvstore.NewMemory()
	t.Cleanup(kv.Close)
	l := NewLimiter(kv, 1, 60, testLogger())
	ctx := context.Background()

	l.Allow(ctx, "u1")
	// Roll the window over directly rather than sleeping 60s.
	if err := kv.Expire(ctx, "rl:u1", time.Millisecond); err != nil {
		t.Fatalf("expire: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if allowed, _ := l.Allow(ctx, "u1"); !allowed {
		t.Error("new window should admit the user again")
	}
}
