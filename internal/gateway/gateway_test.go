package gateway

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"lunabot/internal/domain"
	"lunabot/internal/kvstore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeProvider counts calls and serves canned responses or errors.
type fakeProvider struct {
	name    string
	vision  bool
	content string
	err     error
	calls   int
}

func (f *fakeProvider) Name() string         { return f.name }
func (f *fakeProvider) SupportsVision() bool { return f.vision }

func (f *fakeProvider) GenerateText(context.Context, domain.GenerateRequest) (string, error) {
	f.calls++
	return f.content, f.err
}

func (f *fakeProvider) GenerateStructured(context.Context, domain.GenerateRequest) (string, error) {
	f.calls++
	return f.content, f.err
}

func (f *fakeProvider) GenerateVision(context.Context, domain.GenerateRequest) (string, error) {
	f.calls++
	return f.content, f.err
}

func newTestGateway(t *testing.T, cfg BreakerConfig, providers ...domain.Provider) (*Gateway, *Breaker) {
	t.Helper()
	kv := kvstore.NewMemory()
	t.Cleanup(kv.Close)
	b := NewBreaker(kv, cfg, testLogger())
	return New(providers, b, testLogger()), b
}

func TestStructuredReplyUsesFirstHealthyProvider(t *testing.T) {
	primary := &fakeProvider{name: "groq", content: `{"should_respond":true,"response_text":"yo","mood":"chill"}`}
	backup := &fakeProvider{name: "openrouter", content: `{"should_respond":true,"response_text":"backup"}`}
	g, _ := newTestGateway(t, BreakerConfig{}, primary, backup)

	reply := g.GenerateStructuredReply(context.Background(), domain.GenerateRequest{UserContent: "hi"})
	if !reply.ShouldRespond || reply.ResponseText != "yo" {
		t.Errorf("reply = %+v", reply)
	}
	if backup.calls != 0 {
		t.Error("backup should not be called when primary succeeds")
	}
}

func TestStructuredReplyFailsOver(t *testing.T) {
	primary := &fakeProvider{name: "groq", err: errors.New("boom")}
	backup := &fakeProvider{name: "openrouter", content: `{"should_respond":true,"response_text":"backup"}`}
	g, _ := newTestGateway(t, BreakerConfig{}, primary, backup)

	reply := g.GenerateStructuredReply(context.Background(), domain.GenerateRequest{UserContent: "hi"})
	if reply.ResponseText != "backup" {
		t.Errorf("reply = %+v, want backup content", reply)
	}
}

func TestStructuredReplyExhaustionStaysQuiet(t *testing.T) {
	p := &fakeProvider{name: "groq", err: errors.New("down")}
	g, _ := newTestGateway(t, BreakerConfig{}, p)

	reply := g.GenerateStructuredReply(context.Background(), domain.GenerateRequest{UserContent: "hi"})
	if reply.ShouldRespond {
		t.Error("exhausted gateway must return should_respond=false")
	}
}

func TestStructuredReplyUnparseableCountsAsFailure(t *testing.T) {
	primary := &fakeProvider{name: "groq", content: "sorry, I cannot do JSON today"}
	backup := &fakeProvider{name: "openrouter", content: `{"should_respond":true,"response_text":"ok"}`}
	g, _ := newTestGateway(t, BreakerConfig{}, primary, backup)

	reply := g.GenerateStructuredReply(context.Background(), domain.GenerateRequest{UserContent: "hi"})
	if reply.ResponseText != "ok" {
		t.Errorf("reply = %+v, want fallback after parse failure", reply)
	}
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	p := &fakeProvider{name: "groq", err: errors.New("down")}
	g, b := newTestGateway(t, BreakerConfig{Threshold: 3}, p)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		g.GenerateStructuredReply(ctx, domain.GenerateRequest{})
	}
	if !b.IsOpen(ctx, "groq") {
		t.Fatal("circuit should be open after threshold failures")
	}

	before := p.calls
	g.GenerateStructuredReply(ctx, domain.GenerateRequest{})
	if p.calls != before {
		t.Error("open circuit must skip the provider entirely")
	}
}

func TestBreakerOpenStateExpires(t *testing.T) {
	kv := kvstore.NewMemory()
	t.Cleanup(kv.Close)
	b := NewBreaker(kv, BreakerConfig{Threshold: 1}, testLogger())
	ctx := context.Background()

	b.RecordFailure(ctx, "groq")
	if !b.IsOpen(ctx, "groq") {
		t.Fatal("circuit should open at threshold 1")
	}

	// Expire the open state directly rather than sleeping 30s.
	if err := kv.Expire(ctx, "cb:groq:state", time.Millisecond); err != nil {
		t.Fatalf("expire: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if b.IsOpen(ctx, "groq") {
		t.Error("circuit should close after the open TTL lapses")
	}
}

func TestBreakerSuccessClosesEarly(t *testing.T) {
	kv := kvstore.NewMemory()
	t.Cleanup(kv.Close)
	b := NewBreaker(kv, BreakerConfig{Threshold: 2}, testLogger())
	ctx := context.Background()

	b.RecordFailure(ctx, "groq")
	b.RecordFailure(ctx, "groq")
	if !b.IsOpen(ctx, "groq") {
		t.Fatal("circuit should be open")
	}

	b.RecordSuccess(ctx, "groq")
	if b.IsOpen(ctx, "groq") {
		t.Error("a success must close the circuit immediately")
	}

	// Counter must restart from scratch after a success.
	b.RecordFailure(ctx, "groq")
	if b.IsOpen(ctx, "groq") {
		t.Error("single failure after reset must not reopen the circuit")
	}
}

func TestVisionSkipsNonVisionProviders(t *testing.T) {
	text := &fakeProvider{name: "groq", content: "nope"}
	vis := &fakeProvider{name: "openrouter", vision: true, content: "a sunset"}
	g, _ := newTestGateway(t, BreakerConfig{}, text, vis)

	got, err := g.GenerateVision(context.Background(), domain.GenerateRequest{ImageURL: "http://x/a.png"})
	if err != nil {
		t.Fatalf("vision: %v", err)
	}
	if got != "a sunset" {
		t.Errorf("content = %q", got)
	}
	if text.calls != 0 {
		t.Error("non-vision provider must not receive vision requests")
	}
}

func TestFreeformFailsOver(t *testing.T) {
	primary := &fakeProvider{name: "groq", err: errors.New("down")}
	backup := &fakeProvider{name: "openrouter", content: "casual line"}
	g, _ := newTestGateway(t, BreakerConfig{}, primary, backup)

	got, err := g.GenerateFreeform(context.Background(), domain.GenerateRequest{UserContent: "x"})
	if err != nil {
		t.Fatalf("freeform: %v", err)
	}
	if got != "casual line" {
		t.Errorf("content = %q", got)
	}
}

func TestStatusReportsStates(t *testing.T) {
	p := &fakeProvider{name: "groq", err: errors.New("down")}
	g, _ := newTestGateway(t, BreakerConfig{Threshold: 1}, p)
	ctx := context.Background()

	g.GenerateStructuredReply(ctx, domain.GenerateRequest{})
	status := g.Status(ctx)
	if status["groq"] != "open" {
		t.Errorf("status = %v, want groq open", status)
	}
}
