package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"lunabot/internal/domain"
)

// Groq is the primary provider. It supports schema-constrained JSON output
// but has no multimodal models.
type Groq struct {
	apiKey    string
	apiBase   string
	modelFast string
	client    *http.Client
	logger    *slog.Logger
}

type GroqConfig struct {
	APIKey    string
	APIBase   string
	ModelFast string
	TimeoutS  float64
	Logger    *slog.Logger
}

func NewGroq(cfg GroqConfig) *Groq {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.groq.com/openai/v1"
	}
	if cfg.ModelFast == "" {
		cfg.ModelFast = "llama-3.1-8b-instant"
	}
	timeout := defaultHTTPTimeout
	if cfg.TimeoutS > 0 {
		timeout = time.Duration(cfg.TimeoutS * float64(time.Second))
	}
	return &Groq{
		apiKey:    cfg.APIKey,
		apiBase:   cfg.APIBase,
		modelFast: cfg.ModelFast,
		client:    &http.Client{Timeout: timeout},
		logger:    cfg.Logger,
	}
}

func (g *Groq) Name() string         { return "groq" }
func (g *Groq) SupportsVision() bool { return false }

func (g *Groq) GenerateText(ctx context.Context, req domain.GenerateRequest) (string, error) {
	return g.generate(ctx, req, nil)
}

func (g *Groq) GenerateStructured(ctx context.Context, req domain.GenerateRequest) (string, error) {
	return g.generate(ctx, req, &responseFormat{Type: "json_object"})
}

func (g *Groq) GenerateVision(ctx context.Context, _ domain.GenerateRequest) (string, error) {
	return "", fmt.Errorf("groq: no vision model available")
}

func (g *Groq) generate(ctx context.Context, req domain.GenerateRequest, format *responseFormat) (string, error) {
	body := chatRequest{
		Model: g.modelFast,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserContent},
		},
		MaxTokens:        req.MaxTokens,
		TopP:             0.95,
		FrequencyPenalty: 0.4,
		PresencePenalty:  0.3,
		ResponseFormat:   format,
	}
	if req.Temperature > 0 {
		body.Temperature = &req.Temperature
	}

	content, err := postChatCompletion(ctx, g.client, g.apiBase, g.apiKey, body)
	if err != nil {
		return "", fmt.Errorf("groq: %w", err)
	}
	return content, nil
}
