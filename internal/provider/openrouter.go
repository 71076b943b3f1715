package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"lunabot/internal/domain"
)

// OpenRouter is the fallback provider and the only one with multimodal
// models. Vision requests try the scout model first and fall back to a
// second model within the provider before giving up.
type OpenRouter struct {
	apiKey        string
	apiBase       string
	model         string
	visionModel   string
	visionBackup  string
	client        *http.Client
	logger        *slog.Logger
}

type OpenRouterConfig struct {
	APIKey       string
	APIBase      string
	Model        string
	VisionModel  string
	VisionBackup string
	TimeoutS     float64
	Logger       *slog.Logger
}

func NewOpenRouter(cfg OpenRouterConfig) *OpenRouter {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://openrouter.ai/api/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "meta-llama/llama-3.1-8b-instruct"
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = "meta-llama/llama-4-scout:free"
	}
	if cfg.VisionBackup == "" {
		cfg.VisionBackup = "google/gemini-2.0-flash-001"
	}
	timeout := defaultHTTPTimeout
	if cfg.TimeoutS > 0 {
		timeout = time.Duration(cfg.TimeoutS * float64(time.Second))
	}
	return &OpenRouter{
		apiKey:       cfg.APIKey,
		apiBase:      cfg.APIBase,
		model:        cfg.Model,
		visionModel:  cfg.VisionModel,
		visionBackup: cfg.VisionBackup,
		client:       &http.Client{Timeout: timeout},
		logger:       cfg.Logger,
	}
}

func (o *OpenRouter) Name() string         { return "openrouter" }
func (o *OpenRouter) SupportsVision() bool { return true }

func (o *OpenRouter) GenerateText(ctx context.Context, req domain.GenerateRequest) (string, error) {
	return o.generate(ctx, req, nil)
}

func (o *OpenRouter) GenerateStructured(ctx context.Context, req domain.GenerateRequest) (string, error) {
	return o.generate(ctx, req, &responseFormat{Type: "json_object"})
}

func (o *OpenRouter) generate(ctx context.Context, req domain.GenerateRequest, format *responseFormat) (string, error) {
	body := chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserContent},
		},
		MaxTokens:      req.MaxTokens,
		TopP:           0.95,
		ResponseFormat: format,
	}
	if req.Temperature > 0 {
		body.Temperature = &req.Temperature
	}

	content, err := postChatCompletion(ctx, o.client, o.apiBase, o.apiKey, body)
	if err != nil {
		return "", fmt.Errorf("openrouter: %w", err)
	}
	return content, nil
}

// GenerateVision describes an image. Failures on the primary vision model
// retry once on the backup model before surfacing the error.
func (o *OpenRouter) GenerateVision(ctx context.Context, req domain.GenerateRequest) (string, error) {
	if req.ImageURL == "" {
		return "", errors.New("openrouter: vision request without image url")
	}

	prompt := req.UserContent
	if prompt == "" {
		prompt = "describe this image briefly, react naturally"
	}

	var lastErr error
	for _, model := range []string{o.visionModel, o.visionBackup} {
		body := chatRequest{
			Model: model,
			Messages: []chatMessage{
				{Role: "system", Content: req.SystemPrompt},
				{Role: "user", Content: []contentPart{
					{Type: "text", Text: prompt},
					{Type: "image_url", ImageURL: &imageURL{URL: req.ImageURL}},
				}},
			},
			MaxTokens: req.MaxTokens,
			TopP:      0.95,
		}
		if req.Temperature > 0 {
			body.Temperature = &req.Temperature
		}

		content, err := postChatCompletion(ctx, o.client, o.apiBase, o.apiKey, body)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if o.logger != nil {
			o.logger.Warn("vision model failed, trying next", "model", model, "error", err)
		}
	}
	return "", fmt.Errorf("openrouter vision: %w", lastErr)
}
