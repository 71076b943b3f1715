package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

const (
	ProviderAPI    = "api"
	ProviderOllama = "ollama"

	defaultOllamaBaseURL = "http://127.0.0.1:11434"
	defaultTimeout       = 15 * time.Second
)

// Client embeds text through an OpenAI-compatible /v1/embeddings endpoint.
// It implements domain.Embedder. Init may fail; consumers check Ready and
// degrade instead of blocking on a broken model server.
type Client struct {
	provider    string
	baseURL     string
	apiKey      string
	model       string
	expectedDim int
	httpClient  *http.Client
	logger      *slog.Logger
	ready       atomic.Bool
}

type Config struct {
	Provider  string
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int
	TimeoutMs int
	Logger    *slog.Logger
}

func NewClient(cfg Config) *Client {
	c := &Client{
		provider:    strings.ToLower(strings.TrimSpace(cfg.Provider)),
		baseURL:     strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       strings.TrimSpace(cfg.Model),
		expectedDim: cfg.Dimension,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		logger:      cfg.Logger,
	}
	if c.provider == "" {
		c.provider = ProviderOllama
	}
	if c.provider == ProviderOllama && c.baseURL == "" {
		c.baseURL = defaultOllamaBaseURL
	}
	if cfg.TimeoutMs > 0 {
		c.httpClient.Timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Init probes the embedding endpoint once. On failure the client stays
// not-ready and callers fall back to their degraded paths.
func (c *Client) Init(ctx context.Context) error {
	if _, err := c.request(ctx, "ping"); err != nil {
		c.ready.Store(false)
		return fmt.Errorf("embedding model init: %w", err)
	}
	c.ready.Store(true)
	c.logger.Info("embedding model ready", "provider", c.provider, "model", c.model)
	return nil
}

func (c *Client) Ready() bool { return c.ready.Load() }

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("embed: empty text")
	}
	if !c.ready.Load() {
		return nil, fmt.Errorf("embed: model not ready")
	}
	vec, err := c.request(ctx, trimmed)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	return vec, nil
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (c *Client) request(ctx context.Context, input string) ([]float32, error) {
	if c.model == "" {
		return nil, fmt.Errorf("missing embedding model")
	}
	if c.provider == ProviderAPI && c.apiKey == "" {
		return nil, fmt.Errorf("missing embedding api key")
	}
	if c.baseURL == "" {
		return nil, fmt.Errorf("missing embedding base url")
	}

	payload, err := json.Marshal(embeddingRequest{Model: c.model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embedding http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded embeddingResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Data) == 0 || len(decoded.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}
	vec := decoded.Data[0].Embedding
	if c.expectedDim > 0 && len(vec) != c.expectedDim {
		return nil, fmt.Errorf("embedding dimension: got %d want %d", len(vec), c.expectedDim)
	}

	out := make([]float32, len(vec))
	copy(out, vec)
	return out, nil
}
