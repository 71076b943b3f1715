package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
		},
		Discord: DiscordConfig{
			Token: "${DISCORD_TOKEN}",
		},
		Providers: ProvidersConfig{
			Temperature: 0.9,
			Groq: GroqConfig{
				APIKey:         "${GROQ_API_KEY}",
				APIBase:        "https://api.groq.com/openai/v1",
				Model:          "llama-3.1-8b-instant",
				TimeoutSeconds: 10,
			},
			OpenRouter: OpenRouterConfig{
				APIKey:         "${OPENROUTER_API_KEY}",
				APIBase:        "https://openrouter.ai/api/v1",
				Model:          "meta-llama/llama-3.1-8b-instruct",
				VisionModel:    "meta-llama/llama-4-scout:free",
				VisionBackup:   "google/gemini-2.0-flash-001",
				TimeoutSeconds: 15,
			},
		},
		Embedding: EmbeddingConfig{
			Provider:  "ollama",
			BaseURL:   "http://localhost:11434",
			Model:     "nomic-embed-text",
			Dimension: 768,
			TimeoutMs: 5000,
		},
		Gate: GateConfig{
			Threshold: 0.78,
		},
		Context: ContextConfig{
			HistoryLimit:        15,
			ReplyChainDepth:     5,
			HistoryCacheSeconds: 120,
			SemanticWindowHours: 24,
			SemanticLimit:       3,
			FactLimit:           3,
			TokenBudget:         800,
		},
		RateLimit: RateLimitConfig{
			MaxMessages:   20,
			WindowSeconds: 60,
		},
		Breaker: BreakerConfig{
			Threshold:     5,
			OpenSeconds:   30,
			WindowSeconds: 120,
		},
		Lurker: LurkerConfig{
			Enabled:         false,
			MinInterest:     85,
			CooldownSeconds: 600,
			BaseChance:      0.03,
		},
		Store: StoreConfig{
			DBPath: "~/.lunabot/lunabot.db",
		},
		Retention: RetentionConfig{
			Days: 30,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9091",
		},
	}
}
