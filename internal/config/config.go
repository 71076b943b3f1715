package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Config is the root configuration for lunabot.
type Config struct {
	General   GeneralConfig   `json:"general"`
	Discord   DiscordConfig   `json:"discord"`
	Providers ProvidersConfig `json:"providers"`
	Embedding EmbeddingConfig `json:"embedding"`
	Gate      GateConfig      `json:"gate"`
	Context   ContextConfig   `json:"context"`
	Persona   PersonaConfig   `json:"persona"`
	RateLimit RateLimitConfig `json:"rateLimit"`
	Breaker   BreakerConfig   `json:"circuitBreaker"`
	Lurker    LurkerConfig    `json:"lurker"`
	Store     StoreConfig     `json:"store"`
	Retention RetentionConfig `json:"retention"`
	Metrics   MetricsConfig   `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel string `json:"logLevel"`
	LogFile  string `json:"logFile,omitempty"`
}

type DiscordConfig struct {
	Token           string         `json:"token"`
	GuildID         string         `json:"guildId"`
	IgnoredChannels FlexStringList `json:"ignoredChannels,omitempty"`
}

type ProvidersConfig struct {
	Temperature float64          `json:"temperature"`
	Groq        GroqConfig       `json:"groq"`
	OpenRouter  OpenRouterConfig `json:"openrouter"`
}

type GroqConfig struct {
	APIKey         string  `json:"apiKey"`
	APIBase        string  `json:"apiBase,omitempty"`
	Model          string  `json:"model,omitempty"`
	TimeoutSeconds float64 `json:"timeoutSeconds,omitempty"`
}

type OpenRouterConfig struct {
	APIKey         string  `json:"apiKey"`
	APIBase        string  `json:"apiBase,omitempty"`
	Model          string  `json:"model,omitempty"`
	VisionModel    string  `json:"visionModel,omitempty"`
	VisionBackup   string  `json:"visionBackup,omitempty"`
	TimeoutSeconds float64 `json:"timeoutSeconds,omitempty"`
}

type EmbeddingConfig struct {
	Provider  string `json:"provider"` // "api" | "ollama"
	BaseURL   string `json:"baseUrl"`
	APIKey    string `json:"apiKey,omitempty"`
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
	TimeoutMs int    `json:"timeoutMs,omitempty"`
}

type GateConfig struct {
	// Threshold is the cosine-similarity floor for a route match.
	Threshold float64 `json:"threshold"`
}

type ContextConfig struct {
	HistoryLimit        int `json:"historyLimit"`
	ReplyChainDepth     int `json:"replyChainDepth"`
	HistoryCacheSeconds int `json:"historyCacheSeconds"`
	SemanticWindowHours int `json:"semanticWindowHours"`
	SemanticLimit       int `json:"semanticLimit"`
	FactLimit           int `json:"factLimit"`
	TokenBudget         int `json:"tokenBudget"`
}

type PersonaConfig struct {
	// PresetFile optionally overrides built-in preset modifiers (YAML).
	PresetFile string `json:"presetFile,omitempty"`
}

type RateLimitConfig struct {
	MaxMessages   int `json:"maxMessages"`
	WindowSeconds int `json:"windowSeconds"`
}

type BreakerConfig struct {
	Threshold     int `json:"threshold"`
	OpenSeconds   int `json:"openSeconds"`
	WindowSeconds int `json:"windowSeconds"`
}

type LurkerConfig struct {
	Enabled         bool           `json:"enabled"`
	Channels        FlexStringList `json:"channels,omitempty"`
	MinInterest     int            `json:"minInterest,omitempty"`
	CooldownSeconds int            `json:"cooldownSeconds,omitempty"`
	BaseChance      float64        `json:"baseChance,omitempty"`
}

type StoreConfig struct {
	DBPath string `json:"dbPath"`
}

type RetentionConfig struct {
	Days int `json:"days"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
}

// FlexStringList is a []string that can unmarshal from JSON arrays containing
// both strings and numbers; Discord snowflake ids are often pasted unquoted.
type FlexStringList []string

func (f *FlexStringList) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			result = append(result, s)
			continue
		}
		var n float64
		if err := json.Unmarshal(item, &n); err == nil {
			result = append(result, strconv.FormatInt(int64(n), 10))
			continue
		}
		result = append(result, string(item))
	}
	*f = result
	return nil
}

// DefaultConfigDir returns the default config directory (~/.lunabot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lunabot"
	}
	return filepath.Join(home, ".lunabot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Store.DBPath = ExpandPath(cfg.Store.DBPath)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
	cfg.Persona.PresetFile = ExpandPath(cfg.Persona.PresetFile)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset
// or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values. The Discord token is not
// checked here; init/status/cleanup run without one.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	if cfg.Gate.Threshold <= 0 || cfg.Gate.Threshold > 1 {
		errs = append(errs, "gate.threshold must be in (0, 1]")
	}
	if cfg.Embedding.Dimension < 1 {
		errs = append(errs, "embedding.dimension must be >= 1")
	}
	if cfg.Context.TokenBudget < 1 {
		errs = append(errs, "context.tokenBudget must be >= 1")
	}
	if cfg.RateLimit.MaxMessages < 1 {
		errs = append(errs, "rateLimit.maxMessages must be >= 1")
	}
	if cfg.RateLimit.WindowSeconds < 1 {
		errs = append(errs, "rateLimit.windowSeconds must be >= 1")
	}
	if cfg.Breaker.Threshold < 1 {
		errs = append(errs, "circuitBreaker.threshold must be >= 1")
	}
	if cfg.Retention.Days < 1 {
		errs = append(errs, "retention.days must be >= 1")
	}
	if cfg.Lurker.Enabled && len(cfg.Lurker.Channels) == 0 {
		errs = append(errs, "lurker.channels must list at least one channel when the lurker is enabled")
	}
	if cfg.Lurker.BaseChance < 0 || cfg.Lurker.BaseChance > 1 {
		errs = append(errs, "lurker.baseChance must be between 0 and 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
