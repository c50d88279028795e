package llm

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"
)

const DefaultJetstreamBaseURL = "https://llm.jetstream-cloud.org/api/"

// ProviderConfig selects and configures one backend.
type ProviderConfig struct {
	Provider    string  `yaml:"provider"` // google | openai | jetstream | ollama
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`

	// TimeoutSeconds bounds each HTTP call; zero means 60s.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// MaxWorkers caps concurrent calls across all sessions.
	MaxWorkers int `yaml:"max_workers"`
}

func (c ProviderConfig) timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// resolveKey returns the configured key, falling back to the named
// environment variables in order.
func resolveKey(explicit string, envs ...string) string {
	if k := strings.TrimSpace(explicit); k != "" {
		return k
	}
	for _, e := range envs {
		if k := strings.TrimSpace(os.Getenv(e)); k != "" {
			return k
		}
	}
	return ""
}

// New builds the Generator for cfg.Provider. The choice is made once here;
// callers only ever see the Generator interface.
func New(ctx context.Context, cfg ProviderConfig) (Generator, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	log.Printf("🤖 [LLM] Initializing provider=%s model=%s", provider, cfg.Model)

	switch provider {
	case "google", "gemini":
		key := resolveKey(cfg.APIKey, "GOOGLE_API_KEY", "GEMINI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("%w: google", ErrMissingAPIKey)
		}
		return NewGeminiClient(ctx, key, cfg.Model, cfg.Temperature)

	case "openai":
		key := resolveKey(cfg.APIKey, "OPENAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("%w: openai", ErrMissingAPIKey)
		}
		return NewOpenAIClient(cfg.BaseURL, key, cfg.Model, cfg.Temperature, cfg.MaxTokens, cfg.timeout()), nil

	case "jetstream":
		key := resolveKey(cfg.APIKey, "JETSTREAM_API_KEY", "OPENAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("%w: jetstream", ErrMissingAPIKey)
		}
		base := cfg.BaseURL
		if strings.TrimSpace(base) == "" {
			base = resolveKey("", "JETSTREAM_API_BASE")
		}
		if strings.TrimSpace(base) == "" {
			base = DefaultJetstreamBaseURL
		}
		client := NewOpenAIClient(base, key, cfg.Model, cfg.Temperature, cfg.MaxTokens, cfg.timeout())
		return WithThinkingFilter(client), nil

	case "ollama", "local":
		return NewOllamaClient(cfg.BaseURL, cfg.Model, cfg.timeout()), nil

	default:
		return nil, fmt.Errorf("%w: %q (supported: google, openai, jetstream, ollama)", ErrUnsupportedProvider, cfg.Provider)
	}
}
