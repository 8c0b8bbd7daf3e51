// Package translate produces Chinese versions of pool hypotheses through
// external text-generation providers.
package translate

import (
	"context"
	"fmt"
	"time"

	"hypothesis-rating/internal/models"

	"go.uber.org/zap"
)

// ProviderType represents the type of text-generation provider
type ProviderType string

const (
	ProviderGemini     ProviderType = "gemini"
	ProviderGroq       ProviderType = "groq"
	ProviderOpenRouter ProviderType = "openrouter"
)

// ProviderConfig holds configuration for a single provider instance
type ProviderConfig struct {
	Type       ProviderType  `yaml:"type" validate:"oneof=gemini groq openrouter"`
	APIKey     string        `yaml:"api_key"`
	ModelName  string        `yaml:"model_name"`
	BaseURL    string        `yaml:"base_url"`
	MaxRetries int           `yaml:"max_retries" validate:"gte=0"`
	RetryDelay time.Duration `yaml:"retry_delay" validate:"gte=0"`
	// Rate limiting per provider
	RequestsPerMinute int `yaml:"requests_per_minute" validate:"gte=0"`
}

// Translator turns English hypothesis content into Chinese
type Translator interface {
	Translate(ctx context.Context, content models.Content) (models.Content, error)
	Name() string
	Close() error
}

func newTranslator(cfg ProviderConfig, logger *zap.Logger) (Translator, error) {
	switch cfg.Type {
	case ProviderGemini:
		return NewGeminiTranslator(cfg, logger)
	case ProviderGroq, ProviderOpenRouter:
		return NewOpenAITranslator(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Type)
	}
}

func applyRetryDefaults(cfg *ProviderConfig) {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}
}

// sleepCtx waits for d or until ctx is done
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
