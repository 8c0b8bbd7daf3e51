package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"hypothesis-rating/internal/metrics"
	"hypothesis-rating/internal/models"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// defaultRequestsPerMinute is a conservative default for free tiers
const defaultRequestsPerMinute = 8

// rateLimitedTranslator wraps a translator with a token bucket
type rateLimitedTranslator struct {
	Translator
	limiter *rate.Limiter
}

func newRateLimited(t Translator, requestsPerMinute int) *rateLimitedTranslator {
	limit := rate.Inf
	if requestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(requestsPerMinute))
	}
	return &rateLimitedTranslator{
		Translator: t,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

func (p *rateLimitedTranslator) Translate(ctx context.Context, content models.Content) (models.Content, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return models.Content{}, fmt.Errorf("rate limit wait cancelled: %w", err)
	}
	return p.Translator.Translate(ctx, content)
}

// MultiProvider manages several translators with fallback. The current
// provider is used until it fails maxFailures times in a row or reports a
// rate limit, then the next one takes over.
type MultiProvider struct {
	providers    []*rateLimitedTranslator
	currentIndex int
	mu           sync.RWMutex
	logger       *zap.Logger
	failureCount map[int]int
	maxFailures  int
}

// NewMultiProvider creates every configured provider. Providers that cannot
// be initialized are logged and skipped.
func NewMultiProvider(cfgs []ProviderConfig, maxFailures int, logger *zap.Logger) (*MultiProvider, error) {
	if len(cfgs) == 0 {
		return nil, fmt.Errorf("at least one provider is required")
	}

	var translators []Translator
	var limits []int
	for i, cfg := range cfgs {
		t, err := newTranslator(cfg, logger)
		if err != nil {
			logger.Error("Failed to create provider",
				zap.String("type", string(cfg.Type)),
				zap.Int("index", i),
				zap.Error(err))
			continue
		}

		rpm := cfg.RequestsPerMinute
		if rpm == 0 {
			rpm = defaultRequestsPerMinute
		}
		translators = append(translators, t)
		limits = append(limits, rpm)

		logger.Info("Provider initialized",
			zap.String("provider", t.Name()),
			zap.Int("rate_limit", rpm),
			zap.Int("index", i))
	}

	if len(translators) == 0 {
		return nil, fmt.Errorf("no providers could be initialized")
	}

	return newMultiProvider(translators, limits, maxFailures, logger), nil
}

func newMultiProvider(translators []Translator, limits []int, maxFailures int, logger *zap.Logger) *MultiProvider {
	if maxFailures <= 0 {
		maxFailures = 3
	}
	providers := make([]*rateLimitedTranslator, 0, len(translators))
	for i, t := range translators {
		rpm := 0
		if i < len(limits) {
			rpm = limits[i]
		}
		providers = append(providers, newRateLimited(t, rpm))
	}
	return &MultiProvider{
		providers:    providers,
		logger:       logger,
		failureCount: make(map[int]int),
		maxFailures:  maxFailures,
	}
}

// Name reports the provider currently in use
func (c *MultiProvider) Name() string {
	p, _ := c.current()
	return p.Name()
}

func (c *MultiProvider) current() (*rateLimitedTranslator, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.providers[c.currentIndex], c.currentIndex
}

// switchFrom moves past the provider at index unless another call already did
func (c *MultiProvider) switchFrom(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.currentIndex != index {
		return
	}
	c.currentIndex = (index + 1) % len(c.providers)

	c.logger.Info("Switching provider",
		zap.Int("from_index", index),
		zap.Int("to_index", c.currentIndex),
		zap.Int("total_providers", len(c.providers)))
}

// recordFailure reports whether the provider should be switched out
func (c *MultiProvider) recordFailure(index int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failureCount[index]++
	if c.failureCount[index] >= c.maxFailures {
		c.logger.Warn("Provider reached max failures",
			zap.Int("provider_index", index),
			zap.Int("failures", c.failureCount[index]))
		c.failureCount[index] = 0
		return true
	}
	return false
}

func (c *MultiProvider) resetFailures(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failureCount[index] = 0
}

// Translate starts with the current provider and falls back to the others
// in order. Each provider is tried at most once per call.
func (c *MultiProvider) Translate(ctx context.Context, content models.Content) (models.Content, error) {
	_, first := c.current()

	var errs []error
	for offset := 0; offset < len(c.providers); offset++ {
		index := (first + offset) % len(c.providers)
		provider := c.providers[index]

		start := time.Now()
		result, err := provider.Translate(ctx, content)
		if err == nil {
			metrics.RecordTranslation(provider.Name(), "success", time.Since(start))
			c.resetFailures(index)
			return result, nil
		}
		if ctx.Err() != nil {
			return models.Content{}, ctx.Err()
		}

		status := "error"
		if errors.Is(err, ErrUnparseable) {
			status = "parse_error"
		}
		metrics.RecordTranslation(provider.Name(), status, time.Since(start))

		c.logger.Error("Provider failed",
			zap.String("provider", provider.Name()),
			zap.Int("provider_index", index),
			zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", provider.Name(), err))

		if c.recordFailure(index) || isRateLimitError(err) {
			c.switchFrom(index)
		}
	}

	return models.Content{}, fmt.Errorf("all providers failed: %w", errors.Join(errs...))
}

// isRateLimitError checks if err reports throttling
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "rate limit")
}

// Close closes all providers
func (c *MultiProvider) Close() error {
	var errs []error
	for i, p := range c.providers {
		if err := p.Close(); err != nil {
			c.logger.Error("Failed to close provider", zap.Int("index", i), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ProvidersInfo describes all providers
func (c *MultiProvider) ProvidersInfo() []map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info := make([]map[string]interface{}, len(c.providers))
	for i, p := range c.providers {
		info[i] = map[string]interface{}{
			"provider":      p.Name(),
			"is_current":    i == c.currentIndex,
			"failure_count": c.failureCount[i],
		}
	}
	return info
}
