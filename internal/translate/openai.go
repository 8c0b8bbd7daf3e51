package translate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"hypothesis-rating/internal/models"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

var defaultBaseURLs = map[ProviderType]string{
	ProviderGroq:       "https://api.groq.com/openai/v1",
	ProviderOpenRouter: "https://openrouter.ai/api/v1",
}

var defaultModels = map[ProviderType]string{
	ProviderGroq:       "llama-3.3-70b-versatile",
	ProviderOpenRouter: "meta-llama/llama-3.3-70b-instruct:free",
}

// OpenAITranslator talks to any OpenAI-compatible chat completion API.
// Groq and OpenRouter are configured through their base URLs.
type OpenAITranslator struct {
	client     *openai.Client
	httpClient *http.Client
	provider   ProviderType
	modelName  string
	logger     *zap.Logger
	maxRetries int
	retryDelay time.Duration
}

// NewOpenAITranslator creates a translator for an OpenAI-compatible provider
func NewOpenAITranslator(cfg ProviderConfig, logger *zap.Logger) (*OpenAITranslator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s API key is required", cfg.Type)
	}

	if cfg.ModelName == "" {
		cfg.ModelName = defaultModels[cfg.Type]
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURLs[cfg.Type]
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("no base URL for provider %q", cfg.Type)
	}
	applyRetryDefaults(&cfg)

	httpClient := &http.Client{Timeout: 120 * time.Second}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	clientCfg.HTTPClient = httpClient

	logger.Info("OpenAI-compatible translator initialized",
		zap.String("provider", string(cfg.Type)),
		zap.String("model", cfg.ModelName),
		zap.Int("max_retries", cfg.MaxRetries))

	return &OpenAITranslator{
		client:     openai.NewClientWithConfig(clientCfg),
		httpClient: httpClient,
		provider:   cfg.Type,
		modelName:  cfg.ModelName,
		logger:     logger,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}, nil
}

// Name identifies the provider in logs and metrics
func (o *OpenAITranslator) Name() string {
	return string(o.provider) + "/" + o.modelName
}

// Close releases idle connections
func (o *OpenAITranslator) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}

// Translate sends one hypothesis and parses the answer, retrying on API or
// parse failures
func (o *OpenAITranslator) Translate(ctx context.Context, content models.Content) (models.Content, error) {
	req := openai.ChatCompletionRequest{
		Model: o.modelName,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemInstruction},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(content)},
		},
		Temperature: 0.3,
	}

	var lastErr error
	for attempt := 0; attempt < o.maxRetries; attempt++ {
		if attempt > 0 {
			o.logger.Warn("Retrying translation request",
				zap.String("provider", string(o.provider)),
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", o.maxRetries))
			if err := sleepCtx(ctx, o.retryDelay); err != nil {
				return models.Content{}, err
			}
		}

		resp, err := o.client.CreateChatCompletion(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return models.Content{}, ctx.Err()
			}
			lastErr = fmt.Errorf("%s API error: %w", o.provider, err)
			o.logger.Error("Translation API error",
				zap.String("provider", string(o.provider)),
				zap.Error(err),
				zap.Int("attempt", attempt+1))
			continue
		}

		if len(resp.Choices) == 0 {
			lastErr = errors.New("empty response from " + string(o.provider))
			o.logger.Error("Empty translation response",
				zap.String("provider", string(o.provider)),
				zap.Int("attempt", attempt+1))
			continue
		}

		text := resp.Choices[0].Message.Content
		translated, err := ParseTranslation(text)
		if err != nil {
			lastErr = fmt.Errorf("failed to parse %s response: %w", o.provider, err)
			o.logger.Error("Failed to parse JSON response",
				zap.String("provider", string(o.provider)),
				zap.Error(err),
				zap.String("original_response", truncate(text, 300)),
				zap.Int("attempt", attempt+1))
			continue
		}

		o.logger.Debug("Hypothesis translated", zap.String("provider", o.Name()), zap.Int("attempt", attempt+1))
		return translated, nil
	}

	return models.Content{}, fmt.Errorf("failed after %d attempts: %w", o.maxRetries, lastErr)
}
