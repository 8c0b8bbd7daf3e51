package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hypothesis-rating/internal/models"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GeminiTranslator wraps the Gemini API client
type GeminiTranslator struct {
	client     *genai.Client
	model      *genai.GenerativeModel
	logger     *zap.Logger
	modelName  string
	maxRetries int
	retryDelay time.Duration
}

// NewGeminiTranslator creates a Gemini-backed translator
func NewGeminiTranslator(cfg ProviderConfig, logger *zap.Logger) (*GeminiTranslator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	if cfg.ModelName == "" {
		cfg.ModelName = "gemini-2.5-flash"
	}
	applyRetryDefaults(&cfg)

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.ModelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemInstruction)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:      genai.Ptr[float32](0.3),
		TopP:             genai.Ptr[float32](0.9),
		MaxOutputTokens:  genai.Ptr[int32](8192),
		ResponseMIMEType: "application/json",
	}

	logger.Info("Gemini translator initialized",
		zap.String("model", cfg.ModelName),
		zap.Int("max_retries", cfg.MaxRetries))

	return &GeminiTranslator{
		client:     client,
		model:      model,
		logger:     logger,
		modelName:  cfg.ModelName,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}, nil
}

// Name identifies the provider in logs and metrics
func (g *GeminiTranslator) Name() string {
	return string(ProviderGemini) + "/" + g.modelName
}

// Close closes the Gemini client
func (g *GeminiTranslator) Close() error {
	return g.client.Close()
}

// Translate sends one hypothesis and parses the answer, retrying on API or
// parse failures
func (g *GeminiTranslator) Translate(ctx context.Context, content models.Content) (models.Content, error) {
	prompt := BuildPrompt(content)

	var lastErr error
	for attempt := 0; attempt < g.maxRetries; attempt++ {
		if attempt > 0 {
			g.logger.Warn("Retrying Gemini request",
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", g.maxRetries))
			if err := sleepCtx(ctx, g.retryDelay); err != nil {
				return models.Content{}, err
			}
		}

		resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			if ctx.Err() != nil {
				return models.Content{}, ctx.Err()
			}
			lastErr = fmt.Errorf("gemini API error: %w", err)
			g.logger.Error("Gemini API error", zap.Error(err), zap.Int("attempt", attempt+1))
			continue
		}

		text, err := geminiText(resp)
		if err != nil {
			lastErr = err
			g.logger.Error("Unusable Gemini response", zap.Error(err), zap.Int("attempt", attempt+1))
			continue
		}

		translated, err := ParseTranslation(text)
		if err != nil {
			lastErr = fmt.Errorf("failed to parse gemini response: %w", err)
			g.logger.Error("Failed to parse JSON response",
				zap.Error(err),
				zap.String("original_response", truncate(text, 300)),
				zap.Int("attempt", attempt+1))
			continue
		}

		g.logger.Debug("Hypothesis translated", zap.String("provider", g.Name()), zap.Int("attempt", attempt+1))
		return translated, nil
	}

	return models.Content{}, fmt.Errorf("failed after %d attempts: %w", g.maxRetries, lastErr)
}

func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("empty response from gemini")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if b.Len() == 0 {
		return "", errors.New("unexpected response type from gemini")
	}
	return b.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
