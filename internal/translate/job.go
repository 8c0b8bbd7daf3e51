package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"hypothesis-rating/internal/models"
	"hypothesis-rating/internal/repository"

	"go.uber.org/zap"
)

// PoolTranslations is the part of the pool store the job touches. Only the
// Chinese column is ever written.
type PoolTranslations interface {
	ListUntranslated(ctx context.Context, topicName string, limit int) ([]models.PoolEntry, error)
	SetTranslation(ctx context.Context, id int64, content string) error
	TranslationStats(ctx context.Context) ([]repository.TranslationStat, error)
}

// JobOptions narrows a translation run
type JobOptions struct {
	Topic string        // empty means every topic
	Limit int           // <= 0 means no limit
	Delay time.Duration // pause between provider calls
}

// JobReport summarises a translation run
type JobReport struct {
	Total      int                          `json:"total"`
	Translated int                          `json:"translated"`
	Skipped    int                          `json:"skipped"`
	Failed     int                          `json:"failed"`
	Stats      []repository.TranslationStat `json:"stats"`
}

// Job fills hypothesis_content_zh for pool rows that lack it
type Job struct {
	pools      PoolTranslations
	translator Translator
	logger     *zap.Logger
}

// NewJob creates a translation job
func NewJob(pools PoolTranslations, translator Translator, logger *zap.Logger) *Job {
	return &Job{
		pools:      pools,
		translator: translator,
		logger:     logger,
	}
}

// Run translates every pending row once. A row that fails is logged and
// left for the next run.
func (j *Job) Run(ctx context.Context, opts JobOptions) (*JobReport, error) {
	entries, err := j.pools.ListUntranslated(ctx, opts.Topic, opts.Limit)
	if err != nil {
		return nil, err
	}

	report := &JobReport{Total: len(entries)}
	if len(entries) == 0 {
		j.logger.Info("Nothing to translate")
	} else {
		j.logger.Info("Starting translation", zap.Int("pending", len(entries)))
	}

	called := false
	for i := range entries {
		e := &entries[i]

		if strings.TrimSpace(e.ContentEN) == "" {
			j.logger.Info("Skipping hypothesis without content", zap.Int64("id", e.ID))
			report.Skipped++
			continue
		}
		source, err := models.ParseContent(e.ContentEN)
		if err != nil {
			j.logger.Warn("Skipping hypothesis with malformed content", zap.Int64("id", e.ID), zap.Error(err))
			report.Failed++
			continue
		}
		if source.IsEmpty() {
			j.logger.Info("Skipping hypothesis without translatable text", zap.Int64("id", e.ID))
			report.Skipped++
			continue
		}

		if called {
			if err := sleepCtx(ctx, opts.Delay); err != nil {
				return report, err
			}
		}
		called = true

		j.logger.Info("Translating hypothesis",
			zap.Int("progress", i+1),
			zap.Int("total", len(entries)),
			zap.String("topic", e.TopicName),
			zap.Int("rank", e.Rank),
			zap.Int64("id", e.ID))

		translated, err := j.translator.Translate(ctx, source)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			j.logger.Error("Translation failed", zap.Int64("id", e.ID), zap.Error(err))
			report.Failed++
			continue
		}

		encoded, err := encodeContent(translated)
		if err != nil {
			j.logger.Error("Failed to encode translation", zap.Int64("id", e.ID), zap.Error(err))
			report.Failed++
			continue
		}
		if err := j.pools.SetTranslation(ctx, e.ID, encoded); err != nil {
			j.logger.Error("Failed to store translation", zap.Int64("id", e.ID), zap.Error(err))
			report.Failed++
			continue
		}

		report.Translated++
	}

	stats, err := j.pools.TranslationStats(ctx)
	if err != nil {
		return report, err
	}
	report.Stats = stats

	j.logger.Info("Translation finished",
		zap.Int("translated", report.Translated),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Int("total", report.Total))
	for _, s := range stats {
		j.logger.Info("Translation progress",
			zap.String("topic", s.TopicName),
			zap.Int("translated", s.Translated),
			zap.Int("total", s.Total))
	}

	return report, nil
}

// encodeContent writes indented JSON with non-ASCII text kept readable
func encodeContent(c models.Content) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return "", fmt.Errorf("failed to encode content: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
