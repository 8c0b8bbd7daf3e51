package pool

import (
	"context"
	"errors"
	"math/rand/v2"

	"hypothesis-rating/internal/models"

	"go.uber.org/zap"
)

// ErrPoolNotFound is returned when a topic has no usable pool
var ErrPoolNotFound = errors.New("comparison pool not found")

// Selector draws comparison pairs from a topic's pool
type Selector struct {
	cache  *Cache
	logger *zap.Logger
	intN   func(n int) int
}

// NewSelector creates a selector reading pools through cache
func NewSelector(cache *Cache, logger *zap.Logger) *Selector {
	return &Selector{
		cache:  cache,
		logger: logger,
		intN:   rand.IntN,
	}
}

// Ready reports whether topic has a pool that pairs can be drawn from
func (s *Selector) Ready(ctx context.Context, topic string) error {
	entries, err := s.cache.Get(ctx, topic)
	if err != nil {
		return err
	}
	if len(entries) < 2 {
		return ErrPoolNotFound
	}
	return nil
}

// SelectPair picks two distinct pool entries uniformly at random. Every call
// draws afresh.
func (s *Selector) SelectPair(ctx context.Context, topic string, lang models.Language) (*models.ComparisonPair, error) {
	entries, err := s.cache.Get(ctx, topic)
	if err != nil {
		return nil, err
	}
	if len(entries) < 2 {
		return nil, ErrPoolNotFound
	}

	i := s.intN(len(entries))
	j := s.intN(len(entries) - 1)
	if j >= i {
		j++
	}

	return s.pair(topic, lang, &entries[i], &entries[j]), nil
}

// PairByIDs returns a previously selected pair, decoded in lang. aID and bID
// are raw hypothesis ids.
func (s *Selector) PairByIDs(ctx context.Context, topic string, lang models.Language, aID, bID int64) (*models.ComparisonPair, error) {
	entries, err := s.cache.Get(ctx, topic)
	if err != nil {
		return nil, err
	}

	var a, b *models.PoolEntry
	for i := range entries {
		switch entries[i].OriginalHypothesisID {
		case aID:
			a = &entries[i]
		case bID:
			b = &entries[i]
		}
	}
	if a == nil || b == nil || aID == bID {
		return nil, ErrPoolNotFound
	}

	return s.pair(topic, lang, a, b), nil
}

func (s *Selector) pair(topic string, lang models.Language, a, b *models.PoolEntry) *models.ComparisonPair {
	return &models.ComparisonPair{
		Topic:    topic,
		Language: lang,
		A:        s.present(lang, a),
		B:        s.present(lang, b),
	}
}

// present decodes the requested language only. A missing translation is
// shown as empty content rather than falling back to English.
func (s *Selector) present(lang models.Language, e *models.PoolEntry) models.ComparedHypothesis {
	content, err := models.ParseContent(e.RawContent(lang))
	if err != nil {
		s.logger.Warn("Malformed hypothesis content",
			zap.String("topic", e.TopicName),
			zap.Int64("id", e.ID),
			zap.String("language", string(lang)),
			zap.Error(err))
		content = models.Content{}
	}

	return models.ComparedHypothesis{
		ID:                 e.OriginalHypothesisID,
		PoolEntryID:        e.ID,
		Rank:               e.Rank,
		Content:            content,
		ModelSource:        e.ModelSource,
		Strategy:           e.Strategy,
		NoveltyScore:       e.NoveltyScore,
		SignificanceScore:  e.SignificanceScore,
		SoundnessScore:     e.SoundnessScore,
		FeasibilityScore:   e.FeasibilityScore,
		OverallWinnerScore: e.OverallWinnerScore,
	}
}
