// Package pool builds the frozen per-topic comparison pools and draws
// comparison pairs from them.
package pool

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"hypothesis-rating/internal/metrics"
	"hypothesis-rating/internal/models"
	"hypothesis-rating/internal/repository"

	"go.uber.org/zap"
)

// Size is the number of hypotheses frozen into each topic's pool
const Size = 8

// DefaultSeed drives pool sampling unless configured otherwise
const DefaultSeed uint64 = 42

// HypothesisSource reads the raw hypothesis table
type HypothesisSource interface {
	DistinctTopics(ctx context.Context) ([]int, error)
	ListByTopic(ctx context.Context, topic int) ([]models.Hypothesis, error)
	ListByTopicSubTopic(ctx context.Context, topic, subTopic int) ([]models.Hypothesis, error)
}

// Store persists pools
type Store interface {
	CountByTopic(ctx context.Context, topicName string) (int, error)
	ListByTopic(ctx context.Context, topicName string) ([]models.PoolEntry, error)
	InsertTopic(ctx context.Context, entries []models.PoolEntry) error
	ReplaceAll(ctx context.Context, pools map[string][]models.PoolEntry) error
}

// Selection names one (topic, sub_topic) bucket of raw hypotheses
type Selection struct {
	Topic    int `json:"topic"`
	SubTopic int `json:"sub_topic"`
}

func (s Selection) String() string {
	return fmt.Sprintf("%d:%d", s.Topic, s.SubTopic)
}

// DefaultSelections is the operator's standing rebuild list
var DefaultSelections = []Selection{
	{1, 1}, {2, 0}, {3, 2}, {4, 0}, {5, 3}, {6, 2},
	{7, 0}, {8, 2}, {9, 2}, {10, 0}, {10, 4}, {11, 3},
}

// BuildReport lists what happened to each topic during a build
type BuildReport struct {
	Built               []string `json:"built"`
	SkippedExisting     []string `json:"skipped_existing,omitempty"`
	SkippedInsufficient []string `json:"skipped_insufficient,omitempty"`
	Failed              []string `json:"failed,omitempty"`
}

// Builder freezes Size hypotheses per topic
type Builder struct {
	hypotheses HypothesisSource
	pools      Store
	cache      *Cache
	seed       uint64
	logger     *zap.Logger
	now        func() time.Time
}

// NewBuilder creates a builder. cache may be nil.
func NewBuilder(hypotheses HypothesisSource, pools Store, cache *Cache, seed uint64, logger *zap.Logger) *Builder {
	return &Builder{
		hypotheses: hypotheses,
		pools:      pools,
		cache:      cache,
		seed:       seed,
		logger:     logger,
		now:        time.Now,
	}
}

// BuildAll creates the pool of every raw topic that has none yet. Topics
// that already have rows are left untouched, so repeated calls are no-ops.
func (b *Builder) BuildAll(ctx context.Context) (*BuildReport, error) {
	topics, err := b.hypotheses.DistinctTopics(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list raw topics: %w", err)
	}

	report := &BuildReport{}
	for _, topic := range topics {
		name := models.TopicKey(topic)

		count, err := b.pools.CountByTopic(ctx, name)
		if err != nil {
			return report, err
		}
		if count > 0 {
			b.logger.Debug("Pool already exists", zap.String("topic", name), zap.Int("rows", count))
			report.SkippedExisting = append(report.SkippedExisting, name)
			metrics.RecordPoolBuild("skipped_existing")
			continue
		}

		rows, err := b.hypotheses.ListByTopic(ctx, topic)
		if err != nil {
			return report, err
		}

		entries, ok := b.sample(name, b.validCandidates(name, rows))
		if !ok {
			report.SkippedInsufficient = append(report.SkippedInsufficient, name)
			metrics.RecordPoolBuild("insufficient")
			continue
		}

		if err := b.pools.InsertTopic(ctx, entries); err != nil {
			if repository.IsUniqueViolation(err) {
				b.logger.Warn("Pool was built concurrently, keeping existing rows", zap.String("topic", name))
			} else {
				b.logger.Error("Failed to store pool", zap.String("topic", name), zap.Error(err))
			}
			report.Failed = append(report.Failed, name)
			metrics.RecordPoolBuild("failed")
			continue
		}

		b.invalidate(name)
		report.Built = append(report.Built, name)
		metrics.RecordPoolBuild("built")
		b.logger.Info("Built comparison pool", zap.String("topic", name), zap.Int("candidates", len(rows)))
	}

	return report, nil
}

// Rebuild wipes every pool and regenerates one per topic named in criteria.
// The candidates of a topic are the union of its selected sub-topics.
func (b *Builder) Rebuild(ctx context.Context, criteria []Selection) (*BuildReport, error) {
	byTopic := make(map[int][]int)
	for _, sel := range criteria {
		byTopic[sel.Topic] = append(byTopic[sel.Topic], sel.SubTopic)
	}
	topics := make([]int, 0, len(byTopic))
	for topic := range byTopic {
		topics = append(topics, topic)
	}
	sort.Ints(topics)

	report := &BuildReport{}
	pools := make(map[string][]models.PoolEntry, len(topics))
	for _, topic := range topics {
		name := models.TopicKey(topic)

		seen := make(map[int64]bool)
		var candidates []models.Hypothesis
		for _, sub := range byTopic[topic] {
			rows, err := b.hypotheses.ListByTopicSubTopic(ctx, topic, sub)
			if err != nil {
				return nil, err
			}
			for _, h := range rows {
				if !seen[h.ID] {
					seen[h.ID] = true
					candidates = append(candidates, h)
				}
			}
		}
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })

		entries, ok := b.sample(name, b.validCandidates(name, candidates))
		if !ok {
			report.SkippedInsufficient = append(report.SkippedInsufficient, name)
			metrics.RecordPoolBuild("insufficient")
			continue
		}
		pools[name] = entries
	}

	if err := b.pools.ReplaceAll(ctx, pools); err != nil {
		return nil, fmt.Errorf("failed to replace pools: %w", err)
	}
	if b.cache != nil {
		b.cache.InvalidateAll()
	}

	for _, topic := range topics {
		name := models.TopicKey(topic)
		if _, ok := pools[name]; ok {
			report.Built = append(report.Built, name)
			metrics.RecordPoolBuild("built")
		}
	}

	b.logger.Info("Rebuilt comparison pools",
		zap.Strings("built", report.Built),
		zap.Strings("insufficient", report.SkippedInsufficient))

	return report, nil
}

func (b *Builder) validCandidates(name string, rows []models.Hypothesis) []models.Hypothesis {
	var valid []models.Hypothesis
	for _, h := range rows {
		if strings.TrimSpace(h.RawContent) == "" {
			b.logger.Debug("Skipping hypothesis without content", zap.String("topic", name), zap.Int64("id", h.ID))
			continue
		}
		if _, err := models.ParseContent(h.RawContent); err != nil {
			b.logger.Debug("Skipping hypothesis with malformed content",
				zap.String("topic", name),
				zap.Int64("id", h.ID),
				zap.Error(err))
			continue
		}
		valid = append(valid, h)
	}
	return valid
}

// sample draws Size candidates without replacement. candidates must be
// ordered by id; the generator is seeded per call so the same input always
// yields the same pool.
func (b *Builder) sample(name string, candidates []models.Hypothesis) ([]models.PoolEntry, bool) {
	if len(candidates) < Size {
		b.logger.Warn("Not enough hypotheses to build pool",
			zap.String("topic", name),
			zap.Int("valid", len(candidates)),
			zap.Int("required", Size))
		return nil, false
	}

	rng := rand.New(rand.NewPCG(b.seed, b.seed))
	picked := rng.Perm(len(candidates))[:Size]

	now := b.now().UTC()
	entries := make([]models.PoolEntry, 0, Size)
	for i, idx := range picked {
		h := candidates[idx]
		entries = append(entries, models.PoolEntry{
			TopicName:            name,
			Rank:                 i + 1,
			OriginalHypothesisID: h.ID,
			ModelSource:          h.ModelSource,
			Topic:                h.Topic,
			SubTopic:             h.SubTopic,
			Strategy:             h.Strategy,
			HypothesisID:         h.HypothesisID,
			ContentEN:            h.RawContent,
			FeedbackResults:      h.FeedbackResults,
			NoveltyScore:         h.NoveltyScore,
			SignificanceScore:    h.SignificanceScore,
			SoundnessScore:       h.SoundnessScore,
			FeasibilityScore:     h.FeasibilityScore,
			OverallWinnerScore:   h.OverallWinnerScore,
			CreatedAt:            now,
		})
	}
	return entries, true
}

func (b *Builder) invalidate(name string) {
	if b.cache != nil {
		b.cache.Invalidate(name)
	}
}
