package repository

import (
	"context"
	"fmt"
	"sort"

	"hypothesis-rating/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const poolColumns = `
	id, topic_name, hypothesis_rank, original_hypothesis_id,
	COALESCE(model_source, '') AS model_source, COALESCE(topic, 0) AS topic,
	COALESCE(sub_topic, 0) AS sub_topic, COALESCE(strategy, '') AS strategy,
	hypothesis_id, COALESCE(hypothesis_content_en, '') AS hypothesis_content_en,
	hypothesis_content_zh, feedback_results, novelty_score, significance_score,
	soundness_score, feasibility_score, overall_winner_score, created_at`

// TopicCount is the number of pool rows stored for a topic
type TopicCount struct {
	TopicName string `json:"topic_name" db:"topic_name"`
	Count     int    `json:"count" db:"count"`
}

// TranslationStat summarises translation progress for one topic
type TranslationStat struct {
	TopicName  string `json:"topic_name" db:"topic_name"`
	Total      int    `json:"total" db:"total"`
	Translated int    `json:"translated" db:"translated"`
}

// PoolRepository stores the frozen comparison pools
type PoolRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewPoolRepository creates a new repository
func NewPoolRepository(db *sqlx.DB, logger *zap.Logger) *PoolRepository {
	return &PoolRepository{
		db:     db,
		logger: logger,
	}
}

// CountByTopic returns how many pool rows exist for a topic
func (r *PoolRepository) CountByTopic(ctx context.Context, topicName string) (int, error) {
	var count int
	query := r.db.Rebind(`SELECT COUNT(*) FROM predefined_comparisons WHERE topic_name = ?`)
	if err := r.db.GetContext(ctx, &count, query, topicName); err != nil {
		return 0, fmt.Errorf("failed to count pool rows for %s: %w", topicName, err)
	}
	return count, nil
}

// ListByTopic returns the pool of a topic ordered by rank
func (r *PoolRepository) ListByTopic(ctx context.Context, topicName string) ([]models.PoolEntry, error) {
	query := r.db.Rebind(`SELECT ` + poolColumns + ` FROM predefined_comparisons WHERE topic_name = ? ORDER BY hypothesis_rank`)

	var entries []models.PoolEntry
	if err := r.db.SelectContext(ctx, &entries, query, topicName); err != nil {
		return nil, fmt.Errorf("failed to query pool for %s: %w", topicName, err)
	}
	return entries, nil
}

// Topics lists every topic that has pool rows
func (r *PoolRepository) Topics(ctx context.Context) ([]TopicCount, error) {
	query := `
		SELECT topic_name, COUNT(*) AS count
		FROM predefined_comparisons
		GROUP BY topic_name
		ORDER BY topic_name
	`

	var topics []TopicCount
	if err := r.db.SelectContext(ctx, &topics, query); err != nil {
		return nil, fmt.Errorf("failed to list pool topics: %w", err)
	}
	return topics, nil
}

// InsertTopic stores the pool of one topic in a single transaction. Entries
// receive their generated ids.
func (r *PoolRepository) InsertTopic(ctx context.Context, entries []models.PoolEntry) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range entries {
		if err := insertPoolEntry(ctx, tx, &entries[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit pool: %w", err)
	}
	return nil
}

// ReplaceAll deletes every pool row and stores the given pools in one
// transaction
func (r *PoolRepository) ReplaceAll(ctx context.Context, pools map[string][]models.PoolEntry) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM predefined_comparisons`)
	if err != nil {
		return fmt.Errorf("failed to clear pools: %w", err)
	}
	if deleted, err := res.RowsAffected(); err == nil {
		r.logger.Info("Cleared comparison pools", zap.Int64("rows", deleted))
	}

	names := make([]string, 0, len(pools))
	for name := range pools {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		entries := pools[name]
		for i := range entries {
			if err := insertPoolEntry(ctx, tx, &entries[i]); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit pools: %w", err)
	}
	return nil
}

func insertPoolEntry(ctx context.Context, tx *sqlx.Tx, e *models.PoolEntry) error {
	query := tx.Rebind(`
		INSERT INTO predefined_comparisons (
			topic_name, hypothesis_rank, original_hypothesis_id, model_source,
			topic, sub_topic, strategy, hypothesis_id, hypothesis_content_en,
			hypothesis_content_zh, feedback_results, novelty_score,
			significance_score, soundness_score, feasibility_score,
			overall_winner_score, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)

	err := tx.QueryRowxContext(ctx, query,
		e.TopicName,
		e.Rank,
		e.OriginalHypothesisID,
		e.ModelSource,
		e.Topic,
		e.SubTopic,
		e.Strategy,
		e.HypothesisID,
		e.ContentEN,
		e.ContentZH,
		e.FeedbackResults,
		e.NoveltyScore,
		e.SignificanceScore,
		e.SoundnessScore,
		e.FeasibilityScore,
		e.OverallWinnerScore,
		e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to insert pool entry %s#%d: %w", e.TopicName, e.Rank, err)
	}
	return nil
}

// ListUntranslated returns pool rows without a Chinese payload. An empty
// topicName matches every topic; limit <= 0 means no limit.
func (r *PoolRepository) ListUntranslated(ctx context.Context, topicName string, limit int) ([]models.PoolEntry, error) {
	query := `SELECT ` + poolColumns + ` FROM predefined_comparisons
		WHERE (hypothesis_content_zh IS NULL OR hypothesis_content_zh = '')`
	var args []interface{}
	if topicName != "" {
		query += ` AND topic_name = ?`
		args = append(args, topicName)
	}
	query += ` ORDER BY topic_name, hypothesis_rank`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var entries []models.PoolEntry
	if err := r.db.SelectContext(ctx, &entries, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query untranslated pool rows: %w", err)
	}
	return entries, nil
}

// SetTranslation stores the Chinese payload of a pool row
func (r *PoolRepository) SetTranslation(ctx context.Context, id int64, content string) error {
	query := r.db.Rebind(`UPDATE predefined_comparisons SET hypothesis_content_zh = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, content, id)
	if err != nil {
		return fmt.Errorf("failed to update translation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("pool entry %d not found", id)
	}
	return nil
}

// TranslationStats reports how many rows of each topic carry a translation
func (r *PoolRepository) TranslationStats(ctx context.Context) ([]TranslationStat, error) {
	query := `
		SELECT topic_name,
		       COUNT(*) AS total,
		       SUM(CASE WHEN hypothesis_content_zh IS NOT NULL AND hypothesis_content_zh <> '' THEN 1 ELSE 0 END) AS translated
		FROM predefined_comparisons
		GROUP BY topic_name
		ORDER BY topic_name
	`

	var stats []TranslationStat
	if err := r.db.SelectContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("failed to query translation stats: %w", err)
	}
	return stats, nil
}

// RefreshContentFromSource copies hypothesis_content from the raw table back
// into hypothesis_content_en for every pool row whose source still exists
func (r *PoolRepository) RefreshContentFromSource(ctx context.Context) (int64, error) {
	query := `
		UPDATE predefined_comparisons
		SET hypothesis_content_en = (
			SELECT h.hypothesis_content FROM hypothesis h
			WHERE h.id = predefined_comparisons.original_hypothesis_id
		)
		WHERE EXISTS (
			SELECT 1 FROM hypothesis h
			WHERE h.id = predefined_comparisons.original_hypothesis_id
		)
	`

	res, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to refresh pool content: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}

	r.logger.Info("Refreshed pool content from source", zap.Int64("rows", n))
	return n, nil
}
