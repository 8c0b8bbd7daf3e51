package repository

import (
	"context"
	"database/sql"
	"fmt"

	"hypothesis-rating/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const hypothesisColumns = `
	id, COALESCE(model_source, '') AS model_source, topic,
	COALESCE(sub_topic, 0) AS sub_topic, COALESCE(strategy, '') AS strategy,
	hypothesis_id, COALESCE(hypothesis_content, '') AS hypothesis_content,
	feedback_results, novelty_score, significance_score, soundness_score,
	feasibility_score, overall_winner_score`

// SubTopicCount is the number of raw hypotheses in a (topic, sub_topic) bucket
type SubTopicCount struct {
	Topic    int `json:"topic" db:"topic"`
	SubTopic int `json:"sub_topic" db:"sub_topic"`
	Count    int `json:"count" db:"count"`
}

// HypothesisRepository reads the raw hypothesis table
type HypothesisRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewHypothesisRepository creates a new repository
func NewHypothesisRepository(db *sqlx.DB, logger *zap.Logger) *HypothesisRepository {
	return &HypothesisRepository{
		db:     db,
		logger: logger,
	}
}

// DistinctTopics returns every topic present in the raw table
func (r *HypothesisRepository) DistinctTopics(ctx context.Context) ([]int, error) {
	var topics []int
	if err := r.db.SelectContext(ctx, &topics, `SELECT DISTINCT topic FROM hypothesis ORDER BY topic`); err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	return topics, nil
}

// ListByTopic returns all hypotheses of a topic ordered by id
func (r *HypothesisRepository) ListByTopic(ctx context.Context, topic int) ([]models.Hypothesis, error) {
	query := r.db.Rebind(`SELECT ` + hypothesisColumns + ` FROM hypothesis WHERE topic = ? ORDER BY id`)

	var hypotheses []models.Hypothesis
	if err := r.db.SelectContext(ctx, &hypotheses, query, topic); err != nil {
		return nil, fmt.Errorf("failed to query hypotheses for topic %d: %w", topic, err)
	}
	return hypotheses, nil
}

// ListByTopicSubTopic returns the hypotheses of one (topic, sub_topic) bucket
// ordered by id
func (r *HypothesisRepository) ListByTopicSubTopic(ctx context.Context, topic, subTopic int) ([]models.Hypothesis, error) {
	query := r.db.Rebind(`SELECT ` + hypothesisColumns + ` FROM hypothesis WHERE topic = ? AND sub_topic = ? ORDER BY id`)

	var hypotheses []models.Hypothesis
	if err := r.db.SelectContext(ctx, &hypotheses, query, topic, subTopic); err != nil {
		return nil, fmt.Errorf("failed to query hypotheses for topic %d sub_topic %d: %w", topic, subTopic, err)
	}
	return hypotheses, nil
}

// ContentByID returns the raw content payload of a hypothesis
func (r *HypothesisRepository) ContentByID(ctx context.Context, id int64) (string, error) {
	var content sql.NullString
	err := r.db.GetContext(ctx, &content, r.db.Rebind(`SELECT hypothesis_content FROM hypothesis WHERE id = ?`), id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get hypothesis content: %w", err)
	}
	return content.String, nil
}

// CountsBySubTopic groups the raw table by (topic, sub_topic)
func (r *HypothesisRepository) CountsBySubTopic(ctx context.Context) ([]SubTopicCount, error) {
	query := `
		SELECT topic, COALESCE(sub_topic, 0) AS sub_topic, COUNT(*) AS count
		FROM hypothesis
		GROUP BY topic, COALESCE(sub_topic, 0)
		ORDER BY topic, sub_topic
	`

	var counts []SubTopicCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("failed to count hypotheses: %w", err)
	}
	return counts, nil
}

// Insert adds a raw hypothesis. The live service never writes this table;
// it is used by the import command.
func (r *HypothesisRepository) Insert(ctx context.Context, h *models.Hypothesis) error {
	query := r.db.Rebind(`
		INSERT INTO hypothesis (
			model_source, topic, sub_topic, strategy, hypothesis_id,
			hypothesis_content, feedback_results, novelty_score, significance_score,
			soundness_score, feasibility_score, overall_winner_score
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)

	err := r.db.QueryRowxContext(ctx, query,
		h.ModelSource,
		h.Topic,
		h.SubTopic,
		h.Strategy,
		h.HypothesisID,
		h.RawContent,
		h.FeedbackResults,
		h.NoveltyScore,
		h.SignificanceScore,
		h.SoundnessScore,
		h.FeasibilityScore,
		h.OverallWinnerScore,
	).Scan(&h.ID)
	if err != nil {
		return fmt.Errorf("failed to insert hypothesis: %w", err)
	}
	return nil
}

// Columns lists the columns of a table in declaration order
func (r *HypothesisRepository) Columns(ctx context.Context, table string) ([]string, error) {
	var query string
	switch r.db.DriverName() {
	case TypePostgres:
		query = `SELECT column_name FROM information_schema.columns WHERE table_name = $1 ORDER BY ordinal_position`
	default:
		query = `SELECT name FROM pragma_table_info(?)`
	}

	var columns []string
	if err := r.db.SelectContext(ctx, &columns, query, table); err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	return columns, nil
}
