package repository

import (
	"context"
	"fmt"

	"hypothesis-rating/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// RatingRepository stores ratings and comments. Both tables are append-only.
type RatingRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewRatingRepository creates a new repository
func NewRatingRepository(db *sqlx.DB, logger *zap.Logger) *RatingRepository {
	return &RatingRepository{
		db:     db,
		logger: logger,
	}
}

// SaveRating inserts a rating and sets its id
func (r *RatingRepository) SaveRating(ctx context.Context, rating *models.Rating) error {
	query := r.db.Rebind(`
		INSERT INTO ratings (
			session_id, expert_id, topic_name, comparison_number,
			hypothesis_a_id, hypothesis_b_id, novelty_score, soundness_score,
			feasibility_score, significance_score, overall_score, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING rating_id
	`)

	err := r.db.QueryRowxContext(ctx, query,
		rating.SessionID,
		rating.ExpertID,
		rating.TopicName,
		rating.ComparisonNumber,
		rating.HypothesisAID,
		rating.HypothesisBID,
		rating.NoveltyScore,
		rating.SoundnessScore,
		rating.FeasibilityScore,
		rating.SignificanceScore,
		rating.OverallScore,
		rating.CreatedAt,
	).Scan(&rating.ID)
	if err != nil {
		return fmt.Errorf("failed to save rating: %w", err)
	}
	return nil
}

// ratingRow carries the raw content of both rated hypotheses so titles can
// be decoded after the query
type ratingRow struct {
	models.Rating
	ContentA string `db:"content_a"`
	ContentB string `db:"content_b"`
}

// ListRatings returns every rating, newest first, with the titles of the two
// hypotheses read from the raw table, so ratings keep their titles across
// pool rebuilds. An empty topicName matches every topic.
func (r *RatingRepository) ListRatings(ctx context.Context, topicName string) ([]models.RatingWithTitles, error) {
	query := `
		SELECT r.rating_id, r.session_id, r.expert_id, r.topic_name,
		       r.comparison_number, r.hypothesis_a_id, r.hypothesis_b_id,
		       r.novelty_score, r.soundness_score, r.feasibility_score,
		       r.significance_score, r.overall_score, r.created_at,
		       COALESCE(ha.hypothesis_content, '') AS content_a,
		       COALESCE(hb.hypothesis_content, '') AS content_b
		FROM ratings r
		LEFT JOIN hypothesis ha ON ha.id = r.hypothesis_a_id
		LEFT JOIN hypothesis hb ON hb.id = r.hypothesis_b_id
	`
	var args []interface{}
	if topicName != "" {
		query += ` WHERE r.topic_name = ?`
		args = append(args, topicName)
	}
	query += ` ORDER BY r.created_at DESC, r.rating_id DESC`

	var rows []ratingRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query ratings: %w", err)
	}

	ratings := make([]models.RatingWithTitles, 0, len(rows))
	for _, row := range rows {
		ratings = append(ratings, models.RatingWithTitles{
			Rating: row.Rating,
			TitleA: r.title(row.ContentA, row.HypothesisAID),
			TitleB: r.title(row.ContentB, row.HypothesisBID),
		})
	}
	return ratings, nil
}

func (r *RatingRepository) title(raw string, id int64) string {
	content, err := models.ParseContent(raw)
	if err != nil {
		r.logger.Debug("Unreadable hypothesis content", zap.Int64("hypothesis_id", id), zap.Error(err))
		return ""
	}
	return content.Title
}

// SaveComment inserts a comment and sets its id
func (r *RatingRepository) SaveComment(ctx context.Context, comment *models.Comment) error {
	query := r.db.Rebind(`
		INSERT INTO comments (session_id, topic_name, comment_text, email, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING comment_id
	`)

	err := r.db.QueryRowxContext(ctx, query,
		comment.SessionID,
		comment.TopicName,
		comment.CommentText,
		comment.Email,
		comment.CreatedAt,
	).Scan(&comment.ID)
	if err != nil {
		return fmt.Errorf("failed to save comment: %w", err)
	}
	return nil
}

// ListComments returns every comment, newest first
func (r *RatingRepository) ListComments(ctx context.Context) ([]models.Comment, error) {
	query := `
		SELECT comment_id, session_id, topic_name, COALESCE(comment_text, '') AS comment_text,
		       email, created_at
		FROM comments
		ORDER BY created_at DESC, comment_id DESC
	`

	var comments []models.Comment
	if err := r.db.SelectContext(ctx, &comments, query); err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	return comments, nil
}
