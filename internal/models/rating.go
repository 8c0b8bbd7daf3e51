package models

import "time"

// Rating is one expert judgment of a comparison. Ratings are append-only.
type Rating struct {
	ID                int64     `json:"id" db:"rating_id"`
	SessionID         string    `json:"session_id" db:"session_id"`
	ExpertID          *string   `json:"expert_id,omitempty" db:"expert_id"`
	TopicName         string    `json:"topic_name" db:"topic_name"`
	ComparisonNumber  int       `json:"comparison_number" db:"comparison_number"`
	HypothesisAID     int64     `json:"hypothesis_A_id" db:"hypothesis_a_id"`
	HypothesisBID     int64     `json:"hypothesis_B_id" db:"hypothesis_b_id"`
	NoveltyScore      int       `json:"novelty_score" db:"novelty_score"`
	SoundnessScore    int       `json:"soundness_score" db:"soundness_score"`
	FeasibilityScore  int       `json:"feasibility_score" db:"feasibility_score"`
	SignificanceScore int       `json:"significance_score" db:"significance_score"`
	OverallScore      int       `json:"overall_score" db:"overall_score"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// RatingWithTitles is a rating joined with the titles of both hypotheses,
// used by the admin listing
type RatingWithTitles struct {
	Rating
	TitleA string `json:"title_A" db:"-"`
	TitleB string `json:"title_B" db:"-"`
}

// Comment is free-text feedback left by an expert. Comments are append-only.
type Comment struct {
	ID          int64     `json:"id" db:"comment_id"`
	SessionID   string    `json:"session_id" db:"session_id"`
	TopicName   string    `json:"topic_name" db:"topic_name"`
	CommentText string    `json:"comment" db:"comment_text"`
	Email       *string   `json:"email,omitempty" db:"email"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// RatingRequest is the body of a rating submission. Hypothesis ids may be
// omitted, in which case the pair remembered for the comparison is used.
type RatingRequest struct {
	ComparisonNumber  int     `json:"comparison_number" binding:"required,min=1,max=8"`
	HypothesisAID     int64   `json:"hypothesis_A_id"`
	HypothesisBID     int64   `json:"hypothesis_B_id"`
	ExpertID          *string `json:"expert_id,omitempty"`
	NoveltyScore      int     `json:"novelty_score" binding:"required,min=1,max=5"`
	SoundnessScore    int     `json:"soundness_score" binding:"required,min=1,max=5"`
	FeasibilityScore  int     `json:"feasibility_score" binding:"required,min=1,max=5"`
	SignificanceScore int     `json:"significance_score" binding:"required,min=1,max=5"`
	OverallScore      int     `json:"overall_score" binding:"required,min=1,max=5"`
}

// CommentRequest is the body of a comment submission
type CommentRequest struct {
	Comment string  `json:"comment" binding:"required"`
	Email   *string `json:"email,omitempty" binding:"omitempty,email"`
}

// ComparedHypothesis is one side of a comparison, ready for rendering. ID is
// the raw hypothesis id, which ratings store; PoolEntryID changes whenever
// the pool is rebuilt.
type ComparedHypothesis struct {
	ID                 int64    `json:"id"`
	PoolEntryID        int64    `json:"pool_entry_id"`
	Rank               int      `json:"rank"`
	Content            Content  `json:"content"`
	ModelSource        string   `json:"model_source"`
	Strategy           string   `json:"strategy"`
	NoveltyScore       *float64 `json:"novelty_score"`
	SignificanceScore  *float64 `json:"significance_score"`
	SoundnessScore     *float64 `json:"soundness_score"`
	FeasibilityScore   *float64 `json:"feasibility_score"`
	OverallWinnerScore *float64 `json:"overall_winner_score"`
}

// ComparisonPair is the two hypotheses shown side by side
type ComparisonPair struct {
	Topic    string             `json:"topic"`
	Language Language           `json:"language"`
	A        ComparedHypothesis `json:"hypothesis_A"`
	B        ComparedHypothesis `json:"hypothesis_B"`
}

// TopicSummary is a topic that has a comparison pool
type TopicSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PoolSize    int    `json:"pool_size"`
}
