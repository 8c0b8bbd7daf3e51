package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hypothesis-rating/internal/metrics"
	"hypothesis-rating/internal/models"
	"hypothesis-rating/internal/pool"
	"hypothesis-rating/internal/repository"
	"hypothesis-rating/internal/session"

	"go.uber.org/zap"
)

var (
	// ErrNoActiveSession is returned when a submission arrives without a
	// started session
	ErrNoActiveSession = errors.New("no active session")
	// ErrMissingHypotheses is returned when a rating names no pair and none
	// was shown for its comparison
	ErrMissingHypotheses = errors.New("hypothesis ids missing and no pair shown for this comparison")
	ErrInvalidRating     = errors.New("invalid rating")
	ErrEmptyComment      = errors.New("comment is empty")
)

// RatingStore persists ratings and comments
type RatingStore interface {
	SaveRating(ctx context.Context, rating *models.Rating) error
	ListRatings(ctx context.Context, topicName string) ([]models.RatingWithTitles, error)
	SaveComment(ctx context.Context, comment *models.Comment) error
	ListComments(ctx context.Context) ([]models.Comment, error)
}

// TopicLister lists topics that have a pool
type TopicLister interface {
	Topics(ctx context.Context) ([]repository.TopicCount, error)
}

// ComparisonView is what an expert sees on the rating page
type ComparisonView struct {
	SessionID   string                 `json:"-"`
	Issued      bool                   `json:"-"`
	Topic       string                 `json:"topic"`
	Description string                 `json:"description"`
	Comparison  int                    `json:"comparison_number"`
	Total       int                    `json:"total_comparisons"`
	Status      session.Status         `json:"status"`
	Pair        *models.ComparisonPair `json:"pair,omitempty"`
}

// RatingService ties pair selection, session progress and persistence
// together
type RatingService struct {
	selector *pool.Selector
	tracker  *session.Tracker
	ratings  RatingStore
	pools    TopicLister
	topics   map[string]string
	logger   *zap.Logger
	now      func() time.Time
}

// NewRatingService creates a new rating service
func NewRatingService(
	selector *pool.Selector,
	tracker *session.Tracker,
	ratings RatingStore,
	pools TopicLister,
	topics map[string]string,
	logger *zap.Logger,
) *RatingService {
	return &RatingService{
		selector: selector,
		tracker:  tracker,
		ratings:  ratings,
		pools:    pools,
		topics:   topics,
		logger:   logger,
		now:      time.Now,
	}
}

// CurrentComparison starts or resumes the session for topic and returns the
// comparison the expert is on. The pair shown for a comparison is remembered,
// so reloading the page shows the same two hypotheses until a rating is
// submitted.
func (s *RatingService) CurrentComparison(ctx context.Context, sessionID, topic string, lang models.Language) (*ComparisonView, error) {
	if err := s.selector.Ready(ctx, topic); err != nil {
		return nil, err
	}

	state, issued, err := s.tracker.Begin(ctx, sessionID, topic)
	if err != nil {
		return nil, err
	}
	if issued {
		metrics.RecordSessionEvent(topic, "started")
	}

	view := &ComparisonView{
		SessionID:   state.ID,
		Issued:      issued,
		Topic:       topic,
		Description: s.topics[topic],
		Comparison:  state.Index(),
		Total:       session.TotalComparisons,
		Status:      state.Status(),
	}
	if state.Complete {
		return view, nil
	}

	n := state.Index()
	if ref, ok := state.Pair(n); ok {
		pair, err := s.selector.PairByIDs(ctx, topic, lang, ref.A, ref.B)
		if err == nil {
			view.Pair = pair
			return view, nil
		}
		if !errors.Is(err, pool.ErrPoolNotFound) {
			return nil, err
		}
		// pool was rebuilt since the pair was drawn
		s.logger.Info("Remembered pair no longer in pool, drawing again",
			zap.String("session_id", state.ID),
			zap.String("topic", topic),
			zap.Int("comparison", n))
	}

	pair, err := s.selector.SelectPair(ctx, topic, lang)
	if err != nil {
		return nil, err
	}
	if err := s.tracker.RememberPair(ctx, state.ID, n, session.PairRef{A: pair.A.ID, B: pair.B.ID}); err != nil {
		return nil, err
	}

	view.Pair = pair
	return view, nil
}

// SubmitRating stores a rating for the session's topic and advances the
// session. Identical resubmissions are stored again. Explicit hypothesis ids
// must name two distinct members of the topic's pool.
func (s *RatingService) SubmitRating(ctx context.Context, sessionID string, req *models.RatingRequest) (*models.Rating, *session.State, error) {
	if err := validateRating(req); err != nil {
		return nil, nil, err
	}

	state, err := s.active(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	aID, bID := req.HypothesisAID, req.HypothesisBID
	if aID == 0 || bID == 0 {
		ref, ok := state.Pair(req.ComparisonNumber)
		if !ok {
			return nil, nil, ErrMissingHypotheses
		}
		aID, bID = ref.A, ref.B
	} else if err := s.checkPair(ctx, state.Topic, aID, bID); err != nil {
		return nil, nil, err
	}

	rating := &models.Rating{
		SessionID:         state.ID,
		ExpertID:          req.ExpertID,
		TopicName:         state.Topic,
		ComparisonNumber:  req.ComparisonNumber,
		HypothesisAID:     aID,
		HypothesisBID:     bID,
		NoveltyScore:      req.NoveltyScore,
		SoundnessScore:    req.SoundnessScore,
		FeasibilityScore:  req.FeasibilityScore,
		SignificanceScore: req.SignificanceScore,
		OverallScore:      req.OverallScore,
		CreatedAt:         s.now().UTC(),
	}
	if err := s.ratings.SaveRating(ctx, rating); err != nil {
		return nil, nil, err
	}
	metrics.RecordRating(state.Topic)

	wasComplete := state.Complete
	state, err = s.tracker.Advance(ctx, state.ID, req.ComparisonNumber)
	if err != nil {
		return nil, nil, err
	}
	if state.Complete && !wasComplete {
		metrics.RecordSessionEvent(state.Topic, "completed")
		s.logger.Info("Session complete",
			zap.String("session_id", state.ID),
			zap.String("topic", state.Topic))
	}

	s.logger.Info("Rating saved",
		zap.Int64("id", rating.ID),
		zap.String("session_id", state.ID),
		zap.String("topic", state.Topic),
		zap.Int("comparison", rating.ComparisonNumber))

	return rating, state, nil
}

// SubmitComment stores free-text feedback for the session's topic
func (s *RatingService) SubmitComment(ctx context.Context, sessionID string, req *models.CommentRequest) (*models.Comment, error) {
	text := strings.TrimSpace(req.Comment)
	if text == "" {
		return nil, ErrEmptyComment
	}

	state, err := s.active(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var email *string
	if req.Email != nil && strings.TrimSpace(*req.Email) != "" {
		e := strings.TrimSpace(*req.Email)
		email = &e
	}

	comment := &models.Comment{
		SessionID:   state.ID,
		TopicName:   state.Topic,
		CommentText: text,
		Email:       email,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.ratings.SaveComment(ctx, comment); err != nil {
		return nil, err
	}
	metrics.RecordComment(state.Topic)

	s.logger.Info("Comment saved",
		zap.Int64("id", comment.ID),
		zap.String("session_id", state.ID),
		zap.String("topic", state.Topic))

	return comment, nil
}

// Session returns the live state for sessionID, or nil if there is none
func (s *RatingService) Session(ctx context.Context, sessionID string) (*session.State, error) {
	state, err := s.tracker.Current(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return nil, nil
	}
	return state, err
}

// ResetSession discards the session's progress
func (s *RatingService) ResetSession(ctx context.Context, sessionID string) error {
	state, err := s.Session(ctx, sessionID)
	if err != nil {
		return err
	}
	if state == nil {
		return nil
	}
	if err := s.tracker.Reset(ctx, sessionID); err != nil {
		return err
	}
	metrics.RecordSessionEvent(state.Topic, "reset")
	return nil
}

// Topics lists every topic that has a pool, with its description
func (s *RatingService) Topics(ctx context.Context) ([]models.TopicSummary, error) {
	counts, err := s.pools.Topics(ctx)
	if err != nil {
		return nil, err
	}

	topics := make([]models.TopicSummary, 0, len(counts))
	for _, c := range counts {
		topics = append(topics, models.TopicSummary{
			Name:        c.TopicName,
			Description: s.topics[c.TopicName],
			PoolSize:    c.Count,
		})
	}
	return topics, nil
}

// ListRatings returns stored ratings with hypothesis titles
func (s *RatingService) ListRatings(ctx context.Context, topic string) ([]models.RatingWithTitles, error) {
	return s.ratings.ListRatings(ctx, topic)
}

// ListComments returns stored comments
func (s *RatingService) ListComments(ctx context.Context) ([]models.Comment, error) {
	return s.ratings.ListComments(ctx)
}

func (s *RatingService) active(ctx context.Context, sessionID string) (*session.State, error) {
	state, err := s.tracker.Current(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return nil, ErrNoActiveSession
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (s *RatingService) checkPair(ctx context.Context, topic string, aID, bID int64) error {
	if aID == bID {
		return fmt.Errorf("%w: hypothesis_a_id and hypothesis_b_id must differ", ErrInvalidRating)
	}
	_, err := s.selector.PairByIDs(ctx, topic, models.English, aID, bID)
	if errors.Is(err, pool.ErrPoolNotFound) {
		return fmt.Errorf("%w: hypotheses %d and %d are not in the %s pool", ErrInvalidRating, aID, bID, topic)
	}
	return err
}

func validateRating(req *models.RatingRequest) error {
	if req.ComparisonNumber < 1 || req.ComparisonNumber > session.TotalComparisons {
		return fmt.Errorf("%w: comparison_number must be between 1 and %d", ErrInvalidRating, session.TotalComparisons)
	}
	scores := map[string]int{
		"novelty_score":      req.NoveltyScore,
		"soundness_score":    req.SoundnessScore,
		"feasibility_score":  req.FeasibilityScore,
		"significance_score": req.SignificanceScore,
		"overall_score":      req.OverallScore,
	}
	for name, v := range scores {
		if v < 1 || v > 5 {
			return fmt.Errorf("%w: %s must be between 1 and 5", ErrInvalidRating, name)
		}
	}
	return nil
}
