package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

var ratingCSVHeader = []string{
	"rating_id", "session_id", "expert_id", "topic_name", "comparison_number",
	"hypothesis_A_id", "hypothesis_A_title", "hypothesis_B_id", "hypothesis_B_title",
	"novelty_score", "soundness_score", "feasibility_score", "significance_score",
	"overall_score", "created_at",
}

// ExportRatingsCSV writes every rating of topic (all topics when empty) as
// CSV with a header row
func (s *RatingService) ExportRatingsCSV(ctx context.Context, w io.Writer, topic string) error {
	ratings, err := s.ratings.ListRatings(ctx, topic)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(ratingCSVHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, r := range ratings {
		expert := ""
		if r.ExpertID != nil {
			expert = *r.ExpertID
		}
		record := []string{
			strconv.FormatInt(r.ID, 10),
			r.SessionID,
			expert,
			r.TopicName,
			strconv.Itoa(r.ComparisonNumber),
			strconv.FormatInt(r.HypothesisAID, 10),
			r.TitleA,
			strconv.FormatInt(r.HypothesisBID, 10),
			r.TitleB,
			strconv.Itoa(r.NoveltyScore),
			strconv.Itoa(r.SoundnessScore),
			strconv.Itoa(r.FeasibilityScore),
			strconv.Itoa(r.SignificanceScore),
			strconv.Itoa(r.OverallScore),
			r.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv record: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
