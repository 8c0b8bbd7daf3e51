package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Language selects which content column of a pool entry is served
type Language string

const (
	English Language = "english"
	Chinese Language = "chinese"
)

// ParseLanguage maps a query value to a Language, defaulting to English
func ParseLanguage(s string) Language {
	if Language(strings.ToLower(strings.TrimSpace(s))) == Chinese {
		return Chinese
	}
	return English
}

// Content is the structured payload of a hypothesis
type Content struct {
	Title                    string `json:"title"`
	ProblemStatement         string `json:"Problem_Statement"`
	Motivation               string `json:"Motivation"`
	ProposedMethod           string `json:"Proposed_Method"`
	StepByStepExperimentPlan string `json:"Step_by_Step_Experiment_Plan"`
	TestCaseExamples         string `json:"Test_Case_Examples"`
	FallbackPlan             string `json:"Fallback_Plan"`
}

// IsEmpty reports whether no field carries text
func (c Content) IsEmpty() bool {
	return c == Content{}
}

// ParseContent decodes a stored payload. Empty input yields an empty Content
// and no error.
func ParseContent(raw string) (Content, error) {
	var c Content
	if strings.TrimSpace(raw) == "" {
		return c, nil
	}
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Content{}, err
	}
	return c, nil
}

// Hypothesis is a row of the raw hypothesis table. It is populated by an
// external ingestion process and never written here.
type Hypothesis struct {
	ID                 int64    `json:"id" db:"id"`
	ModelSource        string   `json:"model_source" db:"model_source"`
	Topic              int      `json:"topic" db:"topic"`
	SubTopic           int      `json:"sub_topic" db:"sub_topic"`
	Strategy           string   `json:"strategy" db:"strategy"`
	HypothesisID       *int64   `json:"hypothesis_id,omitempty" db:"hypothesis_id"`
	RawContent         string   `json:"-" db:"hypothesis_content"`
	FeedbackResults    *string  `json:"feedback_results,omitempty" db:"feedback_results"`
	NoveltyScore       *float64 `json:"novelty_score" db:"novelty_score"`
	SignificanceScore  *float64 `json:"significance_score" db:"significance_score"`
	SoundnessScore     *float64 `json:"soundness_score" db:"soundness_score"`
	FeasibilityScore   *float64 `json:"feasibility_score" db:"feasibility_score"`
	OverallWinnerScore *float64 `json:"overall_winner_score" db:"overall_winner_score"`
}

// PoolEntry is one frozen hypothesis of a topic's comparison pool
type PoolEntry struct {
	ID                   int64     `json:"id" db:"id"`
	TopicName            string    `json:"topic_name" db:"topic_name"`
	Rank                 int       `json:"rank" db:"hypothesis_rank"`
	OriginalHypothesisID int64     `json:"original_hypothesis_id" db:"original_hypothesis_id"`
	ModelSource          string    `json:"model_source" db:"model_source"`
	Topic                int       `json:"topic" db:"topic"`
	SubTopic             int       `json:"sub_topic" db:"sub_topic"`
	Strategy             string    `json:"strategy" db:"strategy"`
	HypothesisID         *int64    `json:"hypothesis_id,omitempty" db:"hypothesis_id"`
	ContentEN            string    `json:"-" db:"hypothesis_content_en"`
	ContentZH            *string   `json:"-" db:"hypothesis_content_zh"`
	FeedbackResults      *string   `json:"-" db:"feedback_results"`
	NoveltyScore         *float64  `json:"novelty_score" db:"novelty_score"`
	SignificanceScore    *float64  `json:"significance_score" db:"significance_score"`
	SoundnessScore       *float64  `json:"soundness_score" db:"soundness_score"`
	FeasibilityScore     *float64  `json:"feasibility_score" db:"feasibility_score"`
	OverallWinnerScore   *float64  `json:"overall_winner_score" db:"overall_winner_score"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
}

// RawContent returns the stored payload for the given language. An unset
// translation is returned as "".
func (e *PoolEntry) RawContent(lang Language) string {
	if lang == Chinese {
		if e.ContentZH == nil {
			return ""
		}
		return *e.ContentZH
	}
	return e.ContentEN
}

// TopicKey builds the pool key for a numeric topic, e.g. 3 -> "topic3"
func TopicKey(topic int) string {
	return "topic" + strconv.Itoa(topic)
}
