package translate

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"hypothesis-rating/internal/models"
)

// ErrUnparseable is returned when a provider answer holds no usable content
var ErrUnparseable = errors.New("no translated content in response")

var (
	jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

	fieldPatterns = map[string]*regexp.Regexp{}
)

func init() {
	for _, key := range []string{
		"title", "Problem_Statement", "Motivation", "Proposed_Method",
		"Step_by_Step_Experiment_Plan", "Test_Case_Examples", "Fallback_Plan",
	} {
		fieldPatterns[key] = regexp.MustCompile(`"` + key + `":\s*"([^"]*)"`)
	}
}

// ParseTranslation extracts translated content from a raw provider answer.
// Markdown fences and surrounding prose are ignored. When the JSON object
// does not decode, each field is recovered separately.
func ParseTranslation(text string) (models.Content, error) {
	clean := strings.TrimSpace(text)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")

	match := jsonObject.FindString(clean)
	if match == "" {
		return models.Content{}, ErrUnparseable
	}
	match = stripControl(match)

	var content models.Content
	err := json.Unmarshal([]byte(match), &content)
	if err == nil {
		if content.IsEmpty() {
			return models.Content{}, ErrUnparseable
		}
		return content, nil
	}

	if recovered := recoverFields(match); !recovered.IsEmpty() {
		return recovered, nil
	}
	return models.Content{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
}

// stripControl drops control characters other than tab, newline and
// carriage return
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)
}

func recoverFields(s string) models.Content {
	field := func(key string) string {
		if m := fieldPatterns[key].FindStringSubmatch(s); m != nil {
			return m[1]
		}
		return ""
	}
	return models.Content{
		Title:                    field("title"),
		ProblemStatement:         field("Problem_Statement"),
		Motivation:               field("Motivation"),
		ProposedMethod:           field("Proposed_Method"),
		StepByStepExperimentPlan: field("Step_by_Step_Experiment_Plan"),
		TestCaseExamples:         field("Test_Case_Examples"),
		FallbackPlan:             field("Fallback_Plan"),
	}
}
