package translate

import (
	"testing"

	"hypothesis-rating/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTranslation(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantTitle string
		wantErr   bool
	}{
		{
			name:      "plain object",
			input:     `{"title":"标题","Motivation":"动机"}`,
			wantTitle: "标题",
		},
		{
			name:      "markdown fence",
			input:     "```json\n{\"title\": \"标题\"}\n```",
			wantTitle: "标题",
		},
		{
			name:      "prose around object",
			input:     "Here is the translation:\n{\"title\": \"标题\"}\nHope this helps.",
			wantTitle: "标题",
		},
		{
			name:      "control characters stripped",
			input:     "{\"title\": \"标\x01题\"}",
			wantTitle: "标题",
		},
		{
			name:      "field recovery after broken json",
			input:     `{"title": "标题", "Motivation": "动机", "Proposed_Method": "方法",}`,
			wantTitle: "标题",
		},
		{
			name:    "no object",
			input:   "I cannot translate this.",
			wantErr: true,
		},
		{
			name:    "empty object",
			input:   "{}",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTranslation(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnparseable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTitle, got.Title)
		})
	}
}

func TestParseTranslation_RecoversEveryField(t *testing.T) {
	// a literal newline inside a string breaks json decoding
	input := "{\"title\": \"标题\", \"Problem_Statement\": \"问题\", \"Motivation\": \"第一行\n第二行\", \"Fallback_Plan\": \"备用\"}"

	got, err := ParseTranslation(input)
	require.NoError(t, err)
	assert.Equal(t, models.Content{
		Title:            "标题",
		ProblemStatement: "问题",
		Motivation:       "第一行\n第二行",
		FallbackPlan:     "备用",
	}, got)
}

func TestBuildPrompt_IncludesEveryField(t *testing.T) {
	prompt := BuildPrompt(models.Content{
		Title:                    "T",
		ProblemStatement:         "PS",
		Motivation:               "MO",
		ProposedMethod:           "PM",
		StepByStepExperimentPlan: "SP",
		TestCaseExamples:         "TC",
		FallbackPlan:             "FP",
	})

	for _, want := range []string{
		"title: T", "Problem_Statement: PS", "Motivation: MO", "Proposed_Method: PM",
		"Step_by_Step_Experiment_Plan: SP", "Test_Case_Examples: TC", "Fallback_Plan: FP",
	} {
		assert.Contains(t, prompt, want)
	}
}
