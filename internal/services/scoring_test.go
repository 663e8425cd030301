package services_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/projectsentinel/apiserver/internal/services"
	"github.com/projectsentinel/apiserver/types"
)

func suggestion(v float64) *types.AdvisoryOpinion {
	return &types.AdvisoryOpinion{SuggestedImpactScore: &v}
}

func TestScore(t *testing.T) {
	rules := types.DefaultDetectionRules()

	tests := []struct {
		name    string
		input   types.SubmissionInput
		opinion *types.AdvisoryOpinion
		want    int
	}{
		{
			name:  "base only",
			input: types.SubmissionInput{Description: strings.Repeat("d", 120)},
			want:  50,
		},
		{
			name:  "solution and detailed description",
			input: types.SubmissionInput{Description: strings.Repeat("d", 250), Solution: strings.Repeat("s", 60)},
			want:  120,
		},
		{
			name:  "solution below minimum length",
			input: types.SubmissionInput{Description: strings.Repeat("d", 250), Solution: strings.Repeat("s", 49)},
			want:  70,
		},
		{
			name:    "advisory replaces heuristic",
			input:   types.SubmissionInput{Description: strings.Repeat("d", 250), Solution: strings.Repeat("s", 60)},
			opinion: suggestion(35),
			want:    35,
		},
		{
			name:    "advisory capped",
			input:   types.SubmissionInput{Description: strings.Repeat("d", 120)},
			opinion: suggestion(500),
			want:    200,
		},
		{
			name:    "advisory never negative",
			input:   types.SubmissionInput{Description: strings.Repeat("d", 120)},
			opinion: suggestion(-10),
			want:    0,
		},
		{
			name:    "advisory zero is a suggestion",
			input:   types.SubmissionInput{Description: strings.Repeat("d", 250)},
			opinion: suggestion(0),
			want:    0,
		},
		{
			name:    "advisory without suggestion falls back",
			input:   types.SubmissionInput{Description: strings.Repeat("d", 250)},
			opinion: &types.AdvisoryOpinion{QualityScore: 9},
			want:    70,
		},
		{
			name:    "advisory rounded",
			input:   types.SubmissionInput{Description: strings.Repeat("d", 120)},
			opinion: suggestion(64.6),
			want:    65,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, services.Score(tt.input, rules, tt.opinion))
		})
	}
}
