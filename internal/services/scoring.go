package services

import (
	"math"

	"github.com/projectsentinel/apiserver/internal/detection"
	"github.com/projectsentinel/apiserver/types"
)

const (
	baseScore             = 50
	solutionBonus         = 50
	detailedBonus         = 20
	detailedDescription   = 200
	heuristicScoreCeiling = 150
	advisoryScoreCeiling  = 200
)

// Score computes the points a submission is worth at admission. A numeric
// advisory suggestion replaces the heuristic sum entirely.
func Score(submission types.SubmissionInput, rules types.DetectionRules, opinion *types.AdvisoryOpinion) int {
	if opinion != nil && opinion.SuggestedImpactScore != nil {
		suggested := math.Round(*opinion.SuggestedImpactScore)
		return int(math.Max(0, math.Min(advisoryScoreCeiling, suggested)))
	}

	score := baseScore
	if detection.HasSolution(submission.Solution, rules.MinSolutionLength) {
		score += solutionBonus
	}
	if detection.TextLength(submission.Description) >= detailedDescription {
		score += detailedBonus
	}
	return min(score, heuristicScoreCeiling)
}
