package types

import (
	"errors"
	"fmt"
	"time"
)

// DetectionRules holds the thresholds used by every admission decision.
// A single process-wide record exists; administrators may replace it and
// the new values apply to subsequent evaluations only.
type DetectionRules struct {
	// MaxSubmissionsPerDay blocks a submission once the user already has
	// this many submissions on the current calendar day.
	MaxSubmissionsPerDay int `json:"max_submissions_per_day" db:"max_submissions_per_day"`

	// MaxSubmissionsPerWeek warns once the user already has this many
	// submissions in the trailing seven days.
	MaxSubmissionsPerWeek int `json:"max_submissions_per_week" db:"max_submissions_per_week"`

	// MinSolutionRatio is the fraction (0-1) of prior submissions that
	// should include a solution.
	MinSolutionRatio float64 `json:"min_solution_ratio" db:"min_solution_ratio"`

	// MinDescriptionLength is the shortest accepted description, in characters.
	MinDescriptionLength int `json:"min_description_length" db:"min_description_length"`

	// MinSolutionLength is the shortest solution that counts as provided.
	MinSolutionLength int `json:"min_solution_length" db:"min_solution_length"`

	// DuplicateSimilarityThreshold is the similarity (0-1) at which a
	// submission is treated as a duplicate of an earlier one.
	DuplicateSimilarityThreshold float64 `json:"duplicate_similarity_threshold" db:"duplicate_similarity_threshold"`

	// RapidSubmissionWindowMinutes warns when a submission follows the
	// previous one within this many minutes.
	RapidSubmissionWindowMinutes int `json:"rapid_submission_window_minutes" db:"rapid_submission_window_minutes"`

	// MinImpactScore warns when the advisory suggested impact is lower.
	MinImpactScore int `json:"min_impact_score" db:"min_impact_score"`

	// UpdatedAt is when the rules were last replaced.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultDetectionRules returns the rules seeded on a fresh installation.
func DefaultDetectionRules() DetectionRules {
	return DetectionRules{
		MaxSubmissionsPerDay:         3,
		MaxSubmissionsPerWeek:        10,
		MinSolutionRatio:             0.4,
		MinDescriptionLength:         100,
		MinSolutionLength:            50,
		DuplicateSimilarityThreshold: 0.85,
		RapidSubmissionWindowMinutes: 5,
		MinImpactScore:               20,
	}
}

// Validate checks that every threshold is within its domain.
func (r DetectionRules) Validate() error {
	var errs []error
	if r.MaxSubmissionsPerDay < 1 {
		errs = append(errs, errors.New("max_submissions_per_day must be at least 1"))
	}
	if r.MaxSubmissionsPerWeek < 1 {
		errs = append(errs, errors.New("max_submissions_per_week must be at least 1"))
	}
	if r.MinSolutionRatio < 0 || r.MinSolutionRatio > 1 {
		errs = append(errs, fmt.Errorf("min_solution_ratio must be between 0 and 1, got %v", r.MinSolutionRatio))
	}
	if r.MinDescriptionLength < 0 {
		errs = append(errs, errors.New("min_description_length must not be negative"))
	}
	if r.MinSolutionLength < 0 {
		errs = append(errs, errors.New("min_solution_length must not be negative"))
	}
	if r.DuplicateSimilarityThreshold < 0 || r.DuplicateSimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("duplicate_similarity_threshold must be between 0 and 1, got %v", r.DuplicateSimilarityThreshold))
	}
	if r.RapidSubmissionWindowMinutes < 0 {
		errs = append(errs, errors.New("rapid_submission_window_minutes must not be negative"))
	}
	if r.MinImpactScore < 0 {
		errs = append(errs, errors.New("min_impact_score must not be negative"))
	}
	return errors.Join(errs...)
}
