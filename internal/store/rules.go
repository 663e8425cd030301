package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/projectsentinel/apiserver/types"
)

// The rules table holds a single row seeded by the initial migration.
const rulesRowID = 1

// RulesRepository handles persistence for the detection rules.
type RulesRepository struct {
	db DBTX
}

func NewRulesRepository(db DBTX) *RulesRepository {
	return &RulesRepository{db: db}
}

func (r *RulesRepository) Get(ctx context.Context) (types.DetectionRules, error) {
	const query = `
		SELECT max_submissions_per_day, max_submissions_per_week, min_solution_ratio,
		       min_description_length, min_solution_length, duplicate_similarity_threshold,
		       rapid_submission_window_minutes, min_impact_score, updated_at
		FROM detection_rules
		WHERE id = $1`
	var rules types.DetectionRules
	err := r.db.QueryRowContext(ctx, query, rulesRowID).Scan(
		&rules.MaxSubmissionsPerDay,
		&rules.MaxSubmissionsPerWeek,
		&rules.MinSolutionRatio,
		&rules.MinDescriptionLength,
		&rules.MinSolutionLength,
		&rules.DuplicateSimilarityThreshold,
		&rules.RapidSubmissionWindowMinutes,
		&rules.MinImpactScore,
		&rules.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.DetectionRules{}, ErrNotFound
		}
		return types.DetectionRules{}, err
	}
	return rules, nil
}

// Save replaces the stored rules.
func (r *RulesRepository) Save(ctx context.Context, rules types.DetectionRules) (types.DetectionRules, error) {
	const query = `
		INSERT INTO detection_rules (
			id, max_submissions_per_day, max_submissions_per_week, min_solution_ratio,
			min_description_length, min_solution_length, duplicate_similarity_threshold,
			rapid_submission_window_minutes, min_impact_score, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE
		SET max_submissions_per_day = EXCLUDED.max_submissions_per_day,
			max_submissions_per_week = EXCLUDED.max_submissions_per_week,
			min_solution_ratio = EXCLUDED.min_solution_ratio,
			min_description_length = EXCLUDED.min_description_length,
			min_solution_length = EXCLUDED.min_solution_length,
			duplicate_similarity_threshold = EXCLUDED.duplicate_similarity_threshold,
			rapid_submission_window_minutes = EXCLUDED.rapid_submission_window_minutes,
			min_impact_score = EXCLUDED.min_impact_score,
			updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		rulesRowID,
		rules.MaxSubmissionsPerDay,
		rules.MaxSubmissionsPerWeek,
		rules.MinSolutionRatio,
		rules.MinDescriptionLength,
		rules.MinSolutionLength,
		rules.DuplicateSimilarityThreshold,
		rules.RapidSubmissionWindowMinutes,
		rules.MinImpactScore,
		rules.UpdatedAt,
	); err != nil {
		return types.DetectionRules{}, err
	}
	return rules, nil
}
