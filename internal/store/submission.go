package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/projectsentinel/apiserver/types"
)

const submissionColumns = `
	id, user_id, title, description, solution, category, status, score,
	points_awarded, reviewer_notes, reviewed_by, reviewed_at, advisory, warnings,
	submitted_at, updated_at`

// SubmissionRepository handles persistence for submissions.
type SubmissionRepository struct {
	db DBTX
}

func NewSubmissionRepository(db DBTX) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (types.Submission, error) {
	var (
		submission   types.Submission
		reviewedBy   sql.NullInt64
		reviewedAt   sql.NullTime
		advisoryJSON []byte
		warningsJSON []byte
	)
	if err := row.Scan(
		&submission.ID,
		&submission.UserID,
		&submission.Title,
		&submission.Description,
		&submission.Solution,
		&submission.Category,
		&submission.Status,
		&submission.Score,
		&submission.PointsAwarded,
		&submission.ReviewerNotes,
		&reviewedBy,
		&reviewedAt,
		&advisoryJSON,
		&warningsJSON,
		&submission.SubmittedAt,
		&submission.UpdatedAt,
	); err != nil {
		return types.Submission{}, err
	}

	if reviewedBy.Valid {
		id := int(reviewedBy.Int64)
		submission.ReviewedBy = &id
	}
	if reviewedAt.Valid {
		at := reviewedAt.Time
		submission.ReviewedAt = &at
	}
	if len(advisoryJSON) > 0 {
		var opinion types.AdvisoryOpinion
		if err := json.Unmarshal(advisoryJSON, &opinion); err == nil {
			submission.Advisory = &opinion
		}
	}
	_ = json.Unmarshal(warningsJSON, &submission.Warnings)
	return submission, nil
}

func (r *SubmissionRepository) querySubmissions(ctx context.Context, query string, args ...any) ([]types.Submission, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	submissions := make([]types.Submission, 0)
	for rows.Next() {
		submission, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		submissions = append(submissions, submission)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *SubmissionRepository) Get(ctx context.Context, id int) (types.Submission, error) {
	query := `SELECT` + submissionColumns + ` FROM submissions WHERE id = $1`
	submission, err := scanSubmission(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Submission{}, ErrNotFound
		}
		return types.Submission{}, err
	}
	return submission, nil
}

func (r *SubmissionRepository) GetForUpdate(ctx context.Context, id int) (types.Submission, error) {
	query := `SELECT` + submissionColumns + ` FROM submissions WHERE id = $1 FOR UPDATE`
	submission, err := scanSubmission(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Submission{}, ErrNotFound
		}
		return types.Submission{}, err
	}
	return submission, nil
}

// History returns the user's submissions, oldest first.
func (r *SubmissionRepository) History(ctx context.Context, userID int) ([]types.Submission, error) {
	query := `SELECT` + submissionColumns + `
		FROM submissions
		WHERE user_id = $1
		ORDER BY submitted_at, id`
	return r.querySubmissions(ctx, query, userID)
}

// List returns one page of submissions matching filter, newest first, and
// the number of matching submissions.
func (r *SubmissionRepository) List(ctx context.Context, filter types.SubmissionFilter, limit, offset int) ([]types.Submission, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	const where = `WHERE ($1 = 0 OR user_id = $1) AND ($2 = '' OR status = $2)`

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM submissions `+where,
		filter.UserID, string(filter.Status)).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT` + submissionColumns + ` FROM submissions ` + where + `
		ORDER BY submitted_at DESC, id DESC
		OFFSET $3 LIMIT $4`
	submissions, err := r.querySubmissions(ctx, query, filter.UserID, string(filter.Status), offset, limit)
	if err != nil {
		return nil, 0, err
	}
	return submissions, total, nil
}

func (r *SubmissionRepository) ListAll(ctx context.Context) ([]types.Submission, error) {
	query := `SELECT` + submissionColumns + ` FROM submissions ORDER BY id`
	return r.querySubmissions(ctx, query)
}

func (r *SubmissionRepository) CountByStatus(ctx context.Context) (map[types.SubmissionStatus]int, error) {
	const query = `SELECT status, COUNT(1) FROM submissions GROUP BY status`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[types.SubmissionStatus]int)
	for rows.Next() {
		var (
			status types.SubmissionStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *SubmissionRepository) Create(ctx context.Context, submission types.Submission) (types.Submission, error) {
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = time.Now()
	}
	submission.UpdatedAt = submission.SubmittedAt

	advisoryJSON, err := marshalNullable(submission.Advisory)
	if err != nil {
		return types.Submission{}, err
	}
	warningsJSON, err := marshalList(submission.Warnings)
	if err != nil {
		return types.Submission{}, err
	}

	const query = `
		INSERT INTO submissions (
			user_id, title, description, solution, category, status, score,
			points_awarded, advisory, warnings, submitted_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		submission.UserID,
		submission.Title,
		submission.Description,
		submission.Solution,
		submission.Category,
		string(submission.Status),
		submission.Score,
		submission.PointsAwarded,
		advisoryJSON,
		warningsJSON,
		submission.SubmittedAt,
		submission.UpdatedAt,
	).Scan(&submission.ID); err != nil {
		return types.Submission{}, err
	}
	return submission, nil
}

// UpdateReview stores the review fields of submission.
func (r *SubmissionRepository) UpdateReview(ctx context.Context, submission types.Submission) (types.Submission, error) {
	submission.UpdatedAt = time.Now()

	const query = `
		UPDATE submissions
		SET status = $1,
			points_awarded = $2,
			reviewer_notes = $3,
			reviewed_by = $4,
			reviewed_at = $5,
			updated_at = $6
		WHERE id = $7`
	result, err := r.db.ExecContext(
		ctx,
		query,
		string(submission.Status),
		submission.PointsAwarded,
		submission.ReviewerNotes,
		submission.ReviewedBy,
		submission.ReviewedAt,
		submission.UpdatedAt,
		submission.ID,
	)
	if err != nil {
		return types.Submission{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Submission{}, err
	}
	if affected == 0 {
		return types.Submission{}, ErrNotFound
	}
	return submission, nil
}

// marshalNullable encodes v for a nullable JSONB column.
func marshalNullable[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json column: %w", err)
	}
	return string(data), nil
}

// marshalList encodes items for a JSONB array column, never as null.
func marshalList[T any](items []T) (string, error) {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode json column: %w", err)
	}
	return string(data), nil
}
