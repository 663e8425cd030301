package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Submission represents a process-improvement idea submitted by a user.
// It is created by a successful admission and afterwards only changed by
// review decisions.
type Submission struct {
	// ID is the unique identifier of the submission.
	ID int `json:"id" db:"id"`

	// UserID identifies the user who made the submission.
	UserID int `json:"user_id" db:"user_id"`

	// Title is the short headline of the idea.
	Title string `json:"title" db:"title"`

	// Description explains the current process and its pain points.
	Description string `json:"description" db:"description"`

	// Solution is the optional proposed solution.
	Solution string `json:"solution" db:"solution"`

	// Category is a free-form classification chosen by the submitter.
	Category string `json:"category" db:"category"`

	// Status is the current review state of the submission.
	Status SubmissionStatus `json:"status" db:"status"`

	// Score is the score computed at admission time. It is the default
	// number of points a reviewer awards.
	Score int `json:"score" db:"score"`

	// PointsAwarded is the number of points granted by the latest review.
	// It never decreases once credited.
	PointsAwarded int `json:"points_awarded" db:"points_awarded"`

	// ReviewerNotes holds the notes left by the latest reviewer.
	ReviewerNotes string `json:"reviewer_notes" db:"reviewer_notes"`

	// ReviewedBy identifies the administrator who made the latest review.
	ReviewedBy *int `json:"reviewed_by,omitempty" db:"reviewed_by"`

	// ReviewedAt is the timestamp of the latest review decision.
	ReviewedAt *time.Time `json:"reviewed_at,omitempty" db:"reviewed_at"`

	// Advisory is the advisory opinion captured during admission, if any.
	// It is stored as an audit snapshot and never consulted again.
	Advisory *AdvisoryOpinion `json:"advisory,omitempty" db:"advisory"`

	// Warnings are the non-blocking findings raised during admission.
	Warnings []Issue `json:"warnings,omitempty" db:"warnings"`

	// SubmittedAt is the admission timestamp used by all rate windows.
	SubmittedAt time.Time `json:"submitted_at" db:"submitted_at"`

	// UpdatedAt is the timestamp when the submission was last updated.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SubmissionInput is the caller-supplied part of a submission.
type SubmissionInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Solution    string `json:"solution"`
	Category    string `json:"category"`
}

const (
	maxTitleLength    = 200
	maxCategoryLength = 100
)

// Normalize trims surrounding whitespace from every field.
func (in SubmissionInput) Normalize() SubmissionInput {
	return SubmissionInput{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Solution:    strings.TrimSpace(in.Solution),
		Category:    strings.TrimSpace(in.Category),
	}
}

// Validate reports missing or oversized required fields.
func (in SubmissionInput) Validate() error {
	switch {
	case in.Title == "":
		return fmt.Errorf("title is required")
	case in.Description == "":
		return fmt.Errorf("description is required")
	case in.Category == "":
		return fmt.Errorf("category is required")
	case len([]rune(in.Title)) > maxTitleLength:
		return fmt.Errorf("title must be at most %d characters", maxTitleLength)
	case len([]rune(in.Category)) > maxCategoryLength:
		return fmt.Errorf("category must be at most %d characters", maxCategoryLength)
	}
	return nil
}

// SubmissionFilter narrows submission listings.
type SubmissionFilter struct {
	UserID int
	Status SubmissionStatus
}

// SubmissionStatus represents the review state of a submission.
type SubmissionStatus string

// Supported submission statuses.
const (
	// StatusPending indicates the submission was admitted and awaits review.
	StatusPending SubmissionStatus = "pending"

	// StatusApproved indicates a reviewer verified the idea.
	StatusApproved SubmissionStatus = "approved"

	// StatusRejected indicates a reviewer declined the idea.
	StatusRejected SubmissionStatus = "rejected"

	// StatusImplemented indicates the idea was put into practice.
	// Implemented submissions are immutable.
	StatusImplemented SubmissionStatus = "implemented"
)

// Valid reports whether s is a known status.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusImplemented:
		return true
	default:
		return false
	}
}

// Credited reports whether submissions in this status earn leaderboard points.
func (s SubmissionStatus) Credited() bool {
	return s == StatusApproved || s == StatusImplemented
}

// ParseSubmissionStatus parses a status name case-insensitively.
func ParseSubmissionStatus(raw string) (SubmissionStatus, error) {
	status := SubmissionStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return status, nil
}

func (s *SubmissionStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	status, err := ParseSubmissionStatus(raw)
	if err != nil {
		return err
	}
	*s = status
	return nil
}
