package types

import "time"

// GamingAlert is an append-only audit record raised when admission blocks
// or warns about a submission. Acknowledging an alert never deletes it.
type GamingAlert struct {
	// ID is the unique identifier of the alert.
	ID int `json:"id" db:"id"`

	// UserID identifies the submitter the alert concerns.
	UserID int `json:"user_id" db:"user_id"`

	// Type is SUBMISSION_BLOCKED or SUBMISSION_WARNING.
	Type AlertType `json:"type" db:"type"`

	// Payload holds the findings and the submission that triggered them.
	Payload AlertPayload `json:"payload" db:"payload"`

	// Acknowledged reports whether an administrator has seen the alert.
	Acknowledged bool `json:"acknowledged" db:"acknowledged"`

	// AcknowledgedAt is when the alert was acknowledged.
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty" db:"acknowledged_at"`

	// CreatedAt is when the alert was raised.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// AlertPayload is the body of a gaming alert.
type AlertPayload struct {
	// SubmissionID references the admitted submission for warnings.
	// It is zero for blocked submissions, which are never persisted.
	SubmissionID int `json:"submission_id,omitempty"`

	// Submission is a copy of the fields the user submitted.
	Submission SubmissionInput `json:"submission"`

	// Issues are the blocking findings.
	Issues []Issue `json:"issues,omitempty"`

	// Warnings are the non-blocking findings.
	Warnings []Issue `json:"warnings,omitempty"`

	// Advisory is the advisory opinion at the time of the alert.
	Advisory *AdvisoryOpinion `json:"advisory,omitempty"`
}

// AlertType classifies a gaming alert.
type AlertType string

// Alert types.
const (
	AlertSubmissionBlocked AlertType = "SUBMISSION_BLOCKED"
	AlertSubmissionWarning AlertType = "SUBMISSION_WARNING"
)

// AlertFilter narrows alert listings. A nil Acknowledged matches both states.
type AlertFilter struct {
	UserID       int
	Acknowledged *bool
}
