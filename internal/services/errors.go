package services

import "errors"

var (
	// ErrInvalidSubmission reports missing or malformed submission fields.
	ErrInvalidSubmission = errors.New("invalid submission")

	// ErrInvalidReview reports a review decision with bad points or status.
	ErrInvalidReview = errors.New("invalid review")

	// ErrInvalidTransition reports a status change the review lifecycle forbids.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidRules reports detection rules outside their domain.
	ErrInvalidRules = errors.New("invalid detection rules")

	// ErrConflict reports a uniqueness violation such as a taken username.
	ErrConflict = errors.New("conflict")
)
