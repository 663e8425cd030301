package types

import "time"

// LeaderboardEntry is a user's aggregate standing.
type LeaderboardEntry struct {
	// UserID identifies the user the entry belongs to.
	UserID int `json:"user_id" db:"user_id"`

	// DisplayName is the user's display name.
	DisplayName string `json:"display_name" db:"display_name"`

	// Region is the user's office region.
	Region string `json:"region" db:"region"`

	// IsSentinel marks members of the reviewer programme.
	IsSentinel bool `json:"is_sentinel" db:"is_sentinel"`

	// TotalPoints is the sum of points credited by reviews.
	TotalPoints int `json:"total_points" db:"total_points"`

	// SubmissionsCount is the number of reviewed submissions.
	SubmissionsCount int `json:"submissions_count" db:"submissions_count"`

	// VerifiedCount is the number of submissions approved.
	VerifiedCount int `json:"verified_count" db:"verified_count"`

	// ImplementedCount is the number of submissions implemented.
	ImplementedCount int `json:"implemented_count" db:"implemented_count"`

	// LastPointsAt is when TotalPoints last increased. Among equal totals
	// the user who reached the total first ranks higher.
	LastPointsAt *time.Time `json:"last_points_at,omitempty" db:"last_points_at"`

	// Rank is the 1-based position. It is derived on read and never stored.
	Rank int `json:"rank" db:"-"`
}
