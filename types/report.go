package types

import "time"

// GamingReport summarises gaming risk across all users.
type GamingReport struct {
	GeneratedAt      time.Time        `json:"generated_at"`
	TotalUsers       int              `json:"total_users"`
	TotalSubmissions int              `json:"total_submissions"`
	FlaggedUsers     []FlaggedUser    `json:"flagged_users"`
	Statistics       ReportStatistics `json:"statistics"`

	// ReportKey and LeaderboardKey are the object storage keys of the
	// exported artifacts, empty when storage is not configured.
	ReportKey      string `json:"report_key,omitempty"`
	LeaderboardKey string `json:"leaderboard_key,omitempty"`
}

// FlaggedUser is a user carrying at least one risk factor.
type FlaggedUser struct {
	UserID               int      `json:"user_id"`
	Name                 string   `json:"name"`
	SubmissionCount      int      `json:"submission_count"`
	SolutionRatio        float64  `json:"solution_ratio"`
	AvgDescriptionLength float64  `json:"avg_description_length"`
	RiskFactors          []string `json:"risk_factors"`
	RiskLevel            Severity `json:"risk_level"`
}

// ReportStatistics holds aggregate figures of a gaming report.
type ReportStatistics struct {
	AvgSubmissionsPerUser    float64 `json:"avg_submissions_per_user"`
	MedianSubmissionsPerUser float64 `json:"median_submissions_per_user"`
	UsersWithWarnings        int     `json:"users_with_warnings"`
	BlockedSubmissions       int     `json:"blocked_submissions"`
	UnacknowledgedAlerts     int     `json:"unacknowledged_alerts"`
}

// Statistics is the admin dashboard summary.
type Statistics struct {
	TotalUsers         int `json:"total_users"`
	TotalSubmissions   int `json:"total_submissions"`
	PendingSubmissions int `json:"pending_submissions"`
}
