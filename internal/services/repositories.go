package services

import (
	"context"
	"time"

	"github.com/projectsentinel/apiserver/types"
)

// SubmissionRepository defines persistence operations for submissions.
type SubmissionRepository interface {
	Get(ctx context.Context, id int) (types.Submission, error)
	// GetForUpdate loads a submission and locks it until the transaction ends.
	GetForUpdate(ctx context.Context, id int) (types.Submission, error)
	// History returns every submission of the user ordered by submission
	// time, oldest first.
	History(ctx context.Context, userID int) ([]types.Submission, error)
	List(ctx context.Context, filter types.SubmissionFilter, limit, offset int) ([]types.Submission, int, error)
	ListAll(ctx context.Context) ([]types.Submission, error)
	CountByStatus(ctx context.Context) (map[types.SubmissionStatus]int, error)
	Create(ctx context.Context, submission types.Submission) (types.Submission, error)
	UpdateReview(ctx context.Context, submission types.Submission) (types.Submission, error)
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	List(ctx context.Context) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
}

// RulesRepository stores the process-wide detection rules.
type RulesRepository interface {
	Get(ctx context.Context) (types.DetectionRules, error)
	Save(ctx context.Context, rules types.DetectionRules) (types.DetectionRules, error)
}

// AlertRepository appends and acknowledges gaming alerts.
type AlertRepository interface {
	Append(ctx context.Context, alert types.GamingAlert) (types.GamingAlert, error)
	List(ctx context.Context, filter types.AlertFilter, limit, offset int) ([]types.GamingAlert, int, error)
	ListAll(ctx context.Context) ([]types.GamingAlert, error)
	Acknowledge(ctx context.Context, id int, at time.Time) (types.GamingAlert, error)
	AcknowledgeUser(ctx context.Context, userID int, at time.Time) (int, error)
}

// LeaderboardRepository stores per-user standings.
type LeaderboardRepository interface {
	Create(ctx context.Context, entry types.LeaderboardEntry) error
	GetForUpdate(ctx context.Context, userID int) (types.LeaderboardEntry, error)
	Save(ctx context.Context, entry types.LeaderboardEntry) error
	List(ctx context.Context) ([]types.LeaderboardEntry, error)
}

// PrizeRepository reads quarterly prizes.
type PrizeRepository interface {
	ListActive(ctx context.Context) ([]types.Prize, error)
}

// Repositories groups the repositories sharing one database handle or transaction.
type Repositories struct {
	Submissions SubmissionRepository
	Users       UserRepository
	Rules       RulesRepository
	Alerts      AlertRepository
	Leaderboard LeaderboardRepository
	Prizes      PrizeRepository
}

// Transactor runs functions against repositories bound to one transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	InTx(ctx context.Context, fn func(Repositories) error) error
	// InUserTx additionally serializes against every other InUserTx call
	// for the same user until the transaction ends.
	InUserTx(ctx context.Context, userID int, fn func(Repositories) error) error
}
