package services

import (
	"context"

	"github.com/projectsentinel/apiserver/types"
)

// EventPublisher announces committed changes to other processes. Failures
// are logged by callers and never undo the change.
type EventPublisher interface {
	PublishAlert(ctx context.Context, alert types.GamingAlert) error
	PublishReview(ctx context.Context, submission types.Submission) error
}

// LeaderboardCache holds ranked leaderboard snapshots. Get reports the
// cache generation it read; Set stores a snapshot under that generation
// and Invalidate starts a new one.
type LeaderboardCache interface {
	Get(ctx context.Context) ([]types.LeaderboardEntry, int64, bool, error)
	Set(ctx context.Context, version int64, entries []types.LeaderboardEntry) error
	Invalidate(ctx context.Context) error
}

type noopPublisher struct{}

func (noopPublisher) PublishAlert(context.Context, types.GamingAlert) error { return nil }
func (noopPublisher) PublishReview(context.Context, types.Submission) error { return nil }
