package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/projectsentinel/apiserver/internal/leaderboard"
	"github.com/projectsentinel/apiserver/internal/metrics"
	"github.com/projectsentinel/apiserver/types"
)

// ReviewDecision is an administrator's verdict on a submission.
type ReviewDecision struct {
	Status types.SubmissionStatus `json:"status"`

	// Points defaults, when nil, to the points already credited or, on a
	// first credit, to the admission score. Rejections award none.
	Points *int   `json:"points,omitempty"`
	Notes  string `json:"notes"`
}

// transitions lists the statuses each status may move to.
var transitions = map[types.SubmissionStatus][]types.SubmissionStatus{
	types.StatusPending:  {types.StatusApproved, types.StatusRejected, types.StatusImplemented},
	types.StatusRejected: {types.StatusApproved, types.StatusImplemented},
	types.StatusApproved: {types.StatusImplemented},
}

// CanTransition reports whether a review may move a submission from one status to another.
func CanTransition(from, to types.SubmissionStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SubmissionService encapsulates submission reads and reviews.
type SubmissionService struct {
	repos     Repositories
	tx        Transactor
	cache     LeaderboardCache
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewSubmissionService constructs the service. cache and publisher may be nil.
func NewSubmissionService(
	repos Repositories,
	tx Transactor,
	cache LeaderboardCache,
	publisher EventPublisher,
	logger *slog.Logger,
) *SubmissionService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SubmissionService{
		repos:     repos,
		tx:        tx,
		cache:     cache,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *SubmissionService) Get(ctx context.Context, id int) (types.Submission, error) {
	return s.repos.Submissions.Get(ctx, id)
}

// List returns one page of submissions, newest first, and the total count.
func (s *SubmissionService) List(ctx context.Context, filter types.SubmissionFilter, limit, offset int) ([]types.Submission, int, error) {
	return s.repos.Submissions.List(ctx, filter, limit, offset)
}

// Review applies a review decision and credits the submitter's leaderboard
// entry in the same transaction. Repeating the latest decision verbatim is
// a no-op.
func (s *SubmissionService) Review(ctx context.Context, id, reviewerID int, decision ReviewDecision) (types.Submission, error) {
	if !decision.Status.Valid() || decision.Status == types.StatusPending {
		return types.Submission{}, fmt.Errorf("%w: status must be approved, rejected or implemented", ErrInvalidReview)
	}
	if decision.Points != nil && *decision.Points < 0 {
		return types.Submission{}, fmt.Errorf("%w: points must not be negative", ErrInvalidReview)
	}

	var (
		updated types.Submission
		changed bool
	)
	err := s.tx.InTx(ctx, func(repos Repositories) error {
		changed = false

		before, err := repos.Submissions.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		points := before.Score
		if before.Status.Credited() {
			points = before.PointsAwarded
		}
		if decision.Points != nil {
			points = *decision.Points
		}
		if decision.Status == types.StatusRejected {
			points = 0
		}

		if before.Status == decision.Status && before.PointsAwarded == points && before.ReviewerNotes == decision.Notes {
			updated = before
			return nil
		}
		if !CanTransition(before.Status, decision.Status) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, before.Status, decision.Status)
		}
		if before.Status.Credited() && points < before.PointsAwarded {
			return fmt.Errorf("%w: points may not drop below the %d already awarded", ErrInvalidReview, before.PointsAwarded)
		}

		now := s.now()
		after := before
		after.Status = decision.Status
		after.PointsAwarded = points
		after.ReviewerNotes = decision.Notes
		after.ReviewedBy = &reviewerID
		after.ReviewedAt = &now

		after, err = repos.Submissions.UpdateReview(ctx, after)
		if err != nil {
			return fmt.Errorf("update submission: %w", err)
		}

		entry, err := repos.Leaderboard.GetForUpdate(ctx, before.UserID)
		if err != nil {
			return fmt.Errorf("load leaderboard entry: %w", err)
		}
		if err := repos.Leaderboard.Save(ctx, leaderboard.Apply(entry, before, after, now)); err != nil {
			return fmt.Errorf("save leaderboard entry: %w", err)
		}

		updated = after
		changed = true
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrInvalidTransition) && !errors.Is(err, ErrInvalidReview) {
			s.logger.ErrorContext(ctx, "review failed", "submission_id", id, "error", err)
		}
		return types.Submission{}, err
	}
	if !changed {
		return updated, nil
	}

	metrics.Reviews.WithLabelValues(string(updated.Status)).Inc()
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.WarnContext(ctx, "leaderboard cache invalidation failed", "error", err)
		}
	}
	if err := s.publisher.PublishReview(ctx, updated); err != nil {
		s.logger.WarnContext(ctx, "publish review failed", "submission_id", updated.ID, "error", err)
	}
	return updated, nil
}
