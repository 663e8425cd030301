package services

import (
	"context"
	"log/slog"

	"github.com/projectsentinel/apiserver/internal/leaderboard"
	"github.com/projectsentinel/apiserver/types"
)

// LeaderboardService serves ranked standings, through the cache when one is configured.
type LeaderboardService struct {
	repo   LeaderboardRepository
	cache  LeaderboardCache
	logger *slog.Logger
}

// NewLeaderboardService constructs the service. cache may be nil.
func NewLeaderboardService(repo LeaderboardRepository, cache LeaderboardCache, logger *slog.Logger) *LeaderboardService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LeaderboardService{repo: repo, cache: cache, logger: logger}
}

// List returns the ranked leaderboard. sentinelOnly restricts it to
// members of the reviewer programme, ranked among themselves.
func (s *LeaderboardService) List(ctx context.Context, sentinelOnly bool) ([]types.LeaderboardEntry, error) {
	ranked, err := s.ranked(ctx)
	if err != nil {
		return nil, err
	}
	if sentinelOnly {
		return leaderboard.Filter(ranked, func(e types.LeaderboardEntry) bool { return e.IsSentinel }), nil
	}
	return ranked, nil
}

func (s *LeaderboardService) ranked(ctx context.Context) ([]types.LeaderboardEntry, error) {
	var (
		version  int64
		writable bool
	)
	if s.cache != nil {
		entries, v, ok, err := s.cache.Get(ctx)
		switch {
		case err != nil:
			s.logger.WarnContext(ctx, "leaderboard cache read failed", "error", err)
		case ok:
			return entries, nil
		default:
			version, writable = v, true
		}
	}

	entries, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	ranked := leaderboard.Rank(entries)

	if writable {
		if err := s.cache.Set(ctx, version, ranked); err != nil {
			s.logger.WarnContext(ctx, "leaderboard cache write failed", "error", err)
		}
	}
	return ranked, nil
}
