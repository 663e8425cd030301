package services

import (
	"context"
	"time"

	"github.com/projectsentinel/apiserver/types"
)

// PrizeService projects leaderboard places onto the active quarterly prizes.
type PrizeService struct {
	repo        PrizeRepository
	leaderboard *LeaderboardService
	now         func() time.Time
}

func NewPrizeService(repo PrizeRepository, leaderboard *LeaderboardService) *PrizeService {
	return &PrizeService{repo: repo, leaderboard: leaderboard, now: time.Now}
}

// ListActive returns the prizes of the running quarter.
func (s *PrizeService) ListActive(ctx context.Context) ([]types.Prize, error) {
	return s.repo.ListActive(ctx)
}

// Standings pairs every active prize with the entry currently holding its
// place. Sentinel prizes are awarded from the sentinel leaderboard.
func (s *PrizeService) Standings(ctx context.Context) (types.PrizeStandings, error) {
	prizes, err := s.repo.ListActive(ctx)
	if err != nil {
		return types.PrizeStandings{}, err
	}
	overall, err := s.leaderboard.List(ctx, false)
	if err != nil {
		return types.PrizeStandings{}, err
	}
	sentinels, err := s.leaderboard.List(ctx, true)
	if err != nil {
		return types.PrizeStandings{}, err
	}

	result := types.PrizeStandings{Standings: make([]types.PrizeStanding, 0, len(prizes))}
	for _, prize := range prizes {
		board := overall
		if prize.IsSentinelPrize {
			board = sentinels
		}
		standing := types.PrizeStanding{Prize: prize}
		if prize.Place >= 1 && prize.Place <= len(board) && board[prize.Place-1].TotalPoints > 0 {
			holder := board[prize.Place-1]
			standing.Holder = &holder
		}
		result.Standings = append(result.Standings, standing)

		if result.Quarter == "" {
			result.Quarter = prize.QuarterName
			result.EndsAt = prize.EndDate
		}
	}
	if result.Quarter != "" {
		result.Remaining = CountdownTo(result.EndsAt, s.now())
	}
	return result, nil
}

// CountdownTo splits the time left until end into days, hours and minutes.
func CountdownTo(end, now time.Time) types.Countdown {
	left := end.Sub(now)
	if left <= 0 {
		return types.Countdown{Expired: true}
	}
	return types.Countdown{
		Days:    int(left / (24 * time.Hour)),
		Hours:   int(left % (24 * time.Hour) / time.Hour),
		Minutes: int(left % time.Hour / time.Minute),
	}
}
