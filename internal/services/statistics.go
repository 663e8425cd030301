package services

import (
	"context"

	"github.com/projectsentinel/apiserver/types"
)

// StatisticsService computes the admin dashboard summary.
type StatisticsService struct {
	repos Repositories
}

func NewStatisticsService(repos Repositories) *StatisticsService {
	return &StatisticsService{repos: repos}
}

func (s *StatisticsService) Get(ctx context.Context) (types.Statistics, error) {
	users, err := s.repos.Users.List(ctx)
	if err != nil {
		return types.Statistics{}, err
	}
	counts, err := s.repos.Submissions.CountByStatus(ctx)
	if err != nil {
		return types.Statistics{}, err
	}

	stats := types.Statistics{
		TotalUsers:         len(users),
		PendingSubmissions: counts[types.StatusPending],
	}
	for _, n := range counts {
		stats.TotalSubmissions += n
	}
	return stats, nil
}
