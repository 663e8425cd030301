package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/projectsentinel/apiserver/internal/store"
	"github.com/projectsentinel/apiserver/types"
)

// UserService encapsulates user use-cases.
type UserService struct {
	repos Repositories
	tx    Transactor
	cache LeaderboardCache
}

// NewUserService constructs the service. cache may be nil.
func NewUserService(repos Repositories, tx Transactor, cache LeaderboardCache) *UserService {
	return &UserService{repos: repos, tx: tx, cache: cache}
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repos.Users.GetByID(ctx, id)
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return s.repos.Users.GetByUsername(ctx, username)
}

// List returns every account ordered by id.
func (s *UserService) List(ctx context.Context) ([]types.User, error) {
	return s.repos.Users.List(ctx)
}

// Register creates the user together with an empty leaderboard entry.
func (s *UserService) Register(ctx context.Context, user types.User) (types.User, error) {
	var created types.User
	err := s.tx.InTx(ctx, func(repos Repositories) error {
		if _, err := repos.Users.GetByUsername(ctx, user.Username); err == nil {
			return fmt.Errorf("%w: username already exists", ErrConflict)
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		var err error
		created, err = repos.Users.Create(ctx, user)
		if err != nil {
			return err
		}
		return repos.Leaderboard.Create(ctx, types.LeaderboardEntry{
			UserID:      created.ID,
			DisplayName: created.Name,
			Region:      created.Region,
			IsSentinel:  created.IsSentinel,
		})
	})
	if err != nil {
		return types.User{}, err
	}
	if s.cache != nil {
		// A stale board only lacks the new zero-point entry until the TTL expires.
		_ = s.cache.Invalidate(ctx)
	}
	return created, nil
}
