package server

import (
	"context"

	"github.com/projectsentinel/apiserver/internal/services"
	"github.com/projectsentinel/apiserver/internal/store"
)

// transactor exposes store transactions through the service interfaces.
type transactor struct {
	store *store.Store
}

func (t transactor) InTx(ctx context.Context, fn func(services.Repositories) error) error {
	return t.store.InTx(ctx, func(repos store.Repos) error {
		return fn(serviceRepos(repos))
	})
}

func (t transactor) InUserTx(ctx context.Context, userID int, fn func(services.Repositories) error) error {
	return t.store.InUserTx(ctx, userID, func(repos store.Repos) error {
		return fn(serviceRepos(repos))
	})
}

func serviceRepos(repos store.Repos) services.Repositories {
	return services.Repositories{
		Submissions: repos.Submissions,
		Users:       repos.Users,
		Rules:       repos.Rules,
		Alerts:      repos.Alerts,
		Leaderboard: repos.Leaderboard,
		Prizes:      repos.Prizes,
	}
}
