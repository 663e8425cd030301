package store

import (
	"context"
	"database/sql"
	"fmt"
)

// admissionLockNamespace is the first key of the per-user advisory lock.
const admissionLockNamespace = 7201

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repos groups repositories sharing one handle.
type Repos struct {
	Submissions *SubmissionRepository
	Users       *UserRepository
	Rules       *RulesRepository
	Alerts      *AlertRepository
	Leaderboard *LeaderboardRepository
	Prizes      *PrizeRepository
}

// NewRepos binds every repository to db.
func NewRepos(db DBTX) Repos {
	return Repos{
		Submissions: NewSubmissionRepository(db),
		Users:       NewUserRepository(db),
		Rules:       NewRulesRepository(db),
		Alerts:      NewAlertRepository(db),
		Leaderboard: NewLeaderboardRepository(db),
		Prizes:      NewPrizeRepository(db),
	}
}

// Store owns the connection pool and opens transactions.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Repos returns repositories running outside any transaction.
func (s *Store) Repos() Repos {
	return NewRepos(s.db)
}

// InTx runs fn in a transaction that commits when fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(Repos) error) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return fn(NewRepos(tx))
	})
}

// InUserTx runs fn in a transaction holding the admission lock of userID.
// The lock is released when the transaction ends.
func (s *Store) InUserTx(ctx context.Context, userID int, fn func(Repos) error) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		const query = `SELECT pg_advisory_xact_lock($1, $2)`
		if _, err := tx.ExecContext(ctx, query, admissionLockNamespace, userID); err != nil {
			return fmt.Errorf("acquire user lock: %w", err)
		}
		return fn(NewRepos(tx))
	})
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
