package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/projectsentinel/apiserver/types"
)

const leaderboardColumns = `
	user_id, display_name, region, is_sentinel, total_points, submissions_count,
	verified_count, implemented_count, last_points_at`

// LeaderboardRepository handles persistence for leaderboard entries. Ranks
// are derived on read and never stored.
type LeaderboardRepository struct {
	db DBTX
}

func NewLeaderboardRepository(db DBTX) *LeaderboardRepository {
	return &LeaderboardRepository{db: db}
}

func scanEntry(row rowScanner) (types.LeaderboardEntry, error) {
	var (
		entry        types.LeaderboardEntry
		lastPointsAt sql.NullTime
	)
	if err := row.Scan(
		&entry.UserID,
		&entry.DisplayName,
		&entry.Region,
		&entry.IsSentinel,
		&entry.TotalPoints,
		&entry.SubmissionsCount,
		&entry.VerifiedCount,
		&entry.ImplementedCount,
		&lastPointsAt,
	); err != nil {
		return types.LeaderboardEntry{}, err
	}
	if lastPointsAt.Valid {
		at := lastPointsAt.Time
		entry.LastPointsAt = &at
	}
	return entry, nil
}

func (r *LeaderboardRepository) Create(ctx context.Context, entry types.LeaderboardEntry) error {
	const query = `
		INSERT INTO leaderboard_entries (user_id, display_name, region, is_sentinel)
		VALUES ($1, $2, $3, $4)`
	_, err := r.db.ExecContext(ctx, query, entry.UserID, entry.DisplayName, entry.Region, entry.IsSentinel)
	return err
}

// GetForUpdate loads an entry and locks it until the transaction ends.
func (r *LeaderboardRepository) GetForUpdate(ctx context.Context, userID int) (types.LeaderboardEntry, error) {
	query := `SELECT` + leaderboardColumns + ` FROM leaderboard_entries WHERE user_id = $1 FOR UPDATE`
	entry, err := scanEntry(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.LeaderboardEntry{}, ErrNotFound
		}
		return types.LeaderboardEntry{}, err
	}
	return entry, nil
}

func (r *LeaderboardRepository) Save(ctx context.Context, entry types.LeaderboardEntry) error {
	const query = `
		UPDATE leaderboard_entries
		SET total_points = $1,
			submissions_count = $2,
			verified_count = $3,
			implemented_count = $4,
			last_points_at = $5
		WHERE user_id = $6`
	result, err := r.db.ExecContext(
		ctx,
		query,
		entry.TotalPoints,
		entry.SubmissionsCount,
		entry.VerifiedCount,
		entry.ImplementedCount,
		entry.LastPointsAt,
		entry.UserID,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns every entry in a single snapshot.
func (r *LeaderboardRepository) List(ctx context.Context) ([]types.LeaderboardEntry, error) {
	query := `SELECT` + leaderboardColumns + ` FROM leaderboard_entries ORDER BY user_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]types.LeaderboardEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
