package store

import (
	"context"

	"github.com/projectsentinel/apiserver/types"
)

// PrizeRepository reads quarterly prizes.
type PrizeRepository struct {
	db DBTX
}

func NewPrizeRepository(db DBTX) *PrizeRepository {
	return &PrizeRepository{db: db}
}

// ListActive returns the active prizes, overall prizes first, each group by place.
func (r *PrizeRepository) ListActive(ctx context.Context) ([]types.Prize, error) {
	const query = `
		SELECT id, quarter_name, start_date, end_date, is_sentinel_prize, place, amount, description, is_active
		FROM prizes
		WHERE is_active
		ORDER BY is_sentinel_prize, place, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	prizes := make([]types.Prize, 0)
	for rows.Next() {
		var prize types.Prize
		if err := rows.Scan(
			&prize.ID,
			&prize.QuarterName,
			&prize.StartDate,
			&prize.EndDate,
			&prize.IsSentinelPrize,
			&prize.Place,
			&prize.Amount,
			&prize.Description,
			&prize.IsActive,
		); err != nil {
			return nil, err
		}
		prizes = append(prizes, prize)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return prizes, nil
}
