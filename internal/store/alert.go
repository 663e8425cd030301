package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/projectsentinel/apiserver/types"
)

const alertColumns = `id, user_id, type, payload, acknowledged, acknowledged_at, created_at`

// AlertRepository handles persistence for gaming alerts. Alerts are never
// deleted.
type AlertRepository struct {
	db DBTX
}

func NewAlertRepository(db DBTX) *AlertRepository {
	return &AlertRepository{db: db}
}

func scanAlert(row rowScanner) (types.GamingAlert, error) {
	var (
		alert          types.GamingAlert
		payloadJSON    []byte
		acknowledgedAt sql.NullTime
	)
	if err := row.Scan(
		&alert.ID,
		&alert.UserID,
		&alert.Type,
		&payloadJSON,
		&alert.Acknowledged,
		&acknowledgedAt,
		&alert.CreatedAt,
	); err != nil {
		return types.GamingAlert{}, err
	}
	if acknowledgedAt.Valid {
		at := acknowledgedAt.Time
		alert.AcknowledgedAt = &at
	}
	_ = json.Unmarshal(payloadJSON, &alert.Payload)
	return alert, nil
}

func (r *AlertRepository) queryAlerts(ctx context.Context, query string, args ...any) ([]types.GamingAlert, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	alerts := make([]types.GamingAlert, 0)
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return alerts, nil
}

func (r *AlertRepository) Append(ctx context.Context, alert types.GamingAlert) (types.GamingAlert, error) {
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}
	payload, err := json.Marshal(alert.Payload)
	if err != nil {
		return types.GamingAlert{}, fmt.Errorf("encode alert payload: %w", err)
	}

	const query = `
		INSERT INTO gaming_alerts (user_id, type, payload, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, alert.UserID, string(alert.Type), string(payload), alert.CreatedAt).
		Scan(&alert.ID); err != nil {
		return types.GamingAlert{}, err
	}
	return alert, nil
}

// List returns one page of alerts matching filter, newest first.
func (r *AlertRepository) List(ctx context.Context, filter types.AlertFilter, limit, offset int) ([]types.GamingAlert, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	var acknowledged sql.NullBool
	if filter.Acknowledged != nil {
		acknowledged = sql.NullBool{Bool: *filter.Acknowledged, Valid: true}
	}
	const where = `WHERE ($1 = 0 OR user_id = $1) AND ($2::boolean IS NULL OR acknowledged = $2)`

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM gaming_alerts `+where, filter.UserID, acknowledged).
		Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + alertColumns + ` FROM gaming_alerts ` + where + `
		ORDER BY created_at DESC, id DESC
		OFFSET $3 LIMIT $4`
	alerts, err := r.queryAlerts(ctx, query, filter.UserID, acknowledged, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	return alerts, total, nil
}

func (r *AlertRepository) ListAll(ctx context.Context) ([]types.GamingAlert, error) {
	const query = `SELECT ` + alertColumns + ` FROM gaming_alerts ORDER BY id`
	return r.queryAlerts(ctx, query)
}

// Acknowledge marks an alert as seen. An alert acknowledged earlier keeps
// its original timestamp.
func (r *AlertRepository) Acknowledge(ctx context.Context, id int, at time.Time) (types.GamingAlert, error) {
	const query = `
		UPDATE gaming_alerts
		SET acknowledged = TRUE,
			acknowledged_at = COALESCE(acknowledged_at, $2)
		WHERE id = $1
		RETURNING ` + alertColumns
	alert, err := scanAlert(r.db.QueryRowContext(ctx, query, id, at))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.GamingAlert{}, ErrNotFound
		}
		return types.GamingAlert{}, err
	}
	return alert, nil
}

// AcknowledgeUser marks every open alert of a user as seen.
func (r *AlertRepository) AcknowledgeUser(ctx context.Context, userID int, at time.Time) (int, error) {
	const query = `
		UPDATE gaming_alerts
		SET acknowledged = TRUE,
			acknowledged_at = $2
		WHERE user_id = $1 AND NOT acknowledged`
	result, err := r.db.ExecContext(ctx, query, userID, at)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}
