package services

import (
	"context"
	"time"

	"github.com/projectsentinel/apiserver/types"
)

// AlertService exposes the gaming alert log to administrators.
type AlertService struct {
	repo AlertRepository
	now  func() time.Time
}

func NewAlertService(repo AlertRepository) *AlertService {
	return &AlertService{repo: repo, now: time.Now}
}

// List returns one page of alerts, newest first, and the total count.
func (s *AlertService) List(ctx context.Context, filter types.AlertFilter, limit, offset int) ([]types.GamingAlert, int, error) {
	return s.repo.List(ctx, filter, limit, offset)
}

// Acknowledge marks one alert as seen. Acknowledging twice keeps the first timestamp.
func (s *AlertService) Acknowledge(ctx context.Context, id int) (types.GamingAlert, error) {
	return s.repo.Acknowledge(ctx, id, s.now())
}

// AcknowledgeUser marks every open alert of a user as seen and returns how many changed.
func (s *AlertService) AcknowledgeUser(ctx context.Context, userID int) (int, error) {
	return s.repo.AcknowledgeUser(ctx, userID, s.now())
}
