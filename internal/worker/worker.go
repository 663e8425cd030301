// Package worker consumes domain events published by the API server.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/projectsentinel/apiserver/internal/mq"
	"github.com/projectsentinel/apiserver/types"
)

// Subscriber is the subset of *mq.MQ the worker consumes from.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler mq.Handler) error
}

// Worker logs a notification for every gaming alert and review event.
type Worker struct {
	sub           Subscriber
	alertChannel  string
	reviewChannel string
	logger        *slog.Logger
}

func New(sub Subscriber, alertChannel, reviewChannel string, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{sub: sub, alertChannel: alertChannel, reviewChannel: reviewChannel, logger: logger}
}

// Run consumes both channels until ctx is done or a subscription fails.
// An empty review channel is not consumed.
func (w *Worker) Run(ctx context.Context) error {
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return w.sub.Subscribe(gctx, w.alertChannel, w.HandleAlert)
	})
	if w.reviewChannel != "" {
		group.Go(func() error {
			return w.sub.Subscribe(gctx, w.reviewChannel, w.HandleReview)
		})
	}
	return group.Wait()
}

// HandleAlert logs an alert notification. Undecodable messages are dropped
// so they are not redelivered forever.
func (w *Worker) HandleAlert(ctx context.Context, msg mq.Message) error {
	if event := msg.Attributes[mq.AttrEvent]; event != "" && event != mq.EventAlertRaised {
		w.logger.WarnContext(ctx, "unexpected event on alert channel", "event", event, "message_id", msg.ID)
		return nil
	}
	alert, err := mq.DecodeAlert(msg)
	if err != nil {
		w.logger.ErrorContext(ctx, "drop malformed alert", "error", err)
		return nil
	}

	level := slog.LevelWarn
	if alert.Type == types.AlertSubmissionBlocked {
		level = slog.LevelError
	}
	w.logger.Log(ctx, level, "gaming alert",
		"alert_id", alert.ID,
		"user_id", alert.UserID,
		"type", alert.Type,
		"submission_id", alert.Payload.SubmissionID,
		"title", alert.Payload.Submission.Title,
		"findings", findings(alert.Payload),
	)
	return nil
}

// HandleReview logs a review decision.
func (w *Worker) HandleReview(ctx context.Context, msg mq.Message) error {
	submission, err := mq.DecodeReview(msg)
	if err != nil {
		w.logger.ErrorContext(ctx, "drop malformed review", "error", err)
		return nil
	}
	w.logger.InfoContext(ctx, "submission reviewed",
		"submission_id", submission.ID,
		"user_id", submission.UserID,
		"status", submission.Status,
		"points", submission.PointsAwarded,
	)
	return nil
}

func findings(payload types.AlertPayload) []string {
	out := make([]string, 0, len(payload.Issues)+len(payload.Warnings))
	for _, issue := range payload.Issues {
		out = append(out, fmt.Sprintf("%s: %s", issue.Type, issue.Message))
	}
	for _, warning := range payload.Warnings {
		out = append(out, fmt.Sprintf("%s: %s", warning.Type, warning.Message))
	}
	return out
}
