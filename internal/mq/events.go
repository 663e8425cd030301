package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/projectsentinel/apiserver/types"
)

// Event attribute keys and values.
const (
	AttrEvent  = "event"
	AttrUserID = "user_id"

	EventAlertRaised        = "alert.raised"
	EventSubmissionReviewed = "submission.reviewed"
)

// EventPublisher encodes domain events as JSON and publishes them on the
// alert and review channels.
type EventPublisher struct {
	mq            *MQ
	alertChannel  string
	reviewChannel string
}

func NewEventPublisher(mq *MQ, alertChannel, reviewChannel string) *EventPublisher {
	return &EventPublisher{mq: mq, alertChannel: alertChannel, reviewChannel: reviewChannel}
}

func (p *EventPublisher) PublishAlert(ctx context.Context, alert types.GamingAlert) error {
	return p.publish(ctx, p.alertChannel, EventAlertRaised, alert.UserID, alert)
}

func (p *EventPublisher) PublishReview(ctx context.Context, submission types.Submission) error {
	return p.publish(ctx, p.reviewChannel, EventSubmissionReviewed, submission.UserID, submission)
}

func (p *EventPublisher) publish(ctx context.Context, channel, event string, userID int, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	attrs := map[string]string{
		AttrEvent:  event,
		AttrUserID: strconv.Itoa(userID),
	}
	if _, err := p.mq.Publish(ctx, channel, data, attrs); err != nil {
		return fmt.Errorf("publish %s: %w", event, err)
	}
	return nil
}

// DecodeAlert decodes an alert published by PublishAlert.
func DecodeAlert(msg Message) (types.GamingAlert, error) {
	var alert types.GamingAlert
	if err := json.Unmarshal(msg.Data, &alert); err != nil {
		return types.GamingAlert{}, fmt.Errorf("decode alert %s: %w", msg.ID, err)
	}
	return alert, nil
}

// DecodeReview decodes a submission published by PublishReview.
func DecodeReview(msg Message) (types.Submission, error) {
	var submission types.Submission
	if err := json.Unmarshal(msg.Data, &submission); err != nil {
		return types.Submission{}, fmt.Errorf("decode review %s: %w", msg.ID, err)
	}
	return submission, nil
}
