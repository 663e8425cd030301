package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projectsentinel/apiserver/internal/mq"
	"github.com/projectsentinel/apiserver/types"
)

type fakeSubscriber struct {
	queued map[string][]mq.Message
	err    error
}

func (s *fakeSubscriber) Subscribe(ctx context.Context, channel string, handler mq.Handler) error {
	if s.err != nil {
		return s.err
	}
	for _, msg := range s.queued[channel] {
		if err := handler(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func encode(t *testing.T, event string, payload any) mq.Message {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return mq.Message{ID: "m", Data: data, Attributes: map[string]string{mq.AttrEvent: event}}
}

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		lines = append(lines, entry)
	}
	return lines
}

func TestRunLogsAlertsAndReviews(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	blocked := types.GamingAlert{
		ID:     4,
		UserID: 2,
		Type:   types.AlertSubmissionBlocked,
		Payload: types.AlertPayload{
			Submission: types.SubmissionInput{Title: "Copy"},
			Issues:     []types.Issue{{Type: types.IssueDuplicate, Message: "too similar"}},
		},
	}
	sub := &fakeSubscriber{queued: map[string][]mq.Message{
		"alerts":  {encode(t, mq.EventAlertRaised, blocked), {ID: "bad", Data: []byte("{")}},
		"reviews": {encode(t, mq.EventSubmissionReviewed, types.Submission{ID: 9, UserID: 2, Status: types.StatusApproved, PointsAwarded: 40})},
	}}

	require.NoError(t, New(sub, "alerts", "reviews", logger).Run(context.Background()))

	lines := logLines(t, &buf)
	byMsg := make(map[string]map[string]any)
	for _, line := range lines {
		byMsg[line["msg"].(string)] = line
	}

	alert := byMsg["gaming alert"]
	require.NotNil(t, alert)
	assert.Equal(t, "ERROR", alert["level"])
	assert.Equal(t, float64(2), alert["user_id"])
	assert.Equal(t, []any{"DUPLICATE_SUBMISSION: too similar"}, alert["findings"])

	assert.Contains(t, byMsg, "drop malformed alert")

	review := byMsg["submission reviewed"]
	require.NotNil(t, review)
	assert.Equal(t, float64(40), review["points"])
}

func TestHandleAlertWarningLevel(t *testing.T) {
	var buf bytes.Buffer
	w := New(nil, "alerts", "", slog.New(slog.NewJSONHandler(&buf, nil)))

	msg := encode(t, mq.EventAlertRaised, types.GamingAlert{ID: 1, Type: types.AlertSubmissionWarning})
	require.NoError(t, w.HandleAlert(context.Background(), msg))

	lines := logLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "WARN", lines[0]["level"])
}

func TestHandleAlertIgnoresOtherEvents(t *testing.T) {
	var buf bytes.Buffer
	w := New(nil, "alerts", "", slog.New(slog.NewJSONHandler(&buf, nil)))

	msg := encode(t, mq.EventSubmissionReviewed, types.Submission{ID: 1})
	require.NoError(t, w.HandleAlert(context.Background(), msg))
	assert.Equal(t, "unexpected event on alert channel", logLines(t, &buf)[0]["msg"])
}

func TestRunReturnsSubscriptionError(t *testing.T) {
	boom := errors.New("broker down")
	err := New(&fakeSubscriber{err: boom}, "alerts", "", nil).Run(context.Background())
	assert.ErrorIs(t, err, boom)
}
