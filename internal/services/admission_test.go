package services_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/projectsentinel/apiserver/internal/advisory"
	"github.com/projectsentinel/apiserver/internal/services"
	"github.com/projectsentinel/apiserver/internal/testutil"
	"github.com/projectsentinel/apiserver/types"
)

type mockScorer struct {
	mock.Mock
}

func (m *mockScorer) Consult(ctx context.Context, req advisory.Request) (*types.AdvisoryOpinion, error) {
	args := m.Called(ctx, req)
	opinion, _ := args.Get(0).(*types.AdvisoryOpinion)
	return opinion, args.Error(1)
}

var clock = time.Date(2026, time.February, 17, 14, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return clock }

func idea(title string) types.SubmissionInput {
	return types.SubmissionInput{
		Title:       title,
		Description: "Expense reports are re-keyed by hand from paper receipts into the finance system at the end of each month by two people: " + title,
		Solution:    "Use the card provider's export and import it directly into the finance system.",
		Category:    "Finance",
	}
}

func newAdmission(t *testing.T, opts ...services.AdmissionOption) (*services.AdmissionService, *testutil.Memory, *testutil.Publisher, types.User) {
	t.Helper()
	mem := testutil.NewMemory()
	user := mem.SeedUser(types.User{Username: "ada", Name: "Ada"})
	publisher := &testutil.Publisher{}
	opts = append([]services.AdmissionOption{
		services.WithAdmissionClock(fixedClock),
		services.WithAdmissionPublisher(publisher),
	}, opts...)
	return services.NewAdmissionService(mem, opts...), mem, publisher, user
}

func TestSubmitAccepted(t *testing.T) {
	svc, mem, publisher, user := newAdmission(t)

	result, err := svc.Submit(context.Background(), user.ID, idea("Automate expense reports"))
	require.NoError(t, err)

	require.True(t, result.Accepted)
	require.NotNil(t, result.Submission)
	assert.Equal(t, types.StatusPending, result.Submission.Status)
	assert.Equal(t, 100, result.Submission.Score)
	assert.Equal(t, clock, result.Submission.SubmittedAt)
	assert.Nil(t, result.Submission.Advisory)
	assert.Empty(t, result.Warnings)
	assert.Empty(t, mem.Alerts(), "clean submissions raise no alert")
	assert.Empty(t, publisher.Alerts)
	assert.Len(t, mem.Submissions(), 1)
}

func TestSubmitValidation(t *testing.T) {
	svc, mem, _, user := newAdmission(t)

	_, err := svc.Submit(context.Background(), user.ID, types.SubmissionInput{Title: "  ", Description: "x", Category: "c"})
	assert.ErrorIs(t, err, services.ErrInvalidSubmission)

	_, err = svc.Submit(context.Background(), user.ID, types.SubmissionInput{
		Title: strings.Repeat("t", 201), Description: "x", Category: "c",
	})
	assert.ErrorIs(t, err, services.ErrInvalidSubmission)

	assert.Empty(t, mem.Alerts(), "validation failures are not gaming alerts")
	assert.Empty(t, mem.Submissions())
}

func TestSubmitBlocked(t *testing.T) {
	svc, mem, publisher, user := newAdmission(t)
	input := idea("Automate expense reports")
	input.Description = "Too short."

	result, err := svc.Submit(context.Background(), user.ID, input)
	require.NoError(t, err)

	assert.False(t, result.Accepted)
	assert.Nil(t, result.Submission)
	assert.Equal(t, "Description too short (10 chars, minimum: 100)", result.RejectionMessage)
	assert.Empty(t, mem.Submissions(), "blocked submissions are not persisted")

	alerts := mem.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, types.AlertSubmissionBlocked, alerts[0].Type)
	assert.Equal(t, user.ID, alerts[0].UserID)
	assert.Zero(t, alerts[0].Payload.SubmissionID)
	assert.Equal(t, input, alerts[0].Payload.Submission)
	require.Len(t, alerts[0].Payload.Issues, 1)
	assert.Equal(t, types.IssueShortDescription, alerts[0].Payload.Issues[0].Type)
	assert.Len(t, publisher.Alerts, 1)
}

func TestSubmitRejectionJoinsBlockingMessages(t *testing.T) {
	svc, mem, _, user := newAdmission(t)
	input := idea("Same idea again")
	input.Description = "short"
	for i := 0; i < 3; i++ {
		mem.SeedSubmission(types.Submission{
			UserID:      user.ID,
			Title:       input.Title,
			Description: input.Description,
			SubmittedAt: clock.Add(-time.Duration(i+1) * time.Hour),
		})
	}

	result, err := svc.Submit(context.Background(), user.ID, input)
	require.NoError(t, err)

	assert.False(t, result.Accepted)
	assert.Equal(t, strings.Join([]string{
		"User has submitted 3 ideas today (max: 3)",
		"Description too short (5 chars, minimum: 100)",
		"Submission is 100% similar to previous submission",
	}, "\n"), result.RejectionMessage)
	assert.Equal(t, 3, result.Issues[2].SimilarTo, "earliest submitted match wins")
}

func TestSubmitDuplicateOfEarlierSubmission(t *testing.T) {
	svc, _, _, user := newAdmission(t)
	input := idea("Automate expense reports")

	first, err := svc.Submit(context.Background(), user.ID, input)
	require.NoError(t, err)
	require.True(t, first.Accepted)

	second, err := svc.Submit(context.Background(), user.ID, input)
	require.NoError(t, err)
	require.False(t, second.Accepted)
	require.Len(t, second.Issues, 1)
	assert.Equal(t, types.IssueDuplicate, second.Issues[0].Type)
	assert.Equal(t, first.Submission.ID, second.Issues[0].SimilarTo)
}

func TestSubmitWarningAlertReferencesSubmission(t *testing.T) {
	svc, mem, _, user := newAdmission(t)
	mem.SeedSubmission(types.Submission{
		UserID:      user.ID,
		Title:       "Earlier idea",
		Description: "Something entirely different about parking spaces.",
		SubmittedAt: clock.Add(-2 * time.Minute),
	})

	result, err := svc.Submit(context.Background(), user.ID, idea("Automate expense reports"))
	require.NoError(t, err)

	require.True(t, result.Accepted)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, types.IssueRapidSubmission, result.Warnings[0].Type)
	assert.Equal(t, result.Warnings, result.Submission.Warnings)

	alerts := mem.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, types.AlertSubmissionWarning, alerts[0].Type)
	assert.Equal(t, result.Submission.ID, alerts[0].Payload.SubmissionID)
}

func TestSubmitAdvisoryOpinion(t *testing.T) {
	suggested := 500.0
	allow := false
	scorer := &mockScorer{}
	scorer.On("Consult", mock.Anything, mock.MatchedBy(func(req advisory.Request) bool {
		return req.HistoryCount == 0 && req.Submission.Title == "Automate expense reports"
	})).Return(&types.AdvisoryOpinion{
		QualityScore:         8,
		SuggestedImpactScore: &suggested,
		RedFlags:             []string{"Vague savings estimate"},
		ShouldAllow:          &allow,
	}, nil).Once()

	svc, mem, _, user := newAdmission(t, services.WithAdvisoryScorer(scorer, time.Second))
	assert.True(t, svc.AdvisoryConfigured())

	result, err := svc.Submit(context.Background(), user.ID, idea("Automate expense reports"))
	require.NoError(t, err)

	require.True(t, result.Accepted, "advisory opinions never block")
	assert.Equal(t, 200, result.Submission.Score)
	require.NotNil(t, result.Submission.Advisory)
	assert.Equal(t, 8.0, result.Submission.Advisory.QualityScore)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, types.IssueAdvisoryFlagged, result.Warnings[0].Type)
	assert.Equal(t, "Advisory analysis flagged: Vague savings estimate", result.Warnings[0].Message)

	alerts := mem.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, types.AlertSubmissionWarning, alerts[0].Type)
	scorer.AssertExpectations(t)
}

func TestSubmitAdvisoryNeverOverridesBlock(t *testing.T) {
	suggested := 90.0
	allow := true
	scorer := &mockScorer{}
	scorer.On("Consult", mock.Anything, mock.Anything).
		Return(&types.AdvisoryOpinion{SuggestedImpactScore: &suggested, ShouldAllow: &allow}, nil)

	svc, mem, _, user := newAdmission(t, services.WithAdvisoryScorer(scorer, time.Second))
	input := idea("Automate expense reports")
	input.Description = "short"

	result, err := svc.Submit(context.Background(), user.ID, input)
	require.NoError(t, err)

	assert.False(t, result.Accepted)
	assert.NotNil(t, result.Advisory)
	require.Len(t, mem.Alerts(), 1)
	assert.NotNil(t, mem.Alerts()[0].Payload.Advisory)
}

func TestSubmitAdvisoryUnavailable(t *testing.T) {
	scorer := &mockScorer{}
	scorer.On("Consult", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	svc, mem, _, user := newAdmission(t, services.WithAdvisoryScorer(scorer, time.Second))

	result, err := svc.Submit(context.Background(), user.ID, idea("Automate expense reports"))
	require.NoError(t, err)

	assert.True(t, result.Accepted)
	assert.Nil(t, result.Advisory)
	assert.Equal(t, 100, result.Submission.Score)
	assert.Empty(t, mem.Alerts())
}

func TestSubmitAdvisoryTimeout(t *testing.T) {
	scorer := &mockScorer{}
	scorer.On("Consult", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded)

	svc, _, _, user := newAdmission(t, services.WithAdvisoryScorer(scorer, 20*time.Millisecond))

	result, err := svc.Submit(context.Background(), user.ID, idea("Automate expense reports"))
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Nil(t, result.Advisory)
}

func TestSubmitConsultsAdvisoryOutsideTransaction(t *testing.T) {
	scorer := &mockScorer{}
	svc, mem, _, user := newAdmission(t, services.WithAdvisoryScorer(scorer, time.Second))

	var inTx bool
	scorer.On("Consult", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { inTx = mem.InTransaction() }).
		Return(&types.AdvisoryOpinion{QualityScore: 7}, nil).Once()

	result, err := svc.Submit(context.Background(), user.ID, idea("Automate expense reports"))
	require.NoError(t, err)

	assert.False(t, inTx, "no transaction is held while the scorer runs")
	require.True(t, result.Accepted)
	require.NotNil(t, result.Submission.Advisory)
	assert.Equal(t, 7.0, result.Submission.Advisory.QualityScore)
	scorer.AssertExpectations(t)
}

func TestSubmitBlocksOnHistoryCommittedDuringConsult(t *testing.T) {
	scorer := &mockScorer{}
	svc, mem, _, user := newAdmission(t, services.WithAdvisoryScorer(scorer, time.Second))
	input := idea("Automate expense reports")

	allow := true
	scorer.On("Consult", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			mem.SeedSubmission(types.Submission{
				UserID:      user.ID,
				Title:       input.Title,
				Description: input.Description,
				SubmittedAt: clock.Add(-time.Hour),
			})
		}).
		Return(&types.AdvisoryOpinion{ShouldAllow: &allow}, nil).Once()

	result, err := svc.Submit(context.Background(), user.ID, input)
	require.NoError(t, err)

	assert.False(t, result.Accepted, "the locked re-evaluation sees the concurrent duplicate")
	require.Len(t, result.Issues, 1)
	assert.Equal(t, types.IssueDuplicate, result.Issues[0].Type)
	assert.NotNil(t, result.Advisory)
	assert.Len(t, mem.Submissions(), 1)
}

func TestSubmitLowImpactWarning(t *testing.T) {
	suggested := 10.0
	scorer := &mockScorer{}
	scorer.On("Consult", mock.Anything, mock.Anything).
		Return(&types.AdvisoryOpinion{SuggestedImpactScore: &suggested}, nil)

	svc, _, _, user := newAdmission(t, services.WithAdvisoryScorer(scorer, time.Second))

	result, err := svc.Submit(context.Background(), user.ID, idea("Automate expense reports"))
	require.NoError(t, err)

	require.True(t, result.Accepted)
	assert.Equal(t, 10, result.Submission.Score)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, types.IssueLowImpact, result.Warnings[0].Type)
	assert.Equal(t, types.SeverityLow, result.Warnings[0].Severity)
}

func TestSubmitPersistenceFailureLeavesNothingBehind(t *testing.T) {
	svc, mem, publisher, user := newAdmission(t)
	mem.SeedSubmission(types.Submission{
		UserID:      user.ID,
		Title:       "Earlier idea",
		Description: "Something entirely different about parking spaces.",
		SubmittedAt: clock.Add(-time.Minute),
	})
	mem.AlertErr = errors.New("disk full")

	_, err := svc.Submit(context.Background(), user.ID, idea("Automate expense reports"))
	require.Error(t, err)

	assert.Len(t, mem.Submissions(), 1, "submission insert is rolled back with the failed alert")
	assert.Empty(t, mem.Alerts())
	assert.Empty(t, publisher.Alerts)
}

func TestSubmitUsesCurrentRules(t *testing.T) {
	svc, mem, _, user := newAdmission(t)
	rules := types.DefaultDetectionRules()
	rules.MinDescriptionLength = 500
	mem.SetRules(rules)

	result, err := svc.Submit(context.Background(), user.ID, idea("Automate expense reports"))
	require.NoError(t, err)
	assert.False(t, result.Accepted)
}

func TestSubmitConcurrentAdmissionsRespectDailyLimit(t *testing.T) {
	svc, mem, _, user := newAdmission(t)
	rules := types.DefaultDetectionRules()
	rules.RapidSubmissionWindowMinutes = 0
	rules.DuplicateSimilarityThreshold = 1
	mem.SetRules(rules)

	titles := []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot"}
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for _, title := range titles {
		wg.Add(1)
		go func(title string) {
			defer wg.Done()
			result, err := svc.Submit(context.Background(), user.ID, idea(title))
			if assert.NoError(t, err) && result.Accepted {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(title)
	}
	wg.Wait()

	assert.Equal(t, rules.MaxSubmissionsPerDay, accepted)
	assert.Len(t, mem.Submissions(), rules.MaxSubmissionsPerDay)
}
