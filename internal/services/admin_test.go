package services_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projectsentinel/apiserver/internal/services"
	"github.com/projectsentinel/apiserver/internal/store"
	"github.com/projectsentinel/apiserver/internal/testutil"
	"github.com/projectsentinel/apiserver/types"
)

func TestRegisterCreatesLeaderboardEntry(t *testing.T) {
	mem := testutil.NewMemory()
	cache := &testutil.Cache{}
	svc := services.NewUserService(mem.Repositories(), mem, cache)

	user, err := svc.Register(context.Background(), types.User{Username: "grace", Name: "Grace", Region: "EMEA", IsSentinel: true})
	require.NoError(t, err)

	entry := mem.Entry(user.ID)
	assert.Equal(t, user.ID, entry.UserID)
	assert.Equal(t, "Grace", entry.DisplayName)
	assert.Equal(t, "EMEA", entry.Region)
	assert.True(t, entry.IsSentinel)
	assert.Zero(t, entry.TotalPoints)
	assert.Equal(t, 1, cache.Invalidations)

	_, err = svc.Register(context.Background(), types.User{Username: "grace"})
	assert.ErrorIs(t, err, services.ErrConflict)

	found, err := svc.GetByUsername(context.Background(), "grace")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = svc.GetByID(context.Background(), 42)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRulesUpdate(t *testing.T) {
	mem := testutil.NewMemory()
	svc := services.NewRulesService(mem.Repositories().Rules)

	rules, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.DefaultDetectionRules(), rules)

	rules.MaxSubmissionsPerDay = 5
	updated, err := svc.Update(context.Background(), rules)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.MaxSubmissionsPerDay)
	assert.False(t, updated.UpdatedAt.IsZero())

	rules.MinSolutionRatio = 1.5
	_, err = svc.Update(context.Background(), rules)
	assert.ErrorIs(t, err, services.ErrInvalidRules)

	current, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, current.MaxSubmissionsPerDay)
	assert.Equal(t, 0.4, current.MinSolutionRatio)
}

func TestAlertAcknowledgement(t *testing.T) {
	mem := testutil.NewMemory()
	repos := mem.Repositories()
	svc := services.NewAlertService(repos.Alerts)
	ctx := context.Background()

	for _, userID := range []int{1, 1, 2} {
		_, err := repos.Alerts.Append(ctx, types.GamingAlert{UserID: userID, Type: types.AlertSubmissionBlocked})
		require.NoError(t, err)
	}

	first, err := svc.Acknowledge(ctx, 3)
	require.NoError(t, err)
	assert.True(t, first.Acknowledged)
	require.NotNil(t, first.AcknowledgedAt)

	again, err := svc.Acknowledge(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, *first.AcknowledgedAt, *again.AcknowledgedAt)

	_, err = svc.Acknowledge(ctx, 99)
	assert.ErrorIs(t, err, store.ErrNotFound)

	n, err := svc.AcknowledgeUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	open := false
	items, total, err := svc.List(ctx, types.AlertFilter{Acknowledged: &open}, 20, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)

	items, total, err = svc.List(ctx, types.AlertFilter{}, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, 3, items[0].ID, "newest first")
	assert.Len(t, mem.Alerts(), 3, "acknowledging never deletes")
}

func TestStatistics(t *testing.T) {
	mem := testutil.NewMemory()
	user := mem.SeedUser(types.User{Username: "ada"})
	mem.SeedSubmission(types.Submission{UserID: user.ID})
	mem.SeedSubmission(types.Submission{UserID: user.ID, Status: types.StatusApproved})
	mem.SeedSubmission(types.Submission{UserID: user.ID, Status: types.StatusRejected})

	got, err := services.NewStatisticsService(mem.Repositories()).Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.Statistics{TotalUsers: 1, TotalSubmissions: 3, PendingSubmissions: 1}, got)
}

func TestLeaderboardSentinelView(t *testing.T) {
	mem := testutil.NewMemory()
	a := mem.SeedUser(types.User{Username: "a", Name: "A"})
	b := mem.SeedUser(types.User{Username: "b", Name: "B", IsSentinel: true})
	c := mem.SeedUser(types.User{Username: "c", Name: "C", IsSentinel: true})
	mem.SetEntry(types.LeaderboardEntry{UserID: a.ID, TotalPoints: 300})
	mem.SetEntry(types.LeaderboardEntry{UserID: b.ID, TotalPoints: 100, IsSentinel: true})
	mem.SetEntry(types.LeaderboardEntry{UserID: c.ID, TotalPoints: 200, IsSentinel: true})

	cache := &testutil.Cache{}
	svc := services.NewLeaderboardService(mem.Repositories().Leaderboard, cache, nil)

	sentinels, err := svc.List(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, sentinels, 2)
	assert.Equal(t, c.ID, sentinels[0].UserID)
	assert.Equal(t, 1, sentinels[0].Rank)
	assert.Equal(t, 2, sentinels[1].Rank)

	// Served from the cache while it stays valid.
	mem.SetEntry(types.LeaderboardEntry{UserID: b.ID, TotalPoints: 900, IsSentinel: true})
	all, err := svc.List(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, a.ID, all[0].UserID)
}

// interleavedLeaderboard runs after once, right after the first List returns.
type interleavedLeaderboard struct {
	services.LeaderboardRepository
	once  sync.Once
	after func()
}

func (r *interleavedLeaderboard) List(ctx context.Context) ([]types.LeaderboardEntry, error) {
	entries, err := r.LeaderboardRepository.List(ctx)
	r.once.Do(r.after)
	return entries, err
}

func TestLeaderboardSnapshotLoadedBeforeReviewIsNotCached(t *testing.T) {
	f := newReviewFixture(t)
	submission := f.pendingSubmission(70)

	repo := &interleavedLeaderboard{LeaderboardRepository: f.mem.Repositories().Leaderboard}
	repo.after = func() {
		_, err := f.svc.Review(context.Background(), submission.ID, f.admin.ID, services.ReviewDecision{Status: types.StatusApproved})
		require.NoError(t, err)
	}
	board := services.NewLeaderboardService(repo, f.cache, nil)

	stale, err := board.List(context.Background(), false)
	require.NoError(t, err)
	require.NotEmpty(t, stale)
	assert.Zero(t, stale[0].TotalPoints, "loaded before the review committed")

	fresh, err := board.List(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, f.author.ID, fresh[0].UserID)
	assert.Equal(t, 70, fresh[0].TotalPoints)
}

func TestPrizeStandings(t *testing.T) {
	mem := testutil.NewMemory()
	a := mem.SeedUser(types.User{Username: "a", Name: "A"})
	b := mem.SeedUser(types.User{Username: "b", Name: "B", IsSentinel: true})
	mem.SetEntry(types.LeaderboardEntry{UserID: a.ID, TotalPoints: 300})
	mem.SetEntry(types.LeaderboardEntry{UserID: b.ID, TotalPoints: 100, IsSentinel: true})

	end := time.Now().Add(49 * time.Hour)
	for _, p := range []types.Prize{
		{QuarterName: "Q1 2026", Place: 1, Amount: 500, EndDate: end, IsActive: true},
		{QuarterName: "Q1 2026", Place: 2, Amount: 250, EndDate: end, IsActive: true},
		{QuarterName: "Q1 2026", Place: 3, Amount: 100, EndDate: end, IsActive: true},
		{QuarterName: "Q1 2026", Place: 1, Amount: 300, EndDate: end, IsActive: true, IsSentinelPrize: true},
		{QuarterName: "Q4 2025", Place: 1, Amount: 500, IsActive: false},
	} {
		mem.SeedPrize(p)
	}

	board := services.NewLeaderboardService(mem.Repositories().Leaderboard, nil, nil)
	svc := services.NewPrizeService(mem.Repositories().Prizes, board)

	got, err := svc.Standings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Q1 2026", got.Quarter)
	require.Len(t, got.Standings, 4)

	require.NotNil(t, got.Standings[0].Holder)
	assert.Equal(t, a.ID, got.Standings[0].Holder.UserID)
	require.NotNil(t, got.Standings[1].Holder)
	assert.Equal(t, b.ID, got.Standings[1].Holder.UserID)
	assert.Nil(t, got.Standings[2].Holder)
	require.NotNil(t, got.Standings[3].Holder)
	assert.Equal(t, b.ID, got.Standings[3].Holder.UserID)

	assert.False(t, got.Remaining.Expired)
	assert.Equal(t, 2, got.Remaining.Days)
}

func TestCountdownTo(t *testing.T) {
	now := time.Date(2026, 3, 29, 10, 0, 0, 0, time.UTC)

	got := services.CountdownTo(now.Add(2*24*time.Hour+3*time.Hour+15*time.Minute+30*time.Second), now)
	assert.Equal(t, types.Countdown{Days: 2, Hours: 3, Minutes: 15}, got)

	assert.Equal(t, types.Countdown{Expired: true}, services.CountdownTo(now, now))
	assert.Equal(t, types.Countdown{Expired: true}, services.CountdownTo(now.Add(-time.Hour), now))
}

type recordingStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	kinds   map[string]string
	err     error
}

func (s *recordingStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if s.err != nil {
		return s.err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objects == nil {
		s.objects = map[string][]byte{}
		s.kinds = map[string]string{}
	}
	s.objects[key] = buf.Bytes()
	s.kinds[key] = contentType
	return nil
}

func TestReportGenerateExports(t *testing.T) {
	mem := testutil.NewMemory()
	user := mem.SeedUser(types.User{Username: "spam", Name: "Spammer"})
	mem.SeedUser(types.User{Username: "idle", Name: "Idle"})
	for i := 0; i < 12; i++ {
		mem.SeedSubmission(types.Submission{UserID: user.ID, Title: "x", Description: "short"})
	}
	_, err := mem.Repositories().Alerts.Append(context.Background(), types.GamingAlert{UserID: user.ID, Type: types.AlertSubmissionBlocked})
	require.NoError(t, err)

	objects := &recordingStore{}
	board := services.NewLeaderboardService(mem.Repositories().Leaderboard, nil, nil)
	svc := services.NewReportService(mem.Repositories(), board, objects, nil)

	got, err := svc.Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, got.TotalUsers)
	assert.Equal(t, 12, got.TotalSubmissions)
	require.Len(t, got.FlaggedUsers, 1)
	assert.Equal(t, user.ID, got.FlaggedUsers[0].UserID)
	assert.Equal(t, types.SeverityHigh, got.FlaggedUsers[0].RiskLevel)
	assert.Equal(t, 1, got.Statistics.BlockedSubmissions)
	assert.Equal(t, 1, got.Statistics.UnacknowledgedAlerts)
	assert.Equal(t, 6.0, got.Statistics.AvgSubmissionsPerUser)

	assert.True(t, strings.HasPrefix(got.ReportKey, "reports/"))
	assert.True(t, strings.HasSuffix(got.ReportKey, "/gaming-report.json"))
	assert.True(t, strings.HasSuffix(got.LeaderboardKey, "/leaderboard.xlsx"))
	require.Contains(t, objects.objects, got.ReportKey)
	require.Contains(t, objects.objects, got.LeaderboardKey)
	assert.Equal(t, "application/json", objects.kinds[got.ReportKey])
	assert.Contains(t, string(objects.objects[got.ReportKey]), `"flagged_users"`)
}

func TestReportGenerateWithoutStorage(t *testing.T) {
	mem := testutil.NewMemory()
	board := services.NewLeaderboardService(mem.Repositories().Leaderboard, nil, nil)

	got, err := services.NewReportService(mem.Repositories(), board, nil, nil).Generate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got.ReportKey)
	assert.Empty(t, got.FlaggedUsers)
}

func TestReportGenerateExportFailure(t *testing.T) {
	mem := testutil.NewMemory()
	board := services.NewLeaderboardService(mem.Repositories().Leaderboard, nil, nil)
	objects := &recordingStore{err: errors.New("bucket unavailable")}

	_, err := services.NewReportService(mem.Repositories(), board, objects, nil).Generate(context.Background())
	assert.ErrorContains(t, err, "bucket unavailable")
}
