package detection

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/projectsentinel/apiserver/types"
)

var fixedNow = time.Date(2026, time.March, 11, 15, 0, 0, 0, time.UTC)

func submittedAt(ts time.Time) types.Submission {
	return types.Submission{SubmittedAt: ts}
}

func TestCountOnSameCalendarDay(t *testing.T) {
	history := []types.Submission{
		submittedAt(fixedNow.AddDate(0, 0, -1)),
		submittedAt(time.Date(2026, time.March, 10, 23, 59, 59, 0, time.UTC)),
		submittedAt(time.Date(2026, time.March, 11, 0, 0, 0, 0, time.UTC)),
		submittedAt(fixedNow.Add(-time.Hour)),
	}
	assert.Equal(t, 2, CountOnSameCalendarDay(history, fixedNow))
	assert.Equal(t, 0, CountOnSameCalendarDay(nil, fixedNow))
}

func TestCountOnSameCalendarDayUsesLocation(t *testing.T) {
	zone := time.FixedZone("UTC+10", 10*60*60)
	now := time.Date(2026, time.March, 11, 8, 0, 0, 0, zone)
	history := []types.Submission{
		// 2026-03-10 23:00 UTC is 2026-03-11 09:00 in UTC+10.
		submittedAt(time.Date(2026, time.March, 10, 23, 0, 0, 0, time.UTC)),
		// 2026-03-10 13:00 UTC is 2026-03-10 23:00 in UTC+10.
		submittedAt(time.Date(2026, time.March, 10, 13, 0, 0, 0, time.UTC)),
	}
	assert.Equal(t, 1, CountOnSameCalendarDay(history, now))
}

func TestCountWithinTrailingWindow(t *testing.T) {
	history := []types.Submission{
		submittedAt(fixedNow.AddDate(0, 0, -8)),
		submittedAt(fixedNow.AddDate(0, 0, -7)),
		submittedAt(fixedNow.AddDate(0, 0, -3)),
		submittedAt(fixedNow.Add(-time.Minute)),
	}
	assert.Equal(t, 3, CountWithinTrailingWindow(history, fixedNow, 7))
	assert.Equal(t, 1, CountWithinTrailingWindow(history, fixedNow, 1))
}

func TestSolutionRatio(t *testing.T) {
	long := strings.Repeat("s", 50)
	history := []types.Submission{
		{Solution: long},
		{Solution: long[:49]},
		{Solution: ""},
		{Solution: long + "more"},
	}
	assert.Equal(t, 0.5, SolutionRatio(history, 50))
	assert.Equal(t, 1.0, SolutionRatio(nil, 50))
}

func TestSolutionRatioCountsCharacters(t *testing.T) {
	// Ten three-byte runes.
	history := []types.Submission{{Solution: strings.Repeat("改", 10)}}
	assert.Equal(t, 1.0, SolutionRatio(history, 10))
	assert.Equal(t, 0.0, SolutionRatio(history, 11))
}

func TestMinutesSinceLastSubmission(t *testing.T) {
	_, ok := MinutesSinceLastSubmission(nil, fixedNow)
	assert.False(t, ok)

	history := []types.Submission{
		submittedAt(fixedNow.Add(-90 * time.Minute)),
		submittedAt(fixedNow.Add(-3 * time.Minute)),
		submittedAt(fixedNow.Add(-30 * time.Minute)),
	}
	minutes, ok := MinutesSinceLastSubmission(history, fixedNow)
	assert.True(t, ok)
	assert.InDelta(t, 3.0, minutes, 1e-9)
}

func TestAnalyzeHistoryEmpty(t *testing.T) {
	metrics := AnalyzeHistory(nil, fixedNow, types.DefaultDetectionRules())

	assert.Equal(t, HistoryMetrics{SolutionRatio: 1}, metrics)
	assert.False(t, metrics.HasPrevious)
}

func TestAnalyzeHistory(t *testing.T) {
	rules := types.DefaultDetectionRules()
	history := []types.Submission{
		{SubmittedAt: fixedNow.AddDate(0, 0, -10)},
		{SubmittedAt: fixedNow.AddDate(0, 0, -2), Solution: strings.Repeat("x", 60)},
		{SubmittedAt: fixedNow.Add(-2 * time.Hour)},
		{SubmittedAt: fixedNow.Add(-10 * time.Minute), Solution: strings.Repeat("x", 60)},
	}

	metrics := AnalyzeHistory(history, fixedNow, rules)

	assert.Equal(t, 4, metrics.HistorySize)
	assert.Equal(t, 2, metrics.DailyCount)
	assert.Equal(t, 3, metrics.WeeklyCount)
	assert.Equal(t, 0.5, metrics.SolutionRatio)
	assert.True(t, metrics.HasPrevious)
	assert.InDelta(t, 10.0, metrics.MinutesSinceLast, 1e-9)
}
