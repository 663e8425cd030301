package detection

import (
	"time"
	"unicode/utf8"

	"github.com/projectsentinel/apiserver/types"
)

const weeklyWindowDays = 7

// HistoryMetrics are the figures derived from a user's prior submissions
// at the moment a new submission is evaluated.
type HistoryMetrics struct {
	HistorySize   int
	DailyCount    int
	WeeklyCount   int
	SolutionRatio float64

	// MinutesSinceLast is only meaningful when HasPrevious is true.
	MinutesSinceLast float64
	HasPrevious      bool
}

// AnalyzeHistory computes every metric the rule evaluator needs.
func AnalyzeHistory(history []types.Submission, now time.Time, rules types.DetectionRules) HistoryMetrics {
	minutes, ok := MinutesSinceLastSubmission(history, now)
	return HistoryMetrics{
		HistorySize:      len(history),
		DailyCount:       CountOnSameCalendarDay(history, now),
		WeeklyCount:      CountWithinTrailingWindow(history, now, weeklyWindowDays),
		SolutionRatio:    SolutionRatio(history, rules.MinSolutionLength),
		MinutesSinceLast: minutes,
		HasPrevious:      ok,
	}
}

// CountOnSameCalendarDay counts submissions made on now's calendar day,
// in now's location.
func CountOnSameCalendarDay(history []types.Submission, now time.Time) int {
	year, month, day := now.Date()
	count := 0
	for _, submission := range history {
		y, m, d := submission.SubmittedAt.In(now.Location()).Date()
		if y == year && m == month && d == day {
			count++
		}
	}
	return count
}

// CountWithinTrailingWindow counts submissions made at or after now minus days.
func CountWithinTrailingWindow(history []types.Submission, now time.Time, days int) int {
	since := now.AddDate(0, 0, -days)
	count := 0
	for _, submission := range history {
		if !submission.SubmittedAt.Before(since) {
			count++
		}
	}
	return count
}

// SolutionRatio is the fraction of submissions whose solution has at least
// minSolutionLength characters. An empty history has ratio 1.
func SolutionRatio(history []types.Submission, minSolutionLength int) float64 {
	if len(history) == 0 {
		return 1
	}
	withSolution := 0
	for _, submission := range history {
		if HasSolution(submission.Solution, minSolutionLength) {
			withSolution++
		}
	}
	return float64(withSolution) / float64(len(history))
}

// MinutesSinceLastSubmission returns the minutes elapsed since the latest
// submission in history. The second result is false for an empty history.
func MinutesSinceLastSubmission(history []types.Submission, now time.Time) (float64, bool) {
	if len(history) == 0 {
		return 0, false
	}
	latest := history[0].SubmittedAt
	for _, submission := range history[1:] {
		if submission.SubmittedAt.After(latest) {
			latest = submission.SubmittedAt
		}
	}
	return now.Sub(latest).Minutes(), true
}

// HasSolution reports whether solution is long enough to count as provided.
func HasSolution(solution string, minLength int) bool {
	return solution != "" && TextLength(solution) >= minLength
}

// TextLength counts characters, not bytes.
func TextLength(text string) int {
	return utf8.RuneCountInString(text)
}
