package detection

import (
	"fmt"

	"github.com/projectsentinel/apiserver/types"
)

// minHistoryForRatio is the history size from which the solution ratio is enforced.
const minHistoryForRatio = 5

// Evaluate applies every detection check to a submission. Checks are
// independent and all of them run; the verdict is allowed when no finding
// blocks. history must be ordered by submission time, oldest first.
func Evaluate(
	submission types.SubmissionInput,
	history []types.Submission,
	metrics HistoryMetrics,
	rules types.DetectionRules,
) types.Verdict {
	issues := make([]types.Issue, 0)
	warnings := make([]types.Issue, 0)

	if metrics.DailyCount >= rules.MaxSubmissionsPerDay {
		issues = append(issues, types.Issue{
			Type:     types.IssueExcessiveDaily,
			Severity: types.SeverityHigh,
			Message:  fmt.Sprintf("User has submitted %d ideas today (max: %d)", metrics.DailyCount, rules.MaxSubmissionsPerDay),
			Action:   types.ActionBlock,
			Evidence: map[string]any{"daily_count": metrics.DailyCount, "limit": rules.MaxSubmissionsPerDay},
		})
	}

	if metrics.WeeklyCount >= rules.MaxSubmissionsPerWeek {
		warnings = append(warnings, types.Issue{
			Type:     types.IssueExcessiveWeekly,
			Severity: types.SeverityMedium,
			Message:  fmt.Sprintf("User has submitted %d ideas this week (max: %d)", metrics.WeeklyCount, rules.MaxSubmissionsPerWeek),
			Action:   types.ActionWarn,
			Evidence: map[string]any{"weekly_count": metrics.WeeklyCount, "limit": rules.MaxSubmissionsPerWeek},
		})
	}

	if metrics.SolutionRatio < rules.MinSolutionRatio && metrics.HistorySize >= minHistoryForRatio {
		warnings = append(warnings, types.Issue{
			Type:     types.IssueLowSolutionRatio,
			Severity: types.SeverityMedium,
			Message: fmt.Sprintf("Only %.0f%% of submissions include solutions (required: %.0f%%)",
				metrics.SolutionRatio*100, rules.MinSolutionRatio*100),
			Action:         types.ActionWarn,
			Recommendation: "Please provide solutions for your process improvement ideas to earn bonus points",
			Evidence:       map[string]any{"solution_ratio": metrics.SolutionRatio, "required": rules.MinSolutionRatio},
		})
	}

	if length := TextLength(submission.Description); length < rules.MinDescriptionLength {
		issues = append(issues, types.Issue{
			Type:     types.IssueShortDescription,
			Severity: types.SeverityMedium,
			Message:  fmt.Sprintf("Description too short (%d chars, minimum: %d)", length, rules.MinDescriptionLength),
			Action:   types.ActionBlock,
			Evidence: map[string]any{"length": length, "minimum": rules.MinDescriptionLength},
		})
	}

	if metrics.HasPrevious && metrics.MinutesSinceLast < float64(rules.RapidSubmissionWindowMinutes) {
		warnings = append(warnings, types.Issue{
			Type:     types.IssueRapidSubmission,
			Severity: types.SeverityLow,
			Message:  fmt.Sprintf("Submission within %.1f minutes of previous submission", metrics.MinutesSinceLast),
			Action:   types.ActionWarn,
			Evidence: map[string]any{"minutes_since_last": metrics.MinutesSinceLast, "window_minutes": rules.RapidSubmissionWindowMinutes},
		})
	}

	if match, similarity, ok := FindDuplicate(submission, history, rules.DuplicateSimilarityThreshold); ok {
		issues = append(issues, types.Issue{
			Type:      types.IssueDuplicate,
			Severity:  types.SeverityHigh,
			Message:   fmt.Sprintf("Submission is %.0f%% similar to previous submission", similarity*100),
			Action:    types.ActionBlock,
			SimilarTo: match.ID,
			Evidence:  map[string]any{"similarity": similarity, "threshold": rules.DuplicateSimilarityThreshold},
		})
	}

	return types.Verdict{
		Allowed:  !hasBlocking(issues),
		Issues:   issues,
		Warnings: warnings,
	}
}

// FindDuplicate returns the first submission in history whose title and
// description reach threshold similarity with the candidate.
func FindDuplicate(submission types.SubmissionInput, history []types.Submission, threshold float64) (types.Submission, float64, bool) {
	candidate := comparableText(submission.Title, submission.Description)
	for _, previous := range history {
		similarity := Similarity(candidate, comparableText(previous.Title, previous.Description))
		if similarity >= threshold {
			return previous, similarity, true
		}
	}
	return types.Submission{}, 0, false
}

func hasBlocking(issues []types.Issue) bool {
	for _, issue := range issues {
		if issue.Action == types.ActionBlock {
			return true
		}
	}
	return false
}
