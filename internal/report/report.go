// Package report builds the gaming report and the exported leaderboard
// workbook.
package report

import (
	"time"

	"github.com/montanaflynn/stats"

	"github.com/projectsentinel/apiserver/internal/detection"
	"github.com/projectsentinel/apiserver/types"
)

// Risk factors raised against a user.
const (
	RiskExcessiveSubmissions  = "EXCESSIVE_SUBMISSIONS"
	RiskLowSolutionRatio      = "LOW_SOLUTION_RATIO"
	RiskLowQualityDescription = "LOW_QUALITY_DESCRIPTIONS"
)

const minHistoryForRatio = 5

// Input is the data a gaming report is built from.
type Input struct {
	Users       []types.User
	Submissions []types.Submission
	Alerts      []types.GamingAlert
	Rules       types.DetectionRules
	Now         time.Time
}

// Build analyses every user and summarises the whole population.
func Build(in Input) (types.GamingReport, error) {
	byUser := make(map[int][]types.Submission, len(in.Users))
	for _, submission := range in.Submissions {
		byUser[submission.UserID] = append(byUser[submission.UserID], submission)
	}

	report := types.GamingReport{
		GeneratedAt:      in.Now,
		TotalUsers:       len(in.Users),
		TotalSubmissions: len(in.Submissions),
		FlaggedUsers:     make([]types.FlaggedUser, 0),
	}

	counts := make([]float64, 0, len(in.Users))
	for _, user := range in.Users {
		submissions := byUser[user.ID]
		counts = append(counts, float64(len(submissions)))
		if flagged, ok := assess(user, submissions, in.Rules); ok {
			report.FlaggedUsers = append(report.FlaggedUsers, flagged)
		}
	}

	summary, err := summarize(counts)
	if err != nil {
		return types.GamingReport{}, err
	}
	summary.UsersWithWarnings = len(report.FlaggedUsers)
	for _, alert := range in.Alerts {
		if alert.Type == types.AlertSubmissionBlocked {
			summary.BlockedSubmissions++
		}
		if !alert.Acknowledged {
			summary.UnacknowledgedAlerts++
		}
	}
	report.Statistics = summary
	return report, nil
}

func assess(user types.User, submissions []types.Submission, rules types.DetectionRules) (types.FlaggedUser, bool) {
	if len(submissions) == 0 {
		return types.FlaggedUser{}, false
	}

	ratio := detection.SolutionRatio(submissions, rules.MinSolutionLength)
	lengths := make([]float64, 0, len(submissions))
	for _, submission := range submissions {
		lengths = append(lengths, float64(detection.TextLength(submission.Description)))
	}
	avgLength, err := stats.Mean(lengths)
	if err != nil {
		avgLength = 0
	}

	var risks []string
	if len(submissions) > rules.MaxSubmissionsPerWeek {
		risks = append(risks, RiskExcessiveSubmissions)
	}
	if ratio < rules.MinSolutionRatio && len(submissions) >= minHistoryForRatio {
		risks = append(risks, RiskLowSolutionRatio)
	}
	if avgLength < float64(rules.MinDescriptionLength) {
		risks = append(risks, RiskLowQualityDescription)
	}
	if len(risks) == 0 {
		return types.FlaggedUser{}, false
	}

	level := types.SeverityMedium
	if len(risks) >= 2 {
		level = types.SeverityHigh
	}
	return types.FlaggedUser{
		UserID:               user.ID,
		Name:                 user.Name,
		SubmissionCount:      len(submissions),
		SolutionRatio:        ratio,
		AvgDescriptionLength: avgLength,
		RiskFactors:          risks,
		RiskLevel:            level,
	}, true
}

func summarize(counts []float64) (types.ReportStatistics, error) {
	if len(counts) == 0 {
		return types.ReportStatistics{}, nil
	}
	mean, err := stats.Mean(counts)
	if err != nil {
		return types.ReportStatistics{}, err
	}
	median, err := stats.Median(counts)
	if err != nil {
		return types.ReportStatistics{}, err
	}
	return types.ReportStatistics{
		AvgSubmissionsPerUser:    mean,
		MedianSubmissionsPerUser: median,
	}, nil
}
