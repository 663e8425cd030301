// Package advisory consults an external text-analysis model for an opinion
// on a submission. Opinions are advisory: callers treat every error as the
// capability being unavailable.
package advisory

import (
	"context"

	"github.com/projectsentinel/apiserver/types"
)

// Scorer returns an advisory opinion for a submission.
type Scorer interface {
	Consult(ctx context.Context, req Request) (*types.AdvisoryOpinion, error)
}

// Request is what the scorer is told about a submission.
type Request struct {
	Submission types.SubmissionInput

	// HistoryCount is the number of prior submissions by the same user.
	HistoryCount int

	// RecentTitles are the titles of the latest prior submissions, oldest first.
	RecentTitles []string

	Issues   []types.Issue
	Warnings []types.Issue
}

// recentTitleCount is how many prior titles are included in a request.
const recentTitleCount = 3

// NewRequest builds a request from the submission, its history ordered
// oldest first, and the local findings.
func NewRequest(submission types.SubmissionInput, history []types.Submission, verdict types.Verdict) Request {
	start := len(history) - recentTitleCount
	if start < 0 {
		start = 0
	}
	titles := make([]string, 0, len(history)-start)
	for _, previous := range history[start:] {
		titles = append(titles, previous.Title)
	}
	return Request{
		Submission:   submission,
		HistoryCount: len(history),
		RecentTitles: titles,
		Issues:       verdict.Issues,
		Warnings:     verdict.Warnings,
	}
}
