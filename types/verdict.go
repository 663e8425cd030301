package types

import "time"

// Verdict is the outcome of evaluating one submission against the
// detection rules. It is transient; an audit copy is kept on the
// submission or on a gaming alert.
type Verdict struct {
	// Allowed is true when no issue carries the BLOCK action.
	Allowed bool `json:"allowed"`

	// Issues are the findings that block admission, in check order.
	Issues []Issue `json:"issues"`

	// Warnings are the non-blocking findings, in check order.
	Warnings []Issue `json:"warnings"`

	// Advisory is the optional opinion returned by the advisory scorer.
	Advisory *AdvisoryOpinion `json:"advisory,omitempty"`
}

// BlockingMessages returns the messages of every BLOCK issue in order.
func (v Verdict) BlockingMessages() []string {
	var messages []string
	for _, issue := range v.Issues {
		if issue.Action == ActionBlock {
			messages = append(messages, issue.Message)
		}
	}
	return messages
}

// Issue is a single finding raised by a detection check.
type Issue struct {
	// Type identifies the check that raised the finding.
	Type IssueType `json:"type"`

	// Severity ranks the finding for reviewers.
	Severity Severity `json:"severity"`

	// Message is the human-readable explanation shown to the submitter.
	Message string `json:"message"`

	// Action is BLOCK for gatekeeping findings and WARN for coaching ones.
	Action Action `json:"action"`

	// Recommendation is an optional hint on how to avoid the finding.
	Recommendation string `json:"recommendation,omitempty"`

	// SimilarTo references the earlier submission a duplicate matched.
	SimilarTo int `json:"similar_to,omitempty"`

	// Evidence carries the measured values that triggered the finding.
	Evidence map[string]any `json:"evidence,omitempty"`
}

// IssueType names a detection check.
type IssueType string

// Detection checks.
const (
	IssueExcessiveDaily   IssueType = "EXCESSIVE_DAILY_SUBMISSIONS"
	IssueExcessiveWeekly  IssueType = "EXCESSIVE_WEEKLY_SUBMISSIONS"
	IssueLowSolutionRatio IssueType = "LOW_SOLUTION_RATIO"
	IssueShortDescription IssueType = "INSUFFICIENT_DESCRIPTION"
	IssueRapidSubmission  IssueType = "RAPID_SUBMISSION"
	IssueDuplicate        IssueType = "DUPLICATE_SUBMISSION"
	IssueAdvisoryFlagged  IssueType = "ADVISORY_FLAGGED"
	IssueLowImpact        IssueType = "LOW_IMPACT_SCORE"
)

// Severity ranks an issue.
type Severity string

// Issue severities.
const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// Action is what admission does with an issue.
type Action string

// Issue actions.
const (
	ActionBlock Action = "BLOCK"
	ActionWarn  Action = "WARN"
)

// AdvisoryOpinion is the structured answer of the external text-analysis
// capability. It is advisory only and never overrides a BLOCK.
type AdvisoryOpinion struct {
	// QualityScore rates the genuine value of the idea from 1 to 10.
	QualityScore float64 `json:"quality_score"`

	// GamingLikelihood estimates the probability of gaming, 0 to 100.
	GamingLikelihood float64 `json:"gaming_likelihood"`

	// SuggestedImpactScore is the suggested point value. Nil when the
	// response did not carry a numeric value.
	SuggestedImpactScore *float64 `json:"suggested_impact_score,omitempty"`

	// RedFlags lists concerns raised by the analysis.
	RedFlags []string `json:"red_flags,omitempty"`

	// Recommendations lists suggested improvements.
	Recommendations []string `json:"recommendations,omitempty"`

	// ShouldAllow is the capability's own allow/deny opinion, if given.
	ShouldAllow *bool `json:"should_allow,omitempty"`

	// Reasoning is the free-text explanation of the opinion.
	Reasoning string `json:"reasoning,omitempty"`

	// Model names the model that produced the opinion.
	Model string `json:"model,omitempty"`

	// ConsultedAt is when the opinion was obtained.
	ConsultedAt time.Time `json:"consulted_at"`
}
