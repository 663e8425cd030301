package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/projectsentinel/apiserver/internal/advisory"
	"github.com/projectsentinel/apiserver/internal/detection"
	"github.com/projectsentinel/apiserver/internal/metrics"
	"github.com/projectsentinel/apiserver/types"
)

const defaultAdvisoryTimeout = 15 * time.Second

// AdmissionResult is the outcome of submitting an idea.
type AdmissionResult struct {
	Accepted bool `json:"accepted"`

	// Submission is the persisted record when Accepted is true.
	Submission *types.Submission `json:"submission,omitempty"`

	// RejectionMessage joins the blocking messages with newlines.
	RejectionMessage string `json:"rejection_message,omitempty"`

	Issues   []types.Issue          `json:"issues"`
	Warnings []types.Issue          `json:"warnings"`
	Advisory *types.AdvisoryOpinion `json:"advisory,omitempty"`
}

// AdmissionService decides whether new submissions are accepted.
type AdmissionService struct {
	tx              Transactor
	scorer          advisory.Scorer
	advisoryTimeout time.Duration
	publisher       EventPublisher
	logger          *slog.Logger
	now             func() time.Time
}

// AdmissionOption customizes an AdmissionService.
type AdmissionOption func(*AdmissionService)

// WithAdvisoryScorer enables advisory consultation. Without it admission
// relies on local heuristics only.
func WithAdvisoryScorer(scorer advisory.Scorer, timeout time.Duration) AdmissionOption {
	return func(s *AdmissionService) {
		s.scorer = scorer
		if timeout > 0 {
			s.advisoryTimeout = timeout
		}
	}
}

// WithAdmissionPublisher announces raised alerts after they are committed.
func WithAdmissionPublisher(publisher EventPublisher) AdmissionOption {
	return func(s *AdmissionService) {
		if publisher != nil {
			s.publisher = publisher
		}
	}
}

// WithAdmissionLogger sets the logger.
func WithAdmissionLogger(logger *slog.Logger) AdmissionOption {
	return func(s *AdmissionService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAdmissionClock overrides the time source.
func WithAdmissionClock(now func() time.Time) AdmissionOption {
	return func(s *AdmissionService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewAdmissionService(tx Transactor, opts ...AdmissionOption) *AdmissionService {
	s := &AdmissionService{
		tx:              tx,
		advisoryTimeout: defaultAdvisoryTimeout,
		publisher:       noopPublisher{},
		logger:          slog.Default(),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AdvisoryConfigured reports whether an advisory scorer was supplied.
func (s *AdmissionService) AdvisoryConfigured() bool {
	return s.scorer != nil
}

// Submit runs the admission pipeline for one submission. Policy rejections
// are reported through the result, not as errors. Admissions of the same
// user are serialized so rate checks always see every earlier submission;
// the advisory scorer is consulted before that lock is taken.
func (s *AdmissionService) Submit(ctx context.Context, userID int, input types.SubmissionInput) (AdmissionResult, error) {
	input = input.Normalize()
	if err := input.Validate(); err != nil {
		metrics.Admissions.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return AdmissionResult{}, fmt.Errorf("%w: %v", ErrInvalidSubmission, err)
	}

	opinion, err := s.preconsult(ctx, userID, input)
	if err != nil {
		metrics.Admissions.WithLabelValues(metrics.OutcomeFailed).Inc()
		s.logger.ErrorContext(ctx, "admission failed", "user_id", userID, "error", err)
		return AdmissionResult{}, err
	}

	var (
		result AdmissionResult
		alert  *types.GamingAlert
	)
	err = s.tx.InUserTx(ctx, userID, func(repos Repositories) error {
		result = AdmissionResult{}
		alert = nil

		history, err := repos.Submissions.History(ctx, userID)
		if err != nil {
			return fmt.Errorf("load history: %w", err)
		}
		rules, err := repos.Rules.Get(ctx)
		if err != nil {
			return fmt.Errorf("load rules: %w", err)
		}

		now := s.now()
		verdict := evaluate(input, history, rules, now, opinion)
		result.Issues = verdict.Issues
		result.Warnings = verdict.Warnings
		result.Advisory = verdict.Advisory

		if !verdict.Allowed {
			appended, err := repos.Alerts.Append(ctx, types.GamingAlert{
				UserID: userID,
				Type:   types.AlertSubmissionBlocked,
				Payload: types.AlertPayload{
					Submission: input,
					Issues:     verdict.Issues,
					Warnings:   verdict.Warnings,
					Advisory:   verdict.Advisory,
				},
				CreatedAt: now,
			})
			if err != nil {
				return fmt.Errorf("append alert: %w", err)
			}
			alert = &appended
			result.RejectionMessage = strings.Join(verdict.BlockingMessages(), "\n")
			return nil
		}

		submission, err := repos.Submissions.Create(ctx, types.Submission{
			UserID:      userID,
			Title:       input.Title,
			Description: input.Description,
			Solution:    input.Solution,
			Category:    input.Category,
			Status:      types.StatusPending,
			Score:       Score(input, rules, verdict.Advisory),
			Advisory:    verdict.Advisory,
			Warnings:    verdict.Warnings,
			SubmittedAt: now,
		})
		if err != nil {
			return fmt.Errorf("create submission: %w", err)
		}

		if len(verdict.Warnings) > 0 {
			appended, err := repos.Alerts.Append(ctx, types.GamingAlert{
				UserID: userID,
				Type:   types.AlertSubmissionWarning,
				Payload: types.AlertPayload{
					SubmissionID: submission.ID,
					Submission:   input,
					Warnings:     verdict.Warnings,
					Advisory:     verdict.Advisory,
				},
				CreatedAt: now,
			})
			if err != nil {
				return fmt.Errorf("append alert: %w", err)
			}
			alert = &appended
		}

		result.Accepted = true
		result.Submission = &submission
		return nil
	})
	if err != nil {
		metrics.Admissions.WithLabelValues(metrics.OutcomeFailed).Inc()
		s.logger.ErrorContext(ctx, "admission failed", "user_id", userID, "error", err)
		return AdmissionResult{}, err
	}

	if result.Accepted {
		metrics.Admissions.WithLabelValues(metrics.OutcomeAccepted).Inc()
		s.logger.DebugContext(ctx, "submission admitted",
			"user_id", userID, "submission_id", result.Submission.ID, "warnings", len(result.Warnings))
	} else {
		metrics.Admissions.WithLabelValues(metrics.OutcomeRejected).Inc()
		s.logger.InfoContext(ctx, "submission blocked", "user_id", userID, "issues", len(result.Issues))
	}

	if alert != nil {
		metrics.Alerts.WithLabelValues(string(alert.Type)).Inc()
		if err := s.publisher.PublishAlert(ctx, *alert); err != nil {
			s.logger.WarnContext(ctx, "publish alert failed", "alert_id", alert.ID, "error", err)
		}
	}
	return result, nil
}

// preconsult asks the advisory scorer about input against a snapshot of
// the user's history. It runs outside the per-user transaction so a slow
// scorer holds no database connection. Returns nil without a scorer.
func (s *AdmissionService) preconsult(ctx context.Context, userID int, input types.SubmissionInput) (*types.AdvisoryOpinion, error) {
	if s.scorer == nil {
		return nil, nil
	}

	var (
		history []types.Submission
		rules   types.DetectionRules
	)
	err := s.tx.InTx(ctx, func(repos Repositories) error {
		var err error
		if history, err = repos.Submissions.History(ctx, userID); err != nil {
			return fmt.Errorf("load history: %w", err)
		}
		if rules, err = repos.Rules.Get(ctx); err != nil {
			return fmt.Errorf("load rules: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	preliminary := evaluate(input, history, rules, s.now(), nil)
	return s.consult(ctx, advisory.NewRequest(input, history, preliminary)), nil
}

// evaluate runs the local checks and attaches opinion, when present, with
// the warnings it implies. The opinion never changes Allowed.
func evaluate(
	input types.SubmissionInput,
	history []types.Submission,
	rules types.DetectionRules,
	now time.Time,
	opinion *types.AdvisoryOpinion,
) types.Verdict {
	historyMetrics := detection.AnalyzeHistory(history, now, rules)
	verdict := detection.Evaluate(input, history, historyMetrics, rules)
	if opinion == nil {
		return verdict
	}
	verdict.Advisory = opinion
	verdict.Warnings = append(verdict.Warnings, AdvisoryWarnings(opinion, rules)...)
	return verdict
}

// consult returns nil whenever the scorer is unavailable.
func (s *AdmissionService) consult(ctx context.Context, req advisory.Request) *types.AdvisoryOpinion {
	ctx, cancel := context.WithTimeout(ctx, s.advisoryTimeout)
	defer cancel()

	start := time.Now()
	opinion, err := s.scorer.Consult(ctx, req)
	metrics.AdvisoryDuration.Observe(time.Since(start).Seconds())
	if err != nil || opinion == nil {
		metrics.AdvisoryRequests.WithLabelValues(metrics.AdvisoryUnavailable).Inc()
		s.logger.WarnContext(ctx, "advisory unavailable", "error", err)
		return nil
	}
	metrics.AdvisoryRequests.WithLabelValues(metrics.AdvisoryOK).Inc()
	return opinion
}

// AdvisoryWarnings turns an advisory opinion into non-blocking findings.
func AdvisoryWarnings(opinion *types.AdvisoryOpinion, rules types.DetectionRules) []types.Issue {
	var warnings []types.Issue

	denied := opinion.ShouldAllow != nil && !*opinion.ShouldAllow
	if len(opinion.RedFlags) > 0 || denied {
		message := "Advisory analysis recommends manual review"
		if len(opinion.RedFlags) > 0 {
			message = "Advisory analysis flagged: " + strings.Join(opinion.RedFlags, "; ")
		}
		warning := types.Issue{
			Type:     types.IssueAdvisoryFlagged,
			Severity: types.SeverityMedium,
			Message:  message,
			Action:   types.ActionWarn,
			Evidence: map[string]any{
				"gaming_likelihood": opinion.GamingLikelihood,
				"quality_score":     opinion.QualityScore,
				"should_allow":      !denied,
			},
		}
		if len(opinion.Recommendations) > 0 {
			warning.Recommendation = opinion.Recommendations[0]
		}
		warnings = append(warnings, warning)
	}

	if opinion.SuggestedImpactScore != nil && *opinion.SuggestedImpactScore < float64(rules.MinImpactScore) {
		warnings = append(warnings, types.Issue{
			Type:     types.IssueLowImpact,
			Severity: types.SeverityLow,
			Message: fmt.Sprintf("Suggested impact score %.0f is below the minimum of %d",
				*opinion.SuggestedImpactScore, rules.MinImpactScore),
			Action:   types.ActionWarn,
			Evidence: map[string]any{"suggested_impact_score": *opinion.SuggestedImpactScore, "minimum": rules.MinImpactScore},
		})
	}
	return warnings
}
