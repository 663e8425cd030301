package advisory

import (
	"strings"
	"text/template"

	"github.com/projectsentinel/apiserver/types"
)

var promptTemplate = template.Must(template.New("prompt").Funcs(template.FuncMap{
	"join":     strings.Join,
	"messages": messages,
}).Parse(`You are an assistant helping detect gaming behavior and score process improvement submissions.

SUBMISSION TO ANALYZE:
Title: {{.Submission.Title}}
Description: {{.Submission.Description}}
Category: {{.Submission.Category}}
Proposed Solution: {{if .Submission.Solution}}{{.Submission.Solution}}{{else}}None provided{{end}}

USER HISTORY: {{.HistoryCount}} previous submissions
Recent submissions: {{join .RecentTitles ", "}}

CURRENT ISSUES: {{messages .Issues}}
CURRENT WARNINGS: {{messages .Warnings}}

Please analyze this submission for:
1. Quality and genuine value (1-10)
2. Likelihood this is gaming behavior (0-100%)
3. Suggested impact score (0-100 points)
4. Red flags or concerns
5. Recommendations for improvement

Respond in JSON format:
{
  "quality_score": number,
  "gaming_likelihood": number,
  "suggested_impact_score": number,
  "red_flags": [array of strings],
  "recommendations": [array of strings],
  "should_allow": boolean,
  "reasoning": "explanation"
}`))

func renderPrompt(req Request) (string, error) {
	var b strings.Builder
	if err := promptTemplate.Execute(&b, req); err != nil {
		return "", err
	}
	return b.String(), nil
}

func messages(issues []types.Issue) string {
	if len(issues) == 0 {
		return "None"
	}
	parts := make([]string, 0, len(issues))
	for _, issue := range issues {
		parts = append(parts, issue.Message)
	}
	return strings.Join(parts, "; ")
}
