package advisory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projectsentinel/apiserver/types"
)

func replyWith(text string) map[string]any {
	return map[string]any{
		"content": []map[string]string{{"type": "text", "text": text}},
	}
}

func sampleRequest() Request {
	history := []types.Submission{
		{Title: "oldest"},
		{Title: "second"},
		{Title: "third"},
		{Title: "latest"},
	}
	verdict := types.Verdict{
		Issues:   []types.Issue{},
		Warnings: []types.Issue{{Message: "Submission within 1.0 minutes of previous submission"}},
	}
	return NewRequest(types.SubmissionInput{
		Title:       "Automate invoice matching",
		Description: "Invoices are matched by hand against purchase orders.",
		Category:    "Finance",
	}, history, verdict)
}

func TestNewRequestKeepsLatestTitles(t *testing.T) {
	req := sampleRequest()

	assert.Equal(t, 4, req.HistoryCount)
	assert.Equal(t, []string{"second", "third", "latest"}, req.RecentTitles)

	empty := NewRequest(types.SubmissionInput{}, nil, types.Verdict{})
	assert.Empty(t, empty.RecentTitles)
}

func TestRenderPrompt(t *testing.T) {
	prompt, err := renderPrompt(sampleRequest())
	require.NoError(t, err)

	assert.Contains(t, prompt, "Title: Automate invoice matching")
	assert.Contains(t, prompt, "Proposed Solution: None provided")
	assert.Contains(t, prompt, "USER HISTORY: 4 previous submissions")
	assert.Contains(t, prompt, "Recent submissions: second, third, latest")
	assert.Contains(t, prompt, "CURRENT ISSUES: None")
	assert.Contains(t, prompt, "CURRENT WARNINGS: Submission within 1.0 minutes of previous submission")
}

func TestClientConsult(t *testing.T) {
	var got messagesRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(replyWith("Here is my analysis:\n" + `{
			"quality_score": 7,
			"gaming_likelihood": 15,
			"suggested_impact_score": 65,
			"red_flags": [],
			"recommendations": ["Quantify the time saved"],
			"should_allow": true,
			"reasoning": "Concrete and actionable."
		}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "secret", BaseURL: server.URL + "/"})
	fixed := time.Date(2026, time.May, 4, 9, 30, 0, 0, time.UTC)
	client.now = func() time.Time { return fixed }

	opinion, err := client.Consult(context.Background(), sampleRequest())
	require.NoError(t, err)

	assert.Equal(t, DefaultModel, got.Model)
	assert.Equal(t, DefaultMaxTokens, got.MaxTokens)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)

	assert.Equal(t, 7.0, opinion.QualityScore)
	assert.Equal(t, 15.0, opinion.GamingLikelihood)
	require.NotNil(t, opinion.SuggestedImpactScore)
	assert.Equal(t, 65.0, *opinion.SuggestedImpactScore)
	assert.Empty(t, opinion.RedFlags)
	assert.Equal(t, []string{"Quantify the time saved"}, opinion.Recommendations)
	require.NotNil(t, opinion.ShouldAllow)
	assert.True(t, *opinion.ShouldAllow)
	assert.Equal(t, DefaultModel, opinion.Model)
	assert.Equal(t, fixed, opinion.ConsultedAt)
}

func TestClientConsultFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "overloaded", http.StatusServiceUnavailable)
			},
		},
		{
			name: "envelope is not json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html>"))
			},
		},
		{
			name: "reply without json object",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(replyWith("I cannot help with that."))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			opinion, err := NewClient(Config{APIKey: "k", BaseURL: server.URL}).Consult(context.Background(), sampleRequest())
			assert.Error(t, err)
			assert.Nil(t, opinion)
		})
	}
}

func TestClientConsultTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL, Timeout: 50 * time.Millisecond})

	start := time.Now()
	_, err := client.Consult(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestParseOpinion(t *testing.T) {
	t.Run("loose types are dropped", func(t *testing.T) {
		opinion, err := ParseOpinion(`{"quality_score": "high", "gaming_likelihood": 250,
			"suggested_impact_score": null, "red_flags": "none", "should_allow": null}`)
		require.NoError(t, err)

		assert.Zero(t, opinion.QualityScore)
		assert.Equal(t, 100.0, opinion.GamingLikelihood)
		assert.Nil(t, opinion.SuggestedImpactScore)
		assert.Nil(t, opinion.RedFlags)
		assert.Nil(t, opinion.ShouldAllow)
	})

	t.Run("zero suggestion is kept", func(t *testing.T) {
		opinion, err := ParseOpinion(`{"suggested_impact_score": 0, "should_allow": false}`)
		require.NoError(t, err)
		require.NotNil(t, opinion.SuggestedImpactScore)
		assert.Zero(t, *opinion.SuggestedImpactScore)
		require.NotNil(t, opinion.ShouldAllow)
		assert.False(t, *opinion.ShouldAllow)
	})

	t.Run("fenced reply", func(t *testing.T) {
		opinion, err := ParseOpinion("```json\n{\"red_flags\": [\"vague\"]}\n```")
		require.NoError(t, err)
		assert.Equal(t, []string{"vague"}, opinion.RedFlags)
	})

	t.Run("no object", func(t *testing.T) {
		_, err := ParseOpinion("no json here")
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})

	t.Run("broken object", func(t *testing.T) {
		_, err := ParseOpinion(strings.Repeat("{", 3) + "}")
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})
}
