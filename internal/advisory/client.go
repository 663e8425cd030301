package advisory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/projectsentinel/apiserver/types"
)

const (
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultModel     = "claude-3-5-sonnet-20241022"
	DefaultMaxTokens = 1024
	DefaultTimeout   = 10 * time.Second

	apiVersion      = "2023-06-01"
	maxResponseSize = 1 << 20
)

// ErrMalformedResponse is returned when the model reply holds no usable opinion.
var ErrMalformedResponse = errors.New("advisory: malformed response")

var jsonObject = regexp.MustCompile(`\{[\s\S]*\}`)

// Config configures a Client.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// Client is a Scorer backed by the Anthropic Messages API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	timeout    time.Duration
	httpClient *http.Client
	now        func() time.Time
}

// NewClient returns a client, filling unset fields with defaults.
func NewClient(cfg Config) *Client {
	c := &Client{
		apiKey:    cfg.APIKey,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
		now:       time.Now,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.maxTokens <= 0 {
		c.maxTokens = DefaultMaxTokens
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	c.httpClient = &http.Client{Timeout: c.timeout}
	return c
}

// Model returns the model the client asks.
func (c *Client) Model() string {
	return c.model
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Consult asks the model for an opinion. The call is bounded by the
// configured timeout in addition to ctx.
func (c *Client) Consult(ctx context.Context, req Request) (*types.AdvisoryOpinion, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	prompt, err := renderPrompt(req)
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}

	body, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("advisory request timed out after %v: %w", c.timeout, err)
		}
		return nil, fmt.Errorf("advisory request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("advisory api error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var envelope messagesResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	var text strings.Builder
	for _, block := range envelope.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	opinion, err := ParseOpinion(text.String())
	if err != nil {
		return nil, err
	}
	opinion.Model = c.model
	opinion.ConsultedAt = c.now().UTC()
	return opinion, nil
}

// rawOpinion decodes every field loosely; the model is not trusted to
// respect the requested types.
type rawOpinion struct {
	QualityScore         json.RawMessage `json:"quality_score"`
	GamingLikelihood     json.RawMessage `json:"gaming_likelihood"`
	SuggestedImpactScore json.RawMessage `json:"suggested_impact_score"`
	RedFlags             json.RawMessage `json:"red_flags"`
	Recommendations      json.RawMessage `json:"recommendations"`
	ShouldAllow          json.RawMessage `json:"should_allow"`
	Reasoning            json.RawMessage `json:"reasoning"`
}

// ParseOpinion extracts the outermost JSON object from a model reply.
// Fields with unexpected types are dropped rather than failing the parse.
func ParseOpinion(text string) (*types.AdvisoryOpinion, error) {
	match := jsonObject.FindString(text)
	if match == "" {
		return nil, fmt.Errorf("%w: no JSON object in reply", ErrMalformedResponse)
	}

	var raw rawOpinion
	if err := json.Unmarshal([]byte(match), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	opinion := &types.AdvisoryOpinion{
		RedFlags:        stringList(raw.RedFlags),
		Recommendations: stringList(raw.Recommendations),
		Reasoning:       stringValue(raw.Reasoning),
	}
	if v, ok := number(raw.QualityScore); ok {
		opinion.QualityScore = clamp(v, 0, 10)
	}
	if v, ok := number(raw.GamingLikelihood); ok {
		opinion.GamingLikelihood = clamp(v, 0, 100)
	}
	if v, ok := number(raw.SuggestedImpactScore); ok {
		opinion.SuggestedImpactScore = &v
	}
	var allow bool
	if present(raw.ShouldAllow) && json.Unmarshal(raw.ShouldAllow, &allow) == nil {
		opinion.ShouldAllow = &allow
	}
	return opinion, nil
}

// present reports whether a field was sent with a non-null value.
func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

func number(raw json.RawMessage) (float64, bool) {
	if !present(raw) {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func stringList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil
	}
	return values
}

func stringValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
