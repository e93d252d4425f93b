package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/careloop/conditiontrack/internal/domain/entities"
	"github.com/careloop/conditiontrack/pkg/config"
	apperrors "github.com/careloop/conditiontrack/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client implements the remote suggestion provider on top of a
// chat-completion endpoint. Each operation issues exactly one outbound HTTP
// call; there is no retry and no caching here.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	limiter    *tokenBucket
}

// NewClient creates a new suggestion client.
func NewClient(cfg *config.OpenAIConfig) (*Client, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	limiter := newTokenBucket(cfg.RateLimitRPM, cfg.RateLimitBurst)

	return &Client{
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
		limiter: limiter,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// CompleteConditionName returns condition-name completions for a partial
// input. The model is asked for a JSON array of strings; a reply that cannot
// be parsed as one yields zero suggestions rather than an error.
func (c *Client) CompleteConditionName(ctx context.Context, partial string) ([]string, error) {
	content, err := c.chat(ctx, completeConditionSystemPrompt, buildCompleteConditionUserPrompt(partial))
	if err != nil {
		return nil, err
	}

	names, ok := parseStringArray(content)
	if !ok {
		return []string{}, nil
	}
	return names, nil
}

// AnalyzeMedication returns a side-effect analysis for a medication. A reply
// that is not the expected JSON object is preserved as raw text.
func (c *Client) AnalyzeMedication(ctx context.Context, name string) (*entities.MedicationAnalysis, error) {
	content, err := c.chat(ctx, analyzeMedicationSystemPrompt, buildAnalyzeMedicationUserPrompt(name))
	if err != nil {
		return nil, err
	}

	analysis := parseAnalysisPayload(content)
	analysis.Medication = name
	return analysis, nil
}

// SuggestTreatments returns treatment suggestions for a condition name.
func (c *Client) SuggestTreatments(ctx context.Context, conditionName string) ([]string, error) {
	content, err := c.chat(ctx, suggestTreatmentsSystemPrompt, buildSuggestTreatmentsUserPrompt(conditionName))
	if err != nil {
		return nil, err
	}

	treatments, ok := parseStringArray(content)
	if !ok {
		return []string{}, nil
	}
	return treatments, nil
}

// chat performs one chat-completion round trip and returns the reply content
// with markdown code fences stripped.
func (c *Client) chat(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.limiter != nil {
		waitStart := time.Now()
		if err := c.limiter.Wait(ctx); err != nil {
			recordSuggestionMetric(ctx, c.model, 0, 0, err)
			return "", apperrors.NewExternalError("rate limit wait aborted", err)
		}
		recordSuggestionRateLimitWait(ctx, c.model, time.Since(waitStart))
	}

	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", apperrors.NewInternalError("failed to encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", apperrors.NewInternalError("failed to build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		recordSuggestionMetric(ctx, c.model, 0, time.Since(start), err)
		return "", apperrors.NewExternalError("suggestion request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := fmt.Errorf("status %d", resp.StatusCode)
		recordSuggestionMetric(ctx, c.model, resp.StatusCode, time.Since(start), statusErr)
		return "", apperrors.NewExternalError("suggestion request failed", statusErr)
	}

	var envelope chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		recordSuggestionMetric(ctx, c.model, resp.StatusCode, time.Since(start), err)
		return "", apperrors.NewExternalError("malformed suggestion response", err)
	}

	if len(envelope.Choices) == 0 {
		missingErr := errors.New("response has no choices")
		recordSuggestionMetric(ctx, c.model, resp.StatusCode, time.Since(start), missingErr)
		return "", apperrors.NewExternalError("malformed suggestion response", missingErr)
	}

	recordSuggestionMetric(ctx, c.model, resp.StatusCode, time.Since(start), nil)
	return stripCodeFences(envelope.Choices[0].Message.Content), nil
}

// stripCodeFences removes a surrounding markdown code block if present.
func stripCodeFences(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimSuffix(cleaned, "```")
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
	}
	return strings.TrimSpace(cleaned)
}

func newTokenBucket(rpm int, burst int) *tokenBucket {
	if rpm == 0 {
		rpm = 60
	}
	if rpm < 0 {
		return nil
	}
	if burst <= 0 {
		burst = 5
	}
	return newTokenBucketWithRate(rpm, burst)
}

type tokenBucket struct {
	tokens chan struct{}
}

func newTokenBucketWithRate(rpm int, burst int) *tokenBucket {
	bucket := &tokenBucket{
		tokens: make(chan struct{}, burst),
	}

	for i := 0; i < burst; i++ {
		bucket.tokens <- struct{}{}
	}

	interval := time.Minute / time.Duration(rpm)
	if interval <= 0 {
		interval = time.Millisecond
	}

	ticker := time.NewTicker(interval)
	go func() {
		for range ticker.C {
			select {
			case bucket.tokens <- struct{}{}:
			default:
			}
		}
	}()

	return bucket
}

func (b *tokenBucket) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.tokens:
		return nil
	}
}

type suggestionMetrics struct {
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	requestErrors   metric.Int64Counter
	rateLimitWait   metric.Float64Histogram
}

var suggestionMetricsInit = false
var suggestionMetricsSet suggestionMetrics

func ensureSuggestionMetrics() {
	if suggestionMetricsInit {
		return
	}
	meter := otel.Meter("github.com/careloop/conditiontrack/openai")

	requestCount, err := meter.Int64Counter(
		"ai.suggestion.request.count",
		metric.WithDescription("Number of remote suggestion requests"),
	)
	if err != nil {
		return
	}
	requestDuration, err := meter.Float64Histogram(
		"ai.suggestion.request.duration",
		metric.WithDescription("Remote suggestion request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return
	}
	requestErrors, err := meter.Int64Counter(
		"ai.suggestion.request.errors",
		metric.WithDescription("Number of remote suggestion request errors"),
	)
	if err != nil {
		return
	}
	rateLimitWait, err := meter.Float64Histogram(
		"ai.suggestion.rate_limit.wait",
		metric.WithDescription("Time spent waiting for the suggestion rate limiter in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return
	}

	suggestionMetricsSet = suggestionMetrics{
		requestCount:    requestCount,
		requestDuration: requestDuration,
		requestErrors:   requestErrors,
		rateLimitWait:   rateLimitWait,
	}
	suggestionMetricsInit = true
}

func recordSuggestionMetric(ctx context.Context, model string, statusCode int, duration time.Duration, err error) {
	ensureSuggestionMetrics()
	if !suggestionMetricsInit {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("ai.provider", "openai"),
		attribute.String("ai.model", model),
	}
	if statusCode > 0 {
		attrs = append(attrs, attribute.Int("http.status_code", statusCode))
	}

	suggestionMetricsSet.requestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	suggestionMetricsSet.requestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	if err != nil {
		suggestionMetricsSet.requestErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func recordSuggestionRateLimitWait(ctx context.Context, model string, wait time.Duration) {
	ensureSuggestionMetrics()
	if !suggestionMetricsInit {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("ai.provider", "openai"),
		attribute.String("ai.model", model),
	}
	suggestionMetricsSet.rateLimitWait.Record(ctx, float64(wait.Milliseconds()), metric.WithAttributes(attrs...))
}
