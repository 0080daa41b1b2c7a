package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/mikey/llm-email-classifier/internal/core"
	"github.com/mikey/llm-email-classifier/internal/utils"
)

// DefaultBaseURL is the OpenAI chat completions endpoint
const DefaultBaseURL = "https://api.openai.com/v1"

// Retry policy constants. Fixed rather than caller-configurable so retry
// behavior stays reproducible.
const (
	// maxAttempts bounds each classification call to this many requests total
	maxAttempts = 4
	// rateLimitBackoffBase seeds the doubling backoff for 429 and 5xx statuses
	rateLimitBackoffBase = 1 * time.Second
	// transportBackoffBase seeds the shorter doubling backoff for transport failures
	transportBackoffBase = 500 * time.Millisecond
	// retryJitterMax caps the random jitter added to every backoff wait
	retryJitterMax = 500 * time.Millisecond
)

// quotaExhaustedCode is the error classifier the service reports when the
// account is out of quota. A billing condition, never retried.
const quotaExhaustedCode = "insufficient_quota"

// Client is an implementation of the core.LLMClient interface against an
// OpenAI-compatible chat completions endpoint. The transport is owned locally
// rather than delegated to the SDK client: the retry state machine needs the
// raw status code, the Retry-After header, and the undecoded error body.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	modelName   string
	maxTokens   int
	temperature float32
	maxBodySize int
	logger      *zap.Logger

	// sleep is the backoff wait, indirect so tests can record waits
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a new inference client. A nil httpClient selects a
// default with a 60-second timeout.
func NewClient(
	baseURL string,
	httpClient *http.Client,
	modelName string,
	maxTokens int,
	temperature float32,
	maxBodySize int,
	logger *zap.Logger,
) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	return &Client{
		baseURL:     baseURL,
		httpClient:  httpClient,
		modelName:   modelName,
		maxTokens:   maxTokens,
		temperature: temperature,
		maxBodySize: maxBodySize,
		logger:      logger,
		sleep:       sleepContext,
	}
}

// ClassifyEmail submits one email for classification. Rate limiting and
// server errors back off and retry up to the attempt ceiling; quota
// exhaustion, empty responses, and unparseable results are terminal on the
// first sighting.
func (c *Client) ClassifyEmail(ctx context.Context, credential string, email *core.Email) (*core.ClassificationResult, error) {
	content := utils.TruncateText(email.Content(), c.maxBodySize)
	prompt := buildPrompt(email, content)

	reqBody := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are an email classification expert. Always respond with valid JSON.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode inference request: %w", err)
	}

	for attempt := 1; ; attempt++ {
		resp, err := c.doRequest(ctx, credential, payload)
		if err != nil {
			if attempt >= maxAttempts {
				return nil, fmt.Errorf("inference request failed after %d attempts: %w", attempt, err)
			}
			wait := backoff(transportBackoffBase, attempt)
			c.logger.Warn("Inference request failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err))
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			if attempt >= maxAttempts {
				return nil, fmt.Errorf("failed to read inference response after %d attempts: %w", attempt, readErr)
			}
			wait := backoff(transportBackoffBase, attempt)
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return parseResult(body)
		}

		if code := errorCode(body); code == quotaExhaustedCode {
			return nil, fmt.Errorf("%w: status %d", core.ErrQuotaExhausted, resp.StatusCode)
		}

		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		if !retryable || attempt >= maxAttempts {
			return nil, &core.InferenceError{StatusCode: resp.StatusCode, Body: string(body)}
		}

		wait := backoff(rateLimitBackoffBase, attempt)
		if resp.StatusCode == http.StatusTooManyRequests {
			if serverWait, ok := retryAfter(resp); ok {
				wait = serverWait + rand.N(retryJitterMax)
			}
		}
		c.logger.Warn("Inference service asked us to back off",
			zap.Int("status", resp.StatusCode),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait))
		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// doRequest issues one POST to the chat completions endpoint
func (c *Client) doRequest(ctx context.Context, credential string, payload []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Content-Type", "application/json")

	return c.httpClient.Do(req)
}

// parseResult extracts the generated text from a successful response and
// decodes it as a classification result. Both failure modes are terminal:
// the service answered, it just answered wrong.
func parseResult(body []byte) (*core.ClassificationResult, error) {
	var completion openai.ChatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return nil, &core.MalformedResultError{Content: string(body), Err: err}
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return nil, core.ErrEmptyResponse
	}

	content := completion.Choices[0].Message.Content
	var result core.ClassificationResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, &core.MalformedResultError{Content: content, Err: err}
	}

	return &result, nil
}

// errorCode extracts the machine-readable error classifier from an error
// response body, or "" if the body carries none
func errorCode(body []byte) string {
	var errResp openai.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == nil {
		return ""
	}
	if code, ok := errResp.Error.Code.(string); ok {
		return code
	}
	return ""
}

// retryAfter reads a server-supplied retry delay, in whole seconds, from the
// Retry-After header
func retryAfter(resp *http.Response) (time.Duration, bool) {
	value := resp.Header.Get("Retry-After")
	if value == "" {
		return 0, false
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}

// backoff doubles from base per attempt and adds sub-second jitter
func backoff(base time.Duration, attempt int) time.Duration {
	return base<<(attempt-1) + rand.N(retryJitterMax)
}

// sleepContext waits for d unless the context is cancelled first
func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
