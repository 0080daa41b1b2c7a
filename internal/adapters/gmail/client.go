package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mikey/llm-email-classifier/internal/core"
	"github.com/mikey/llm-email-classifier/internal/utils"
)

// DefaultBaseURL is the Gmail REST API endpoint
const DefaultBaseURL = "https://gmail.googleapis.com"

const defaultFetchConcurrency = 5

// Client is an implementation of the core.MailboxClient interface against the
// Gmail REST API
type Client struct {
	baseURL          string
	httpClient       *http.Client
	fetchConcurrency int
	logger           *zap.Logger
}

// listResponse is the subset of the message-list response we consume
type listResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// messageResponse is the subset of the full-message response we consume
type messageResponse struct {
	ID      string         `json:"id"`
	Snippet string         `json:"snippet"`
	Payload messagePayload `json:"payload"`
}

type messagePayload struct {
	Headers []messageHeader `json:"headers"`
	Parts   []messagePart   `json:"parts"`
}

type messageHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type messagePart struct {
	MimeType string `json:"mimeType"`
	Body     struct {
		Data string `json:"data"`
	} `json:"body"`
}

// NewClient creates a new Gmail mailbox client. A nil httpClient selects a
// default with a 30-second timeout; a non-positive fetchConcurrency selects
// the default bound on concurrent detail fetches.
func NewClient(baseURL string, httpClient *http.Client, fetchConcurrency int, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if fetchConcurrency <= 0 {
		fetchConcurrency = defaultFetchConcurrency
	}

	return &Client{
		baseURL:          baseURL,
		httpClient:       httpClient,
		fetchConcurrency: fetchConcurrency,
		logger:           logger,
	}
}

// FetchRecentMessages lists up to limit recent message IDs, then fetches each
// full message. Detail fetches run concurrently but results are returned in
// listed order. A detail fetch that fails drops that message from the result
// rather than failing the batch.
func (c *Client) FetchRecentMessages(ctx context.Context, credential string, limit int) ([]core.Email, error) {
	ids, err := c.listMessageIDs(ctx, credential, limit)
	if err != nil {
		return nil, err
	}

	// Slots keep listed order stable regardless of fetch completion order
	slots := make([]*core.Email, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.fetchConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			email, err := c.getMessage(gctx, credential, id)
			if err != nil {
				c.logger.Debug("Skipping message that failed to fetch",
					zap.String("message_id", id),
					zap.Error(err))
				return nil
			}
			slots[i] = email
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	emails := make([]core.Email, 0, len(ids))
	for _, email := range slots {
		if email != nil {
			emails = append(emails, *email)
		}
	}

	return emails, nil
}

// listMessageIDs issues the message-list request. Any non-success status is
// fatal to the whole batch.
func (c *Client) listMessageIDs(ctx context.Context, credential string, limit int) ([]string, error) {
	url := fmt.Sprintf("%s/gmail/v1/users/me/messages?maxResults=%d", c.baseURL, limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build message list request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("message list request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, &core.MailboxListError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var list listResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, &core.MailboxListError{StatusCode: resp.StatusCode, Body: err.Error()}
	}

	ids := make([]string, 0, len(list.Messages))
	for _, msg := range list.Messages {
		ids = append(ids, msg.ID)
	}

	return ids, nil
}

// getMessage fetches one full message and reconstructs it as a core.Email
func (c *Client) getMessage(ctx context.Context, credential, id string) (*core.Email, error) {
	url := fmt.Sprintf("%s/gmail/v1/users/me/messages/%s?format=full", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+credential)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("message fetch returned status %d", resp.StatusCode)
	}

	var msg messageResponse
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return nil, fmt.Errorf("failed to decode message %s: %w", id, err)
	}

	body, err := extractBody(msg.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode body of message %s: %w", id, err)
	}

	return &core.Email{
		ID:      msg.ID,
		Subject: headerValue(msg.Payload.Headers, "Subject"),
		From:    headerValue(msg.Payload.Headers, "From"),
		Snippet: msg.Snippet,
		Body:    body,
		Date:    headerValue(msg.Payload.Headers, "Date"),
	}, nil
}

// headerValue returns the value of the first header matching name exactly,
// or the empty string
func headerValue(headers []messageHeader, name string) string {
	for _, h := range headers {
		if h.Name == name {
			return h.Value
		}
	}
	return ""
}

// extractBody scans the MIME parts for the first text/plain part with a
// payload and decodes it from base64url. Messages without such a part yield
// an empty body; callers fall back to the snippet.
func extractBody(payload messagePayload) (string, error) {
	for _, part := range payload.Parts {
		if part.MimeType != "text/plain" || part.Body.Data == "" {
			continue
		}
		decoded, err := decodeBase64URL(part.Body.Data)
		if err != nil {
			return "", err
		}
		return utils.SanitizeUTF8(string(decoded)), nil
	}
	return "", nil
}

// decodeBase64URL accepts both padded and unpadded base64url payloads; the
// mailbox service is inconsistent about padding
func decodeBase64URL(data string) ([]byte, error) {
	if decoded, err := base64.URLEncoding.DecodeString(data); err == nil {
		return decoded, nil
	}
	return base64.RawURLEncoding.DecodeString(data)
}
