package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mikey/llm-email-classifier/internal/core"
)

// fakeMailbox serves the two Gmail endpoints the client consumes
type fakeMailbox struct {
	ids      []string
	messages map[string]messageResponse
	failIDs  map[string]bool
	delays   map[string]time.Duration

	listStatus int
	listBody   string
}

func (f *fakeMailbox) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "Bearer "))

		if r.URL.Path == "/gmail/v1/users/me/messages" {
			if f.listStatus != 0 {
				w.WriteHeader(f.listStatus)
				_, _ = w.Write([]byte(f.listBody))
				return
			}
			var list listResponse
			for _, id := range f.ids {
				list.Messages = append(list.Messages, struct {
					ID string `json:"id"`
				}{ID: id})
			}
			require.NoError(t, json.NewEncoder(w).Encode(list))
			return
		}

		id := strings.TrimPrefix(r.URL.Path, "/gmail/v1/users/me/messages/")
		if d, ok := f.delays[id]; ok {
			time.Sleep(d)
		}
		if f.failIDs[id] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		msg, ok := f.messages[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		require.NoError(t, json.NewEncoder(w).Encode(msg))
	}
}

func textPart(data string) messagePart {
	part := messagePart{MimeType: "text/plain"}
	part.Body.Data = base64.URLEncoding.EncodeToString([]byte(data))
	return part
}

func htmlPart(data string) messagePart {
	part := messagePart{MimeType: "text/html"}
	part.Body.Data = base64.URLEncoding.EncodeToString([]byte(data))
	return part
}

func fakeMessage(id, subject, from string) messageResponse {
	return messageResponse{
		ID:      id,
		Snippet: "snippet of " + id,
		Payload: messagePayload{
			Headers: []messageHeader{
				{Name: "Subject", Value: subject},
				{Name: "From", Value: from},
				{Name: "Date", Value: "Mon, 2 Jan 2006 15:04:05 -0700"},
			},
			Parts: []messagePart{textPart("body of " + id)},
		},
	}
}

func newTestClient(t *testing.T, mailbox *fakeMailbox) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(mailbox.handler(t))
	t.Cleanup(server.Close)
	return NewClient(server.URL, server.Client(), 5, zaptest.NewLogger(t)), server
}

func TestFetchRecentMessagesPreservesListedOrder(t *testing.T) {
	mailbox := &fakeMailbox{
		ids:      []string{"a", "b", "c", "d"},
		messages: map[string]messageResponse{},
		// Earlier messages answer slower than later ones to force
		// out-of-order completion of the concurrent fetches
		delays: map[string]time.Duration{
			"a": 80 * time.Millisecond,
			"b": 40 * time.Millisecond,
		},
	}
	for _, id := range mailbox.ids {
		mailbox.messages[id] = fakeMessage(id, "subject "+id, id+"@example.com")
	}

	client, _ := newTestClient(t, mailbox)
	emails, err := client.FetchRecentMessages(context.Background(), "token", 10)

	require.NoError(t, err)
	require.Len(t, emails, 4)
	for i, id := range mailbox.ids {
		assert.Equal(t, id, emails[i].ID)
		assert.Equal(t, "subject "+id, emails[i].Subject)
		assert.Equal(t, id+"@example.com", emails[i].From)
		assert.Equal(t, "snippet of "+id, emails[i].Snippet)
		assert.Equal(t, "body of "+id, emails[i].Body)
	}
}

func TestFetchRecentMessagesListFailureIsFatal(t *testing.T) {
	mailbox := &fakeMailbox{listStatus: http.StatusUnauthorized, listBody: `{"error":"invalid token"}`}

	client, _ := newTestClient(t, mailbox)
	_, err := client.FetchRecentMessages(context.Background(), "bad-token", 10)

	require.Error(t, err)
	var listErr *core.MailboxListError
	require.ErrorAs(t, err, &listErr)
	assert.Equal(t, http.StatusUnauthorized, listErr.StatusCode)
	assert.Contains(t, listErr.Body, "invalid token")
}

func TestFetchRecentMessagesDropsFailedFetches(t *testing.T) {
	mailbox := &fakeMailbox{
		ids: []string{"a", "b", "c"},
		messages: map[string]messageResponse{
			"a": fakeMessage("a", "first", "a@example.com"),
			"c": fakeMessage("c", "third", "c@example.com"),
		},
		failIDs: map[string]bool{"b": true},
	}

	client, _ := newTestClient(t, mailbox)
	emails, err := client.FetchRecentMessages(context.Background(), "token", 10)

	require.NoError(t, err)
	require.Len(t, emails, 2)
	assert.Equal(t, "a", emails[0].ID)
	assert.Equal(t, "c", emails[1].ID)
}

func TestFetchRecentMessagesEmptyMailbox(t *testing.T) {
	mailbox := &fakeMailbox{}

	client, _ := newTestClient(t, mailbox)
	emails, err := client.FetchRecentMessages(context.Background(), "token", 10)

	require.NoError(t, err)
	assert.Empty(t, emails)
}

func TestFetchRecentMessagesPassesLimit(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"messages":[]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client(), 5, zaptest.NewLogger(t))
	_, err := client.FetchRecentMessages(context.Background(), "token", 7)

	require.NoError(t, err)
	assert.Equal(t, "maxResults=7", gotQuery)
}

func TestHeaderValue(t *testing.T) {
	headers := []messageHeader{
		{Name: "subject", Value: "lowercase, must not match"},
		{Name: "Subject", Value: "first"},
		{Name: "Subject", Value: "second"},
	}

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{name: "first exact match wins", header: "Subject", want: "first"},
		{name: "matching is case-sensitive", header: "SUBJECT", want: ""},
		{name: "missing header yields empty string", header: "From", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, headerValue(headers, tt.header))
		})
	}
}

func TestExtractBody(t *testing.T) {
	unpadded := textPart("")
	unpadded.Body.Data = base64.RawURLEncoding.EncodeToString([]byte("no padding"))

	tests := []struct {
		name    string
		payload messagePayload
		want    string
	}{
		{
			name:    "first text/plain part wins",
			payload: messagePayload{Parts: []messagePart{htmlPart("<p>hello</p>"), textPart("hello world")}},
			want:    "hello world",
		},
		{
			name:    "no text/plain part yields empty body",
			payload: messagePayload{Parts: []messagePart{htmlPart("<p>only html</p>")}},
			want:    "",
		},
		{
			name:    "no parts yields empty body",
			payload: messagePayload{},
			want:    "",
		},
		{
			name:    "text/plain part without payload is skipped",
			payload: messagePayload{Parts: []messagePart{{MimeType: "text/plain"}, textPart("fallback")}},
			want:    "fallback",
		},
		{
			name:    "unpadded base64url is accepted",
			payload: messagePayload{Parts: []messagePart{unpadded}},
			want:    "no padding",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := extractBody(tt.payload)
			require.NoError(t, err)
			assert.Equal(t, tt.want, body)
		})
	}
}

func TestExtractBodyRejectsUndecodablePayload(t *testing.T) {
	part := messagePart{MimeType: "text/plain"}
	part.Body.Data = "%%% not base64 %%%"

	_, err := extractBody(messagePayload{Parts: []messagePart{part}})
	require.Error(t, err)
}

func TestDecodeBase64URLPaddingVariants(t *testing.T) {
	for _, text := range []string{"a", "ab", "abc", "hello world"} {
		t.Run(fmt.Sprintf("%d bytes", len(text)), func(t *testing.T) {
			padded, err := decodeBase64URL(base64.URLEncoding.EncodeToString([]byte(text)))
			require.NoError(t, err)
			assert.Equal(t, text, string(padded))

			raw, err := decodeBase64URL(base64.RawURLEncoding.EncodeToString([]byte(text)))
			require.NoError(t, err)
			assert.Equal(t, text, string(raw))
		})
	}
}
