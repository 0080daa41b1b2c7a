package core

import (
	"context"
)

// MailboxClient defines the interface for fetching messages from a remote mailbox.
// The credential is an opaque bearer token, passed explicitly on every call.
type MailboxClient interface {
	// FetchRecentMessages returns at most limit recent messages, in the order
	// the mailbox service listed them
	FetchRecentMessages(ctx context.Context, credential string, limit int) ([]Email, error)
}

// LLMClient defines the interface for classifying a single email via a
// remote inference service
type LLMClient interface {
	// ClassifyEmail submits one email for classification, retrying transient
	// failures internally before giving up
	ClassifyEmail(ctx context.Context, credential string, email *Email) (*ClassificationResult, error)
}
