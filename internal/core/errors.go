package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions callers branch on with errors.Is.
var (
	// ErrNoMessages indicates the mailbox listed successfully but held no
	// messages to classify
	ErrNoMessages = errors.New("no messages to classify")

	// ErrQuotaExhausted indicates the inference service reported a billing or
	// entitlement failure. Never retried.
	ErrQuotaExhausted = errors.New("inference quota exhausted")

	// ErrEmptyResponse indicates the inference service returned success but no
	// generated content
	ErrEmptyResponse = errors.New("empty response from inference service")
)

// MailboxListError indicates the initial message listing request failed.
// Fatal to the whole batch.
type MailboxListError struct {
	StatusCode int
	Body       string
}

func (e *MailboxListError) Error() string {
	return fmt.Sprintf("failed to list mailbox messages: status %d: %s", e.StatusCode, e.Body)
}

// InferenceError indicates a non-retryable status from the inference service,
// or a retryable one that outlived the retry ceiling
type InferenceError struct {
	StatusCode int
	Body       string
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference request failed: status %d: %s", e.StatusCode, e.Body)
}

// MalformedResultError indicates the inference service returned generated text
// that could not be parsed as a classification result
type MalformedResultError struct {
	Content string
	Err     error
}

func (e *MalformedResultError) Error() string {
	return fmt.Sprintf("malformed classification result %q: %v", e.Content, e.Err)
}

func (e *MalformedResultError) Unwrap() error {
	return e.Err
}
