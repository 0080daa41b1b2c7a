package core

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// EmailClassifierService drives one batch: fetch recent messages once, then
// classify them strictly sequentially, in fetched order. The inter-message
// delay keeps pressure off the inference service's shared rate limit, on top
// of the client's own retry backoff.
type EmailClassifierService struct {
	mailbox           MailboxClient
	llmClient         LLMClient
	logger            *zap.Logger
	interMessageDelay time.Duration
}

// NewEmailClassifierService creates a new batch classification service
func NewEmailClassifierService(
	mailbox MailboxClient,
	llmClient LLMClient,
	logger *zap.Logger,
	interMessageDelay time.Duration,
) *EmailClassifierService {
	return &EmailClassifierService{
		mailbox:           mailbox,
		llmClient:         llmClient,
		logger:            logger,
		interMessageDelay: interMessageDelay,
	}
}

// ClassifyBatch fetches up to limit recent messages and classifies each one.
// The result always has the same length and order as the fetched messages: a
// message whose classification fails gets the fallback result instead of
// aborting the batch. Only a mailbox listing failure or an empty mailbox is
// fatal.
func (s *EmailClassifierService) ClassifyBatch(
	ctx context.Context,
	mailboxCredential string,
	inferenceCredential string,
	limit int,
) ([]ClassifiedEmail, error) {
	emails, err := s.mailbox.FetchRecentMessages(ctx, mailboxCredential, limit)
	if err != nil {
		return nil, err
	}
	if len(emails) == 0 {
		return nil, ErrNoMessages
	}

	s.logger.Info("Fetched messages for classification", zap.Int("count", len(emails)))

	results := make([]ClassifiedEmail, 0, len(emails))
	for i := range emails {
		email := &emails[i]

		result, err := s.llmClient.ClassifyEmail(ctx, inferenceCredential, email)
		if err != nil {
			s.logger.Warn("Classification failed, recording fallback result",
				zap.String("email_id", email.ID),
				zap.Int("index", i),
				zap.Error(err))
			fallback := FallbackResult()
			result = &fallback
		}

		results = append(results, ClassifiedEmail{Email: *email, Result: *result})

		if i < len(emails)-1 && s.interMessageDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.interMessageDelay):
			}
		}
	}

	return results, nil
}
