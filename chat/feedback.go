package chat

import (
	"context"
	"fmt"
	"sync"

	"askforge-client/api"
)

// FeedbackSender delivers feedback to the server. *api.Client implements it.
type FeedbackSender interface {
	SendFeedback(ctx context.Context, fb api.Feedback) error
}

// FeedbackTracker remembers the last rating given to one assistant answer
// so that repeating it is a no-op while switching it resends.
type FeedbackTracker struct {
	sender FeedbackSender

	conversationID *int64
	userMessage    string
	response       string
	knowledgeIDs   []any

	mu      sync.Mutex
	current string
}

// NewFeedbackTracker binds a tracker to an answer and the question that
// produced it.
func NewFeedbackTracker(sender FeedbackSender, conversationID *int64, userMessage string, answer api.Message) *FeedbackTracker {
	return &FeedbackTracker{
		sender:         sender,
		conversationID: conversationID,
		userMessage:    userMessage,
		response:       answer.Content,
		knowledgeIDs:   answer.UsedKnowledgeIDs,
	}
}

// Current returns the polarity last chosen, or "".
func (t *FeedbackTracker) Current() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Rate records polarity and sends it unless it equals the current one.
// It reports whether a request was made. The choice is kept even when the
// request fails, matching what the buttons show.
func (t *FeedbackTracker) Rate(ctx context.Context, polarity string) (bool, error) {
	if polarity != api.FeedbackPositive && polarity != api.FeedbackNegative {
		return false, fmt.Errorf("invalid feedback %q", polarity)
	}

	t.mu.Lock()
	if t.current == polarity {
		t.mu.Unlock()
		return false, nil
	}
	t.current = polarity
	t.mu.Unlock()

	err := t.sender.SendFeedback(ctx, api.Feedback{
		ConversationID:    t.conversationID,
		UserMessage:       t.userMessage,
		AssistantResponse: t.response,
		Feedback:          polarity,
		UsedKnowledgeIDs:  t.knowledgeIDs,
	})
	if err != nil {
		return true, fmt.Errorf("failed to send feedback: %w", err)
	}
	return true, nil
}
