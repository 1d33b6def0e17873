package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/o2a/bapsim/internal/chat"
	"go.uber.org/zap"
)

// MaxChatMessageLength is the longest accepted chatbot message in characters.
const MaxChatMessageLength = 500

// Replier produces the assistant's answer to a single message.
type Replier interface {
	Reply(ctx context.Context, message string) (string, error)
}

// ChatObserver records chatbot outcomes.
type ChatObserver interface {
	ObserveChat(outcome string)
}

// ChatService validates chatbot messages and relays them upstream.
type ChatService struct {
	client   Replier
	observer ChatObserver
	logger   *zap.Logger
}

// NewChatService builds the service. A nil client disables the chatbot.
func NewChatService(client Replier, observer ChatObserver, logger *zap.Logger) *ChatService {
	return &ChatService{client: client, observer: observer, logger: logger}
}

func (s *ChatService) Enabled() bool {
	return s.client != nil
}

// Chat validates the message and returns the assistant's reply. Upstream
// failures are returned as *chat.Error.
func (s *ChatService) Chat(ctx context.Context, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", invalid("message is required")
	}
	if utf8.RuneCountInString(message) > MaxChatMessageLength {
		return "", invalid("message must be at most %d characters", MaxChatMessageLength)
	}
	if s.client == nil {
		return "", ErrChatDisabled
	}

	reply, err := s.client.Reply(ctx, message)
	if err != nil {
		kind := chat.KindUnclassified
		var chatErr *chat.Error
		if errors.As(err, &chatErr) {
			kind = chatErr.Kind
		}
		s.observe(string(kind))
		s.logger.Error("chatbot upstream failed", zap.String("kind", string(kind)), zap.Error(err))
		return "", err
	}

	s.observe("ok")
	return reply, nil
}

func (s *ChatService) observe(outcome string) {
	if s.observer != nil {
		s.observer.ObserveChat(outcome)
	}
}
