package services

import (
	"context"
	"strings"
	"testing"

	"github.com/o2a/bapsim/internal/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubReplier struct {
	calls []string
	reply string
	err   error
}

func (s *stubReplier) Reply(_ context.Context, message string) (string, error) {
	s.calls = append(s.calls, message)
	return s.reply, s.err
}

type countingObserver map[string]int

func (c countingObserver) ObserveChat(outcome string) {
	c[outcome]++
}

func TestChatValidation(t *testing.T) {
	replier := &stubReplier{reply: "안녕하세요"}
	service := NewChatService(replier, nil, zap.NewNop())

	for _, message := range []string{"", " ", strings.Repeat("가", 501)} {
		_, err := service.Chat(ctx, message)
		assert.ErrorIs(t, err, ErrValidation)
	}
	assert.Empty(t, replier.calls)

	reply, err := service.Chat(ctx, "  "+strings.Repeat("가", 500)+"  ")
	require.NoError(t, err)
	assert.Equal(t, "안녕하세요", reply)
	require.Len(t, replier.calls, 1)
	assert.Equal(t, strings.Repeat("가", 500), replier.calls[0])
}

func TestChatDisabled(t *testing.T) {
	service := NewChatService(nil, nil, zap.NewNop())

	assert.False(t, service.Enabled())
	_, err := service.Chat(ctx, "hello")
	assert.ErrorIs(t, err, ErrChatDisabled)
}

func TestChatUpstreamFailure(t *testing.T) {
	observer := countingObserver{}
	replier := &stubReplier{err: &chat.Error{Kind: chat.KindRateLimited, Err: assert.AnError}}
	service := NewChatService(replier, observer, zap.NewNop())

	_, err := service.Chat(ctx, "hello")
	var chatErr *chat.Error
	require.ErrorAs(t, err, &chatErr)
	assert.Equal(t, chat.KindRateLimited, chatErr.Kind)

	replier.err = nil
	_, err = service.Chat(ctx, "hello")
	require.NoError(t, err)

	assert.Equal(t, countingObserver{"rate_limited": 1, "ok": 1}, observer)
}
