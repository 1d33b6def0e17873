package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/o2a/bapsim/config"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeUpstream(t *testing.T, status int, body string, captured *openai.ChatCompletionRequest) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(config.OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(config.OpenAIConfig{APIKey: "  "})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestReplySendsPersona(t *testing.T) {
	var req openai.ChatCompletionRequest
	client := fakeUpstream(t, http.StatusOK, `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": " 김치찌개 어때요? "}, "finish_reason": "stop"}]
	}`, &req)

	reply, err := client.Reply(context.Background(), "비 오는 날 뭐 먹지?")
	require.NoError(t, err)
	assert.Equal(t, "김치찌개 어때요?", reply)

	assert.Equal(t, openai.GPT3Dot5Turbo, req.Model)
	assert.Equal(t, 300, req.MaxTokens)
	assert.InDelta(t, 0.7, req.Temperature, 0.0001)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.Equal(t, PersonaPrompt, req.Messages[0].Content)
	assert.Equal(t, "비 오는 날 뭐 먹지?", req.Messages[1].Content)
}

func TestReplyClassifiesUpstreamStatus(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   Kind
	}{
		{
			name:   "rate limit",
			status: http.StatusTooManyRequests,
			body:   `{"error": {"message": "Rate limit reached", "type": "requests", "code": "rate_limit_exceeded"}}`,
			want:   KindRateLimited,
		},
		{
			name:   "bad key",
			status: http.StatusUnauthorized,
			body:   `{"error": {"message": "Incorrect API key provided", "type": "invalid_request_error", "code": "invalid_api_key"}}`,
			want:   KindAuth,
		},
		{
			name:   "malformed request",
			status: http.StatusBadRequest,
			body:   `{"error": {"message": "'messages' is too long", "type": "invalid_request_error"}}`,
			want:   KindBadRequest,
		},
		{
			name:   "server failure without json body",
			status: http.StatusInternalServerError,
			body:   `upstream exploded`,
			want:   KindUnclassified,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := fakeUpstream(t, tc.status, tc.body, nil)

			_, err := client.Reply(context.Background(), "hello")
			require.Error(t, err)
			var chatErr *Error
			require.ErrorAs(t, err, &chatErr)
			assert.Equal(t, tc.want, chatErr.Kind)
		})
	}
}

type stubCompleter struct {
	resp openai.ChatCompletionResponse
	err  error
}

func (s stubCompleter) CreateChatCompletion(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return s.resp, s.err
}

func TestReplyWithoutChoices(t *testing.T) {
	client := NewClientWithCompleter(stubCompleter{}, "")

	_, err := client.Reply(context.Background(), "hello")
	var chatErr *Error
	require.ErrorAs(t, err, &chatErr)
	assert.Equal(t, KindUnclassified, chatErr.Kind)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, Kind(""), Classify(nil))
	assert.Equal(t, KindTimeout, Classify(fmt.Errorf("send: %w", context.DeadlineExceeded)))
	assert.Equal(t, KindRateLimited, Classify(&openai.APIError{Code: "insufficient_quota", Message: "billing"}))
	assert.Equal(t, KindAuth, Classify(&openai.APIError{HTTPStatusCode: http.StatusForbidden}))
	assert.Equal(t, KindTimeout, Classify(&openai.RequestError{HTTPStatusCode: http.StatusGatewayTimeout, Err: errors.New("gateway")}))

	assert.Equal(t, KindRateLimited, Classify(errors.New("Rate limit exceeded for model")))
	assert.Equal(t, KindRateLimited, Classify(errors.New("You exceeded your current QUOTA")))
	assert.Equal(t, KindBadRequest, Classify(errors.New("Invalid request: messages missing")))
	assert.Equal(t, KindAuth, Classify(errors.New("Authentication failed")))
	assert.Equal(t, KindAuth, Classify(errors.New("no API key provided")))
	assert.Equal(t, KindTimeout, Classify(errors.New("read: connection timeout")))
	assert.Equal(t, KindUnclassified, Classify(errors.New("connection reset by peer")))
}
