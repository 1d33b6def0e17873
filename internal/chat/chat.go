// Package chat talks to the OpenAI chat completion API on behalf of the
// "밥심이" cooking assistant and classifies upstream failures.
package chat

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/o2a/bapsim/config"
	"github.com/sashabaranov/go-openai"
)

const (
	defaultModel   = openai.GPT3Dot5Turbo
	defaultTimeout = 30 * time.Second
	maxTokens      = 300
	temperature    = 0.7
)

// PersonaPrompt is the fixed system prompt sent with every message.
const PersonaPrompt = `당신은 '밥심이'라는 이름의 친근한 요리 도우미입니다.
한국어로 대화하며, 레시피, 요리 팁, 재료 정보, 음식 추천 등에 대해 도움을 줍니다.
특히 날씨나 기분에 따른 음식 추천을 잘 해줍니다.
짧고 친근하게 대답하세요. 200자 이내로 답변해주세요.
따뜻하고 공감하는 톤으로 이야기하세요.`

// ErrNotConfigured is returned by NewClient when no API key is set.
var ErrNotConfigured = errors.New("openai api key is not configured")

// Kind is the stable category of an upstream failure.
type Kind string

const (
	KindRateLimited  Kind = "rate_limited"
	KindBadRequest   Kind = "bad_request"
	KindAuth         Kind = "auth"
	KindTimeout      Kind = "timeout"
	KindUnclassified Kind = "unclassified"
)

// Error wraps an upstream failure with its category.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("chat completion failed (%s): %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Completer is the part of the OpenAI client used here.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client sends single-turn conversations to the completion API.
type Client struct {
	completer Completer
	model     string
}

// NewClient builds a client from config. It returns ErrNotConfigured when the
// API key is empty so callers can run with the chatbot disabled.
func NewClient(cfg config.OpenAIConfig) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	return NewClientWithCompleter(openai.NewClientWithConfig(clientCfg), cfg.Model), nil
}

func NewClientWithCompleter(completer Completer, model string) *Client {
	if strings.TrimSpace(model) == "" {
		model = defaultModel
	}
	return &Client{completer: completer, model: model}
}

// Reply sends the persona prompt and the user message and returns the
// assistant's answer. Failures are returned as *Error.
func (c *Client) Reply(ctx context.Context, message string) (string, error) {
	resp, err := c.completer.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: PersonaPrompt},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", &Error{Kind: Classify(err), Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &Error{Kind: KindUnclassified, Err: errors.New("empty completion")}
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Classify maps an upstream error to a Kind. Structured information from the
// client library wins; matching on the error text is the last resort.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if kind := classifyStatus(apiErr.HTTPStatusCode); kind != "" {
			return kind
		}
		if kind := classifyCode(fmt.Sprint(apiErr.Code)); kind != "" {
			return kind
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if kind := classifyStatus(reqErr.HTTPStatusCode); kind != "" {
			return kind
		}
	}

	return classifyText(err.Error())
}

func classifyStatus(status int) Kind {
	switch status {
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuth
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		return KindBadRequest
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return KindTimeout
	}
	return ""
}

func classifyCode(code string) Kind {
	switch code {
	case "rate_limit_exceeded", "insufficient_quota":
		return KindRateLimited
	case "invalid_api_key", "invalid_authentication":
		return KindAuth
	}
	return ""
}

func classifyText(text string) Kind {
	msg := strings.ToLower(text)
	switch {
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "quota"):
		return KindRateLimited
	case strings.Contains(msg, "invalid request"):
		return KindBadRequest
	case strings.Contains(msg, "authentication"), strings.Contains(msg, "api key"):
		return KindAuth
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return KindTimeout
	}
	return KindUnclassified
}
