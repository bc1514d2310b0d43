package oracle

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/pkravets/thema/internal/model"
)

// ChatRequest is one classification/labeling request. The client sends
// exactly one call per invocation; retry and batching belong to callers.
type ChatRequest struct {
	Model  string
	System string
	User   string

	// Timeout overrides the client default for this call (0 = default)
	Timeout time.Duration
}

// Client is the boundary to the external language model. Implementations
// return the raw reply text; the reply is treated as untrusted downstream.
type Client interface {
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

// CallError is a failed oracle round trip: network error, non-2xx status,
// timeout, or a response envelope without message content.
type CallError struct {
	Err error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("oracle call: %v", e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// HTTPClient talks to an OpenAI-compatible chat-completions endpoint
// with bearer-token auth.
type HTTPClient struct {
	client  *openai.Client
	timeout time.Duration
	limiter *rate.Limiter
}

// NewHTTPClient creates a client for the configured endpoint
func NewHTTPClient(cfg model.OracleConfig) (*HTTPClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("oracle API key is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{
		Transport: &http.Transport{
			Proxy: proxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy),
		},
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &HTTPClient{
		client:  openai.NewClientWithConfig(clientConfig),
		timeout: cfg.Timeout,
		limiter: limiter,
	}, nil
}

// Chat sends one system+user message pair and returns the raw reply text
func (c *HTTPClient) Chat(ctx context.Context, req ChatRequest) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", &CallError{Err: err}
		}
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = c.timeout
	}
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		// omitempty swallows a literal 0; the API default is 1
		Temperature: math.SmallestNonzeroFloat32,
		Stream:      false,
	})
	if err != nil {
		return "", &CallError{Err: err}
	}

	if len(resp.Choices) == 0 {
		return "", &CallError{Err: fmt.Errorf("response has no choices")}
	}

	return resp.Choices[0].Message.Content, nil
}
