// Package openai implements the streaming provider contract against any
// OpenAI-compatible chat completions endpoint.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/reagent/llm"
	"github.com/BaSui01/reagent/types"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Provider streams chat completions from an OpenAI-compatible API.
type Provider struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// Option customizes the provider.
type Option func(*Provider)

// WithBaseURL points the provider at a compatible endpoint.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Provider) { p.logger = logger }
}

// WithName overrides the provider identifier, useful when several
// compatible endpoints are configured side by side.
func WithName(name string) Option {
	return func(p *Provider) { p.name = name }
}

// New creates a provider with the given API key.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		name:    "openai",
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 5 * time.Minute},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(zap.String("provider", p.name))
	return p
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return p.name }

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireRequest struct {
	Model         string         `json:"model"`
	Messages      []wireMessage  `json:"messages"`
	MaxTokens     int            `json:"max_tokens,omitempty"`
	Temperature   float32        `json:"temperature,omitempty"`
	TopP          float32        `json:"top_p,omitempty"`
	Stop          []string       `json:"stop,omitempty"`
	Stream        bool           `json:"stream"`
	StreamOptions map[string]any `json:"stream_options,omitempty"`
}

type wireChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Stream starts a streaming chat completion.
func (p *Provider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	messages := make([]wireMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, wireMessage{Role: string(m.Role), Content: m.Content})
	}

	body, err := json.Marshal(wireRequest{
		Model:         req.Model,
		Messages:      messages,
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		Stop:          req.Stop,
		Stream:        true,
		StreamOptions: map[string]any{"include_usage": true},
	})
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "encode request").WithCause(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "build request").WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "request failed").WithCause(err).WithProvider(p.name)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, p.mapError(resp)
	}

	out := make(chan llm.StreamChunk)
	go p.readStream(resp.Body, out)
	return out, nil
}

func (p *Provider) readStream(body io.ReadCloser, out chan<- llm.StreamChunk) {
	defer close(out)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			return
		}

		var chunk wireChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			p.logger.Warn("undecodable stream chunk", zap.Error(err))
			continue
		}

		event := llm.StreamChunk{}
		if len(chunk.Choices) > 0 {
			event.Delta = chunk.Choices[0].Delta.Content
			event.FinishReason = chunk.Choices[0].FinishReason
		}
		if chunk.Usage != nil {
			event.Usage = &types.TokenUsage{
				PromptTokens:     chunk.Usage.PromptTokens,
				CompletionTokens: chunk.Usage.CompletionTokens,
				TotalTokens:      chunk.Usage.TotalTokens,
			}
		}
		if event.Delta != "" || event.Usage != nil || event.FinishReason != "" {
			out <- event
		}
	}

	if err := scanner.Err(); err != nil {
		out <- llm.StreamChunk{
			Err: types.NewError(types.ErrUpstreamError, "stream read failed").WithCause(err).WithProvider(p.name),
		}
	}
}

func (p *Provider) mapError(resp *http.Response) *types.Error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
	message := strings.TrimSpace(string(raw))

	var apiErr struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error.Message != "" {
		message = apiErr.Error.Message
	}
	if message == "" {
		message = fmt.Sprintf("upstream returned status %d", resp.StatusCode)
	}

	code := types.ErrUpstreamError
	retryable := false
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		code = types.ErrUnauthorized
	case resp.StatusCode == http.StatusForbidden:
		code = types.ErrForbidden
	case resp.StatusCode == http.StatusTooManyRequests:
		code = types.ErrRateLimited
		retryable = true
	case resp.StatusCode >= 500:
		retryable = true
	case resp.StatusCode >= 400:
		code = types.ErrInvalidRequest
	}

	e := types.NewError(code, message).WithProvider(p.name).WithRetryable(retryable)
	e.HTTPStatus = resp.StatusCode
	return e
}
