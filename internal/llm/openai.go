package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kestrel-ai/reactor/internal/reactor"
	"github.com/kestrel-ai/reactor/pkg/models"
)

// OpenAIConfig configures an OpenAIProvider.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	MaxRetries   int
	RetryDelay   time.Duration
	DefaultModel string
}

// OpenAIProvider adapts sashabaranov/go-openai's chat completion API to
// reactor.LLMProvider, using the tool-calling shape (function calls wrapped
// in ChatCompletionMessageToolCall) rather than the legacy single-function
// FunctionCall field.
type OpenAIProvider struct {
	client       *openai.Client
	maxRetries   int
	retryDelay   time.Duration
	defaultModel string
}

func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm: openai api key is required")
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gpt-4o"
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIProvider{
		client:       openai.NewClientWithConfig(clientCfg),
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
		defaultModel: cfg.DefaultModel,
	}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) model(requested string) string {
	if requested == "" {
		return p.defaultModel
	}
	return requested
}

func (p *OpenAIProvider) Chat(ctx context.Context, req reactor.CompletionRequest) (*reactor.CompletionResult, error) {
	params := p.buildParams(req)

	var resp openai.ChatCompletionResponse
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		resp, lastErr = p.client.CreateChatCompletion(ctx, params)
		if lastErr == nil {
			break
		}
		le := p.classify(lastErr)
		if !le.Kind.Retryable() || attempt == p.maxRetries {
			return nil, le
		}
		delay := p.retryDelay * time.Duration(math.Pow(2, float64(attempt)))
		select {
		case <-ctx.Done():
			return nil, reactor.ErrCancelled
		case <-time.After(delay):
		}
	}
	if lastErr != nil {
		return nil, p.classify(lastErr)
	}
	return p.convertResponse(resp), nil
}

// Stream replays a single Chat call as one terminal chunk; see the
// equivalent note on AnthropicProvider.Stream.
func (p *OpenAIProvider) Stream(ctx context.Context, req reactor.CompletionRequest) (<-chan reactor.CompletionChunk, error) {
	ch := make(chan reactor.CompletionChunk, 1)
	go func() {
		defer close(ch)
		res, err := p.Chat(ctx, req)
		if err != nil {
			ch <- reactor.CompletionChunk{Done: true, Err: err}
			return
		}
		usage := res.Usage
		ch <- reactor.CompletionChunk{DeltaContent: res.Content, Usage: &usage, Done: true}
	}()
	return ch, nil
}

func (p *OpenAIProvider) buildParams(req reactor.CompletionRequest) openai.ChatCompletionRequest {
	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, p.convertMessages(req.Messages)...)

	params := openai.ChatCompletionRequest{
		Model:    p.model(req.Model),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		params.Tools = p.convertTools(req.Tools)
	}
	return params
}

func (p *OpenAIProvider) convertMessages(messages []models.Message) []openai.ChatCompletionMessage {
	var out []openai.ChatCompletionMessage
	for _, m := range messages {
		switch m.Role {
		case models.RoleSystem:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: m.Content})
		case models.RoleUser:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Content})
		case models.RoleAssistant:
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content}
			for _, tc := range m.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				})
			}
			out = append(out, msg)
		case models.RoleTool:
			for _, tr := range m.ToolResults {
				content := tr.Content
				if tr.IsError && content == "" {
					content = "error"
				}
				out = append(out, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    content,
					ToolCallID: tr.ToolCallID,
				})
			}
		}
	}
	return out
}

func (p *OpenAIProvider) convertTools(tools []reactor.ToolSchema) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

func (p *OpenAIProvider) convertResponse(resp openai.ChatCompletionResponse) *reactor.CompletionResult {
	res := &reactor.CompletionResult{
		Usage: models.TokenUsage{
			Input:  resp.Usage.PromptTokens,
			Output: resp.Usage.CompletionTokens,
			Total:  resp.Usage.TotalTokens,
		},
	}
	if len(resp.Choices) == 0 {
		return res
	}
	choice := resp.Choices[0].Message
	res.Content = choice.Content
	for _, tc := range choice.ToolCalls {
		res.ToolCalls = append(res.ToolCalls, models.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return res
}

// classify maps a raw go-openai error into the shared LLM taxonomy.
// openai.APIError carries HTTPStatusCode and Code, the same two signals the
// teacher's classifyStatusCode/classifyErrorCode pair keyed on.
func (p *OpenAIProvider) classify(err error) *reactor.LLMError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := ""
		if apiErr.Code != nil {
			if s, ok := apiErr.Code.(string); ok {
				code = s
			} else {
				code = fmt.Sprintf("%v", apiErr.Code)
			}
		}
		return reactor.ClassifyError("openai", apiErr.HTTPStatusCode, code, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reactor.ClassifyError("openai", reqErr.HTTPStatusCode, "", err)
	}
	return reactor.ClassifyError("openai", 0, "", err)
}
