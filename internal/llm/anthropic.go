// Package llm provides concrete reactor.LLMProvider adapters over the
// Anthropic and OpenAI SDKs, translating each provider's wire format and
// error shape into the provider-agnostic reactor types.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/kestrel-ai/reactor/internal/reactor"
	"github.com/kestrel-ai/reactor/pkg/models"
)

// AnthropicConfig configures an AnthropicProvider.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	MaxRetries   int
	RetryDelay   time.Duration
	DefaultModel string
}

// AnthropicProvider adapts anthropic-sdk-go to reactor.LLMProvider. The
// loop's own recovery chain runs one layer up in ReactLoop.callWithRetry;
// this adapter's Chat additionally retries the Messages.New call itself for
// every error kind that LLMErrorKind.Retryable reports.
type AnthropicProvider struct {
	client       anthropic.Client
	maxRetries   int
	retryDelay   time.Duration
	defaultModel string
}

// NewAnthropicProvider validates cfg and constructs the underlying client.
func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm: anthropic api key is required")
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "claude-sonnet-4-20250514"
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicProvider{
		client:       anthropic.NewClient(opts...),
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
		defaultModel: cfg.DefaultModel,
	}, nil
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) model(requested string) string {
	if requested == "" {
		return p.defaultModel
	}
	return requested
}

func maxTokens(requested int) int64 {
	if requested <= 0 {
		return 4096
	}
	return int64(requested)
}

// Chat performs one non-streaming completion call, retrying any error whose
// classified kind is Retryable with a base*2^attempt backoff before handing
// control to the loop's own recovery chain.
func (p *AnthropicProvider) Chat(ctx context.Context, req reactor.CompletionRequest) (*reactor.CompletionResult, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}

	var msg *anthropic.Message
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		msg, lastErr = p.client.Messages.New(ctx, params)
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

	return p.convertMessage(msg), nil
}

// Stream is not yet wired to live SSE processing; it performs one Chat call
// and replays its result as a single terminal chunk. Token-level streaming
// needs the same ssestream event-union handling a processStream loop
// would do, deferred until a transport actually consumes it.
func (p *AnthropicProvider) Stream(ctx context.Context, req reactor.CompletionRequest) (<-chan reactor.CompletionChunk, error) {
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

func (p *AnthropicProvider) buildParams(req reactor.CompletionRequest) (anthropic.MessageNewParams, error) {
	messages, err := p.convertMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, fmt.Errorf("llm: anthropic: convert messages: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model(req.Model)),
		Messages:  messages,
		MaxTokens: maxTokens(req.MaxTokens),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools, err := p.convertTools(req.Tools)
		if err != nil {
			return anthropic.MessageNewParams{}, fmt.Errorf("llm: anthropic: convert tools: %w", err)
		}
		params.Tools = tools
	}
	return params, nil
}

// convertMessages folds roles the same way the Anthropic wire format
// expects: tool-result messages are user-turn content blocks, not a
// distinct role.
func (p *AnthropicProvider) convertMessages(messages []models.Message) ([]anthropic.MessageParam, error) {
	var out []anthropic.MessageParam
	for _, m := range messages {
		if m.Role == models.RoleSystem {
			continue
		}
		var blocks []anthropic.ContentBlockParamUnion
		if m.Content != "" {
			blocks = append(blocks, anthropic.NewTextBlock(m.Content))
		}
		for _, tr := range m.ToolResults {
			blocks = append(blocks, anthropic.NewToolResultBlock(tr.ToolCallID, tr.Content, tr.IsError))
		}
		for _, tc := range m.ToolCalls {
			var input map[string]any
			if len(tc.Arguments) > 0 {
				if err := json.Unmarshal(tc.Arguments, &input); err != nil {
					return nil, fmt.Errorf("tool call %s: invalid arguments: %w", tc.ID, err)
				}
			}
			blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
		}
		if len(blocks) == 0 {
			continue
		}
		if m.Role == models.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		} else {
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}
	return out, nil
}

func (p *AnthropicProvider) convertTools(tools []reactor.ToolSchema) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		raw, err := json.Marshal(t.Parameters)
		if err != nil {
			return nil, err
		}
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(raw, &schema); err != nil {
			return nil, fmt.Errorf("tool %s: invalid schema: %w", t.Name, err)
		}
		tp := anthropic.ToolUnionParamOfTool(schema, t.Name)
		if tp.OfTool != nil {
			tp.OfTool.Description = anthropic.String(t.Description)
		}
		out = append(out, tp)
	}
	return out, nil
}

func (p *AnthropicProvider) convertMessage(msg *anthropic.Message) *reactor.CompletionResult {
	res := &reactor.CompletionResult{
		Usage: models.TokenUsage{
			Input:  int(msg.Usage.InputTokens),
			Output: int(msg.Usage.OutputTokens),
			Total:  int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			res.Content += b.Text
		case anthropic.ToolUseBlock:
			args, _ := json.Marshal(b.Input)
			res.ToolCalls = append(res.ToolCalls, models.ToolCall{ID: b.ID, Name: b.Name, Arguments: args})
		}
	}
	return res
}

// classify maps a raw Anthropic SDK error into the shared LLM taxonomy.
// anthropic.Error carries a StatusCode and a raw JSON body whose error.type
// field is the provider error code, unpacked the same way any
// wrapError/errorPayload helper would.
func (p *AnthropicProvider) classify(err error) *reactor.LLMError {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		code := ""
		var payload struct {
			Error struct {
				Type string `json:"type"`
			} `json:"error"`
		}
		if raw := apiErr.RawJSON(); raw != "" {
			if json.Unmarshal([]byte(raw), &payload) == nil {
				code = payload.Error.Type
			}
		}
		return reactor.ClassifyError("anthropic", apiErr.StatusCode, code, err)
	}
	return reactor.ClassifyError("anthropic", 0, "", err)
}
