package reactor

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kestrel-ai/reactor/pkg/models"
)

// ReactLoop drives the plan/act cycle of §4.1: call the LLM, execute
// whatever tools it asked for, feed the results back, repeat until a
// tool-free assistant turn or max_turns is reached. Grounded on
// internal/agent/loop.go's AgenticLoop.Run/executeToolsPhase/continuePhase,
// collapsed from a channel-based streaming state machine into a single
// synchronous Run (streaming is layered on top by Orchestrator.StreamMessage
// rather than threaded through this type, per SPEC_FULL.md §9's note on
// extracting a shared message-builder).
type ReactLoop struct {
	provider LLMProvider
	invoker  *ToolInvoker
	catalog  *ToolCatalog
	ctxMgr   *ContextManager
	cfg      Config
	logger   *slog.Logger
	tracer   *Tracer
}

// NewReactLoop wires the loop's collaborators.
func NewReactLoop(provider LLMProvider, invoker *ToolInvoker, catalog *ToolCatalog, ctxMgr *ContextManager, cfg Config, logger *slog.Logger) *ReactLoop {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReactLoop{provider: provider, invoker: invoker, catalog: catalog, ctxMgr: ctxMgr, cfg: cfg, logger: logger, tracer: noopTracer()}
}

// WithTracer attaches a Tracer whose spans wrap each LLM call this loop
// makes. Returns l for chaining at construction time.
func (l *ReactLoop) WithTracer(tracer *Tracer) *ReactLoop {
	if tracer != nil {
		l.tracer = tracer
	}
	return l
}

// Run executes the loop to completion or pause, as described in §4.1.
func (l *ReactLoop) Run(ctx context.Context, tenantID string, system string, messages []models.Message) (*models.ReactLoopResult, error) {
	start := time.Now()
	result := &models.ReactLoopResult{}
	turn := 0

	for {
		select {
		case <-ctx.Done():
			return nil, ErrCancelled
		default:
		}

		messages = l.ctxMgr.TrimIfNeeded(messages)

		forceFinal := turn >= l.cfg.MaxTurns
		tools := l.catalog.Schemas()
		if forceFinal {
			tools = nil
			messages = append(messages, models.Message{
				Role:    models.RoleUser,
				Content: "You have executed enough steps. Provide a final answer from the information gathered so far.",
			})
		}

		resp, err := l.callWithRetry(ctx, system, messages, tools, turn)
		if err != nil {
			return nil, err
		}
		result.TokenUsage.Add(resp.Usage)

		if len(resp.ToolCalls) == 0 || forceFinal {
			result.Response = resp.Content
			result.Turns = turn + 1
			result.DurationMs = time.Since(start).Milliseconds()
			return result, nil
		}

		assistantMsg := models.Message{
			Role:      models.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: validateToolCalls(resp.ToolCalls),
		}
		messages = append(messages, assistantMsg)

		dispatched := l.invoker.DispatchAll(ctx, tenantID, assistantMsg.ToolCalls)

		paused := false
		for _, d := range dispatched {
			messages = append(messages, models.Message{
				Role: models.RoleTool,
				ToolResults: []models.ToolResult{{
					ToolCallID: d.Call.ID,
					Content:    d.Content,
					IsError:    d.IsError,
				}},
				Content: d.Content,
			})
			result.ToolCallRecords = append(result.ToolCallRecords, models.ToolCallRecord{
				Name:         d.Call.Name,
				ArgsSummary:  summarizeArgs(d.Call.Arguments),
				DurationMs:   d.DurationMs,
				Success:      !d.IsError,
				ResultStatus: d.Status,
				ResultChars:  len(d.Content),
			})
			if d.ApprovalRequest != nil {
				result.PendingApprovals = append(result.PendingApprovals, *d.ApprovalRequest)
			}
			if d.Status == models.ResultWaitingForInput || d.Status == models.ResultWaitingApproval {
				paused = true
			}
		}

		if paused {
			// All results for this assistant turn are appended (pairing
			// invariant preserved) before the loop breaks, per §4.1 step 5.
			result.Turns = turn + 1
			result.DurationMs = time.Since(start).Milliseconds()
			if result.Response == "" {
				result.Response = pausedResponseText(dispatched)
			}
			return result, nil
		}

		turn++
	}
}

// callWithRetry wraps the provider's Chat call with the §7 recovery policy:
// RateLimit/Transient retry with exponential backoff up to llm_max_retries;
// Timeout retries once, within that same budget; ContextOverflow drives the
// three-step graceful-degrade chain; Auth/Fatal surface immediately.
func (l *ReactLoop) callWithRetry(ctx context.Context, system string, messages []models.Message, tools []ToolSchema, turn int) (*CompletionResult, error) {
	req := CompletionRequest{System: system, Messages: messages, Tools: tools}

	var lastErr error
	overflowAttempt := 0
	timeoutRetried := false
	for attempt := 0; attempt <= l.cfg.LLMMaxRetries; attempt++ {
		spanCtx, span := l.tracer.startLLMSpan(ctx, turn)
		resp, err := l.provider.Chat(spanCtx, req)
		endSpan(span, err)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		le, ok := AsLLMError(err)
		if !ok {
			return nil, err
		}

		switch le.Kind {
		case LLMContextOverflow:
			// The three-step degrade chain (§7) is independent of
			// llm_max_retries: it runs trim_if_needed, then
			// truncate_all_tool_results, then force_trim; once all three
			// have been tried it answers with a fixed final response.
			if overflowAttempt >= 3 {
				return &CompletionResult{Content: "This conversation is too long. Please start a new conversation."}, nil
			}
			req.Messages = l.degradeContext(req.Messages, overflowAttempt)
			overflowAttempt++
			attempt-- // does not consume the llm_max_retries budget
			continue

		case LLMRateLimit, LLMTimeout, LLMTransient:
			if attempt >= l.cfg.LLMMaxRetries || (le.Kind == LLMTimeout && timeoutRetried) {
				return nil, err
			}
			if le.Kind == LLMTimeout {
				timeoutRetried = true
			}
			delay := backoffDelay(l.cfg.LLMRetryBaseDelay, attempt)
			l.logger.Warn("retrying llm call", "kind", le.Kind, "attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				return nil, ErrCancelled
			case <-time.After(delay):
			}
			continue

		default: // Auth, Fatal
			return nil, err
		}
	}
	return nil, lastErr
}

// degradeContext implements the §7 ContextOverflow chain:
// trim_if_needed -> retry ; truncate_all_tool_results -> retry ;
// force_trim -> retry ; else the caller returns a fixed "conversation too
// long" final response.
func (l *ReactLoop) degradeContext(messages []models.Message, attempt int) []models.Message {
	switch attempt {
	case 0:
		return l.ctxMgr.TrimIfNeeded(messages)
	case 1:
		out := append([]models.Message(nil), messages...)
		l.ctxMgr.TruncateAllToolResults(out)
		return out
	default:
		return l.ctxMgr.ForceTrim(messages)
	}
}

func backoffDelay(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
	}
	return d
}

// validateToolCalls assigns an id to any tool call the provider failed to
// supply one for, so the pairing invariant always has something to key on.
func validateToolCalls(calls []models.ToolCall) []models.ToolCall {
	out := make([]models.ToolCall, len(calls))
	for i, c := range calls {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		out[i] = c
	}
	return out
}

func summarizeArgs(raw []byte) string {
	const max = 200
	s := string(raw)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

func pausedResponseText(dispatched []DispatchResult) string {
	for _, d := range dispatched {
		if d.Status == models.ResultWaitingForInput || d.Status == models.ResultWaitingApproval {
			return d.Content
		}
	}
	return ""
}
