package reactor

import (
	"errors"
	"strings"
)

// Sentinel errors surfaced by the loop and its collaborators.
var (
	ErrMaxTurnsExceeded = errors.New("reactor: max turns exceeded")
	ErrCancelled        = errors.New("reactor: cancelled")
	ErrAgentNotFound    = errors.New("reactor: agent not registered")
	ErrToolNotFound     = errors.New("reactor: tool not registered")
	ErrSchemaMismatch   = errors.New("reactor: pool entry schema version mismatch")
)

// LLMErrorKind classifies a provider failure into the six-way taxonomy §6.1
// and §7 require. Concrete providers (internal/llm) map their raw errors
// into this kind at the boundary; the loop never inspects provider-specific
// error types directly.
type LLMErrorKind string

const (
	LLMRateLimit      LLMErrorKind = "rate_limit"
	LLMContextOverflow LLMErrorKind = "context_overflow"
	LLMAuth           LLMErrorKind = "auth"
	LLMTimeout        LLMErrorKind = "timeout"
	LLMTransient      LLMErrorKind = "transient"
	LLMFatal          LLMErrorKind = "fatal"
)

// Retryable reports whether the loop's retry chain should ever attempt this
// kind again (as opposed to surfacing it to the caller immediately).
func (k LLMErrorKind) Retryable() bool {
	switch k {
	case LLMRateLimit, LLMTimeout, LLMTransient, LLMContextOverflow:
		return true
	default:
		return false
	}
}

// LLMError wraps a provider failure with its classified kind. Providers
// construct this via ClassifyError; the loop switches on Kind to select a
// recovery policy (§7).
type LLMError struct {
	Kind     LLMErrorKind
	Provider string
	Message  string
	Cause    error
}

func (e *LLMError) Error() string {
	if e.Provider != "" {
		return "reactor: " + e.Provider + ": " + string(e.Kind) + ": " + e.Message
	}
	return "reactor: " + string(e.Kind) + ": " + e.Message
}

func (e *LLMError) Unwrap() error { return e.Cause }

// AsLLMError extracts an *LLMError from err, if any.
func AsLLMError(err error) (*LLMError, bool) {
	var le *LLMError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}

// ClassifyError maps a raw provider error into the six-way LLM taxonomy
// using the same substring-pattern style a ClassifyError/
// classifyStatusCode/classifyErrorCode chain would use, extended here
// with context-length detection.
func ClassifyError(provider string, statusCode int, errCode string, err error) *LLMError {
	if err == nil {
		return nil
	}
	msg := err.Error()
	lower := strings.ToLower(msg)

	if kind, ok := classifyContextOverflow(lower); ok {
		return &LLMError{Kind: kind, Provider: provider, Message: msg, Cause: err}
	}
	if kind, ok := classifyErrorCode(errCode); ok {
		return &LLMError{Kind: kind, Provider: provider, Message: msg, Cause: err}
	}
	if kind, ok := classifyStatusCode(statusCode); ok {
		return &LLMError{Kind: kind, Provider: provider, Message: msg, Cause: err}
	}
	if kind, ok := classifyBySubstring(lower); ok {
		return &LLMError{Kind: kind, Provider: provider, Message: msg, Cause: err}
	}
	return &LLMError{Kind: LLMTransient, Provider: provider, Message: msg, Cause: err}
}

// contextOverflowPatterns are the substrings providers use to report an
// overlong request; this function is what checks for them.
var contextOverflowPatterns = []string{
	"context_length_exceeded",
	"context length exceeded",
	"maximum context length",
	"too many tokens",
	"exceeds the model's maximum context",
	"prompt is too long",
	"request too large",
}

func classifyContextOverflow(lower string) (LLMErrorKind, bool) {
	for _, p := range contextOverflowPatterns {
		if strings.Contains(lower, p) {
			return LLMContextOverflow, true
		}
	}
	return "", false
}

func classifyStatusCode(status int) (LLMErrorKind, bool) {
	switch {
	case status == 401 || status == 403:
		return LLMAuth, true
	case status == 429:
		return LLMRateLimit, true
	case status == 408:
		return LLMTimeout, true
	case status == 400:
		return LLMFatal, true
	case status >= 500 && status < 600:
		return LLMTransient, true
	default:
		return "", false
	}
}

func classifyErrorCode(code string) (LLMErrorKind, bool) {
	switch code {
	case "rate_limit_error", "rate_limit_exceeded":
		return LLMRateLimit, true
	case "authentication_error", "invalid_api_key", "permission_error":
		return LLMAuth, true
	case "context_length_exceeded":
		return LLMContextOverflow, true
	case "overloaded_error", "api_error":
		return LLMTransient, true
	default:
		return "", false
	}
}

func classifyBySubstring(lower string) (LLMErrorKind, bool) {
	switch {
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "too many requests"):
		return LLMRateLimit, true
	case strings.Contains(lower, "unauthorized") || strings.Contains(lower, "invalid api key") || strings.Contains(lower, "forbidden"):
		return LLMAuth, true
	case strings.Contains(lower, "deadline exceeded") || strings.Contains(lower, "timeout") || strings.Contains(lower, "timed out"):
		return LLMTimeout, true
	case strings.Contains(lower, "connection reset") || strings.Contains(lower, "eof") || strings.Contains(lower, "broken pipe") || strings.Contains(lower, "overloaded"):
		return LLMTransient, true
	default:
		return "", false
	}
}

// ToolErrorKind classifies a tool-dispatch failure. Unlike LLM errors these
// are never retried by the loop itself; they are converted to an is_error
// tool-message and delegated back to the planner (§7).
type ToolErrorKind string

const (
	ToolErrNotFound  ToolErrorKind = "registry_miss"
	ToolErrBadShape  ToolErrorKind = "argument_shape"
	ToolErrExecution ToolErrorKind = "execution"
	ToolErrTimeout   ToolErrorKind = "timeout"
	ToolErrPanic     ToolErrorKind = "panic"
)

// ToolError is the structured failure attached to a ToolCallRecord /
// returned as the content of an is_error tool-message.
type ToolError struct {
	Kind       ToolErrorKind
	ToolName   string
	ToolCallID string
	Message    string
	Cause      error
}

func (e *ToolError) Error() string {
	return "reactor: tool " + e.ToolName + ": " + string(e.Kind) + ": " + e.Message
}

func (e *ToolError) Unwrap() error { return e.Cause }

func newToolError(kind ToolErrorKind, name, callID, msg string, cause error) *ToolError {
	return &ToolError{Kind: kind, ToolName: name, ToolCallID: callID, Message: msg, Cause: cause}
}

// PolicyError is returned by should_process when a message is rejected
// before it ever reaches the loop.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string { return "reactor: rejected by policy: " + e.Reason }
