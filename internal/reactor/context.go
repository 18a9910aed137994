package reactor

import (
	"strings"

	"github.com/kestrel-ai/reactor/pkg/models"
)

// CharsPerToken is the approximate ratio used for all token-budget
// estimation in the loop, the same rough chars-per-token constant a
// compaction package would use.
const CharsPerToken = 4

// ContextManager implements the three-tier trimming defense of §4.4,
// grounded on internal/agent/context/packer.go (per-result truncation,
// message-selection-from-the-end) and an assistant-turn-aware cutoff
// (the analogue of a user/assistant pairing invariant).
type ContextManager struct {
	cfg Config
}

// NewContextManager constructs a manager bound to cfg's token/share/char
// budgets.
func NewContextManager(cfg Config) *ContextManager {
	return &ContextManager{cfg: cfg}
}

// EstimateTokens approximates token count for a single message's content
// plus any tool call/result payloads, using the CharsPerToken ratio.
func EstimateTokens(m models.Message) int {
	chars := len(m.Content)
	for _, tc := range m.ToolCalls {
		chars += len(tc.Arguments)
	}
	for _, tr := range m.ToolResults {
		chars += len(tr.Content)
	}
	return chars / CharsPerToken
}

func estimateTotalTokens(messages []models.Message) int {
	total := 0
	for _, m := range messages {
		total += EstimateTokens(m)
	}
	return total
}

// TruncateToolResult implements defense 1 (§4.4): cut an oversized
// tool-result at max_chars, preferring a newline boundary in the second
// half of the cut, and append a truncation marker.
func (c *ContextManager) TruncateToolResult(content string) string {
	maxChars := c.maxResultChars()
	if len(content) <= maxChars {
		return content
	}
	cut := content[:maxChars]
	half := maxChars / 2
	if idx := strings.LastIndexByte(cut[half:], '\n'); idx >= 0 {
		cut = cut[:half+idx]
	}
	return cut + "\n[...truncated]"
}

func (c *ContextManager) maxResultChars() int {
	byShare := int(float64(c.cfg.ContextTokenLimit) * c.cfg.MaxToolResultShare * CharsPerToken)
	if byShare <= 0 || byShare > c.cfg.MaxToolResultChars {
		return c.cfg.MaxToolResultChars
	}
	return byShare
}

// TruncateAllToolResults rewrites every tool-message in place using
// TruncateToolResult, used between recovery steps in the §7 overflow chain.
func (c *ContextManager) TruncateAllToolResults(messages []models.Message) {
	for i := range messages {
		if messages[i].Role != models.RoleTool {
			continue
		}
		messages[i].Content = c.TruncateToolResult(messages[i].Content)
		results := make([]models.ToolResult, len(messages[i].ToolResults))
		for j, tr := range messages[i].ToolResults {
			tr.Content = c.TruncateToolResult(tr.Content)
			results[j] = tr
		}
		messages[i].ToolResults = results
	}
}

// TrimIfNeeded implements defense 2 (§4.4): if estimated tokens exceed
// context_token_limit * context_trim_threshold, keep all system messages
// plus the last max_history_messages non-system messages, preserving the
// pairing invariant.
func (c *ContextManager) TrimIfNeeded(messages []models.Message) []models.Message {
	threshold := int(float64(c.cfg.ContextTokenLimit) * c.cfg.ContextTrimThreshold)
	if estimateTotalTokens(messages) <= threshold {
		return messages
	}
	return c.trimToLast(messages, c.cfg.MaxHistoryMessages)
}

// ForceTrim implements defense 3 (§4.4): keep system messages plus the last
// 5 non-system messages, preserving pairing. Used only during the overflow
// recovery chain in §7 after TrimIfNeeded and TruncateAllToolResults have
// both failed to bring the request under the limit.
func (c *ContextManager) ForceTrim(messages []models.Message) []models.Message {
	return c.trimToLast(messages, 5)
}

// trimToLast keeps all system messages plus the last keep non-system
// messages, then repairs the pairing invariant at the cut boundary: if the
// retained prefix starts mid-turn (an orphaned tool_call or tool_result),
// that partial turn is dropped entirely rather than repaired in place,
// the same approach a findAssistantCutoffIndex helper would take.
func (c *ContextManager) trimToLast(messages []models.Message, keep int) []models.Message {
	var system []models.Message
	var rest []models.Message
	for _, m := range messages {
		if m.Role == models.RoleSystem {
			system = append(system, m)
		} else {
			rest = append(rest, m)
		}
	}
	if len(rest) > keep {
		rest = rest[len(rest)-keep:]
	}
	rest = repairPairing(rest)
	return append(system, rest...)
}

// repairPairing drops leading tool-messages that reference a tool_call_id
// whose assistant turn fell outside the retained window, and drops a
// trailing assistant turn whose tool_calls have no matching tool-messages
// left in the slice. This is what keeps invariant 1 and 3 of §8 true after
// any of the three trimming defenses run.
func repairPairing(messages []models.Message) []models.Message {
	if len(messages) == 0 {
		return messages
	}

	start := 0
	for start < len(messages) && messages[start].Role == models.RoleTool {
		// Orphaned tool-message with no assistant turn preceding it
		// in the retained window; drop it and keep scanning.
		start++
	}
	messages = messages[start:]

	// Trailing repair: if the last message is an assistant turn with
	// tool_calls and no subsequent tool-messages answer all of them, drop
	// that trailing turn — it would otherwise be sent to the LLM as an
	// incomplete turn.
	if n := len(messages); n > 0 {
		last := messages[n-1]
		if last.Role == models.RoleAssistant && len(last.ToolCalls) > 0 {
			messages = messages[:n-1]
		}
	}
	return messages
}
