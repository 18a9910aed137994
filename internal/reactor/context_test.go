package reactor

import (
	"strings"
	"testing"

	"github.com/kestrel-ai/reactor/pkg/models"
)

func TestTruncateToolResult_UnderLimitUnchanged(t *testing.T) {
	c := NewContextManager(Config{ContextTokenLimit: 1000, MaxToolResultShare: 0.3, MaxToolResultChars: 400})
	in := "short result"
	if got := c.TruncateToolResult(in); got != in {
		t.Fatalf("expected unchanged, got %q", got)
	}
}

func TestTruncateToolResult_OverLimitTruncatesAtNewline(t *testing.T) {
	c := NewContextManager(Config{ContextTokenLimit: 100000, MaxToolResultShare: 0.3, MaxToolResultChars: 100})
	var b strings.Builder
	for i := 0; i < 50; i++ {
		b.WriteString("line of text here\n")
	}
	got := c.TruncateToolResult(b.String())
	if !strings.HasSuffix(got, "\n[...truncated]") {
		t.Fatalf("expected truncation marker, got suffix %q", got[max(0, len(got)-30):])
	}
	if len(got) > 100+len("\n[...truncated]") {
		t.Fatalf("result too long: %d chars", len(got))
	}
}

func TestTrimIfNeeded_PreservesPairing(t *testing.T) {
	cfg := Config{ContextTokenLimit: 10, ContextTrimThreshold: 0.5, MaxHistoryMessages: 2, MaxToolResultChars: 1000, MaxToolResultShare: 1}
	c := NewContextManager(cfg)

	msgs := []models.Message{
		{Role: models.RoleSystem, Content: "sys"},
		{Role: models.RoleUser, Content: strings.Repeat("a", 100)},
		{Role: models.RoleAssistant, Content: "", ToolCalls: []models.ToolCall{{ID: "t1", Name: "x"}}},
		{Role: models.RoleTool, Content: strings.Repeat("b", 100)},
		{Role: models.RoleUser, Content: strings.Repeat("c", 100)},
	}

	out := c.TrimIfNeeded(msgs)

	// No tool-message may appear without its assistant turn present.
	hasAssistantWithCalls := false
	for _, m := range out {
		if m.Role == models.RoleAssistant && len(m.ToolCalls) > 0 {
			hasAssistantWithCalls = true
		}
		if m.Role == models.RoleTool && !hasAssistantWithCalls {
			t.Fatalf("found orphaned tool message with no preceding assistant turn: %+v", out)
		}
	}
}

func TestForceTrim_KeepsSystemPlusLastFive(t *testing.T) {
	cfg := Config{ContextTokenLimit: 1000, MaxToolResultChars: 1000, MaxToolResultShare: 1}
	c := NewContextManager(cfg)

	var msgs []models.Message
	msgs = append(msgs, models.Message{Role: models.RoleSystem, Content: "sys"})
	for i := 0; i < 20; i++ {
		msgs = append(msgs, models.Message{Role: models.RoleUser, Content: "m"})
	}
	out := c.ForceTrim(msgs)

	nonSystem := 0
	for _, m := range out {
		if m.Role != models.RoleSystem {
			nonSystem++
		}
	}
	if nonSystem > 5 {
		t.Fatalf("expected at most 5 non-system messages, got %d", nonSystem)
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
