package tools

import (
	"context"
	"strings"

	"github.com/kestrel-ai/reactor/internal/reactor"
)

// ListAgentsTool enumerates registered Agent-Tools with ExposeAsTool set,
// building its listing from live registry state rather than a static
// roster.
type ListAgentsTool struct {
	registry *reactor.AgentRegistry
}

func NewListAgentsTool(registry *reactor.AgentRegistry) *ListAgentsTool {
	return &ListAgentsTool{registry: registry}
}

func (ListAgentsTool) Name() string { return "list_agents" }

func (ListAgentsTool) Schema() reactor.ToolSchema {
	return reactor.ToolSchema{
		Name:        "list_agents",
		Description: "List the Agent-Tools available for multi-turn, possibly approval-gated tasks.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	}
}

func (t *ListAgentsTool) Execute(_ context.Context, _ map[string]any) (*reactor.ToolExecResult, error) {
	specs := t.registry.List()
	if len(specs) == 0 {
		return &reactor.ToolExecResult{Content: "No agent-tools are registered."}, nil
	}

	var b strings.Builder
	for _, spec := range specs {
		if !spec.ExposeAsTool {
			continue
		}
		b.WriteString(spec.Name)
		if spec.Description != "" {
			b.WriteString(": ")
			b.WriteString(spec.Description)
		}
		if spec.NeedsApproval {
			b.WriteString(" [requires approval]")
		}
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return &reactor.ToolExecResult{Content: "No agent-tools are registered."}, nil
	}
	return &reactor.ToolExecResult{Content: strings.TrimSpace(b.String())}, nil
}
