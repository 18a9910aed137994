package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/kestrel-ai/reactor/internal/reactor"
)

func TestListAgentsToolListsExposedAgents(t *testing.T) {
	registry := reactor.NewAgentRegistry()
	registry.Register(SendEmailSpec(), NewSendEmailFactory(nil))
	registry.Register(TransferFundsSpec(), NewTransferFundsFactory(nil))

	tool := NewListAgentsTool(registry)
	result, err := tool.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(result.Content, "send_email") || !strings.Contains(result.Content, "transfer_funds") {
		t.Fatalf("expected both agents listed, got %q", result.Content)
	}
	if !strings.Contains(result.Content, "[requires approval]") {
		t.Fatalf("expected transfer_funds to be marked as requiring approval, got %q", result.Content)
	}
}

func TestListAgentsToolEmptyRegistry(t *testing.T) {
	tool := NewListAgentsTool(reactor.NewAgentRegistry())
	result, err := tool.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Content != "No agent-tools are registered." {
		t.Fatalf("unexpected content: %q", result.Content)
	}
}
