package reactor

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/kestrel-ai/reactor/pkg/models"
)

// sendEmailTestHandler mirrors the reference send_email Agent-Tool used in
// §8 scenario S3, inlined here to avoid an import cycle with
// internal/tools (which itself depends on this package).
type sendEmailTestHandler struct{}

func (h *sendEmailTestHandler) Step(ctx context.Context, collected map[string]any, input string) models.AgentResult {
	for _, f := range []string{"recipient", "subject", "body"} {
		if _, ok := collected[f]; !ok {
			return models.AgentResult{Status: models.AgentWaiting, Prompt: "What's the " + f + "?"}
		}
	}
	return models.AgentResult{Status: models.AgentCompleted, RawMessage: "sent"}
}

func sendEmailSpec() models.AgentSpec {
	return models.AgentSpec{
		Name: "send_email",
		InputFields: []models.InputField{
			{Name: "recipient", Type: models.FieldString, Required: true},
			{Name: "subject", Type: models.FieldString, Required: true},
			{Name: "body", Type: models.FieldString, Required: true},
		},
		ExposeAsTool: true,
	}
}

// TestReactLoop_S3_AgentToolNeedsInput mirrors §8 scenario S3: the loop
// breaks immediately after the parked result is appended, returning the
// agent's prompt as the response, with no forced follow-up call.
func TestReactLoop_S3_AgentToolNeedsInput(t *testing.T) {
	registry := NewAgentRegistry()
	registry.Register(sendEmailSpec(), func() AgentHandler { return &sendEmailTestHandler{} })

	catalog, err := NewToolCatalog(nil, registry)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	cfg := defaultTestConfig()
	ctxMgr := NewContextManager(cfg)
	pool := NewAgentPool(registry, nil, 10, nil)
	invoker := NewToolInvoker(catalog, pool, ctxMgr, cfg)

	args, _ := json.Marshal(map[string]any{"recipient": "alice@x.com"})
	provider := &scriptedProvider{responses: []scriptedResponse{
		{toolCalls: []models.ToolCall{{ID: "c1", Name: "send_email", Arguments: args}}},
	}}
	loop := NewReactLoop(provider, invoker, catalog, ctxMgr, cfg, nil)

	result, err := loop.Run(context.Background(), "tenant1", "sys", []models.Message{
		{Role: models.RoleUser, Content: "Send an email to alice@x.com."},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Response == "" {
		t.Fatal("expected a prompt for the missing subject field")
	}
	if _, ok := pool.FindPending("tenant1"); !ok {
		t.Fatal("expected agent to be parked in the pool")
	}
}

// transferFundsTestHandler mirrors the reference transfer_funds Agent-Tool
// used in §8 scenario S4.
type transferFundsTestHandler struct{}

func (h *transferFundsTestHandler) Step(ctx context.Context, collected map[string]any, input string) models.AgentResult {
	for _, f := range []string{"account", "amount"} {
		if _, ok := collected[f]; !ok {
			return models.AgentResult{Status: models.AgentWaiting, Prompt: "What's the " + f + "?"}
		}
	}
	if input == "approved" {
		return models.AgentResult{Status: models.AgentCompleted, RawMessage: "transferred"}
	}
	return models.AgentResult{Status: models.AgentApproval, ApprovalPrompt: "Transfer funds?"}
}

func transferFundsSpec() models.AgentSpec {
	return models.AgentSpec{
		Name: "transfer_funds",
		InputFields: []models.InputField{
			{Name: "account", Type: models.FieldString, Required: true},
			{Name: "amount", Type: models.FieldFloat, Required: true},
		},
		NeedsApproval: true,
		ExposeAsTool:  true,
	}
}

// TestReactLoop_S4_ApprovalThenCancel mirrors §8 scenario S4: the agent
// parks awaiting approval, then the user cancels via the
// ApprovalCoordinator, and the loop resumes with an is_error tool-message.
func TestReactLoop_S4_ApprovalThenCancel(t *testing.T) {
	registry := NewAgentRegistry()
	registry.Register(transferFundsSpec(), func() AgentHandler { return &transferFundsTestHandler{} })

	catalog, err := NewToolCatalog(nil, registry)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	cfg := defaultTestConfig()
	ctxMgr := NewContextManager(cfg)
	pool := NewAgentPool(registry, nil, 10, nil)
	invoker := NewToolInvoker(catalog, pool, ctxMgr, cfg)

	args, _ := json.Marshal(map[string]any{"account": "acct-1", "amount": 100.0})
	provider := &scriptedProvider{responses: []scriptedResponse{
		{toolCalls: []models.ToolCall{{ID: "c1", Name: "transfer_funds", Arguments: args}}},
	}}
	loop := NewReactLoop(provider, invoker, catalog, ctxMgr, cfg, nil)

	result, err := loop.Run(context.Background(), "tenant1", "sys", []models.Message{
		{Role: models.RoleUser, Content: "Transfer 100 to acct-1."},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.PendingApprovals) != 1 {
		t.Fatalf("expected one pending approval, got %d", len(result.PendingApprovals))
	}
	agentID := result.PendingApprovals[0].AgentID

	coord := NewApprovalCoordinator(pool, registry, nil)
	content, isError, terminal, err := coord.Resolve(context.Background(), "tenant1", agentID, DecisionCancel, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !isError || !terminal {
		t.Fatalf("expected cancel to be a terminal error outcome, got isError=%v terminal=%v", isError, terminal)
	}
	if content != "User cancelled this action." {
		t.Fatalf("unexpected cancel content: %q", content)
	}
	if _, ok := pool.Get("tenant1", agentID); ok {
		t.Fatal("expected cancelled agent to be removed from the pool")
	}
}

// TestAgentPool_S6_SchemaMismatchOnRestart mirrors §8 scenario S6.
func TestAgentPool_S6_SchemaMismatchOnRestart(t *testing.T) {
	registry := NewAgentRegistry()
	registry.Register(sendEmailSpec(), func() AgentHandler { return &sendEmailTestHandler{} })

	persisted := []models.AgentPoolEntry{{AgentInstance: models.AgentInstance{
		AgentID: "a1", AgentType: "send_email", TenantID: "t1",
		Status: models.StatusWaitingForInput, SchemaVersion: "v1-stale",
	}}}
	store := &fakePersistence{entries: persisted}

	pool := NewAgentPool(registry, store, 10, nil)
	if err := pool.Restore(context.Background()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if _, ok := pool.FindPending("t1"); ok {
		t.Fatal("expected stale-schema entry to be discarded on restore")
	}
}

type fakePersistence struct {
	entries []models.AgentPoolEntry
}

func (f *fakePersistence) Put(ctx context.Context, e models.AgentPoolEntry) error { return nil }
func (f *fakePersistence) Delete(ctx context.Context, tenantID, agentID string) error { return nil }
func (f *fakePersistence) LoadAll(ctx context.Context) ([]models.AgentPoolEntry, error) {
	return f.entries, nil
}
