package tools

import (
	"fmt"

	"context"

	"github.com/kestrel-ai/reactor/internal/reactor"
	"github.com/kestrel-ai/reactor/pkg/models"
)

// TransferFundsSpec declares the transfer_funds Agent-Tool: approval-gated,
// with one optional field alongside the two required ones, exercising the
// Agent-Tool's multi-turn field-collection path before the approval step.
func TransferFundsSpec() models.AgentSpec {
	return models.AgentSpec{
		Name:        "transfer_funds",
		Description: "Transfer funds to an account. Requires user confirmation.",
		InputFields: []models.InputField{
			{Name: "account", Type: models.FieldString, Description: "Destination account identifier.", Required: true},
			{Name: "amount", Type: models.FieldFloat, Description: "Amount to transfer.", Required: true},
			{Name: "memo", Type: models.FieldString, Description: "Optional memo line.", Required: false},
		},
		NeedsApproval: true,
		ExposeAsTool:  true,
	}
}

// transferFundsHandler asks for any missing required field before parking
// for approval; a decision of anything other than "approved" on resume is
// treated as a denial by the approval coordinator, not by this handler.
type transferFundsHandler struct {
	execute func(account string, amount float64, memo string) error
}

// NewTransferFundsFactory returns an AgentFactory. execute is nil in tests
// and demos; a production deployment wires a ledger/payment API call here.
func NewTransferFundsFactory(execute func(account string, amount float64, memo string) error) reactor.AgentFactory {
	return func() reactor.AgentHandler {
		return &transferFundsHandler{execute: execute}
	}
}

func (h *transferFundsHandler) Step(_ context.Context, collected map[string]any, input string) models.AgentResult {
	for _, field := range []string{"account", "amount"} {
		if _, ok := collected[field]; !ok {
			return models.AgentResult{Status: models.AgentWaiting, Prompt: "What's the " + field + "?"}
		}
	}

	account, _ := collected["account"].(string)
	amount, _ := collected["amount"].(float64)
	memo, _ := collected["memo"].(string)

	if input != "approved" {
		return models.AgentResult{
			Status:         models.AgentApproval,
			ApprovalPrompt: fmt.Sprintf("Transfer %.2f to %s?", amount, account),
		}
	}

	if h.execute != nil {
		if err := h.execute(account, amount, memo); err != nil {
			return models.AgentResult{Status: models.AgentErrored, Err: err}
		}
	}
	return models.AgentResult{
		Status:     models.AgentCompleted,
		RawMessage: fmt.Sprintf("Transferred %.2f to %s.", amount, account),
	}
}
