package tools

import (
	"context"
	"fmt"

	"github.com/kestrel-ai/reactor/internal/reactor"
	"github.com/kestrel-ai/reactor/pkg/models"
)

// SendEmailSpec declares the send_email Agent-Tool: approval-free, three
// required fields, seeded from the LLM's call arguments; any still missing
// are asked for one at a time.
func SendEmailSpec() models.AgentSpec {
	return models.AgentSpec{
		Name:        "send_email",
		Description: "Send an email to a recipient.",
		InputFields: []models.InputField{
			{Name: "recipient", Type: models.FieldString, Description: "Email address to send to.", Required: true},
			{Name: "subject", Type: models.FieldString, Description: "Subject line.", Required: true},
			{Name: "body", Type: models.FieldString, Description: "Email body text.", Required: true},
		},
		NeedsApproval: false,
		ExposeAsTool:  true,
	}
}

// sendEmailHandler is stateless: it returns WAITING_FOR_INPUT for the first
// missing field and sends as soon as all three fields are present.
type sendEmailHandler struct {
	sender func(recipient, subject, body string) error
}

// NewSendEmailFactory returns an AgentFactory. sender is nil in tests and
// demos; a production deployment wires an SMTP/API-backed sender here.
func NewSendEmailFactory(sender func(recipient, subject, body string) error) reactor.AgentFactory {
	return func() reactor.AgentHandler {
		return &sendEmailHandler{sender: sender}
	}
}

func (h *sendEmailHandler) Step(_ context.Context, collected map[string]any, _ string) models.AgentResult {
	for _, field := range []string{"recipient", "subject", "body"} {
		if _, ok := collected[field]; !ok {
			return models.AgentResult{Status: models.AgentWaiting, Prompt: "What's the " + field + "?"}
		}
	}
	recipient, _ := collected["recipient"].(string)
	subject, _ := collected["subject"].(string)
	body, _ := collected["body"].(string)

	if h.sender != nil {
		if err := h.sender(recipient, subject, body); err != nil {
			return models.AgentResult{Status: models.AgentErrored, Err: err}
		}
	}
	return models.AgentResult{
		Status:     models.AgentCompleted,
		RawMessage: fmt.Sprintf("Email sent to %s with subject %q.", recipient, subject),
	}
}
