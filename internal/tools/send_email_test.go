package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/kestrel-ai/reactor/pkg/models"
)

func TestSendEmailHandlerCompletesImmediately(t *testing.T) {
	var sent struct{ recipient, subject, body string }
	factory := NewSendEmailFactory(func(recipient, subject, body string) error {
		sent.recipient, sent.subject, sent.body = recipient, subject, body
		return nil
	})
	handler := factory()
	result := handler.Step(context.Background(), map[string]any{
		"recipient": "a@example.com",
		"subject":   "hi",
		"body":      "hello there",
	}, "send it")

	if result.Status != models.AgentCompleted {
		t.Fatalf("expected AgentCompleted, got %s", result.Status)
	}
	if sent.recipient != "a@example.com" || sent.subject != "hi" || sent.body != "hello there" {
		t.Fatalf("sender did not receive expected fields: %+v", sent)
	}
}

func TestSendEmailHandlerSurfacesSenderError(t *testing.T) {
	factory := NewSendEmailFactory(func(string, string, string) error {
		return errors.New("smtp unavailable")
	})
	result := factory().Step(context.Background(), map[string]any{
		"recipient": "a@example.com", "subject": "hi", "body": "hello",
	}, "send it")
	if result.Status != models.AgentErrored {
		t.Fatalf("expected AgentErrored, got %s", result.Status)
	}
}
