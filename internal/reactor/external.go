package reactor

import (
	"context"

	"github.com/kestrel-ai/reactor/pkg/models"
)

// MemoryProvider is the external contract of §6.3. Concrete adapters live
// in internal/memory.
type MemoryProvider interface {
	GetHistory(ctx context.Context, tenantID, sessionID string, limit int) ([]models.Message, error)
	SaveHistory(ctx context.Context, tenantID, sessionID string, messages []models.Message) error
	Search(ctx context.Context, tenantID, query string, limit int) ([]string, error)
	Add(ctx context.Context, tenantID string, messages []models.Message, infer bool) error
}

// CredentialStore is the external contract of §6.2. Concrete adapters live
// in internal/credentials.
type CredentialStore interface {
	Save(ctx context.Context, tenantID, service string, creds map[string]string, account string) error
	Get(ctx context.Context, tenantID, service, account string) (map[string]string, bool, error)
	List(ctx context.Context, tenantID, service string) ([]string, error)
	Delete(ctx context.Context, tenantID, service, account string) error
}

// PolicyGate implements the Orchestrator's should_process step (§4.6).
// A nil gate is treated as "always allow".
type PolicyGate interface {
	Allow(ctx context.Context, tenantID string, msg models.Message) (allowed bool, reason string)
}
