package poolstore

import (
	"context"
	"testing"
	"time"

	"github.com/kestrel-ai/reactor/pkg/models"
)

func TestSQLiteStorePutLoadAll(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	entry := models.AgentPoolEntry{
		TenantID:        "tenant-a",
		AgentID:         "agent-1",
		AgentType:       "transfer_funds",
		Status:          models.StatusWaitingForInput,
		SchemaVersion:   "v1",
		CollectedFields: map[string]any{"account": "acct-1"},
		TaskInstruction: "transfer money",
		CreatedAt:       time.Now().UTC().Truncate(time.Second),
		TTLDeadline:     time.Now().UTC().Add(time.Hour).Truncate(time.Second),
	}
	if err := s.Put(ctx, entry); err != nil {
		t.Fatalf("put: %v", err)
	}

	all, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load all: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(all))
	}
	got := all[0]
	if got.AgentID != entry.AgentID || got.TenantID != entry.TenantID {
		t.Fatalf("unexpected entry: %+v", got)
	}
	if got.CollectedFields["account"] != "acct-1" {
		t.Fatalf("expected collected fields to round-trip, got %v", got.CollectedFields)
	}
}

func TestSQLiteStorePutUpdatesExistingEntry(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	base := models.AgentPoolEntry{
		TenantID: "tenant-a", AgentID: "agent-1", AgentType: "send_email",
		Status: models.StatusWaitingForInput, SchemaVersion: "v1",
		CreatedAt: time.Now().UTC(), TTLDeadline: time.Now().UTC().Add(time.Hour),
	}
	if err := s.Put(ctx, base); err != nil {
		t.Fatalf("put: %v", err)
	}
	base.Status = models.StatusWaitingForApproval
	if err := s.Put(ctx, base); err != nil {
		t.Fatalf("update: %v", err)
	}

	all, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load all: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected update in place, got %d rows", len(all))
	}
	if all[0].Status != models.StatusWaitingForApproval {
		t.Fatalf("expected updated status, got %s", all[0].Status)
	}
}

func TestSQLiteStoreDelete(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	entry := models.AgentPoolEntry{
		TenantID: "tenant-a", AgentID: "agent-1", AgentType: "send_email",
		Status: models.StatusWaitingForInput, SchemaVersion: "v1",
		CreatedAt: time.Now().UTC(), TTLDeadline: time.Now().UTC().Add(time.Hour),
	}
	if err := s.Put(ctx, entry); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Delete(ctx, "tenant-a", "agent-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	all, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load all: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected no entries after delete, got %d", len(all))
	}
}
