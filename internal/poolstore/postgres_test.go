package poolstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kestrel-ai/reactor/pkg/models"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &PostgresStore{db: db}, mock
}

func TestPostgresStorePutInsertsEntry(t *testing.T) {
	store, mock := newMockStore(t)

	entry := models.AgentPoolEntry{
		TenantID:      "tenant-a",
		AgentID:       "agent-1",
		AgentType:     "refund",
		Status:        models.StatusWaitingForInput,
		SchemaVersion: "v1",
		CreatedAt:     time.Now(),
		TTLDeadline:   time.Now().Add(time.Hour),
	}

	mock.ExpectExec("INSERT INTO agent_pool").
		WithArgs(entry.TenantID, entry.AgentID, entry.AgentType, string(entry.Status), entry.SchemaVersion,
			sqlmock.AnyArg(), entry.TaskInstruction, entry.ApprovalPrompt, entry.CreatedAt, entry.TTLDeadline).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Put(context.Background(), entry); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresStorePutPropagatesDatabaseError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO agent_pool").
		WillReturnError(errors.New("connection refused"))

	err := store.Put(context.Background(), models.AgentPoolEntry{TenantID: "t", AgentID: "a"})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestPostgresStoreDeleteRemovesEntry(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM agent_pool").
		WithArgs("tenant-a", "agent-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Delete(context.Background(), "tenant-a", "agent-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresStoreLoadAllScansRows(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"tenant_id", "agent_id", "agent_type", "status", "schema_version",
		"collected_fields", "task_instruction", "approval_prompt", "created_at", "ttl_deadline",
	}).AddRow(
		"tenant-a", "agent-1", "refund", string(models.StatusWaitingForApproval), "v1",
		[]byte(`{"amount":"50"}`), "refund the order", "refund $50?", now, now.Add(time.Hour),
	)
	mock.ExpectQuery("SELECT tenant_id, agent_id").WillReturnRows(rows)

	entries, err := store.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].AgentID != "agent-1" || entries[0].Status != models.StatusWaitingForApproval {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}
	if entries[0].CollectedFields["amount"] != "50" {
		t.Fatalf("expected collected field amount=50, got %+v", entries[0].CollectedFields)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresStoreLoadAllPropagatesQueryError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT tenant_id, agent_id").WillReturnError(errors.New("database error"))

	if _, err := store.LoadAll(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
