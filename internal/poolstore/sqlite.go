// Package poolstore provides concrete reactor.PoolPersistence adapters
// over modernc.org/sqlite (single-node deployments) and lib/pq (multi-node
// deployments sharing one Postgres instance).
package poolstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kestrel-ai/reactor/pkg/models"
)

// SQLiteStore is a reactor.PoolPersistence backed by a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("poolstore: open sqlite: %w", err)
	}
	s := &SQLiteStore{db: db}
	if _, err := db.Exec(poolTableDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("poolstore: migrate: %w", err)
	}
	return s, nil
}

const poolTableDDL = `CREATE TABLE IF NOT EXISTS agent_pool (
	tenant_id TEXT NOT NULL,
	agent_id TEXT NOT NULL,
	agent_type TEXT NOT NULL,
	status TEXT NOT NULL,
	schema_version TEXT NOT NULL,
	collected_fields TEXT NOT NULL,
	task_instruction TEXT,
	approval_prompt TEXT,
	created_at DATETIME NOT NULL,
	ttl_deadline DATETIME NOT NULL,
	PRIMARY KEY (tenant_id, agent_id)
)`

func (s *SQLiteStore) Put(ctx context.Context, e models.AgentPoolEntry) error {
	fields, err := json.Marshal(e.CollectedFields)
	if err != nil {
		return fmt.Errorf("poolstore: marshal collected fields: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO agent_pool
		(tenant_id, agent_id, agent_type, status, schema_version, collected_fields, task_instruction, approval_prompt, created_at, ttl_deadline)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, agent_id) DO UPDATE SET
			agent_type=excluded.agent_type, status=excluded.status, schema_version=excluded.schema_version,
			collected_fields=excluded.collected_fields, task_instruction=excluded.task_instruction,
			approval_prompt=excluded.approval_prompt, ttl_deadline=excluded.ttl_deadline`,
		e.TenantID, e.AgentID, e.AgentType, string(e.Status), e.SchemaVersion, string(fields),
		e.TaskInstruction, e.ApprovalPrompt, e.CreatedAt, e.TTLDeadline)
	if err != nil {
		return fmt.Errorf("poolstore: put: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, tenantID, agentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM agent_pool WHERE tenant_id = ? AND agent_id = ?`, tenantID, agentID)
	if err != nil {
		return fmt.Errorf("poolstore: delete: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadAll(ctx context.Context) ([]models.AgentPoolEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tenant_id, agent_id, agent_type, status, schema_version,
		collected_fields, task_instruction, approval_prompt, created_at, ttl_deadline FROM agent_pool`)
	if err != nil {
		return nil, fmt.Errorf("poolstore: load all: %w", err)
	}
	defer rows.Close()

	var out []models.AgentPoolEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(rows rowScanner) (models.AgentPoolEntry, error) {
	var e models.AgentPoolEntry
	var status, fieldsJSON string
	var taskInstruction, approvalPrompt sql.NullString
	var createdAt, ttlDeadline time.Time
	if err := rows.Scan(&e.TenantID, &e.AgentID, &e.AgentType, &status, &e.SchemaVersion,
		&fieldsJSON, &taskInstruction, &approvalPrompt, &createdAt, &ttlDeadline); err != nil {
		return e, fmt.Errorf("poolstore: scan: %w", err)
	}
	e.Status = models.AgentStatus(status)
	e.TaskInstruction = taskInstruction.String
	e.ApprovalPrompt = approvalPrompt.String
	e.CreatedAt = createdAt
	e.TTLDeadline = ttlDeadline
	if fieldsJSON != "" {
		if err := json.Unmarshal([]byte(fieldsJSON), &e.CollectedFields); err != nil {
			return e, fmt.Errorf("poolstore: unmarshal collected fields: %w", err)
		}
	}
	return e, nil
}
