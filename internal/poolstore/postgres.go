package poolstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/kestrel-ai/reactor/pkg/models"
)

// PostgresStore is a reactor.PoolPersistence backed by a shared Postgres
// instance, for deployments running more than one orchestrator process
// against the same tenant set.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("poolstore: open postgres: %w", err)
	}
	s := &PostgresStore{db: db}
	if _, err := db.Exec(postgresTableDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("poolstore: migrate: %w", err)
	}
	return s, nil
}

const postgresTableDDL = `CREATE TABLE IF NOT EXISTS agent_pool (
	tenant_id TEXT NOT NULL,
	agent_id TEXT NOT NULL,
	agent_type TEXT NOT NULL,
	status TEXT NOT NULL,
	schema_version TEXT NOT NULL,
	collected_fields JSONB NOT NULL DEFAULT '{}',
	task_instruction TEXT,
	approval_prompt TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	ttl_deadline TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (tenant_id, agent_id)
)`

func (s *PostgresStore) Put(ctx context.Context, e models.AgentPoolEntry) error {
	fields, err := json.Marshal(e.CollectedFields)
	if err != nil {
		return fmt.Errorf("poolstore: marshal collected fields: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO agent_pool
		(tenant_id, agent_id, agent_type, status, schema_version, collected_fields, task_instruction, approval_prompt, created_at, ttl_deadline)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (tenant_id, agent_id) DO UPDATE SET
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

func (s *PostgresStore) Delete(ctx context.Context, tenantID, agentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM agent_pool WHERE tenant_id = $1 AND agent_id = $2`, tenantID, agentID)
	if err != nil {
		return fmt.Errorf("poolstore: delete: %w", err)
	}
	return nil
}

func (s *PostgresStore) LoadAll(ctx context.Context) ([]models.AgentPoolEntry, error) {
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
