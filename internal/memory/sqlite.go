// Package memory provides concrete reactor.MemoryProvider implementations:
// a SQLite-backed store for durable per-tenant history, and an in-memory
// store for tests and local runs.
package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/kestrel-ai/reactor/pkg/models"
)

// SQLiteStore persists per-tenant session history and a flat recall log
// used to back Search. The schema is intentionally simple: history is
// stored as one row per message keyed by (tenant_id, session_id), ordered
// by an autoincrement sequence rather than timestamp, since messages
// within a turn can share a created_at value.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) a SQLite-backed store at path. Pass
// ":memory:" for an ephemeral store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("memory: open sqlite: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			tenant_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			tool_calls TEXT,
			tool_results TEXT,
			metadata TEXT,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(tenant_id, session_id, seq)`,
		`CREATE TABLE IF NOT EXISTS recall (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			tenant_id TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_recall_tenant ON recall(tenant_id, seq)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("memory: migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) GetHistory(ctx context.Context, tenantID, sessionID string, limit int) ([]models.Message, error) {
	query := `SELECT id, role, content, tool_calls, tool_results, metadata, created_at
		FROM messages WHERE tenant_id = ? AND session_id = ? ORDER BY seq DESC`
	args := []any{tenantID, sessionID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("memory: get history: %w", err)
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		m, err := scanMessage(rows, tenantID, sessionID)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Rows come back newest-first to make LIMIT cheap; reverse to
	// chronological order before returning.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func scanMessage(rows *sql.Rows, tenantID, sessionID string) (models.Message, error) {
	var m models.Message
	var toolCallsJSON, toolResultsJSON, metadataJSON sql.NullString
	if err := rows.Scan(&m.ID, &m.Role, &m.Content, &toolCallsJSON, &toolResultsJSON, &metadataJSON, &m.CreatedAt); err != nil {
		return m, fmt.Errorf("memory: scan message: %w", err)
	}
	m.TenantID = tenantID
	m.SessionID = sessionID
	if toolCallsJSON.Valid && toolCallsJSON.String != "" {
		_ = json.Unmarshal([]byte(toolCallsJSON.String), &m.ToolCalls)
	}
	if toolResultsJSON.Valid && toolResultsJSON.String != "" {
		_ = json.Unmarshal([]byte(toolResultsJSON.String), &m.ToolResults)
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		_ = json.Unmarshal([]byte(metadataJSON.String), &m.Metadata)
	}
	return m, nil
}

// SaveHistory replaces a session's stored history with messages, inside a
// single transaction so a crash mid-write never leaves a partial history.
func (s *SQLiteStore) SaveHistory(ctx context.Context, tenantID, sessionID string, messages []models.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("memory: save history: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE tenant_id = ? AND session_id = ?`, tenantID, sessionID); err != nil {
		return fmt.Errorf("memory: save history: clear: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO messages
		(tenant_id, session_id, id, role, content, tool_calls, tool_results, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("memory: save history: prepare: %w", err)
	}
	defer stmt.Close()

	for _, m := range messages {
		id := m.ID
		if id == "" {
			id = uuid.NewString()
		}
		createdAt := m.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		toolCalls, _ := json.Marshal(m.ToolCalls)
		toolResults, _ := json.Marshal(m.ToolResults)
		metadata, _ := json.Marshal(m.Metadata)
		if _, err := stmt.ExecContext(ctx, tenantID, sessionID, id, string(m.Role), m.Content,
			string(toolCalls), string(toolResults), string(metadata), createdAt); err != nil {
			return fmt.Errorf("memory: save history: insert: %w", err)
		}
	}
	return tx.Commit()
}

// Add appends messages to the recall log. The infer flag mirrors the
// external memory-service contract's semantic-extraction hint; this store
// has no embedding pipeline, so infer only controls whether tool-call
// scaffolding content (rather than just user/assistant text) is recorded.
func (s *SQLiteStore) Add(ctx context.Context, tenantID string, messages []models.Message, infer bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("memory: add: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO recall (tenant_id, content, created_at) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("memory: add: prepare: %w", err)
	}
	defer stmt.Close()

	for _, m := range messages {
		if !infer && m.Role != models.RoleUser && m.Role != models.RoleAssistant {
			continue
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, tenantID, m.Content, time.Now()); err != nil {
			return fmt.Errorf("memory: add: insert: %w", err)
		}
	}
	return tx.Commit()
}

// Search does a LIKE-based substring scan over the recall log. This is a
// deliberately simple stand-in for the vector-similarity search a real
// deployment would run through an embeddings backend; the contract only
// promises a ranked list of recalled strings, not a particular ranking
// algorithm.
func (s *SQLiteStore) Search(ctx context.Context, tenantID, query string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `SELECT content FROM recall
		WHERE tenant_id = ? AND content LIKE ? ORDER BY seq DESC LIMIT ?`,
		tenantID, "%"+query+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("memory: search: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, err
		}
		out = append(out, content)
	}
	return out, rows.Err()
}
