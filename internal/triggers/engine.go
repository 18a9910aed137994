// Package triggers adapts robfig/cron/v3 into the §6.4 trigger-engine
// contract: scheduled definitions that synthesize a virtual inbound user
// message on fire, plus a small in-memory task ledger the
// ApprovalCoordinator marks EXPIRED through reactor.TriggerTaskMarker.
package triggers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// TaskStatus is the lifecycle of one fired trigger task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskDelivered TaskStatus = "delivered"
	TaskExpired   TaskStatus = "expired"
	TaskFailed    TaskStatus = "failed"
)

// Task records one firing of a Definition, mirroring the outbound
// list_pending_approvals shape of §6.4: enough to report what is
// outstanding without re-deriving it from the agent pool.
type Task struct {
	ID          string
	TenantID    string
	Definition  string
	Status      TaskStatus
	FiredAt     time.Time
	AgentID     string // set once the synthesized message parks an agent
	LastMessage string
}

// Dispatcher delivers a trigger's synthesized content into the
// orchestrator as though a user had sent it. Implementations typically
// wrap Orchestrator.HandleMessage, discarding (or logging) the result.
type Dispatcher func(ctx context.Context, tenantID, content string) (agentID string, err error)

// Definition is one scheduled trigger.
type Definition struct {
	Name     string
	TenantID string
	CronExpr string
	Content  string // the virtual user message synthesized on fire
}

// Engine owns a robfig/cron/v3 scheduler and the task ledger the
// ApprovalCoordinator consults via MarkExpired.
type Engine struct {
	cron       *cron.Cron
	dispatcher Dispatcher
	logger     *slog.Logger

	mu    sync.Mutex
	tasks map[string]*Task // keyed by task ID
}

// NewEngine constructs an Engine. dispatcher must be non-nil; a trigger
// with nowhere to deliver its message is a configuration error.
func NewEngine(dispatcher Dispatcher, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cron: cron.New(cron.WithParser(cron.NewParser(
			cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
		))),
		dispatcher: dispatcher,
		logger:     logger,
		tasks:      map[string]*Task{},
	}
}

// Register schedules def and returns the cron entry ID, which callers can
// pass to Remove. Registration failures are schedule-parse errors only;
// the trigger never fires until cron's own clock reaches the next match.
func (e *Engine) Register(def Definition) (cron.EntryID, error) {
	return e.cron.AddFunc(def.CronExpr, func() { e.fire(def) })
}

func (e *Engine) Remove(id cron.EntryID) { e.cron.Remove(id) }

func (e *Engine) Start() { e.cron.Start() }

// Stop halts the scheduler without waiting; the returned context is done
// once any in-flight fire() call completes, per robfig/cron's Stop() contract.
func (e *Engine) Stop() context.Context { return e.cron.Stop() }

func (e *Engine) fire(def Definition) {
	task := &Task{
		ID:         uuid.NewString(),
		TenantID:   def.TenantID,
		Definition: def.Name,
		Status:     TaskPending,
		FiredAt:    time.Now(),
	}
	e.mu.Lock()
	e.tasks[task.ID] = task
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	agentID, err := e.dispatcher(ctx, def.TenantID, def.Content)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		task.Status = TaskFailed
		task.LastMessage = err.Error()
		e.logger.Error("trigger dispatch failed", "trigger", def.Name, "tenant", def.TenantID, "err", err)
		return
	}
	task.AgentID = agentID
	if agentID != "" {
		task.Status = TaskPending // still awaiting the parked agent's resolution
	} else {
		task.Status = TaskDelivered
	}
}

// MarkExpired implements reactor.TriggerTaskMarker.
func (e *Engine) MarkExpired(ctx context.Context, taskID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	task, ok := e.tasks[taskID]
	if !ok {
		return fmt.Errorf("triggers: unknown task %s", taskID)
	}
	task.Status = TaskExpired
	return nil
}

// PendingByAgent returns a map of agentID -> taskID for tasks still
// awaiting resolution, the shape ApprovalCoordinator.ExpireOverdue needs
// to translate a parked agent back into the task it was fired from.
func (e *Engine) PendingByAgent(tenantID string) map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := map[string]string{}
	for _, t := range e.tasks {
		if t.TenantID == tenantID && t.Status == TaskPending && t.AgentID != "" {
			out[t.AgentID] = t.ID
		}
	}
	return out
}

// ListPending implements the outbound half of §6.4: reporting outstanding
// trigger-fired tasks without the caller needing to re-derive them from
// the agent pool.
func (e *Engine) ListPending(tenantID string) []Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []Task
	for _, t := range e.tasks {
		if t.TenantID == tenantID && (t.Status == TaskPending) {
			out = append(out, *t)
		}
	}
	return out
}
