package reactor

import (
	"context"
	"fmt"
	"time"

	"github.com/kestrel-ai/reactor/pkg/models"
)

// Decision is the user's reply to a pending ApprovalRequest (§4.5).
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionEdit    Decision = "edit"
	DecisionCancel  Decision = "cancel"
)

// TriggerTaskMarker lets the ApprovalCoordinator notify the trigger engine
// contract (§6.4) that a triggered task's approval expired. Grounded on the
// outbound half of that contract; the orchestrator supplies a concrete
// implementation backed by internal/triggers.
type TriggerTaskMarker interface {
	MarkExpired(ctx context.Context, taskID string) error
}

// ApprovalCoordinator resolves a paused Agent-Tool's approval decision and
// resumes the loop, grounded on internal/agent/approval.go's
// ApprovalChecker/ApprovalStore shape, adapted from plain-tool gating to
// the pool-backed Agent-Tool model of §4.5.
type ApprovalCoordinator struct {
	pool     *AgentPool
	registry *AgentRegistry
	triggers TriggerTaskMarker
}

// NewApprovalCoordinator wires the coordinator to the pool it resumes
// entries from. triggers may be nil if no trigger engine is configured.
func NewApprovalCoordinator(pool *AgentPool, registry *AgentRegistry, triggers TriggerTaskMarker) *ApprovalCoordinator {
	return &ApprovalCoordinator{pool: pool, registry: registry, triggers: triggers}
}

// Resolve drives a parked agent's approval decision forward and returns the
// tool-message content to append to the conversation plus whether the
// agent is now terminal (and should be removed from the pool).
func (c *ApprovalCoordinator) Resolve(ctx context.Context, tenantID, agentID string, decision Decision, editedFields map[string]any) (content string, isError bool, terminal bool, err error) {
	entry, ok := c.pool.Get(tenantID, agentID)
	if !ok {
		return "", true, true, fmt.Errorf("reactor: no pending approval for agent %s", agentID)
	}
	if entry.Status != models.StatusWaitingForApproval {
		return "", true, true, fmt.Errorf("reactor: agent %s is not waiting for approval", agentID)
	}

	switch decision {
	case DecisionCancel:
		_ = c.pool.Remove(ctx, tenantID, agentID)
		return "User cancelled this action.", true, true, nil

	case DecisionEdit:
		for k, v := range editedFields {
			entry.CollectedFields[k] = v
		}
		entryEntry, ok := c.registry.Get(entry.AgentType)
		if !ok {
			return "", true, true, ErrAgentNotFound
		}
		handler := entryEntry.Factory()
		res := handler.Step(ctx, entry.CollectedFields, entry.TaskInstruction)
		return c.applyStep(ctx, entry, res)

	case DecisionApprove:
		entryEntry, ok := c.registry.Get(entry.AgentType)
		if !ok {
			return "", true, true, ErrAgentNotFound
		}
		handler := entryEntry.Factory()
		res := handler.Step(ctx, entry.CollectedFields, "approved")
		return c.applyStep(ctx, entry, res)

	default:
		return "", true, true, fmt.Errorf("reactor: unknown approval decision %q", decision)
	}
}

func (c *ApprovalCoordinator) applyStep(ctx context.Context, entry models.AgentPoolEntry, res models.AgentResult) (string, bool, bool, error) {
	switch res.Status {
	case models.AgentCompleted:
		_ = c.pool.Remove(ctx, entry.TenantID, entry.AgentID)
		return res.RawMessage, false, true, nil
	case models.AgentWaiting:
		entry.Status = models.StatusWaitingForInput
		_ = c.pool.Put(ctx, entry)
		return res.Prompt, false, false, nil
	case models.AgentApproval:
		entry.Status = models.StatusWaitingForApproval
		entry.ApprovalPrompt = res.ApprovalPrompt
		_ = c.pool.Put(ctx, entry)
		return res.ApprovalPrompt, false, false, nil
	default:
		_ = c.pool.Remove(ctx, entry.TenantID, entry.AgentID)
		msg := "agent failed"
		if res.Err != nil {
			msg = res.Err.Error()
		}
		return msg, true, true, nil
	}
}

// ExpireOverdue removes any pool entries past their TTL that are awaiting
// approval (as opposed to plain sweeping, this variant also notifies the
// trigger engine per §4.5's "expiry ... marks trigger-engine task EXPIRED").
// The pool's own sweeper already removes the entries themselves; this is
// called from the same tick to fire the trigger-engine side effect before
// the generic sweep deletes the entry out from under it.
func (c *ApprovalCoordinator) ExpireOverdue(ctx context.Context, tenantID string, taskIDByAgent map[string]string) {
	if c.triggers == nil {
		return
	}
	entry, ok := c.pool.FindPending(tenantID)
	if !ok || entry.Status != models.StatusWaitingForApproval {
		return
	}
	if !entry.TTLDeadline.Before(time.Now()) {
		return
	}
	if taskID, ok := taskIDByAgent[entry.AgentID]; ok {
		_ = c.triggers.MarkExpired(ctx, taskID)
	}
}
