package models

import "time"

// FieldType is the declared scalar type of an Agent-Tool input field.
type FieldType string

const (
	FieldString FieldType = "string"
	FieldInt    FieldType = "int"
	FieldFloat  FieldType = "float"
	FieldBool   FieldType = "bool"
)

// InputField declares one parameter an Agent-Tool collects, either from the
// LLM's call arguments or interactively from the user across turns.
type InputField struct {
	Name          string    `json:"name"`
	Type          FieldType `json:"type"`
	Description   string    `json:"description"`
	Required      bool      `json:"required"`
	Default       any       `json:"default,omitempty"`
	ValidatorHint string    `json:"validator_hint,omitempty"`
}

// AgentSpec is the registry record for an Agent-Tool: its declared shape and
// the schema_version derived from that shape.
type AgentSpec struct {
	Name          string
	Description   string
	InputFields   []InputField
	NeedsApproval bool
	ExposeAsTool  bool
	SchemaVersion string
}

// AgentStatus is the lifecycle state of a non-terminal or terminal agent
// instance. Only the non-terminal values are ever stored in the pool.
type AgentStatus string

const (
	StatusWaitingForInput    AgentStatus = "WAITING_FOR_INPUT"
	StatusWaitingForApproval AgentStatus = "WAITING_FOR_APPROVAL"
	StatusPaused             AgentStatus = "PAUSED"
	StatusCompleted          AgentStatus = "COMPLETED"
	StatusError              AgentStatus = "ERROR"
	StatusCancelled          AgentStatus = "CANCELLED"
)

// IsTerminal reports whether the status is one that may never occupy a pool
// slot.
func (s AgentStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusError, StatusCancelled:
		return true
	default:
		return false
	}
}

// AgentInstance is a live, possibly non-terminal, Agent-Tool invocation.
type AgentInstance struct {
	AgentID         string
	AgentType       string
	TenantID        string
	Status          AgentStatus
	SchemaVersion   string
	CollectedFields map[string]any
	TaskInstruction string
	ApprovalPrompt  string
	CreatedAt       time.Time
	TTLDeadline     time.Time
}

// AgentPoolEntry is the persisted shape of a parked AgentInstance.
type AgentPoolEntry struct {
	AgentInstance
}

// AgentResultStatus tags the outcome of driving an agent instance forward
// by one step.
type AgentResultStatus string

const (
	AgentCompleted AgentResultStatus = "COMPLETED"
	AgentWaiting   AgentResultStatus = "WAITING_FOR_INPUT"
	AgentApproval  AgentResultStatus = "WAITING_FOR_APPROVAL"
	AgentErrored   AgentResultStatus = "ERROR"
)

// AgentResult is the tagged-union outcome produced by an agent's reply
// routine after consuming one message. Exactly one of the payload fields is
// meaningful, selected by Status.
type AgentResult struct {
	Status         AgentResultStatus
	RawMessage     string // COMPLETED
	Prompt         string // WAITING_FOR_INPUT: next question to the user
	ApprovalPrompt string // WAITING_FOR_APPROVAL: action summary to confirm
	Err            error  // ERROR
}
