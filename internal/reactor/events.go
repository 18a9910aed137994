package reactor

import "github.com/kestrel-ai/reactor/pkg/models"

// EventType enumerates the typed stream events of §5.3. The transport layer
// (internal/transport/http) is responsible for the SSE wire framing; this
// package only produces the typed values.
type EventType string

const (
	EventMessageStart  EventType = "MESSAGE_START"
	EventMessageChunk  EventType = "MESSAGE_CHUNK"
	EventMessageEnd    EventType = "MESSAGE_END"
	EventStateChange   EventType = "STATE_CHANGE"
	EventFieldCollected EventType = "FIELD_COLLECTED"
	EventFieldValidated EventType = "FIELD_VALIDATED"
	EventToolCallStart EventType = "TOOL_CALL_START"
	EventToolCallEnd   EventType = "TOOL_CALL_END"
	EventToolResult    EventType = "TOOL_RESULT"
	EventError         EventType = "ERROR"
	EventDone          EventType = "DONE"
)

// Event is one item in the stream_message event sequence.
type Event struct {
	Type       EventType `json:"type"`
	Content    string    `json:"content,omitempty"`
	ToolCallID string    `json:"tool_call_id,omitempty"`
	ToolName   string    `json:"tool_name,omitempty"`
	AgentID    string    `json:"agent_id,omitempty"`
	Status     string    `json:"status,omitempty"`
	FieldName  string    `json:"field_name,omitempty"`
	Error      string    `json:"error,omitempty"`
	Result     *models.ReactLoopResult `json:"result,omitempty"`
}
