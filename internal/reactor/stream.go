package reactor

import (
	"context"
)

// StreamMessage runs the same per-message lifecycle as HandleMessage but
// emits the typed event sequence of §5.3 on the returned channel. The
// channel is closed after EventDone, which is always the final event.
//
// This does not re-implement the react loop as a chunked state machine;
// instead it runs HandleMessage to completion and replays its outcome as
// the event sequence a streaming transport expects, extracting the shared
// message-builder SPEC_FULL.md's design notes call for (§9) so
// HandleMessage and StreamMessage can never drift in how they assemble the
// LLM message list. There is no token-level MESSAGE_CHUNK stream: the
// ReactLoop only calls the provider's Chat method, so the whole response is
// emitted as a single MESSAGE_CHUNK after HandleMessage completes.
func (o *Orchestrator) StreamMessage(ctx context.Context, in InboundMessage) <-chan Event {
	out := make(chan Event, 8)
	go func() {
		defer close(out)
		out <- Event{Type: EventMessageStart}

		result, err := o.HandleMessage(ctx, in)
		if err != nil {
			out <- Event{Type: EventError, Error: err.Error()}
			out <- Event{Type: EventDone}
			return
		}

		if result.Response != "" {
			out <- Event{Type: EventMessageChunk, Content: result.Response}
		}
		out <- Event{Type: EventMessageEnd}

		for _, rec := range result.ToolCallRecords {
			out <- Event{Type: EventToolCallStart, ToolName: rec.Name}
			status := "completed"
			if !rec.Success {
				status = "error"
			}
			out <- Event{Type: EventToolResult, ToolName: rec.Name, Status: status}
			out <- Event{Type: EventToolCallEnd, ToolName: rec.Name, Status: status}
		}

		// Per §9's open-question resolution: STATE_CHANGE for a parked
		// agent is emitted before the terminal DONE, never after.
		if pending, ok := o.pool.FindPending(in.TenantID); ok {
			out <- Event{Type: EventStateChange, AgentID: pending.AgentID, Status: string(pending.Status)}
		}

		out <- Event{Type: EventDone, Result: result}
	}()
	return out
}
