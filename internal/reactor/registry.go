package reactor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"

	"github.com/kestrel-ai/reactor/pkg/models"
)

// AgentFactory constructs a fresh reply-driver for one Agent-Tool
// invocation. Replacing the source's decorator-introspected class hierarchy
// (see SPEC_FULL.md §9 "Dynamic dispatch of state handlers"), agents are
// plain values produced by a factory and driven through a transition table
// rather than virtual methods.
type AgentFactory func() AgentHandler

// AgentHandler drives one Agent-Tool instance forward by one step: given the
// fields collected so far and the latest inbound text (the task_instruction
// on the first call, the user's follow-up reply on subsequent calls), it
// returns a tagged AgentResult.
type AgentHandler interface {
	Step(ctx context.Context, collected map[string]any, input string) models.AgentResult
}

// AgentEntry is what the registry stores for one declared Agent-Tool.
type AgentEntry struct {
	Spec    models.AgentSpec
	Factory AgentFactory
}

// AgentRegistry maps an Agent-Tool name to its declared schema and factory.
// Read-mostly: populated at startup, snapshotted for the lifetime of the
// process.
type AgentRegistry struct {
	mu      sync.RWMutex
	entries map[string]AgentEntry
}

// NewAgentRegistry constructs an empty registry.
func NewAgentRegistry() *AgentRegistry {
	return &AgentRegistry{entries: make(map[string]AgentEntry)}
}

// Register computes the AgentSpec's schema_version and stores the entry. Field
// order in the caller's slice does not affect the version, only the sorted
// (name, type, required) tuples do.
func (r *AgentRegistry) Register(spec models.AgentSpec, factory AgentFactory) {
	spec.SchemaVersion = SchemaVersion(spec.InputFields)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[spec.Name] = AgentEntry{Spec: spec, Factory: factory}
}

// Get returns a copy of the entry: copy-on-read under lock, so callers
// never hold a reference into the registry's internal map.
func (r *AgentRegistry) Get(name string) (AgentEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// SchemaVersion returns the registry's current schema_version for name, or
// ok=false if the agent is unknown.
func (r *AgentRegistry) SchemaVersion(name string) (string, bool) {
	e, ok := r.Get(name)
	if !ok {
		return "", false
	}
	return e.Spec.SchemaVersion, true
}

// List returns a snapshot of all registered specs, in name order.
func (r *AgentRegistry) List() []models.AgentSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.AgentSpec, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SchemaVersion is a deterministic hash over (field_name, declared_type,
// required) tuples sorted by name, as required by §3's AgentSpec invariant.
// Field descriptions, defaults and validator hints deliberately do not
// participate: only a change that could break argument compatibility with
// an already-pooled instance bumps the version.
func SchemaVersion(fields []models.InputField) string {
	sorted := append([]models.InputField(nil), fields...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	h := sha256.New()
	for _, f := range sorted {
		fmt.Fprintf(h, "%s|%s|%t\n", f.Name, f.Type, f.Required)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// ToolSchemaFor synthesizes the ToolSchema an LLM sees for an Agent-Tool:
// its declared input fields plus a free-form task_instruction, following
// the same dynamic-schema-synthesis pattern a handoff-style tool's
// Schema() would use (there the enum of target agents is
// built from live registry state; here the object's properties are built
// from the agent's declared fields).
func ToolSchemaFor(spec models.AgentSpec) ToolSchema {
	properties := make(map[string]any, len(spec.InputFields)+1)
	required := make([]string, 0, len(spec.InputFields))

	for _, f := range spec.InputFields {
		prop := map[string]any{
			"type":        jsonSchemaType(f.Type),
			"description": enhanceDescription(f),
		}
		if f.Default != nil {
			prop["default"] = f.Default
		}
		properties[f.Name] = prop
		if f.Required {
			required = append(required, f.Name)
		}
	}
	properties["task_instruction"] = map[string]any{
		"type":        "string",
		"description": "Free-form instruction describing what this agent should do, in addition to any structured fields above.",
	}

	description := spec.Description
	if spec.NeedsApproval {
		description += " [Requires user confirmation before execution]"
	}

	return ToolSchema{
		Name:        spec.Name,
		Description: description,
		Parameters: map[string]any{
			"type":       "object",
			"properties": properties,
			"required":   required,
		},
	}
}

func enhanceDescription(f models.InputField) string {
	if f.ValidatorHint == "" {
		return f.Description
	}
	return f.Description + " (" + f.ValidatorHint + ")"
}

func jsonSchemaType(t models.FieldType) string {
	switch t {
	case models.FieldInt:
		return "integer"
	case models.FieldFloat:
		return "number"
	case models.FieldBool:
		return "boolean"
	default:
		return "string"
	}
}
