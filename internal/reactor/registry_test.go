package reactor

import (
	"testing"

	"github.com/kestrel-ai/reactor/pkg/models"
)

func TestSchemaVersion_StableUnderFieldReorder(t *testing.T) {
	a := []models.InputField{
		{Name: "recipient", Type: models.FieldString, Required: true},
		{Name: "subject", Type: models.FieldString, Required: true},
	}
	b := []models.InputField{
		{Name: "subject", Type: models.FieldString, Required: true},
		{Name: "recipient", Type: models.FieldString, Required: true},
	}
	if SchemaVersion(a) != SchemaVersion(b) {
		t.Fatal("schema version must not depend on field order")
	}
}

func TestSchemaVersion_ChangesOnTypeChange(t *testing.T) {
	a := []models.InputField{{Name: "amount", Type: models.FieldInt, Required: true}}
	b := []models.InputField{{Name: "amount", Type: models.FieldFloat, Required: true}}
	if SchemaVersion(a) == SchemaVersion(b) {
		t.Fatal("schema version must change when a declared type changes")
	}
}

func TestSchemaVersion_IgnoresDescription(t *testing.T) {
	a := []models.InputField{{Name: "x", Type: models.FieldString, Required: true, Description: "one"}}
	b := []models.InputField{{Name: "x", Type: models.FieldString, Required: true, Description: "two"}}
	if SchemaVersion(a) != SchemaVersion(b) {
		t.Fatal("schema version must not depend on description text")
	}
}

func TestToolSchemaFor_MarksApprovalRequired(t *testing.T) {
	spec := models.AgentSpec{Name: "transfer_funds", Description: "move money", NeedsApproval: true}
	schema := ToolSchemaFor(spec)
	if !contains(schema.Description, "[Requires user confirmation before execution]") {
		t.Fatalf("expected approval marker in description, got %q", schema.Description)
	}
}

func TestToolSchemaFor_RequiredFieldsListed(t *testing.T) {
	spec := models.AgentSpec{
		Name: "send_email",
		InputFields: []models.InputField{
			{Name: "recipient", Type: models.FieldString, Required: true},
			{Name: "memo", Type: models.FieldString, Required: false},
		},
	}
	schema := ToolSchemaFor(spec)
	required, _ := schema.Parameters["required"].([]string)
	if len(required) != 1 || required[0] != "recipient" {
		t.Fatalf("expected only recipient required, got %v", required)
	}
	props := schema.Parameters["properties"].(map[string]any)
	if _, ok := props["task_instruction"]; !ok {
		t.Fatal("expected synthesized task_instruction property")
	}
}

func contains(s, sub string) bool {
	return len(s) >= len(sub) && (func() bool {
		for i := 0; i+len(sub) <= len(s); i++ {
			if s[i:i+len(sub)] == sub {
				return true
			}
		}
		return false
	})()
}

func TestAgentRegistry_RegisterComputesVersion(t *testing.T) {
	r := NewAgentRegistry()
	spec := models.AgentSpec{Name: "a", InputFields: []models.InputField{{Name: "x", Type: models.FieldString, Required: true}}}
	r.Register(spec, func() AgentHandler { return nil })

	got, ok := r.Get("a")
	if !ok {
		t.Fatal("expected entry to be registered")
	}
	if got.Spec.SchemaVersion == "" {
		t.Fatal("expected non-empty schema version after registration")
	}
}
