package reactor

import (
	"context"
	"testing"
	"time"

	"github.com/kestrel-ai/reactor/pkg/models"
)

func newTestRegistry(t *testing.T) *AgentRegistry {
	t.Helper()
	r := NewAgentRegistry()
	r.Register(models.AgentSpec{
		Name:        "send_email",
		InputFields: []models.InputField{{Name: "recipient", Type: models.FieldString, Required: true}},
	}, func() AgentHandler { return nil })
	return r
}

func TestAgentPool_PutGetRoundTrip(t *testing.T) {
	r := newTestRegistry(t)
	p := NewAgentPool(r, nil, 10, nil)
	version, _ := r.SchemaVersion("send_email")

	entry := models.AgentPoolEntry{AgentInstance: models.AgentInstance{
		AgentID: "a1", AgentType: "send_email", TenantID: "t1",
		Status: models.StatusWaitingForInput, SchemaVersion: version,
		TTLDeadline: time.Now().Add(time.Hour),
	}}
	if err := p.Put(context.Background(), entry); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok := p.Get("t1", "a1")
	if !ok {
		t.Fatal("expected entry present")
	}
	if got.AgentID != "a1" {
		t.Fatalf("unexpected entry: %+v", got)
	}
}

func TestAgentPool_SchemaVersionMismatchDiscardsOnGet(t *testing.T) {
	r := newTestRegistry(t)
	p := NewAgentPool(r, nil, 10, nil)

	entry := models.AgentPoolEntry{AgentInstance: models.AgentInstance{
		AgentID: "a1", AgentType: "send_email", TenantID: "t1",
		Status: models.StatusWaitingForInput, SchemaVersion: "stale-version",
		TTLDeadline: time.Now().Add(time.Hour),
	}}
	_ = p.Put(context.Background(), entry)

	if _, ok := p.Get("t1", "a1"); ok {
		t.Fatal("expected entry with stale schema version to be treated as absent")
	}
}

func TestAgentPool_TTLExpiryRemovesOnGet(t *testing.T) {
	r := newTestRegistry(t)
	p := NewAgentPool(r, nil, 10, nil)
	version, _ := r.SchemaVersion("send_email")

	entry := models.AgentPoolEntry{AgentInstance: models.AgentInstance{
		AgentID: "a1", AgentType: "send_email", TenantID: "t1",
		Status: models.StatusWaitingForInput, SchemaVersion: version,
		TTLDeadline: time.Now().Add(-time.Minute),
	}}
	_ = p.Put(context.Background(), entry)

	if _, ok := p.Get("t1", "a1"); ok {
		t.Fatal("expected expired entry to be treated as absent")
	}
}

func TestAgentPool_MaxPerTenantEvictsOldest(t *testing.T) {
	r := newTestRegistry(t)
	p := NewAgentPool(r, nil, 2, nil)
	version, _ := r.SchemaVersion("send_email")

	for i, id := range []string{"a1", "a2", "a3"} {
		entry := models.AgentPoolEntry{AgentInstance: models.AgentInstance{
			AgentID: id, AgentType: "send_email", TenantID: "t1",
			Status: models.StatusWaitingForInput, SchemaVersion: version,
			TTLDeadline: time.Now().Add(time.Hour),
		}}
		_ = p.Put(context.Background(), entry)
		_ = i
	}
	if _, ok := p.Get("t1", "a1"); ok {
		t.Fatal("expected oldest entry a1 to have been evicted")
	}
	if _, ok := p.Get("t1", "a3"); !ok {
		t.Fatal("expected newest entry a3 to remain")
	}
}

func TestAgentPool_FindPendingReturnsOldestWaiting(t *testing.T) {
	r := newTestRegistry(t)
	p := NewAgentPool(r, nil, 10, nil)
	version, _ := r.SchemaVersion("send_email")

	first := models.AgentPoolEntry{AgentInstance: models.AgentInstance{
		AgentID: "a1", AgentType: "send_email", TenantID: "t1",
		Status: models.StatusWaitingForInput, SchemaVersion: version,
		TTLDeadline: time.Now().Add(time.Hour),
	}}
	_ = p.Put(context.Background(), first)

	got, ok := p.FindPending("t1")
	if !ok || got.AgentID != "a1" {
		t.Fatalf("expected a1 pending, got %+v ok=%v", got, ok)
	}
}
