package triggers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestEngineFireDeliversSynthesizedMessage(t *testing.T) {
	var mu sync.Mutex
	var gotTenant, gotContent string
	done := make(chan struct{})

	e := NewEngine(func(ctx context.Context, tenantID, content string) (string, error) {
		mu.Lock()
		gotTenant, gotContent = tenantID, content
		mu.Unlock()
		close(done)
		return "", nil
	}, nil)

	e.fire(Definition{Name: "daily-report", TenantID: "tenant-a", Content: "give me today's report"})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher was not called")
	}

	mu.Lock()
	defer mu.Unlock()
	if gotTenant != "tenant-a" || gotContent != "give me today's report" {
		t.Fatalf("unexpected dispatch: tenant=%q content=%q", gotTenant, gotContent)
	}
}

func TestEngineFireMarksTaskFailedOnDispatchError(t *testing.T) {
	e := NewEngine(func(ctx context.Context, tenantID, content string) (string, error) {
		return "", errors.New("boom")
	}, nil)

	e.fire(Definition{Name: "daily-report", TenantID: "tenant-a"})

	pending := e.ListPending("tenant-a")
	if len(pending) != 0 {
		t.Fatalf("a failed task should not be pending, got %v", pending)
	}
}

func TestEngineFireLeavesTaskPendingWhenAgentParks(t *testing.T) {
	e := NewEngine(func(ctx context.Context, tenantID, content string) (string, error) {
		return "agent-1", nil
	}, nil)

	e.fire(Definition{Name: "daily-report", TenantID: "tenant-a"})

	byAgent := e.PendingByAgent("tenant-a")
	taskID, ok := byAgent["agent-1"]
	if !ok {
		t.Fatalf("expected agent-1 to be pending, got %v", byAgent)
	}

	if err := e.MarkExpired(context.Background(), taskID); err != nil {
		t.Fatalf("mark expired: %v", err)
	}
	if len(e.PendingByAgent("tenant-a")) != 0 {
		t.Fatal("expected no pending tasks after expiry")
	}
}

func TestEngineMarkExpiredUnknownTaskErrors(t *testing.T) {
	e := NewEngine(func(ctx context.Context, tenantID, content string) (string, error) {
		return "", nil
	}, nil)
	if err := e.MarkExpired(context.Background(), "does-not-exist"); err == nil {
		t.Fatal("expected error for unknown task")
	}
}

func TestEngineRegisterStartStop(t *testing.T) {
	e := NewEngine(func(ctx context.Context, tenantID, content string) (string, error) {
		return "", nil
	}, nil)
	if _, err := e.Register(Definition{Name: "x", CronExpr: "@every 1h"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	e.Start()
	<-e.Stop().Done()
}
