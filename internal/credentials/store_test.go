package credentials

import (
	"context"
	"testing"
)

func TestStoreSaveGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	if err := s.Save(ctx, "tenant-a", "smtp", map[string]string{"user": "alice"}, "default"); err != nil {
		t.Fatalf("save: %v", err)
	}

	values, ok, err := s.Get(ctx, "tenant-a", "smtp", "default")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok || values["user"] != "alice" {
		t.Fatalf("expected saved values, got %v ok=%v", values, ok)
	}
}

func TestStorePersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	first, err := NewStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := first.Save(ctx, "tenant-a", "smtp", map[string]string{"user": "alice"}, "default"); err != nil {
		t.Fatalf("save: %v", err)
	}

	second, err := NewStore(dir)
	if err != nil {
		t.Fatalf("reload store: %v", err)
	}
	values, ok, err := second.Get(ctx, "tenant-a", "smtp", "default")
	if err != nil || !ok || values["user"] != "alice" {
		t.Fatalf("expected values to survive reload, got %v ok=%v err=%v", values, ok, err)
	}
}

func TestStoreGetMissingReturnsNotOK(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	_, ok, err := s.Get(context.Background(), "tenant-a", "smtp", "default")
	if err != nil || ok {
		t.Fatalf("expected not-found, got ok=%v err=%v", ok, err)
	}
}

func TestStoreDeleteMissingReturnsErrNotFound(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := s.Delete(context.Background(), "tenant-a", "smtp", "default"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreListFiltersByTenantAndService(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	s.Save(ctx, "tenant-a", "smtp", map[string]string{}, "primary")
	s.Save(ctx, "tenant-a", "smtp", map[string]string{}, "secondary")
	s.Save(ctx, "tenant-b", "smtp", map[string]string{}, "primary")

	accounts, err := s.List(ctx, "tenant-a", "smtp")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts for tenant-a, got %v", accounts)
	}
}
