package reactor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kestrel-ai/reactor/pkg/models"
)

// PoolPersistence is the optional write-through collaborator for AgentPool.
// Two concrete adapters (internal/poolstore) implement it: one over
// modernc.org/sqlite, one over lib/pq, following the same
// persist()/restore() pattern as a subagent registry but against a relational
// store instead of a single JSON file, since an atomic tmp-file-and-rename
// doesn't fit a multi-row, multi-tenant table.
type PoolPersistence interface {
	Put(ctx context.Context, entry models.AgentPoolEntry) error
	Delete(ctx context.Context, tenantID, agentID string) error
	LoadAll(ctx context.Context) ([]models.AgentPoolEntry, error)
}

// poolKey identifies one entry.
type poolKey struct {
	TenantID string
	AgentID  string
}

// AgentPool stores non-terminal agent instances keyed by (tenant_id,
// agent_id), grounded on multiagent/subagent_registry.go's
// mutex-protected-map-plus-ticker-sweeper shape. Unlike that registry
// (which keeps completed runs around until an archive deadline), every
// pool entry is by definition non-terminal, so the sweep condition here is
// simply "ttl_deadline <= now", not "complete AND past archive window".
type AgentPool struct {
	mu       sync.Mutex
	entries  map[poolKey]models.AgentPoolEntry
	byTenant map[string][]poolKey // insertion order, for max-per-tenant eviction

	registry    *AgentRegistry
	persistence PoolPersistence
	maxPerTenant int
	logger      *slog.Logger

	stopCh chan struct{}
	stopped sync.Once
}

// NewAgentPool constructs a pool bound to registry for schema-version
// checks. persistence may be nil, in which case the pool is purely
// in-memory for the life of the process.
func NewAgentPool(registry *AgentRegistry, persistence PoolPersistence, maxPerTenant int, logger *slog.Logger) *AgentPool {
	if logger == nil {
		logger = slog.Default()
	}
	if maxPerTenant <= 0 {
		maxPerTenant = 50
	}
	return &AgentPool{
		entries:      make(map[poolKey]models.AgentPoolEntry),
		byTenant:     make(map[string][]poolKey),
		registry:     registry,
		persistence:  persistence,
		maxPerTenant: maxPerTenant,
		logger:       logger,
		stopCh:       make(chan struct{}),
	}
}

// Restore loads persisted entries at startup, discarding any whose
// schema_version no longer matches the registry (S6). This mirrors a
// typical restore() but adds a version-mismatch discard a schema-agnostic
// subagent registry would never need, since its runs are not schema-gated.
func (p *AgentPool) Restore(ctx context.Context) error {
	if p.persistence == nil {
		return nil
	}
	entries, err := p.persistence.LoadAll(ctx)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range entries {
		current, ok := p.registry.SchemaVersion(e.AgentType)
		if !ok || current != e.SchemaVersion {
			p.logger.Warn("discarding pool entry with stale schema version",
				"agent_id", e.AgentID, "agent_type", e.AgentType, "stored_version", e.SchemaVersion, "current_version", current)
			continue
		}
		if e.TTLDeadline.Before(time.Now()) {
			continue
		}
		k := poolKey{TenantID: e.TenantID, AgentID: e.AgentID}
		p.entries[k] = e
		p.byTenant[e.TenantID] = append(p.byTenant[e.TenantID], k)
	}
	return nil
}

// Put inserts or updates an entry and evicts the oldest entry for the
// tenant if the per-tenant cap is exceeded. The entry is stored with the
// TTLDeadline the caller set on it; an update does not extend the deadline.
func (p *AgentPool) Put(ctx context.Context, entry models.AgentPoolEntry) error {
	p.mu.Lock()
	k := poolKey{TenantID: entry.TenantID, AgentID: entry.AgentID}
	if _, exists := p.entries[k]; !exists {
		p.byTenant[entry.TenantID] = append(p.byTenant[entry.TenantID], k)
	}
	p.entries[k] = entry

	var evicted []poolKey
	tenantKeys := p.byTenant[entry.TenantID]
	for len(tenantKeys) > p.maxPerTenant {
		oldest := tenantKeys[0]
		tenantKeys = tenantKeys[1:]
		delete(p.entries, oldest)
		evicted = append(evicted, oldest)
	}
	p.byTenant[entry.TenantID] = tenantKeys
	p.mu.Unlock()

	for _, ev := range evicted {
		if p.persistence != nil {
			_ = p.persistence.Delete(ctx, ev.TenantID, ev.AgentID)
		}
	}
	if p.persistence != nil {
		return p.persistence.Put(ctx, entry)
	}
	return nil
}

// Get returns a copy of the entry if present, not expired, and schema-valid.
// An expired or schema-stale entry is removed and reported as absent.
func (p *AgentPool) Get(tenantID, agentID string) (models.AgentPoolEntry, bool) {
	p.mu.Lock()
	e, ok := p.entries[poolKey{TenantID: tenantID, AgentID: agentID}]
	p.mu.Unlock()
	if !ok {
		return models.AgentPoolEntry{}, false
	}
	if e.TTLDeadline.Before(time.Now()) {
		_ = p.Remove(context.Background(), tenantID, agentID)
		return models.AgentPoolEntry{}, false
	}
	if current, ok := p.registry.SchemaVersion(e.AgentType); !ok || current != e.SchemaVersion {
		_ = p.Remove(context.Background(), tenantID, agentID)
		return models.AgentPoolEntry{}, false
	}
	return e, true
}

// FindPending returns the oldest entry for tenantID in a waiting state, if
// any. Used by the Orchestrator's check_pending_agents step (§4.6).
func (p *AgentPool) FindPending(tenantID string) (models.AgentPoolEntry, bool) {
	p.mu.Lock()
	keys := append([]poolKey(nil), p.byTenant[tenantID]...)
	p.mu.Unlock()

	for _, k := range keys {
		if e, ok := p.Get(k.TenantID, k.AgentID); ok {
			switch e.Status {
			case models.StatusWaitingForInput, models.StatusWaitingForApproval:
				return e, true
			}
		}
	}
	return models.AgentPoolEntry{}, false
}

// Remove deletes an entry; a no-op if absent.
func (p *AgentPool) Remove(ctx context.Context, tenantID, agentID string) error {
	p.mu.Lock()
	k := poolKey{TenantID: tenantID, AgentID: agentID}
	delete(p.entries, k)
	keys := p.byTenant[tenantID]
	for i, kk := range keys {
		if kk == k {
			p.byTenant[tenantID] = append(keys[:i], keys[i+1:]...)
			break
		}
	}
	p.mu.Unlock()

	if p.persistence != nil {
		return p.persistence.Delete(ctx, tenantID, agentID)
	}
	return nil
}

// StartSweeper launches the background goroutine that removes expired
// entries, grounded on subagent_registry.go's sweepLoop/sweep using a
// *time.Ticker; sweep period must be <= ttl/4 per §4.3.
func (p *AgentPool) StartSweeper(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.sweep()
			case <-p.stopCh:
				return
			}
		}
	}()
}

// Stop halts the sweeper goroutine. Safe to call more than once.
func (p *AgentPool) Stop() {
	p.stopped.Do(func() { close(p.stopCh) })
}

func (p *AgentPool) sweep() {
	now := time.Now()
	p.mu.Lock()
	var expired []poolKey
	for k, e := range p.entries {
		if e.TTLDeadline.Before(now) {
			expired = append(expired, k)
		}
	}
	for _, k := range expired {
		delete(p.entries, k)
		keys := p.byTenant[k.TenantID]
		for i, kk := range keys {
			if kk == k {
				p.byTenant[k.TenantID] = append(keys[:i], keys[i+1:]...)
				break
			}
		}
	}
	p.mu.Unlock()

	if p.persistence != nil {
		for _, k := range expired {
			_ = p.persistence.Delete(context.Background(), k.TenantID, k.AgentID)
		}
	}
	if len(expired) > 0 {
		p.logger.Info("swept expired pool entries", "count", len(expired))
	}
}
