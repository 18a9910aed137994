package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/kestrel-ai/reactor/pkg/models"
)

// InMemoryStore is a process-local reactor.MemoryProvider used in tests and
// single-process local runs, with the same copy-on-read discipline as the
// durable stores.
type InMemoryStore struct {
	mu      sync.RWMutex
	history map[string][]models.Message // key: tenantID+"\x00"+sessionID
	recall  map[string][]string         // key: tenantID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		history: map[string][]models.Message{},
		recall:  map[string][]string{},
	}
}

func historyKey(tenantID, sessionID string) string { return tenantID + "\x00" + sessionID }

func (s *InMemoryStore) GetHistory(ctx context.Context, tenantID, sessionID string, limit int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.history[historyKey(tenantID, sessionID)]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *InMemoryStore) SaveHistory(ctx context.Context, tenantID, sessionID string, messages []models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := make([]models.Message, len(messages))
	copy(clone, messages)
	s.history[historyKey(tenantID, sessionID)] = clone
	return nil
}

func (s *InMemoryStore) Add(ctx context.Context, tenantID string, messages []models.Message, infer bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range messages {
		if !infer && m.Role != models.RoleUser && m.Role != models.RoleAssistant {
			continue
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		s.recall[tenantID] = append(s.recall[tenantID], m.Content)
	}
	return nil
}

func (s *InMemoryStore) Search(ctx context.Context, tenantID, query string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 10
	}
	var out []string
	entries := s.recall[tenantID]
	for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
		if strings.Contains(entries[i], query) {
			out = append(out, entries[i])
		}
	}
	return out, nil
}
