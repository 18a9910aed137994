// Package credentials provides a file-backed reactor.CredentialStore,
// using a JSON-on-disk persistence
// pattern: an in-memory map guarded by a mutex, flushed to a single
// owner-only JSON file on every mutation.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

const storeFilename = "credentials.json"

var ErrNotFound = errors.New("credentials: not found")

// entry is one stored credential set, keyed by (tenantID, service, account).
type entry struct {
	TenantID string            `json:"tenant_id"`
	Service  string            `json:"service"`
	Account  string            `json:"account"`
	Values   map[string]string `json:"values"`
}

func key(tenantID, service, account string) string {
	return tenantID + "\x00" + service + "\x00" + account
}

// Store implements reactor.CredentialStore over a single JSON file. It
// does not encrypt values at rest; callers deploying to a shared host
// should pass NewStore a directory on a volume with restrictive permissions or
// wrap Store behind an encrypting CredentialStore of their own.
type Store struct {
	mu      sync.RWMutex
	dir     string
	entries map[string]entry
}

// NewStore loads (or initializes) a Store rooted at dir.
func NewStore(dir string) (*Store, error) {
	s := &Store{dir: dir, entries: map[string]entry{}}
	path := filepath.Join(dir, storeFilename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	var list []entry
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, err
	}
	for _, e := range list {
		s.entries[key(e.TenantID, e.Service, e.Account)] = e
	}
	return s, nil
}

func (s *Store) flushLocked() error {
	list := make([]entry, 0, len(s.entries))
	for _, e := range s.entries {
		list = append(list, e)
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.dir, storeFilename), data, 0o600)
}

func (s *Store) Save(ctx context.Context, tenantID, service string, creds map[string]string, account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values := make(map[string]string, len(creds))
	for k, v := range creds {
		values[k] = v
	}
	s.entries[key(tenantID, service, account)] = entry{
		TenantID: tenantID, Service: service, Account: account, Values: values,
	}
	return s.flushLocked()
}

func (s *Store) Get(ctx context.Context, tenantID, service, account string) (map[string]string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key(tenantID, service, account)]
	if !ok {
		return nil, false, nil
	}
	values := make(map[string]string, len(e.Values))
	for k, v := range e.Values {
		values[k] = v
	}
	return values, true, nil
}

func (s *Store) List(ctx context.Context, tenantID, service string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var accounts []string
	for _, e := range s.entries {
		if e.TenantID == tenantID && e.Service == service {
			accounts = append(accounts, e.Account)
		}
	}
	return accounts, nil
}

func (s *Store) Delete(ctx context.Context, tenantID, service, account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(tenantID, service, account)
	if _, ok := s.entries[k]; !ok {
		return ErrNotFound
	}
	delete(s.entries, k)
	return s.flushLocked()
}
