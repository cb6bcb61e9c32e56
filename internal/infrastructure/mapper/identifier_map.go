// Package mapper persists source-to-target identifier maps and the
// success/failure ledgers of each entity kind, which is what makes a
// migration run resumable.
package mapper

import (
	"context"
	"fmt"
	"sync"

	"github.com/contentstack/cli-sub008/internal/domain/migration"
	"github.com/contentstack/cli-sub008/internal/domain/shared"
)

// ErrAlreadyMapped is returned when a uid is set twice within one run
var ErrAlreadyMapped = shared.NewDomainError("ALREADY_MAPPED", "Identifier already mapped in this run")

// IdentifierMap translates source uids to target uids (or richer response
// values) for one entity kind. Every Set is written through to the Store
// before it becomes visible.
//
// Entries loaded from an earlier run may be replaced; an entry set during
// this run may not.
//
// Thread Safety: Safe for concurrent use.
type IdentifierMap struct {
	kind  migration.EntityKind
	store Store

	mu      sync.RWMutex
	entries map[string]any
	setNow  map[string]struct{}
}

// Open loads the identifier map for kind from store
func Open(ctx context.Context, kind migration.EntityKind, store Store) (*IdentifierMap, error) {
	entries, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("open %s identifier map: %w", kind, err)
	}
	if entries == nil {
		entries = map[string]any{}
	}
	return &IdentifierMap{
		kind:    kind,
		store:   store,
		entries: entries,
		setNow:  map[string]struct{}{},
	}, nil
}

// Kind returns the entity kind
func (m *IdentifierMap) Kind() migration.EntityKind {
	return m.kind
}

// Has reports whether uid is mapped
func (m *IdentifierMap) Has(uid string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[uid]
	return ok
}

// Get returns the mapped value for uid
func (m *IdentifierMap) Get(uid string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[uid]
	return v, ok
}

// GetString returns the mapped target uid. A mapped response object yields
// its "uid" field.
func (m *IdentifierMap) GetString(uid string) (string, bool) {
	v, ok := m.Get(uid)
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case map[string]any:
		s, ok := t["uid"].(string)
		return s, ok
	}
	return "", false
}

// Set maps uid to value and persists it
func (m *IdentifierMap) Set(ctx context.Context, uid string, value any) error {
	if uid == "" {
		return migration.ErrMissingUID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, dup := m.setNow[uid]; dup {
		return shared.NewDomainError(ErrAlreadyMapped.Code, fmt.Sprintf("%s %s already mapped in this run", m.kind, uid))
	}
	if err := m.store.Save(ctx, uid, value); err != nil {
		return fmt.Errorf("persist %s mapping for %s: %w", m.kind, uid, err)
	}
	m.entries[uid] = value
	m.setNow[uid] = struct{}{}
	return nil
}

// Len returns the number of mapped uids
func (m *IdentifierMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// SetThisRun returns how many uids were mapped during this run
func (m *IdentifierMap) SetThisRun() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.setNow)
}

// Snapshot returns a copy of every entry
func (m *IdentifierMap) Snapshot() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]any, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out
}

// Close closes the underlying store
func (m *IdentifierMap) Close() error {
	return m.store.Close()
}
