// Package migrationapp drives entity-kind modules through the bulk executor,
// the identifier maps and the progress trackers.
package migrationapp

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/contentstack/cli-sub008/internal/domain/migration"
	"github.com/contentstack/cli-sub008/internal/infrastructure/bulk"
	"github.com/contentstack/cli-sub008/internal/infrastructure/mapper"
	"github.com/contentstack/cli-sub008/internal/infrastructure/progress"
)

// MappingReader reads the identifier map of another entity kind
type MappingReader interface {
	ReadMapping(ctx context.Context, kind migration.EntityKind) (map[string]any, error)
}

// SubStoreOpener opens identifier maps nested under a module
type SubStoreOpener interface {
	OpenSub(ctx context.Context, kind migration.EntityKind, name string) (mapper.Store, error)
}

// Session is the per-module state prepared by the runner before Import
type Session struct {
	RunID    string
	Kind     migration.EntityKind
	Layout   mapper.Layout
	IDs      *mapper.IdentifierMap
	Ledger   *mapper.Ledger
	Tracker  *progress.Tracker
	Mappings MappingReader
	Logger   *zap.Logger

	subStores   SubStoreOpener
	bulkOptions []bulk.Option
	succeeded   atomic.Int64
	skipped     atomic.Int64
	failed      atomic.Int64
}

// Counts returns the item outcomes of the primary phases so far
func (s *Session) Counts() migration.RunCounts {
	return migration.RunCounts{
		Success: int(s.succeeded.Load()),
		Skipped: int(s.skipped.Load()),
		Failed:  int(s.failed.Load()),
	}
}

// OpenSubMap opens the identifier map nested under the module's mapper
// directory. The caller closes it.
func (s *Session) OpenSubMap(ctx context.Context, name string) (*mapper.IdentifierMap, error) {
	if s.subStores == nil {
		return nil, fmt.Errorf("no store for %s/%s", s.Kind, name)
	}
	store, err := s.subStores.OpenSub(ctx, s.Kind, name)
	if err != nil {
		return nil, err
	}
	ids, err := mapper.Open(ctx, s.Kind, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return ids, nil
}

// executorOptions returns the bulk options for one phase
func (s *Session) executorOptions(phase string) []bulk.Option {
	opts := make([]bulk.Option, 0, len(s.bulkOptions)+2)
	opts = append(opts, s.bulkOptions...)
	return append(opts,
		bulk.WithName(s.Kind.String()+"."+phase),
		bulk.WithLogger(s.Logger),
	)
}
