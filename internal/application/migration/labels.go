package migrationapp

import (
	"context"
	"fmt"
	"sync"

	"github.com/contentstack/cli-sub008/internal/domain/migration"
)

type labelsModule struct {
	recordSource
	api API

	targetOnce   sync.Once
	targetByName map[string]string
	targetErr    error
}

// existingLabel resolves a label the target already has by its name. The
// target labels are listed once, on the first conflict.
func (m *labelsModule) existingLabel(ctx context.Context, r migration.Record) (any, bool, error) {
	m.targetOnce.Do(func() {
		labels, err := m.api.ListLabels(ctx)
		if err != nil {
			m.targetErr = fmt.Errorf("list target labels: %w", err)
			return
		}
		m.targetByName = make(map[string]string, len(labels))
		for _, l := range labels {
			m.targetByName[l.Name()] = l.UID
		}
	})
	if m.targetErr != nil {
		return nil, false, m.targetErr
	}
	uid, ok := m.targetByName[r.Name()]
	if !ok {
		return nil, false, nil
	}
	return uid, true, nil
}

// labelParents is the follow-up update linking a created label to its
// parents once every label exists on the target.
type labelParents struct {
	source    migration.Record
	targetUID string
	parents   []string
}

// Import creates labels without parents, then sets the remapped parents
func (m *labelsModule) Import(ctx context.Context, s *Session) error {
	_, err := RunPhase(ctx, s, Phase[migration.Record, migration.Record]{
		Name:     "create",
		Label:    "Creating labels",
		Items:    m.records,
		UID:      recordUID,
		ItemName: recordName,
		Call:     m.api.CreateLabel,
		Prepare: func(_ context.Context, r migration.Record) (migration.Record, error) {
			if _, err := migration.DecodeView[migration.Label](r); err != nil {
				return r, err
			}
			out := r.Clone()
			out.Delete("parent")
			return out, nil
		},
		TargetValue:     createdUID,
		ResolveConflict: m.existingLabel,
	})
	if err != nil {
		return err
	}

	// Parents are linked on every run since a resumed run cannot tell
	// whether the earlier update went through.
	var updates []labelParents
	for _, r := range m.records {
		label, err := migration.DecodeView[migration.Label](r)
		if err != nil || len(label.Parent) == 0 {
			continue
		}
		target, ok := s.IDs.GetString(r.UID)
		if !ok {
			continue
		}
		updates = append(updates, labelParents{source: r, targetUID: target, parents: label.Parent})
	}
	if len(updates) == 0 {
		return nil
	}

	_, err = RunPhase(ctx, s, Phase[labelParents, migration.Record]{
		Name:     "update-parents",
		Label:    "Linking parent labels",
		Items:    updates,
		UID:      func(u labelParents) string { return u.source.UID },
		ItemName: func(u labelParents) string { return u.source.Name() },
		Mapped:   func(labelParents) bool { return false },
		Prepare: func(_ context.Context, u labelParents) (labelParents, error) {
			remapped := make([]string, 0, len(u.parents))
			for _, parent := range u.parents {
				target, ok := s.IDs.GetString(parent)
				if !ok {
					return u, fmt.Errorf("parent label %s was not imported", parent)
				}
				remapped = append(remapped, target)
			}
			u.parents = remapped
			return u, nil
		},
		Call: func(ctx context.Context, u labelParents) (migration.Record, error) {
			body := migration.NewRecord(u.targetUID, map[string]any{
				"name":   u.source.Name(),
				"parent": u.parents,
			})
			return m.api.UpdateLabel(ctx, u.targetUID, body)
		},
		SuccessEntry: func(migration.Record, labelParents) any { return nil },
		Followup:     true,
	})
	return err
}
