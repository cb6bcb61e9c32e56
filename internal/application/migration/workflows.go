package migrationapp

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/contentstack/cli-sub008/internal/domain/migration"
	"github.com/contentstack/cli-sub008/internal/infrastructure/export"
)

// sourceRolesPath holds the exported roles, used to resolve system roles by name
const sourceRolesPath = "roles/roles.json"

type workflowsModule struct {
	recordSource
	api API
}

// roleMap resolves source role uids to target role uids
type roleMap struct {
	custom       map[string]string
	sourceNames  map[string]string
	targetByName map[string]string
}

func (rm *roleMap) resolve(uid string) (string, bool) {
	if target, ok := rm.custom[uid]; ok {
		return target, true
	}
	if name, ok := rm.sourceNames[uid]; ok {
		if target, ok := rm.targetByName[name]; ok {
			return target, true
		}
	}
	return "", false
}

// Import creates workflows with stage roles remapped to the target
func (m *workflowsModule) Import(ctx context.Context, s *Session) error {
	roles := &roleMap{
		custom:       map[string]string{},
		sourceNames:  map[string]string{},
		targetByName: map[string]string{},
	}
	err := RunPrerequisite(ctx, s, "fetch-roles", "Fetching roles", func(ctx context.Context) error {
		return m.loadRoles(ctx, s, roles)
	})
	if err != nil {
		return err
	}

	_, err = RunPhase(ctx, s, Phase[migration.Record, migration.Record]{
		Name:     "create",
		Label:    "Creating workflows",
		Items:    m.records,
		UID:      recordUID,
		ItemName: recordName,
		Call:     m.api.CreateWorkflow,
		Prepare: func(_ context.Context, r migration.Record) (migration.Record, error) {
			return m.remapStages(s.Logger, r, roles)
		},
		TargetValue: createdUID,
	})
	return err
}

func (m *workflowsModule) loadRoles(ctx context.Context, s *Session, roles *roleMap) error {
	target, err := m.api.ListRoles(ctx)
	if err != nil {
		return fmt.Errorf("list target roles: %w", err)
	}
	for _, r := range target {
		roles.targetByName[r.Name] = r.UID
	}

	custom, err := s.Mappings.ReadMapping(ctx, migration.EntityCustomRoles)
	if err != nil {
		return fmt.Errorf("read custom role mapping: %w", err)
	}
	for src, dst := range custom {
		if uid, ok := dst.(string); ok {
			roles.custom[src] = uid
		}
	}

	source, err := export.ReadRecords(ctx, m.reader, sourceRolesPath)
	if err != nil {
		return err
	}
	for _, r := range source {
		roles.sourceNames[r.UID] = r.Name()
	}
	return nil
}

// remapStages rewrites the role uids of every stage ACL. Roles with no
// target counterpart are dropped.
func (m *workflowsModule) remapStages(log *zap.Logger, r migration.Record, roles *roleMap) (migration.Record, error) {
	wf, err := migration.DecodeView[migration.Workflow](r)
	if err != nil {
		return r, err
	}
	for i := range wf.WorkflowStages {
		stage := &wf.WorkflowStages[i]
		uids := make([]string, 0, len(stage.SysACL.Roles.UIDs))
		for _, uid := range stage.SysACL.Roles.UIDs {
			target, ok := roles.resolve(uid)
			if !ok {
				log.Warn("Dropping unmapped stage role",
					zap.String("workflow", r.UID),
					zap.String("stage", stage.Name),
					zap.String("role", uid),
				)
				continue
			}
			uids = append(uids, target)
		}
		stage.SysACL.Roles.UIDs = uids
	}
	return migration.Merge(r, map[string]any{"workflow_stages": wf.WorkflowStages})
}
