package migrationapp

import (
	"context"
	"fmt"

	"github.com/contentstack/cli-sub008/internal/domain/migration"
	"github.com/contentstack/cli-sub008/internal/infrastructure/cma"
	"github.com/contentstack/cli-sub008/internal/infrastructure/export"
	"github.com/contentstack/cli-sub008/internal/infrastructure/secrets"
)

// API is the target stack surface used by the modules
type API interface {
	CreateEnvironment(ctx context.Context, rec migration.Record) (migration.Record, error)
	CreateLabel(ctx context.Context, rec migration.Record) (migration.Record, error)
	UpdateLabel(ctx context.Context, uid string, rec migration.Record) (migration.Record, error)
	ListLabels(ctx context.Context) ([]migration.Record, error)
	CreateWebhook(ctx context.Context, rec migration.Record) (migration.Record, error)
	CreateWorkflow(ctx context.Context, rec migration.Record) (migration.Record, error)
	ListRoles(ctx context.Context) ([]cma.Role, error)
	ImportTaxonomy(ctx context.Context, uid string, export []byte) (migration.Record, error)
	ListInstallations(ctx context.Context) ([]cma.Installation, error)
	InstallApp(ctx context.Context, manifestUID, targetType string) (cma.InstallResult, error)
	UpdateInstallationConfig(ctx context.Context, installationUID string, configuration, serverConfiguration any) error
}

var _ API = (*cma.Client)(nil)

// Deps are the collaborators shared by the entity-kind modules
type Deps struct {
	Reader          export.Reader
	API             API
	Keys            *secrets.KeyResolver
	DisableWebhooks bool
}

// BuildModules creates the modules for kinds, in the order given
func BuildModules(kinds []migration.EntityKind, deps Deps) ([]Module, error) {
	if deps.Reader == nil || deps.API == nil {
		return nil, fmt.Errorf("modules need an export reader and a target API")
	}
	if deps.Keys == nil {
		deps.Keys = secrets.NewKeyResolver("", nil, 0)
	}

	modules := make([]Module, 0, len(kinds))
	for _, kind := range kinds {
		base := recordSource{kind: kind, reader: deps.Reader}
		switch kind {
		case migration.EntityEnvironments:
			modules = append(modules, &environmentsModule{recordSource: base, api: deps.API})
		case migration.EntityLabels:
			modules = append(modules, &labelsModule{recordSource: base, api: deps.API})
		case migration.EntityWebhooks:
			modules = append(modules, &webhooksModule{recordSource: base, api: deps.API, disable: deps.DisableWebhooks})
		case migration.EntityWorkflows:
			modules = append(modules, &workflowsModule{recordSource: base, api: deps.API})
		case migration.EntityTaxonomies:
			modules = append(modules, &taxonomiesModule{recordSource: base, api: deps.API})
		case migration.EntityMarketplaceApps:
			modules = append(modules, &marketplaceAppsModule{recordSource: base, api: deps.API, keys: deps.Keys})
		default:
			return nil, fmt.Errorf("%w: %s", migration.ErrInvalidEntityKind, kind)
		}
	}
	return modules, nil
}

// recordSource loads the record collection of a kind during Analyze
type recordSource struct {
	kind    migration.EntityKind
	reader  export.Reader
	records []migration.Record
}

// Kind implements Module
func (m *recordSource) Kind() migration.EntityKind {
	return m.kind
}

// Analyze implements Module. An unreadable artifact fails the module.
func (m *recordSource) Analyze(ctx context.Context) (int, error) {
	records, err := export.ReadRecords(ctx, m.reader, export.KindPath(m.kind))
	if err != nil {
		return 0, err
	}
	m.records = records
	return len(records), nil
}

// createdUID maps a source record to the uid the target assigned
func createdUID(resp, _ migration.Record) any {
	if resp.UID == "" {
		return nil
	}
	return resp.UID
}

// validated returns a Prepare hook that checks the record against view V
func validated[V any]() func(context.Context, migration.Record) (migration.Record, error) {
	return func(_ context.Context, r migration.Record) (migration.Record, error) {
		if _, err := migration.DecodeView[V](r); err != nil {
			return r, err
		}
		return r, nil
	}
}
