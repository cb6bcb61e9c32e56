package migrationapp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/contentstack/cli-sub008/internal/domain/migration"
	"github.com/contentstack/cli-sub008/internal/infrastructure/bulk"
	"github.com/contentstack/cli-sub008/internal/infrastructure/cma"
	"github.com/contentstack/cli-sub008/internal/infrastructure/config"
	"github.com/contentstack/cli-sub008/internal/infrastructure/mapper"
	"github.com/contentstack/cli-sub008/internal/infrastructure/progress"
)

// fakeAPI implements API with per-operation funcs. Unset operations panic.
type fakeAPI struct {
	createEnvironment func(ctx context.Context, rec migration.Record) (migration.Record, error)
	createLabel       func(ctx context.Context, rec migration.Record) (migration.Record, error)
	updateLabel       func(ctx context.Context, uid string, rec migration.Record) (migration.Record, error)
	listLabels        func(ctx context.Context) ([]migration.Record, error)
	createWebhook     func(ctx context.Context, rec migration.Record) (migration.Record, error)
	createWorkflow    func(ctx context.Context, rec migration.Record) (migration.Record, error)
	listRoles         func(ctx context.Context) ([]cma.Role, error)
	importTaxonomy    func(ctx context.Context, uid string, export []byte) (migration.Record, error)
	listInstallations func(ctx context.Context) ([]cma.Installation, error)
	installApp        func(ctx context.Context, manifestUID, targetType string) (cma.InstallResult, error)
	updateConfig      func(ctx context.Context, installationUID string, configuration, serverConfiguration any) error
}

var _ API = (*fakeAPI)(nil)

func (f *fakeAPI) CreateEnvironment(ctx context.Context, rec migration.Record) (migration.Record, error) {
	return f.createEnvironment(ctx, rec)
}

func (f *fakeAPI) CreateLabel(ctx context.Context, rec migration.Record) (migration.Record, error) {
	return f.createLabel(ctx, rec)
}

func (f *fakeAPI) UpdateLabel(ctx context.Context, uid string, rec migration.Record) (migration.Record, error) {
	return f.updateLabel(ctx, uid, rec)
}

func (f *fakeAPI) ListLabels(ctx context.Context) ([]migration.Record, error) {
	return f.listLabels(ctx)
}

func (f *fakeAPI) CreateWebhook(ctx context.Context, rec migration.Record) (migration.Record, error) {
	return f.createWebhook(ctx, rec)
}

func (f *fakeAPI) CreateWorkflow(ctx context.Context, rec migration.Record) (migration.Record, error) {
	return f.createWorkflow(ctx, rec)
}

func (f *fakeAPI) ListRoles(ctx context.Context) ([]cma.Role, error) {
	return f.listRoles(ctx)
}

func (f *fakeAPI) ImportTaxonomy(ctx context.Context, uid string, export []byte) (migration.Record, error) {
	return f.importTaxonomy(ctx, uid, export)
}

func (f *fakeAPI) ListInstallations(ctx context.Context) ([]cma.Installation, error) {
	return f.listInstallations(ctx)
}

func (f *fakeAPI) InstallApp(ctx context.Context, manifestUID, targetType string) (cma.InstallResult, error) {
	return f.installApp(ctx, manifestUID, targetType)
}

func (f *fakeAPI) UpdateInstallationConfig(ctx context.Context, installationUID string, configuration, serverConfiguration any) error {
	return f.updateConfig(ctx, installationUID, configuration, serverConfiguration)
}

// echoCreate returns a create func answering with "t-<uid>" and recording
// the payloads it saw.
func echoCreate(seen *sync.Map) func(context.Context, migration.Record) (migration.Record, error) {
	return func(_ context.Context, rec migration.Record) (migration.Record, error) {
		if seen != nil {
			seen.Store(rec.UID, rec)
		}
		out := rec.Clone()
		out.UID = "t-" + rec.UID
		return out, nil
	}
}

// recordingSink keeps every progress event
type recordingSink struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recordingSink) Notify(e progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingSink) ofType(typ progress.EventType) []progress.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []progress.Event
	for _, e := range r.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	dir      string
	exports  string
	factory  *mapper.StoreFactory
	registry *progress.Registry
	sink     *recordingSink
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	sink := &recordingSink{}
	return &testEnv{
		dir:      dir,
		exports:  filepath.Join(dir, "export"),
		factory:  mapper.NewStoreFactory(filepath.Join(dir, "run"), config.MapperConfig{Backend: "file"}, config.RedisConfig{}),
		registry: progress.NewRegistry(sink),
		sink:     sink,
	}
}

func (e *testEnv) runner(t *testing.T, opts ...RunnerOption) *Runner {
	t.Helper()
	opts = append([]RunnerOption{WithLogger(zaptest.NewLogger(t)), WithRunID("run-1")}, opts...)
	return NewRunner(e.factory, e.registry, opts...)
}

// session prepares the resume state of kind the way a run does
func (e *testEnv) session(t *testing.T, kind migration.EntityKind, opts ...bulk.Option) *Session {
	t.Helper()
	r := e.runner(t, WithBulkOptions(opts...))
	s, err := r.prepareResumeState(context.Background(), zaptest.NewLogger(t), kind)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.IDs.Close() })
	return s
}

// writeExport writes an export artifact relative to the export root
func (e *testEnv) writeExport(t *testing.T, path string, v any) {
	t.Helper()
	writeJSONFile(t, filepath.Join(e.exports, filepath.FromSlash(path)), v)
}

// seedMapping writes an identifier map from an earlier run
func (e *testEnv) seedMapping(t *testing.T, kind migration.EntityKind, m map[string]any) {
	t.Helper()
	writeJSONFile(t, e.factory.Layout(kind).UIDMappingPath(), m)
}

func (e *testEnv) readMapping(t *testing.T, kind migration.EntityKind) map[string]any {
	t.Helper()
	m, err := mapper.LoadMapping(e.factory.Layout(kind).UIDMappingPath())
	require.NoError(t, err)
	return m
}

func writeJSONFile(t *testing.T, path string, v any) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func readFailures(t *testing.T, path string) []mapper.Failure {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out []mapper.Failure
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func readEntries(t *testing.T, path string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out []map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func records(uids ...string) []migration.Record {
	out := make([]migration.Record, len(uids))
	for i, uid := range uids {
		out[i] = migration.NewRecord(uid, map[string]any{"name": "Item " + uid})
	}
	return out
}
