package migrationapp

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/contentstack/cli-sub008/internal/domain/migration"
	"github.com/contentstack/cli-sub008/internal/infrastructure/cma"
	"github.com/contentstack/cli-sub008/internal/infrastructure/mapper"
	"github.com/contentstack/cli-sub008/internal/infrastructure/secrets"
)

type marketplaceAppsModule struct {
	recordSource
	api  API
	keys *secrets.KeyResolver
}

// configuredMap names the nested map of apps whose configuration is settled
const configuredMap = "configure"

// appConfig is the stored configuration of one app installation
type appConfig struct {
	uid             string
	name            string
	installationUID string
	configuration   any
	server          any
}

// Import installs apps missing on the target, then restores the stored
// configuration of every app this importer installed that has not been
// configured yet, including installs from an earlier run.
func (m *marketplaceAppsModule) Import(ctx context.Context, s *Session) error {
	installed := map[string]string{}
	err := RunPrerequisite(ctx, s, "fetch-installed-apps", "Fetching installed apps", func(ctx context.Context) error {
		apps, err := m.api.ListInstallations(ctx)
		if err != nil {
			return fmt.Errorf("list installations: %w", err)
		}
		for _, app := range apps {
			installed[app.Manifest.UID] = app.UID
		}
		return nil
	})
	if err != nil {
		return err
	}

	var (
		mu      sync.Mutex
		foreign = map[string]struct{}{}
	)
	_, err = RunPhase(ctx, s, Phase[migration.Record, cma.InstallResult]{
		Name:     "install",
		Label:    "Installing apps",
		Items:    m.records,
		UID:      recordUID,
		ItemName: appName,
		Existing: func(r migration.Record) (any, bool) {
			uid, ok := installed[manifestUID(r)]
			if !ok {
				return nil, false
			}
			mu.Lock()
			foreign[r.UID] = struct{}{}
			mu.Unlock()
			return uid, true
		},
		Prepare: validated[migration.MarketplaceApp](),
		Call: func(ctx context.Context, r migration.Record) (cma.InstallResult, error) {
			return m.api.InstallApp(ctx, manifestUID(r), r.String("target_type"))
		},
		TargetValue: func(res cma.InstallResult, _ migration.Record) any {
			if res.InstallationUID == "" {
				return nil
			}
			return res.InstallationUID
		},
		SuccessEntry: func(res cma.InstallResult, r migration.Record) any {
			return map[string]string{
				"uid":              r.UID,
				"manifest_uid":     manifestUID(r),
				"installation_uid": res.InstallationUID,
			}
		},
	})
	if err != nil {
		return err
	}

	configured, err := s.OpenSubMap(ctx, configuredMap)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := configured.Close(); cerr != nil {
			s.Logger.Warn("Failed to close configured apps map", zap.Error(cerr))
		}
	}()

	// Installs found on the target are settled so that later runs never
	// overwrite their configuration.
	for uid := range foreign {
		if configured.Has(uid) {
			continue
		}
		target, _ := s.IDs.Get(uid)
		if err := configured.Set(ctx, uid, target); err != nil {
			return err
		}
	}

	configs := m.pendingConfigs(s, configured)
	if len(configs) == 0 {
		return nil
	}

	_, err = RunPhase(ctx, s, Phase[appConfig, struct{}]{
		Name:     "configure",
		Label:    "Configuring apps",
		Items:    configs,
		UID:      func(c appConfig) string { return c.uid },
		ItemName: func(c appConfig) string { return c.name },
		Mapped:   func(c appConfig) bool { return configured.Has(c.uid) },
		Prepare:  m.decrypt,
		Call: func(ctx context.Context, c appConfig) (struct{}, error) {
			return struct{}{}, m.api.UpdateInstallationConfig(ctx, c.installationUID, c.configuration, c.server)
		},
		SuccessEntry: func(struct{}, appConfig) any { return nil },
		AfterSuccess: func(ctx context.Context, _ struct{}, c appConfig) error {
			return configured.Set(ctx, c.uid, c.installationUID)
		},
		Followup: true,
	})
	return err
}

// pendingConfigs lists the apps with stored configuration whose installation
// is mapped and not yet configured.
func (m *marketplaceAppsModule) pendingConfigs(s *Session, configured *mapper.IdentifierMap) []appConfig {
	var configs []appConfig
	for _, r := range m.records {
		cfg, _ := r.Get("configuration")
		server, _ := r.Get("server_configuration")
		if cfg == nil && server == nil {
			continue
		}
		if configured.Has(r.UID) {
			continue
		}
		installationUID, ok := s.IDs.GetString(r.UID)
		if !ok || installationUID == "" {
			continue
		}
		configs = append(configs, appConfig{
			uid:             r.UID,
			name:            appName(r),
			installationUID: installationUID,
			configuration:   cfg,
			server:          server,
		})
	}
	return configs
}

// decrypt opens the stored configuration. Running out of key attempts stops
// the phase since every later app would need the same key.
func (m *marketplaceAppsModule) decrypt(ctx context.Context, c appConfig) (appConfig, error) {
	var err error
	if c.configuration, err = m.keys.Decrypt(ctx, c.configuration); err != nil {
		return c, keyError(err)
	}
	if c.server, err = m.keys.Decrypt(ctx, c.server); err != nil {
		return c, keyError(err)
	}
	return c, nil
}

func keyError(err error) error {
	if errors.Is(err, secrets.ErrKeyAttemptsExhausted) {
		return Fatal(err)
	}
	return fmt.Errorf("decrypt configuration: %w", err)
}

func manifestUID(r migration.Record) string {
	if manifest, ok := r.Fields["manifest"].(map[string]any); ok {
		if uid, ok := manifest["uid"].(string); ok {
			return uid
		}
	}
	return ""
}

func appName(r migration.Record) string {
	if manifest, ok := r.Fields["manifest"].(map[string]any); ok {
		if name, ok := manifest["name"].(string); ok && name != "" {
			return name
		}
	}
	return r.Name()
}
