package migrationapp

import (
	"context"

	"github.com/contentstack/cli-sub008/internal/domain/migration"
)

type environmentsModule struct {
	recordSource
	api API
}

// Import creates environments
func (m *environmentsModule) Import(ctx context.Context, s *Session) error {
	_, err := RunPhase(ctx, s, Phase[migration.Record, migration.Record]{
		Name:        "create",
		Label:       "Creating environments",
		Items:       m.records,
		UID:         recordUID,
		ItemName:    recordName,
		Call:        m.api.CreateEnvironment,
		Prepare:     validated[migration.Environment](),
		TargetValue: createdUID,
	})
	return err
}
