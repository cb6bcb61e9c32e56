package migrationapp

import (
	"context"

	"github.com/contentstack/cli-sub008/internal/domain/migration"
)

type webhooksModule struct {
	recordSource
	api     API
	disable bool
}

// Import creates webhooks, disabling them when configured to
func (m *webhooksModule) Import(ctx context.Context, s *Session) error {
	_, err := RunPhase(ctx, s, Phase[migration.Record, migration.Record]{
		Name:        "create",
		Label:       "Creating webhooks",
		Items:       m.records,
		UID:         recordUID,
		ItemName:    recordName,
		Call:        m.api.CreateWebhook,
		Prepare:     m.prepare,
		TargetValue: createdUID,
	})
	return err
}

func (m *webhooksModule) prepare(_ context.Context, r migration.Record) (migration.Record, error) {
	if _, err := migration.DecodeView[migration.Webhook](r); err != nil {
		return r, err
	}
	if !m.disable {
		return r, nil
	}
	out := r.Clone()
	out.Set("disabled", true)
	return out, nil
}
