package migrationapp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/contentstack/cli-sub008/internal/domain/migration"
	"github.com/contentstack/cli-sub008/internal/infrastructure/mapper"
)

type taxonomiesModule struct {
	recordSource
	api API
}

// taxonomyUpload is one taxonomy with its exported terms
type taxonomyUpload struct {
	source migration.Record
	data   []byte
	terms  []migration.Term
}

// Import uploads each taxonomy together with its terms. Term outcomes go
// to a separate terms ledger.
func (m *taxonomiesModule) Import(ctx context.Context, s *Session) error {
	sub := s.Layout.Sub("terms")
	terms := mapper.NewLedger(sub.SuccessPath(), sub.FailsPath())

	items := make([]taxonomyUpload, len(m.records))
	for i, r := range m.records {
		items[i] = taxonomyUpload{source: r}
	}

	_, err := RunPhase(ctx, s, Phase[taxonomyUpload, migration.Record]{
		Name:     "import",
		Label:    "Importing taxonomies",
		Items:    items,
		UID:      func(t taxonomyUpload) string { return t.source.UID },
		ItemName: func(t taxonomyUpload) string { return t.source.Name() },
		Prepare:  m.load,
		Call: func(ctx context.Context, t taxonomyUpload) (migration.Record, error) {
			return m.api.ImportTaxonomy(ctx, t.source.UID, t.data)
		},
		TargetValue: func(resp migration.Record, t taxonomyUpload) any {
			if resp.UID == "" {
				return t.source.UID
			}
			return resp.UID
		},
		AfterSuccess: func(_ context.Context, _ migration.Record, t taxonomyUpload) error {
			for _, term := range t.terms {
				terms.AppendSuccess(term)
			}
			return nil
		},
		AfterFailure: func(_ context.Context, err error, t taxonomyUpload) error {
			for _, term := range t.terms {
				f := failureFor(term.UID, term.Name, "import", err)
				f.Message = fmt.Sprintf("taxonomy %s: %s", t.source.UID, failureMessage(f))
				terms.AppendFailure(f)
			}
			return nil
		},
	})

	if ferr := flushLedger(terms, err); ferr != nil && err == nil {
		err = fmt.Errorf("write terms ledger: %w", ferr)
	}
	return err
}

// load reads the per-taxonomy artifact holding the taxonomy and its terms
func (m *taxonomiesModule) load(ctx context.Context, t taxonomyUpload) (taxonomyUpload, error) {
	dir := migration.EntityTaxonomies.DirName()
	path := dir + "/" + t.source.UID + ".json"
	data, ok, err := m.reader.ReadJSON(ctx, path)
	if err != nil {
		return t, err
	}
	if !ok {
		return t, fmt.Errorf("taxonomy export %s not found", path)
	}

	var doc migration.TaxonomyExport
	if err := json.Unmarshal(data, &doc); err != nil {
		return t, fmt.Errorf("parse %s: %w", path, err)
	}
	if _, err := migration.ValidatePayload(&doc); err != nil {
		return t, err
	}
	t.data = data
	t.terms = doc.Terms
	return t, nil
}
