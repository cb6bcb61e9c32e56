package migration

import (
	"fmt"
	"strings"

	"github.com/contentstack/cli-sub008/internal/domain/shared"
)

// EntityKind identifies an importable entity kind. The value doubles as the
// module name accepted on the command line.
type EntityKind string

const (
	EntityEnvironments    EntityKind = "environments"
	EntityMarketplaceApps EntityKind = "marketplace-apps"
	EntityTaxonomies      EntityKind = "taxonomies"
	EntityLabels          EntityKind = "labels"
	EntityWebhooks        EntityKind = "webhooks"
	EntityWorkflows       EntityKind = "workflows"

	// EntityCustomRoles is never imported here, but its identifier map is
	// read when remapping workflow stage roles.
	EntityCustomRoles EntityKind = "custom-roles"
)

// importOrder is the order modules run in when no explicit list is given.
// Apps come before taxonomies and labels so extension uids are mapped, and
// workflows run last because they reference roles and environments.
var importOrder = []EntityKind{
	EntityEnvironments,
	EntityMarketplaceApps,
	EntityTaxonomies,
	EntityLabels,
	EntityWebhooks,
	EntityWorkflows,
}

// ImportOrder returns the importable entity kinds in run order
func ImportOrder() []EntityKind {
	out := make([]EntityKind, len(importOrder))
	copy(out, importOrder)
	return out
}

// IsValid checks whether the kind can be imported
func (k EntityKind) IsValid() bool {
	for _, kind := range importOrder {
		if kind == k {
			return true
		}
	}
	return false
}

// DirName returns the directory used for the kind in both the export
// artifacts and the mapper tree.
func (k EntityKind) DirName() string {
	if k == EntityMarketplaceApps {
		return "marketplace_apps"
	}
	return string(k)
}

// String implements fmt.Stringer
func (k EntityKind) String() string {
	return string(k)
}

// ParseEntityKinds validates module names and returns them in run order.
// An empty input selects every module.
func ParseEntityKinds(names []string) ([]EntityKind, error) {
	if len(names) == 0 {
		return ImportOrder(), nil
	}

	selected := make(map[EntityKind]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(strings.ToLower(name))
		if name == "" {
			continue
		}
		kind := EntityKind(strings.ReplaceAll(name, "_", "-"))
		if !kind.IsValid() {
			return nil, shared.NewDomainError(ErrInvalidEntityKind.Code, fmt.Sprintf("Unknown module: %s", name))
		}
		selected[kind] = true
	}

	out := make([]EntityKind, 0, len(selected))
	for _, kind := range importOrder {
		if selected[kind] {
			out = append(out, kind)
		}
	}
	return out, nil
}
