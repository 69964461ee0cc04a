package ports

import (
	"context"

	"github.com/meridian-hq/docvault/modules/docfile/domain/types"
)

type GroupStore interface {
	ListGroups(ctx context.Context) ([]types.Group, error)
}

// PrincipalRecord is the directory row for one principal. Clearance is the
// configured level name; the identity layer resolves it against the lattice.
type PrincipalRecord struct {
	ID        string
	RoleSlug  string
	Clearance string
	Groups    []string
	Status    string
}

type PrincipalStore interface {
	GetPrincipal(ctx context.Context, principalID string) (PrincipalRecord, bool, error)
}
