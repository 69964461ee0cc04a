package persistence

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/meridian-hq/docvault/modules/docfile/domain/ports"
	"github.com/meridian-hq/docvault/modules/docfile/domain/types"
)

// RegistryPGStore serves the group registry and the principal directory.
type RegistryPGStore struct {
	pool pgBeginner
}

func NewRegistryPGStore(pool pgBeginner) *RegistryPGStore {
	return &RegistryPGStore{pool: pool}
}

var _ ports.GroupStore = (*RegistryPGStore)(nil)
var _ ports.PrincipalStore = (*RegistryPGStore)(nil)

func (s *RegistryPGStore) ListGroups(ctx context.Context) ([]types.Group, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
	SELECT id, name, is_default
	FROM docvault.groups
	ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Group
	for rows.Next() {
		var g types.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.IsDefault); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *RegistryPGStore) GetPrincipal(ctx context.Context, principalID string) (ports.PrincipalRecord, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ports.PrincipalRecord{}, false, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var p ports.PrincipalRecord
	err = tx.QueryRow(ctx, `
	SELECT
	  p.id::text,
	  p.role_slug,
	  p.clearance,
	  p.status,
	  COALESCE(array_agg(m.group_id ORDER BY m.group_id) FILTER (WHERE m.group_id IS NOT NULL), '{}')
	FROM docvault.principals p
	LEFT JOIN docvault.group_members m ON m.principal_id = p.id
	WHERE p.id = $1::uuid
	GROUP BY p.id, p.role_slug, p.clearance, p.status
	`, principalID).Scan(&p.ID, &p.RoleSlug, &p.Clearance, &p.Status, &p.Groups)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ports.PrincipalRecord{}, false, nil
		}
		return ports.PrincipalRecord{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return ports.PrincipalRecord{}, false, err
	}
	return p, true, nil
}
