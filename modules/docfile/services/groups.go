package services

import (
	"context"

	"github.com/meridian-hq/docvault/modules/docfile/domain/ports"
	"github.com/meridian-hq/docvault/modules/docfile/domain/types"
)

// GroupSnapshot is an immutable view of the group registry, rebuilt per
// request so decisions never read mutable shared state.
type GroupSnapshot struct {
	byID     map[string]types.Group
	defaults []types.Group
}

func NewGroupSnapshot(groups []types.Group) GroupSnapshot {
	byID := make(map[string]types.Group, len(groups))
	var defaults []types.Group
	for _, g := range groups {
		byID[g.ID] = g
		if g.IsDefault {
			defaults = append(defaults, g)
		}
	}
	return GroupSnapshot{byID: byID, defaults: defaults}
}

func LoadGroupSnapshot(ctx context.Context, store ports.GroupStore) (GroupSnapshot, error) {
	groups, err := store.ListGroups(ctx)
	if err != nil {
		return GroupSnapshot{}, err
	}
	return NewGroupSnapshot(groups), nil
}

// Resolve maps ids to group records, failing on the first unknown id.
func (s GroupSnapshot) Resolve(ids []string) ([]types.Group, error) {
	out := make([]types.Group, 0, len(ids))
	for _, id := range ids {
		g, ok := s.byID[id]
		if !ok {
			return nil, &UnknownGroupError{GroupID: id}
		}
		out = append(out, g)
	}
	return out, nil
}

func (s GroupSnapshot) Get(id string) (types.Group, bool) {
	g, ok := s.byID[id]
	return g, ok
}

func (s GroupSnapshot) DefaultGroups() []types.Group {
	out := make([]types.Group, len(s.defaults))
	copy(out, s.defaults)
	return out
}

func (s GroupSnapshot) IsDefault(id string) bool {
	g, ok := s.byID[id]
	return ok && g.IsDefault
}

// StripDefaults removes default groups from an explicit releasable-to
// value. Stored overrides carry only non-default groups, so a later change
// to which groups are default cannot silently widen a stored override.
func (s GroupSnapshot) StripDefaults(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if s.IsDefault(id) {
			continue
		}
		out = append(out, id)
	}
	return out
}
