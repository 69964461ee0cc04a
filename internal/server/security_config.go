package server

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/meridian-hq/docvault/modules/docfile/domain/ports"
	"github.com/meridian-hq/docvault/modules/docfile/domain/types"
	"github.com/meridian-hq/docvault/pkg/classification"
	"gopkg.in/yaml.v3"
)

func loadLattice() (classification.Lattice, error) {
	path := os.Getenv("CLASSIFICATIONS_PATH")
	if path == "" {
		p, err := defaultConfigPath("config/security/classifications.yaml")
		if err != nil {
			return classification.Lattice{}, err
		}
		path = p
	}
	return classification.Load(path)
}

type groupsConfig struct {
	Version int `yaml:"version"`
	Groups  []struct {
		ID        string `yaml:"id"`
		Name      string `yaml:"name"`
		IsDefault bool   `yaml:"is_default"`
	} `yaml:"groups"`
}

type principalsConfig struct {
	Version    int `yaml:"version"`
	Principals []struct {
		ID        string   `yaml:"id"`
		RoleSlug  string   `yaml:"role_slug"`
		Clearance string   `yaml:"clearance"`
		Groups    []string `yaml:"groups"`
		Status    string   `yaml:"status"`
	} `yaml:"principals"`
}

// groupMemoryStore serves a fixed registry snapshot loaded from YAML. It is
// the fallback when the service runs without Postgres.
type groupMemoryStore struct {
	groups []types.Group
}

func newGroupMemoryStoreFromConfig() (*groupMemoryStore, error) {
	path := os.Getenv("GROUPS_PATH")
	if path == "" {
		p, err := defaultConfigPath("config/security/groups.yaml")
		if err != nil {
			return nil, err
		}
		path = p
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg groupsConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	if cfg.Version != 1 {
		return nil, errors.New("groups: unsupported version")
	}
	groups := make([]types.Group, 0, len(cfg.Groups))
	for _, g := range cfg.Groups {
		if g.ID == "" {
			return nil, errors.New("groups: group id required")
		}
		groups = append(groups, types.Group{ID: g.ID, Name: g.Name, IsDefault: g.IsDefault})
	}
	return &groupMemoryStore{groups: groups}, nil
}

func (s *groupMemoryStore) ListGroups(context.Context) ([]types.Group, error) {
	out := make([]types.Group, len(s.groups))
	copy(out, s.groups)
	return out, nil
}

type principalMemoryStore struct {
	byID map[string]ports.PrincipalRecord
}

func newPrincipalMemoryStoreFromConfig() (*principalMemoryStore, error) {
	path := os.Getenv("PRINCIPALS_PATH")
	if path == "" {
		p, err := defaultConfigPath("config/security/principals.yaml")
		if err != nil {
			return nil, err
		}
		path = p
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg principalsConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	if cfg.Version != 1 {
		return nil, errors.New("principals: unsupported version")
	}
	byID := make(map[string]ports.PrincipalRecord, len(cfg.Principals))
	for _, p := range cfg.Principals {
		if p.ID == "" {
			return nil, errors.New("principals: principal id required")
		}
		status := p.Status
		if status == "" {
			status = "active"
		}
		byID[p.ID] = ports.PrincipalRecord{
			ID:        p.ID,
			RoleSlug:  p.RoleSlug,
			Clearance: p.Clearance,
			Groups:    p.Groups,
			Status:    status,
		}
	}
	return &principalMemoryStore{byID: byID}, nil
}

func (s *principalMemoryStore) GetPrincipal(_ context.Context, principalID string) (ports.PrincipalRecord, bool, error) {
	p, ok := s.byID[principalID]
	return p, ok, nil
}

func defaultConfigPath(rel string) (string, error) {
	path := rel
	for i := 0; i < 8; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: config not found: " + rel)
}
