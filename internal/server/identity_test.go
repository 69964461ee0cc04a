package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/meridian-hq/docvault/modules/docfile/domain/ports"
	"github.com/meridian-hq/docvault/pkg/classification"
)

type failingPrincipalStore struct{}

func (failingPrincipalStore) GetPrincipal(context.Context, string) (ports.PrincipalRecord, bool, error) {
	return ports.PrincipalRecord{}, false, errors.New("directory down")
}

func identityTestLattice(t *testing.T) classification.Lattice {
	t.Helper()
	lattice, err := classification.New([]classification.Level{
		{Name: "PUBLIC", Rank: 0},
		{Name: "SECRET", Rank: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	return lattice
}

func TestWithIdentity(t *testing.T) {
	t.Parallel()

	lattice := identityTestLattice(t)
	store := &principalMemoryStore{byID: map[string]ports.PrincipalRecord{
		"officer":  {ID: "officer", RoleSlug: "Vault-Officer", Clearance: "SECRET", Groups: []string{"ops"}, Status: "active"},
		"retired":  {ID: "retired", RoleSlug: "vault-officer", Clearance: "SECRET", Status: "disabled"},
		"misfiled": {ID: "misfiled", RoleSlug: "vault-officer", Clearance: "ULTRAVIOLET", Status: "active"},
	}}

	var seen []string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := currentPrincipal(r.Context())
		if ok {
			seen = append(seen, p.ID+"/"+p.RoleSlug+"/"+p.Clearance.Name)
		} else {
			seen = append(seen, "anonymous")
		}
		w.WriteHeader(http.StatusOK)
	})
	h := withIdentity(nil, store, lattice, next)

	cases := []struct {
		name      string
		path      string
		principal string
		status    int
	}{
		{name: "health open", path: "/healthz", principal: "", status: http.StatusOK},
		{name: "missing header", path: "/docfile/api/files", principal: "", status: http.StatusUnauthorized},
		{name: "unknown principal", path: "/docfile/api/files", principal: "ghost", status: http.StatusUnauthorized},
		{name: "inactive principal", path: "/docfile/api/files", principal: "retired", status: http.StatusUnauthorized},
		{name: "unknown clearance", path: "/docfile/api/files", principal: "misfiled", status: http.StatusInternalServerError},
		{name: "resolved", path: "/docfile/api/files", principal: "officer", status: http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		if tc.principal != "" {
			req.Header.Set("X-Principal", tc.principal)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tc.status {
			t.Fatalf("%s: status=%d want %d", tc.name, rec.Code, tc.status)
		}
	}

	// The health probe passes through anonymously; the resolved principal
	// carries a lowercased role slug and a lattice-resolved clearance.
	if len(seen) != 2 || seen[0] != "anonymous" || seen[1] != "officer/vault-officer/SECRET" {
		t.Fatalf("seen=%v", seen)
	}
}

func TestWithIdentity_StoreError(t *testing.T) {
	t.Parallel()

	h := withIdentity(nil, failingPrincipalStore{}, identityTestLattice(t), http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/docfile/api/files", nil)
	req.Header.Set("X-Principal", "officer")
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "principal_lookup_error") {
		t.Fatalf("body=%q", rec.Body.String())
	}
}
