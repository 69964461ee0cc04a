package server

import (
	"net/http"
	"strings"

	"github.com/meridian-hq/docvault/internal/routing"
	"github.com/meridian-hq/docvault/modules/docfile/domain/ports"
	"github.com/meridian-hq/docvault/modules/docfile/domain/types"
	"github.com/meridian-hq/docvault/pkg/classification"
)

// principalHeader carries the caller identity asserted by the trusted
// gateway in front of this service. Authentication happens there; this
// layer only resolves the id against the principal directory.
const principalHeader = "X-Principal"

func withIdentity(classifier *routing.Classifier, principals ports.PrincipalStore, lattice classification.Lattice, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		rc := routing.RouteClassUI
		if classifier != nil {
			rc = classifier.Classify(path)
		}

		if path == "/health" || path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		principalID := strings.TrimSpace(r.Header.Get(principalHeader))
		if principalID == "" {
			routing.WriteError(w, r, rc, http.StatusUnauthorized, "unauthorized", "unauthorized")
			return
		}

		rec, ok, err := principals.GetPrincipal(r.Context(), principalID)
		if err != nil {
			routing.WriteError(w, r, rc, http.StatusInternalServerError, "principal_lookup_error", "principal lookup error")
			return
		}
		if !ok || rec.Status != "active" {
			routing.WriteError(w, r, rc, http.StatusUnauthorized, "unauthorized", "unauthorized")
			return
		}
		clearance, known := lattice.LevelByName(rec.Clearance)
		if !known {
			routing.WriteError(w, r, rc, http.StatusInternalServerError, "principal_clearance_error", "principal clearance error")
			return
		}

		r = r.WithContext(withPrincipal(r.Context(), types.Principal{
			ID:        rec.ID,
			RoleSlug:  strings.ToLower(strings.TrimSpace(rec.RoleSlug)),
			Clearance: clearance,
			Groups:    rec.Groups,
		}))
		next.ServeHTTP(w, r)
	})
}
