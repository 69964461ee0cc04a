package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/meridian-hq/docvault/internal/routing"
	"github.com/meridian-hq/docvault/pkg/authz"
)

func loadAuthorizer() (*authz.Authorizer, error) {
	modelPath := os.Getenv("AUTHZ_MODEL_PATH")
	if modelPath == "" {
		p, err := defaultAuthzModelPath()
		if err != nil {
			return nil, err
		}
		modelPath = p
	}

	policyPath := os.Getenv("AUTHZ_POLICY_PATH")
	if policyPath == "" {
		p, err := defaultAuthzPolicyPath()
		if err != nil {
			return nil, err
		}
		policyPath = p
	}

	mode, err := authz.ModeFromEnv()
	if err != nil {
		return nil, err
	}

	return authz.NewAuthorizer(modelPath, policyPath, mode)
}

func defaultAuthzModelPath() (string, error) {
	path := "config/access/model.conf"
	for i := 0; i < 8; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: authz model not found")
}

func defaultAuthzPolicyPath() (string, error) {
	path := "config/access/policy.csv"
	for i := 0; i < 8; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: authz policy not found")
}

type authorizer interface {
	Authorize(subject string, domain string, object string, action string) (allowed bool, enforced bool, err error)
}

// withAuthz is the coarse role gate in front of the API: may this role reach
// this surface at all. The per-object security engine runs after it and is
// never bypassed by a casbin allow.
func withAuthz(classifier *routing.Classifier, a authorizer, next http.Handler) http.Handler {
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

		roleSlug := authz.RoleAnonymous
		if p, ok := currentPrincipal(r.Context()); ok {
			roleSlug = p.RoleSlug
		}
		subject := authz.SubjectFromRoleSlug(roleSlug)

		object, action, shouldCheck := authzRequirementForRoute(r.Method, path)
		if !shouldCheck {
			next.ServeHTTP(w, r)
			return
		}

		allowed, enforced, err := a.Authorize(subject, authz.DomainGlobal, object, action)
		if err != nil {
			routing.WriteError(w, r, rc, http.StatusInternalServerError, "authz_error", "authz error")
			return
		}
		if enforced && !allowed {
			routing.WriteError(w, r, rc, http.StatusForbidden, "forbidden", "forbidden")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func authzRequirementForRoute(method string, path string) (object string, action string, ok bool) {
	switch path {
	case "/docfile/api/files", "/docfile/api/files:download", "/docfile/api/files:list":
		if method == http.MethodGet {
			return authz.ObjectDocFileFiles, authz.ActionRead, true
		}
		if method == http.MethodPost {
			return authz.ObjectDocFileFiles, authz.ActionWrite, true
		}
		return "", "", false
	case "/docfile/api/files:update", "/docfile/api/files:delete":
		if method == http.MethodPost {
			return authz.ObjectDocFileFiles, authz.ActionWrite, true
		}
		return "", "", false
	case "/docfile/api/documents":
		if method == http.MethodGet {
			return authz.ObjectDocFileDocuments, authz.ActionRead, true
		}
		if method == http.MethodPost {
			return authz.ObjectDocFileDocuments, authz.ActionWrite, true
		}
		return "", "", false
	case "/docfile/api/documents:get":
		if method == http.MethodGet {
			return authz.ObjectDocFileDocuments, authz.ActionRead, true
		}
		return "", "", false
	case "/docfile/api/access-rules:evaluate":
		if method == http.MethodPost {
			return authz.ObjectDocFileRules, authz.ActionAdmin, true
		}
		return "", "", false
	default:
		return "", "", false
	}
}
