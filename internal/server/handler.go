package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meridian-hq/docvault/internal/routing"
	"github.com/meridian-hq/docvault/modules/docfile/domain/ports"
	"github.com/meridian-hq/docvault/modules/docfile/infrastructure/blob"
	"github.com/meridian-hq/docvault/modules/docfile/infrastructure/persistence"
	"github.com/meridian-hq/docvault/modules/docfile/presentation/controllers"
	"github.com/meridian-hq/docvault/modules/docfile/services"
	"github.com/meridian-hq/docvault/pkg/classification"
)

func NewHandler() (http.Handler, error) {
	return NewHandlerWithOptions(HandlerOptions{})
}

type HandlerOptions struct {
	FileStore      ports.FileStore
	BlobStore      ports.BlobStore
	AuditLog       ports.AuditLog
	GroupStore     ports.GroupStore
	PrincipalStore ports.PrincipalStore
	Lattice        *classification.Lattice
}

func NewHandlerWithOptions(opts HandlerOptions) (http.Handler, error) {
	allowlistPath := os.Getenv("ALLOWLIST_PATH")
	if allowlistPath == "" {
		p, err := defaultAllowlistPath()
		if err != nil {
			return nil, err
		}
		allowlistPath = p
	}

	a, err := routing.LoadAllowlist(allowlistPath)
	if err != nil {
		return nil, err
	}

	classifier, err := routing.NewClassifier(a, "server")
	if err != nil {
		return nil, err
	}

	var lattice classification.Lattice
	if opts.Lattice != nil {
		lattice = *opts.Lattice
	} else {
		lattice, err = loadLattice()
		if err != nil {
			return nil, err
		}
	}

	fileStore := opts.FileStore
	blobStore := opts.BlobStore
	auditLog := opts.AuditLog
	groupStore := opts.GroupStore
	principalStore := opts.PrincipalStore

	var pgPool *pgxpool.Pool
	if fileStore == nil {
		dsn := dbDSNFromEnv()
		pool, err := pgxpool.New(context.Background(), dsn)
		if err != nil {
			return nil, err
		}
		pgPool = pool
		fileStore = persistence.NewFilePGStore(pgPool)
	}

	if blobStore == nil {
		if root := os.Getenv("BLOB_ROOT"); root != "" {
			fsStore, err := blob.NewFSStore(root)
			if err != nil {
				return nil, err
			}
			blobStore = fsStore
		} else {
			blobStore = newBlobMemoryStore()
		}
	}

	if auditLog == nil {
		if pgPool != nil {
			auditLog = persistence.NewAuditPGStore(pgPool)
		} else {
			auditLog = logAuditLog{}
		}
	}

	if groupStore == nil || principalStore == nil {
		if pgPool != nil {
			registry := persistence.NewRegistryPGStore(pgPool)
			if groupStore == nil {
				groupStore = registry
			}
			if principalStore == nil {
				principalStore = registry
			}
		} else {
			if groupStore == nil {
				s, err := newGroupMemoryStoreFromConfig()
				if err != nil {
					return nil, err
				}
				groupStore = s
			}
			if principalStore == nil {
				s, err := newPrincipalMemoryStoreFromConfig()
				if err != nil {
					return nil, err
				}
				principalStore = s
			}
		}
	}

	fileService := services.NewFileService(fileStore, blobStore, auditLog, groupStore, lattice)

	filesCtrl := controllers.FilesController{Principal: currentPrincipal, Files: fileService}
	documentsCtrl := controllers.DocumentsController{Principal: currentPrincipal, Documents: fileService}
	rulesAPI := accessRulesEvaluateAPI{
		files:      fileStore,
		groups:     groupStore,
		principals: principalStore,
		lattice:    lattice,
	}

	router := routing.NewRouter(classifier)

	authorizer, err := loadAuthorizer()
	if err != nil {
		return nil, err
	}

	router.Handle(routing.RouteClassOps, http.MethodGet, "/health", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}))
	router.Handle(routing.RouteClassOps, http.MethodGet, "/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}))

	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/docfile/api/files", http.HandlerFunc(filesCtrl.HandleFilesAPI))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/docfile/api/files", http.HandlerFunc(filesCtrl.HandleFilesAPI))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/docfile/api/files:download", http.HandlerFunc(filesCtrl.HandleFilesDownloadAPI))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/docfile/api/files:list", http.HandlerFunc(filesCtrl.HandleFilesListAPI))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/docfile/api/files:update", http.HandlerFunc(filesCtrl.HandleFilesUpdateAPI))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/docfile/api/files:delete", http.HandlerFunc(filesCtrl.HandleFilesDeleteAPI))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/docfile/api/documents", http.HandlerFunc(documentsCtrl.HandleDocumentsAPI))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/docfile/api/documents", http.HandlerFunc(documentsCtrl.HandleDocumentsAPI))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/docfile/api/documents:get", http.HandlerFunc(documentsCtrl.HandleDocumentsGetAPI))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/docfile/api/access-rules:evaluate", http.HandlerFunc(rulesAPI.handle))

	guarded := withIdentity(classifier, principalStore, lattice, withAuthz(classifier, authorizer, router))

	mux := http.NewServeMux()
	mux.Handle("/", guarded)

	return mux, nil
}

func MustNewHandler() http.Handler {
	h, err := NewHandler()
	if err != nil {
		panic(errors.New("server: failed to build handler: " + err.Error()))
	}
	return h
}

// NewMux is the entrypoint main uses. It panics on misconfiguration so the
// process fails at startup instead of serving a half-wired handler.
func NewMux() http.Handler {
	return MustNewHandler()
}

func defaultAllowlistPath() (string, error) {
	path := "config/routing/allowlist.yaml"
	for i := 0; i < 8; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: allowlist not found")
}
