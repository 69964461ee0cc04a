package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/meridian-hq/docvault/modules/docfile/domain/types"
	"github.com/meridian-hq/docvault/modules/docfile/services"
)

type DocumentsService interface {
	CreateDocument(ctx context.Context, p types.Principal, in services.DocumentInput) (types.Document, error)
	GetDocument(ctx context.Context, p types.Principal, documentID string) (types.Document, error)
	ListDocuments(ctx context.Context, p types.Principal) ([]types.Document, error)
}

type DocumentsController struct {
	Principal PrincipalGetter
	Documents DocumentsService
}

type documentView struct {
	DocumentID     string    `json:"document_id"`
	Title          string    `json:"title"`
	OwnerID        string    `json:"owner_id,omitempty"`
	Classification string    `json:"classification"`
	ReleasableTo   []string  `json:"releasable_to"`
	EyesOnly       []string  `json:"eyes_only"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func newDocumentView(d types.Document) documentView {
	v := documentView{
		DocumentID:     d.ID,
		Title:          d.Title,
		OwnerID:        d.OwnerID,
		Classification: d.Classification,
		ReleasableTo:   d.ReleasableTo,
		EyesOnly:       d.EyesOnly,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
	if v.ReleasableTo == nil {
		v.ReleasableTo = []string{}
	}
	if v.EyesOnly == nil {
		v.EyesOnly = []string{}
	}
	return v
}

func (c DocumentsController) principal(w http.ResponseWriter, r *http.Request) (types.Principal, bool) {
	p, ok := c.Principal(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return types.Principal{}, false
	}
	return p, true
}

func (c DocumentsController) HandleDocumentsAPI(w http.ResponseWriter, r *http.Request) {
	p, ok := c.principal(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		docs, err := c.Documents.ListDocuments(r.Context(), p)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		views := make([]documentView, 0, len(docs))
		for _, d := range docs {
			views = append(views, newDocumentView(d))
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(map[string]any{"documents": views})

	case http.MethodPost:
		var req struct {
			Title          string   `json:"title"`
			Classification string   `json:"classification"`
			ReleasableTo   []string `json:"releasable_to"`
			EyesOnly       []string `json:"eyes_only"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, http.StatusBadRequest, "bad_json", "bad json")
			return
		}

		doc, err := c.Documents.CreateDocument(r.Context(), p, services.DocumentInput{
			Title:          req.Title,
			Classification: req.Classification,
			ReleasableTo:   req.ReleasableTo,
			EyesOnly:       req.EyesOnly,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(newDocumentView(doc))

	default:
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (c DocumentsController) HandleDocumentsGetAPI(w http.ResponseWriter, r *http.Request) {
	p, ok := c.principal(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	documentID := strings.TrimSpace(r.URL.Query().Get("document_id"))
	if documentID == "" {
		writeError(w, r, http.StatusBadRequest, "missing_document_id", "document_id is required")
		return
	}

	doc, err := c.Documents.GetDocument(r.Context(), p, documentID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(newDocumentView(doc))
}
