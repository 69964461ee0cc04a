package controllers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/meridian-hq/docvault/modules/docfile/domain/types"
)

type PrincipalGetter func(ctx context.Context) (types.Principal, bool)

type FilesService interface {
	Get(ctx context.Context, p types.Principal, fileID string) (types.DocumentFile, error)
	Download(ctx context.Context, p types.Principal, fileID string) (types.DocumentFile, io.ReadCloser, error)
	Create(ctx context.Context, p types.Principal, documentID string, content []byte, meta types.FileMeta) (types.DocumentFile, error)
	Update(ctx context.Context, p types.Principal, fileID string, patch types.FilePatch) (types.DocumentFile, error)
	Delete(ctx context.Context, p types.Principal, fileID string) error
	ListForDocument(ctx context.Context, p types.Principal, documentID string) ([]types.DocumentFile, error)
}

type FilesController struct {
	Principal PrincipalGetter
	Files     FilesService
}

type fileView struct {
	FileID        string            `json:"file_id"`
	DocumentID    string            `json:"document_id"`
	Title         string            `json:"title"`
	MimeType      string            `json:"mime_type"`
	SourceURL     string            `json:"source_url,omitempty"`
	Visible       bool              `json:"visible"`
	Preview       bool              `json:"preview"`
	AutoGenerated bool              `json:"auto_generated"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	SizeBytes     int64             `json:"size_bytes"`

	// Inherited security fields are omitted; present fields are overrides,
	// an empty list being an override that clears the restriction.
	Classification *string   `json:"classification,omitempty"`
	ReleasableTo   *[]string `json:"releasable_to,omitempty"`
	EyesOnly       *[]string `json:"eyes_only,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newFileView(f types.DocumentFile) fileView {
	v := fileView{
		FileID:        f.ID,
		DocumentID:    f.DocumentID,
		Title:         f.Title,
		MimeType:      f.MimeType,
		SourceURL:     f.SourceURL,
		Visible:       f.Visible,
		Preview:       f.Preview,
		AutoGenerated: f.AutoGenerated,
		Metadata:      f.Metadata,
		SizeBytes:     f.SizeBytes,
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
	}
	if cls, ok := f.Classification.Get(); ok {
		v.Classification = &cls
	}
	if rel, ok := f.ReleasableTo.Get(); ok {
		if rel == nil {
			rel = []string{}
		}
		v.ReleasableTo = &rel
	}
	if eyes, ok := f.EyesOnly.Get(); ok {
		if eyes == nil {
			eyes = []string{}
		}
		v.EyesOnly = &eyes
	}
	return v
}

func (c FilesController) principal(w http.ResponseWriter, r *http.Request) (types.Principal, bool) {
	p, ok := c.Principal(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return types.Principal{}, false
	}
	return p, true
}

type filesCreateRequest struct {
	DocumentID    string            `json:"document_id"`
	Title         string            `json:"title"`
	MimeType      string            `json:"mime_type"`
	SourceURL     string            `json:"source_url"`
	AutoGenerated bool              `json:"auto_generated"`
	Metadata      map[string]string `json:"metadata"`
	ContentBase64 string            `json:"content_base64"`
}

func (c FilesController) HandleFilesAPI(w http.ResponseWriter, r *http.Request) {
	p, ok := c.principal(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		fileID := strings.TrimSpace(r.URL.Query().Get("file_id"))
		if fileID == "" {
			writeError(w, r, http.StatusBadRequest, "missing_file_id", "file_id is required")
			return
		}
		file, err := c.Files.Get(r.Context(), p, fileID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(newFileView(file))

	case http.MethodPost:
		var req filesCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, http.StatusBadRequest, "bad_json", "bad json")
			return
		}
		req.DocumentID = strings.TrimSpace(req.DocumentID)
		if req.DocumentID == "" {
			writeError(w, r, http.StatusBadRequest, "missing_document_id", "document_id is required")
			return
		}
		content, err := base64.StdEncoding.DecodeString(req.ContentBase64)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_content", "content_base64 is not valid base64")
			return
		}

		file, err := c.Files.Create(r.Context(), p, req.DocumentID, content, types.FileMeta{
			Title:         strings.TrimSpace(req.Title),
			MimeType:      strings.TrimSpace(req.MimeType),
			SourceURL:     strings.TrimSpace(req.SourceURL),
			AutoGenerated: req.AutoGenerated,
			Metadata:      req.Metadata,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(newFileView(file))

	default:
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (c FilesController) HandleFilesDownloadAPI(w http.ResponseWriter, r *http.Request) {
	p, ok := c.principal(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	fileID := strings.TrimSpace(r.URL.Query().Get("file_id"))
	if fileID == "" {
		writeError(w, r, http.StatusBadRequest, "missing_file_id", "file_id is required")
		return
	}

	file, rc, err := c.Files.Download(r.Context(), p, fileID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	defer func() { _ = rc.Close() }()

	contentType := file.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if file.Title != "" {
		w.Header().Set("Content-Disposition", `attachment; filename="`+strings.ReplaceAll(file.Title, `"`, "")+`"`)
	}
	_, _ = io.Copy(w, rc)
}

func (c FilesController) HandleFilesListAPI(w http.ResponseWriter, r *http.Request) {
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

	files, err := c.Files.ListForDocument(r.Context(), p, documentID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	views := make([]fileView, 0, len(files))
	for _, f := range files {
		views = append(views, newFileView(f))
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"document_id": documentID,
		"files":       views,
	})
}

func (c FilesController) HandleFilesUpdateAPI(w http.ResponseWriter, r *http.Request) {
	p, ok := c.principal(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}

	var req struct {
		FileID    string            `json:"file_id"`
		Title     *string           `json:"title"`
		MimeType  *string           `json:"mime_type"`
		SourceURL *string           `json:"source_url"`
		Visible   *bool             `json:"visible"`
		Preview   *bool             `json:"preview"`
		Metadata  map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	req.FileID = strings.TrimSpace(req.FileID)
	if req.FileID == "" {
		writeError(w, r, http.StatusBadRequest, "missing_file_id", "file_id is required")
		return
	}

	patch := types.FilePatch{
		Title:     req.Title,
		MimeType:  req.MimeType,
		SourceURL: req.SourceURL,
		Visible:   req.Visible,
		Preview:   req.Preview,
		Metadata:  req.Metadata,
	}

	// A present security key is an override change: null switches the field
	// back to inheriting from the document, a value sets an explicit override.
	if cls, present := raw["classification"]; present {
		o, err := decodeStringOverride(cls)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_classification", "classification must be a string or null")
			return
		}
		patch.Classification = &o
	}
	if rel, present := raw["releasable_to"]; present {
		o, err := decodeGroupListOverride(rel)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_releasable_to", "releasable_to must be a string list or null")
			return
		}
		patch.ReleasableTo = &o
	}
	if eyes, present := raw["eyes_only"]; present {
		o, err := decodeGroupListOverride(eyes)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_eyes_only", "eyes_only must be a string list or null")
			return
		}
		patch.EyesOnly = &o
	}

	file, err := c.Files.Update(r.Context(), p, req.FileID, patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(newFileView(file))
}

func (c FilesController) HandleFilesDeleteAPI(w http.ResponseWriter, r *http.Request) {
	p, ok := c.principal(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var req struct {
		FileID string `json:"file_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	req.FileID = strings.TrimSpace(req.FileID)
	if req.FileID == "" {
		writeError(w, r, http.StatusBadRequest, "missing_file_id", "file_id is required")
		return
	}

	if err := c.Files.Delete(r.Context(), p, req.FileID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeStringOverride(raw json.RawMessage) (types.Override[string], error) {
	if string(raw) == "null" {
		return types.Inherited[string](), nil
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return types.Override[string]{}, err
	}
	return types.Overridden(v), nil
}

func decodeGroupListOverride(raw json.RawMessage) (types.Override[[]string], error) {
	if string(raw) == "null" {
		return types.Inherited[[]string](), nil
	}
	var v []string
	if err := json.Unmarshal(raw, &v); err != nil {
		return types.Override[[]string]{}, err
	}
	if v == nil {
		v = []string{}
	}
	return types.Overridden(v), nil
}
