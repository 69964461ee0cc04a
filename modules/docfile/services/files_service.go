package services

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/meridian-hq/docvault/modules/docfile/domain/ports"
	"github.com/meridian-hq/docvault/modules/docfile/domain/types"
	"github.com/meridian-hq/docvault/pkg/classification"
	"github.com/meridian-hq/docvault/pkg/httperr"
	"github.com/meridian-hq/docvault/pkg/uuidv7"
)

// FileService orchestrates the file lifecycle. Every operation resolves the
// effective profile, gates through the decision engine, and emits the
// outcome to the audit collaborator. On Deny the operation aborts with no
// state change.
type FileService struct {
	store   ports.FileStore
	blobs   ports.BlobStore
	audit   ports.AuditLog
	groups  ports.GroupStore
	lattice classification.Lattice

	NowUTC func() time.Time
	NewID  func() (string, error)
}

func NewFileService(store ports.FileStore, blobs ports.BlobStore, audit ports.AuditLog, groups ports.GroupStore, lattice classification.Lattice) *FileService {
	return &FileService{
		store:   store,
		blobs:   blobs,
		audit:   audit,
		groups:  groups,
		lattice: lattice,
		NowUTC:  func() time.Time { return time.Now().UTC() },
		NewID:   uuidv7.NewString,
	}
}

// snapshot builds the per-request registry view. Decisions made from it are
// pure; a registry change between requests is picked up on the next call.
func (s *FileService) snapshot(ctx context.Context) (GroupSnapshot, ProfileResolver, DecisionEngine, error) {
	snap, err := LoadGroupSnapshot(ctx, s.groups)
	if err != nil {
		return GroupSnapshot{}, ProfileResolver{}, DecisionEngine{}, err
	}
	return snap, NewProfileResolver(s.lattice, snap), NewDecisionEngine(s.lattice, snap), nil
}

func (s *FileService) Get(ctx context.Context, p types.Principal, fileID string) (types.DocumentFile, error) {
	_, resolver, engine, err := s.snapshot(ctx)
	if err != nil {
		return types.DocumentFile{}, err
	}

	file, doc, found, err := s.store.GetFile(ctx, fileID)
	if err != nil {
		return types.DocumentFile{}, err
	}
	if !found {
		return types.DocumentFile{}, httperr.NewNotFound("file not found")
	}

	profile, err := resolver.ResolveProfile(doc, file)
	if err != nil {
		return types.DocumentFile{}, err
	}
	if d := engine.Decide(p, profile, types.ActionView); !d.Allowed {
		s.record(ctx, p, types.ActionView, "file", fileID, d)
		return types.DocumentFile{}, &AccessDeniedError{Action: types.ActionView, Reason: d.Reason}
	}

	s.record(ctx, p, types.ActionView, "file", fileID, types.Allow())
	return file, nil
}

func (s *FileService) Download(ctx context.Context, p types.Principal, fileID string) (types.DocumentFile, io.ReadCloser, error) {
	_, resolver, engine, err := s.snapshot(ctx)
	if err != nil {
		return types.DocumentFile{}, nil, err
	}

	file, doc, found, err := s.store.GetFile(ctx, fileID)
	if err != nil {
		return types.DocumentFile{}, nil, err
	}
	if !found {
		return types.DocumentFile{}, nil, httperr.NewNotFound("file not found")
	}

	profile, err := resolver.ResolveProfile(doc, file)
	if err != nil {
		return types.DocumentFile{}, nil, err
	}
	if d := engine.Decide(p, profile, types.ActionDownload); !d.Allowed {
		s.record(ctx, p, types.ActionDownload, "file", fileID, d)
		return types.DocumentFile{}, nil, denied(engine, p, profile, types.ActionDownload, d)
	}

	rc, err := s.blobs.Open(ctx, file.BlobHandle)
	if err != nil {
		return types.DocumentFile{}, nil, err
	}
	s.record(ctx, p, types.ActionDownload, "file", fileID, types.Allow())
	return file, rc, nil
}

func (s *FileService) Create(ctx context.Context, p types.Principal, documentID string, content []byte, meta types.FileMeta) (types.DocumentFile, error) {
	if len(content) == 0 {
		return types.DocumentFile{}, httperr.NewValidation(map[string]string{"content": "content is required"})
	}

	_, resolver, engine, err := s.snapshot(ctx)
	if err != nil {
		return types.DocumentFile{}, err
	}

	doc, found, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return types.DocumentFile{}, err
	}
	if !found {
		return types.DocumentFile{}, httperr.NewNotFound("document not found")
	}

	// Creating a file is an edit of the parent document.
	profile, err := resolver.ResolveDocumentProfile(doc)
	if err != nil {
		return types.DocumentFile{}, err
	}
	if d := engine.Decide(p, profile, types.ActionEdit); !d.Allowed {
		s.record(ctx, p, types.ActionEdit, "document", documentID, d)
		return types.DocumentFile{}, denied(engine, p, profile, types.ActionEdit, d)
	}

	id, err := s.NewID()
	if err != nil {
		return types.DocumentFile{}, err
	}
	handle, size, err := s.blobs.Store(ctx, bytes.NewReader(content))
	if err != nil {
		return types.DocumentFile{}, err
	}

	now := s.NowUTC()
	file := types.DocumentFile{
		ID:            id,
		DocumentID:    documentID,
		Title:         meta.Title,
		MimeType:      meta.MimeType,
		SourceURL:     meta.SourceURL,
		AutoGenerated: meta.AutoGenerated,
		Metadata:      meta.Metadata,
		Visible:       true,
		Preview:       true,
		BlobHandle:    handle,
		SizeBytes:     size,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.InsertFile(ctx, file); err != nil {
		_ = s.blobs.Delete(ctx, handle)
		return types.DocumentFile{}, err
	}

	s.record(ctx, p, types.ActionEdit, "file", id, types.Allow())
	return file, nil
}

func (s *FileService) Update(ctx context.Context, p types.Principal, fileID string, patch types.FilePatch) (types.DocumentFile, error) {
	snap, resolver, engine, err := s.snapshot(ctx)
	if err != nil {
		return types.DocumentFile{}, err
	}

	updated, found, err := s.store.UpdateFile(ctx, fileID, func(file types.DocumentFile, doc types.Document) (types.DocumentFile, error) {
		// Rights are checked against the current, pre-patch profile: a
		// permitted edit must not be usable to escalate the editor's own
		// future visibility.
		profile, err := resolver.ResolveProfile(doc, file)
		if err != nil {
			return file, err
		}
		if d := engine.Decide(p, profile, types.ActionEdit); !d.Allowed {
			return file, denied(engine, p, profile, types.ActionEdit, d)
		}
		next, err := applyPatch(s.lattice, snap, file, patch)
		if err != nil {
			return file, err
		}
		next.UpdatedAt = s.NowUTC()
		return next, nil
	})
	if err != nil {
		if de, ok := asType[*AccessDeniedError](err); ok {
			s.record(ctx, p, types.ActionEdit, "file", fileID, types.Deny(de.Reason))
		}
		return types.DocumentFile{}, err
	}
	if !found {
		return types.DocumentFile{}, httperr.NewNotFound("file not found")
	}

	s.record(ctx, p, types.ActionEdit, "file", fileID, types.Allow())
	return updated, nil
}

func (s *FileService) Delete(ctx context.Context, p types.Principal, fileID string) error {
	_, resolver, engine, err := s.snapshot(ctx)
	if err != nil {
		return err
	}

	deleted, found, err := s.store.DeleteFile(ctx, fileID, func(file types.DocumentFile, doc types.Document) error {
		profile, err := resolver.ResolveProfile(doc, file)
		if err != nil {
			return err
		}
		if d := engine.Decide(p, profile, types.ActionDelete); !d.Allowed {
			return denied(engine, p, profile, types.ActionDelete, d)
		}
		return nil
	})
	if err != nil {
		if de, ok := asType[*AccessDeniedError](err); ok {
			s.record(ctx, p, types.ActionDelete, "file", fileID, types.Deny(de.Reason))
		}
		return err
	}
	if !found {
		return httperr.NewNotFound("file not found")
	}

	// The record is gone; a blob deletion failure now is a divergence the
	// caller must see, not a silent leak.
	if deleted.BlobHandle != "" {
		if err := s.blobs.Delete(ctx, deleted.BlobHandle); err != nil {
			s.recordError(ctx, p, types.ActionDelete, "file", fileID, "STORAGE_INCONSISTENCY")
			return &StorageInconsistencyError{FileID: fileID, BlobHandle: deleted.BlobHandle, Err: err}
		}
	}

	s.record(ctx, p, types.ActionDelete, "file", fileID, types.Allow())
	return nil
}

func (s *FileService) ListForDocument(ctx context.Context, p types.Principal, documentID string) ([]types.DocumentFile, error) {
	_, resolver, engine, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	doc, found, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, httperr.NewNotFound("document not found")
	}

	docProfile, err := resolver.ResolveDocumentProfile(doc)
	if err != nil {
		return nil, err
	}
	if d := engine.Decide(p, docProfile, types.ActionView); !d.Allowed {
		s.record(ctx, p, types.ActionView, "document", documentID, d)
		return nil, &AccessDeniedError{Action: types.ActionView, Reason: d.Reason}
	}

	files, err := s.store.ListFilesForDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	visible := make([]types.DocumentFile, 0, len(files))
	for _, f := range files {
		profile, err := resolver.ResolveProfile(doc, f)
		if err != nil {
			return nil, err
		}
		if d := engine.Decide(p, profile, types.ActionView); !d.Allowed {
			continue
		}
		visible = append(visible, f)
	}
	return visible, nil
}

// applyPatch builds the next row version. Override patches are validated
// against the registry and pre-filtered of default groups here, at
// assignment time, so the stored value is exactly the filtered intent.
func applyPatch(lattice classification.Lattice, snap GroupSnapshot, file types.DocumentFile, patch types.FilePatch) (types.DocumentFile, error) {
	next := file

	if patch.Title != nil {
		next.Title = *patch.Title
	}
	if patch.MimeType != nil {
		next.MimeType = *patch.MimeType
	}
	if patch.SourceURL != nil {
		next.SourceURL = *patch.SourceURL
	}
	if patch.Visible != nil {
		next.Visible = *patch.Visible
	}
	if patch.Preview != nil {
		next.Preview = *patch.Preview
	}
	if patch.Metadata != nil {
		next.Metadata = patch.Metadata
	}

	if patch.Classification != nil {
		if v, ok := patch.Classification.Get(); ok {
			level, known := lattice.LevelByName(v)
			if !known {
				return file, httperr.NewValidation(map[string]string{"classification": "unknown classification level"})
			}
			next.Classification = types.Overridden(level.Name)
		} else {
			next.Classification = types.Inherited[string]()
		}
	}

	if patch.ReleasableTo != nil {
		if v, ok := patch.ReleasableTo.Get(); ok {
			if err := validateRefs(snap, "releasable_to", v); err != nil {
				return file, err
			}
			next.ReleasableTo = types.Overridden(snap.StripDefaults(v))
		} else {
			next.ReleasableTo = types.Inherited[[]string]()
		}
	}

	if patch.EyesOnly != nil {
		if v, ok := patch.EyesOnly.Get(); ok {
			if err := validateRefs(snap, "eyes_only", v); err != nil {
				return file, err
			}
			next.EyesOnly = types.Overridden(v)
		} else {
			next.EyesOnly = types.Inherited[[]string]()
		}
	}

	return next, nil
}

// denied builds the error for a non-View denial, probing View on the same
// profile so the surface can answer with absence when the caller could not
// see the target at all.
func denied(engine DecisionEngine, p types.Principal, profile types.SecurityProfile, action types.Action, d types.Decision) *AccessDeniedError {
	return &AccessDeniedError{
		Action:     action,
		Reason:     d.Reason,
		ViewDenied: !engine.Decide(p, profile, types.ActionView).Allowed,
	}
}

func validateRefs(snap GroupSnapshot, field string, ids []string) error {
	for _, id := range ids {
		if _, ok := snap.Get(id); !ok {
			return &InvalidGroupReferenceError{Field: field, GroupID: id}
		}
	}
	return nil
}

func (s *FileService) record(ctx context.Context, p types.Principal, action types.Action, kind string, targetID string, d types.Decision) {
	outcome := types.AuditOutcomeAllowed
	if !d.Allowed {
		outcome = types.AuditOutcomeDenied
	}
	s.audit.Record(ctx, types.AuditEvent{
		PrincipalID: p.ID,
		Action:      action,
		TargetKind:  kind,
		TargetID:    targetID,
		Outcome:     outcome,
		Reason:      string(d.Reason),
		At:          s.NowUTC(),
	})
}

func (s *FileService) recordError(ctx context.Context, p types.Principal, action types.Action, kind string, targetID string, reason string) {
	s.audit.Record(ctx, types.AuditEvent{
		PrincipalID: p.ID,
		Action:      action,
		TargetKind:  kind,
		TargetID:    targetID,
		Outcome:     types.AuditOutcomeError,
		Reason:      reason,
		At:          s.NowUTC(),
	})
}
