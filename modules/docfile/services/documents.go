package services

import (
	"context"
	"strings"

	"github.com/meridian-hq/docvault/modules/docfile/domain/types"
	"github.com/meridian-hq/docvault/pkg/httperr"
)

type DocumentInput struct {
	Title          string
	Classification string
	ReleasableTo   []string
	EyesOnly       []string
}

func (s *FileService) CreateDocument(ctx context.Context, p types.Principal, in DocumentInput) (types.Document, error) {
	snap, _, _, err := s.snapshot(ctx)
	if err != nil {
		return types.Document{}, err
	}

	fields := map[string]string{}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		fields["title"] = "title is required"
	}
	level, known := s.lattice.LevelByName(in.Classification)
	if !known {
		fields["classification"] = "unknown classification level"
	}
	if len(fields) > 0 {
		return types.Document{}, httperr.NewValidation(fields)
	}
	if err := validateRefs(snap, "releasable_to", in.ReleasableTo); err != nil {
		return types.Document{}, err
	}
	if err := validateRefs(snap, "eyes_only", in.EyesOnly); err != nil {
		return types.Document{}, err
	}

	id, err := s.NewID()
	if err != nil {
		return types.Document{}, err
	}
	now := s.NowUTC()
	doc := types.Document{
		ID:             id,
		Title:          in.Title,
		OwnerID:        p.ID,
		Classification: level.Name,
		ReleasableTo:   snap.StripDefaults(in.ReleasableTo),
		EyesOnly:       in.EyesOnly,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.InsertDocument(ctx, doc); err != nil {
		return types.Document{}, err
	}
	s.record(ctx, p, types.ActionEdit, "document", id, types.Allow())
	return doc, nil
}

func (s *FileService) GetDocument(ctx context.Context, p types.Principal, documentID string) (types.Document, error) {
	_, resolver, engine, err := s.snapshot(ctx)
	if err != nil {
		return types.Document{}, err
	}

	doc, found, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return types.Document{}, err
	}
	if !found {
		return types.Document{}, httperr.NewNotFound("document not found")
	}

	profile, err := resolver.ResolveDocumentProfile(doc)
	if err != nil {
		return types.Document{}, err
	}
	if d := engine.Decide(p, profile, types.ActionView); !d.Allowed {
		s.record(ctx, p, types.ActionView, "document", documentID, d)
		return types.Document{}, &AccessDeniedError{Action: types.ActionView, Reason: d.Reason}
	}

	s.record(ctx, p, types.ActionView, "document", documentID, types.Allow())
	return doc, nil
}

// ListDocuments returns the documents the principal may view; denied ones
// are omitted rather than erroring, so a mixed corpus stays listable.
func (s *FileService) ListDocuments(ctx context.Context, p types.Principal) ([]types.Document, error) {
	_, resolver, engine, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	docs, err := s.store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	visible := make([]types.Document, 0, len(docs))
	for _, doc := range docs {
		profile, err := resolver.ResolveDocumentProfile(doc)
		if err != nil {
			return nil, err
		}
		if d := engine.Decide(p, profile, types.ActionView); !d.Allowed {
			continue
		}
		visible = append(visible, doc)
	}
	return visible, nil
}
