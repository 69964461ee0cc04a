package ports

import (
	"context"

	"github.com/meridian-hq/docvault/modules/docfile/domain/types"
)

// FileStore is the persistence collaborator. Update and Delete run their
// decide callback inside one transaction with the file row locked, so the
// access check and the write see the same row version and concurrent edits
// to one file are serialized.
type FileStore interface {
	GetDocument(ctx context.Context, documentID string) (types.Document, bool, error)
	InsertDocument(ctx context.Context, doc types.Document) error
	ListDocuments(ctx context.Context) ([]types.Document, error)

	GetFile(ctx context.Context, fileID string) (types.DocumentFile, types.Document, bool, error)
	ListFilesForDocument(ctx context.Context, documentID string) ([]types.DocumentFile, error)
	InsertFile(ctx context.Context, file types.DocumentFile) error
	UpdateFile(ctx context.Context, fileID string, decide func(file types.DocumentFile, doc types.Document) (types.DocumentFile, error)) (types.DocumentFile, bool, error)
	DeleteFile(ctx context.Context, fileID string, decide func(file types.DocumentFile, doc types.Document) error) (types.DocumentFile, bool, error)
}
