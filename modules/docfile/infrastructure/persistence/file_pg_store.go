package persistence

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/meridian-hq/docvault/modules/docfile/domain/ports"
	"github.com/meridian-hq/docvault/modules/docfile/domain/types"
)

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// FilePGStore keeps documents and file rows in Postgres. Update and Delete
// run their decide callback inside the transaction with the row locked, so
// the profile the callback judges is the row version the write replaces.
type FilePGStore struct {
	pool pgBeginner
}

func NewFilePGStore(pool pgBeginner) ports.FileStore {
	return &FilePGStore{pool: pool}
}

const fileColumns = `
  id::text,
  document_id::text,
  title,
  mime_type,
  source_url,
  visible,
  preview,
  auto_generated,
  metadata,
  blob_handle,
  size_bytes,
  classification_override,
  releasable_to_override,
  releasable_to_override IS NOT NULL,
  eyes_only_override,
  eyes_only_override IS NOT NULL,
  created_at,
  updated_at`

const documentColumns = `
  id::text,
  title,
  owner_id::text,
  classification,
  releasable_to,
  eyes_only,
  created_at,
  updated_at`

func scanDocument(row pgx.Row) (types.Document, error) {
	var d types.Document
	err := row.Scan(&d.ID, &d.Title, &d.OwnerID, &d.Classification, &d.ReleasableTo, &d.EyesOnly, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func scanFile(row pgx.Row) (types.DocumentFile, error) {
	var f types.DocumentFile
	var metadata []byte
	var cls *string
	var rel, eyes []string
	var relSet, eyesSet bool
	err := row.Scan(
		&f.ID, &f.DocumentID, &f.Title, &f.MimeType, &f.SourceURL,
		&f.Visible, &f.Preview, &f.AutoGenerated, &metadata,
		&f.BlobHandle, &f.SizeBytes,
		&cls, &rel, &relSet, &eyes, &eyesSet,
		&f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return types.DocumentFile{}, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &f.Metadata); err != nil {
			return types.DocumentFile{}, err
		}
	}
	if cls != nil {
		f.Classification = types.Overridden(*cls)
	}
	if relSet {
		if rel == nil {
			rel = []string{}
		}
		f.ReleasableTo = types.Overridden(rel)
	}
	if eyesSet {
		if eyes == nil {
			eyes = []string{}
		}
		f.EyesOnly = types.Overridden(eyes)
	}
	return f, nil
}

func overrideColumns(f types.DocumentFile) (cls *string, rel []string, relSet bool, eyes []string, eyesSet bool) {
	if v, ok := f.Classification.Get(); ok {
		cls = &v
	}
	if v, ok := f.ReleasableTo.Get(); ok {
		if v == nil {
			v = []string{}
		}
		rel, relSet = v, true
	}
	if v, ok := f.EyesOnly.Get(); ok {
		if v == nil {
			v = []string{}
		}
		eyes, eyesSet = v, true
	}
	return
}

func metadataJSON(m map[string]string) ([]byte, error) {
	if m == nil {
		return []byte(`{}`), nil
	}
	return json.Marshal(m)
}

func (s *FilePGStore) GetDocument(ctx context.Context, documentID string) (types.Document, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.Document{}, false, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	doc, err := scanDocument(tx.QueryRow(ctx, `
	SELECT `+documentColumns+`
	FROM docvault.documents
	WHERE id = $1::uuid
	`, documentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Document{}, false, nil
		}
		return types.Document{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.Document{}, false, err
	}
	return doc, true, nil
}

func (s *FilePGStore) InsertDocument(ctx context.Context, doc types.Document) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `
	INSERT INTO docvault.documents
	  (id, title, owner_id, classification, releasable_to, eyes_only, created_at, updated_at)
	VALUES ($1::uuid, $2, $3::uuid, $4, $5, $6, $7, $8)
	`, doc.ID, doc.Title, doc.OwnerID, doc.Classification, doc.ReleasableTo, doc.EyesOnly, doc.CreatedAt, doc.UpdatedAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *FilePGStore) ListDocuments(ctx context.Context) ([]types.Document, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
	SELECT `+documentColumns+`
	FROM docvault.documents
	ORDER BY created_at DESC, id::text ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *FilePGStore) GetFile(ctx context.Context, fileID string) (types.DocumentFile, types.Document, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.DocumentFile{}, types.Document{}, false, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	file, doc, found, err := getFileTx(ctx, tx, fileID, false)
	if err != nil || !found {
		return types.DocumentFile{}, types.Document{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.DocumentFile{}, types.Document{}, false, err
	}
	return file, doc, true, nil
}

func getFileTx(ctx context.Context, tx pgx.Tx, fileID string, lock bool) (types.DocumentFile, types.Document, bool, error) {
	q := `
	SELECT ` + fileColumns + `
	FROM docvault.document_files
	WHERE id = $1::uuid`
	if lock {
		q += `
	FOR UPDATE`
	}
	file, err := scanFile(tx.QueryRow(ctx, q, fileID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.DocumentFile{}, types.Document{}, false, nil
		}
		return types.DocumentFile{}, types.Document{}, false, err
	}

	doc, err := scanDocument(tx.QueryRow(ctx, `
	SELECT `+documentColumns+`
	FROM docvault.documents
	WHERE id = $1::uuid
	`, file.DocumentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.DocumentFile{}, types.Document{}, false, nil
		}
		return types.DocumentFile{}, types.Document{}, false, err
	}
	return file, doc, true, nil
}

func (s *FilePGStore) ListFilesForDocument(ctx context.Context, documentID string) ([]types.DocumentFile, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
	SELECT `+fileColumns+`
	FROM docvault.document_files
	WHERE document_id = $1::uuid
	ORDER BY created_at ASC, id::text ASC
	`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.DocumentFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *FilePGStore) InsertFile(ctx context.Context, file types.DocumentFile) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	metadata, err := metadataJSON(file.Metadata)
	if err != nil {
		return err
	}
	cls, rel, relSet, eyes, eyesSet := overrideColumns(file)

	if _, err := tx.Exec(ctx, `
	INSERT INTO docvault.document_files
	  (id, document_id, title, mime_type, source_url, visible, preview, auto_generated,
	   metadata, blob_handle, size_bytes,
	   classification_override, releasable_to_override, eyes_only_override,
	   created_at, updated_at)
	VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6, $7, $8,
	        $9::jsonb, $10, $11,
	        $12, CASE WHEN $14::bool THEN $13::text[] ELSE NULL END, CASE WHEN $16::bool THEN $15::text[] ELSE NULL END,
	        $17, $18)
	`, file.ID, file.DocumentID, file.Title, file.MimeType, file.SourceURL,
		file.Visible, file.Preview, file.AutoGenerated,
		metadata, file.BlobHandle, file.SizeBytes,
		cls, rel, relSet, eyes, eyesSet,
		file.CreatedAt, file.UpdatedAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *FilePGStore) UpdateFile(ctx context.Context, fileID string, decide func(types.DocumentFile, types.Document) (types.DocumentFile, error)) (types.DocumentFile, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.DocumentFile{}, false, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	file, doc, found, err := getFileTx(ctx, tx, fileID, true)
	if err != nil || !found {
		return types.DocumentFile{}, false, err
	}

	next, err := decide(file, doc)
	if err != nil {
		return types.DocumentFile{}, true, err
	}

	metadata, err := metadataJSON(next.Metadata)
	if err != nil {
		return types.DocumentFile{}, true, err
	}
	cls, rel, relSet, eyes, eyesSet := overrideColumns(next)

	if _, err := tx.Exec(ctx, `
	UPDATE docvault.document_files SET
	  title = $2,
	  mime_type = $3,
	  source_url = $4,
	  visible = $5,
	  preview = $6,
	  metadata = $7::jsonb,
	  classification_override = $8,
	  releasable_to_override = CASE WHEN $10::bool THEN $9::text[] ELSE NULL END,
	  eyes_only_override = CASE WHEN $12::bool THEN $11::text[] ELSE NULL END,
	  updated_at = $13
	WHERE id = $1::uuid
	`, fileID, next.Title, next.MimeType, next.SourceURL, next.Visible, next.Preview,
		metadata, cls, rel, relSet, eyes, eyesSet, next.UpdatedAt); err != nil {
		return types.DocumentFile{}, true, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.DocumentFile{}, true, err
	}
	return next, true, nil
}

func (s *FilePGStore) DeleteFile(ctx context.Context, fileID string, decide func(types.DocumentFile, types.Document) error) (types.DocumentFile, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.DocumentFile{}, false, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	file, doc, found, err := getFileTx(ctx, tx, fileID, true)
	if err != nil || !found {
		return types.DocumentFile{}, false, err
	}

	if err := decide(file, doc); err != nil {
		return types.DocumentFile{}, true, err
	}

	if _, err := tx.Exec(ctx, `
	DELETE FROM docvault.document_files
	WHERE id = $1::uuid
	`, fileID); err != nil {
		return types.DocumentFile{}, true, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.DocumentFile{}, true, err
	}
	return file, true, nil
}
