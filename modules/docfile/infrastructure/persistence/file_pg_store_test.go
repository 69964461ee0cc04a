package persistence

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meridian-hq/docvault/modules/docfile/domain/types"
	"github.com/meridian-hq/docvault/pkg/uuidv7"
)

func connectTestPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DOCVAULT_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("DOCVAULT_TEST_DATABASE_URL not set")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgxpool: %v", err)
	}
	t.Cleanup(pool.Close)

	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("schema: %v", err)
		}
	}
	return pool
}

var schemaStatements = []string{
	`CREATE SCHEMA IF NOT EXISTS docvault`,
	`CREATE TABLE IF NOT EXISTS docvault.documents (
	  id uuid PRIMARY KEY,
	  title text NOT NULL,
	  owner_id uuid,
	  classification text NOT NULL,
	  releasable_to text[] NOT NULL DEFAULT '{}',
	  eyes_only text[] NOT NULL DEFAULT '{}',
	  created_at timestamptz NOT NULL,
	  updated_at timestamptz NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS docvault.document_files (
	  id uuid PRIMARY KEY,
	  document_id uuid NOT NULL REFERENCES docvault.documents(id),
	  title text NOT NULL DEFAULT '',
	  mime_type text NOT NULL DEFAULT '',
	  source_url text NOT NULL DEFAULT '',
	  visible boolean NOT NULL DEFAULT true,
	  preview boolean NOT NULL DEFAULT true,
	  auto_generated boolean NOT NULL DEFAULT false,
	  metadata jsonb NOT NULL DEFAULT '{}',
	  blob_handle text NOT NULL DEFAULT '',
	  size_bytes bigint NOT NULL DEFAULT 0,
	  classification_override text,
	  releasable_to_override text[],
	  eyes_only_override text[],
	  created_at timestamptz NOT NULL,
	  updated_at timestamptz NOT NULL
	)`,
}

func newID(t *testing.T) string {
	t.Helper()
	id, err := uuidv7.NewString()
	if err != nil {
		t.Fatalf("uuid: %v", err)
	}
	return id
}

func TestFilePGStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	pool := connectTestPool(ctx, t)
	store := NewFilePGStore(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	docID := newID(t)
	if err := store.InsertDocument(ctx, types.Document{
		ID:             docID,
		Title:          "integration doc",
		OwnerID:        newID(t),
		Classification: "SECRET",
		ReleasableTo:   []string{"g1"},
		EyesOnly:       []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}); err != nil {
		t.Fatalf("insert document: %v", err)
	}

	fileID := newID(t)
	if err := store.InsertFile(ctx, types.DocumentFile{
		ID:         fileID,
		DocumentID: docID,
		Title:      "annex.pdf",
		Visible:    true,
		Preview:    true,
		Metadata:   map[string]string{"source": "scanner"},
		BlobHandle: "blob-1",
		SizeBytes:  42,
		EyesOnly:   types.Overridden([]string{}),
		CreatedAt:  now,
		UpdatedAt:  now,
	}); err != nil {
		t.Fatalf("insert file: %v", err)
	}

	file, doc, found, err := store.GetFile(ctx, fileID)
	if err != nil || !found {
		t.Fatalf("get: found=%v err=%v", found, err)
	}
	if doc.ID != docID || file.Title != "annex.pdf" || file.Metadata["source"] != "scanner" {
		t.Fatalf("file=%+v doc=%+v", file, doc)
	}
	// Empty override round-trips as an override, not as inheritance.
	if v, ok := file.EyesOnly.Get(); !ok || len(v) != 0 {
		t.Fatalf("eyes-only=%+v", file.EyesOnly)
	}
	if file.Classification.IsSet() || file.ReleasableTo.IsSet() {
		t.Fatalf("unexpected overrides: %+v", file)
	}

	updated, found, err := store.UpdateFile(ctx, fileID, func(f types.DocumentFile, d types.Document) (types.DocumentFile, error) {
		if d.ID != docID {
			t.Fatalf("callback doc=%+v", d)
		}
		f.Title = "annex-v2.pdf"
		f.Classification = types.Overridden("TOP_SECRET")
		f.EyesOnly = types.Inherited[[]string]()
		f.UpdatedAt = now.Add(time.Minute)
		return f, nil
	})
	if err != nil || !found {
		t.Fatalf("update: found=%v err=%v", found, err)
	}
	if v, ok := updated.Classification.Get(); !ok || v != "TOP_SECRET" {
		t.Fatalf("updated=%+v", updated)
	}

	file, _, _, err = store.GetFile(ctx, fileID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if file.Title != "annex-v2.pdf" || file.EyesOnly.IsSet() {
		t.Fatalf("file=%+v", file)
	}

	// A decide error aborts the write.
	boom := errors.New("boom")
	_, found, err = store.UpdateFile(ctx, fileID, func(f types.DocumentFile, _ types.Document) (types.DocumentFile, error) {
		return f, boom
	})
	if !found || !errors.Is(err, boom) {
		t.Fatalf("found=%v err=%v", found, err)
	}

	deleted, found, err := store.DeleteFile(ctx, fileID, func(types.DocumentFile, types.Document) error { return nil })
	if err != nil || !found {
		t.Fatalf("delete: found=%v err=%v", found, err)
	}
	if deleted.BlobHandle != "blob-1" {
		t.Fatalf("deleted=%+v", deleted)
	}
	if _, _, found, _ := store.GetFile(ctx, fileID); found {
		t.Fatalf("file still present")
	}

	if _, _, found, err := store.GetFile(ctx, newID(t)); err != nil || found {
		t.Fatalf("found=%v err=%v", found, err)
	}
}
