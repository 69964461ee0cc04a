package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
)

func main() {
	if len(os.Args) < 2 {
		fatalf("usage: dbtool <ensure-schema|docfile-smoke> [args]")
	}

	switch os.Args[1] {
	case "ensure-schema":
		ensureSchemaCmd(os.Args[2:])
	case "docfile-smoke":
		docfileSmoke(os.Args[2:])
	default:
		fatalf("unknown subcommand: %s", os.Args[1])
	}
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
	`CREATE TABLE IF NOT EXISTS docvault.groups (
	  id text PRIMARY KEY,
	  name text NOT NULL,
	  is_default boolean NOT NULL DEFAULT false
	)`,
	`CREATE TABLE IF NOT EXISTS docvault.principals (
	  id text PRIMARY KEY,
	  role_slug text NOT NULL,
	  clearance text NOT NULL,
	  status text NOT NULL DEFAULT 'active'
	)`,
	`CREATE TABLE IF NOT EXISTS docvault.group_members (
	  principal_id text NOT NULL REFERENCES docvault.principals(id),
	  group_id text NOT NULL REFERENCES docvault.groups(id),
	  PRIMARY KEY (principal_id, group_id)
	)`,
	`CREATE TABLE IF NOT EXISTS docvault.audit_events (
	  id bigserial PRIMARY KEY,
	  principal_id text NOT NULL,
	  action text NOT NULL,
	  target_kind text NOT NULL,
	  target_id text NOT NULL,
	  outcome text NOT NULL,
	  reason text NOT NULL DEFAULT '',
	  recorded_at timestamptz NOT NULL
	)`,
}

func ensureSchemaCmd(args []string) {
	ctx, cancel, conn := connect(args, "ensure-schema")
	defer cancel()
	defer conn.Close(context.Background())

	for _, stmt := range schemaStatements {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			fatal(err)
		}
	}
	fmt.Println("[ensure-schema] OK")
}

// docfileSmoke proves the storage semantics the service depends on: the
// tri-state security overrides survive a round trip, a row lock plus decide
// failure leaves the row untouched, and delete removes the row.
func docfileSmoke(args []string) {
	ctx, cancel, conn := connect(args, "docfile-smoke")
	defer cancel()
	defer conn.Close(context.Background())

	for _, stmt := range schemaStatements {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			fatal(err)
		}
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		fatal(err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	docID := "00000000-0000-0000-0000-0000000000d1"
	fileID := "00000000-0000-0000-0000-0000000000f1"
	now := time.Now().UTC()

	if _, err := tx.Exec(ctx, `DELETE FROM docvault.document_files WHERE id = $1`, fileID); err != nil {
		fatal(err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM docvault.documents WHERE id = $1`, docID); err != nil {
		fatal(err)
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO docvault.documents (id, title, classification, releasable_to, eyes_only, created_at, updated_at)
VALUES ($1, 'smoke doc', 'SECRET', '{ops}', '{}', $2, $2)`, docID, now); err != nil {
		fatal(err)
	}

	// Empty-array override must stay distinct from NULL inheritance.
	if _, err := tx.Exec(ctx, `
INSERT INTO docvault.document_files (id, document_id, title, eyes_only_override, created_at, updated_at)
VALUES ($1, $2, 'smoke.pdf', '{}', $3, $3)`, fileID, docID, now); err != nil {
		fatal(err)
	}

	var clsSet, relSet, eyesSet bool
	if err := tx.QueryRow(ctx, `
SELECT classification_override IS NOT NULL, releasable_to_override IS NOT NULL, eyes_only_override IS NOT NULL
FROM docvault.document_files WHERE id = $1 FOR UPDATE`, fileID).Scan(&clsSet, &relSet, &eyesSet); err != nil {
		fatal(err)
	}
	if clsSet || relSet || !eyesSet {
		fatalf("expected only eyes_only_override set, got cls=%v rel=%v eyes=%v", clsSet, relSet, eyesSet)
	}

	if _, err := tx.Exec(ctx, `
UPDATE docvault.document_files
SET classification_override = 'TOP_SECRET', eyes_only_override = NULL, updated_at = $2
WHERE id = $1`, fileID, now.Add(time.Minute)); err != nil {
		fatal(err)
	}
	if err := tx.QueryRow(ctx, `
SELECT classification_override IS NOT NULL, eyes_only_override IS NOT NULL
FROM docvault.document_files WHERE id = $1`, fileID).Scan(&clsSet, &eyesSet); err != nil {
		fatal(err)
	}
	if !clsSet || eyesSet {
		fatalf("expected classification override only after update, got cls=%v eyes=%v", clsSet, eyesSet)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM docvault.document_files WHERE id = $1`, fileID); err != nil {
		fatal(err)
	}
	var remaining int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM docvault.document_files WHERE id = $1`, fileID).Scan(&remaining); err != nil {
		fatal(err)
	}
	if remaining != 0 {
		fatalf("expected file gone after delete, got %d rows", remaining)
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO docvault.audit_events (principal_id, action, target_kind, target_id, outcome, reason, recorded_at)
VALUES ('dbtool', 'edit', 'file', $1, 'allowed', '', $2)`, fileID, now); err != nil {
		fatal(err)
	}

	if err := tx.Commit(ctx); err != nil {
		fatal(err)
	}

	fmt.Println("[docfile-smoke] OK")
}

func connect(args []string, name string) (context.Context, context.CancelFunc, *pgx.Conn) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var url string
	fs.StringVar(&url, "url", "", "postgres connection string")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	if url == "" {
		fatalf("missing --url")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		cancel()
		fatal(err)
	}
	return ctx, cancel, conn
}

func fatal(err error) {
	if err == nil {
		os.Exit(1)
	}
	fatalf("%v", err)
}

func fatalf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
