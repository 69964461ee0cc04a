package persistence

import (
	"context"
	"log"

	"github.com/meridian-hq/docvault/modules/docfile/domain/ports"
	"github.com/meridian-hq/docvault/modules/docfile/domain/types"
)

// AuditPGStore appends decision outcomes to docvault.audit_events. Failures
// are logged and swallowed; the audit trail never fails the operation it
// records.
type AuditPGStore struct {
	pool pgBeginner
}

func NewAuditPGStore(pool pgBeginner) *AuditPGStore {
	return &AuditPGStore{pool: pool}
}

var _ ports.AuditLog = (*AuditPGStore)(nil)

func (s *AuditPGStore) Record(ctx context.Context, ev types.AuditEvent) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		log.Printf("audit: begin: %v", err)
		return
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `
	INSERT INTO docvault.audit_events
	  (principal_id, action, target_kind, target_id, outcome, reason, at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, ev.PrincipalID, string(ev.Action), ev.TargetKind, ev.TargetID, ev.Outcome, ev.Reason, ev.At); err != nil {
		log.Printf("audit: insert: %v", err)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		log.Printf("audit: commit: %v", err)
	}
}
