package server

import (
	"context"
	"log"

	"github.com/meridian-hq/docvault/modules/docfile/domain/ports"
	"github.com/meridian-hq/docvault/modules/docfile/domain/types"
)

// logAuditLog writes decision outcomes to the process log. Fallback when no
// Postgres-backed trail is configured.
type logAuditLog struct{}

var _ ports.AuditLog = logAuditLog{}

func (logAuditLog) Record(_ context.Context, ev types.AuditEvent) {
	log.Printf("audit principal=%s action=%s target=%s/%s outcome=%s reason=%s",
		ev.PrincipalID, ev.Action, ev.TargetKind, ev.TargetID, ev.Outcome, ev.Reason)
}
