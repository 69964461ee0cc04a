package ports

import (
	"context"

	"github.com/meridian-hq/docvault/modules/docfile/domain/types"
)

// AuditLog accepts decision outcomes. Fire-and-forget: implementations must
// not fail the guarded operation.
type AuditLog interface {
	Record(ctx context.Context, ev types.AuditEvent)
}
