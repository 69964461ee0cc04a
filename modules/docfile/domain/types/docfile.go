package types

import (
	"time"

	"github.com/meridian-hq/docvault/pkg/classification"
)

type Action string

const (
	ActionView     Action = "view"
	ActionDownload Action = "download"
	ActionEdit     Action = "edit"
	ActionDelete   Action = "delete"
)

func ParseAction(raw string) (Action, bool) {
	switch Action(raw) {
	case ActionView, ActionDownload, ActionEdit, ActionDelete:
		return Action(raw), true
	default:
		return "", false
	}
}

type DenyReason string

const (
	DenyInsufficientClearance DenyReason = "INSUFFICIENT_CLEARANCE"
	DenyNotReleasable         DenyReason = "NOT_RELEASABLE"
	DenyEyesOnlyRestricted    DenyReason = "EYES_ONLY_RESTRICTED"
)

// Decision is the outcome of one access check. It is a pure value: the
// engine recomputes it on every attempt and never caches it.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

func Allow() Decision {
	return Decision{Allowed: true}
}

func Deny(reason DenyReason) Decision {
	return Decision{Allowed: false, Reason: reason}
}

type Group struct {
	ID        string
	Name      string
	IsDefault bool
}

// Principal is an immutable view of the caller for the duration of one
// access decision: identity, clearance, and resolved group memberships.
type Principal struct {
	ID        string
	RoleSlug  string
	Clearance classification.Level
	Groups    []string
}

func (p Principal) InGroup(groupID string) bool {
	for _, g := range p.Groups {
		if g == groupID {
			return true
		}
	}
	return false
}

// SecurityProfile is the resolved classification/releasable-to/eyes-only
// triple for a file after override fallback. It is computed per check and
// never stored.
type SecurityProfile struct {
	Classification classification.Level
	ReleasableTo   []Group
	EyesOnly       []Group
}

// Override is a per-field switch between inheriting the document value and
// carrying an explicit file-level value. The zero value inherits.
type Override[T any] struct {
	set   bool
	value T
}

func Overridden[T any](v T) Override[T] {
	return Override[T]{set: true, value: v}
}

func Inherited[T any]() Override[T] {
	return Override[T]{}
}

func (o Override[T]) Get() (T, bool) {
	return o.value, o.set
}

func (o Override[T]) IsSet() bool {
	return o.set
}

type Document struct {
	ID             string
	Title          string
	OwnerID        string
	Classification string
	ReleasableTo   []string
	EyesOnly       []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DocumentFile belongs to exactly one document. Security fields are
// three independent overrides; everything else is plain metadata the
// access engine never reads.
type DocumentFile struct {
	ID         string
	DocumentID string

	Title         string
	MimeType      string
	SourceURL     string
	Visible       bool
	Preview       bool
	AutoGenerated bool
	Metadata      map[string]string

	BlobHandle string
	SizeBytes  int64

	Classification Override[string]
	ReleasableTo   Override[[]string]
	EyesOnly       Override[[]string]

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FilePatch carries an update. Nil pointer fields are left unchanged; a
// non-nil override field replaces the whole override state for that field,
// including switching it back to inherited.
type FilePatch struct {
	Title     *string
	MimeType  *string
	SourceURL *string
	Visible   *bool
	Preview   *bool
	Metadata  map[string]string

	Classification *Override[string]
	ReleasableTo   *Override[[]string]
	EyesOnly       *Override[[]string]
}

type FileMeta struct {
	Title         string
	MimeType      string
	SourceURL     string
	AutoGenerated bool
	Metadata      map[string]string
}

type AuditEvent struct {
	PrincipalID string
	Action      Action
	TargetKind  string
	TargetID    string
	Outcome     string
	Reason      string
	At          time.Time
}

const (
	AuditOutcomeAllowed = "allowed"
	AuditOutcomeDenied  = "denied"
	AuditOutcomeError   = "error"
)
