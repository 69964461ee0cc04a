package services

import (

	"github.com/meridian-hq/docvault/modules/docfile/domain/types"
)

// AccessDeniedError aborts a gated operation. The reason is for the audit
// trail only; callers collapse it to a generic authorization failure.
type AccessDeniedError struct {
	Action types.Action
	Reason types.DenyReason

	// ViewDenied records that the same profile also denies View. The
	// surface must then answer as if the target does not exist, because a
	// caller who cannot see the file must not learn of it through a write
	// denial either.
	ViewDenied bool
}

func (e *AccessDeniedError) Error() string { return "access denied" }

// DenialHidesTarget reports whether the denial must surface as absence: a
// denied View always does, and any other denied action does when the caller
// could not view the target anyway.
func DenialHidesTarget(err error) bool {
	de, ok := asType[*AccessDeniedError](err)
	if !ok {
		return false
	}
	return de.Action == types.ActionView || de.ViewDenied
}

func DeniedReason(err error) (types.DenyReason, bool) {
	de, ok := asType[*AccessDeniedError](err)
	if !ok {
		return "", false
	}
	return de.Reason, true
}

func DeniedAction(err error) (types.Action, bool) {
	de, ok := asType[*AccessDeniedError](err)
	if !ok {
		return "", false
	}
	return de.Action, true
}

// UnknownGroupError reports a group id the registry cannot resolve.
type UnknownGroupError struct {
	GroupID string
}

func (e *UnknownGroupError) Error() string { return "unknown group: " + e.GroupID }

func IsUnknownGroup(err error) bool {
	_, ok := asType[*UnknownGroupError](err)
	return ok
}

// InvalidGroupReferenceError reports a file-level override that names a
// group unknown to the registry. Surfaced before anything is persisted.
type InvalidGroupReferenceError struct {
	Field   string
	GroupID string
}

func (e *InvalidGroupReferenceError) Error() string {
	return "invalid group reference in " + e.Field + ": " + e.GroupID
}

func InvalidGroupReference(err error) (*InvalidGroupReferenceError, bool) {
	return asType[*InvalidGroupReferenceError](err)
}

// StorageInconsistencyError reports a record/content divergence: one half of
// a delete succeeded and the other failed. Fatal to the operation and
// surfaced for out-of-band remediation, never retried here.
type StorageInconsistencyError struct {
	FileID     string
	BlobHandle string
	Err        error
}

func (e *StorageInconsistencyError) Error() string {
	return "storage inconsistency for file " + e.FileID + ": " + e.Err.Error()
}

func (e *StorageInconsistencyError) Unwrap() error { return e.Err }

func IsStorageInconsistency(err error) bool {
	_, ok := asType[*StorageInconsistencyError](err)
	return ok
}
