package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/meridian-hq/docvault/modules/docfile/services"
	"github.com/meridian-hq/docvault/pkg/httperr"
)

type errorEnvelope struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	TraceID string            `json:"trace_id"`
	Meta    errorEnvelopeMeta `json:"meta"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type errorEnvelopeMeta struct {
	Path   string `json:"path"`
	Method string `json:"method"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code string, message string) {
	writeErrorFields(w, r, status, code, message, nil)
}

func writeErrorFields(w http.ResponseWriter, r *http.Request, status int, code string, message string, fields map[string]string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		Code:    code,
		Message: message,
		TraceID: traceIDFromRequest(r),
		Meta: errorEnvelopeMeta{
			Path:   r.URL.Path,
			Method: r.Method,
		},
		Fields: fields,
	})
}

// writeServiceError maps a lifecycle error onto the wire. A denial that
// hides its target (denied View, or any denial where the caller could not
// view the target either) is indistinguishable from a missing id; other
// denials collapse to a generic forbidden with no reason leaked.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if httperr.IsNotFound(err) {
		writeError(w, r, http.StatusNotFound, "not_found", "not found")
		return
	}
	if _, ok := services.DeniedAction(err); ok {
		if services.DenialHidesTarget(err) {
			writeError(w, r, http.StatusNotFound, "not_found", "not found")
			return
		}
		writeError(w, r, http.StatusForbidden, "forbidden", "forbidden")
		return
	}
	if fields, ok := httperr.ValidationFields(err); ok {
		writeErrorFields(w, r, http.StatusUnprocessableEntity, "validation_failed", "validation failed", fields)
		return
	}
	if ref, ok := services.InvalidGroupReference(err); ok {
		writeErrorFields(w, r, http.StatusUnprocessableEntity, "invalid_group_reference", "invalid group reference", map[string]string{ref.Field: "unknown group " + ref.GroupID})
		return
	}
	if services.IsStorageInconsistency(err) {
		writeError(w, r, http.StatusInternalServerError, "storage_inconsistency", "storage inconsistency")
		return
	}
	if httperr.IsBadRequest(err) || isPgInvalidInput(err) {
		writeError(w, r, http.StatusBadRequest, "bad_request", "bad request")
		return
	}
	if code := stablePgMessage(err); isStableDBCode(code) {
		writeError(w, r, http.StatusUnprocessableEntity, code, "operation failed")
		return
	}
	writeError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
}

func pgErrorCode(err error) string {
	if pgErr, ok := asType[*pgconn.PgError](err); ok && pgErr != nil {
		return strings.TrimSpace(pgErr.Code)
	}
	return ""
}

func isPgInvalidInput(err error) bool {
	switch pgErrorCode(err) {
	case "22P02", "22003", "22007", "22008":
		return true
	default:
		return false
	}
}

func stablePgMessage(err error) string {
	if pgErr, ok := asType[*pgconn.PgError](err); ok && pgErr != nil {
		msg := strings.TrimSpace(pgErr.Message)
		if isStableDBCode(msg) {
			return msg
		}
	}
	return ""
}

func isStableDBCode(code string) bool {
	code = strings.TrimSpace(code)
	if code == "" || code == "UNKNOWN" {
		return false
	}
	for i := 0; i < len(code); i++ {
		ch := code[i]
		if ch >= 'A' && ch <= 'Z' {
			continue
		}
		if ch >= '0' && ch <= '9' {
			continue
		}
		if ch == '_' {
			continue
		}
		return false
	}
	if code[0] < 'A' || code[0] > 'Z' {
		return false
	}
	return true
}

func traceIDFromRequest(r *http.Request) string {
	traceparent := strings.TrimSpace(r.Header.Get("traceparent"))
	if traceparent == "" {
		return ""
	}
	parts := strings.Split(traceparent, "-")
	if len(parts) != 4 {
		return ""
	}
	traceID := strings.ToLower(parts[1])
	if len(traceID) != 32 || traceID == "00000000000000000000000000000000" {
		return ""
	}
	for _, ch := range traceID {
		if (ch < '0' || ch > '9') && (ch < 'a' || ch > 'f') {
			return ""
		}
	}
	return traceID
}
