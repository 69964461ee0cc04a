package routing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriteError_AcceptJSONCharset(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Accept", "application/json; charset=utf-8")
	rec := httptest.NewRecorder()

	WriteError(rec, req, RouteClassUI, http.StatusNotFound, "not_found", "not found")
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		t.Fatalf("content-type=%q", rec.Header().Get("Content-Type"))
	}
}

func TestTraceIDFromRequest(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		traceparent string
		want        string
	}{
		{name: "empty", traceparent: "", want: ""},
		{name: "malformed segments", traceparent: "00-abc-01", want: ""},
		{name: "invalid chars", traceparent: "00-0123456789abcdef0123456789abcdeg-0123456789abcdef-01", want: ""},
		{name: "all zero trace", traceparent: "00-00000000000000000000000000000000-0123456789abcdef-01", want: ""},
		{name: "valid", traceparent: "00-ABCDEFABCDEFABCDEFABCDEFABCDEFAB-0123456789abcdef-01", want: "abcdefabcdefabcdefabcdefabcdefab"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tc.traceparent != "" {
				req.Header.Set("traceparent", tc.traceparent)
			}
			if got := traceIDFromRequest(req); got != tc.want {
				t.Fatalf("traceIDFromRequest()=%q want %q", got, tc.want)
			}
		})
	}
}

func TestWriteError_TraceIDFromTraceparent(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("traceparent", "00-0123456789abcdef0123456789abcdef-0123456789abcdef-01")
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()

	WriteError(rec, req, RouteClassInternalAPI, http.StatusBadRequest, "bad_request", "bad input value")

	var body ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.TraceID != "0123456789abcdef0123456789abcdef" {
		t.Fatalf("trace_id=%q", body.TraceID)
	}
}

func TestWriteError_RewritesGenericMessageFromCode(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/docfile/api/files:update", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()

	WriteError(rec, req, RouteClassInternalAPI, http.StatusForbidden, "forbidden", "forbidden")

	var body ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Message == "forbidden" {
		t.Fatalf("message should be normalized, got %q", body.Message)
	}
	if body.Message != "You do not have permission to perform this action." {
		t.Fatalf("unexpected message: %q", body.Message)
	}
}

func TestWriteError_HumanizesUnknownGenericCode(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/docfile/api/files", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()

	WriteError(rec, req, RouteClassInternalAPI, http.StatusInternalServerError, "blob_gc_failed", "blob_gc_failed")

	var body ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Message != "Blob gc failed." {
		t.Fatalf("unexpected message: %q", body.Message)
	}
}

func TestWriteError_KeepExplicitMessage(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/docfile/api/access-rules:evaluate", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()

	const want = "expression output type mismatch. rules must yield a bool."
	WriteError(rec, req, RouteClassInternalAPI, http.StatusUnprocessableEntity, "rule_expression_error", want)

	var body ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Message != want {
		t.Fatalf("message=%q want %q", body.Message, want)
	}
}

func TestNormalizeErrorMessage_Branches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		code    string
		message string
		want    string
	}{
		{
			name:    "keep explicit message",
			code:    "invalid_group_reference",
			message: "group ops-legacy is not registered",
			want:    "group ops-legacy is not registered",
		},
		{
			name:    "known code with generic message",
			code:    "storage_inconsistency",
			message: "storage_inconsistency",
			want:    "File record and stored content are out of sync. Contact an operator.",
		},
		{
			name:    "empty code with generic message",
			code:    "",
			message: "operation failed",
			want:    "Request failed.",
		},
		{
			name:    "unknown code with generic message",
			code:    "audit_sync_error",
			message: "audit_sync_error",
			want:    "Audit sync error.",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := normalizeErrorMessage(tt.code, tt.message); got != tt.want {
				t.Fatalf("normalizeErrorMessage(%q, %q)=%q want %q", tt.code, tt.message, got, tt.want)
			}
		})
	}
}

func TestIsGenericErrorMessage_Patterns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		code    string
		message string
		want    bool
	}{
		{name: "empty message", code: "E", message: "", want: true},
		{name: "same as code case insensitive", code: "VALIDATION_FAILED", message: "validation_failed", want: true},
		{name: "snake failed", code: "x", message: "docfile_update_failed", want: true},
		{name: "short sentence failed", code: "x", message: "update failed", want: true},
		{name: "internal error literal", code: "x", message: "internal_error", want: true},
		{name: "explicit message", code: "x", message: "cannot attach file because document is missing", want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isGenericErrorMessage(tt.code, tt.message); got != tt.want {
				t.Fatalf("isGenericErrorMessage(%q, %q)=%v want %v", tt.code, tt.message, got, tt.want)
			}
		})
	}
}

func TestKnownErrorMessage_Codes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code string
		want string
	}{
		{code: "forbidden", want: "You do not have permission to perform this action."},
		{code: "unauthorized", want: "Authentication required. Check the principal header."},
		{code: "not_found", want: "The requested resource was not found."},
		{code: "invalid_request", want: "Invalid request parameters. Check the request and retry."},
		{code: "bad_json", want: "Request body is not valid JSON."},
		{code: "validation_failed", want: "Validation failed. Check the reported fields."},
		{code: "invalid_group_reference", want: "One or more referenced groups do not exist."},
		{code: "storage_inconsistency", want: "File record and stored content are out of sync. Contact an operator."},
		{code: "file_not_found", want: "File not found."},
		{code: "principal_not_found", want: "Principal not found."},
		{code: "invalid_action", want: "Unknown action. Expected view, download, edit, or delete."},
		{code: "rule_expression_error", want: "A rule expression failed to compile or evaluate."},
		{code: "unknown", want: ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.code, func(t *testing.T) {
			t.Parallel()
			if got := knownErrorMessage(tt.code); got != tt.want {
				t.Fatalf("knownErrorMessage(%q)=%q want %q", tt.code, got, tt.want)
			}
		})
	}
}

func TestHumanizeErrorCode_Branches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code string
		want string
	}{
		{code: "", want: "Request failed."},
		{code: "___", want: "Request failed."},
		{code: "failed", want: "Request failed."},
		{code: "error", want: "Request error."},
		{code: "blob_gc_failed", want: "Blob gc failed."},
		{code: "principal_resolve_error", want: "Principal resolve error."},
		{code: "docfile_api_id_error", want: "Docfile API ID error."},
		{code: "foo-bar", want: "Foo bar."},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.code, func(t *testing.T) {
			t.Parallel()
			if got := humanizeErrorCode(tt.code); got != tt.want {
				t.Fatalf("humanizeErrorCode(%q)=%q want %q", tt.code, got, tt.want)
			}
		})
	}
}

func TestTitleCaseWordsAndCapitalizeWord(t *testing.T) {
	t.Parallel()

	if got := titleCaseWords(nil); got != "" {
		t.Fatalf("titleCaseWords(nil)=%q want empty", got)
	}
	if got := titleCaseWords([]string{"blob", "api", "db", "uuid", "rls", "id", "handle"}); got != "Blob API DB UUID RLS ID handle" {
		t.Fatalf("unexpected titleCaseWords result: %q", got)
	}
	if got := titleCaseWords([]string{"blob", "", "id"}); got != "Blob  ID" {
		t.Fatalf("unexpected empty-word handling: %q", got)
	}

	if got := capitalizeWord(""); got != "" {
		t.Fatalf("capitalizeWord(empty)=%q want empty", got)
	}
	if got := capitalizeWord("blob"); got != "Blob" {
		t.Fatalf("capitalizeWord(blob)=%q want Blob", got)
	}
}
