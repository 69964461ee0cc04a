package routing

import "strings"

// normalizeErrorMessage keeps explicit messages as-is and replaces generic
// placeholder messages (code echoes, "x failed") with a catalog entry or a
// humanized rendering of the code.
func normalizeErrorMessage(code string, message string) string {
	if !isGenericErrorMessage(code, message) {
		return message
	}
	if known := knownErrorMessage(code); known != "" {
		return known
	}
	return humanizeErrorCode(code)
}

func isGenericErrorMessage(code string, message string) bool {
	message = strings.TrimSpace(message)
	if message == "" {
		return true
	}
	if strings.EqualFold(message, code) {
		return true
	}
	if message == "internal_error" {
		return true
	}
	words := strings.Fields(message)
	if len(words) <= 2 {
		last := strings.ToLower(words[len(words)-1])
		if last == "failed" || last == "error" {
			return true
		}
	}
	lower := strings.ToLower(message)
	if !strings.ContainsAny(lower, " ") && (strings.HasSuffix(lower, "_failed") || strings.HasSuffix(lower, "_error")) {
		return true
	}
	return false
}

// knownErrorMessage returns the operator-reviewed message for user-visible
// codes. Codes not listed here fall through to humanizeErrorCode.
func knownErrorMessage(code string) string {
	switch code {
	case "forbidden":
		return "You do not have permission to perform this action."
	case "unauthorized":
		return "Authentication required. Check the principal header."
	case "not_found":
		return "The requested resource was not found."
	case "invalid_request":
		return "Invalid request parameters. Check the request and retry."
	case "bad_json":
		return "Request body is not valid JSON."
	case "bad_request":
		return "The request could not be processed. Check the input values."
	case "validation_failed":
		return "Validation failed. Check the reported fields."
	case "invalid_group_reference":
		return "One or more referenced groups do not exist."
	case "storage_inconsistency":
		return "File record and stored content are out of sync. Contact an operator."
	case "file_not_found":
		return "File not found."
	case "principal_not_found":
		return "Principal not found."
	case "invalid_action":
		return "Unknown action. Expected view, download, edit, or delete."
	case "rule_expression_error":
		return "A rule expression failed to compile or evaluate."
	default:
		return ""
	}
}

func humanizeErrorCode(code string) string {
	raw := strings.FieldsFunc(strings.ToLower(strings.TrimSpace(code)), func(r rune) bool {
		return r == '_' || r == '-'
	})
	words := make([]string, 0, len(raw))
	for _, w := range raw {
		if w != "" {
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return "Request failed."
	}

	last := words[len(words)-1]
	if last == "failed" || last == "error" {
		head := words[:len(words)-1]
		if len(head) == 0 {
			return "Request " + last + "."
		}
		return titleCaseWords(head) + " " + last + "."
	}
	return titleCaseWords(words) + "."
}

var errorCodeAcronyms = map[string]string{
	"api":  "API",
	"db":   "DB",
	"id":   "ID",
	"rls":  "RLS",
	"uuid": "UUID",
}

func titleCaseWords(words []string) string {
	if len(words) == 0 {
		return ""
	}
	out := make([]string, 0, len(words))
	for i, w := range words {
		if up, ok := errorCodeAcronyms[w]; ok {
			out = append(out, up)
			continue
		}
		if i == 0 {
			out = append(out, capitalizeWord(w))
			continue
		}
		out = append(out, w)
	}
	return strings.Join(out, " ")
}

func capitalizeWord(w string) string {
	if w == "" {
		return ""
	}
	return strings.ToUpper(w[:1]) + w[1:]
}
