package routing

import (
	"encoding/json"
	"net/http"
	"strings"
)

type ErrorEnvelope struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Status  int               `json:"status"`
	TraceID string            `json:"trace_id,omitempty"`
	Meta    ErrorEnvelopeMeta `json:"meta"`
}

type ErrorEnvelopeMeta struct {
	Path   string `json:"path"`
	Method string `json:"method"`
}

// WriteError renders the JSON envelope for API and webhook routes (or any
// caller asking for JSON) and a one-line text body otherwise.
func WriteError(w http.ResponseWriter, r *http.Request, rc RouteClass, status int, code string, message string) {
	if isJSONOnly(rc) || wantsJSON(r) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(ErrorEnvelope{
			Code:    code,
			Message: message,
			Status:  status,
			TraceID: traceIDFromRequest(r),
			Meta: ErrorEnvelopeMeta{
				Path:   r.URL.Path,
				Method: r.Method,
			},
		})
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(message + "\n"))
}

func wantsJSON(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mediaType, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.EqualFold(strings.TrimSpace(mediaType), "application/json") {
			return true
		}
	}
	return false
}

func isJSONOnly(rc RouteClass) bool {
	return rc == RouteClassInternalAPI || rc == RouteClassPublicAPI || rc == RouteClassWebhook
}

// traceIDFromRequest extracts the trace-id field of a W3C traceparent header.
func traceIDFromRequest(r *http.Request) string {
	version, rest, ok := strings.Cut(strings.TrimSpace(r.Header.Get("traceparent")), "-")
	if !ok || len(version) != 2 {
		return ""
	}
	traceID, rest, ok := strings.Cut(rest, "-")
	if !ok || strings.Count(rest, "-") != 1 {
		return ""
	}
	traceID = strings.ToLower(traceID)
	if len(traceID) != 32 || strings.Trim(traceID, "0") == "" {
		return ""
	}
	if strings.Trim(traceID, "0123456789abcdef") != "" {
		return ""
	}
	return traceID
}
