// Package httpapi wires the chi router, middleware chain, and handlers,
// generalizing a single-file net/http.ServeMux server's writeError,
// withAdminAuth, and loggingMiddleware into a chi-based composition with
// per-route middleware groups.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/armorclaw/license-server/internal/domain"
	"github.com/armorclaw/license-server/internal/reqctx"
)

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// writeJSON marshals v with status, setting the X-Correlation-ID response
// header from ctx.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	if cid := reqctx.CorrelationID(r.Context()); cid != "" {
		w.Header().Set("X-Correlation-ID", cid)
	}
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps err to its HTTP error body via the centralized tag ->
// status mapping, logging the underlying cause for anything that resolves
// to INTERNAL_ERROR.
func writeError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	derr := domain.AsDomainError(err)
	if derr.Status >= 500 {
		logger.Error("request failed",
			"error", err,
			"correlation_id", reqctx.CorrelationID(r.Context()),
			"trace_id", reqctx.TraceID(r.Context()),
		)
		if trace := reqctx.TraceID(r.Context()); trace != "" {
			w.Header().Set("X-Trace-ID", trace)
		}
	}

	var body errorBody
	body.Error.Code = derr.Code
	body.Error.Message = derr.Message
	writeJSON(w, r, derr.Status, body)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.ValidationError("malformed JSON body: " + err.Error())
	}
	return nil
}
