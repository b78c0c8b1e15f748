package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/airtable-api/internal/catalog"
	"github.com/sells-group/airtable-api/internal/geoarea"
	"github.com/sells-group/airtable-api/internal/resilience"
	"github.com/sells-group/airtable-api/pkg/geocode"
)

const (
	msgUnexpected      = "Unexpected server error"
	msgUpstream        = "Upstream service unavailable"
	msgAddressRequired = "address query parameter is required"
	msgUnresolvable    = "Address could not be geocoded"
)

// ErrorBody is the body of every error response.
type ErrorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSONStatus(w, status, ErrorBody{Error: msg})
}

// statusFor maps err to a response status and message. resource names the
// record kind in not-found messages.
func statusFor(err error, resource string) (int, string) {
	var upstream *resilience.UpstreamError
	switch {
	case catalog.IsNotFound(err):
		return http.StatusNotFound, resource + " not found"
	case errors.Is(err, geoarea.ErrNoArea):
		return http.StatusNotFound, resource + " not found"
	case errors.Is(err, geocode.ErrUnresolvableAddress):
		return http.StatusNotFound, msgUnresolvable
	case errors.As(err, &upstream),
		errors.Is(err, resilience.ErrCircuitOpen),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusBadGateway, msgUpstream
	default:
		return http.StatusInternalServerError, msgUnexpected
	}
}

// fail logs err and writes the mapped error response.
func fail(w http.ResponseWriter, r *http.Request, err error, resource string) {
	status, msg := statusFor(err, resource)
	fields := []zap.Field{
		zap.String("request_id", RequestID(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		zap.L().Error("api: request failed", fields...)
	} else {
		zap.L().Debug("api: request rejected", fields...)
	}
	writeError(w, status, msg)
}
