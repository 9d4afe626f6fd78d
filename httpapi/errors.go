package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gostratum/blobx"
)

type errorResponse struct {
	Error string `json:"error"`
}

// errBadRequest marks malformed requests the gateway never saw (bad UUID,
// bad form, bad JSON).
var errBadRequest = errors.New("bad request")

// statusFor maps gateway errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case blobx.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, blobx.ErrInvalidProvider),
		errors.Is(err, blobx.ErrInvalidArgument),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", blobx.ArgsToFields(
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)...)
	} else {
		h.logger.Debug("Request rejected", blobx.ArgsToFields(
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)...)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
