package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/singlebitxyz/gulp/internal/apperr"
)

// envelope is the response shape every endpoint in the external interface
// uses: {status, data, message}.
type envelope struct {
	Status  string      `json:"status"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeData responds with status=success and the given payload.
func writeData(w http.ResponseWriter, httpStatus int, data interface{}) {
	writeJSON(w, httpStatus, envelope{Status: "success", Data: data})
}

// writeErr maps err to an HTTP status via its apperr.Kind and responds with
// status=error and a human-readable message. Errors carrying no apperr.Kind
// are treated as Internal per the error handling design.
func writeErr(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	if ae, ok := apperr.As(err); ok && kind == apperr.RateLimited {
		w.Header().Set("Retry-After", strconv.Itoa(ae.RetryAfterSeconds))
	}
	writeJSON(w, httpStatusFor(kind), envelope{Status: "error", Message: err.Error()})
}

// httpStatusFor maps a taxonomy kind to the HTTP status §7 specifies.
func httpStatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.ValidationFailed, apperr.UnsupportedFormat, apperr.CorruptInput, apperr.EmptyContent:
		return http.StatusBadRequest
	case apperr.Unauthorized:
		return http.StatusUnauthorized
	case apperr.Forbidden, apperr.DomainNotAllowed, apperr.RobotsDenied:
		return http.StatusForbidden
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Conflict:
		return http.StatusConflict
	case apperr.PayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case apperr.ContextOverflow, apperr.InsufficientContent:
		return http.StatusUnprocessableEntity
	case apperr.RateLimited:
		return http.StatusTooManyRequests
	case apperr.Expired:
		return http.StatusUnauthorized
	case apperr.ProviderUnavailable:
		return http.StatusServiceUnavailable
	case apperr.ProviderRejected, apperr.EmbeddingFailed:
		return http.StatusBadGateway
	case apperr.Cancelled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, envelope{Status: "error", Message: message})
}

// validateUUID checks if a string is a valid UUID format.
// Returns true if valid, false otherwise.
func validateUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// requireValidID validates a path-param id is a well-formed UUID before it
// reaches a store lookup, turning a malformed id into a clean 400 instead of
// a failed query.
func requireValidID(w http.ResponseWriter, id, paramName string) bool {
	if !validateUUID(id) {
		writeBadRequest(w, paramName+" must be a valid UUID")
		return false
	}
	return true
}
