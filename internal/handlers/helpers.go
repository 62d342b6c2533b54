package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ternarybob/finreview/internal/common"
)

// RequireMethod validates the request method, writing a 405 on mismatch.
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a standard success JSON response.
func WriteSuccess(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": message,
	})
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// WriteAppError maps an error's kind to an HTTP status and writes it.
func WriteAppError(w http.ResponseWriter, err error) error {
	return WriteError(w, statusForError(err), err.Error())
}

// statusForError maps the error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	switch common.KindOf(err) {
	case common.KindInvalidInput:
		return http.StatusBadRequest
	case common.KindNotFound:
		return http.StatusNotFound
	case common.KindPrecondition:
		return http.StatusConflict
	case common.KindTransientUpstream:
		return http.StatusBadGateway
	case common.KindPermanentUpstream:
		return http.StatusBadGateway
	case common.KindCancelled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSON parses a request body into dst, rejecting unknown fields.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}
