package common

import (
	"encoding/json"
	"log"
	"net/http"
)

// RespondJSON writes v as a JSON body with the given status.
func RespondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("error encoding response: %v", err)
	}
}

// RespondError maps err to its HTTP status and writes {"message": ...}.
// Unknown errors are reported as a generic unavailability, never swallowed.
func RespondError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
		msg = ErrUnavailable.Error()
	}
	RespondJSON(w, status, map[string]string{"message": msg})
}
