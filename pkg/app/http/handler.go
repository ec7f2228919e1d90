// Package http adapts error-returning handlers to chi's http.HandlerFunc and
// renders service errors as JSON.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/usikolabs/usiko-middleware/pkg/app/errors"
)

// HandlerFunc is an HTTP handler that reports failure instead of writing it.
type HandlerFunc func(http.ResponseWriter, *http.Request) error

// HandleError adapts h for use with chi, rendering any returned error with
// WriteError.
//
//	r.Get("/stats", http.HandleError(handler.stats))
func HandleError(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			WriteError(w, err)
		}
	}
}

// WriteError renders err as a JSON error body. Service errors carry their
// own status code and message; anything else becomes a 500 with a generic
// message so internal detail never reaches the client.
func WriteError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "unexpected error"

	var svcErr *apperrors.ServiceError
	if errors.As(err, &svcErr) {
		status = svcErr.StatusCode()
		message = svcErr.Message
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": message,
		"code":  status,
	})
}
