package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/msomdec/lifelink/internal/domain"
	"github.com/msomdec/lifelink/internal/view"
	datastar "github.com/starfederation/datastar-go/datastar"
)

const msgUnexpected = "An unexpected error occurred. Please try again."

// writeJSON sends a JSON response with the given status code and data.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("write JSON response", "error", err)
	}
}

// writeError sends a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// readJSON decodes the request body into the given destination. Datastar
// actions post their signals as the JSON body, so the same decoding serves
// both clients.
func readJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

// isDatastar reports whether the request came from a datastar action.
func isDatastar(r *http.Request) bool {
	return r.Header.Get("Datastar-Request") == "true"
}

// errorStatus maps a service error to an HTTP status and a client-safe
// message. Unexpected errors are logged under op.
func errorStatus(err error, op string) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "Not authorized."
	case errors.Is(err, domain.ErrDuplicateEmail):
		return http.StatusConflict, "An account with that email already exists."
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrNoRows):
		return http.StatusNotFound, "Not found."
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "This request is no longer open."
	}
	slog.Error(op, "error", err)
	return http.StatusInternalServerError, msgUnexpected
}

// respondError reports err as JSON, or as a flash message for datastar
// actions.
func respondError(w http.ResponseWriter, r *http.Request, err error, op string) {
	status, message := errorStatus(err, op)
	respondMessage(w, r, status, message)
}

func respondMessage(w http.ResponseWriter, r *http.Request, status int, message string) {
	if isDatastar(r) {
		sse := datastar.NewSSE(w, r)
		sse.PatchElementTempl(
			view.Flash(message),
			datastar.WithSelectorID("flash"),
			datastar.WithModeInner(),
		)
		return
	}
	writeError(w, status, message)
}

// respondRedirect sends datastar clients to dest and JSON clients the
// payload with dest under "redirect".
func respondRedirect(w http.ResponseWriter, r *http.Request, status int, dest string, payload map[string]any) {
	if isDatastar(r) {
		sse := datastar.NewSSE(w, r)
		sse.Redirect(dest)
		return
	}
	if payload == nil {
		payload = map[string]any{}
	}
	payload["redirect"] = dest
	writeJSON(w, status, payload)
}
