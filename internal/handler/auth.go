package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode"

	"github.com/msomdec/lifelink/internal/domain"
	"github.com/msomdec/lifelink/internal/service"
)

// HandleSignUp registers a user and signs the browser in.
// POST /api/auth/signup
// Request:  {"email":"...","password":"...","full_name":"...","role":"donor|seeker"}
// Response: 201 {"session": {...}, "redirect": "/donor-dashboard"}
func HandleSignUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
		Role     string `json:"role"`
	}
	if err := readJSON(r, &req); err != nil {
		respondMessage(w, r, http.StatusBadRequest, "Invalid request body.")
		return
	}

	role := domain.Role(req.Role)
	if role != domain.RoleNone && role != domain.RoleDonor && role != domain.RoleSeeker {
		respondError(w, r, fmt.Errorf("%w: role must be donor or seeker", domain.ErrInvalidInput), "sign up")
		return
	}

	browser := BrowserFromContext(r.Context())
	_, err := browser.Auth.SignUp(r.Context(), req.Email, req.Password, service.SignUpAttributes{
		FullName: strings.TrimSpace(req.FullName),
		Role:     role,
	})
	if err != nil {
		respondError(w, r, err, "sign up")
		return
	}

	state := browser.Session.State()
	respondRedirect(w, r, http.StatusCreated, state.Role.Dashboard(), map[string]any{
		"session": toSessionDTO(state),
	})
}

// HandleLogin signs the browser in.
// POST /api/auth/login
// Request:  {"email":"...","password":"...","from":"/donor-dashboard"}
// Response: {"session": {...}, "redirect": "..."}
func HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		From     string `json:"from"`
	}
	if err := readJSON(r, &req); err != nil {
		respondMessage(w, r, http.StatusBadRequest, "Invalid request body.")
		return
	}

	browser := BrowserFromContext(r.Context())
	if _, err := browser.Auth.SignInWithPassword(r.Context(), req.Email, req.Password); err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			respondMessage(w, r, http.StatusUnauthorized, "Invalid email or password.")
			return
		}
		respondError(w, r, err, "sign in")
		return
	}

	state := browser.Session.State()
	respondRedirect(w, r, http.StatusOK, returnPath(req.From, state.Role), map[string]any{
		"session": toSessionDTO(state),
	})
}

// returnPath picks where to go after sign-in: the local path the user came
// from, otherwise the role's dashboard. Browsers read "/\host" and paths
// containing tabs or newlines as "//host", so those are rejected too.
func returnPath(from string, role domain.Role) string {
	if len(from) == 0 || from[0] != '/' || strings.ContainsFunc(from, unicode.IsControl) {
		return role.Dashboard()
	}
	if len(from) > 1 && (from[1] == '/' || from[1] == '\\') {
		return role.Dashboard()
	}
	u, err := url.Parse(from)
	if err != nil || u.Scheme != "" || u.Host != "" || strings.HasPrefix(u.Path, "/login") {
		return role.Dashboard()
	}
	return from
}

// HandleLogout ends the browser's session.
// POST /api/auth/logout
// Response: 204 No Content
func HandleLogout(w http.ResponseWriter, r *http.Request) {
	browser := BrowserFromContext(r.Context())
	if err := browser.Auth.SignOut(r.Context()); err != nil {
		respondError(w, r, err, "sign out")
		return
	}
	if isDatastar(r) {
		respondRedirect(w, r, http.StatusOK, "/", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSession returns the resolved session, or null when signed out.
// GET /api/auth/session
// Response: {"session": {...}|null}
func HandleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"session": toSessionDTO(stateFromContext(r.Context())),
	})
}
