package handler

import (
	"net/http"

	"github.com/msomdec/lifelink/internal/domain"
	"github.com/msomdec/lifelink/internal/view"
)

// navFor builds the header for the request's session, or nil when signed out.
func navFor(r *http.Request) *view.Nav {
	state := stateFromContext(r.Context())
	if state.User == nil {
		return nil
	}
	return &view.Nav{Email: state.User.Email, Dashboard: state.Role.Dashboard()}
}

// renderError writes a plain error page for a failed page render.
func renderError(w http.ResponseWriter, r *http.Request, err error, op string) {
	status, message := errorStatus(err, op)
	http.Error(w, message, status)
}

// HandleHome renders the home page and the catch-all not-found page.
func HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		w.WriteHeader(http.StatusNotFound)
		view.NotFoundPage(navFor(r)).Render(r.Context(), w)
		return
	}
	view.HomePage(navFor(r)).Render(r.Context(), w)
}

// HandleLoginPage renders the sign-in form. Signed-in users go to their
// dashboard.
func HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	state := stateFromContext(r.Context())
	from := r.URL.Query().Get("from")
	if state.User != nil {
		http.Redirect(w, r, returnPath(from, state.Role), http.StatusSeeOther)
		return
	}
	view.LoginPage(from).Render(r.Context(), w)
}

// HandleRegisterPage renders the sign-up form. ?role=donor|seeker
// pre-selects the role.
func HandleRegisterPage(w http.ResponseWriter, r *http.Request) {
	state := stateFromContext(r.Context())
	if state.User != nil {
		http.Redirect(w, r, state.Role.Dashboard(), http.StatusSeeOther)
		return
	}
	role := domain.Role(r.URL.Query().Get("role"))
	if role != domain.RoleDonor && role != domain.RoleSeeker {
		role = domain.RoleNone
	}
	view.RegisterPage(role).Render(r.Context(), w)
}

// HandleProfilePage renders the profile-completion form.
func HandleProfilePage(w http.ResponseWriter, r *http.Request) {
	state := stateFromContext(r.Context())
	view.ProfilePage(navFor(r), state.Profile, state.Role).Render(r.Context(), w)
}
