package handler

import (
	"net/http"

	"github.com/msomdec/lifelink/internal/domain"
	"github.com/msomdec/lifelink/internal/service"
)

// Services bundles everything the routes depend on.
type Services struct {
	// Store is the host key-value store, read by the health check.
	Store         domain.KeyValueStore
	Browsers      *service.BrowserFactory
	Tokens        *service.ClientTokens
	Requests      *service.RequestService
	Profiles      *service.ProfileService
	Notifications *service.NotificationService
	Admin         *service.AdminService
	// AuthLimiter throttles sign-in and sign-up per remote address.
	AuthLimiter *service.TokenBucket
}

// RegisterRoutes sets up all HTTP routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, svc Services, cookieSecure bool) {
	mux.Handle("GET /healthz", HealthCheck(svc.Store))

	scoped := func(h http.Handler) http.Handler {
		return WithBrowser(svc.Tokens, svc.Browsers, cookieSecure, h)
	}
	page := func(h http.HandlerFunc) http.Handler { return scoped(h) }
	rolePage := func(role domain.Role, h http.HandlerFunc) http.Handler {
		return scoped(RequireRole(role, h))
	}
	api := func(h http.HandlerFunc) http.Handler { return scoped(RequireAPISession(h)) }
	roleAPI := func(role domain.Role, h http.HandlerFunc) http.Handler {
		return scoped(RequireAPIRole(role, h))
	}
	limited := func(h http.HandlerFunc) http.Handler { return scoped(RateLimit(svc.AuthLimiter, h)) }

	dashboards := NewDashboardHandler(svc.Requests, svc.Notifications)
	requests := NewRequestHandler(svc.Requests, svc.Notifications)
	profiles := NewProfileHandler(svc.Profiles)
	admin := NewAdminHandler(svc.Admin)

	// Pages
	mux.Handle("GET /", page(HandleHome))
	mux.Handle("GET /login", page(HandleLoginPage))
	mux.Handle("GET /register", page(HandleRegisterPage))
	mux.Handle("GET /profile", scoped(RequireSignedIn(http.HandlerFunc(HandleProfilePage))))
	mux.Handle("GET /donor-dashboard", rolePage(domain.RoleDonor, dashboards.HandleDonorDashboard))
	mux.Handle("GET /donor-dashboard/requests", rolePage(domain.RoleDonor, dashboards.HandleDonorRequests))
	mux.Handle("GET /seeker-dashboard", rolePage(domain.RoleSeeker, dashboards.HandleSeekerDashboard))
	mux.Handle("GET /seeker-dashboard/requests", rolePage(domain.RoleSeeker, dashboards.HandleSeekerRequests))
	mux.Handle("GET /admin", rolePage(domain.RoleAdmin, admin.HandlePage))

	// Auth API
	mux.Handle("POST /api/auth/signup", limited(HandleSignUp))
	mux.Handle("POST /api/auth/login", limited(HandleLogin))
	mux.Handle("POST /api/auth/logout", page(HandleLogout))
	mux.Handle("GET /api/auth/session", page(HandleSession))

	// Profile API
	mux.Handle("PUT /api/profile", api(profiles.HandleUpdate))

	// Requests API
	mux.Handle("GET /api/requests", roleAPI(domain.RoleSeeker, requests.HandleList))
	mux.Handle("POST /api/requests", roleAPI(domain.RoleSeeker, requests.HandleCreate))
	mux.Handle("GET /api/requests/pending", roleAPI(domain.RoleDonor, requests.HandlePending))
	mux.Handle("POST /api/requests/{id}/pledge", roleAPI(domain.RoleDonor, requests.HandlePledge))
	mux.Handle("POST /api/requests/{id}/cancel", roleAPI(domain.RoleSeeker, requests.HandleCancel))

	// Notifications API
	mux.Handle("GET /api/notifications", api(requests.HandleNotifications))

	// Admin API
	mux.Handle("GET /api/admin/overview", roleAPI(domain.RoleAdmin, admin.HandleOverview))
	mux.Handle("GET /api/admin/tables/{table}", roleAPI(domain.RoleAdmin, admin.HandleTable))
}
