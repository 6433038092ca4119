package handler

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/url"

	"github.com/msomdec/lifelink/internal/domain"
	"github.com/msomdec/lifelink/internal/service"
)

type contextKey string

const browserContextKey contextKey = "browser"

// ClientCookieName holds the signed browser identity token.
const ClientCookieName = "lifelink_client"

// BrowserFromContext returns the browser scope attached by WithBrowser.
func BrowserFromContext(ctx context.Context) *service.Browser {
	b, _ := ctx.Value(browserContextKey).(*service.Browser)
	return b
}

// stateFromContext returns the session state of the request's browser.
func stateFromContext(ctx context.Context) service.SessionState {
	if b := BrowserFromContext(ctx); b != nil {
		return b.Session.State()
	}
	return service.SessionState{}
}

// WithBrowser identifies the browser from the lifelink_client cookie,
// issuing a new identity when it is missing or invalid, and opens its
// session scope for the duration of the request.
func WithBrowser(tokens *service.ClientTokens, browsers *service.BrowserFactory, cookieSecure bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var browserID string
		if c, err := r.Cookie(ClientCookieName); err == nil {
			browserID, _ = tokens.Validate(c.Value)
		}
		if browserID == "" {
			id, token, err := tokens.Issue()
			if err != nil {
				slog.Error("issue client token", "error", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			browserID = id
			http.SetCookie(w, &http.Cookie{
				Name:     ClientCookieName,
				Value:    token,
				Path:     "/",
				HttpOnly: true,
				Secure:   cookieSecure,
				SameSite: http.SameSiteLaxMode,
				MaxAge:   int(service.ClientTokenLifetime.Seconds()),
			})
		}

		browser, err := browsers.Open(r.Context(), browserID)
		if err != nil {
			slog.Error("open browser scope", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		defer browser.Close()

		ctx := context.WithValue(r.Context(), browserContextKey, browser)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireSignedIn guards pages that need any session. Anonymous visitors
// are sent to the login page with the original path preserved.
func RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if stateFromContext(r.Context()).User == nil {
			redirectToLogin(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole guards a role-specific page. Signed-in users with another
// role go to their own dashboard; users without a role go to /profile.
func RequireRole(role domain.Role, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state := stateFromContext(r.Context())
		if state.User == nil {
			redirectToLogin(w, r)
			return
		}
		if state.Role != role {
			http.Redirect(w, r, state.Role.Dashboard(), http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/login?from="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
}

// RequireAPISession rejects API calls without a session with 401.
func RequireAPISession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if stateFromContext(r.Context()).User == nil {
			respondMessage(w, r, http.StatusUnauthorized, "Not authenticated.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAPIRole rejects API calls from users without role.
func RequireAPIRole(role domain.Role, next http.Handler) http.Handler {
	return RequireAPISession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if stateFromContext(r.Context()).Role != role {
			respondMessage(w, r, http.StatusForbidden, "You do not have access to this action.")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// RateLimit allows a request only when the remote address has a token left.
func RateLimit(limiter *service.TokenBucket, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow(clientIP(r)) {
			w.Header().Set("Retry-After", "5")
			respondMessage(w, r, http.StatusTooManyRequests, "Too many attempts. Please wait a moment and try again.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SecurityHeaders sets conservative browser security headers on every
// response.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "same-origin")
		next.ServeHTTP(w, r)
	})
}
