package handler_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/msomdec/lifelink/internal/localdb"
)

func sessionUserID(t *testing.T, body map[string]any) string {
	t.Helper()
	session, ok := body["session"].(map[string]any)
	if !ok {
		t.Fatalf("expected session object, got %v", body["session"])
	}
	user := session["user"].(map[string]any)
	return user["id"].(string)
}

func TestIntegration_SeekerRequestDonorPledge(t *testing.T) {
	srv, _ := newTestServer(t)
	seeker := newBrowser(t)
	donor := newBrowser(t)

	// 1. Seeker signs up and lands on the seeker dashboard.
	resp, body := doJSON(t, seeker, http.MethodPost, srv.URL+"/api/auth/signup", map[string]string{
		"email":     "seeker@example.com",
		"password":  "password123",
		"full_name": "Sam Seeker",
		"role":      "seeker",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d", resp.StatusCode)
	}
	if body["redirect"] != "/seeker-dashboard" {
		t.Fatalf("signup: expected redirect to /seeker-dashboard, got %v", body["redirect"])
	}

	resp, err := seeker.Get(srv.URL + "/seeker-dashboard")
	if err != nil {
		t.Fatalf("GET /seeker-dashboard: %v", err)
	}
	page, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("seeker dashboard: expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(page), "Sam Seeker") {
		t.Fatal("seeker dashboard: expected the seeker's name")
	}

	// 2. Seeker creates a request.
	resp, body = doJSON(t, seeker, http.MethodPost, srv.URL+"/api/requests", map[string]string{
		"message":       "Need O- for surgery",
		"blood_type":    "O-",
		"urgency_level": "high",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	created := body["request"].(map[string]any)
	requestID := created["id"].(string)
	if created["status"] != "pending" {
		t.Fatalf("create: expected pending, got %v", created["status"])
	}

	// 3. Donor signs up; the seeker dashboard redirects them to their own.
	resp, _ = doJSON(t, donor, http.MethodPost, srv.URL+"/api/auth/signup", map[string]string{
		"email":     "donor@example.com",
		"password":  "password123",
		"full_name": "Dana Donor",
		"role":      "donor",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("donor signup: expected 201, got %d", resp.StatusCode)
	}

	resp, err = donor.Get(srv.URL + "/seeker-dashboard")
	if err != nil {
		t.Fatalf("GET /seeker-dashboard as donor: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("role mismatch: expected 303, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/donor-dashboard" {
		t.Fatalf("role mismatch: expected /donor-dashboard, got %s", loc)
	}

	// 4. Donor sees the pending request with its seeker.
	resp, body = doJSON(t, donor, http.MethodGet, srv.URL+"/api/requests/pending", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pending: expected 200, got %d", resp.StatusCode)
	}
	pending := body["requests"].([]any)
	if len(pending) != 1 {
		t.Fatalf("pending: expected 1 request, got %d", len(pending))
	}
	if got := pending[0].(map[string]any)["seekerName"]; got != "Sam Seeker" {
		t.Fatalf("pending: expected seekerName Sam Seeker, got %v", got)
	}

	// 5. Donor pledges two units.
	resp, body = doJSON(t, donor, http.MethodPost, srv.URL+"/api/requests/"+requestID+"/pledge", map[string]any{
		"units": "2",
		"note":  "On my way.",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pledge: expected 200, got %d", resp.StatusCode)
	}
	if got := body["request"].(map[string]any)["status"]; got != "fulfilled" {
		t.Fatalf("pledge: expected fulfilled, got %v", got)
	}

	// 6. Seeker is notified.
	resp, body = doJSON(t, seeker, http.MethodGet, srv.URL+"/api/notifications", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("notifications: expected 200, got %d", resp.StatusCode)
	}
	notes := body["notifications"].([]any)
	if len(notes) != 1 {
		t.Fatalf("notifications: expected 1, got %d", len(notes))
	}
	note := notes[0].(map[string]any)
	if note["message"] != "Dana Donor has pledged 2 unit(s) of O-. On my way." {
		t.Fatalf("notifications: unexpected message %q", note["message"])
	}
	if note["relatedRequestId"] != requestID {
		t.Fatalf("notifications: expected related request %s, got %v", requestID, note["relatedRequestId"])
	}

	// 7. A second pledge is rejected.
	resp, _ = doJSON(t, donor, http.MethodPost, srv.URL+"/api/requests/"+requestID+"/pledge", map[string]any{
		"units": 1,
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second pledge: expected 409, got %d", resp.StatusCode)
	}

	// 8. Seeker stats reflect the fulfilled request.
	resp, body = doJSON(t, seeker, http.MethodGet, srv.URL+"/api/requests", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
	stats := body["stats"].(map[string]any)
	if stats["total"] != float64(1) || stats["received"] != float64(1) || stats["pending"] != float64(0) {
		t.Fatalf("list: unexpected stats %v", stats)
	}
}

func TestIntegration_ProfileCompletion(t *testing.T) {
	srv, _ := newTestServer(t)
	client := newBrowser(t)

	// Signing in with an unknown email creates the user without a role.
	resp, body := doJSON(t, client, http.MethodPost, srv.URL+"/api/auth/login", map[string]string{
		"email":    "newbie@example.com",
		"password": "whatever",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", resp.StatusCode)
	}
	if body["redirect"] != "/profile" {
		t.Fatalf("login: expected redirect to /profile, got %v", body["redirect"])
	}
	session := body["session"].(map[string]any)
	if session["role"] != nil {
		t.Fatalf("login: expected null role, got %v", session["role"])
	}
	if name := session["profile"].(map[string]any)["fullName"]; name != "newbie" {
		t.Fatalf("login: expected profile named newbie, got %v", name)
	}

	resp, err := client.Get(srv.URL + "/donor-dashboard")
	if err != nil {
		t.Fatalf("GET /donor-dashboard: %v", err)
	}
	resp.Body.Close()
	if loc := resp.Header.Get("Location"); loc != "/profile" {
		t.Fatalf("guard: expected redirect to /profile, got %s", loc)
	}

	resp, body = doJSON(t, client, http.MethodPut, srv.URL+"/api/profile", map[string]string{
		"full_name": "  New Donor ",
		"phone":     "",
		"role":      "",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("profile without role: expected 422, got %d", resp.StatusCode)
	}
	if msg, _ := body["error"].(string); !strings.Contains(msg, "Please select your role") {
		t.Fatalf("profile without role: unexpected error %q", msg)
	}

	resp, body = doJSON(t, client, http.MethodPut, srv.URL+"/api/profile", map[string]string{
		"full_name": "  New Donor ",
		"phone":     "",
		"role":      "donor",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("profile: expected 200, got %d", resp.StatusCode)
	}
	if body["redirect"] != "/donor-dashboard" {
		t.Fatalf("profile: expected redirect to /donor-dashboard, got %v", body["redirect"])
	}
	profile := body["profile"].(map[string]any)
	if profile["fullName"] != "New Donor" || profile["phone"] != nil {
		t.Fatalf("profile: unexpected profile %v", profile)
	}

	resp, err = client.Get(srv.URL + "/donor-dashboard")
	if err != nil {
		t.Fatalf("GET /donor-dashboard: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("donor dashboard: expected 200, got %d", resp.StatusCode)
	}
}

func TestIntegration_LoginReturnsToFrom(t *testing.T) {
	srv, _ := newTestServer(t)
	client := newBrowser(t)

	doJSON(t, client, http.MethodPost, srv.URL+"/api/auth/signup", map[string]string{
		"email": "back@example.com", "password": "password123", "role": "seeker",
	})

	tests := []struct {
		name string
		from string
		want string
	}{
		{"local path", "/seeker-dashboard/requests", "/seeker-dashboard/requests"},
		{"empty", "", "/seeker-dashboard"},
		{"protocol relative", "//evil.example.com", "/seeker-dashboard"},
		{"backslash host", `/\evil.example.com`, "/seeker-dashboard"},
		{"tab before host", "/\t/evil.example.com", "/seeker-dashboard"},
		{"absolute url", "https://evil.example.com/", "/seeker-dashboard"},
		{"login loop", "/login?from=/admin", "/seeker-dashboard"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, body := doJSON(t, client, http.MethodPost, srv.URL+"/api/auth/login", map[string]string{
				"email": "back@example.com", "password": "password123", "from": tt.from,
			})
			if body["redirect"] != tt.want {
				t.Fatalf("login redirect: expected %s, got %v", tt.want, body["redirect"])
			}

			resp, err := client.Get(srv.URL + "/login?from=" + url.QueryEscape(tt.from))
			if err != nil {
				t.Fatalf("GET /login: %v", err)
			}
			resp.Body.Close()
			if loc := resp.Header.Get("Location"); loc != tt.want {
				t.Fatalf("login page redirect: expected %s, got %s", tt.want, loc)
			}
		})
	}
}

func TestIntegration_DatastarLoginStreamsRedirect(t *testing.T) {
	srv, _ := newTestServer(t)
	client := newBrowser(t)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/auth/login",
		bytes.NewBufferString(`{"email":"ds@example.com","password":"pw","from":""}`))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Datastar-Request", "true")

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("POST /api/auth/login: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("expected event stream, got %s", ct)
	}
	stream, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(stream), "/profile") {
		t.Fatalf("expected redirect to /profile in stream, got %s", stream)
	}
}

func TestIntegration_ErrorStatuses(t *testing.T) {
	srv, _ := newTestServer(t)
	seeker := newBrowser(t)
	donor := newBrowser(t)

	doJSON(t, seeker, http.MethodPost, srv.URL+"/api/auth/signup", map[string]string{
		"email": "s@example.com", "password": "password123", "role": "seeker",
	})
	doJSON(t, donor, http.MethodPost, srv.URL+"/api/auth/signup", map[string]string{
		"email": "d@example.com", "password": "password123", "role": "donor",
	})

	tests := []struct {
		name   string
		client *http.Client
		method string
		path   string
		body   any
		want   int
	}{
		{"missing blood type", seeker, http.MethodPost, "/api/requests", map[string]string{"message": "help"}, http.StatusUnprocessableEntity},
		{"invalid blood type", seeker, http.MethodPost, "/api/requests", map[string]string{"message": "help", "blood_type": "Z+"}, http.StatusUnprocessableEntity},
		{"pledge unknown request", donor, http.MethodPost, "/api/requests/nope/pledge", map[string]any{"units": 1}, http.StatusNotFound},
		{"pledge zero units", donor, http.MethodPost, "/api/requests/nope/pledge", map[string]any{"units": 0}, http.StatusUnprocessableEntity},
		{"pledge non-numeric units", donor, http.MethodPost, "/api/requests/nope/pledge", map[string]any{"units": "two"}, http.StatusUnprocessableEntity},
		{"pledge negative units", donor, http.MethodPost, "/api/requests/nope/pledge", map[string]any{"units": -1.5}, http.StatusUnprocessableEntity},
		{"pledge fractional units to unknown request", donor, http.MethodPost, "/api/requests/nope/pledge", map[string]any{"units": "1.5"}, http.StatusNotFound},
		{"donor creating request", donor, http.MethodPost, "/api/requests", map[string]string{"message": "x", "blood_type": "A+"}, http.StatusForbidden},
		{"seeker pledging", seeker, http.MethodPost, "/api/requests/nope/pledge", map[string]any{"units": 1}, http.StatusForbidden},
		{"seeker on admin api", seeker, http.MethodGet, "/api/admin/overview", nil, http.StatusForbidden},
		{"invalid signup role", newBrowser(t), http.MethodPost, "/api/auth/signup", map[string]string{"email": "x@example.com", "password": "password123", "role": "admin"}, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doJSON(t, tt.client, tt.method, srv.URL+tt.path, tt.body)
			if resp.StatusCode != tt.want {
				t.Fatalf("expected %d, got %d (%v)", tt.want, resp.StatusCode, body)
			}
			if _, ok := body["error"].(string); !ok {
				t.Fatalf("expected error message, got %v", body)
			}
		})
	}
}

func TestIntegration_AdminOverview(t *testing.T) {
	srv, db := newTestServer(t)
	admin := newBrowser(t)

	_, body := doJSON(t, admin, http.MethodPost, srv.URL+"/api/auth/signup", map[string]string{
		"email": "admin@example.com", "password": "password123",
	})
	userID := sessionUserID(t, body)

	if _, err := db.From(localdb.TableUserRoles).Insert(context.Background(), localdb.Row{
		"user_id": userID,
		"role":    "admin",
	}); err != nil {
		t.Fatalf("grant admin: %v", err)
	}

	resp, body := doJSON(t, admin, http.MethodGet, srv.URL+"/api/admin/overview", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("overview: expected 200, got %d", resp.StatusCode)
	}
	if body["profiles"] != float64(1) {
		t.Fatalf("overview: expected 1 profile, got %v", body["profiles"])
	}

	resp, body = doJSON(t, admin, http.MethodGet, srv.URL+"/api/admin/tables/profiles", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("profiles table: expected 200, got %d", resp.StatusCode)
	}
	if rows := body["rows"].([]any); len(rows) != 1 {
		t.Fatalf("profiles table: expected 1 row, got %d", len(rows))
	}

	resp, _ = doJSON(t, admin, http.MethodGet, srv.URL+"/api/admin/tables/secrets", nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("unknown table: expected 422, got %d", resp.StatusCode)
	}

	resp, err := admin.Get(srv.URL + "/admin")
	if err != nil {
		t.Fatalf("GET /admin: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin page: expected 200, got %d", resp.StatusCode)
	}
}

func TestIntegration_LogoutClearsSession(t *testing.T) {
	srv, _ := newTestServer(t)
	client := newBrowser(t)

	doJSON(t, client, http.MethodPost, srv.URL+"/api/auth/signup", map[string]string{
		"email": "bye@example.com", "password": "password123", "role": "donor",
	})

	_, body := doJSON(t, client, http.MethodGet, srv.URL+"/api/auth/session", nil)
	if body["session"] == nil {
		t.Fatal("expected a session after signup")
	}

	resp, _ := doJSON(t, client, http.MethodPost, srv.URL+"/api/auth/logout", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout: expected 204, got %d", resp.StatusCode)
	}

	_, body = doJSON(t, client, http.MethodGet, srv.URL+"/api/auth/session", nil)
	if body["session"] != nil {
		t.Fatalf("expected null session after logout, got %v", body["session"])
	}

	resp, err := client.Get(srv.URL + "/donor-dashboard")
	if err != nil {
		t.Fatalf("GET /donor-dashboard: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected redirect after logout, got %d", resp.StatusCode)
	}
}

func TestIntegration_SessionsAreScopedPerBrowser(t *testing.T) {
	srv, _ := newTestServer(t)
	first := newBrowser(t)
	second := newBrowser(t)

	doJSON(t, first, http.MethodPost, srv.URL+"/api/auth/signup", map[string]string{
		"email": "one@example.com", "password": "password123", "role": "donor",
	})

	_, body := doJSON(t, second, http.MethodGet, srv.URL+"/api/auth/session", nil)
	if body["session"] != nil {
		t.Fatalf("expected second browser to be signed out, got %v", body["session"])
	}
}
