package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/msomdec/lifelink/internal/handler"
	"github.com/msomdec/lifelink/internal/localdb"
	"github.com/msomdec/lifelink/internal/repository/sqlite"
	"github.com/msomdec/lifelink/internal/service"
)

const testJWTSecret = "test-secret-for-handler-tests-0123456789"

func newTestServices(t *testing.T) (handler.Services, *localdb.Client) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("New DB: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	kv := db.KV()
	client := localdb.New(kv)
	limiter := service.NewTokenBucket(10, 100)
	t.Cleanup(limiter.Close)

	return handler.Services{
		Store:         kv,
		Browsers:      service.NewBrowserFactory(kv, client, service.AuthOptions{BcryptCost: 4}),
		Tokens:        service.NewClientTokens(testJWTSecret),
		Requests:      service.NewRequestService(client),
		Profiles:      service.NewProfileService(client),
		Notifications: service.NewNotificationService(client),
		Admin:         service.NewAdminService(client),
		AuthLimiter:   limiter,
	}, client
}

func newTestServer(t *testing.T) (*httptest.Server, *localdb.Client) {
	t.Helper()
	svc, db := newTestServices(t)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, svc, false)
	srv := httptest.NewServer(handler.SecurityHeaders(mux))
	t.Cleanup(srv.Close)
	return srv, db
}

// newBrowser returns a client with its own cookie jar that does not follow
// redirects.
func newBrowser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("create cookie jar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse // don't follow redirects automatically
		},
	}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			t.Fatalf("decode %s %s: %v", method, url, err)
		}
	}
	return resp, decoded
}

func TestWithBrowser_IssuesClientCookie(t *testing.T) {
	svc, _ := newTestServices(t)

	var got *service.Browser
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = handler.BrowserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.WithBrowser(svc.Tokens, svc.Browsers, true, inner).ServeHTTP(w, req)

	if got == nil {
		t.Fatal("expected browser in context")
	}
	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == handler.ClientCookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("expected lifelink_client cookie to be set")
	}
	if !cookie.HttpOnly || !cookie.Secure {
		t.Fatalf("expected HttpOnly and Secure cookie, got %+v", cookie)
	}

	id, err := svc.Tokens.Validate(cookie.Value)
	if err != nil {
		t.Fatalf("Validate issued cookie: %v", err)
	}
	if id != got.ID {
		t.Fatalf("expected browser id %s, got %s", id, got.ID)
	}
}

func TestWithBrowser_ReusesValidCookie(t *testing.T) {
	svc, _ := newTestServices(t)
	token, err := svc.Tokens.Sign("browser-42")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	var gotID string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = handler.BrowserFromContext(r.Context()).ID
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: handler.ClientCookieName, Value: token})
	w := httptest.NewRecorder()
	handler.WithBrowser(svc.Tokens, svc.Browsers, false, inner).ServeHTTP(w, req)

	if gotID != "browser-42" {
		t.Fatalf("expected browser-42, got %q", gotID)
	}
	if len(w.Result().Cookies()) != 0 {
		t.Fatal("expected no new cookie for a valid token")
	}
}

func TestWithBrowser_ReplacesTamperedCookie(t *testing.T) {
	svc, _ := newTestServices(t)
	token, err := svc.Tokens.Sign("browser-42")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	tampered := token[:len(token)-1] + "X"

	var gotID string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = handler.BrowserFromContext(r.Context()).ID
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: handler.ClientCookieName, Value: tampered})
	w := httptest.NewRecorder()
	handler.WithBrowser(svc.Tokens, svc.Browsers, false, inner).ServeHTTP(w, req)

	if gotID == "" || gotID == "browser-42" {
		t.Fatalf("expected a fresh browser id, got %q", gotID)
	}
	if len(w.Result().Cookies()) != 1 {
		t.Fatal("expected a replacement cookie")
	}
}

func TestRequireRole_AnonymousRedirectsToLogin(t *testing.T) {
	srv, _ := newTestServer(t)
	client := newBrowser(t)

	resp, err := client.Get(srv.URL + "/donor-dashboard")
	if err != nil {
		t.Fatalf("GET /donor-dashboard: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/login?from=%2Fdonor-dashboard" {
		t.Fatalf("expected redirect to login with from, got %s", loc)
	}
}

func TestRequireAPISession_Unauthenticated(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, newBrowser(t), http.MethodGet, srv.URL+"/api/notifications", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if _, ok := body["error"].(string); !ok {
		t.Fatal("expected error message")
	}
}

func TestRateLimit(t *testing.T) {
	limiter := service.NewTokenBucket(0, 1)
	t.Cleanup(limiter.Close)

	calls := 0
	h := handler.RateLimit(limiter, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "203.0.113.9:5555"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != want {
			t.Fatalf("request %d: expected %d, got %d", i+1, want, w.Code)
		}
	}
	if calls != 1 {
		t.Fatalf("expected 1 call through the limiter, got %d", calls)
	}
}

func TestSecurityHeaders(t *testing.T) {
	h := handler.SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected nosniff, got %q", got)
	}
	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("expected DENY, got %q", got)
	}
}
