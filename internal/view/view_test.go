package view

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/msomdec/lifelink/internal/domain"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	if err := c.Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return buf.String()
}

func TestHomePage_SignedOutLinks(t *testing.T) {
	html := render(t, HomePage(nil))

	for _, want := range []string{"/register?role=donor", "/register?role=seeker", "/login", datastarScript} {
		if !strings.Contains(html, want) {
			t.Fatalf("expected home page to contain %q", want)
		}
	}
}

func TestPendingRequestsFragment_EscapesUserContent(t *testing.T) {
	html := render(t, PendingRequestsFragment([]domain.RequestWithSeeker{{
		BloodRequest: domain.BloodRequest{
			ID:        "local_1_abc",
			Message:   "<script>alert(1)</script>",
			BloodType: "O-",
			CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		},
		SeekerName: "Anonymous",
	}}))

	if strings.Contains(html, "<script>alert(1)</script>") {
		t.Fatal("expected message to be escaped")
	}
	if !strings.Contains(html, "/api/requests/local_1_abc/pledge") {
		t.Fatal("expected pledge action for the request")
	}
}

func TestSeekerRequestsFragment_CancelOnlyPending(t *testing.T) {
	html := render(t, SeekerRequestsFragment([]domain.BloodRequest{
		{ID: "a", Status: domain.RequestStatusPending},
		{ID: "b", Status: domain.RequestStatusFulfilled},
	}))

	if !strings.Contains(html, "/api/requests/a/cancel") {
		t.Fatal("expected cancel action for pending request")
	}
	if strings.Contains(html, "/api/requests/b/cancel") {
		t.Fatal("expected no cancel action for fulfilled request")
	}
}

func TestRegisterPage_PreselectsRole(t *testing.T) {
	html := render(t, RegisterPage(domain.RoleSeeker))

	if !strings.Contains(html, `value="seeker" data-bind="role" checked`) {
		t.Fatal("expected seeker option to be checked")
	}
	if strings.Contains(html, `value="donor" data-bind="role" checked`) {
		t.Fatal("expected donor option to be unchecked")
	}
}

func TestJSString(t *testing.T) {
	if got := jsString(`it's \ fine`); got != `'it\'s \\ fine'` {
		t.Fatalf("unexpected quoting %s", got)
	}
}

func TestLayout_SignedInNav(t *testing.T) {
	html := render(t, HomePage(&Nav{Email: "a<b@example.com", Dashboard: "/donor-dashboard"}))

	if !strings.Contains(html, `<a href="/donor-dashboard">Dashboard</a>`) {
		t.Fatal("expected dashboard link in nav")
	}
	if !strings.Contains(html, "a&lt;b@example.com") {
		t.Fatal("expected escaped email in nav")
	}
	if strings.Contains(html, `href="/register?role=donor"`) {
		t.Fatal("expected no register links when signed in")
	}
}

func TestLoginPage_EscapesSignals(t *testing.T) {
	html := render(t, LoginPage(`/x"><script>`))

	if strings.Contains(html, `"><script>`) {
		t.Fatal("expected from to be escaped inside data-signals")
	}
	if !strings.Contains(html, "/x&#34;&gt;&lt;script&gt;") {
		t.Fatalf("expected escaped return path, got %s", html)
	}
}

func TestAdminPage_SortedCounts(t *testing.T) {
	html := render(t, AdminPage(nil,
		map[string]int{"users": 2, "blood_requests": 5},
		map[string]int{"pending": 1},
		map[string]int{"donor": 3},
		[]string{"profiles"},
	))

	first := strings.Index(html, "<dt>blood_requests</dt><dd>5</dd>")
	second := strings.Index(html, "<dt>users</dt><dd>2</dd>")
	if first < 0 || second < 0 || first > second {
		t.Fatalf("expected counts sorted by key, got %s", html)
	}
	if !strings.Contains(html, `href="/api/admin/tables/profiles"`) {
		t.Fatal("expected table link")
	}
}

func TestSignals(t *testing.T) {
	if got := signals("a", "1", "b", "'x'"); got != "{a: 1, b: 'x'}" {
		t.Fatalf("unexpected signals %s", got)
	}
}
