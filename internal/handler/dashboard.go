package handler

import (
	"log/slog"
	"net/http"

	"github.com/msomdec/lifelink/internal/service"
	"github.com/msomdec/lifelink/internal/view"
	datastar "github.com/starfederation/datastar-go/datastar"
)

// DashboardHandler renders the donor and seeker dashboards and their
// refreshable fragments.
type DashboardHandler struct {
	requests *service.RequestService
	notes    *service.NotificationService
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(requests *service.RequestService, notes *service.NotificationService) *DashboardHandler {
	return &DashboardHandler{requests: requests, notes: notes}
}

func displayName(state service.SessionState) string {
	if state.Profile != nil && state.Profile.FullName != "" {
		return state.Profile.FullName
	}
	if state.User != nil {
		return state.User.Email
	}
	return ""
}

// HandleDonorDashboard renders the open requests a donor can pledge to.
func (h *DashboardHandler) HandleDonorDashboard(w http.ResponseWriter, r *http.Request) {
	state := stateFromContext(r.Context())

	pending, err := h.requests.ListPending(r.Context())
	if err != nil {
		renderError(w, r, err, "list pending requests for dashboard")
		return
	}

	view.DonorDashboardPage(navFor(r), displayName(state), pending).Render(r.Context(), w)
}

// HandleSeekerDashboard renders the seeker's requests, stats and
// notifications.
func (h *DashboardHandler) HandleSeekerDashboard(w http.ResponseWriter, r *http.Request) {
	state := stateFromContext(r.Context())

	requests, err := h.requests.ListBySeeker(r.Context(), state.User.ID)
	if err != nil {
		renderError(w, r, err, "list requests for dashboard")
		return
	}
	stats, err := h.requests.SeekerStats(r.Context(), state.User.ID)
	if err != nil {
		renderError(w, r, err, "seeker stats for dashboard")
		return
	}
	notes, err := h.notes.ListForUser(r.Context(), state.User.ID)
	if err != nil {
		renderError(w, r, err, "list notifications for dashboard")
		return
	}

	view.SeekerDashboardPage(navFor(r), displayName(state), requests, stats, notes).Render(r.Context(), w)
}

// HandleDonorRequests refreshes #pending-requests via SSE.
// GET /donor-dashboard/requests
func (h *DashboardHandler) HandleDonorRequests(w http.ResponseWriter, r *http.Request) {
	patchPendingRequests(w, r, h.requests)
}

// HandleSeekerRequests refreshes the seeker's lists via SSE.
// GET /seeker-dashboard/requests
func (h *DashboardHandler) HandleSeekerRequests(w http.ResponseWriter, r *http.Request) {
	patchSeekerDashboard(w, r, h.requests, h.notes, stateFromContext(r.Context()).User.ID)
}

func patchPendingRequests(w http.ResponseWriter, r *http.Request, requests *service.RequestService) {
	pending, err := requests.ListPending(r.Context())
	if err != nil {
		slog.Error("list pending requests", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	sse := datastar.NewSSE(w, r)
	sse.PatchElementTempl(
		view.PendingRequestsFragment(pending),
		datastar.WithSelectorID("pending-requests"),
		datastar.WithModeInner(),
	)
}

func patchSeekerDashboard(w http.ResponseWriter, r *http.Request, requests *service.RequestService, notesSvc *service.NotificationService, seekerID string) {
	list, err := requests.ListBySeeker(r.Context(), seekerID)
	if err != nil {
		slog.Error("list seeker requests", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	stats, err := requests.SeekerStats(r.Context(), seekerID)
	if err != nil {
		slog.Error("seeker stats", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	notes, err := notesSvc.ListForUser(r.Context(), seekerID)
	if err != nil {
		slog.Error("list notifications", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	sse := datastar.NewSSE(w, r)
	sse.PatchElementTempl(
		view.SeekerRequestsFragment(list),
		datastar.WithSelectorID("seeker-requests"),
		datastar.WithModeInner(),
	)
	sse.PatchElementTempl(
		view.SeekerStatsFragment(stats),
		datastar.WithSelectorID("seeker-stats"),
		datastar.WithModeInner(),
	)
	sse.PatchElementTempl(
		view.NotificationsFragment(notes),
		datastar.WithSelectorID("notifications"),
		datastar.WithModeInner(),
	)
}
