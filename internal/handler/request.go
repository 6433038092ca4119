package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/msomdec/lifelink/internal/domain"
	"github.com/msomdec/lifelink/internal/service"
)

// RequestHandler serves the blood request API.
type RequestHandler struct {
	requests *service.RequestService
	notes    *service.NotificationService
}

// NewRequestHandler creates a new RequestHandler.
func NewRequestHandler(requests *service.RequestService, notes *service.NotificationService) *RequestHandler {
	return &RequestHandler{requests: requests, notes: notes}
}

// HandleList returns the seeker's requests and stats.
// GET /api/requests
func (h *RequestHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user := stateFromContext(r.Context()).User

	requests, err := h.requests.ListBySeeker(r.Context(), user.ID)
	if err != nil {
		respondError(w, r, err, "list requests")
		return
	}
	stats, err := h.requests.SeekerStats(r.Context(), user.ID)
	if err != nil {
		respondError(w, r, err, "seeker stats")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"requests": toRequestDTOs(requests),
		"stats":    stats,
	})
}

// HandleCreate creates a request for the signed-in seeker.
// POST /api/requests
// Request:  {"message":"...","blood_type":"O-","urgency_level":"high"}
// Response: 201 {"request": {...}}
func (h *RequestHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message      string `json:"message"`
		BloodType    string `json:"blood_type"`
		UrgencyLevel string `json:"urgency_level"`
	}
	if err := readJSON(r, &req); err != nil {
		respondMessage(w, r, http.StatusBadRequest, "Invalid request body.")
		return
	}

	user := stateFromContext(r.Context()).User
	created, err := h.requests.Create(r.Context(), user.ID, service.NewRequest{
		Message:      req.Message,
		BloodType:    req.BloodType,
		UrgencyLevel: req.UrgencyLevel,
	})
	if err != nil {
		respondError(w, r, err, "create request")
		return
	}

	if isDatastar(r) {
		patchSeekerDashboard(w, r, h.requests, h.notes, user.ID)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"request": toRequestDTO(*created)})
}

// HandlePending returns every open request with its seeker.
// GET /api/requests/pending
func (h *RequestHandler) HandlePending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.requests.ListPending(r.Context())
	if err != nil {
		respondError(w, r, err, "list pending requests")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": toPendingDTOs(pending)})
}

// units accepts a JSON number or a numeric string, since bound form inputs
// may post either.
type units float64

func (u *units) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(strings.Trim(string(b), `"`))
	if s == "" || s == "null" {
		*u = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("%w: units must be a number", domain.ErrInvalidInput)
	}
	*u = units(f)
	return nil
}

// HandlePledge records the signed-in donor's pledge.
// POST /api/requests/{id}/pledge
// Request:  {"units":2,"note":"..."}
// Response: {"request": {...}}
func (h *RequestHandler) HandlePledge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Units units  `json:"units"`
		Note  string `json:"note"`
	}
	if err := readJSON(r, &req); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			respondError(w, r, err, "pledge")
			return
		}
		respondMessage(w, r, http.StatusBadRequest, "Invalid request body.")
		return
	}

	user := stateFromContext(r.Context()).User
	pledged, err := h.requests.Pledge(r.Context(), user.ID, r.PathValue("id"), float64(req.Units), req.Note)
	if err != nil {
		respondError(w, r, err, "pledge")
		return
	}

	if isDatastar(r) {
		patchPendingRequests(w, r, h.requests)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"request": toRequestDTO(*pledged)})
}

// HandleCancel withdraws one of the seeker's pending requests.
// POST /api/requests/{id}/cancel
func (h *RequestHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	user := stateFromContext(r.Context()).User
	cancelled, err := h.requests.Cancel(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		respondError(w, r, err, "cancel request")
		return
	}

	if isDatastar(r) {
		patchSeekerDashboard(w, r, h.requests, h.notes, user.ID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"request": toRequestDTO(*cancelled)})
}

// HandleNotifications lists the signed-in user's notifications.
// GET /api/notifications
func (h *RequestHandler) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	user := stateFromContext(r.Context()).User
	notes, err := h.notes.ListForUser(r.Context(), user.ID)
	if err != nil {
		respondError(w, r, err, "list notifications")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": toNotificationDTOs(notes)})
}
