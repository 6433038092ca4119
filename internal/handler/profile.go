package handler

import (
	"net/http"

	"github.com/msomdec/lifelink/internal/domain"
	"github.com/msomdec/lifelink/internal/service"
)

// ProfileHandler serves profile completion.
type ProfileHandler struct {
	profiles *service.ProfileService
}

func NewProfileHandler(profiles *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// HandleUpdate stores the user's name, phone and role.
// PUT /api/profile
// Request:  {"full_name":"...","phone":"...","role":"donor|seeker"}
// Response: {"profile": {...}, "role": "donor", "redirect": "/donor-dashboard"}
func (h *ProfileHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FullName string `json:"full_name"`
		Phone    string `json:"phone"`
		Role     string `json:"role"`
	}
	if err := readJSON(r, &req); err != nil {
		respondMessage(w, r, http.StatusBadRequest, "Invalid request body.")
		return
	}

	user := stateFromContext(r.Context()).User
	role := domain.Role(req.Role)
	profile, err := h.profiles.Complete(r.Context(), user.ID, service.ProfileUpdate{
		FullName: req.FullName,
		Phone:    req.Phone,
		Role:     role,
	})
	if err != nil {
		respondError(w, r, err, "complete profile")
		return
	}

	respondRedirect(w, r, http.StatusOK, role.Dashboard(), map[string]any{
		"profile": toProfileDTO(profile),
		"role":    role,
	})
}
