package handler

import (
	"net/http"

	"github.com/msomdec/lifelink/internal/localdb"
	"github.com/msomdec/lifelink/internal/service"
	"github.com/msomdec/lifelink/internal/view"
)

// AdminHandler serves the admin dashboard and table dumps.
type AdminHandler struct {
	admin *service.AdminService
}

func NewAdminHandler(admin *service.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// HandlePage renders the admin dashboard.
func (h *AdminHandler) HandlePage(w http.ResponseWriter, r *http.Request) {
	o, err := h.admin.Overview(r.Context())
	if err != nil {
		renderError(w, r, err, "admin overview")
		return
	}

	counts := map[string]int{
		"users":         o.Users,
		"profiles":      o.Profiles,
		"requests":      o.Requests,
		"notifications": o.Notifications,
		"donations":     o.Donations,
	}
	byStatus := make(map[string]int, len(o.ByStatus))
	for k, v := range o.ByStatus {
		byStatus[string(k)] = v
	}
	byRole := make(map[string]int, len(o.ByRole))
	for k, v := range o.ByRole {
		byRole[string(k)] = v
	}
	tables := make([]string, len(localdb.Tables))
	for i, t := range localdb.Tables {
		tables[i] = t.String()
	}

	view.AdminPage(navFor(r), counts, byStatus, byRole, tables).Render(r.Context(), w)
}

// HandleOverview returns store counts.
// GET /api/admin/overview
func (h *AdminHandler) HandleOverview(w http.ResponseWriter, r *http.Request) {
	o, err := h.admin.Overview(r.Context())
	if err != nil {
		respondError(w, r, err, "admin overview")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// HandleTable dumps every row of one table.
// GET /api/admin/tables/{table}
func (h *AdminHandler) HandleTable(w http.ResponseWriter, r *http.Request) {
	rows, err := h.admin.Table(r.Context(), r.PathValue("table"))
	if err != nil {
		respondError(w, r, err, "admin table")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}
