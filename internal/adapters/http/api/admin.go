package api

import (
	"context"
	"net/http"

	"github.com/okian/nurture/internal/domain/model"
)

// AdminDependencies defines the interface for admin reads.
type AdminDependencies interface {
	ListLeads(ctx context.Context, limit int) ([]model.Lead, error)
	ListSends(ctx context.Context, status model.SendStatus, limit int) ([]model.ScheduledSend, error)
}

// AdminHandler handles the admin read endpoints.
type AdminHandler struct {
	deps AdminDependencies
	auth *Authorizer
	rw   responder
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(deps AdminDependencies, auth *Authorizer, rw responder) *AdminHandler {
	return &AdminHandler{deps: deps, auth: auth, rw: rw}
}

// HandleLeads handles GET /admin/leads?limit=.
func (h *AdminHandler) HandleLeads(w http.ResponseWriter, r *http.Request) {
	const op = "api.admin_leads"
	limit, ok := h.guard(w, r, op)
	if !ok {
		return
	}
	leads, err := h.deps.ListLeads(r.Context(), limit)
	if err != nil {
		h.rw.error(w, r, err)
		return
	}
	if leads == nil {
		leads = []model.Lead{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "leads": leads})
}

// HandleSends handles GET /admin/sends?status=&limit=.
func (h *AdminHandler) HandleSends(w http.ResponseWriter, r *http.Request) {
	const op = "api.admin_sends"
	limit, ok := h.guard(w, r, op)
	if !ok {
		return
	}
	status := model.SendStatus(r.URL.Query().Get("status"))
	sends, err := h.deps.ListSends(r.Context(), status, limit)
	if err != nil {
		h.rw.error(w, r, err)
		return
	}
	if sends == nil {
		sends = []model.ScheduledSend{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "sends": sends})
}

func (h *AdminHandler) guard(w http.ResponseWriter, r *http.Request, op string) (int, bool) {
	if !requireMethod(w, r, http.MethodGet) {
		return 0, false
	}
	if err := h.auth.Admin(r, op); err != nil {
		h.rw.error(w, r, err)
		return 0, false
	}
	limit, err := queryLimit(r, op)
	if err != nil {
		h.rw.error(w, r, err)
		return 0, false
	}
	return limit, true
}
