package api

import (
	"context"
	"net/http"

	service "github.com/okian/nurture/internal/app"
)

// LeadDependencies defines the interface for lead capture.
type LeadDependencies interface {
	CaptureLead(ctx context.Context, in service.LeadInput) (service.CaptureResult, error)
	Subscribe(ctx context.Context, email, source, leadMagnet string) (bool, error)
	TrackEngagement(ctx context.Context, email, event string) error
}

type leadRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Source  string `json:"source"`
	Message string `json:"message"`
}

type newsletterRequest struct {
	Email      string `json:"email"`
	Source     string `json:"source"`
	LeadMagnet string `json:"leadMagnet"`
}

type newsletterResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

type engagementRequest struct {
	Email string `json:"email"`
	Event string `json:"event"`
}

// LeadsHandler handles lead capture requests.
type LeadsHandler struct {
	deps LeadDependencies
	rw   responder
}

// NewLeadsHandler creates a new leads handler.
func NewLeadsHandler(deps LeadDependencies, rw responder) *LeadsHandler {
	return &LeadsHandler{deps: deps, rw: rw}
}

// HandleLead handles POST /lead requests.
func (h *LeadsHandler) HandleLead(w http.ResponseWriter, r *http.Request) {
	const op = "api.lead"
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req leadRequest
	if err := decode(w, r, op, &req); err != nil {
		h.rw.error(w, r, err)
		return
	}
	res, err := h.deps.CaptureLead(r.Context(), service.LeadInput(req))
	if err != nil {
		h.rw.error(w, r, err)
		return
	}
	h.rw.nonFatal(r, res.Warnings)
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// HandleNewsletter handles POST /newsletter requests. Subscribing twice is
// not an error.
func (h *LeadsHandler) HandleNewsletter(w http.ResponseWriter, r *http.Request) {
	const op = "api.newsletter"
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req newsletterRequest
	if err := decode(w, r, op, &req); err != nil {
		h.rw.error(w, r, err)
		return
	}
	created, err := h.deps.Subscribe(r.Context(), req.Email, req.Source, req.LeadMagnet)
	if err != nil {
		h.rw.error(w, r, err)
		return
	}
	msg := "Subscribed"
	if !created {
		msg = "Already subscribed"
	}
	writeJSON(w, http.StatusOK, newsletterResponse{OK: true, Message: msg})
}

// HandleEngagement handles POST /nurture/engagement requests.
func (h *LeadsHandler) HandleEngagement(w http.ResponseWriter, r *http.Request) {
	const op = "api.engagement"
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req engagementRequest
	if err := decode(w, r, op, &req); err != nil {
		h.rw.error(w, r, err)
		return
	}
	if err := h.deps.TrackEngagement(r.Context(), req.Email, req.Event); err != nil {
		h.rw.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}
