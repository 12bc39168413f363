package api

import (
	"context"
	"net/http"

	service "github.com/okian/nurture/internal/app"
	"github.com/okian/nurture/internal/domain/errkind"
	"github.com/okian/nurture/internal/domain/model"
)

// NurtureDependencies defines the interface for the dispatch trigger.
type NurtureDependencies interface {
	Dispatch(ctx context.Context) (service.Summary, error)
	DispatchStatus(ctx context.Context) (model.SendCounts, error)
}

type dispatchResponse struct {
	OK        bool            `json:"ok"`
	Processed service.Summary `json:"processed"`
}

type statusResponse struct {
	OK     bool             `json:"ok"`
	Status model.SendCounts `json:"status"`
}

// NurtureHandler handles the externally triggered dispatch sweep.
type NurtureHandler struct {
	deps NurtureDependencies
	auth *Authorizer
	rw   responder
}

// NewNurtureHandler creates a new nurture handler.
func NewNurtureHandler(deps NurtureDependencies, auth *Authorizer, rw responder) *NurtureHandler {
	return &NurtureHandler{deps: deps, auth: auth, rw: rw}
}

// HandleSendScheduled handles GET/POST /nurture/send-scheduled.
//
// Authorized callers run one sweep. An unauthorized GET gets the send
// counts instead; an unauthorized POST is rejected.
func (h *NurtureHandler) HandleSendScheduled(w http.ResponseWriter, r *http.Request) {
	const op = "api.send_scheduled"
	if !requireMethod(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	if !h.auth.Cron(r) {
		if r.Method == http.MethodPost {
			h.rw.error(w, r, errkind.Wrap(op, errkind.ErrAuth, ErrBadCronSecret))
			return
		}
		counts, err := h.deps.DispatchStatus(r.Context())
		if err != nil {
			h.rw.error(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{OK: true, Status: counts})
		return
	}

	sum, err := h.deps.Dispatch(r.Context())
	if err != nil {
		h.rw.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dispatchResponse{OK: true, Processed: sum})
}
