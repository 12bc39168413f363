package api

import (
	"context"
	"net/http"

	"github.com/okian/nurture/internal/domain/model"
)

// StatsProvider defines the interface for getting send statistics.
type StatsProvider interface {
	DispatchStatus(ctx context.Context) (model.SendCounts, error)
}

// StatsHandler handles stats requests.
type StatsHandler struct {
	statsProvider StatsProvider
	rw            responder
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(statsProvider StatsProvider, rw responder) *StatsHandler {
	return &StatsHandler{statsProvider: statsProvider, rw: rw}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	counts, err := h.statsProvider.DispatchStatus(r.Context())
	if err != nil {
		h.rw.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "sends": counts})
}
