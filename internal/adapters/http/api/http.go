// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	service "github.com/okian/nurture/internal/app"
	"github.com/okian/nurture/internal/domain/errkind"
	"github.com/okian/nurture/pkg/logger"
)

const (
	maxBodyBytes     = 1 << 20
	defaultListLimit = 50
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	LeadDependencies
	ScoringDependencies
	ContentDependencies
	PaymentDependencies
	NurtureDependencies
	AdminDependencies
}

var _ Dependencies = (*service.Service)(nil)

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	leadsHandler    *LeadsHandler
	scoringHandler  *ScoringHandler
	contentHandler  *ContentHandler
	paymentsHandler *PaymentsHandler
	nurtureHandler  *NurtureHandler
	adminHandler    *AdminHandler
	logger          logger.Logger
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithLogger sets the logger used for failed requests.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers. auth gates the
// admin and cron endpoints.
func NewServer(deps Dependencies, auth *Authorizer, opts ...Option) *Server {
	s := &Server{}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}
	rw := responder{logger: s.logger}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(deps, rw)
	s.leadsHandler = NewLeadsHandler(deps, rw)
	s.scoringHandler = NewScoringHandler(deps, rw)
	s.contentHandler = NewContentHandler(deps, rw)
	s.paymentsHandler = NewPaymentsHandler(deps, rw)
	s.nurtureHandler = NewNurtureHandler(deps, auth, rw)
	s.adminHandler = NewAdminHandler(deps, auth, rw)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("/lead", MetricsMiddleware(s.leadsHandler.HandleLead, "lead"))
	mux.HandleFunc("/newsletter", MetricsMiddleware(s.leadsHandler.HandleNewsletter, "newsletter"))
	mux.HandleFunc("/nurture/engagement", MetricsMiddleware(s.leadsHandler.HandleEngagement, "engagement"))

	mux.HandleFunc("/diagnostic", MetricsMiddleware(s.scoringHandler.HandleDiagnostic, "diagnostic"))
	mux.HandleFunc("/assessment", MetricsMiddleware(s.scoringHandler.HandleAssessment, "assessment"))

	mux.HandleFunc("/ai/summarize", MetricsMiddleware(s.contentHandler.HandleSummarize, "ai_summarize"))
	mux.HandleFunc("/ai/insights", MetricsMiddleware(s.contentHandler.HandleInsights, "ai_insights"))
	mux.HandleFunc("/ai/generate-title", MetricsMiddleware(s.contentHandler.HandleGenerateTitle, "ai_generate_title"))
	mux.HandleFunc("/ai/document-chat", MetricsMiddleware(s.contentHandler.HandleDocumentChat, "ai_document_chat"))

	mux.HandleFunc("/stripe/webhook", MetricsMiddleware(s.paymentsHandler.HandleStripeWebhook, "stripe_webhook"))
	mux.HandleFunc("/nurture/send-scheduled", MetricsMiddleware(s.nurtureHandler.HandleSendScheduled, "send_scheduled"))

	mux.HandleFunc("/admin/leads", MetricsMiddleware(s.adminHandler.HandleLeads, "admin_leads"))
	mux.HandleFunc("/admin/sends", MetricsMiddleware(s.adminHandler.HandleSends, "admin_sends"))
}

type okResponse struct {
	OK bool `json:"ok"`
}

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// responder renders errors and logs the ones that are not the caller's fault.
type responder struct {
	logger logger.Logger
}

func (rw responder) error(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		rw.logger.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.Int("status", status),
			logger.Error(err),
		)
	}
	writeJSON(w, status, errorResponse{OK: false, Error: messageFor(err)})
}

// nonFatal logs best-effort failures that did not affect the response.
func (rw responder) nonFatal(r *http.Request, warnings []error) {
	for _, w := range warnings {
		rw.logger.Warn(r.Context(), "side effect failed", logger.String("path", r.URL.Path), logger.Error(w))
	}
}

// decode reads a JSON body of at most maxBodyBytes into v.
func decode(w http.ResponseWriter, r *http.Request, op string, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return errkind.Validation(op, "request body too large")
		case errors.Is(err, io.EOF):
			return errkind.Validation(op, "request body is empty")
		default:
			return errkind.Validation(op, "request body must be valid JSON")
		}
	}
	return nil
}

// requireMethod answers 405 unless r uses one of methods.
func requireMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: ErrMethodNotAllowed.Error()})
	return false
}

func queryLimit(r *http.Request, op string) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errkind.Validation(op, "limit must be a positive integer")
	}
	return n, nil
}
