package api

import (
	"context"
	"net/http"

	service "github.com/okian/nurture/internal/app"
	"github.com/okian/nurture/internal/domain/model"
)

// ScoringDependencies defines the interface for diagnostics and assessments.
type ScoringDependencies interface {
	Diagnose(answers model.Ratings) (service.DiagnosticResult, error)
	CompleteAssessment(ctx context.Context, in service.AssessmentInput) (service.AssessmentResult, error)
}

type diagnosticRequest struct {
	Answers model.Ratings `json:"answers"`
}

type explain struct {
	WeightedAverage float64  `json:"weightedAverage"`
	TopGaps         []string `json:"topGaps"`
}

type diagnosticResponse struct {
	OK      bool     `json:"ok"`
	Score   int      `json:"score"`
	Tier    string   `json:"tier"`
	Roadmap []string `json:"roadmap"`
	Explain explain  `json:"explain"`
}

type assessmentRequest struct {
	Email             string         `json:"email"`
	Name              string         `json:"name"`
	Phone             string         `json:"phone"`
	Source            string         `json:"source"`
	Answers           model.Ratings  `json:"answers"`
	InvestmentLevel   string         `json:"investment_level"`
	PrimaryFocus      string         `json:"primary_focus"`
	SpiritualOpenness model.Openness `json:"spiritual_openness"`
}

type assessmentResponse struct {
	OK         bool     `json:"ok"`
	LeadID     string   `json:"leadId"`
	Score      int      `json:"score"`
	Tier       string   `json:"tier"`
	SequenceID string   `json:"sequenceId"`
	Scheduled  int      `json:"scheduled"`
	Roadmap    []string `json:"roadmap"`
	Explain    explain  `json:"explain"`
}

// ScoringHandler handles diagnostic and assessment requests.
type ScoringHandler struct {
	deps ScoringDependencies
	rw   responder
}

// NewScoringHandler creates a new scoring handler.
func NewScoringHandler(deps ScoringDependencies, rw responder) *ScoringHandler {
	return &ScoringHandler{deps: deps, rw: rw}
}

// HandleDiagnostic handles POST /diagnostic requests. Nothing is stored.
func (h *ScoringHandler) HandleDiagnostic(w http.ResponseWriter, r *http.Request) {
	const op = "api.diagnostic"
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req diagnosticRequest
	if err := decode(w, r, op, &req); err != nil {
		h.rw.error(w, r, err)
		return
	}
	res, err := h.deps.Diagnose(req.Answers)
	if err != nil {
		h.rw.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, diagnosticResponse{
		OK:      true,
		Score:   res.Score,
		Tier:    string(res.Tier),
		Roadmap: res.Roadmap,
		Explain: explainFor(res),
	})
}

// HandleAssessment handles POST /assessment requests.
func (h *ScoringHandler) HandleAssessment(w http.ResponseWriter, r *http.Request) {
	const op = "api.assessment"
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req assessmentRequest
	if err := decode(w, r, op, &req); err != nil {
		h.rw.error(w, r, err)
		return
	}
	res, err := h.deps.CompleteAssessment(r.Context(), service.AssessmentInput{
		Email:   req.Email,
		Name:    req.Name,
		Phone:   req.Phone,
		Source:  req.Source,
		Answers: req.Answers,
		Profile: model.Profile{
			InvestmentLevel:   req.InvestmentLevel,
			PrimaryFocus:      req.PrimaryFocus,
			SpiritualOpenness: req.SpiritualOpenness,
		},
	})
	if err != nil {
		h.rw.error(w, r, err)
		return
	}
	h.rw.nonFatal(r, res.Warnings)
	writeJSON(w, http.StatusOK, assessmentResponse{
		OK:         true,
		LeadID:     res.Lead.ID.String(),
		Score:      res.Diagnostic.Score,
		Tier:       string(res.Diagnostic.Tier),
		SequenceID: string(res.Sequence),
		Scheduled:  res.Scheduled,
		Roadmap:    res.Diagnostic.Roadmap,
		Explain:    explainFor(res.Diagnostic),
	})
}

func explainFor(res service.DiagnosticResult) explain {
	gaps := res.TopGaps
	if gaps == nil {
		gaps = []string{}
	}
	return explain{WeightedAverage: res.WeightedAverage, TopGaps: gaps}
}
